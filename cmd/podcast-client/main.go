// main package for the podcast-client
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/book-expert/podcast-service/internal/server"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// Flag names.
const (
	flagServer   = "server"
	flagLanguage = "language"
	flagWait     = "wait"
	flagInterval = "interval"
	flagTimeout  = "timeout"
)

// Defaults.
const (
	defaultServer   = "http://localhost:8000"
	defaultInterval = 2 * time.Second
	defaultTimeout  = 30 * time.Minute
	requestTimeout  = 2 * time.Minute
)

// Output messages.
const (
	msgUploading = "Uploading %s (%s)\n"
	msgAccepted  = "Job %s: %s\n"
	msgProgress  = "[%3d%%] %s\n"
	msgAudioURL  = "Audio: %s\n"
	msgError     = "Error: %s\n"
)

type rootOptions struct {
	server string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "podcast-client",
		Short:         "Turn documents into two-host podcasts",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	serverDefault := defaultServer
	if fromEnv := os.Getenv("PODCAST_SERVER"); fromEnv != "" {
		serverDefault = fromEnv
	}

	cmd.PersistentFlags().StringVar(&opts.server, flagServer, serverDefault, "Base URL of the podcast API")

	cmd.AddCommand(
		newGenerateCommand(opts),
		newStatusCommand(opts),
		newSubmitCommand(),
	)

	return cmd
}

func newGenerateCommand(root *rootOptions) *cobra.Command {
	var (
		language string
		wait     bool
		interval time.Duration
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:     "generate <document>",
		Short:   "Upload a PDF or text document and start a podcast job",
		Args:    cobra.ExactArgs(1),
		Example: `podcast-client generate paper.pdf --language spanish --wait`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(root.server, requestTimeout)
			out := cmd.OutOrStdout()

			info, err := os.Stat(args[0])
			if err != nil {
				return fmt.Errorf("failed to read document: %w", err)
			}

			fmt.Fprintf(out, msgUploading, info.Name(), humanize.Bytes(uint64(info.Size())))

			accepted, err := client.Generate(cmd.Context(), args[0], language)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, msgAccepted, accepted.JobID, accepted.Message)

			if !wait {
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			final, err := client.Wait(ctx, accepted.JobID, interval, func(status server.StatusResponse) {
				fmt.Fprintf(out, msgProgress, status.Progress, status.Status)
			})
			printResult(out, final)

			return err
		},
	}

	cmd.Flags().StringVar(&language, flagLanguage, "", "Podcast language (default: server default)")
	cmd.Flags().BoolVar(&wait, flagWait, false, "Poll until the job finishes")
	cmd.Flags().DurationVar(&interval, flagInterval, defaultInterval, "Polling interval")
	cmd.Flags().DurationVar(&timeout, flagTimeout, defaultTimeout, "Give up waiting after this long")

	return cmd
}

func newStatusCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job_id>",
		Short: "Show the state of a podcast job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newAPIClient(root.server, requestTimeout)

			status, err := client.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), msgProgress, status.Progress, status.Status)
			printResult(cmd.OutOrStdout(), status)

			return nil
		},
	}
}

func printResult(out io.Writer, status server.StatusResponse) {
	if status.AudioURL != nil {
		fmt.Fprintf(out, msgAudioURL, *status.AudioURL)
	}

	if status.Error != nil {
		fmt.Fprintf(out, msgError, *status.Error)
	}
}

func main() {
	err := newRootCommand().ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "podcast-client: %v\n", err)
		os.Exit(1)
	}
}
