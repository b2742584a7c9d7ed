package main

import (
	"context"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-service/internal/audio"
	"github.com/book-expert/podcast-service/internal/config"
	"github.com/book-expert/podcast-service/internal/core"
	"github.com/book-expert/podcast-service/internal/extract"
	"github.com/book-expert/podcast-service/internal/jobs"
	"github.com/book-expert/podcast-service/internal/llm"
	"github.com/book-expert/podcast-service/internal/natsserver"
	"github.com/book-expert/podcast-service/internal/notify"
	"github.com/book-expert/podcast-service/internal/objectstore"
	"github.com/book-expert/podcast-service/internal/pipeline"
	"github.com/book-expert/podcast-service/internal/publish"
	"github.com/book-expert/podcast-service/internal/server"
	"github.com/book-expert/podcast-service/internal/telemetry"
	"github.com/book-expert/podcast-service/internal/tts"
	"github.com/book-expert/podcast-service/internal/voices"
	"github.com/book-expert/podcast-service/internal/worker"
	"github.com/nats-io/nats.go"
)

const (
	clientName     = "podcast-service"
	connectTimeout = 5 * time.Second
	documentTTL    = 24 * time.Hour
	healthTimeout  = 5 * time.Second
	telemetryFlush = 5 * time.Second
)

// application holds every long-lived component and releases them in reverse
// order of creation.
type application struct {
	embedded     *natsserver.EmbeddedServer
	conn         *nats.Conn
	telemetry    *telemetry.Provider
	orchestrator *pipeline.Orchestrator
	server       *server.Server
	worker       *worker.NatsWorker
	log          *logger.Logger
}

func wire(ctx context.Context, cfg *config.Config, log *logger.Logger) (*application, error) {
	app := &application{log: log}

	err := app.connect(cfg)
	if err != nil {
		app.close()

		return nil, err
	}

	err = app.build(ctx, cfg)
	if err != nil {
		app.close()

		return nil, err
	}

	return app, nil
}

// connect reaches the configured NATS server or starts an embedded one.
func (a *application) connect(cfg *config.Config) error {
	url := cfg.NATS.URL

	if url == "" {
		embedded, err := natsserver.Start(natsserver.Options{
			Port:     cfg.NATS.EmbeddedPort,
			StoreDir: cfg.NATS.StoreDir,
		}, a.log)
		if err != nil {
			return fmt.Errorf("failed to start embedded NATS: %w", err)
		}

		a.embedded = embedded
		url = embedded.ClientURL()
	}

	conn, err := nats.Connect(url, nats.Name(clientName), nats.Timeout(connectTimeout))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	a.conn = conn
	a.log.Info("Connected to NATS at %s", conn.ConnectedUrl())

	return nil
}

func (a *application) build(ctx context.Context, cfg *config.Config) error {
	provider, err := telemetry.Setup(cfg.Telemetry.ServiceName, cfg.Telemetry.Environment, a.log)
	if err != nil {
		return err
	}

	a.telemetry = provider

	js, err := a.conn.JetStream()
	if err != nil {
		return fmt.Errorf("failed to get JetStream context: %w", err)
	}

	documents, err := objectstore.New(js, cfg.NATS.DocumentBucket, objectstore.Options{
		Description: "Documents submitted for podcast generation.",
		TTL:         documentTTL,
	})
	if err != nil {
		return err
	}

	publisher, audioSource, err := buildPublisher(ctx, cfg, js, a.log)
	if err != nil {
		return err
	}

	synthesizer, err := buildSynthesizer(ctx, cfg, a.log)
	if err != nil {
		return err
	}

	generator, err := llm.New(cfg.LLMOptions(), a.log)
	if err != nil {
		return err
	}

	format := cfg.AudioFormat()

	assembler, err := audio.NewAssembler(format, a.log)
	if err != nil {
		return err
	}

	registry := jobs.NewRegistry()

	a.orchestrator, err = pipeline.New(pipeline.Dependencies{
		Jobs:        registry,
		Voices:      voices.NewRegistry(cfg.Pipeline.DefaultLanguage, cfg.VoiceOverrides()),
		Extractor:   extract.New(a.log),
		Generator:   generator,
		Synthesizer: tts.NewEngine(synthesizer, format, a.log),
		Assembler:   assembler,
		Publisher:   publisher,
		Notifier:    notify.NewNatsNotifier(a.conn, cfg.NATS.StatusSubject, a.log),
		Metrics:     provider.Metrics(),
	}, pipeline.Options{
		WorkDir:      cfg.Pipeline.WorkDir,
		StageTimeout: cfg.StageTimeout(),
		LinkExpiry:   cfg.LinkExpiry(),
	}, a.log)
	if err != nil {
		return err
	}

	a.server, err = server.New(registry, a.orchestrator, audioSource, server.Options{
		Addr:            cfg.Addr(),
		UploadDir:       cfg.Paths.UploadDir,
		MaxUploadBytes:  cfg.MaxUploadBytes(),
		DefaultLanguage: cfg.Pipeline.DefaultLanguage,
		CORSOrigins:     cfg.Server.CORSOrigins,
		ShutdownTimeout: cfg.ShutdownTimeout(),
		Metrics:         provider.Handler(),
	}, a.log)
	if err != nil {
		return err
	}

	a.worker, err = worker.NewNatsWorker(a.conn, cfg.NATS.SubmitSubject, documents, a.orchestrator,
		cfg.Paths.UploadDir, a.log)

	return err
}

// buildPublisher returns the configured publisher and, for the object-store
// backend, the source the HTTP API serves signed links from.
func buildPublisher(
	ctx context.Context,
	cfg *config.Config,
	js nats.JetStreamContext,
	log *logger.Logger,
) (core.ArtifactPublisher, server.AudioSource, error) {
	if cfg.Publish.Backend == publish.BackendS3 {
		publisher, err := publish.NewS3Publisher(ctx, cfg.S3Options(), log)
		if err != nil {
			return nil, nil, err
		}

		return publisher, nil, nil
	}

	artifacts, err := objectstore.New(js, cfg.NATS.AudioBucket, objectstore.Options{
		Description: "Published podcasts.",
		TTL:         cfg.LinkExpiry(),
	})
	if err != nil {
		return nil, nil, err
	}

	signer, err := buildSigner(cfg, log)
	if err != nil {
		return nil, nil, err
	}

	publisher, err := publish.NewObjectStorePublisher(artifacts, signer, cfg.Server.PublicBaseURL, log)
	if err != nil {
		return nil, nil, err
	}

	return publisher, publisher, nil
}

func buildSigner(cfg *config.Config, log *logger.Logger) (*publish.LinkSigner, error) {
	if cfg.Publish.LinkSigningKey == "" {
		log.Warn("LINK_SIGNING_KEY is not set; download links will not survive a restart")

		return publish.NewEphemeralLinkSigner()
	}

	return publish.NewLinkSigner([]byte(cfg.Publish.LinkSigningKey))
}

func buildSynthesizer(ctx context.Context, cfg *config.Config, log *logger.Logger) (core.SpeechSynthesizer, error) {
	if cfg.TTS.Backend == config.TTSBackendExec {
		return tts.NewExecSynthesizer(cfg.TTS.Command, log)
	}

	synthesizer := tts.NewHTTPSynthesizer(tts.HTTPOptions{
		BaseURL: cfg.TTS.URL,
		APIKey:  cfg.TTS.APIKey,
		Model:   cfg.TTS.Model,
		Speed:   cfg.TTS.Speed,
		Timeout: cfg.TTSTimeout(),
	})

	healthCtx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	err := synthesizer.HealthCheck(healthCtx)
	if err != nil {
		log.Warn("Speech service at %s is not healthy yet: %v", cfg.TTS.URL, err)
	}

	return synthesizer, nil
}

func (a *application) close() {
	if a.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryFlush)

		err := a.telemetry.Shutdown(ctx)
		if err != nil {
			a.log.Warn("Failed to flush telemetry: %v", err)
		}

		cancel()
	}

	if a.conn != nil {
		err := a.conn.FlushTimeout(connectTimeout)
		if err != nil {
			a.log.Warn("Failed to flush NATS connection: %v", err)
		}

		a.conn.Close()
	}

	a.embedded.Shutdown()
}
