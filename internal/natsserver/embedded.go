// Package natsserver runs an in-process NATS server with JetStream so the
// service can start without external infrastructure.
package natsserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats-server/v2/server"
)

const readyTimeout = 5 * time.Second

// ErrNotReady indicates the server did not accept connections in time.
var ErrNotReady = errors.New("embedded NATS server failed to become ready")

// Options configure the embedded server.
type Options struct {
	Host string
	// Port -1 picks a random free port.
	Port     int
	StoreDir string
}

// EmbeddedServer wraps a NATS server instance.
type EmbeddedServer struct {
	ns  *server.Server
	log *logger.Logger
}

// Start creates and starts an embedded NATS server with JetStream enabled and
// waits until it accepts connections.
func Start(opts Options, log *logger.Logger) (*EmbeddedServer, error) {
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}

	ns, err := server.NewServer(&server.Options{
		Host:      opts.Host,
		Port:      opts.Port,
		JetStream: true,
		StoreDir:  opts.StoreDir,
		NoSigs:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedded NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(readyTimeout) {
		ns.Shutdown()

		return nil, fmt.Errorf("%w within %s", ErrNotReady, readyTimeout)
	}

	log.Info("Embedded NATS server listening on %s (store %s)", ns.ClientURL(), opts.StoreDir)

	return &EmbeddedServer{ns: ns, log: log}, nil
}

// ClientURL is the URL clients connect to.
func (e *EmbeddedServer) ClientURL() string {
	return e.ns.ClientURL()
}

// Shutdown stops the server and waits for it to exit. It is safe on a nil
// server.
func (e *EmbeddedServer) Shutdown() {
	if e == nil || e.ns == nil {
		return
	}

	e.log.Info("Shutting down embedded NATS server")
	e.ns.Shutdown()
	e.ns.WaitForShutdown()
}
