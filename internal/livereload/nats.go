package livereload

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/elmtasks/internal/config"
	ferrors "git.home.luguber.info/inful/elmtasks/internal/foundation/errors"
	"git.home.luguber.info/inful/elmtasks/internal/logfields"
	"git.home.luguber.info/inful/elmtasks/internal/pipeline"
)

// NATSEvent is the message published for each finished compile.
type NATSEvent struct {
	Event
	Path      string    `json:"path,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NATSNotifier publishes reload events to a NATS subject.
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// NewNATSNotifier connects to the configured server.
func NewNATSNotifier(cfg config.NATSConfig, logger *slog.Logger) (*NATSNotifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(cfg.URL,
		nats.Name("elmtasks"),
		nats.Timeout(2*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryNotify, "failed to connect to NATS").
			WithContext("url", cfg.URL).
			Build()
	}
	logger.Info("NATS reload notifier connected", slog.String("url", cfg.URL), slog.String("subject", cfg.Subject))
	return &NATSNotifier{conn: conn, subject: cfg.Subject, logger: logger}, nil
}

// NotifyReload publishes res. Publish failures are logged; a lost reload
// event must not stop the watch loop.
func (n *NATSNotifier) NotifyReload(_ context.Context, res pipeline.BuildResult) {
	data, err := json.Marshal(NATSEvent{Event: EventFor(res), Path: res.Path, Timestamp: time.Now()})
	if err != nil {
		n.logger.Error("Failed to marshal reload event", logfields.Error(err))
		return
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		n.logger.Warn("Failed to publish reload event", logfields.BuildID(res.ID), logfields.Error(err))
		return
	}
	n.logger.Debug("Published reload event", logfields.BuildID(res.ID), slog.String("subject", n.subject))
}

// Close flushes pending messages and closes the connection.
func (n *NATSNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}
