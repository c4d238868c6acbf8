package commands

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/elmtasks/internal/compiler"
	"git.home.luguber.info/inful/elmtasks/internal/config"
	ferrors "git.home.luguber.info/inful/elmtasks/internal/foundation/errors"
	"git.home.luguber.info/inful/elmtasks/internal/livereload"
	"git.home.luguber.info/inful/elmtasks/internal/logfields"
	"git.home.luguber.info/inful/elmtasks/internal/metrics"
	"git.home.luguber.info/inful/elmtasks/internal/pipeline"
	"git.home.luguber.info/inful/elmtasks/internal/retry"
	"git.home.luguber.info/inful/elmtasks/internal/tasks"
	"git.home.luguber.info/inful/elmtasks/internal/watch"
)

// session wires configuration, pipeline and task registry for one invocation.
type session struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	registry *tasks.Registry
	server   *livereload.Server
	nats     *livereload.NATSNotifier
	logger   *slog.Logger
}

// newCompiler is replaced in tests.
var newCompiler = func(cfg *config.Config) compiler.Compiler { return compiler.NewElmCompiler(cfg) }

// loadConfig reads the configuration file. A missing default file falls back
// to built-in defaults; a missing explicit file is an error.
func loadConfig(root *CLI) (*config.Config, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		if root.Config == config.DefaultPath {
			if _, statErr := os.Stat(root.Config); errors.Is(statErr, fs.ErrNotExist) {
				slog.Debug("No configuration file, using defaults", logfields.Path(root.Config))
				cfg = config.Default()
				err = nil
			}
		}
		if err != nil {
			return nil, err
		}
	}
	if root.Production {
		cfg.Production = true
	}
	root.applyConfiguredLevel(cfg.Logging.Level)
	return cfg, nil
}

// newSession builds the collaborators. serve enables the development server
// and is only used by long-running tasks.
func newSession(root *CLI, serve bool) (*session, error) {
	cfg, err := loadConfig(root)
	if err != nil {
		return nil, err
	}
	policy := retry.NewPolicy(retry.BackoffMode(cfg.Retry.Mode), cfg.Retry.Initial, cfg.Retry.Max, cfg.Retry.MaxRetries)
	if err := policy.Validate(); err != nil {
		return nil, ferrors.ConfigError("invalid retry settings").WithCause(err).Build()
	}
	logger := slog.Default()
	s := &session{cfg: cfg, logger: logger}

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	var registry *prom.Registry
	if cfg.Metrics.Enabled {
		registry = prom.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(registry)
	}

	var notifiers pipeline.Notifiers
	var hub *livereload.Hub
	if serve && cfg.LiveReload.Enabled {
		hub = livereload.NewHub(logger)
		notifiers = append(notifiers, hub)
	}
	if cfg.Notify.NATS.Enabled {
		n, err := livereload.NewNATSNotifier(cfg.Notify.NATS, logger)
		if err != nil {
			// Reload events are best effort; the build still runs.
			logger.Warn("NATS reload notifications disabled", logfields.Error(err))
		} else {
			s.nats = n
			notifiers = append(notifiers, n)
		}
	}

	c := newCompiler(cfg)
	s.pipeline = pipeline.New(cfg, c,
		pipeline.WithNotifier(notifiers),
		pipeline.WithRecorder(recorder),
		pipeline.WithLogger(logger),
		pipeline.WithRetryPolicy(policy),
	)
	s.registry = tasks.Elm(tasks.ElmDeps{
		Pipeline: s.pipeline,
		Compiler: c,
		WatchOptions: []watch.Option{
			watch.WithLogger(logger),
			watch.WithRecorder(recorder),
			watch.WithHidden(cfg.Watch.IncludeHidden),
		},
	}).WithLogger(logger)

	if hub != nil {
		var opts []livereload.ServerOption
		opts = append(opts, livereload.WithServerLogger(logger))
		if registry != nil {
			opts = append(opts, livereload.WithMetricsHandler(metrics.HTTPHandler(registry)))
		}
		s.server = livereload.NewServer(cfg.LiveReload, hub, s.pipeline, opts...)
	}
	return s, nil
}

// run executes task with SIGINT/SIGTERM cancellation.
func (s *session) run(task string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return s.runContext(ctx, task)
}

func (s *session) runContext(ctx context.Context, task string) error {
	defer s.close()
	if s.server != nil {
		if err := s.server.Start(ctx); err != nil {
			return err
		}
	}
	return s.registry.Run(ctx, task)
}

func (s *session) close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.server != nil {
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("Live reload server shutdown", logfields.Error(err))
		}
	}
	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			s.logger.Warn("NATS close", logfields.Error(err))
		}
	}
}
