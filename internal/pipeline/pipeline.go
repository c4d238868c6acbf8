// Package pipeline implements the clean and compile steps of the Elm build.
//
// Compile never fails its caller: every run ends in a BuildResult whose two
// arms converge on one reload notification. Failures are also appended to the
// pipeline's ErrorLog, which outlives individual runs.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/elmtasks/internal/compiler"
	"git.home.luguber.info/inful/elmtasks/internal/config"
	ferrors "git.home.luguber.info/inful/elmtasks/internal/foundation/errors"
	"git.home.luguber.info/inful/elmtasks/internal/logfields"
	"git.home.luguber.info/inful/elmtasks/internal/metrics"
	"git.home.luguber.info/inful/elmtasks/internal/minify"
	"git.home.luguber.info/inful/elmtasks/internal/retry"
)

const (
	StepClean   = "clean"
	StepCompile = "compile"
	StepMinify  = "minify"
)

// Pipeline holds the collaborators and run state shared by the elm tasks.
type Pipeline struct {
	sourceGlob string
	destDir    string
	bundle     string
	production bool

	compiler compiler.Compiler
	minifier minify.Minifier
	notifier Notifier
	recorder metrics.Recorder
	logger   *slog.Logger
	retry    retry.Policy

	errors *ErrorLog
	state  *StateTracker

	mu       sync.Mutex
	watching bool
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithMinifier replaces the production minifier.
func WithMinifier(m minify.Minifier) Option {
	return func(p *Pipeline) { p.minifier = m }
}

// WithNotifier sets the reload notifier.
func WithNotifier(n Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithLogger sets the logger used for step output.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithRetryPolicy sets the backoff used when removing or writing output fails.
func WithRetryPolicy(rp retry.Policy) Option {
	return func(p *Pipeline) { p.retry = rp }
}

// New creates a pipeline for cfg using c as the compiler.
func New(cfg *config.Config, c compiler.Compiler, opts ...Option) *Pipeline {
	p := &Pipeline{
		sourceGlob: cfg.Frontend.JSSource,
		destDir:    cfg.Frontend.JSDest,
		bundle:     cfg.Frontend.Bundle,
		production: cfg.Production,
		compiler:   c,
		minifier:   minify.NewEsbuild(),
		notifier:   noopNotifier{},
		recorder:   metrics.NoopRecorder{},
		logger:     slog.Default(),
		retry:      retry.DefaultPolicy(),
		errors:     NewErrorLog(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.state = newStateTracker(func(from, to State) {
		p.logger.Debug("Pipeline state changed", "from", string(from), logfields.State(string(to)))
	})
	return p
}

// Errors returns the accumulated failure log.
func (p *Pipeline) Errors() *ErrorLog { return p.errors }

// State returns the state tracker.
func (p *Pipeline) State() *StateTracker { return p.state }

// SourceGlob returns the configured source pattern.
func (p *Pipeline) SourceGlob() string { return p.sourceGlob }

// BundlePath returns the path Compile writes to.
func (p *Pipeline) BundlePath() string { return filepath.Join(p.destDir, p.bundle) }

// DestDir returns the output directory.
func (p *Pipeline) DestDir() string { return p.destDir }

// Clean removes the destination directory. A missing directory is not an error.
// It returns once the removal is complete.
func (p *Pipeline) Clean(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := config.ValidateDestination(p.destDir); err != nil {
		return err
	}

	p.state.set(StateCleaning)
	start := time.Now()
	err := p.retry.Do(ctx, func() error { return os.RemoveAll(p.destDir) })
	p.recorder.ObserveStepDuration(StepClean, time.Since(start))
	if err != nil {
		p.recorder.IncStepResult(StepClean, metrics.ResultFailure)
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to clean output directory").
			WithContext("dir", p.destDir).
			Build()
	}
	p.recorder.IncStepResult(StepClean, metrics.ResultSuccess)
	p.logger.Info("Cleaned output directory", logfields.Path(p.destDir))
	return nil
}

// Sources expands the source glob into a sorted list of files.
func (p *Pipeline) Sources() ([]string, error) {
	matches, err := doublestar.FilepathGlob(p.sourceGlob, doublestar.WithFilesOnly())
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryValidation, "invalid source glob").
			WithContext("glob", p.sourceGlob).
			Build()
	}
	slices.Sort(matches)
	return matches, nil
}

// Compile compiles the sources into the bundle. Both outcomes record
// metrics, update state and fire exactly one reload notification after the
// bundle is written. Failures append one entry to the error log.
// A run that fails because ctx was cancelled is abandoned: it is neither
// recorded nor notified.
func (p *Pipeline) Compile(ctx context.Context) BuildResult {
	p.state.set(StateCompiling)
	res := p.compile(ctx)
	res.Duration = time.Since(res.Started)

	if res.Outcome == OutcomeFailure && ctx.Err() != nil {
		p.logger.Debug("Elm compile abandoned", logfields.BuildID(res.ID), logfields.Error(ctx.Err()))
		if p.isWatching() {
			p.state.set(StateWatching)
		} else {
			p.state.set(StateIdle)
		}
		return res
	}

	p.recorder.ObserveStepDuration(StepCompile, res.Duration)
	switch res.Outcome {
	case OutcomeFailure:
		p.errors.Append(BuildError{BuildID: res.ID, Message: res.Message, At: time.Now()})
		p.recorder.IncStepResult(StepCompile, metrics.ResultFailure)
		p.logger.Warn("Elm compile failed",
			logfields.BuildID(res.ID),
			logfields.Error(res.Err),
			logfields.DurationMS(float64(res.Duration.Microseconds())/1e3))
	default:
		p.recorder.IncStepResult(StepCompile, metrics.ResultSuccess)
		p.recorder.ObserveBundleSize(len(res.Output))
		p.logger.Info("Elm bundle written",
			logfields.BuildID(res.ID),
			logfields.Path(res.Path),
			logfields.Bytes(len(res.Output)),
			logfields.DurationMS(float64(res.Duration.Microseconds())/1e3))
	}
	p.state.finish(res)

	p.notifier.NotifyReload(ctx, res)
	p.recorder.IncReloadNotification()

	if p.isWatching() {
		p.state.set(StateWatching)
	}
	return res
}

func (p *Pipeline) compile(ctx context.Context) BuildResult {
	id := uuid.NewString()
	started := time.Now()

	sources, err := p.Sources()
	if err != nil {
		return failureResult(id, started, err)
	}
	if len(sources) == 0 {
		return failureResult(id, started,
			ferrors.CompileError(fmt.Sprintf("no Elm sources match %s", p.sourceGlob)).Build())
	}
	p.logger.Debug("Compiling Elm sources", logfields.BuildID(id), logfields.Sources(len(sources)), logfields.Glob(p.sourceGlob))

	bundle, err := p.compiler.Compile(ctx, sources, p.bundle)
	if err != nil {
		if !ferrors.IsClassified(err) {
			err = ferrors.CompileError(err.Error()).WithCause(err).Build()
		}
		return failureResult(id, started, err)
	}

	if p.production {
		minifyStart := time.Now()
		minified, err := p.minifier.Minify(ctx, p.bundle, bundle)
		p.recorder.ObserveStepDuration(StepMinify, time.Since(minifyStart))
		if err != nil {
			p.recorder.IncStepResult(StepMinify, metrics.ResultFailure)
			return failureResult(id, started, err)
		}
		p.recorder.IncStepResult(StepMinify, metrics.ResultSuccess)
		bundle = minified
	}

	path := p.BundlePath()
	if err := p.retry.Do(ctx, func() error { return writeFileAtomic(path, bundle) }); err != nil {
		return failureResult(id, started, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write bundle").
			WithContext("path", path).
			Build())
	}
	return successResult(id, started, path, bundle)
}

// BeginWatch marks the pipeline as watching; subsequent compiles return to StateWatching.
func (p *Pipeline) BeginWatch() {
	p.mu.Lock()
	p.watching = true
	p.mu.Unlock()
	p.state.set(StateWatching)
}

// EndWatch clears the watching flag.
func (p *Pipeline) EndWatch() {
	p.mu.Lock()
	p.watching = false
	p.mu.Unlock()
}

func (p *Pipeline) isWatching() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watching
}

// writeFileAtomic writes data next to path and renames it into place so readers
// never observe a partial bundle.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
