package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/elmtasks/internal/compiler"
	"git.home.luguber.info/inful/elmtasks/internal/config"
	ferrors "git.home.luguber.info/inful/elmtasks/internal/foundation/errors"
)

// concatCompiler mimics the real compiler by joining its source files.
func concatCompiler(calls *[][]string) compiler.Func {
	return func(_ context.Context, sources []string, _ string) ([]byte, error) {
		if calls != nil {
			*calls = append(*calls, sources)
		}
		var buf bytes.Buffer
		for _, src := range sources {
			data, err := os.ReadFile(src)
			if err != nil {
				return nil, err
			}
			buf.Write(data)
		}
		return buf.Bytes(), nil
	}
}

func failingCompiler(message string) compiler.Func {
	return func(context.Context, []string, string) ([]byte, error) {
		return nil, ferrors.CompileError(message).WithCause(errors.New("exit status 1")).Build()
	}
}

type upperMinifier struct{ calls int }

func (m *upperMinifier) Minify(_ context.Context, _ string, src []byte) ([]byte, error) {
	m.calls++
	return bytes.ToUpper(src), nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	results []BuildResult
	// bundleAtNotify captures the bundle on disk when the notification fires.
	bundleAtNotify [][]byte
	path           string
}

func (n *recordingNotifier) NotifyReload(_ context.Context, res BuildResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results = append(n.results, res)
	data, _ := os.ReadFile(n.path)
	n.bundleAtNotify = append(n.bundleAtNotify, data)
}

type fixture struct {
	cfg      *config.Config
	srcDir   string
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	srcDir := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "Page"), 0o755))

	cfg := config.Default()
	cfg.Frontend.JSSource = filepath.Join(srcDir, "**", "*.elm")
	cfg.Frontend.JSDest = filepath.Join(root, "public", "js")

	return &fixture{
		cfg:      cfg,
		srcDir:   srcDir,
		notifier: &recordingNotifier{path: filepath.Join(cfg.Frontend.JSDest, cfg.Frontend.Bundle)},
	}
}

func (f *fixture) write(t *testing.T, rel, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.srcDir, rel), []byte(content), 0o600))
}

func TestCompile_TwoSourcesUnminified(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Main.elm", "module Main\n")
	f.write(t, "Page/Home.elm", "module Page.Home\n")

	var calls [][]string
	p := New(f.cfg, concatCompiler(&calls), WithNotifier(f.notifier), WithMinifier(&upperMinifier{}))

	res := p.Compile(t.Context())
	require.True(t, res.OK(), res.Message)
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 2)

	entries, err := os.ReadDir(f.cfg.Frontend.JSDest)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "app.js", entries[0].Name())

	written, err := os.ReadFile(filepath.Join(f.cfg.Frontend.JSDest, "app.js"))
	require.NoError(t, err)
	require.Equal(t, "module Main\nmodule Page.Home\n", string(written))
	require.Equal(t, written, res.Output)
	require.Equal(t, ContentHash(written), res.Hash)
	require.Zero(t, p.Errors().Len())
	require.Equal(t, StateCompiled, p.State().Current())
}

func TestCompile_ProductionMinifies(t *testing.T) {
	f := newFixture(t)
	f.cfg.Production = true
	f.write(t, "Main.elm", "module main\n")

	m := &upperMinifier{}
	p := New(f.cfg, concatCompiler(nil), WithNotifier(f.notifier), WithMinifier(m))

	res := p.Compile(t.Context())
	require.True(t, res.OK(), res.Message)
	require.Equal(t, 1, m.calls)

	written, err := os.ReadFile(p.BundlePath())
	require.NoError(t, err)
	require.Equal(t, "MODULE MAIN\n", string(written))
}

func TestCompile_NonProductionSkipsMinifier(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Main.elm", "module main\n")

	m := &upperMinifier{}
	p := New(f.cfg, concatCompiler(nil), WithMinifier(m))
	require.True(t, p.Compile(t.Context()).OK())
	require.Zero(t, m.calls)
}

func TestCompile_FailureRecordsMessageAndStillNotifies(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Main.elm", "module Main\n")

	p := New(f.cfg, failingCompiler("Parse error"), WithNotifier(f.notifier))

	res := p.Compile(t.Context())
	require.False(t, res.OK())
	require.Equal(t, OutcomeFailure, res.Outcome)
	require.Equal(t, "Parse error", res.Message)
	require.Equal(t, []string{"Parse error"}, p.Errors().Messages())
	require.Len(t, f.notifier.results, 1)
	require.Equal(t, StateCompiledWithErrors, p.State().Current())

	_, err := os.Stat(p.BundlePath())
	require.True(t, os.IsNotExist(err), "failed compile must not write a bundle")
}

func TestCompile_ErrorLogGrowsByOnePerFailure(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Main.elm", "module Main\n")

	p := New(f.cfg, failingCompiler("Parse error"), WithNotifier(f.notifier))
	for i := 1; i <= 3; i++ {
		p.Compile(t.Context())
		require.Equal(t, i, p.Errors().Len())
	}
	require.Len(t, f.notifier.results, 3)

	p.Errors().Reset()
	require.Zero(t, p.Errors().Len())
}

func TestCompile_ExactlyOneNotificationPerRun(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Main.elm", "module Main\n")

	calls := 0
	ok := true
	c := compiler.Func(func(context.Context, []string, string) ([]byte, error) {
		calls++
		if ok {
			return []byte("bundle"), nil
		}
		return nil, errors.New("boom")
	})
	p := New(f.cfg, c, WithNotifier(f.notifier))

	p.Compile(t.Context())
	ok = false
	p.Compile(t.Context())
	ok = true
	p.Compile(t.Context())

	require.Equal(t, 3, calls)
	require.Len(t, f.notifier.results, 3)
	require.True(t, f.notifier.results[0].OK())
	require.False(t, f.notifier.results[1].OK())
	require.Equal(t, "boom", f.notifier.results[1].Message)
	require.True(t, f.notifier.results[2].OK())
}

func TestCompile_OutputWrittenBeforeNotification(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Main.elm", "module Main\n")

	p := New(f.cfg, concatCompiler(nil), WithNotifier(f.notifier))
	p.Compile(t.Context())

	require.Len(t, f.notifier.bundleAtNotify, 1)
	require.Equal(t, "module Main\n", string(f.notifier.bundleAtNotify[0]))
}

func TestCompile_NoMatchingSourcesIsFailure(t *testing.T) {
	f := newFixture(t)
	p := New(f.cfg, concatCompiler(nil), WithNotifier(f.notifier))

	res := p.Compile(t.Context())
	require.False(t, res.OK())
	require.True(t, strings.HasPrefix(res.Message, "no Elm sources match"))
	require.Equal(t, 1, p.Errors().Len())
	require.Len(t, f.notifier.results, 1)
}

func TestCompile_NotifierFunc(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Main.elm", "module Main\n")

	reloads := 0
	p := New(f.cfg, failingCompiler("Parse error"), WithNotifier(NotifierFunc(func() { reloads++ })))
	p.Compile(t.Context())
	require.Equal(t, 1, reloads)
}

func TestClean_RemovesOutputAndToleratesMissingDir(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Main.elm", "module Main\n")
	p := New(f.cfg, concatCompiler(nil))

	require.NoError(t, p.Clean(t.Context()), "missing directory is not an error")

	require.True(t, p.Compile(t.Context()).OK())
	stale := filepath.Join(f.cfg.Frontend.JSDest, "old.js")
	require.NoError(t, os.WriteFile(stale, []byte("stale"), 0o600))

	require.NoError(t, p.Clean(t.Context()))
	_, err := os.Stat(f.cfg.Frontend.JSDest)
	require.True(t, os.IsNotExist(err))
}

func TestClean_RefusesDangerousDestination(t *testing.T) {
	cfg := config.Default()
	cfg.Frontend.JSDest = "."
	err := New(cfg, concatCompiler(nil)).Clean(t.Context())
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestClean_RefusesWorkingDirectoryAndAncestors(t *testing.T) {
	proj := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, os.MkdirAll(proj, 0o755))
	manifest := filepath.Join(proj, "elm.json")
	require.NoError(t, os.WriteFile(manifest, []byte("{}"), 0o600))
	t.Chdir(proj)

	wd, err := os.Getwd()
	require.NoError(t, err)

	for _, dest := range []string{wd, "../..", ".."} {
		cfg := config.Default()
		cfg.Frontend.JSDest = dest
		err := New(cfg, concatCompiler(nil)).Clean(t.Context())
		require.Error(t, err, dest)
		require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation), dest)
	}
	require.FileExists(t, manifest)
}

func TestCompile_CancelledRunIsNotRecordedOrNotified(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Main.elm", "module Main\n")
	ctx, cancel := context.WithCancel(t.Context())
	p := New(f.cfg, compiler.Func(func(ctx context.Context, _ []string, _ string) ([]byte, error) {
		cancel()
		return nil, ctx.Err()
	}), WithNotifier(f.notifier))

	res := p.Compile(ctx)
	require.False(t, res.OK())
	require.Equal(t, 0, p.Errors().Len())
	require.Empty(t, f.notifier.results)
	require.Equal(t, StateIdle, p.State().Current())
}

func TestClean_ThenCompileLeavesOnlyFreshBundle(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Main.elm", "module Main\n")
	require.NoError(t, os.MkdirAll(f.cfg.Frontend.JSDest, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.cfg.Frontend.JSDest, "stale.js"), []byte("x"), 0o600))

	p := New(f.cfg, concatCompiler(nil))
	require.NoError(t, p.Clean(t.Context()))
	require.True(t, p.Compile(t.Context()).OK())

	entries, err := os.ReadDir(f.cfg.Frontend.JSDest)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "app.js", entries[0].Name())
}

func TestCompile_ReturnsToWatchingState(t *testing.T) {
	f := newFixture(t)
	f.write(t, "Main.elm", "module Main\n")
	p := New(f.cfg, failingCompiler("Parse error"))

	p.BeginWatch()
	require.Equal(t, StateWatching, p.State().Current())
	p.Compile(t.Context())
	require.Equal(t, StateWatching, p.State().Current())
	snap := p.State().Snapshot()
	require.Equal(t, OutcomeFailure, snap.Outcome)
	require.NotEmpty(t, snap.LastBuild)

	p.EndWatch()
	p.Compile(t.Context())
	require.Equal(t, StateCompiledWithErrors, p.State().Current())
}

func TestNotifiers_FanOut(t *testing.T) {
	a, b := 0, 0
	ns := Notifiers{NotifierFunc(func() { a++ }), nil, NotifierFunc(func() { b++ })}
	ns.NotifyReload(t.Context(), BuildResult{})
	require.Equal(t, 1, a)
	require.Equal(t, 1, b)
}
