package compiler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/elmtasks/internal/config"
	ferrors "git.home.luguber.info/inful/elmtasks/internal/foundation/errors"
)

// ElmCompiler invokes `elm make` found on PATH (or the configured binary).
type ElmCompiler struct {
	binary   string
	args     []string
	workDir  string
	optimize bool
}

// NewElmCompiler builds an ElmCompiler from configuration. --optimize is only
// passed for production builds with compiler.optimize set.
func NewElmCompiler(cfg *config.Config) *ElmCompiler {
	return &ElmCompiler{
		binary:   cfg.Compiler.Binary,
		args:     cfg.Compiler.Args,
		workDir:  cfg.Compiler.WorkDir,
		optimize: cfg.Production && cfg.Compiler.Optimize,
	}
}

// Init checks that the compiler binary resolves, answers --version and that
// the project has an elm.json.
func (c *ElmCompiler) Init(ctx context.Context) error {
	path, err := exec.LookPath(c.binary)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNotFound, fmt.Sprintf("elm compiler %q not found on PATH", c.binary)).
			UserAction().
			Build()
	}

	cmd := exec.CommandContext(ctx, path, "--version")
	cmd.Dir = c.workDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "elm --version failed").
			WithContext("output", strings.TrimSpace(string(out))).
			Build()
	}
	slog.Info("Elm compiler ready", "binary", path, "version", strings.TrimSpace(string(out)))

	manifest := filepath.Join(c.workDir, "elm.json")
	if _, err := os.Stat(manifest); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNotFound, "elm.json not found; run `elm init` first").
			WithContext("path", manifest).
			UserAction().
			Build()
	}
	return nil
}

// Compile runs `elm make <sources...> --output=<tmp>/<bundleName>` and returns
// the bundle. Compiler diagnostics become the message of a compile error.
func (c *ElmCompiler) Compile(ctx context.Context, sources []string, bundleName string) ([]byte, error) {
	if len(sources) == 0 {
		return nil, ferrors.CompileError("no Elm sources to compile").Build()
	}

	tmpDir, err := os.MkdirTemp("", "elmtasks-*")
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "create compiler output directory").Build()
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	if c.workDir != "" {
		sources = absPaths(sources)
	}

	output := filepath.Join(tmpDir, bundleName)
	cmd := exec.CommandContext(ctx, c.binary, c.makeArgs(sources, output)...)
	cmd.Dir = c.workDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("Invoking elm make", "binary", c.binary, "sources", len(sources), "output", output)
	runErr := cmd.Run()

	if outStr := strings.TrimSpace(stdout.String()); outStr != "" {
		slog.Debug("elm stdout", "output", outStr)
	}

	if runErr != nil {
		message := strings.TrimSpace(stderr.String())
		if message == "" {
			message = strings.TrimSpace(stdout.String())
		}
		if message == "" {
			message = runErr.Error()
		}
		return nil, ferrors.CompileError(message).
			WithCause(runErr).
			WithContext("sources", sources).
			Build()
	}

	bundle, err := os.ReadFile(output)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryCompile, "compiler produced no bundle").
			WithContext("output", output).
			Build()
	}
	return bundle, nil
}

func (c *ElmCompiler) makeArgs(sources []string, output string) []string {
	args := make([]string, 0, len(sources)+len(c.args)+3)
	args = append(args, "make")
	args = append(args, sources...)
	args = append(args, "--output="+output)
	if c.optimize {
		args = append(args, "--optimize")
	}
	return append(args, c.args...)
}

// absPaths resolves sources against the current directory so they survive cmd.Dir.
func absPaths(sources []string) []string {
	out := make([]string, len(sources))
	for i, src := range sources {
		if abs, err := filepath.Abs(src); err == nil {
			out[i] = abs
		} else {
			out[i] = src
		}
	}
	return out
}
