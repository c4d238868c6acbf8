// Package commands implements the elmtasks command line.
package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/elmtasks/internal/logfields"
)

// Global is shared state passed to every command.
type Global struct {
	// Stderr receives log output; nil means os.Stderr.
	Stderr io.Writer
}

// CLI definition and global flags.
type CLI struct {
	Config     string           `short:"c" help:"Configuration file path" default:"elmtasks.yaml"`
	Verbose    bool             `short:"v" help:"Enable verbose logging"`
	Production bool             `short:"p" help:"Minify the bundle (overrides the production setting)" env:"ELMTASKS_PRODUCTION"`
	Version    kong.VersionFlag `name:"version" help:"Show version and exit"`

	Init    ElmInitCmd    `cmd:"" name:"elm:init" help:"Make sure the Elm compiler is installed and the project initialized"`
	Clean   ElmCleanCmd   `cmd:"" name:"elm:clean" help:"Remove previously generated output"`
	Compile ElmCompileCmd `cmd:"" name:"elm:compile" help:"Clean and compile the application bundle"`
	Watch   ElmWatchCmd   `cmd:"" name:"elm:watch" help:"Compile, then recompile whenever a source changes"`
	Main    ElmMainCmd    `cmd:"" name:"elm:main" default:"1" help:"Clean, compile and watch (default)"`
}

// logLevel is shared by the handler so the configured level can be applied
// after the configuration file has been read.
var logLevel = new(slog.LevelVar)

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	if c.Verbose {
		logLevel.Set(slog.LevelDebug)
	} else {
		logLevel.Set(slog.LevelInfo)
	}
	var out io.Writer = os.Stderr
	if g != nil && g.Stderr != nil {
		out = g.Stderr
	}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level:       logLevel,
		ReplaceAttr: logfields.ReplaceLevelNames,
	}))
	slog.SetDefault(logger)
	return nil
}

// applyConfiguredLevel honours logging.level unless -v was given.
func (c *CLI) applyConfiguredLevel(level string) {
	if c.Verbose {
		return
	}
	logLevel.Set(logfields.ParseLevel(level))
}
