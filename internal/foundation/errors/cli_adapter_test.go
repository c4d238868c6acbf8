package errors

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, 0},
		{"validation error", ValidationError("bad glob").Build(), 2},
		{"config error", ConfigError("bad config").Build(), 7},
		{"compile error", CompileError("Parse error").Build(), 11},
		{"filesystem error", FileSystemError("write failed").Build(), 11},
		{"watch error", WatchError("watch failed").Build(), 12},
		{"internal error", InternalError("boom").Build(), 10},
		{"unclassified error", errors.New("unknown error"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(tt.err); got != tt.expected {
				t.Errorf("ExitCodeFor() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	quiet := NewCLIErrorAdapter(false, slog.Default())
	verbose := NewCLIErrorAdapter(true, slog.Default())

	err := WrapError(errors.New("permission denied"), CategoryFileSystem, "write bundle").Build()

	if got := quiet.FormatError(err); !strings.Contains(got, "write bundle") || !strings.Contains(got, "-v") {
		t.Errorf("unexpected quiet format: %q", got)
	}
	if got := verbose.FormatError(err); !strings.Contains(got, "permission denied") {
		t.Errorf("expected verbose format to include cause, got %q", got)
	}
	if got := quiet.FormatError(ConfigError("missing frontend.js_source").Build()); got != "Error: missing frontend.js_source" {
		t.Errorf("unexpected config format: %q", got)
	}
	if quiet.FormatError(nil) != "" {
		t.Error("expected empty format for nil")
	}
}

func TestCLIErrorAdapter_HandleError(t *testing.T) {
	var logs, out bytes.Buffer
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&logs, nil)))
	adapter.out = &out
	code := -1
	adapter.exit = func(c int) { code = c }

	adapter.HandleError(ConfigError("bad config").Build())

	if code != 7 {
		t.Errorf("expected exit code 7, got %d", code)
	}
	if !strings.Contains(out.String(), "bad config") {
		t.Errorf("expected message on output, got %q", out.String())
	}
	if !strings.Contains(logs.String(), "category=config") {
		t.Errorf("expected fatal error to be logged, got %q", logs.String())
	}

	code = -1
	adapter.HandleError(nil)
	if code != -1 {
		t.Error("expected nil error to not exit")
	}
}
