package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	ferrors "git.home.luguber.info/inful/elmtasks/internal/foundation/errors"
)

// Validate checks the configuration for values the pipeline cannot work with.
func Validate(cfg *Config) error {
	if !doublestar.ValidatePattern(filepath.ToSlash(cfg.Frontend.JSSource)) {
		return ferrors.ValidationError(fmt.Sprintf("invalid frontend.js_source glob: %q", cfg.Frontend.JSSource)).Build()
	}
	if err := ValidateDestination(cfg.Frontend.JSDest); err != nil {
		return err
	}
	if strings.ContainsAny(cfg.Frontend.Bundle, `/\`) {
		return ferrors.ValidationError(fmt.Sprintf("frontend.bundle must be a file name, got %q", cfg.Frontend.Bundle)).Build()
	}
	if cfg.LiveReload.Port < 0 || cfg.LiveReload.Port > 65535 {
		return ferrors.ValidationError(fmt.Sprintf("livereload.port out of range: %d", cfg.LiveReload.Port)).Build()
	}
	if cfg.Notify.NATS.Enabled && cfg.Notify.NATS.URL == "" {
		return ferrors.ValidationError("notify.nats.url is required when NATS notifications are enabled").Build()
	}
	switch cfg.Retry.Mode {
	case "fixed", "linear", "exponential":
	default:
		return ferrors.ValidationError(fmt.Sprintf("retry.mode must be fixed, linear or exponential, got %q", cfg.Retry.Mode)).Build()
	}
	if cfg.Retry.MaxRetries < 0 {
		return ferrors.ValidationError("retry.max_retries cannot be negative").Build()
	}
	return nil
}

// ValidateDestination rejects destinations that elm:clean must never remove.
func ValidateDestination(dest string) error {
	if strings.TrimSpace(dest) == "" {
		return ferrors.ValidationError("frontend.js_dest cannot be empty").Build()
	}
	cleaned := filepath.Clean(dest)
	if cleaned == "." || cleaned == ".." || filepath.Dir(cleaned) == cleaned || containsWorkingDir(cleaned) {
		return ferrors.ValidationError(fmt.Sprintf("refusing to use %q as frontend.js_dest", dest)).Build()
	}
	return nil
}

// containsWorkingDir reports whether dest is the working directory or one of
// its ancestors.
func containsWorkingDir(dest string) bool {
	abs, err := filepath.Abs(dest)
	if err != nil {
		return true
	}
	wd, err := os.Getwd()
	if err != nil {
		return true
	}
	abs, wd = resolveLinks(abs), resolveLinks(wd)
	rel, err := filepath.Rel(abs, wd)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolveLinks follows symlinks in the longest existing prefix of path.
func resolveLinks(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	parent := filepath.Dir(path)
	if parent == path {
		return path
	}
	return filepath.Join(resolveLinks(parent), filepath.Base(path))
}
