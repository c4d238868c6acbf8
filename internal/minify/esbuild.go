package minify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	ferrors "git.home.luguber.info/inful/elmtasks/internal/foundation/errors"
)

// Esbuild minifies with esbuild's transform API. Elm output is plain ES5 in an
// IIFE, so the bundle is transformed as-is without re-bundling.
type Esbuild struct {
	// Target is the ECMAScript level of the output. Zero keeps ES5-compatible syntax.
	Target api.Target
}

// NewEsbuild returns an Esbuild minifier targeting ES5.
func NewEsbuild() *Esbuild {
	return &Esbuild{Target: api.ES5}
}

func (e *Esbuild) Minify(ctx context.Context, name string, src []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := api.Transform(string(src), api.TransformOptions{
		Loader:            api.LoaderJS,
		Target:            e.Target,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
		Sourcefile:        name,
		LogLevel:          api.LogLevelSilent,
	})

	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, msg := range result.Errors {
			slog.Error("Minify error", "file", name, "error", msg.Text)
			msgs = append(msgs, formatMessage(msg))
		}
		return nil, ferrors.MinifyError(strings.Join(msgs, "\n")).
			WithContext("file", name).
			Build()
	}
	for _, msg := range result.Warnings {
		slog.Debug("Minify warning", "file", name, "warning", msg.Text)
	}

	slog.Debug("Minified bundle", "file", name, "before", len(src), "after", len(result.Code))
	return result.Code, nil
}

func formatMessage(msg api.Message) string {
	if msg.Location == nil {
		return msg.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text)
}
