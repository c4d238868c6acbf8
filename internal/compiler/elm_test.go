package compiler

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/elmtasks/internal/config"
	ferrors "git.home.luguber.info/inful/elmtasks/internal/foundation/errors"
)

// fakeElm behaves like `elm make`: it concatenates its sources into --output
// and fails with "Parse error" when a source contains BROKEN.
const fakeElm = `#!/bin/sh
if [ "$1" = "--version" ]; then echo 0.19.1; exit 0; fi
shift
out=""
srcs=""
for a in "$@"; do
  case "$a" in
    --output=*) out="${a#--output=}" ;;
    --*) ;;
    *) srcs="$srcs $a" ;;
  esac
done
for s in $srcs; do
  if grep -q BROKEN "$s"; then echo "Parse error" >&2; exit 1; fi
done
cat $srcs > "$out"
`

func newFakeCompiler(t *testing.T) (*ElmCompiler, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake compiler is a shell script")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "elm")
	require.NoError(t, os.WriteFile(bin, []byte(fakeElm), 0o755))

	cfg := config.Default()
	cfg.Compiler.Binary = bin
	cfg.Compiler.WorkDir = dir
	return NewElmCompiler(cfg), dir
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestElmCompiler_CompileConcatenatesSources(t *testing.T) {
	c, dir := newFakeCompiler(t)
	a := writeSource(t, dir, "Main.elm", "main\n")
	b := writeSource(t, dir, "Other.elm", "other\n")

	bundle, err := c.Compile(t.Context(), []string{a, b}, "app.js")
	require.NoError(t, err)
	require.Equal(t, "main\nother\n", string(bundle))
}

func TestElmCompiler_CompileFailureCarriesCompilerMessage(t *testing.T) {
	c, dir := newFakeCompiler(t)
	src := writeSource(t, dir, "Main.elm", "BROKEN\n")

	_, err := c.Compile(t.Context(), []string{src}, "app.js")
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryCompile))
	require.Equal(t, "Parse error", ferrors.MessageOf(err))
}

func TestElmCompiler_CompileWithoutSources(t *testing.T) {
	c, _ := newFakeCompiler(t)
	_, err := c.Compile(t.Context(), nil, "app.js")
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryCompile))
}

func TestElmCompiler_Init(t *testing.T) {
	c, dir := newFakeCompiler(t)

	err := c.Init(t.Context())
	require.Error(t, err, "elm.json is missing")
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))

	writeSource(t, dir, "elm.json", "{}")
	require.NoError(t, c.Init(t.Context()))
}

func TestElmCompiler_InitMissingBinary(t *testing.T) {
	cfg := config.Default()
	cfg.Compiler.Binary = "elm-binary-that-does-not-exist"
	err := NewElmCompiler(cfg).Init(t.Context())
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
}

func TestElmCompiler_MakeArgs(t *testing.T) {
	cfg := config.Default()
	cfg.Compiler.Args = []string{"--debug"}
	require.Equal(t,
		[]string{"make", "src/Main.elm", "--output=/tmp/app.js", "--debug"},
		NewElmCompiler(cfg).makeArgs([]string{"src/Main.elm"}, "/tmp/app.js"))

	cfg.Production = true
	cfg.Compiler.Optimize = true
	cfg.Compiler.Args = nil
	require.Equal(t,
		[]string{"make", "src/Main.elm", "--output=/tmp/app.js", "--optimize"},
		NewElmCompiler(cfg).makeArgs([]string{"src/Main.elm"}, "/tmp/app.js"))
}
