// Package compiler wraps the external Elm compiler.
//
// A Compiler turns a set of Elm entry modules into a single JavaScript bundle.
// Failures reported by the compiler itself are returned as classified errors in
// the compile category whose message is the compiler's report, so callers can
// record them verbatim.
package compiler

import "context"

// Compiler produces one bundle from the given source files.
type Compiler interface {
	// Init verifies the compiler is usable (binary present, project initialized).
	Init(ctx context.Context) error
	// Compile compiles sources into a bundle named bundleName and returns its bytes.
	Compile(ctx context.Context, sources []string, bundleName string) ([]byte, error)
}

// Func adapts a plain function to the Compiler interface. Init is a no-op.
type Func func(ctx context.Context, sources []string, bundleName string) ([]byte, error)

func (f Func) Init(context.Context) error { return nil }

func (f Func) Compile(ctx context.Context, sources []string, bundleName string) ([]byte, error) {
	return f(ctx, sources, bundleName)
}
