// Package errors provides the classified error primitives used across elmtasks.
//
// Every failure that crosses a package boundary is a ClassifiedError carrying a
// category, a severity and structured context. The CLI adapter turns those into
// exit codes and log lines.
//
// Example usage:
//
//	err := errors.CompileError(stderr).
//		WithContext("sources", files).
//		WithCause(runErr).
//		Build()
package errors
