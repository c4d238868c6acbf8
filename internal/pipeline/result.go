package pipeline

import (
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	ferrors "git.home.luguber.info/inful/elmtasks/internal/foundation/errors"
)

// Outcome tags a BuildResult as one of its two arms.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// BuildResult is the value every Compile run produces.
//
// Success carries Output (the bytes written), Path and Hash.
// Failure carries Message (the text recorded in the error log) and Err.
type BuildResult struct {
	ID       string
	Outcome  Outcome
	Output   []byte
	Path     string
	Hash     string
	Message  string
	Err      error
	Started  time.Time
	Duration time.Duration
}

// OK reports whether the result is the success arm.
func (r BuildResult) OK() bool {
	return r.Outcome == OutcomeSuccess
}

func successResult(id string, started time.Time, path string, output []byte) BuildResult {
	return BuildResult{
		ID:      id,
		Outcome: OutcomeSuccess,
		Output:  output,
		Path:    path,
		Hash:    ContentHash(output),
		Started: started,
	}
}

func failureResult(id string, started time.Time, err error) BuildResult {
	return BuildResult{
		ID:      id,
		Outcome: OutcomeFailure,
		Message: ferrors.MessageOf(err),
		Err:     err,
		Started: started,
	}
}

// ContentHash returns the hex xxhash64 of data. Reload events carry it so
// clients can tell whether the bundle actually changed.
func ContentHash(data []byte) string {
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}
