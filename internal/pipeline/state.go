package pipeline

import (
	"sync"
	"time"
)

// State is the pipeline's position in
// Idle → Cleaning → Compiling → (Compiled | CompiledWithErrors) → Watching → Compiling → …
type State string

const (
	StateIdle               State = "idle"
	StateCleaning           State = "cleaning"
	StateCompiling          State = "compiling"
	StateCompiled           State = "compiled"
	StateCompiledWithErrors State = "compiled_with_errors"
	StateWatching           State = "watching"
)

// StateSnapshot is a point-in-time view of the tracker.
type StateSnapshot struct {
	State     State     `json:"state"`
	Since     time.Time `json:"since"`
	LastBuild string    `json:"last_build,omitempty"`
	Outcome   Outcome   `json:"last_outcome,omitempty"`
}

// StateTracker records the current state. Reads come from HTTP handlers, so it is locked.
type StateTracker struct {
	mu       sync.RWMutex
	snapshot StateSnapshot
	onChange func(from, to State)
}

func newStateTracker(onChange func(from, to State)) *StateTracker {
	return &StateTracker{
		snapshot: StateSnapshot{State: StateIdle, Since: time.Now()},
		onChange: onChange,
	}
}

func (t *StateTracker) set(to State) {
	t.mu.Lock()
	from := t.snapshot.State
	t.snapshot.State = to
	t.snapshot.Since = time.Now()
	t.mu.Unlock()
	if t.onChange != nil && from != to {
		t.onChange(from, to)
	}
}

func (t *StateTracker) finish(res BuildResult) {
	t.mu.Lock()
	t.snapshot.LastBuild = res.ID
	t.snapshot.Outcome = res.Outcome
	t.mu.Unlock()
	if res.OK() {
		t.set(StateCompiled)
	} else {
		t.set(StateCompiledWithErrors)
	}
}

// Current returns the current state.
func (t *StateTracker) Current() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot.State
}

// Snapshot returns a copy of the tracker contents.
func (t *StateTracker) Snapshot() StateSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot
}
