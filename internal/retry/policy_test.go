package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestDefaultPolicy verifies the baseline default values.
func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.Mode != BackoffLinear {
		t.Fatalf("expected linear default mode got %s", p.Mode)
	}
	if p.MaxRetries != 2 {
		t.Fatalf("expected max retries 2 got %d", p.MaxRetries)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
}

// TestNewPolicyOverrides checks override precedence and clamping when initial > max.
func TestNewPolicyOverrides(t *testing.T) {
	p := NewPolicy(BackoffFixed, 5*time.Second, 2*time.Second, 5)
	if p.Initial != 2*time.Second {
		t.Fatalf("expected clamped initial 2s got %v", p.Initial)
	}
	if p.Mode != BackoffFixed {
		t.Fatalf("expected fixed mode got %s", p.Mode)
	}
	if p.MaxRetries != 5 {
		t.Fatalf("expected maxRetries 5 got %d", p.MaxRetries)
	}

	unknown := NewPolicy("bogus", 0, 0, -1)
	if unknown != DefaultPolicy() {
		t.Fatalf("expected defaults for invalid input, got %+v", unknown)
	}
}

// TestDelayModes ensures fixed, linear, exponential behave and respect cap.
func TestDelayModes(t *testing.T) {
	cases := []struct {
		name    string
		policy  Policy
		attempt int
		want    time.Duration
	}{
		{"fixed", NewPolicy(BackoffFixed, 100*time.Millisecond, 500*time.Millisecond, 3), 3, 100 * time.Millisecond},
		{"linear", NewPolicy(BackoffLinear, 100*time.Millisecond, 250*time.Millisecond, 5), 2, 200 * time.Millisecond},
		{"linear capped", NewPolicy(BackoffLinear, 100*time.Millisecond, 250*time.Millisecond, 5), 3, 250 * time.Millisecond},
		{"exponential", NewPolicy(BackoffExponential, 50*time.Millisecond, 160*time.Millisecond, 5), 2, 100 * time.Millisecond},
		{"exponential capped", NewPolicy(BackoffExponential, 50*time.Millisecond, 160*time.Millisecond, 5), 3, 160 * time.Millisecond},
		{"no retry", DefaultPolicy(), 0, 0},
	}
	for _, c := range cases {
		if got := c.policy.Delay(c.attempt); got != c.want {
			t.Fatalf("%s attempt %d expected %v got %v", c.name, c.attempt, c.want, got)
		}
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	p := NewPolicy(BackoffFixed, time.Millisecond, time.Millisecond, 3)
	calls := 0
	err := p.Do(t.Context(), func() error {
		calls++
		if calls < 3 {
			return errors.New("busy")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoGivesUpWithLastError(t *testing.T) {
	p := NewPolicy(BackoffFixed, time.Millisecond, time.Millisecond, 2)
	calls := 0
	err := p.Do(t.Context(), func() error {
		calls++
		return errors.New("busy")
	})
	if err == nil || err.Error() != "busy" || calls != 3 {
		t.Fatalf("expected failure after 3 calls, got err=%v calls=%d", err, calls)
	}
}

func TestDoStopsOnCancel(t *testing.T) {
	p := NewPolicy(BackoffFixed, time.Hour, time.Hour, 5)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	calls := 0
	err := p.Do(ctx, func() error {
		calls++
		return errors.New("busy")
	})
	if err == nil || calls > 1 {
		t.Fatalf("expected at most one attempt on cancelled context, got err=%v calls=%d", err, calls)
	}
}

func TestDelayClampsLargeRetryCounts(t *testing.T) {
	exp := NewPolicy(BackoffExponential, time.Second, time.Minute, 100)
	for _, n := range []int{7, 40, 64, 100, 1 << 20} {
		require.Equal(t, time.Minute, exp.Delay(n), n)
	}
	require.Equal(t, 4*time.Second, exp.Delay(3))

	lin := NewPolicy(BackoffLinear, time.Hour, 2*time.Hour, 100)
	require.Equal(t, 2*time.Hour, lin.Delay(1<<40))
	require.Equal(t, time.Hour, lin.Delay(1))
}

func TestValidateRejectsMaxBelowInitial(t *testing.T) {
	p := NewPolicy(BackoffLinear, 2*time.Second, time.Second, 1)
	require.Error(t, p.Validate())
	require.NoError(t, NewPolicy(BackoffLinear, time.Second, time.Second, 1).Validate())
}
