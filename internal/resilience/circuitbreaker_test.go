package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errTest = errors.New("test error")

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(cfg Config) (*CircuitBreaker, *fakeClock) {
	clk := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := New(cfg)
	cb.now = clk.Now
	return cb, clk
}

func fail(context.Context) error    { return errTest }
func succeed(context.Context) error { return nil }

func TestNew_Defaults(t *testing.T) {
	cb := New(Config{Name: "test"})
	if cb.maxFailures != 5 {
		t.Errorf("maxFailures = %d, want 5", cb.maxFailures)
	}
	if cb.resetTimeout != 30*time.Second {
		t.Errorf("resetTimeout = %v, want 30s", cb.resetTimeout)
	}
	if cb.halfOpenMax != 1 {
		t.Errorf("halfOpenMax = %d, want 1", cb.halfOpenMax)
	}
	if cb.State() != StateClosed {
		t.Errorf("initial state = %v, want closed", cb.State())
	}
	if cb.Name() != "test" {
		t.Errorf("Name = %q", cb.Name())
	}
}

func TestCircuitBreaker_ClosedAllowsCalls(t *testing.T) {
	cb, _ := newTestBreaker(Config{MaxFailures: 3})
	called := false
	err := cb.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("Execute = %v, called = %v", err, called)
	}
}

func TestCircuitBreaker_ClosedToOpen(t *testing.T) {
	cb, _ := newTestBreaker(Config{MaxFailures: 3, ResetTimeout: time.Hour})
	ctx := context.Background()

	for range 3 {
		if err := cb.Execute(ctx, fail); !errors.Is(err, errTest) {
			t.Fatalf("err = %v, want the call's own error", err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open after 3 failures", cb.State())
	}

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("fn ran while the breaker was open")
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(Config{MaxFailures: 3})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, succeed)
	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed (success resets the counter)", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenToClosed(t *testing.T) {
	cb, clk := newTestBreaker(Config{MaxFailures: 2, ResetTimeout: time.Minute, HalfOpenMax: 2})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)
	clk.Advance(time.Minute)

	if cb.State() != StateHalfOpen {
		t.Fatalf("state = %v, want half-open after timeout", cb.State())
	}
	for i := range 2 {
		if err := cb.Execute(ctx, succeed); err != nil {
			t.Fatalf("probe %d: %v", i, err)
		}
	}
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed after successful probes", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenToOpen(t *testing.T) {
	cb, clk := newTestBreaker(Config{MaxFailures: 2, ResetTimeout: time.Minute, HalfOpenMax: 3})
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)
	clk.Advance(time.Minute)

	if err := cb.Execute(ctx, fail); !errors.Is(err, errTest) {
		t.Fatalf("err = %v, want probe error", err)
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open after failed probe", cb.State())
	}
	if err := cb.Execute(ctx, succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen right after re-opening", err)
	}
}

func TestCircuitBreaker_HalfOpenProbeBudget(t *testing.T) {
	cb, clk := newTestBreaker(Config{MaxFailures: 1, ResetTimeout: time.Minute, HalfOpenMax: 1})
	ctx := context.Background()
	_ = cb.Execute(ctx, fail)
	clk.Advance(time.Minute)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	if err := cb.Execute(ctx, succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second probe err = %v, want ErrCircuitOpen", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("probe: %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_CancellationNotCounted(t *testing.T) {
	cb, _ := newTestBreaker(Config{MaxFailures: 1, ResetTimeout: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed; cancellation is not a backend failure", cb.State())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb, _ := newTestBreaker(Config{MaxFailures: 2, ResetTimeout: time.Hour})
	ctx := context.Background()
	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)
	if cb.State() != StateOpen {
		t.Fatal("expected open")
	}

	cb.Reset()
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed after reset", cb.State())
	}
	if err := cb.Execute(ctx, succeed); err != nil {
		t.Fatalf("unexpected error after reset: %v", err)
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	var mu sync.Mutex
	var transitions []string
	cb, clk := newTestBreaker(Config{
		Name:         "sink",
		MaxFailures:  1,
		ResetTimeout: time.Second,
		OnStateChange: func(name string, from, to State) {
			mu.Lock()
			defer mu.Unlock()
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
		},
	})
	ctx := context.Background()
	_ = cb.Execute(ctx, fail)
	clk.Advance(time.Second)
	_ = cb.Execute(ctx, succeed)

	want := []string{"sink:closed->open", "sink:open->half-open", "sink:half-open->closed"}
	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %q, want %q", i, transitions[i], want[i])
		}
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
