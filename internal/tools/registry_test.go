package tools

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// flakyTool fails a set number of times before succeeding.
type flakyTool struct {
	failures int
	calls    int
	panics   bool
}

func (f *flakyTool) Name() string            { return "flaky" }
func (f *flakyTool) Category() Category      { return CategoryUtility }
func (f *flakyTool) Description() string     { return "fails then succeeds" }
func (f *flakyTool) Parameters() []Parameter { return nil }

func (f *flakyTool) Execute(_ context.Context, _ map[string]any) Result {
	f.calls++
	if f.calls <= f.failures {
		if f.panics {
			panic("tool blew up")
		}
		return Failure("attempt %d failed", f.calls)
	}
	return Success(fmt.Sprintf("ok on attempt %d", f.calls))
}

func newTestRegistry() (*Registry, *[]time.Duration) {
	var sleeps []time.Duration
	r := NewRegistry(nil).WithSleep(func(d time.Duration) {
		sleeps = append(sleeps, d)
	})
	return r, &sleeps
}

func TestExecuteUnknownToolNoRetry(t *testing.T) {
	r, sleeps := newTestRegistry()

	result := r.Execute(context.Background(), "nonexistent", nil)
	if result.Success {
		t.Error("unknown tool must fail")
	}
	if result.Err == "" {
		t.Error("expected an error message")
	}
	if len(*sleeps) != 0 {
		t.Errorf("unknown tool must not trigger backoff, slept %v", *sleeps)
	}
}

func TestExecuteRetriesWithExponentialBackoff(t *testing.T) {
	r, sleeps := newTestRegistry()
	tool := &flakyTool{failures: 2}
	r.Register(tool)

	result := r.Execute(context.Background(), "flaky", nil)
	if !result.Success {
		t.Fatalf("expected success after retries, got %q", result.Err)
	}
	if tool.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", tool.calls)
	}
	want := []time.Duration{1 * time.Second, 2 * time.Second}
	if len(*sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", *sleeps, want)
	}
	for i := range want {
		if (*sleeps)[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, (*sleeps)[i], want[i])
		}
	}
}

func TestExecuteExhaustsAttempts(t *testing.T) {
	r, sleeps := newTestRegistry()
	tool := &flakyTool{failures: 10}
	r.Register(tool)

	result := r.Execute(context.Background(), "flaky", nil)
	if result.Success {
		t.Error("expected failure after exhausting attempts")
	}
	if tool.calls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", tool.calls)
	}
	// No sleep after the final attempt.
	if len(*sleeps) != 2 {
		t.Errorf("expected 2 backoff sleeps, got %v", *sleeps)
	}
}

func TestExecuteRecoversFromPanic(t *testing.T) {
	r, _ := newTestRegistry()
	tool := &flakyTool{failures: 1, panics: true}
	r.Register(tool)

	result := r.Execute(context.Background(), "flaky", nil)
	if !result.Success {
		t.Fatalf("expected recovery and eventual success, got %q", result.Err)
	}
}

func TestExecuteMeasuresDuration(t *testing.T) {
	r, _ := newTestRegistry()
	r.Register(&flakyTool{})

	result := r.Execute(context.Background(), "flaky", nil)
	if !result.Success {
		t.Fatalf("execute failed: %q", result.Err)
	}
	if result.Duration < 0 {
		t.Errorf("duration should be non-negative, got %v", result.Duration)
	}
}

func TestRegisterLastWins(t *testing.T) {
	r, _ := newTestRegistry()
	first := &flakyTool{failures: 10}
	second := &flakyTool{}
	r.Register(first)
	r.Register(second)

	result := r.Execute(context.Background(), "flaky", nil)
	if !result.Success {
		t.Error("the replacement tool should have been executed")
	}
	if first.calls != 0 {
		t.Error("the replaced tool must not be called")
	}
	if got := len(r.Names()); got != 1 {
		t.Errorf("expected 1 registered name, got %d", got)
	}
}
