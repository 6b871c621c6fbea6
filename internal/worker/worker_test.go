package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/orderops/unshipped/internal/worker"
)

func TestRun_RetriesTransient(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0
	failUntil := 2

	fn := func(_ context.Context, _ string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls <= failUntil {
			return "", &worker.TransientError{Err: errors.New("try again")}
		}
		return "ok", nil
	}

	out, err := worker.Run(context.Background(), []string{"ACME"}, fn, worker.Options{
		Workers:           1,
		MaxRetries:        3,
		FailurePolicy:     worker.FailurePolicyPartialOutput,
		BackoffInitial:    1 * time.Millisecond,
		BackoffMax:        2 * time.Millisecond,
		BackoffJitterFrac: 0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 output, got %d", len(out))
	}
	if out[0].Err != nil || out[0].Output != "ok" {
		t.Fatalf("unexpected output: %#v", out[0])
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRun_DoesNotRetryPermanent(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0

	fn := func(_ context.Context, _ string) (string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return "", errors.New("permanent")
	}

	out, err := worker.Run(context.Background(), []string{"ACME"}, fn, worker.Options{
		Workers:           1,
		MaxRetries:        10,
		FailurePolicy:     worker.FailurePolicyPartialOutput,
		BackoffInitial:    1 * time.Millisecond,
		BackoffMax:        1 * time.Millisecond,
		BackoffJitterFrac: 0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Err == nil || out[0].Err.Error() != "permanent" {
		t.Fatalf("unexpected output: %#v", out[0])
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRun_PartialOutputContinues(t *testing.T) {
	t.Parallel()

	fn := func(_ context.Context, v string) (string, error) {
		if v == "bad" {
			return "", errors.New("boom")
		}
		return "ok", nil
	}

	out, err := worker.Run(context.Background(), []string{"bad", "good"}, fn, worker.Options{
		Workers:       1,
		MaxRetries:    0,
		FailurePolicy: worker.FailurePolicyPartialOutput,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(out))
	}
	if out[0].Err == nil || out[0].Err.Error() != "boom" {
		t.Fatalf("unexpected out[0]: %#v", out[0])
	}
	if out[1].Err != nil || out[1].Output != "ok" {
		t.Fatalf("unexpected out[1]: %#v", out[1])
	}
}

func TestRun_FailFastStops(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0

	fn := func(_ context.Context, v string) (string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		if v == "bad" {
			return "", errors.New("boom")
		}
		t.Errorf("unexpected call for %q", v)
		return "", nil
	}

	out, err := worker.Run(context.Background(), []string{"bad", "good"}, fn, worker.Options{
		Workers:       1,
		MaxRetries:    0,
		FailurePolicy: worker.FailurePolicyFailFast,
	})
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom error, got %v", err)
	}
	if out != nil {
		t.Fatalf("expected nil output on fail-fast, got %#v", out)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRun_PreservesInputOrder(t *testing.T) {
	t.Parallel()

	fn := func(_ context.Context, v int) (int, error) {
		if v%3 == 0 {
			time.Sleep(2 * time.Millisecond)
		}
		return v * 10, nil
	}

	units := []int{0, 1, 2, 3, 4, 5, 6, 7}
	out, err := worker.Run(context.Background(), units, fn, worker.Options{Workers: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, res := range out {
		if res.Input != units[i] || res.Output != units[i]*10 {
			t.Fatalf("result %d out of order: %#v", i, res)
		}
	}
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("x"), false},
		{"transient", &worker.TransientError{Err: errors.New("x")}, true},
		{"wrapped transient", errors.Join(errors.New("outer"), &worker.TransientError{Err: errors.New("x")}), true},
		{"deadline", context.DeadlineExceeded, true},
	}
	for _, tc := range cases {
		if got := worker.IsTransient(tc.err); got != tc.want {
			t.Errorf("%s: IsTransient=%t, want %t", tc.name, got, tc.want)
		}
	}
}
