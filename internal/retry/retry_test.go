package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeSleeper struct {
	delays []time.Duration
}

func (f *fakeSleeper) Sleep(_ context.Context, d time.Duration) error {
	f.delays = append(f.delays, d)
	return nil
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	s := &fakeSleeper{}
	p := Policy{MaxAttempts: 3, Delay: 2 * time.Second, Sleep: s.Sleep}

	calls := 0
	err := Do(context.Background(), p, func(attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("boom")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(s.delays) != 2 || s.delays[0] != 2*time.Second || s.delays[1] != 2*time.Second {
		t.Errorf("fixed delays expected, got %v", s.delays)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	s := &fakeSleeper{}
	var seen []int
	p := Policy{
		MaxAttempts: 3,
		Delay:       time.Second,
		Sleep:       s.Sleep,
		OnError:     func(attempt int, _ error) { seen = append(seen, attempt) },
	}

	boom := errors.New("boom")
	err := Do(context.Background(), p, func(int) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Errorf("OnError ordinals = %v", seen)
	}
	if len(s.delays) != 2 {
		t.Errorf("expected no sleep after the last attempt, got %d sleeps", len(s.delays))
	}
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	s := &fakeSleeper{}
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 5, Sleep: s.Sleep}, func(int) error {
		calls++
		return Permanent(errors.New("404"))
	})
	if !errors.Is(err, ErrPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_RetryablePredicate(t *testing.T) {
	s := &fakeSleeper{}
	fatal := errors.New("fatal")
	calls := 0
	err := Do(context.Background(), Policy{
		MaxAttempts: 3,
		Sleep:       s.Sleep,
		Retryable:   func(err error) bool { return !errors.Is(err, fatal) },
	}, func(int) error {
		calls++
		return fatal
	})
	if err != fatal {
		t.Fatalf("expected unwrapped fatal error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_BackoffGrowsLinearly(t *testing.T) {
	s := &fakeSleeper{}
	_ = Do(context.Background(), Policy{MaxAttempts: 3, Delay: time.Second, Backoff: true, Sleep: s.Sleep},
		func(int) error { return errors.New("x") })
	if len(s.delays) != 2 || s.delays[1] != 2*time.Second {
		t.Errorf("delays = %v", s.delays)
	}
}

func TestDo_ContextCancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, Policy{MaxAttempts: 3, Delay: time.Hour}, func(int) error { return errors.New("x") })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
