package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/example/washops/backend/internal/service"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) Sweep(ctx context.Context) (service.SweepResult, error) {
	s.calls.Add(1)
	return service.SweepResult{Jobs: 1}, s.err
}

func TestReaperSweepsUntilCancelled(t *testing.T) {
	sweeper := &countingSweeper{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewReaper(sweeper, 5*time.Millisecond).Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for sweeper.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("reaper did not sweep")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("reaper did not stop")
	}
}

func TestReaperSurvivesSweepErrors(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("db down")}
	r := NewReaper(sweeper, 0)
	if r.interval != time.Minute {
		t.Fatalf("expected default interval, got %s", r.interval)
	}
	r.sweep(context.Background())
	r.sweep(context.Background())
	if sweeper.calls.Load() != 2 {
		t.Fatalf("expected two sweeps")
	}
}
