package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amityadav/clipping/internal/core"
	"go.uber.org/zap"
)

type fakeRunner struct {
	calls    atomic.Int32
	deadline atomic.Bool
	err      error
}

func (f *fakeRunner) Run(ctx context.Context) (*core.RunReport, error) {
	f.calls.Add(1)
	_, ok := ctx.Deadline()
	f.deadline.Store(ok)
	if f.err != nil {
		return &core.RunReport{}, f.err
	}
	return &core.RunReport{RunID: "r1", Success: true}, nil
}

func TestRunOnceBoundsContext(t *testing.T) {
	r := &fakeRunner{}
	w := NewWorker(r, "@every 1h", time.UTC, time.Minute, zap.NewNop())
	w.RunOnce()
	if r.calls.Load() != 1 || !r.deadline.Load() {
		t.Fatalf("calls=%d deadline=%v", r.calls.Load(), r.deadline.Load())
	}

	failing := &fakeRunner{err: core.ErrConfigMissing}
	NewWorker(failing, "@every 1h", nil, 0, zap.NewNop()).RunOnce()
	if failing.calls.Load() != 1 || failing.deadline.Load() {
		t.Errorf("unbounded run: calls=%d deadline=%v", failing.calls.Load(), failing.deadline.Load())
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	w := NewWorker(&fakeRunner{}, "not a schedule", time.UTC, 0, zap.NewNop())
	if err := w.Start(); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestStartAndStop(t *testing.T) {
	r := &fakeRunner{err: errors.New("boom")}
	w := NewWorker(r, "@every 1s", time.UTC, time.Second, zap.NewNop())
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for r.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.Stop(ctx)
	if r.calls.Load() == 0 {
		t.Error("scheduled job never ran")
	}
}
