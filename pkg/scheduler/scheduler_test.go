package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mudcore/mudcore/pkg/gameobject"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type tickingObject struct {
	*gameobject.BaseObject
	count int32
}

func newTickingObject() *tickingObject {
	o := &tickingObject{BaseObject: gameobject.NewBaseObject()}
	o.SetIdentity("/std/ticker", "/std/ticker", false, nil)
	return o
}

func (o *tickingObject) Heartbeat(ctx context.Context) error {
	atomic.AddInt32(&o.count, 1)
	return nil
}

// Heartbeat increments >= 3 times after 350ms at a 100ms interval;
// SetHeartbeat(false) stops further increments within one tick.
func TestHeartbeatTicksAndStops(t *testing.T) {
	s := New(testLogger(), 100)
	obj := newTickingObject()
	s.SetHeartbeat(obj, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	time.Sleep(350 * time.Millisecond)
	count := atomic.LoadInt32(&obj.count)
	if count < 3 {
		t.Fatalf("expected >= 3 heartbeat ticks, got %d", count)
	}

	s.SetHeartbeat(obj, false)
	time.Sleep(150 * time.Millisecond)
	after := atomic.LoadInt32(&obj.count)
	if after != count {
		t.Fatalf("expected no further increments after disabling heartbeat, before=%d after=%d", count, after)
	}
}

func TestHeartbeatSetIdempotent(t *testing.T) {
	s := New(testLogger(), 100)
	obj := newTickingObject()
	s.SetHeartbeat(obj, true)
	s.SetHeartbeat(obj, true)
	if s.HeartbeatCount() != 1 {
		t.Fatalf("expected idempotent add, count=%d", s.HeartbeatCount())
	}
	s.SetHeartbeat(obj, false)
	s.SetHeartbeat(obj, false)
	if s.HeartbeatCount() != 0 {
		t.Fatalf("expected idempotent remove, count=%d", s.HeartbeatCount())
	}
}

// One-shot at 50ms + recurring every 50ms: the one-shot fires exactly
// once, the recurring keeps firing (bounded below by the 100ms poll
// cadence), and cancelling the recurring id stops further fires.
func TestCallOutOneShotAndRecurring(t *testing.T) {
	s := New(testLogger(), 1000)
	var oneShotCount int32
	var recurringCount int32

	s.CallOut(func(ctx context.Context) { atomic.AddInt32(&oneShotCount, 1) }, 50)
	recurringID := s.CallOutRepeat(func(ctx context.Context) { atomic.AddInt32(&recurringCount, 1) }, 50)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	time.Sleep(560 * time.Millisecond)

	if got := atomic.LoadInt32(&oneShotCount); got != 1 {
		t.Fatalf("expected one-shot to fire exactly once, got %d", got)
	}
	recurringBefore := atomic.LoadInt32(&recurringCount)
	if recurringBefore < 4 {
		t.Fatalf("expected recurring to fire >= 4 times, got %d", recurringBefore)
	}

	if !s.RemoveCallOut(recurringID) {
		t.Fatal("expected RemoveCallOut to succeed for a live recurring id")
	}
	time.Sleep(150 * time.Millisecond)
	if got := atomic.LoadInt32(&recurringCount); got != recurringBefore {
		t.Fatalf("expected no further recurring fires after cancel, before=%d after=%d", recurringBefore, got)
	}
}

// Boundary: removeCallOut of an unknown id returns false.
func TestRemoveUnknownCallOut(t *testing.T) {
	s := New(testLogger(), 1000)
	if s.RemoveCallOut(99999) {
		t.Fatal("expected false for unknown call-out id")
	}
}

func TestCleanupForObjectDropsTrackedCallOutsOnly(t *testing.T) {
	s := New(testLogger(), 1000)
	owner := newTickingObject()
	s.SetHeartbeat(owner, true)

	trackedID := s.CallOutForObject(owner, func(ctx context.Context) {}, 10000)
	untrackedID := s.CallOut(func(ctx context.Context) {}, 10000)

	s.CleanupForObject(owner.ObjectID())

	if s.HasHeartbeat(owner) {
		t.Fatal("expected heartbeat to be stripped")
	}
	if _, ok := s.GetCallOut(trackedID); ok {
		t.Fatal("expected tracked call-out to be removed")
	}
	if _, ok := s.GetCallOut(untrackedID); !ok {
		t.Fatal("expected untracked call-out to survive cleanup")
	}
}

func TestStartStopPreservesRegisteredSets(t *testing.T) {
	s := New(testLogger(), 100)
	obj := newTickingObject()
	s.SetHeartbeat(obj, true)
	s.CallOut(func(ctx context.Context) {}, 10000)

	ctx := context.Background()
	s.Start(ctx)
	s.Stop()
	s.Stop() // idempotent

	if s.HeartbeatCount() != 1 {
		t.Fatal("expected heartbeat set preserved across stop")
	}

	s.Clear()
	if s.HeartbeatCount() != 0 {
		t.Fatal("expected Clear to empty the heartbeat set")
	}
}
