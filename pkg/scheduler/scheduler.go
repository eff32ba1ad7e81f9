// Package scheduler implements the fixed-interval heartbeat fan-out and
// one-shot/recurring delayed call-outs described for the driver core.
// Execution is single-threaded and cooperative: no user callback
// observes another running concurrently.
package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mudcore/mudcore/pkg/gameobject"
)

const (
	// DefaultHeartbeatIntervalMs is the default heartbeat tick period.
	DefaultHeartbeatIntervalMs = 2000
	callOutPollInterval        = 100 * time.Millisecond
)

type callOutEntry struct {
	id          int64
	callback    func(ctx context.Context)
	executeAt   time.Time
	recurring   bool
	intervalMs  int
	ownerObject string // empty unless registered via CallOutForObject
	seq         int64
}

// Scheduler owns the heartbeat set and call-out map. All public methods
// are safe to call from any goroutine; the two driving loops
// (heartbeat ticker, call-out poller) each run on their own goroutine
// and share one lock around user callbacks, so no two callbacks ever
// overlap.
type Scheduler struct {
	log *slog.Logger

	mu sync.Mutex
	// runMu serializes user callbacks across the heartbeat and call-out
	// loops.
	runMu            sync.Mutex
	heartbeatObjects []gameobject.GameObject // insertion order
	heartbeatSet     map[string]bool         // objectId -> present
	callOuts         map[int64]*callOutEntry
	nextCallOutID    int64
	nextSeq          int64

	heartbeatIntervalMs int
	heartbeatTicker     *time.Ticker
	callOutTicker       *time.Ticker
	stopCh              chan struct{}
	running             bool
	ctx                 context.Context
}

// New constructs a Scheduler with the given heartbeat interval (0 means
// DefaultHeartbeatIntervalMs).
func New(log *slog.Logger, heartbeatIntervalMs int) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	if heartbeatIntervalMs <= 0 {
		heartbeatIntervalMs = DefaultHeartbeatIntervalMs
	}
	return &Scheduler{
		log:                 log,
		heartbeatSet:        make(map[string]bool),
		callOuts:            make(map[int64]*callOutEntry),
		heartbeatIntervalMs: heartbeatIntervalMs,
	}
}

// SetHeartbeat idempotently adds or removes object from the heartbeat
// set.
func (s *Scheduler) SetHeartbeat(object gameobject.GameObject, enable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := object.ObjectID()
	if enable {
		if s.heartbeatSet[id] {
			return
		}
		s.heartbeatSet[id] = true
		s.heartbeatObjects = append(s.heartbeatObjects, object)
		return
	}
	if !s.heartbeatSet[id] {
		return
	}
	delete(s.heartbeatSet, id)
	for i, o := range s.heartbeatObjects {
		if o.ObjectID() == id {
			s.heartbeatObjects = append(s.heartbeatObjects[:i], s.heartbeatObjects[i+1:]...)
			break
		}
	}
}

// HasHeartbeat reports whether object is currently registered.
func (s *Scheduler) HasHeartbeat(object gameobject.GameObject) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heartbeatSet[object.ObjectID()]
}

// HeartbeatCount returns the number of objects currently registered.
func (s *Scheduler) HeartbeatCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.heartbeatObjects)
}

// CallOut schedules a one-shot callback delayMs from now, returning a
// fresh monotonic id.
func (s *Scheduler) CallOut(cb func(ctx context.Context), delayMs int) int64 {
	return s.addCallOut(cb, delayMs, false, "")
}

// CallOutRepeat schedules a recurring callback, first firing at
// now+intervalMs and every intervalMs thereafter until cancelled.
func (s *Scheduler) CallOutRepeat(cb func(ctx context.Context), intervalMs int) int64 {
	return s.addCallOut(cb, intervalMs, true, "")
}

// CallOutForObject behaves like CallOut but tags the entry with
// owner's object id, so CleanupForObject can remove it when owner is
// destroyed (see CleanupForObject for the cleanup policy).
func (s *Scheduler) CallOutForObject(owner gameobject.GameObject, cb func(ctx context.Context), delayMs int) int64 {
	return s.addCallOut(cb, delayMs, false, owner.ObjectID())
}

func (s *Scheduler) addCallOut(cb func(ctx context.Context), delayMs int, recurring bool, owner string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextCallOutID++
	s.nextSeq++
	id := s.nextCallOutID
	s.callOuts[id] = &callOutEntry{
		id:          id,
		callback:    cb,
		executeAt:   time.Now().Add(time.Duration(delayMs) * time.Millisecond),
		recurring:   recurring,
		intervalMs:  delayMs,
		ownerObject: owner,
		seq:         s.nextSeq,
	}
	return id
}

// RemoveCallOut cancels a pending call-out. Returns false for an
// unknown id.
func (s *Scheduler) RemoveCallOut(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.callOuts[id]; !ok {
		return false
	}
	delete(s.callOuts, id)
	return true
}

// CallOutInfo is a snapshot view of a call-out entry, returned by
// GetCallOut for inspection (tests, admin API).
type CallOutInfo struct {
	ID         int64
	ExecuteAt  time.Time
	Recurring  bool
	IntervalMs int
}

// GetCallOut returns a snapshot of the entry for id, or false if
// unknown.
func (s *Scheduler) GetCallOut(id int64) (CallOutInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.callOuts[id]
	if !ok {
		return CallOutInfo{}, false
	}
	return CallOutInfo{ID: e.id, ExecuteAt: e.executeAt, Recurring: e.recurring, IntervalMs: e.intervalMs}, true
}

// Start launches the heartbeat ticker and call-out poller. Idempotent.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.ctx = ctx
	s.heartbeatTicker = time.NewTicker(time.Duration(s.heartbeatIntervalMs) * time.Millisecond)
	s.callOutTicker = time.NewTicker(callOutPollInterval)
	s.stopCh = make(chan struct{})
	heartbeatTicker := s.heartbeatTicker
	callOutTicker := s.callOutTicker
	stopCh := s.stopCh
	s.mu.Unlock()

	go s.runHeartbeatLoop(heartbeatTicker, stopCh)
	go s.runCallOutLoop(callOutTicker, stopCh)
}

// Stop clears both timer handles but preserves the registered sets so
// start/stop cycles don't lose state. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.heartbeatTicker.Stop()
	s.callOutTicker.Stop()
	s.mu.Unlock()
}

// Clear empties the heartbeat set and call-out map.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heartbeatObjects = nil
	s.heartbeatSet = make(map[string]bool)
	s.callOuts = make(map[int64]*callOutEntry)
}

// CleanupForObject is invoked by the registry on destroy. It removes
// object from the heartbeat set and drops any call-out registered via
// CallOutForObject tagged with this object's id. Plain callOut /
// callOutRepeat entries (no tracked owner) are left untouched, the
// conservative policy decided for the open scheduler cleanup question.
func (s *Scheduler) CleanupForObject(objectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.heartbeatSet[objectID] {
		delete(s.heartbeatSet, objectID)
		for i, o := range s.heartbeatObjects {
			if o.ObjectID() == objectID {
				s.heartbeatObjects = append(s.heartbeatObjects[:i], s.heartbeatObjects[i+1:]...)
				break
			}
		}
	}

	for id, e := range s.callOuts {
		if e.ownerObject == objectID {
			delete(s.callOuts, id)
		}
	}
}

func (s *Scheduler) runHeartbeatLoop(ticker *time.Ticker, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.tickHeartbeats()
		}
	}
}

func (s *Scheduler) tickHeartbeats() {
	s.mu.Lock()
	snapshot := make([]gameobject.GameObject, len(s.heartbeatObjects))
	copy(snapshot, s.heartbeatObjects)
	ctx := s.ctx
	s.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	for _, obj := range snapshot {
		s.invokeHeartbeat(ctx, obj)
	}
}

func (s *Scheduler) invokeHeartbeat(ctx context.Context, obj gameobject.GameObject) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("heartbeat panicked", "object_id", obj.ObjectID(), "panic", r)
		}
	}()
	hb, ok := obj.(gameobject.Heartbeater)
	if !ok {
		return
	}
	if err := hb.Heartbeat(ctx); err != nil {
		s.log.Error("heartbeat failed", "object_id", obj.ObjectID(), "error", err)
	}
}

func (s *Scheduler) runCallOutLoop(ticker *time.Ticker, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.pollCallOuts()
		}
	}
}

func (s *Scheduler) pollCallOuts() {
	now := time.Now()

	s.mu.Lock()
	var due []*callOutEntry
	for _, e := range s.callOuts {
		if !e.executeAt.After(now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].executeAt.Equal(due[j].executeAt) {
			return due[i].executeAt.Before(due[j].executeAt)
		}
		return due[i].seq < due[j].seq
	})

	// One-shot entries are removed before their callback runs so
	// cancellation from within the callback is a no-op; recurring
	// entries are re-stamped now.
	for _, e := range due {
		if e.recurring {
			e.executeAt = now.Add(time.Duration(e.intervalMs) * time.Millisecond)
		} else {
			delete(s.callOuts, e.id)
		}
	}
	ctx := s.ctx
	s.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	for _, e := range due {
		s.invokeCallOut(ctx, e)
	}
}

func (s *Scheduler) invokeCallOut(ctx context.Context, e *callOutEntry) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("call-out panicked", "id", e.id, "panic", r)
		}
	}()
	e.callback(ctx)
}
