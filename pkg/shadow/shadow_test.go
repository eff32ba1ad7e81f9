package shadow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/mudcore/mudcore/pkg/gameobject"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTarget(id string) gameobject.GameObject {
	o := gameobject.NewBaseObject()
	o.SetIdentity(id, id, false, nil)
	o.SetShortDesc("Base")
	o.Set("name", "Base")
	return o
}

// LOW (priority 10, name="Low") + HIGH (priority 100, name="High")
// over base name="Base"; proxy resolves HIGH, then LOW after removing
// HIGH, then Base after removing LOW.
func TestShadowPriorityResolution(t *testing.T) {
	r := New(testLogger())
	target := newTestTarget("/std/npc")
	ctx := context.Background()

	low := &Shadow{ID: "low", Type: "test", Priority: 10, IsActive: true, Values: map[string]any{"name": "Low"}}
	high := &Shadow{ID: "high", Type: "test", Priority: 100, IsActive: true, Values: map[string]any{"name": "High"}}

	if res := r.AddShadow(ctx, target, low); !res.Success {
		t.Fatalf("expected low shadow to attach: %v", res.Error)
	}
	if res := r.AddShadow(ctx, target, high); !res.Success {
		t.Fatalf("expected high shadow to attach: %v", res.Error)
	}

	proxy := r.WrapWithProxy(target)
	v, ok := proxy.Get("name")
	if !ok || v != "High" {
		t.Fatalf("expected High to win, got %v ok=%v", v, ok)
	}

	if !r.RemoveShadow(ctx, target, "high") {
		t.Fatal("expected high shadow to detach")
	}
	v, ok = proxy.Get("name")
	if !ok || v != "Low" {
		t.Fatalf("expected Low to win after removing High, got %v ok=%v", v, ok)
	}

	if !r.RemoveShadow(ctx, target, "low") {
		t.Fatal("expected low shadow to detach")
	}
	v, ok = proxy.Get("name")
	if !ok || v != "Base" {
		t.Fatalf("expected Base after removing all shadows, got %v ok=%v", v, ok)
	}
}

// Wrapping is idempotent and GetOriginal recovers the target.
func TestProxyIdempotentAndUnwrap(t *testing.T) {
	r := New(testLogger())
	target := newTestTarget("/std/thing")
	r.AddShadow(context.Background(), target, &Shadow{ID: "s1", Type: "t", Priority: 1, IsActive: true, Values: map[string]any{"x": 1}})

	p1 := r.WrapWithProxy(target)
	p2 := r.WrapWithProxy(p1)
	if p1 != p2 {
		t.Fatal("expected wrapWithProxy(wrapWithProxy(o)) == wrapWithProxy(o)")
	}
	if r.GetOriginal(p1) != target {
		t.Fatal("expected getOriginal(wrapWithProxy(o)) == o")
	}
}

// Unshadowable keys always resolve to the target's own value.
func TestUnshadowableKeysBypassShadows(t *testing.T) {
	r := New(testLogger())
	target := newTestTarget("/std/forger")
	forged := &Shadow{
		ID: "forger", Type: "t", Priority: 1000, IsActive: true,
		Values: map[string]any{"objectId": "/fake/id", "isClone": true},
	}
	r.AddShadow(context.Background(), target, forged)

	proxy := r.WrapWithProxy(target)
	v, ok := proxy.Get("objectId")
	if !ok || v != target.ObjectID() {
		t.Fatalf("expected forged objectId to be bypassed, got %v", v)
	}
	v, ok = proxy.Get("isClone")
	if !ok || v != target.IsClone() {
		t.Fatalf("expected forged isClone to be bypassed, got %v", v)
	}
}

// Writes through the proxy mutate the target (writes always pass
// through, never intercepted).
func TestWritesPassThrough(t *testing.T) {
	r := New(testLogger())
	target := newTestTarget("/std/writable")
	proxy := r.WrapWithProxy(target)

	proxy.Set("counter", 42)
	v, ok := target.Get("counter")
	if !ok || v != 42 {
		t.Fatalf("expected write through proxy to mutate target, got %v", v)
	}
}

func TestInactiveShadowIsSkipped(t *testing.T) {
	r := New(testLogger())
	target := newTestTarget("/std/inactive")
	r.AddShadow(context.Background(), target, &Shadow{ID: "s1", Type: "t", Priority: 100, IsActive: false, Values: map[string]any{"name": "Shadowed"}})

	proxy := r.WrapWithProxy(target)
	v, ok := proxy.Get("name")
	if !ok || v != "Base" {
		t.Fatalf("expected inactive shadow to be skipped, got %v", v)
	}
}

func TestBoundMethod(t *testing.T) {
	r := New(testLogger())
	target := newTestTarget("/std/caller")
	var gotShadow *Shadow
	s := &Shadow{
		ID: "s1", Type: "t", Priority: 1, IsActive: true,
	}
	s.Values = map[string]any{
		"greet": Method(func(shadow *Shadow, args ...any) (any, error) {
			gotShadow = shadow
			return "hi", nil
		}),
	}
	r.AddShadow(context.Background(), target, s)

	proxy := r.WrapWithProxy(target)
	v, ok := proxy.Get("greet")
	if !ok {
		t.Fatal("expected greet to resolve")
	}
	bound, ok := v.(BoundMethod)
	if !ok {
		t.Fatal("expected a BoundMethod value")
	}
	result, err := bound()
	if err != nil || result != "hi" {
		t.Fatalf("unexpected bound call result: %v %v", result, err)
	}
	if gotShadow != s {
		t.Fatal("expected the method to be bound to its own shadow")
	}
}

// Boundary: addShadow with a duplicate id returns {success:false} and
// does not fire onAttach.
func TestAddShadowDuplicateID(t *testing.T) {
	r := New(testLogger())
	target := newTestTarget("/std/dup")
	attachCount := 0
	onAttach := func(ctx context.Context, t gameobject.GameObject) error {
		attachCount++
		return nil
	}

	first := &Shadow{ID: "dup", Type: "t", Priority: 1, IsActive: true, OnAttachFn: onAttach}
	second := &Shadow{ID: "dup", Type: "t", Priority: 2, IsActive: true, OnAttachFn: onAttach}

	if res := r.AddShadow(context.Background(), target, first); !res.Success {
		t.Fatal("expected first attach to succeed")
	}
	res := r.AddShadow(context.Background(), target, second)
	if res.Success {
		t.Fatal("expected duplicate shadow id to fail")
	}
	if !errors.Is(res.Error, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", res.Error)
	}
	if attachCount != 1 {
		t.Fatalf("expected onAttach to fire exactly once, fired %d times", attachCount)
	}
}

func TestRemoveShadowUnknownReturnsFalse(t *testing.T) {
	r := New(testLogger())
	target := newTestTarget("/std/none")
	if r.RemoveShadow(context.Background(), target, "nope") {
		t.Fatal("expected removing an unknown shadow id to return false")
	}
}

func TestCleanupForObjectDetachesInPriorityOrder(t *testing.T) {
	r := New(testLogger())
	target := newTestTarget("/std/multi")
	var order []string
	mk := func(id string, pri int) *Shadow {
		return &Shadow{
			ID: id, Type: "t", Priority: pri, IsActive: true,
			OnDetachFn: func(ctx context.Context, t gameobject.GameObject) error {
				order = append(order, id)
				return nil
			},
		}
	}
	r.AddShadow(context.Background(), target, mk("low", 1))
	r.AddShadow(context.Background(), target, mk("high", 100))

	r.CleanupForObject(context.Background(), target.ObjectID())

	if len(order) != 2 || order[0] != "high" || order[1] != "low" {
		t.Fatalf("expected detach in priority order [high low], got %v", order)
	}
	if r.HasShadows(target.ObjectID()) {
		t.Fatal("expected no shadows to remain after cleanup")
	}
}
