// Package shadow implements the Shadow Registry: priority-ordered,
// per-object property interception via a transparent proxy built on
// top of GameObject's Get/Set vocabulary, which stands in for the
// dynamic property dispatch a statically typed host doesn't have.
package shadow

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/mudcore/mudcore/pkg/gameobject"
)

// ProxyMarkerKey, when passed to Get, reports (true, true) on any
// proxy, enabling callers to detect wrapping without type assertions.
const ProxyMarkerKey = "__is_proxy__"

// OriginalAccessKey, when passed to Get, returns the unwrapped target.
const OriginalAccessKey = "__original__"

// unshadowable holds the identity/containment keys a shadow can never
// override, even if it declares a value for them.
var unshadowable = map[string]bool{
	"objectId":    true,
	"objectPath":  true,
	"isClone":     true,
	"blueprint":   true,
	"inventory":   true,
	"environment": true,
}

// Method is a shadow-scoped function value. When a shadow's override
// for a key holds a Method, the proxy binds it to that shadow before
// returning it, so the receiver inside the call is the shadow itself.
type Method func(shadow *Shadow, args ...any) (any, error)

// BoundMethod is what callers actually receive from a proxy Get when
// the resolved value is a Method; the shadow is already closed over.
type BoundMethod func(args ...any) (any, error)

// Shadow is an overlay attached to a target GameObject.
type Shadow struct {
	ID         string
	Type       string
	Priority   int
	IsActive   bool
	Values     map[string]any
	OnAttachFn func(ctx context.Context, target gameobject.GameObject) error
	OnDetachFn func(ctx context.Context, target gameobject.GameObject) error

	target gameobject.GameObject
	seq    int64
}

// Target returns the object this shadow is currently attached to, or
// nil if detached.
func (s *Shadow) Target() gameobject.GameObject { return s.target }

// has reports whether key is own-present on this shadow.
func (s *Shadow) has(key string) (any, bool) {
	v, ok := s.Values[key]
	return v, ok
}

// AddResult is the outcome of AddShadow.
type AddResult struct {
	Success bool
	Error   error
}

type targetShadows struct {
	list []*Shadow
}

// Registry owns shadow attachment and the proxy cache.
type Registry struct {
	log *slog.Logger

	mu         sync.Mutex
	byTarget   map[string]*targetShadows
	proxyCache map[string]*Proxy
	seq        int64
}

// New constructs an empty Registry.
func New(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:        log,
		byTarget:   make(map[string]*targetShadows),
		proxyCache: make(map[string]*Proxy),
	}
}

// AddShadow attaches shadow to target. Rejects a duplicate shadow id
// on the same target with {Success:false}; no attachment performed and
// onAttach never fires.
func (r *Registry) AddShadow(ctx context.Context, target gameobject.GameObject, shadow *Shadow) AddResult {
	id := target.ObjectID()

	r.mu.Lock()
	ts, ok := r.byTarget[id]
	if !ok {
		ts = &targetShadows{}
		r.byTarget[id] = ts
	}
	for _, existing := range ts.list {
		if existing.ID == shadow.ID {
			r.mu.Unlock()
			return AddResult{Success: false, Error: ErrDuplicateShadow(shadow.ID)}
		}
	}
	r.seq++
	shadow.seq = r.seq
	shadow.target = target
	ts.list = append(ts.list, shadow)
	sortShadows(ts.list)
	delete(r.proxyCache, id)
	r.mu.Unlock()

	r.runHook(ctx, "onAttach", shadow, target, shadow.OnAttachFn)
	return AddResult{Success: true}
}

// RemoveShadow detaches a shadow (by value or by id) from target.
// Returns false for an unknown id. Detaching the last shadow
// invalidates the cached proxy for target.
func (r *Registry) RemoveShadow(ctx context.Context, target gameobject.GameObject, shadowOrID any) bool {
	id := target.ObjectID()
	wantID := shadowIDOf(shadowOrID)

	r.mu.Lock()
	ts, ok := r.byTarget[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	idx := -1
	for i, s := range ts.list {
		if s.ID == wantID {
			idx = i
			break
		}
	}
	if idx == -1 {
		r.mu.Unlock()
		return false
	}
	removed := ts.list[idx]
	ts.list = append(ts.list[:idx], ts.list[idx+1:]...)
	delete(r.proxyCache, id)
	r.mu.Unlock()

	r.runHook(ctx, "onDetach", removed, target, removed.OnDetachFn)
	removed.target = nil
	return true
}

func shadowIDOf(v any) string {
	if s, ok := v.(*Shadow); ok {
		return s.ID
	}
	if id, ok := v.(string); ok {
		return id
	}
	return ""
}

// FindShadow returns the first shadow of shadowType attached to
// targetID, or false if none.
func (r *Registry) FindShadow(targetID, shadowType string) (*Shadow, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts, ok := r.byTarget[targetID]
	if !ok {
		return nil, false
	}
	for _, s := range ts.list {
		if s.Type == shadowType {
			return s, true
		}
	}
	return nil, false
}

// HasShadows reports whether targetID has any attached shadows.
func (r *Registry) HasShadows(targetID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts, ok := r.byTarget[targetID]
	return ok && len(ts.list) > 0
}

// GetShadows returns targetID's shadows in priority order.
func (r *Registry) GetShadows(targetID string) []*Shadow {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts, ok := r.byTarget[targetID]
	if !ok {
		return nil
	}
	out := make([]*Shadow, len(ts.list))
	copy(out, ts.list)
	return out
}

// ClearShadows detaches every shadow on target, in priority order,
// each with its onDetach.
func (r *Registry) ClearShadows(ctx context.Context, target gameobject.GameObject) {
	r.CleanupForObject(ctx, target.ObjectID())
}

// CleanupForObject detaches every shadow attached to targetID, in
// priority order, each with its onDetach. Called by the registry on
// object destroy.
func (r *Registry) CleanupForObject(ctx context.Context, targetID string) {
	r.mu.Lock()
	ts, ok := r.byTarget[targetID]
	if !ok || len(ts.list) == 0 {
		r.mu.Unlock()
		return
	}
	list := make([]*Shadow, len(ts.list))
	copy(list, ts.list)
	ts.list = nil
	delete(r.proxyCache, targetID)
	r.mu.Unlock()

	for _, s := range list {
		target := s.target
		r.runHook(ctx, "onDetach", s, target, s.OnDetachFn)
		s.target = nil
	}
}

func (r *Registry) runHook(ctx context.Context, name string, shadow *Shadow, target gameobject.GameObject, fn func(context.Context, gameobject.GameObject) error) {
	if fn == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("shadow hook panicked", "hook", name, "shadow_id", shadow.ID, "panic", rec)
		}
	}()
	if err := fn(ctx, target); err != nil {
		r.log.Error("shadow hook failed", "hook", name, "shadow_id", shadow.ID, "error", err)
	}
}

func sortShadows(list []*Shadow) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority > list[j].Priority
		}
		return list[i].seq < list[j].seq
	})
}

// Stats summarizes the shadow registry for operator-facing views.
type Stats struct {
	ShadowedObjects int
	TotalShadows    int
	ByType          map[string]int
}

// GetStats totals shadowed objects, attached shadows, and per-type
// counts.
func (r *Registry) GetStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := Stats{ByType: make(map[string]int)}
	for _, ts := range r.byTarget {
		if len(ts.list) == 0 {
			continue
		}
		stats.ShadowedObjects++
		for _, s := range ts.list {
			stats.TotalShadows++
			stats.ByType[s.Type]++
		}
	}
	return stats
}

// WrapWithProxy returns object unchanged when it has no shadows;
// otherwise returns a cached proxy intercepting reads. Idempotent:
// wrapping a proxy returns itself.
func (r *Registry) WrapWithProxy(object gameobject.GameObject) gameobject.GameObject {
	if p, ok := object.(*Proxy); ok {
		return p
	}

	id := object.ObjectID()
	r.mu.Lock()
	defer r.mu.Unlock()

	ts, ok := r.byTarget[id]
	if !ok || len(ts.list) == 0 {
		return object
	}
	if cached, ok := r.proxyCache[id]; ok {
		return cached
	}
	p := &Proxy{target: object, registry: r}
	r.proxyCache[id] = p
	return p
}

// GetOriginal unwraps maybeProxy, returning it unchanged if it isn't a
// proxy.
func (r *Registry) GetOriginal(maybeProxy gameobject.GameObject) gameobject.GameObject {
	if p, ok := maybeProxy.(*Proxy); ok {
		return p.target
	}
	return maybeProxy
}
