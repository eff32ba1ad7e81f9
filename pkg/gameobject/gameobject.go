// Package gameobject defines the polymorphic game-object contract every
// mudlib content class implements, and the default BaseObject
// implementation of it.
package gameobject

import "context"

// GameObject is the universal entity in the world tree. Content classes
// implement it by embedding *BaseObject and overriding the methods they
// need to specialize.
type GameObject interface {
	// ObjectPath is the canonical content path, e.g. "/areas/town/bakery".
	// Immutable after identity is stamped by the registry.
	ObjectPath() string

	// ObjectID equals ObjectPath for blueprints; for clones it equals
	// ObjectPath + "#" + N. Immutable after identity is stamped.
	ObjectID() string

	// IsClone reports whether this instance is a clone (participates in
	// the world tree) as opposed to a blueprint (registry record only).
	IsClone() bool

	// Blueprint returns the blueprint instance this clone was produced
	// from, or nil for a blueprint itself.
	Blueprint() GameObject

	ShortDesc() string
	SetShortDesc(string)
	LongDesc() string
	SetLongDesc(string)

	// Environment is the containing object, or nil if none.
	Environment() GameObject

	// Inventory is the ordered list of contained objects. Returns a
	// defensive copy; mutate only through MoveTo.
	Inventory() []GameObject

	// MoveTo removes self from the current environment's inventory (if
	// any), sets environment to destination (nil clears it), and
	// appends self to the destination's inventory. Atomic with respect
	// to other MoveTo calls on this object. The default implementation
	// always succeeds; subclasses may refuse by returning false.
	MoveTo(destination GameObject) bool

	// Id matches name (case-folded) against the object's identifying
	// tokens. The default matches whitespace-split tokens of ShortDesc.
	Id(name string) bool

	// Get/Set provide the generic property vocabulary a dynamic mudlib
	// language would otherwise expose via direct property access. The
	// shadow layer intercepts Get, never Set (see pkg/shadow).
	Get(key string) (any, bool)
	Set(key string, value any)

	// Actions are case-folded verb -> handler bindings scoped to this
	// object, consulted by the command loop when a living object shares
	// this object's environment.
	AddAction(verb string, handler ActionHandler, priority int)
	RemoveAction(verb string)
	GetActions() []ActionEntry

	// SetIdentity stamps immutable identity fields. It is meant to be
	// called exactly once, by the registry, at registration/clone time.
	// Content code must never call this directly.
	SetIdentity(path, id string, isClone bool, blueprint GameObject)
}

// ActionHandler executes a verb. It returns true if it handled the
// command (stopping lower-priority handlers from running).
type ActionHandler func(ctx context.Context, actor GameObject, args string) (bool, error)

// ActionEntry is one verb binding, returned in priority order (highest
// first, ties broken by insertion order).
type ActionEntry struct {
	Verb     string
	Handler  ActionHandler
	Priority int
}

// Creator is implemented by content objects that need setup work done
// after construction, before the object is handed back to the caller.
type Creator interface {
	OnCreate(ctx context.Context) error
}

// Cloner is implemented by content objects that need to react to being
// cloned from a blueprint.
type Cloner interface {
	OnClone(ctx context.Context, blueprint GameObject) error
}

// Destroyer is implemented by content objects that need teardown work
// run before the registry removes them from the world.
type Destroyer interface {
	OnDestroy(ctx context.Context) error
}

// Resetter is implemented by content objects that want periodic reset
// callbacks (area reset cycles, respawns, etc).
type Resetter interface {
	OnReset(ctx context.Context) error
}

// Heartbeater is implemented by content objects that want a periodic
// tick from the scheduler.
type Heartbeater interface {
	Heartbeat(ctx context.Context) error
}

// PersistableState is implemented by content objects that want their
// properties captured in player/world snapshots. Objects that don't
// implement it persist nothing beyond identity.
type PersistableState interface {
	PersistableState() map[string]any
	RestoreState(state map[string]any)
}

// Constructor produces a fresh GameObject instance for a content path.
// Each call must return an instance independent of any previous one
// (no shared mutable state between constructor invocations).
type Constructor func() GameObject

// SelfBinder is implemented by *BaseObject (and promoted to any content
// type that embeds it). The registry calls BindSelf once, right after
// stamping identity, so that BaseObject's MoveTo bookkeeping stores the
// outer content type's own identity in inventory slices rather than the
// embedded *BaseObject's; otherwise a room's Inventory() would hand
// back bare *BaseObject values and callers type-asserting for a
// content type's overridden Heartbeat/OnDestroy/etc would silently
// lose them.
type SelfBinder interface {
	BindSelf(self GameObject)
}

// NavWrapper is implemented by *BaseObject (and promoted to any content
// type that embeds it). The registry calls SetNavWrapper once, right
// after BindSelf, handing it the function that presents a shadow-aware
// view of a GameObject (see pkg/shadow's WrapWithProxy). Environment
// and Inventory pass their results through it before returning, so
// that external traversal of the world tree always observes active
// shadows rather than raw objects.
type NavWrapper interface {
	SetNavWrapper(wrap func(GameObject) GameObject)
}

// Unwrappable is implemented by a GameObject that transparently wraps
// another one (a shadow proxy, in particular). MoveTo's inventory
// bookkeeping calls Unwrap to recover the embedding *BaseObject when it
// receives a wrapped destination or member, so that presentation-layer
// wrapping never changes containment semantics.
type Unwrappable interface {
	Unwrap() GameObject
}
