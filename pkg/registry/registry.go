// Package registry implements the Object Registry: the sole allocator of
// object ids, the sole owner of the blueprint table, and the only
// component allowed to create or destroy GameObjects.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mudcore/mudcore/pkg/gameobject"
)

// ErrAlreadyRegistered is returned by RegisterBlueprint when path already
// has a blueprint, and by Register when objectId is already present.
var ErrAlreadyRegistered = errors.New("registry: already registered")

// ErrUnknownBlueprint is returned by operations that require a path to
// already have a registered blueprint.
var ErrUnknownBlueprint = errors.New("registry: unknown blueprint")

// HeartbeatStripper is the subset of the Scheduler's contract the
// registry needs during destroy. Implemented by *scheduler.Scheduler.
type HeartbeatStripper interface {
	CleanupForObject(objectID string)
}

// ShadowDetacher is the subset of the ShadowRegistry's contract the
// registry needs during destroy. Implemented by *shadow.Registry.
type ShadowDetacher interface {
	CleanupForObject(ctx context.Context, objectID string)
}

// Blueprint is the registry's record for a compiled content path.
type Blueprint struct {
	Path         string
	Constructor  gameobject.Constructor
	Instance     gameobject.GameObject
	CloneCounter int
	Clones       map[string]struct{}
}

// Registry owns the object table and blueprint table. Execution is
// expected to be single-threaded (see the Driver's cooperative model),
// but the mutex makes out-of-band accessors (stats, admin API reads)
// safe regardless.
type Registry struct {
	mu sync.Mutex

	log        *slog.Logger
	scheduler  HeartbeatStripper
	shadows    ShadowDetacher
	blueprints map[string]*Blueprint
	objects    map[string]gameobject.GameObject

	// navWrap presents a shadow-aware view of a returned GameObject; nil
	// until SetNavWrapper is called (only done when a Shadow Registry is
	// wired in by the Driver). See pkg/gameobject.NavWrapper.
	navWrap func(gameobject.GameObject) gameobject.GameObject
}

// navWrapSetter is implemented by any GameObject that can be told how
// to present its own Environment()/Inventory() views, true for
// anything embedding *gameobject.BaseObject.
type navWrapSetter interface {
	SetNavWrapper(func(gameobject.GameObject) gameobject.GameObject)
}

// SetNavWrapper tells the registry how to present a shadow-aware view
// of objects it hands back from Find/Clone, and binds the same
// function to every object already registered (plus every object
// registered from now on) so BaseObject.Environment()/Inventory()
// return shadow-intercepted views too. Called once by the Driver after
// both the Registry and the Shadow Registry are constructed.
func (r *Registry) SetNavWrapper(wrap func(gameobject.GameObject) gameobject.GameObject) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.navWrap = wrap
	for _, obj := range r.objects {
		bindNavWrapper(obj, wrap)
	}
}

// wrap presents obj through the registry's navWrap, if any.
func (r *Registry) wrap(obj gameobject.GameObject) gameobject.GameObject {
	if obj == nil || r.navWrap == nil {
		return obj
	}
	return r.navWrap(obj)
}

func bindNavWrapper(instance gameobject.GameObject, wrap func(gameobject.GameObject) gameobject.GameObject) {
	if wrap == nil {
		return
	}
	if s, ok := instance.(navWrapSetter); ok {
		s.SetNavWrapper(wrap)
	}
}

// New constructs an empty Registry. scheduler and shadows may be nil
// during unit tests that don't exercise destroy's full cross-subsystem
// sequence; in the wired Driver they are always set.
func New(log *slog.Logger, scheduler HeartbeatStripper, shadows ShadowDetacher) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:        log,
		scheduler:  scheduler,
		shadows:    shadows,
		blueprints: make(map[string]*Blueprint),
		objects:    make(map[string]gameobject.GameObject),
	}
}

// RegisterBlueprint stores a new Blueprint record for path and stamps
// instance's identity to {objectPath: path, objectId: path}.
func (r *Registry) RegisterBlueprint(path string, constructor gameobject.Constructor, instance gameobject.GameObject) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.blueprints[path]; ok {
		return fmt.Errorf("registerBlueprint %q: %w", path, ErrAlreadyRegistered)
	}
	instance.SetIdentity(path, path, false, nil)
	bindSelf(instance)
	bindNavWrapper(instance, r.navWrap)
	r.blueprints[path] = &Blueprint{
		Path:        path,
		Constructor: constructor,
		Instance:    instance,
		Clones:      make(map[string]struct{}),
	}
	r.objects[path] = instance
	r.log.Info("blueprint registered", "path", path)
	return nil
}

// bindSelf calls BindSelf on instance if it implements SelfBinder (true
// for anything embedding *gameobject.BaseObject), so that BaseObject's
// MoveTo bookkeeping stores the outer content type's identity rather
// than the embedded *BaseObject's.
func bindSelf(instance gameobject.GameObject) {
	if b, ok := instance.(gameobject.SelfBinder); ok {
		b.BindSelf(instance)
	}
}

// Register inserts an already-constructed object, used internally by
// Clone. Fails if object.ObjectID() is already present.
func (r *Registry) Register(object gameobject.GameObject) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerLocked(object)
}

func (r *Registry) registerLocked(object gameobject.GameObject) error {
	id := object.ObjectID()
	if _, ok := r.objects[id]; ok {
		return fmt.Errorf("register %q: %w", id, ErrAlreadyRegistered)
	}
	r.objects[id] = object
	return nil
}

// Find looks up an object by its objectPath (for blueprints) or
// objectId (for clones).
func (r *Registry) Find(pathOrID string) (gameobject.GameObject, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj, ok := r.objects[pathOrID]
	if !ok {
		return nil, false
	}
	return r.wrap(obj), true
}

// Clone produces a new clone of the blueprint at path, awaiting
// onCreate then onClone(blueprint) before returning it. Returns
// (nil, false) if path has no registered blueprint.
func (r *Registry) Clone(ctx context.Context, path string) (gameobject.GameObject, bool) {
	r.mu.Lock()
	bp, ok := r.blueprints[path]
	if !ok {
		r.mu.Unlock()
		return nil, false
	}
	bp.CloneCounter++
	n := bp.CloneCounter
	instance := bp.Constructor()
	id := fmt.Sprintf("%s#%d", path, n)
	instance.SetIdentity(path, id, true, bp.Instance)
	bindSelf(instance)
	bindNavWrapper(instance, r.navWrap)

	if err := r.registerLocked(instance); err != nil {
		// A constructor-generated id collided with something already
		// present; this indicates a driver bug, not a caller error.
		r.mu.Unlock()
		panic(fmt.Errorf("clone %q: %w", id, err))
	}
	bp.Clones[id] = struct{}{}
	navWrap := r.navWrap
	r.mu.Unlock()

	r.runHook(ctx, "onCreate", id, func() error {
		if c, ok := instance.(gameobject.Creator); ok {
			return c.OnCreate(ctx)
		}
		return nil
	})
	r.runHook(ctx, "onClone", id, func() error {
		if c, ok := instance.(gameobject.Cloner); ok {
			return c.OnClone(ctx, bp.Instance)
		}
		return nil
	})

	r.log.Info("object cloned", "path", path, "object_id", id)
	if navWrap == nil {
		return instance, true
	}
	return navWrap(instance), true
}

// runHook invokes fn, recovering from any panic (a mudlib hook
// misbehaving must never bring down the engine) and logging failures
// as HookFailure without propagating them.
func (r *Registry) runHook(_ context.Context, hook, objectID string, fn func() error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("hook panicked", "hook", hook, "object_id", objectID, "panic", rec)
		}
	}()
	if err := fn(); err != nil {
		r.log.Error("hook failed", "hook", hook, "object_id", objectID, "error", err)
	}
}

// Destroy executes the registry's exact teardown sequence: onDestroy,
// heartbeat strip, shadow detach, void eviction, inventory release,
// object-map removal, blueprint accounting. No step's failure stops
// the remaining steps; teardown must never deadlock.
func (r *Registry) Destroy(ctx context.Context, object gameobject.GameObject) {
	if u, ok := object.(gameobject.Unwrappable); ok {
		object = u.Unwrap()
	}
	id := object.ObjectID()

	r.runHook(ctx, "onDestroy", id, func() error {
		if d, ok := object.(gameobject.Destroyer); ok {
			return d.OnDestroy(ctx)
		}
		return nil
	})

	if r.scheduler != nil {
		r.scheduler.CleanupForObject(id)
	}
	if r.shadows != nil {
		r.shadows.CleanupForObject(ctx, id)
	}

	object.MoveTo(nil)

	for _, item := range object.Inventory() {
		item.MoveTo(nil)
	}

	r.mu.Lock()
	delete(r.objects, id)
	if object.IsClone() {
		if bp, ok := r.blueprints[object.ObjectPath()]; ok {
			delete(bp.Clones, id)
		}
	}
	r.mu.Unlock()

	r.log.Info("object destroyed", "object_id", id)
}

// UnregisterBlueprint destroys every clone of path, then the blueprint
// instance itself, then drops the blueprint record.
func (r *Registry) UnregisterBlueprint(ctx context.Context, path string) error {
	r.mu.Lock()
	bp, ok := r.blueprints[path]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("unregisterBlueprint %q: %w", path, ErrUnknownBlueprint)
	}
	cloneIDs := make([]string, 0, len(bp.Clones))
	for id := range bp.Clones {
		cloneIDs = append(cloneIDs, id)
	}
	sort.Strings(cloneIDs)
	instance := bp.Instance
	r.mu.Unlock()

	for _, id := range cloneIDs {
		if obj, ok := r.Find(id); ok {
			r.Destroy(ctx, obj)
		}
	}
	r.Destroy(ctx, instance)

	r.mu.Lock()
	delete(r.blueprints, path)
	r.mu.Unlock()
	return nil
}

// UpdateResult reports the outcome of a live blueprint swap.
type UpdateResult struct {
	ExistingClones  int
	MigratedObjects int
}

// UpdateBlueprint is the live-swap primitive used by hot-reload only.
// If path has no blueprint it behaves like RegisterBlueprint. Otherwise
// it relocates every object in the old blueprint instance's inventory
// into the new instance's inventory via a pure pointer-move (no
// enter/leave hooks), swaps in the new constructor/instance, and
// preserves the clones set and counter.
func (r *Registry) UpdateBlueprint(path string, constructor gameobject.Constructor, instance gameobject.GameObject) (UpdateResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bp, ok := r.blueprints[path]
	if !ok {
		instance.SetIdentity(path, path, false, nil)
		bindSelf(instance)
		bindNavWrapper(instance, r.navWrap)
		r.blueprints[path] = &Blueprint{
			Path:        path,
			Constructor: constructor,
			Instance:    instance,
			Clones:      make(map[string]struct{}),
		}
		r.objects[path] = instance
		return UpdateResult{}, nil
	}

	instance.SetIdentity(path, path, false, nil)
	bindSelf(instance)
	bindNavWrapper(instance, r.navWrap)

	oldInstance := bp.Instance
	migrated := migrateInventory(oldInstance, instance)

	bp.Constructor = constructor
	bp.Instance = instance
	r.objects[path] = instance

	r.log.Info("blueprint updated", "path", path, "existing_clones", len(bp.Clones), "migrated_objects", migrated)
	return UpdateResult{ExistingClones: len(bp.Clones), MigratedObjects: migrated}, nil
}

// migrateInventory moves every item from oldInstance's inventory into
// newInstance's inventory. MoveTo only rewrites containment pointers;
// enter/leave semantics live at higher layers, so this stays a pure
// pointer-move.
func migrateInventory(oldInstance, newInstance gameobject.GameObject) int {
	items := oldInstance.Inventory()
	for _, item := range items {
		item.MoveTo(newInstance)
	}
	return len(items)
}

// Stats summarizes registry contents for operator-facing views.
type Stats struct {
	TotalObjects     int
	TotalBlueprints  int
	LargestInventory []InventoryStat
	TopBlueprints    []BlueprintStat
}

type InventoryStat struct {
	ObjectID string
	Size     int
}

type BlueprintStat struct {
	Path   string
	Clones int
}

// AllObjects returns every registered object (blueprints and clones
// alike), sorted by object id for deterministic snapshots. Used by
// persistence to enumerate the world for a save.
func (r *Registry) AllObjects() []gameobject.GameObject {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.objects))
	for id := range r.objects {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	objects := make([]gameobject.GameObject, 0, len(ids))
	for _, id := range ids {
		objects = append(objects, r.objects[id])
	}
	return objects
}

// GetStats returns totals plus the top-10 largest inventories and
// top-10 blueprints by clone count.
func (r *Registry) GetStats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Stats{
		TotalObjects:    len(r.objects),
		TotalBlueprints: len(r.blueprints),
	}

	inv := make([]InventoryStat, 0, len(r.objects))
	for id, obj := range r.objects {
		inv = append(inv, InventoryStat{ObjectID: id, Size: len(obj.Inventory())})
	}
	sort.Slice(inv, func(i, j int) bool {
		if inv[i].Size != inv[j].Size {
			return inv[i].Size > inv[j].Size
		}
		return inv[i].ObjectID < inv[j].ObjectID
	})
	if len(inv) > 10 {
		inv = inv[:10]
	}
	stats.LargestInventory = inv

	bps := make([]BlueprintStat, 0, len(r.blueprints))
	for path, bp := range r.blueprints {
		bps = append(bps, BlueprintStat{Path: path, Clones: len(bp.Clones)})
	}
	sort.Slice(bps, func(i, j int) bool {
		if bps[i].Clones != bps[j].Clones {
			return bps[i].Clones > bps[j].Clones
		}
		return bps[i].Path < bps[j].Path
	})
	if len(bps) > 10 {
		bps = bps[:10]
	}
	stats.TopBlueprints = bps

	return stats
}
