package gameobject

import (
	"sort"
	"strings"
	"sync"
)

// BaseObject is the default concrete implementation of GameObject. Every
// content class in the mudlib embeds *BaseObject and overrides the
// methods it wants to specialize.
type BaseObject struct {
	mu sync.Mutex
	// moveMu serializes MoveTo calls on this object.
	moveMu sync.Mutex

	objectPath string
	objectID   string
	isClone    bool
	blueprint  GameObject

	// self is the outer content type's own GameObject identity, bound
	// once by the registry via BindSelf. Until bound, MoveTo falls back
	// to this *BaseObject's own identity (fine for plain BaseObject
	// instances that are never embedded).
	self GameObject

	shortDesc string
	longDesc  string

	environment GameObject
	inventory   []GameObject

	// navWrap presents a shadow-aware view of a GameObject to external
	// callers of Environment/Inventory; nil until the registry binds it
	// via SetNavWrapper (only done when a Shadow Registry is wired in).
	navWrap func(GameObject) GameObject

	properties map[string]any
	actions    map[string]*actionSlot
	seq        int // insertion counter, breaks action priority ties
}

type actionSlot struct {
	entries []ActionEntry
	order   []int
}

// NewBaseObject constructs an empty BaseObject. Content constructors call
// this and embed the result.
func NewBaseObject() *BaseObject {
	return &BaseObject{
		properties: make(map[string]any),
		actions:    make(map[string]*actionSlot),
	}
}

func (o *BaseObject) ObjectPath() string { return o.objectPath }
func (o *BaseObject) ObjectID() string   { return o.objectID }
func (o *BaseObject) IsClone() bool      { return o.isClone }
func (o *BaseObject) Blueprint() GameObject {
	return o.blueprint
}

func (o *BaseObject) SetIdentity(path, id string, isClone bool, blueprint GameObject) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objectPath = path
	o.objectID = id
	o.isClone = isClone
	o.blueprint = blueprint
}

// BindSelf records the outer content type's own GameObject identity.
// Called once by the registry right after SetIdentity.
func (o *BaseObject) BindSelf(self GameObject) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.self = self
}

func (o *BaseObject) selfOrThis() GameObject {
	o.mu.Lock()
	self := o.self
	o.mu.Unlock()
	if self != nil {
		return self
	}
	return GameObject(o)
}

func (o *BaseObject) ShortDesc() string { return o.shortDesc }
func (o *BaseObject) SetShortDesc(s string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.shortDesc = s
}

func (o *BaseObject) LongDesc() string { return o.longDesc }
func (o *BaseObject) SetLongDesc(s string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.longDesc = s
}

// SetNavWrapper binds the function Environment and Inventory consult
// before handing results back to external callers. Called once by the
// registry right after BindSelf (see pkg/registry).
func (o *BaseObject) SetNavWrapper(wrap func(GameObject) GameObject) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.navWrap = wrap
}

func (o *BaseObject) Environment() GameObject {
	o.mu.Lock()
	env := o.environment
	wrap := o.navWrap
	o.mu.Unlock()
	if env == nil || wrap == nil {
		return env
	}
	return wrap(env)
}

func (o *BaseObject) Inventory() []GameObject {
	o.mu.Lock()
	out := make([]GameObject, len(o.inventory))
	copy(out, o.inventory)
	wrap := o.navWrap
	o.mu.Unlock()
	if wrap == nil {
		return out
	}
	for i, item := range out {
		out[i] = wrap(item)
	}
	return out
}

// MoveTo removes self from the current environment's inventory, sets
// environment to destination, and appends self to destination's
// inventory. The default always succeeds.
func (o *BaseObject) MoveTo(destination GameObject) bool {
	o.moveMu.Lock()
	defer o.moveMu.Unlock()
	self := o.selfOrThis()

	o.mu.Lock()
	oldEnv := o.environment
	o.mu.Unlock()

	if oldEnv != nil {
		removeFromInventory(oldEnv, self)
	}

	o.mu.Lock()
	o.environment = destination
	o.mu.Unlock()

	if destination != nil {
		appendToInventory(destination, self)
	}
	return true
}

// removeFromInventory and appendToInventory operate on the raw
// environment's inventory slice. They work against any GameObject that
// embeds *BaseObject by unwrapping to it; objects that don't embed
// BaseObject must implement their own MoveTo bookkeeping.
func removeFromInventory(env GameObject, obj GameObject) {
	base := unwrapBase(env)
	if base == nil {
		return
	}
	base.mu.Lock()
	defer base.mu.Unlock()
	for i, item := range base.inventory {
		if item == obj {
			base.inventory = append(base.inventory[:i], base.inventory[i+1:]...)
			return
		}
	}
}

func appendToInventory(env GameObject, obj GameObject) {
	base := unwrapBase(env)
	if base == nil {
		return
	}
	base.mu.Lock()
	defer base.mu.Unlock()
	base.inventory = append(base.inventory, obj)
}

// Embedder is implemented (implicitly, via embedding) by any content
// type that wraps *BaseObject. It lets MoveTo's inventory bookkeeping
// reach the embedded *BaseObject of a destination or environment; the
// identity stored in the inventory slice comes from BindSelf.
type Embedder interface {
	baseObject() *BaseObject
}

func (o *BaseObject) baseObject() *BaseObject { return o }

func unwrapBase(g GameObject) *BaseObject {
	for i := 0; i < 8 && g != nil; i++ {
		if e, ok := g.(Embedder); ok {
			return e.baseObject()
		}
		u, ok := g.(Unwrappable)
		if !ok {
			return nil
		}
		g = u.Unwrap()
	}
	return nil
}

// Id matches name (case-folded) against whitespace-split tokens of
// ShortDesc.
func (o *BaseObject) Id(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return false
	}
	o.mu.Lock()
	desc := o.shortDesc
	o.mu.Unlock()
	for _, tok := range strings.Fields(strings.ToLower(desc)) {
		if tok == name {
			return true
		}
	}
	return false
}

// Get reads a generic property. The fixed identity/description fields
// are not reachable through Get/Set; callers use the dedicated
// accessors for those.
func (o *BaseObject) Get(key string) (any, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	v, ok := o.properties[key]
	return v, ok
}

func (o *BaseObject) Set(key string, value any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.properties[key] = value
}

// PersistableState returns a shallow copy of the generic property map,
// satisfying gameobject.PersistableState for any object that doesn't
// override it with a narrower selection.
func (o *BaseObject) PersistableState() map[string]any {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]any, len(o.properties))
	for k, v := range o.properties {
		out[k] = v
	}
	return out
}

func (o *BaseObject) RestoreState(state map[string]any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for k, v := range state {
		o.properties[k] = v
	}
}

func (o *BaseObject) AddAction(verb string, handler ActionHandler, priority int) {
	verb = strings.ToLower(verb)
	o.mu.Lock()
	defer o.mu.Unlock()

	slot, ok := o.actions[verb]
	if !ok {
		slot = &actionSlot{}
		o.actions[verb] = slot
	}
	o.seq++
	slot.entries = append(slot.entries, ActionEntry{Verb: verb, Handler: handler, Priority: priority})
	slot.order = append(slot.order, o.seq)
	sortActionSlot(slot)
}

func sortActionSlot(slot *actionSlot) {
	idx := make([]int, len(slot.entries))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ea, eb := slot.entries[idx[a]], slot.entries[idx[b]]
		if ea.Priority != eb.Priority {
			return ea.Priority > eb.Priority
		}
		return slot.order[idx[a]] < slot.order[idx[b]]
	})
	newEntries := make([]ActionEntry, len(idx))
	newOrder := make([]int, len(idx))
	for i, j := range idx {
		newEntries[i] = slot.entries[j]
		newOrder[i] = slot.order[j]
	}
	slot.entries = newEntries
	slot.order = newOrder
}

func (o *BaseObject) RemoveAction(verb string) {
	verb = strings.ToLower(verb)
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.actions, verb)
}

func (o *BaseObject) GetActions() []ActionEntry {
	o.mu.Lock()
	defer o.mu.Unlock()
	verbs := make([]string, 0, len(o.actions))
	for verb := range o.actions {
		verbs = append(verbs, verb)
	}
	sort.Strings(verbs)
	var out []ActionEntry
	for _, verb := range verbs {
		out = append(out, o.actions[verb].entries...)
	}
	return out
}
