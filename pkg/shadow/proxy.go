package shadow

import (
	"github.com/mudcore/mudcore/pkg/gameobject"
)

// Proxy is the transparent wrapper GameObject returned by
// WrapWithProxy. Every method except Get delegates straight to the
// wrapped target; shadows only ever intercept reads (see Get's
// resolution order below); writes always pass through.
type Proxy struct {
	target   gameobject.GameObject
	registry *Registry
}

var _ gameobject.GameObject = (*Proxy)(nil)

func (p *Proxy) ObjectPath() string                 { return p.target.ObjectPath() }
func (p *Proxy) ObjectID() string                   { return p.target.ObjectID() }
func (p *Proxy) IsClone() bool                      { return p.target.IsClone() }
func (p *Proxy) Blueprint() gameobject.GameObject   { return p.target.Blueprint() }
func (p *Proxy) ShortDesc() string                  { return p.target.ShortDesc() }
func (p *Proxy) SetShortDesc(s string)              { p.target.SetShortDesc(s) }
func (p *Proxy) LongDesc() string                   { return p.target.LongDesc() }
func (p *Proxy) SetLongDesc(s string)               { p.target.SetLongDesc(s) }
func (p *Proxy) Environment() gameobject.GameObject { return p.target.Environment() }
func (p *Proxy) Inventory() []gameobject.GameObject { return p.target.Inventory() }
func (p *Proxy) MoveTo(destination gameobject.GameObject) bool {
	return p.target.MoveTo(destination)
}
func (p *Proxy) Id(name string) bool { return p.target.Id(name) }

func (p *Proxy) AddAction(verb string, handler gameobject.ActionHandler, priority int) {
	p.target.AddAction(verb, handler, priority)
}
func (p *Proxy) RemoveAction(verb string) { p.target.RemoveAction(verb) }
func (p *Proxy) GetActions() []gameobject.ActionEntry {
	return p.target.GetActions()
}
func (p *Proxy) SetIdentity(path, id string, isClone bool, blueprint gameobject.GameObject) {
	p.target.SetIdentity(path, id, isClone, blueprint)
}

// Unwrap recovers the wrapped target, satisfying gameobject.Unwrappable
// so MoveTo's inventory bookkeeping can still reach the underlying
// *BaseObject when handed a proxy as a destination or inventory member.
func (p *Proxy) Unwrap() gameobject.GameObject { return p.target }

// Set always passes through to the target. Shadows cannot intercept
// writes.
func (p *Proxy) Set(key string, value any) {
	p.target.Set(key, value)
}

// Get resolves key in the exact order specified for the proxy:
// proxy-marker sentinel, original-access sentinel, unshadowable set,
// active shadows in priority order (first own-present match wins,
// functions bound to their shadow), then the target itself.
func (p *Proxy) Get(key string) (any, bool) {
	switch key {
	case ProxyMarkerKey:
		return true, true
	case OriginalAccessKey:
		return p.target, true
	}

	if unshadowable[key] {
		return p.getUnshadowable(key)
	}

	for _, s := range p.registry.GetShadows(p.target.ObjectID()) {
		if !s.IsActive {
			continue
		}
		if v, ok := s.has(key); ok {
			if m, ok := v.(Method); ok {
				return BoundMethod(func(args ...any) (any, error) {
					return m(s, args...)
				}), true
			}
			return v, true
		}
	}

	return p.target.Get(key)
}

func (p *Proxy) getUnshadowable(key string) (any, bool) {
	switch key {
	case "objectId":
		return p.target.ObjectID(), true
	case "objectPath":
		return p.target.ObjectPath(), true
	case "isClone":
		return p.target.IsClone(), true
	case "blueprint":
		return p.target.Blueprint(), true
	case "inventory":
		return p.target.Inventory(), true
	case "environment":
		return p.target.Environment(), true
	}
	return nil, false
}
