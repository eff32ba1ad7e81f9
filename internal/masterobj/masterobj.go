// Package masterobj provides the default master object bound to a
// driver when no mudlib supplies its own. Real deployments are
// expected to register their own master content class via
// driver.New; this one exists so cmd/mudcore has something to boot
// out of the box. Content classes are clients of the core, never part
// of it.
package masterobj

import (
	"context"
	"log/slog"

	"github.com/mudcore/mudcore/pkg/gameobject"
)

// Source is the "source text" registered with the Compiler for the
// default master object. It carries no executable semantics (the
// Compiler's registered-constructor strategy recompiles by re-running
// New, not by parsing this string) but Recompile's diff output still
// needs a baseline to diff against.
const Source = "default master object v1"

// Master is the minimal master object: it logs its own boot hooks and
// otherwise does nothing. Embeds *gameobject.BaseObject for the full
// GameObject contract.
type Master struct {
	*gameobject.BaseObject
	log *slog.Logger
}

// New constructs a default Master. Matches gameobject.Constructor.
func New() gameobject.GameObject {
	m := &Master{BaseObject: gameobject.NewBaseObject(), log: slog.Default()}
	m.SetShortDesc("the master object")
	m.SetLongDesc("The driver's default master object. No mudlib content is loaded.")
	return m
}

// OnDriverStart satisfies driver.DriverStartHook.
func (m *Master) OnDriverStart(ctx context.Context) error {
	m.log.Info("master: driver start hook fired")
	return nil
}

// OnPreload satisfies driver.PreloadHook. The default master has no
// mudlib content to name, so the compile list is empty.
func (m *Master) OnPreload(ctx context.Context) ([]string, error) {
	m.log.Info("master: preload hook fired (no mudlib content registered)")
	return nil, nil
}

// OnShutdown satisfies driver.ShutdownHook.
func (m *Master) OnShutdown(ctx context.Context) error {
	m.log.Info("master: shutdown hook fired")
	return nil
}
