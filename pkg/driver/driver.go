// Package driver is the top-level facade wiring the Object Registry,
// Scheduler, Shadow Registry, Permissions, Compiler, Hot-Reload
// Controller, and Persistence store into one runnable engine.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mudcore/mudcore/pkg/compiler"
	"github.com/mudcore/mudcore/pkg/gameobject"
	"github.com/mudcore/mudcore/pkg/hotreload"
	"github.com/mudcore/mudcore/pkg/permission"
	"github.com/mudcore/mudcore/pkg/persistence"
	"github.com/mudcore/mudcore/pkg/registry"
	"github.com/mudcore/mudcore/pkg/scheduler"
	"github.com/mudcore/mudcore/pkg/shadow"
)

// State is a Driver's lifecycle state.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// DriverStartHook is implemented by a master object that wants to run
// setup logic once the engine is otherwise fully wired.
type DriverStartHook interface {
	OnDriverStart(ctx context.Context) error
}

// PreloadHook is implemented by a master object that wants content
// (areas, daemons) compiled before the engine accepts traffic. The
// returned paths must already have sources registered with the
// Compiler; each is compiled and registered as a blueprint, and
// failures are logged without aborting boot.
type PreloadHook interface {
	OnPreload(ctx context.Context) ([]string, error)
}

// ShutdownHook is implemented by a master object that wants to run
// teardown logic before the engine stops.
type ShutdownHook interface {
	OnShutdown(ctx context.Context) error
}

// Config configures a Driver instance.
type Config struct {
	MudlibPath          string
	MasterObjectPath    string
	Port                int
	HeartbeatIntervalMs int
	LogLevel            string
	HotReloadEnabled    bool
	DataPath            string
	ProtectedPaths      []string
	AutoSaveIntervalMs  int
}

const (
	defaultMasterPath       = "/master"
	defaultAutoSaveInterval = 60_000
)

// Driver owns every subsystem and the master object boot sequence.
type Driver struct {
	cfg Config
	log *slog.Logger

	masterConstructor gameobject.Constructor
	masterSource      string

	Registry    *registry.Registry
	Scheduler   *scheduler.Scheduler
	Shadows     *shadow.Registry
	Permissions *permission.Permissions
	Compiler    *compiler.Compiler
	HotReload   *hotreload.Controller
	Persistence *persistence.Store

	mu           sync.Mutex
	state        State
	masterObject gameobject.GameObject
	cancel       context.CancelFunc
}

// New wires every subsystem together but performs no I/O; call Start
// to boot. masterConstructor/masterSource back the master object's
// content path (Config.MasterObjectPath, default "/master").
func New(log *slog.Logger, cfg Config, masterConstructor gameobject.Constructor, masterSource string) (*Driver, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MasterObjectPath == "" {
		cfg.MasterObjectPath = defaultMasterPath
	}
	if cfg.AutoSaveIntervalMs == 0 {
		cfg.AutoSaveIntervalMs = defaultAutoSaveInterval
	}

	sched := scheduler.New(log, cfg.HeartbeatIntervalMs)
	shadows := shadow.New(log)
	reg := registry.New(log, sched, shadows)
	// Every object the registry hands back (Find/Clone) or that a
	// content object reaches via Environment()/Inventory() is presented
	// through the Shadow Registry's proxy wrapper, so external traversal
	// of the world tree (mudlib content, the admin API) always sees
	// shadow-intercepted views.
	reg.SetNavWrapper(shadows.WrapWithProxy)
	perms := permission.New(log, cfg.ProtectedPaths)
	comp := compiler.New(log)
	hr := hotreload.New(log, cfg.MudlibPath, comp, reg)

	var store *persistence.Store
	if cfg.DataPath != "" {
		var err error
		store, err = persistence.New(log, cfg.DataPath)
		if err != nil {
			return nil, fmt.Errorf("driver: init persistence: %w", err)
		}
	}

	return &Driver{
		cfg:               cfg,
		log:               log,
		masterConstructor: masterConstructor,
		masterSource:      masterSource,
		Registry:          reg,
		Scheduler:         sched,
		Shadows:           shadows,
		Permissions:       perms,
		Compiler:          comp,
		HotReload:         hr,
		Persistence:       store,
		state:             StateStopped,
	}, nil
}

// State reports the current lifecycle state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// MasterObject returns the booted master object, or nil before Start.
func (d *Driver) MasterObject() gameobject.GameObject {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.masterObject
}

// Start transitions stopped -> starting -> running: compiles and
// registers the master object, runs its optional boot hooks (failures
// are logged, never fatal), starts the scheduler, and, if configured,
// starts hot-reload watching and auto-save. Rejects unless currently
// stopped.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.state != StateStopped {
		state := d.state
		d.mu.Unlock()
		return fmt.Errorf("driver: cannot start from state %q", state)
	}
	d.state = StateStarting
	d.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)

	d.Compiler.RegisterSource(d.cfg.MasterObjectPath, d.masterConstructor, d.masterSource)
	_, instance, err := d.Compiler.Compile(d.cfg.MasterObjectPath)
	if err != nil {
		cancel()
		d.setState(StateStopped)
		return fmt.Errorf("driver: compile master object: %w", err)
	}
	// On a restart the master blueprint from the previous run is still
	// registered; UpdateBlueprint swaps it in place.
	if err := d.Registry.RegisterBlueprint(d.cfg.MasterObjectPath, d.masterConstructor, instance); err != nil {
		if !errors.Is(err, registry.ErrAlreadyRegistered) {
			cancel()
			d.setState(StateStopped)
			return fmt.Errorf("driver: register master object: %w", err)
		}
		if _, err := d.Registry.UpdateBlueprint(d.cfg.MasterObjectPath, d.masterConstructor, instance); err != nil {
			cancel()
			d.setState(StateStopped)
			return fmt.Errorf("driver: update master object: %w", err)
		}
	}

	d.mu.Lock()
	d.masterObject = instance
	d.cancel = cancel
	d.mu.Unlock()

	d.runMasterHook("onDriverStart", func() error {
		if hook, ok := instance.(DriverStartHook); ok {
			return hook.OnDriverStart(runCtx)
		}
		return nil
	})
	d.runMasterHook("onPreload", func() error {
		if hook, ok := instance.(PreloadHook); ok {
			paths, err := hook.OnPreload(runCtx)
			if err != nil {
				return err
			}
			d.preload(paths)
		}
		return nil
	})

	d.Scheduler.Start(runCtx)

	if d.cfg.HotReloadEnabled && d.cfg.MudlibPath != "" {
		if err := d.HotReload.StartWatching(runCtx); err != nil {
			d.log.Error("driver: hot-reload watch failed to start", "error", err)
		}
	}

	if d.Persistence != nil {
		d.Persistence.StartAutoSave(d.Scheduler, d.cfg.AutoSaveIntervalMs, d.Registry.AllObjects)
	}

	d.setState(StateRunning)
	d.log.Info("driver started", "master", d.cfg.MasterObjectPath, "port", d.cfg.Port)
	return nil
}

// Stop transitions running -> stopping -> stopped. Idempotent: calling
// Stop when already stopped is a no-op.
func (d *Driver) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.state == StateStopped {
		d.mu.Unlock()
		return nil
	}
	d.state = StateStopping
	instance := d.masterObject
	cancel := d.cancel
	d.mu.Unlock()

	if instance != nil {
		d.runMasterHook("onShutdown", func() error {
			if hook, ok := instance.(ShutdownHook); ok {
				return hook.OnShutdown(ctx)
			}
			return nil
		})
	}

	d.HotReload.StopWatching()
	if d.Persistence != nil {
		d.Persistence.StopAutoSave()
	}
	d.Scheduler.Stop()
	if cancel != nil {
		cancel()
	}

	d.setState(StateStopped)
	d.log.Info("driver stopped")
	return nil
}

// preload compiles and registers every path the master object's
// OnPreload named. A path that fails to compile or register is logged
// and skipped; boot continues.
func (d *Driver) preload(paths []string) {
	for _, path := range paths {
		constructor, instance, err := d.Compiler.Compile(path)
		if err != nil {
			d.log.Error("preload compile failed", "path", path, "error", err)
			continue
		}
		if err := d.Registry.RegisterBlueprint(path, constructor, instance); err != nil {
			d.log.Error("preload registration failed", "path", path, "error", err)
			continue
		}
		d.log.Info("preloaded blueprint", "path", path)
	}
}

func (d *Driver) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// runMasterHook invokes fn, logging but never propagating a failure;
// a misbehaving master object must not prevent the engine from
// finishing its boot or shutdown sequence.
func (d *Driver) runMasterHook(name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("master object hook panicked", "hook", name, "panic", r)
		}
	}()
	if err := fn(); err != nil {
		d.log.Error("master object hook failed", "hook", name, "error", err)
	}
}
