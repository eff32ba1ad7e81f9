// Package hotreload watches the mudlib tree and, on change to a
// compiled path, re-runs the Compiler and asks the Object Registry to
// swap the blueprint live.
package hotreload

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/oklog/ulid/v2"

	"github.com/mudcore/mudcore/pkg/compiler"
	"github.com/mudcore/mudcore/pkg/gameobject"
	"github.com/mudcore/mudcore/pkg/registry"
)

const debounceWindow = 250 * time.Millisecond

// Recompiler is the subset of *compiler.Compiler the controller needs.
type Recompiler interface {
	Recompile(path string) (compiler.Result, error)
}

// BlueprintUpdater is the subset of *registry.Registry the controller
// needs.
type BlueprintUpdater interface {
	UpdateBlueprint(path string, constructor gameobject.Constructor, instance gameobject.GameObject) (registry.UpdateResult, error)
}

// Result is ReloadObject's return value. ReloadID identifies the
// reload attempt in logs and operator-facing views.
type Result struct {
	ReloadID        string
	Success         bool
	Error           string
	ExistingClones  int
	MigratedObjects int
	SourceDiff      string
}

// Controller watches mudlibRoot and reloads content paths as their
// backing files change.
type Controller struct {
	log        *slog.Logger
	mudlibRoot string
	compiler   Recompiler
	registry   BlueprintUpdater

	mu        sync.Mutex
	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
	debounced map[string]*time.Timer
}

// New constructs a Controller. mudlibRoot is the filesystem directory
// that mirrors the mudlib's content path namespace (a watched file's
// path, stripped of mudlibRoot and its extension, is the content path
// passed to ReloadObject).
func New(log *slog.Logger, mudlibRoot string, c Recompiler, r BlueprintUpdater) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		log:        log,
		mudlibRoot: mudlibRoot,
		compiler:   c,
		registry:   r,
		debounced:  make(map[string]*time.Timer),
	}
}

// StartWatching begins watching mudlibRoot recursively; new
// subdirectories are added to the watch as they're created.
func (c *Controller) StartWatching(ctx context.Context) error {
	c.mu.Lock()
	if c.watcher != nil {
		c.mu.Unlock()
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("hotreload: start watching: %w", err)
	}
	c.watcher = w
	c.stopCh = make(chan struct{})
	stopCh := c.stopCh
	c.mu.Unlock()

	if err := filepath.Walk(c.mudlibRoot, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return w.Add(p)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("hotreload: walk mudlib root: %w", err)
	}

	go c.watchLoop(ctx, w, stopCh)
	return nil
}

// StopWatching tears down the filesystem watch.
func (c *Controller) StopWatching() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watcher == nil {
		return
	}
	close(c.stopCh)
	c.watcher.Close()
	c.watcher = nil
	for _, t := range c.debounced {
		t.Stop()
	}
	c.debounced = make(map[string]*time.Timer)
}

func (c *Controller) watchLoop(ctx context.Context, w *fsnotify.Watcher, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			c.handleEvent(ctx, w, event)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			c.log.Error("hotreload watch error", "error", err)
		}
	}
}

func (c *Controller) handleEvent(ctx context.Context, w *fsnotify.Watcher, event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.Add(event.Name); err != nil {
				c.log.Error("hotreload watch add failed", "path", event.Name, "error", err)
			}
			return
		}
	}

	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	c.debounce(event.Name, func() {
		contentPath := c.toContentPath(event.Name)
		result := c.ReloadObject(ctx, contentPath)
		c.log.Info("hot-reload triggered by file watch", "reload_id", result.ReloadID,
			"path", contentPath, "file", event.Name,
			"success", result.Success, "existing_clones", result.ExistingClones,
			"migrated_objects", result.MigratedObjects)
		if !result.Success {
			c.log.Error("hot-reload failed", "reload_id", result.ReloadID, "path", contentPath, "error", result.Error)
		}
	})
}

func (c *Controller) debounce(key string, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.debounced[key]; ok {
		t.Stop()
	}
	c.debounced[key] = time.AfterFunc(debounceWindow, fn)
}

func (c *Controller) toContentPath(file string) string {
	rel, err := filepath.Rel(c.mudlibRoot, file)
	if err != nil {
		rel = file
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	rel = filepath.ToSlash(rel)
	if !strings.HasPrefix(rel, "/") {
		rel = "/" + rel
	}
	return rel
}

// ReloadObject is the core recipe: compile path, then ask the registry
// to swap the blueprint, returning the augmented result. The world is
// never left half-reloaded: the compile step strictly precedes the
// registry swap.
func (c *Controller) ReloadObject(_ context.Context, path string) Result {
	reloadID := ulid.Make().String()

	recompiled, err := c.compiler.Recompile(path)
	if err != nil {
		return Result{ReloadID: reloadID, Success: false, Error: err.Error()}
	}

	update, err := c.registry.UpdateBlueprint(path, recompiled.Constructor, recompiled.Instance)
	if err != nil {
		return Result{ReloadID: reloadID, Success: false, Error: err.Error()}
	}

	return Result{
		ReloadID:        reloadID,
		Success:         true,
		ExistingClones:  update.ExistingClones,
		MigratedObjects: update.MigratedObjects,
		SourceDiff:      recompiled.SourceDiff,
	}
}
