package hotreload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mudcore/mudcore/pkg/compiler"
	"github.com/mudcore/mudcore/pkg/gameobject"
	"github.com/mudcore/mudcore/pkg/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newItem() gameobject.GameObject { return gameobject.NewBaseObject() }

// Pre-reload the blueprint instance contains three items; post-reload
// the new instance holds the same three items (by identity) with
// environment pointing at the new instance; existing clones keep their
// behavior.
func TestReloadObjectMigratesInventory(t *testing.T) {
	log := testLogger()
	reg := registry.New(log, nil, nil)
	comp := compiler.New(log)

	comp.RegisterSource("/areas/town/bakery", newItem, "room bakery v1")
	if err := reg.RegisterBlueprint("/areas/town/bakery", newItem, newItem()); err != nil {
		t.Fatalf("register: %v", err)
	}
	oldBP, _ := reg.Find("/areas/town/bakery")

	items := make([]gameobject.GameObject, 3)
	for i := range items {
		path := fmt.Sprintf("/std/item%d", i)
		if err := reg.RegisterBlueprint(path, newItem, newItem()); err != nil {
			t.Fatalf("register item: %v", err)
		}
		items[i], _ = reg.Find(path)
		items[i].MoveTo(oldBP)
	}

	existingClone, ok := reg.Clone(context.Background(), "/areas/town/bakery")
	if !ok {
		t.Fatal("clone failed")
	}

	comp.RegisterSource("/areas/town/bakery", newItem, "room bakery v2")

	ctrl := New(log, "", comp, reg)
	result := ctrl.ReloadObject(context.Background(), "/areas/town/bakery")
	if !result.Success {
		t.Fatalf("expected reload to succeed, got error %q", result.Error)
	}
	if result.MigratedObjects != 3 {
		t.Fatalf("expected 3 migrated objects, got %d", result.MigratedObjects)
	}
	if result.ExistingClones != 1 {
		t.Fatalf("expected 1 existing clone, got %d", result.ExistingClones)
	}
	if result.SourceDiff == "" {
		t.Fatal("expected a non-empty source diff between v1 and v2")
	}
	if result.ReloadID == "" {
		t.Fatal("expected the reload attempt to carry an id")
	}

	newBP, _ := reg.Find("/areas/town/bakery")
	if newBP == oldBP {
		t.Fatal("expected the blueprint instance to have been swapped")
	}
	for _, item := range items {
		if item.Environment() != newBP {
			t.Fatal("expected migrated item's environment to point at the new instance")
		}
	}

	if existingClone.Blueprint() != oldBP {
		t.Fatal("expected existing clone to keep referencing its original blueprint instance")
	}
}

type failingRecompiler struct{ err error }

func (f *failingRecompiler) Recompile(path string) (compiler.Result, error) {
	return compiler.Result{}, f.err
}

func TestReloadObjectCompileFailureLeavesBlueprintUntouched(t *testing.T) {
	log := testLogger()
	reg := registry.New(log, nil, nil)
	if err := reg.RegisterBlueprint("/areas/town/bakery", newItem, newItem()); err != nil {
		t.Fatalf("register: %v", err)
	}
	before, _ := reg.Find("/areas/town/bakery")

	ctrl := New(log, "", &failingRecompiler{err: errors.New("syntax error")}, reg)
	result := ctrl.ReloadObject(context.Background(), "/areas/town/bakery")
	if result.Success {
		t.Fatal("expected reload to fail")
	}

	after, _ := reg.Find("/areas/town/bakery")
	if before != after {
		t.Fatal("expected the existing blueprint to be left untouched on compile failure")
	}
}

// Exercises the real fsnotify-backed watch path end to end.
func TestStartWatchingTriggersReload(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "bakery.src")
	if err := os.WriteFile(filePath, []byte("v1"), 0o644); err != nil {
		t.Fatalf("write initial source: %v", err)
	}

	log := testLogger()
	reg := registry.New(log, nil, nil)
	comp := compiler.New(log)
	comp.RegisterSource("/bakery", newItem, "v1")
	if err := reg.RegisterBlueprint("/bakery", newItem, newItem()); err != nil {
		t.Fatalf("register: %v", err)
	}

	ctrl := New(log, dir, comp, reg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := ctrl.StartWatching(ctx); err != nil {
		t.Fatalf("start watching: %v", err)
	}
	defer ctrl.StopWatching()

	before, _ := reg.Find("/bakery")

	comp.RegisterSource("/bakery", newItem, "v2")
	if err := os.WriteFile(filePath, []byte("v2"), 0o644); err != nil {
		t.Fatalf("rewrite source: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if after, ok := reg.Find("/bakery"); ok && after != before {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("expected file write to trigger a hot-reload within the deadline")
}
