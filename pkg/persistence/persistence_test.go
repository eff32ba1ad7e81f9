package persistence

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/mudcore/mudcore/pkg/gameobject"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(testLogger(), t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func newRoom(desc string) gameobject.GameObject {
	o := gameobject.NewBaseObject()
	o.SetShortDesc(desc)
	return o
}

// SavePlayer/LoadPlayer round-trips every persisted property plus
// location matching the environment's object path.
func TestSavePlayerLoadPlayerRoundTrip(t *testing.T) {
	s := newStore(t)

	room := newRoom("a quiet square")
	player := gameobject.NewBaseObject()
	player.SetShortDesc("Bob the adventurer")
	player.Set("hp", float64(42))
	player.Set("gold", float64(10))
	player.MoveTo(room)

	if err := s.SavePlayer("Bob", player); err != nil {
		t.Fatalf("save player: %v", err)
	}

	snapshot, err := s.LoadPlayer("Bob")
	if err != nil {
		t.Fatalf("load player: %v", err)
	}
	if snapshot == nil {
		t.Fatal("expected a snapshot")
	}
	if snapshot.Location != room.ObjectPath() {
		t.Fatalf("expected location %q, got %q", room.ObjectPath(), snapshot.Location)
	}
	if snapshot.State.Properties["hp"] != float64(42) {
		t.Fatalf("expected hp 42, got %v", snapshot.State.Properties["hp"])
	}
	if snapshot.State.Properties["gold"] != float64(10) {
		t.Fatalf("expected gold 10, got %v", snapshot.State.Properties["gold"])
	}
	if snapshot.Version != snapshotVersion {
		t.Fatalf("expected version %d, got %d", snapshotVersion, snapshot.Version)
	}

	if !s.PlayerExists("Bob") {
		t.Fatal("expected PlayerExists to report true after save")
	}
	if s.PlayerExists("nobody") {
		t.Fatal("expected PlayerExists to report false for an unknown name")
	}

	names, err := s.ListPlayers()
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	if len(names) != 1 || names[0] != "bob" {
		t.Fatalf("expected [bob], got %v", names)
	}

	removed, err := s.DeletePlayer("Bob")
	if err != nil || !removed {
		t.Fatalf("expected delete to succeed, got removed=%v err=%v", removed, err)
	}
	if s.PlayerExists("Bob") {
		t.Fatal("expected player to be gone after delete")
	}
}

func TestLoadPlayerAbsentReturnsNilNoError(t *testing.T) {
	s := newStore(t)
	snapshot, err := s.LoadPlayer("ghost")
	if err != nil {
		t.Fatalf("expected no error for absent player, got %v", err)
	}
	if snapshot != nil {
		t.Fatal("expected a nil snapshot for an absent player")
	}
}

func TestLoadPlayerCorruptFileRaisesError(t *testing.T) {
	s := newStore(t)
	if err := os.WriteFile(s.playerPath("broken"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	if _, err := s.LoadPlayer("broken"); err == nil {
		t.Fatal("expected an error loading a corrupt snapshot")
	}
}

func TestDeletePlayerAbsentReturnsFalseNoError(t *testing.T) {
	s := newStore(t)
	removed, err := s.DeletePlayer("nobody")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if removed {
		t.Fatal("expected removed=false for an absent player")
	}
}

func TestSaveWorldStateLoadWorldStateRoundTrip(t *testing.T) {
	s := newStore(t)

	room := newRoom("the plaza")
	item := newRoom("a brass key")
	item.MoveTo(room)

	if err := s.SaveWorldState([]gameobject.GameObject{room, item}); err != nil {
		t.Fatalf("save world: %v", err)
	}

	snapshot, err := s.LoadWorldState()
	if err != nil {
		t.Fatalf("load world: %v", err)
	}
	if snapshot == nil || len(snapshot.Objects) != 2 {
		t.Fatalf("expected 2 objects, got %+v", snapshot)
	}

	var itemEntry *SerializedObject
	for i := range snapshot.Objects {
		if snapshot.Objects[i].ObjectID == item.ObjectID() {
			itemEntry = &snapshot.Objects[i]
		}
	}
	if itemEntry == nil {
		t.Fatal("expected to find the item in the snapshot")
	}
	if itemEntry.Environment != room.ObjectID() {
		t.Fatalf("expected item environment to reference room by id, got %q", itemEntry.Environment)
	}
}

func TestLoadWorldStateAbsentReturnsNilNoError(t *testing.T) {
	s := newStore(t)
	snapshot, err := s.LoadWorldState()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if snapshot != nil {
		t.Fatal("expected a nil snapshot when no world file exists")
	}
}

type permissionsData struct {
	Levels  map[string]int      `json:"levels"`
	Domains map[string][]string `json:"domains"`
}

func TestSavePermissionsLoadPermissionsRoundTrip(t *testing.T) {
	s := newStore(t)
	data := permissionsData{
		Levels:  map[string]int{"bob": 1},
		Domains: map[string][]string{"bob": {"/areas/castle"}},
	}
	if err := s.SavePermissions(data); err != nil {
		t.Fatalf("save permissions: %v", err)
	}

	var loaded permissionsData
	found, err := s.LoadPermissions(&loaded)
	if err != nil {
		t.Fatalf("load permissions: %v", err)
	}
	if !found {
		t.Fatal("expected permissions to be found")
	}
	if loaded.Levels["bob"] != 1 || loaded.Domains["bob"][0] != "/areas/castle" {
		t.Fatalf("unexpected loaded permissions: %+v", loaded)
	}
}

func TestLoadPermissionsAbsentReturnsFalseNoError(t *testing.T) {
	s := newStore(t)
	var loaded permissionsData
	found, err := s.LoadPermissions(&loaded)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if found {
		t.Fatal("expected found=false when no permissions file exists")
	}
}

func TestRestoreObjectStateRestoresPropertiesLeavesIdentity(t *testing.T) {
	obj := gameobject.NewBaseObject()
	obj.SetShortDesc("a wizard")

	RestoreObjectState(obj, map[string]any{"mana": float64(99)})

	if mana, _ := obj.Get("mana"); mana != float64(99) {
		t.Fatalf("expected mana restored, got %v", mana)
	}
	if obj.ShortDesc() != "a wizard" {
		t.Fatal("expected identity fields to remain untouched")
	}
}

type fakeScheduler struct {
	nextID     int64
	removed    []int64
	registered func(ctx context.Context)
}

func (f *fakeScheduler) CallOutRepeat(cb func(ctx context.Context), intervalMs int) int64 {
	f.nextID++
	f.registered = cb
	return f.nextID
}

func (f *fakeScheduler) RemoveCallOut(id int64) bool {
	f.removed = append(f.removed, id)
	return true
}

func TestAutoSaveDrivenByScheduler(t *testing.T) {
	s := newStore(t)
	room := newRoom("the hub")

	sched := &fakeScheduler{}
	s.StartAutoSave(sched, 1000, func() []gameobject.GameObject { return []gameobject.GameObject{room} })

	if sched.registered == nil {
		t.Fatal("expected StartAutoSave to register a recurring call-out")
	}
	sched.registered(context.Background())

	if _, err := os.Stat(filepath.Join(s.dataPath, "world.json")); err != nil {
		t.Fatalf("expected auto-save to have written world.json: %v", err)
	}

	s.StopAutoSave()
	if len(sched.removed) != 1 {
		t.Fatalf("expected one call-out removal, got %d", len(sched.removed))
	}
}

func TestStartAutoSaveTwiceReplacesPriorSchedule(t *testing.T) {
	s := newStore(t)
	sched := &fakeScheduler{}
	noObjects := func() []gameobject.GameObject { return nil }

	s.StartAutoSave(sched, 1000, noObjects)
	s.StartAutoSave(sched, 500, noObjects)

	if len(sched.removed) != 1 {
		t.Fatalf("expected the first schedule to be removed once, got %d removals", len(sched.removed))
	}
}
