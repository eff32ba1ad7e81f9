// Package persistence durably snapshots and restores player state,
// world state, and permissions. All writes go through a write-to-temp,
// fsync, rename sequence so a crash never leaves a partial file.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mudcore/mudcore/pkg/gameobject"
)

// ErrNotFound is what the internal file reader reports for a file that
// does not exist. LoadPlayer, LoadWorldState and LoadPermissions turn it
// into their "none" result instead of returning it.
var ErrNotFound = errors.New("persistence: not found")

const snapshotVersion = 1

var sanitizePattern = regexp.MustCompile(`[^a-z0-9]`)

func sanitizeName(name string) string {
	return sanitizePattern.ReplaceAllString(strings.ToLower(name), "")
}

// PlayerSnapshot is the on-disk form of a player's saved state.
type PlayerSnapshot struct {
	Name      string      `json:"name"`
	Location  string      `json:"location"`
	State     PlayerState `json:"state"`
	Timestamp time.Time   `json:"timestamp"`
	Version   int         `json:"version"`
}

// PlayerState holds the persisted property bag.
type PlayerState struct {
	Properties map[string]any `json:"properties"`
}

// SerializedObject is one entry in a WorldSnapshot. Environment and
// Inventory reference other objects by objectId string, never by Go
// pointer, so the snapshot can be rehydrated after every object in it
// has been loaded.
type SerializedObject struct {
	ObjectID    string         `json:"objectId"`
	ObjectPath  string         `json:"objectPath"`
	IsClone     bool           `json:"isClone"`
	ShortDesc   string         `json:"shortDesc"`
	LongDesc    string         `json:"longDesc"`
	Environment string         `json:"environment,omitempty"`
	Inventory   []string       `json:"inventory,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
}

// WorldSnapshot is the on-disk form of the whole world tree.
type WorldSnapshot struct {
	Version   int                `json:"version"`
	Timestamp time.Time          `json:"timestamp"`
	Objects   []SerializedObject `json:"objects"`
}

// Scheduler is the subset of *scheduler.Scheduler that auto-save
// needs, so this package doesn't have to import it directly.
type Scheduler interface {
	CallOutRepeat(cb func(ctx context.Context), intervalMs int) int64
	RemoveCallOut(id int64) bool
}

// Store is the file-backed persistence layer.
type Store struct {
	log      *slog.Logger
	dataPath string

	mu             sync.Mutex
	autoSaveID     int64
	autoSaveActive bool
	scheduler      Scheduler
}

// New constructs a Store rooted at dataPath, creating the directory
// layout (<dataPath>/players) if it doesn't already exist.
func New(log *slog.Logger, dataPath string) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if dataPath == "" {
		dataPath = "./data"
	}
	if err := os.MkdirAll(filepath.Join(dataPath, "players"), 0o755); err != nil {
		return nil, fmt.Errorf("persistence: create data layout: %w", err)
	}
	return &Store{log: log, dataPath: dataPath}, nil
}

func atomicWrite(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	f, err := os.Open(tmpPath)
	if err != nil {
		return fmt.Errorf("reopen temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("corrupt file %s: %w", path, err)
	}
	return nil
}

func (s *Store) playerPath(name string) string {
	return filepath.Join(s.dataPath, "players", sanitizeName(name)+".json")
}

// playerProperties reads obj's persistable properties via the optional
// PersistableState interface; objects that don't implement it persist
// nothing beyond identity.
func playerProperties(obj gameobject.GameObject) map[string]any {
	if p, ok := obj.(gameobject.PersistableState); ok {
		return p.PersistableState()
	}
	return map[string]any{}
}

// SavePlayer serializes name's snapshot: location (obj's environment
// path, if any), persisted properties, timestamp, and version 1.
func (s *Store) SavePlayer(name string, obj gameobject.GameObject) error {
	location := ""
	if env := obj.Environment(); env != nil {
		location = env.ObjectPath()
	}
	snapshot := PlayerSnapshot{
		Name:      sanitizeName(name),
		Location:  location,
		State:     PlayerState{Properties: playerProperties(obj)},
		Timestamp: time.Now(),
		Version:   snapshotVersion,
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal player snapshot: %w", err)
	}
	return atomicWrite(s.playerPath(name), data)
}

// LoadPlayer returns name's snapshot, or (nil, nil) if none is saved.
func (s *Store) LoadPlayer(name string) (*PlayerSnapshot, error) {
	var snapshot PlayerSnapshot
	if err := readJSON(s.playerPath(name), &snapshot); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &snapshot, nil
}

// PlayerExists reports whether name has a saved snapshot.
func (s *Store) PlayerExists(name string) bool {
	_, err := os.Stat(s.playerPath(name))
	return err == nil
}

// ListPlayers returns every sanitized player name with a saved
// snapshot.
func (s *Store) ListPlayers() ([]string, error) {
	dir := filepath.Join(s.dataPath, "players")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

// DeletePlayer removes name's snapshot. Returns false if none existed.
func (s *Store) DeletePlayer(name string) (bool, error) {
	path := s.playerPath(name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	if err := os.Remove(path); err != nil {
		return false, fmt.Errorf("delete player: %w", err)
	}
	return true, nil
}

func (s *Store) worldPath() string       { return filepath.Join(s.dataPath, "world.json") }
func (s *Store) permissionsPath() string { return filepath.Join(s.dataPath, "permissions.json") }

// SaveWorldState serializes objects into a world snapshot. Each
// object's environment and inventory are captured as objectId strings
// so the snapshot can be rehydrated after every referenced object has
// been loaded.
func (s *Store) SaveWorldState(objects []gameobject.GameObject) error {
	snapshot := WorldSnapshot{Version: snapshotVersion, Timestamp: time.Now()}
	for _, obj := range objects {
		entry := SerializedObject{
			ObjectID:   obj.ObjectID(),
			ObjectPath: obj.ObjectPath(),
			IsClone:    obj.IsClone(),
			ShortDesc:  obj.ShortDesc(),
			LongDesc:   obj.LongDesc(),
			Properties: playerProperties(obj),
		}
		if env := obj.Environment(); env != nil {
			entry.Environment = env.ObjectID()
		}
		for _, item := range obj.Inventory() {
			entry.Inventory = append(entry.Inventory, item.ObjectID())
		}
		snapshot.Objects = append(snapshot.Objects, entry)
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal world snapshot: %w", err)
	}
	return atomicWrite(s.worldPath(), data)
}

// LoadWorldState returns the saved world snapshot, or (nil, nil) if
// none exists.
func (s *Store) LoadWorldState() (*WorldSnapshot, error) {
	var snapshot WorldSnapshot
	if err := readJSON(s.worldPath(), &snapshot); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &snapshot, nil
}

// SavePermissions writes levels+domains to the permissions file.
func (s *Store) SavePermissions(data any) error {
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal permissions: %w", err)
	}
	return atomicWrite(s.permissionsPath(), encoded)
}

// LoadPermissions decodes the permissions file into out. Returns
// (false, nil) if the file is absent.
func (s *Store) LoadPermissions(out any) (bool, error) {
	if err := readJSON(s.permissionsPath(), out); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RestoreObjectState copies properties from state onto obj, leaving
// identity fields untouched. Callers are responsible for placing the
// restored object into its saved location.
func RestoreObjectState(obj gameobject.GameObject, state map[string]any) {
	if r, ok := obj.(gameobject.PersistableState); ok {
		r.RestoreState(state)
		return
	}
	for k, v := range state {
		obj.Set(k, v)
	}
}

// StartAutoSave establishes a recurring saver driven by scheduler's
// call-out mechanism, keeping periodic persistence inside the same
// cooperative execution model as the rest of the engine rather than an
// independent timer. Starting twice silently replaces the prior
// schedule. Errors during a save are logged and never stop the
// schedule.
func (s *Store) StartAutoSave(sched Scheduler, intervalMs int, getObjects func() []gameobject.GameObject) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.autoSaveActive {
		sched.RemoveCallOut(s.autoSaveID)
	}
	s.scheduler = sched
	s.autoSaveID = sched.CallOutRepeat(func(ctx context.Context) {
		if err := s.SaveWorldState(getObjects()); err != nil {
			s.log.Error("auto-save failed", "error", err)
		}
	}, intervalMs)
	s.autoSaveActive = true
}

// StopAutoSave cancels the recurring saver, if any.
func (s *Store) StopAutoSave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.autoSaveActive {
		return
	}
	s.scheduler.RemoveCallOut(s.autoSaveID)
	s.autoSaveActive = false
}
