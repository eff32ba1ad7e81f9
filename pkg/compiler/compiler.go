// Package compiler translates a mudlib content path into a callable
// constructor and a blueprint instance. This host is statically
// compiled, so each path is backed by a constructor registered ahead
// of time, analogous to a compiled plugin symbol table, rather than
// parsed from source text at call time.
package compiler

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/mudcore/mudcore/pkg/gameobject"
)

// CompileError is returned when a path has no registered source, or
// its constructor panics while producing an instance. The existing
// blueprint (if any) is left untouched by the caller in either case.
type CompileError struct {
	Path       string
	Diagnostic string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %q: %s", e.Path, e.Diagnostic)
}

type sourceEntry struct {
	constructor    gameobject.Constructor
	sourceText     string
	previousSource string
	generation     int
}

// Compiler holds the registered constructor generation for every
// known content path.
type Compiler struct {
	log *slog.Logger

	mu      sync.Mutex
	sources map[string]*sourceEntry
}

// New constructs an empty Compiler.
func New(log *slog.Logger) *Compiler {
	if log == nil {
		log = slog.Default()
	}
	return &Compiler{log: log, sources: make(map[string]*sourceEntry)}
}

// RegisterSource bumps path's constructor generation. sourceText is
// kept for diagnostics (Recompile diffs it against the previously
// registered text); it may be empty when no source file backs the
// path (e.g. a built-in blueprint registered directly from Go code).
func (c *Compiler) RegisterSource(path string, constructor gameobject.Constructor, sourceText string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.sources[path]
	if !ok {
		entry = &sourceEntry{}
		c.sources[path] = entry
	}
	entry.previousSource = entry.sourceText
	entry.sourceText = sourceText
	entry.constructor = constructor
	entry.generation++
	c.log.Info("source registered", "path", path, "generation", entry.generation)
}

// Compile resolves path's currently registered constructor generation
// and invokes it to produce a fresh blueprint instance. Returns a
// *CompileError if path has no registered source or the constructor
// panics.
func (c *Compiler) Compile(path string) (gameobject.Constructor, gameobject.GameObject, error) {
	c.mu.Lock()
	entry, ok := c.sources[path]
	c.mu.Unlock()
	if !ok {
		return nil, nil, &CompileError{Path: path, Diagnostic: "no registered source"}
	}

	instance, err := safeConstruct(entry.constructor)
	if err != nil {
		return nil, nil, &CompileError{Path: path, Diagnostic: err.Error()}
	}
	return entry.constructor, instance, nil
}

// Result is Recompile's return value: the fresh constructor/instance
// pair plus a human-readable diff of the old vs. new registered source
// text, for operator visibility during hot-reload.
type Result struct {
	Constructor gameobject.Constructor
	Instance    gameobject.GameObject
	SourceDiff  string
}

// Recompile behaves like Compile but also computes a patch-style diff
// between the previously and currently registered source text for
// path (DiffMain -> DiffCleanupSemantic -> PatchMake -> PatchToText).
// SourceDiff is empty when there is no prior source or the text is
// unchanged.
func (c *Compiler) Recompile(path string) (Result, error) {
	c.mu.Lock()
	entry, ok := c.sources[path]
	c.mu.Unlock()
	if !ok {
		return Result{}, &CompileError{Path: path, Diagnostic: "no registered source"}
	}

	instance, err := safeConstruct(entry.constructor)
	if err != nil {
		return Result{}, &CompileError{Path: path, Diagnostic: err.Error()}
	}

	diff := diffSourceText(entry.previousSource, entry.sourceText)
	return Result{Constructor: entry.constructor, Instance: instance, SourceDiff: diff}, nil
}

func diffSourceText(oldText, newText string) string {
	if oldText == "" || oldText == newText {
		return ""
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldText, newText, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	hasChanges := false
	for _, d := range diffs {
		if d.Type != diffmatchpatch.DiffEqual {
			hasChanges = true
			break
		}
	}
	if !hasChanges {
		return ""
	}

	patches := dmp.PatchMake(oldText, diffs)
	if len(patches) == 0 {
		return ""
	}
	return dmp.PatchToText(patches)
}

func safeConstruct(constructor gameobject.Constructor) (instance gameobject.GameObject, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("constructor panicked: %v", r)
		}
	}()
	instance = constructor()
	return instance, nil
}
