package permission

import (
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Builder bob with domain /areas/castle/: writes allowed inside the
// domain, denied outside it and on protected paths, every call audited.
func TestCanWriteBuilderDomainScenario(t *testing.T) {
	p := New(testLogger(), nil)
	p.SetLevel("bob", Builder)
	p.AddDomain("bob", "/areas/castle/")

	cases := []struct {
		path string
		want bool
	}{
		{"/areas/castle/room1", true},
		{"/areas/castle/npcs/g", true},
		{"/areas/town/x", false},
		{"/std/object", false},
	}

	for _, c := range cases {
		got := p.CanWrite("bob", c.path)
		if got != c.want {
			t.Errorf("canWrite(bob, %q) = %v, want %v", c.path, got, c.want)
		}
	}

	log := p.GetAuditLog(0)
	if len(log) != len(cases) {
		t.Fatalf("expected %d audit entries, got %d", len(cases), len(log))
	}
	for i, c := range cases {
		if log[i].Success != c.want {
			t.Errorf("audit entry %d success=%v, want %v", i, log[i].Success, c.want)
		}
		if log[i].Action != ActionWrite {
			t.Errorf("audit entry %d action=%v, want write", i, log[i].Action)
		}
	}
}

func TestCanWriteTiers(t *testing.T) {
	p := New(testLogger(), nil)
	p.SetLevel("alice", Administrator)
	p.SetLevel("carol", SeniorBuilder)
	p.AddDomain("carol", "/areas/keep/")
	p.SetLevel("dave", Player)

	if !p.CanWrite(nil, "/std/object") {
		t.Fatal("driver should always be able to write")
	}
	if !p.CanWrite("alice", "/std/object") {
		t.Fatal("administrator should always be able to write")
	}
	if !p.CanWrite("carol", "/lib/util") {
		t.Fatal("senior builder should be able to write /lib/*")
	}
	if !p.CanWrite("carol", "/areas/keep/door") {
		t.Fatal("senior builder should be able to write their domain")
	}
	if p.CanWrite("carol", "/std/object") {
		t.Fatal("senior builder should not be able to write protected paths outside /lib/")
	}
	if p.CanWrite("dave", "/areas/keep/door") {
		t.Fatal("player should never be able to write")
	}
}

// Traversal segments must not defeat protected-path or domain prefix
// matching.
func TestCanWriteTraversalNormalized(t *testing.T) {
	p := New(testLogger(), nil)
	p.SetLevel("bob", Builder)
	p.AddDomain("bob", "/areas/castle/")

	if p.CanWrite("bob", "/areas/castle/../../std/object") {
		t.Fatal("expected traversal out of domain into a protected path to be denied")
	}
	if !p.CanWrite("bob", "/areas/castle/rooms/../room1") {
		t.Fatal("expected a traversal that still resolves inside the domain to be permitted")
	}
}

// Export/Import round-trips levels and domains exactly.
func TestExportImportRoundTrip(t *testing.T) {
	p := New(testLogger(), nil)
	p.SetLevel("alice", Administrator)
	p.SetLevel("bob", Builder)
	p.AddDomain("bob", "/areas/castle/")
	p.AddDomain("bob", "/areas/town/")

	data := p.Export()

	p2 := New(testLogger(), nil)
	p2.Import(data)

	if p2.GetLevel("alice") != Administrator || p2.GetLevel("bob") != Builder {
		t.Fatal("levels did not round-trip")
	}
	if !p2.HasDomain("bob", "/areas/castle/") || !p2.HasDomain("bob", "/areas/town/") {
		t.Fatal("domains did not round-trip")
	}
	data2 := p2.Export()
	if len(data2.Levels) != len(data.Levels) || len(data2.Domains["bob"]) != len(data.Domains["bob"]) {
		t.Fatal("re-exported data does not match original shape")
	}
}

func TestAuditLogBoundedAndFilterable(t *testing.T) {
	p := New(testLogger(), nil)
	p.SetLevel("bob", Builder)
	p.AddDomain("bob", "/areas/castle/")

	for i := 0; i < 200; i++ {
		p.CanWrite("bob", "/areas/castle/x")
	}
	all := p.GetAuditLog(0)
	if len(all) != auditCap {
		t.Fatalf("expected audit log capped at %d, got %d", auditCap, len(all))
	}

	p.CanWrite("alice-not-set", "/areas/castle/x")
	forBob := p.GetAuditLogForPlayer("bob", 0)
	for _, e := range forBob {
		if e.Player != "bob" {
			t.Fatalf("expected only bob's entries, found %q", e.Player)
		}
	}

	p.ClearAuditLog()
	if len(p.GetAuditLog(0)) != 0 {
		t.Fatal("expected ClearAuditLog to empty the log")
	}
}

func TestCanReadAndCanExecuteAlwaysPermittedButAudited(t *testing.T) {
	p := New(testLogger(), nil)
	if !p.CanRead("anyone", "/areas/town/x") {
		t.Fatal("expected read to always be permitted")
	}
	if !p.CanExecute(nil, "/areas/town/x") {
		t.Fatal("expected driver execute to always be permitted")
	}
	log := p.GetAuditLog(0)
	if len(log) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(log))
	}
}
