// Package permission implements the four-tier authority model and
// file-path gating for write operations, with an audited trail of
// every access decision.
package permission

import (
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Level is the four-tier authority ladder, lowest first.
type Level int

const (
	Player Level = iota
	Builder
	SeniorBuilder
	Administrator
)

func (l Level) String() string {
	switch l {
	case Player:
		return "player"
	case Builder:
		return "builder"
	case SeniorBuilder:
		return "senior_builder"
	case Administrator:
		return "administrator"
	default:
		return "unknown"
	}
}

// Action is the audited operation kind.
type Action string

const (
	ActionRead    Action = "read"
	ActionWrite   Action = "write"
	ActionExecute Action = "execute"
)

// AuditEntry is one record in the bounded audit log.
type AuditEntry struct {
	ID        string
	Timestamp time.Time
	Player    string
	Action    Action
	Target    string
	Success   bool
	Details   string
}

const auditCap = 150

var defaultProtected = []string{"/std/", "/daemons/", "/core/"}

// namedPlayer is implemented by anything getLevel/canRead/canWrite
// accept in place of a bare player name string, typically a
// GameObject representing the acting player.
type namedPlayer interface {
	Get(key string) (any, bool)
	ShortDesc() string
}

// Permissions holds per-player levels and domains plus the audit log.
// nil is the conventional "driver" actor: it always passes every
// check and is recorded in the audit log as an empty player name.
type Permissions struct {
	mu  sync.Mutex
	log *slog.Logger

	levels    map[string]Level
	domains   map[string]map[string]struct{}
	protected []string
	audit     []AuditEntry
}

// New constructs a Permissions table. protectedPaths, if nil, defaults
// to {"/std/", "/daemons/", "/core/"}.
func New(log *slog.Logger, protectedPaths []string) *Permissions {
	if log == nil {
		log = slog.Default()
	}
	if protectedPaths == nil {
		protectedPaths = append([]string(nil), defaultProtected...)
	}
	return &Permissions{
		log:       log,
		levels:    make(map[string]Level),
		domains:   make(map[string]map[string]struct{}),
		protected: protectedPaths,
	}
}

func resolveName(who any) string {
	switch v := who.(type) {
	case nil:
		return ""
	case string:
		return strings.ToLower(v)
	case namedPlayer:
		if name, ok := v.Get("name"); ok {
			if s, ok := name.(string); ok && s != "" {
				return strings.ToLower(s)
			}
		}
		return strings.ToLower(v.ShortDesc())
	default:
		return ""
	}
}

// GetLevel returns who's level, defaulting to Player if unset. who may
// be a player name (string), a GameObject exposing a "name" property,
// or nil for the driver (treated as the lowest level for this lookup;
// canRead/canWrite special-case nil separately).
func (p *Permissions) GetLevel(who any) Level {
	name := resolveName(who)
	p.mu.Lock()
	defer p.mu.Unlock()
	lvl, ok := p.levels[name]
	if !ok {
		return Player
	}
	return lvl
}

// SetLevel assigns name's level (case-folded).
func (p *Permissions) SetLevel(name string, level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.levels[strings.ToLower(name)] = level
}

// HasLevel reports whether name's level is at least min.
func (p *Permissions) HasLevel(name string, min Level) bool {
	return p.GetLevel(name) >= min
}

func (p *Permissions) IsAdmin(name string) bool   { return p.HasLevel(name, Administrator) }
func (p *Permissions) IsBuilder(name string) bool { return p.HasLevel(name, Builder) }

// normalizePath cleans a virtual content path and clamps any ".."
// traversal attempt at the root, so prefix matching against protected
// paths or domains can never be fooled by a crafted path.
func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

func (p *Permissions) isProtected(cleaned string) bool {
	for _, prefix := range p.protected {
		if strings.HasPrefix(cleaned, prefix) || cleaned+"/" == prefix {
			return true
		}
	}
	return false
}

func matchesPrefix(cleaned, prefix string) bool {
	return strings.HasPrefix(cleaned, prefix) || cleaned == strings.TrimSuffix(prefix, "/")
}

func (p *Permissions) inAnyDomain(name, cleaned string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for d := range p.domains[name] {
		if matchesPrefix(cleaned, d) {
			return true
		}
	}
	return false
}

// CanRead reports whether player may read path. The driver (player ==
// nil) and every authenticated player may always read; the check
// exists to produce an audit trail, not to deny access.
func (p *Permissions) CanRead(player any, target string) bool {
	cleaned := normalizePath(target)
	name := resolveName(player)
	p.audit2(name, ActionRead, cleaned, true, "read always permitted")
	return true
}

// CanExecute mirrors CanRead's policy: non-driver executors are
// allowed, and the call is audited.
func (p *Permissions) CanExecute(player any, target string) bool {
	cleaned := normalizePath(target)
	name := resolveName(player)
	p.audit2(name, ActionExecute, cleaned, true, "execute always permitted")
	return true
}

// CanWrite applies the tiered write policy: driver and Administrator
// always pass; SeniorBuilder passes for /lib/* or an assigned domain
// and fails on protected paths otherwise; Builder passes only inside
// an assigned domain that isn't protected; Player never passes. Every
// call appends an audit entry noting which rule fired.
func (p *Permissions) CanWrite(player any, target string) bool {
	cleaned := normalizePath(target)
	name := resolveName(player)

	if player == nil {
		p.audit2(name, ActionWrite, cleaned, true, "driver bypass")
		return true
	}

	level := p.GetLevel(player)
	protected := p.isProtected(cleaned)

	switch level {
	case Administrator:
		p.audit2(name, ActionWrite, cleaned, true, "administrator bypass")
		return true
	case SeniorBuilder:
		if strings.HasPrefix(cleaned, "/lib/") {
			p.audit2(name, ActionWrite, cleaned, true, "senior builder: /lib/ grant")
			return true
		}
		if p.inAnyDomain(name, cleaned) && !protected {
			p.audit2(name, ActionWrite, cleaned, true, "senior builder: domain grant")
			return true
		}
		p.audit2(name, ActionWrite, cleaned, false, "senior builder: no applicable grant")
		return false
	case Builder:
		if p.inAnyDomain(name, cleaned) && !protected {
			p.audit2(name, ActionWrite, cleaned, true, "builder: domain grant")
			return true
		}
		p.audit2(name, ActionWrite, cleaned, false, "builder: outside assigned domain or protected")
		return false
	default:
		p.audit2(name, ActionWrite, cleaned, false, "player: writes never permitted")
		return false
	}
}

func (p *Permissions) audit2(player string, action Action, target string, success bool, details string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry := AuditEntry{
		ID:        ulid.Make().String(),
		Timestamp: time.Now(),
		Player:    player,
		Action:    action,
		Target:    target,
		Success:   success,
		Details:   details,
	}
	p.audit = append(p.audit, entry)
	if len(p.audit) > auditCap {
		p.audit = p.audit[len(p.audit)-auditCap:]
	}
	p.log.Debug("permission check", "player", player, "action", action, "target", target, "success", success, "details", details)
}

// AddDomain grants name write access over domain (a path prefix that
// must end in "/").
func (p *Permissions) AddDomain(name, domain string) {
	name = strings.ToLower(name)
	if !strings.HasSuffix(domain, "/") {
		domain += "/"
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.domains[name] == nil {
		p.domains[name] = make(map[string]struct{})
	}
	p.domains[name][domain] = struct{}{}
}

// RemoveDomain revokes domain from name.
func (p *Permissions) RemoveDomain(name, domain string) {
	name = strings.ToLower(name)
	if !strings.HasSuffix(domain, "/") {
		domain += "/"
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.domains[name], domain)
}

// SetDomains replaces name's entire domain set.
func (p *Permissions) SetDomains(name string, domains []string) {
	name = strings.ToLower(name)
	set := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		if !strings.HasSuffix(d, "/") {
			d += "/"
		}
		set[d] = struct{}{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.domains[name] = set
}

// HasDomain reports whether name has domain assigned exactly.
func (p *Permissions) HasDomain(name, domain string) bool {
	name = strings.ToLower(name)
	if !strings.HasSuffix(domain, "/") {
		domain += "/"
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.domains[name][domain]
	return ok
}

// GetDomains returns name's assigned domains.
func (p *Permissions) GetDomains(name string) []string {
	name = strings.ToLower(name)
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.domains[name]))
	for d := range p.domains[name] {
		out = append(out, d)
	}
	return out
}

// GetAllDomains returns every player-to-domains assignment.
func (p *Permissions) GetAllDomains() map[string][]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string][]string, len(p.domains))
	for name, set := range p.domains {
		list := make([]string, 0, len(set))
		for d := range set {
			list = append(list, d)
		}
		out[name] = list
	}
	return out
}

// GetAuditLog returns the most recent n entries (all of them if n <= 0).
func (p *Permissions) GetAuditLog(n int) []AuditEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return lastN(p.audit, n)
}

// GetAuditLogForPlayer returns the most recent n entries for name (all
// matching entries if n <= 0).
func (p *Permissions) GetAuditLogForPlayer(name string, n int) []AuditEntry {
	name = strings.ToLower(name)
	p.mu.Lock()
	var filtered []AuditEntry
	for _, e := range p.audit {
		if e.Player == name {
			filtered = append(filtered, e)
		}
	}
	p.mu.Unlock()
	return lastN(filtered, n)
}

func lastN(entries []AuditEntry, n int) []AuditEntry {
	if n <= 0 || n >= len(entries) {
		out := make([]AuditEntry, len(entries))
		copy(out, entries)
		return out
	}
	out := make([]AuditEntry, n)
	copy(out, entries[len(entries)-n:])
	return out
}

// ClearAuditLog empties the audit log.
func (p *Permissions) ClearAuditLog() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.audit = nil
}

// ExportedData is the serializable form of levels and domains, used by
// Export/Import and by pkg/persistence's permissions file.
type ExportedData struct {
	Levels  map[string]int      `json:"levels"`
	Domains map[string][]string `json:"domains"`
}

// Export serializes levels and domains for persistence.
func (p *Permissions) Export() ExportedData {
	p.mu.Lock()
	defer p.mu.Unlock()
	levels := make(map[string]int, len(p.levels))
	for name, lvl := range p.levels {
		levels[name] = int(lvl)
	}
	domains := make(map[string][]string, len(p.domains))
	for name, set := range p.domains {
		list := make([]string, 0, len(set))
		for d := range set {
			list = append(list, d)
		}
		domains[name] = list
	}
	return ExportedData{Levels: levels, Domains: domains}
}

// Import replaces levels and domains from previously exported data.
func (p *Permissions) Import(data ExportedData) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.levels = make(map[string]Level, len(data.Levels))
	for name, lvl := range data.Levels {
		p.levels[name] = Level(lvl)
	}
	p.domains = make(map[string]map[string]struct{}, len(data.Domains))
	for name, list := range data.Domains {
		set := make(map[string]struct{}, len(list))
		for _, d := range list {
			set[d] = struct{}{}
		}
		p.domains[name] = set
	}
}
