// Package cache implements the resolver cache: persistent bidirectional maps
// between names, SIDs, types and domains, shared by every producer and
// worker in a run and reused across runs.
package cache

import (
	"strings"
	"sync"
)

// Label is the "SID->type" classification IdToTypeCache's values hold; kept
// as a small string alias rather than an enum so unknown or
// forward-compatible type tags round-trip without a schema migration.
type Label string

// Cache is the thread-safe, persistable resolver state. All maps are keyed
// by uppercased principals; Save/Load handle the on-disk encoding, GetStats
// reports per-map counts for logging.
type Cache struct {
	mu sync.Mutex

	ValueToIdCache     map[string]string
	IdToTypeCache      map[string]Label
	HostResolutionMap  map[string]string
	MachineSidCache    map[string]string
	SidToDomainCache   map[string]string
	GlobalCatalogCache map[string]string

	// computerCalls counts dispatches per host when the CLI's
	// --TrackComputerCalls flag is set. Nil (not just empty) when the
	// feature is off, so GetStats can omit the column entirely.
	computerCalls map[string]int
}

// New returns an empty cache, used when InvalidateCache is set or no cache
// file exists yet.
func New() *Cache {
	return &Cache{
		ValueToIdCache:     make(map[string]string),
		IdToTypeCache:      make(map[string]Label),
		HostResolutionMap:  make(map[string]string),
		MachineSidCache:    make(map[string]string),
		SidToDomainCache:   make(map[string]string),
		GlobalCatalogCache: make(map[string]string),
	}
}

func upper(s string) string { return strings.ToUpper(s) }

// PutValueID records a name->SID mapping.
func (c *Cache) PutValueID(name, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ValueToIdCache[upper(name)] = upper(id)
}

// LookupValueID resolves a previously-seen name to its SID.
func (c *Cache) LookupValueID(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.ValueToIdCache[upper(name)]
	return v, ok
}

// PutType records a SID's object type label.
func (c *Cache) PutType(id string, label Label) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.IdToTypeCache[upper(id)] = label
}

// LookupType resolves a SID to its recorded type label.
func (c *Cache) LookupType(id string) (Label, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.IdToTypeCache[upper(id)]
	return v, ok
}

// PutHostResolution records a hostname->SID mapping for the Stealth and
// ComputerFile producers.
func (c *Cache) PutHostResolution(host, sid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.HostResolutionMap[upper(host)] = upper(sid)
}

// LookupHostResolution resolves a previously-seen hostname to its SID.
func (c *Cache) LookupHostResolution(host string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.HostResolutionMap[upper(host)]
	return v, ok
}

// PutMachineSid records a machine account's SID.
func (c *Cache) PutMachineSid(host, sid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.MachineSidCache[upper(host)] = upper(sid)
}

// PutSidDomain records which domain a SID belongs to.
func (c *Cache) PutSidDomain(sid, domain string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SidToDomainCache[upper(sid)] = upper(domain)
}

// LookupSidDomain resolves a SID to its owning domain.
func (c *Cache) LookupSidDomain(sid string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.SidToDomainCache[upper(sid)]
	return v, ok
}

// PutGlobalCatalog records a domain's global catalog server.
func (c *Cache) PutGlobalCatalog(domain, gc string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.GlobalCatalogCache[upper(domain)] = gc
}

// RecordComputerCall increments the per-host dispatch counter used by
// --TrackComputerCalls. A no-op until EnableComputerCallTracking has been
// called once.
func (c *Cache) RecordComputerCall(host string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.computerCalls == nil {
		return
	}
	c.computerCalls[upper(host)]++
}

// EnableComputerCallTracking turns on the --TrackComputerCalls bookkeeping.
func (c *Cache) EnableComputerCallTracking() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.computerCalls == nil {
		c.computerCalls = make(map[string]int)
	}
}

// Stats is the snapshot GetStats returns: per-map entry counts for logging.
type Stats struct {
	ValueToId      int
	IdToType       int
	HostResolution int
	MachineSid     int
	SidToDomain    int
	GlobalCatalog  int
	ComputerCalls  int // -1 when tracking is disabled
}

// GetStats returns counts by map, for logging and diagnostics.
func (c *Cache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	calls := -1
	if c.computerCalls != nil {
		calls = len(c.computerCalls)
	}
	return Stats{
		ValueToId:      len(c.ValueToIdCache),
		IdToType:       len(c.IdToTypeCache),
		HostResolution: len(c.HostResolutionMap),
		MachineSid:     len(c.MachineSidCache),
		SidToDomain:    len(c.SidToDomainCache),
		GlobalCatalog:  len(c.GlobalCatalogCache),
		ComputerCalls:  calls,
	}
}

// Merge folds src's entries into c without removing anything already
// present, so the result is always a strict superset of both inputs.
// Conflicting keys take src's value, treating a fresh resolution as more
// current.
func (c *Cache) Merge(src *Cache) {
	src.mu.Lock()
	valueToID := cloneStr(src.ValueToIdCache)
	idToType := cloneLabel(src.IdToTypeCache)
	hostRes := cloneStr(src.HostResolutionMap)
	machineSid := cloneStr(src.MachineSidCache)
	sidDomain := cloneStr(src.SidToDomainCache)
	gc := cloneStr(src.GlobalCatalogCache)
	src.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range valueToID {
		c.ValueToIdCache[k] = v
	}
	for k, v := range idToType {
		c.IdToTypeCache[k] = v
	}
	for k, v := range hostRes {
		c.HostResolutionMap[k] = v
	}
	for k, v := range machineSid {
		c.MachineSidCache[k] = v
	}
	for k, v := range sidDomain {
		c.SidToDomainCache[k] = v
	}
	for k, v := range gc {
		c.GlobalCatalogCache[k] = v
	}
}

func cloneStr(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneLabel(m map[string]Label) map[string]Label {
	out := make(map[string]Label, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
