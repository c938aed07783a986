package tracker

import (
	"sort"
	"sync"
	"time"
)

// Snapshot is one complete, immutable load of the route directory, keyed by
// route short name. It is never modified after NewSnapshot returns.
type Snapshot struct {
	byShortName map[string]RouteInfo
	loadedAt    time.Time
}

// NewSnapshot builds a snapshot from routes. When two routes share a short
// name the later one wins.
func NewSnapshot(routes []RouteInfo, loadedAt time.Time) *Snapshot {
	m := make(map[string]RouteInfo, len(routes))
	for _, r := range routes {
		m[r.ShortName] = r
	}
	return &Snapshot{byShortName: m, loadedAt: loadedAt}
}

// Len returns the number of routes in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.byShortName)
}

// LoadedAt returns when the snapshot was built. Zero for the initial empty snapshot.
func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}

// Lookup returns the route with the given short name.
func (s *Snapshot) Lookup(shortName string) (RouteInfo, bool) {
	r, ok := s.byShortName[shortName]
	return r, ok
}

// Routes returns all routes sorted by short name.
func (s *Snapshot) Routes() []RouteInfo {
	out := make([]RouteInfo, 0, len(s.byShortName))
	for _, r := range s.byShortName {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ShortName < out[j].ShortName
	})
	return out
}

// Select returns the routes whose short name is in shortNames, keyed by route id.
func (s *Snapshot) Select(shortNames []string) map[string]RouteInfo {
	out := make(map[string]RouteInfo, len(shortNames))
	for _, name := range shortNames {
		if r, ok := s.byShortName[name]; ok {
			out[r.RouteID] = r
		}
	}
	return out
}

// Directory holds the current route directory snapshot.
type Directory struct {
	mu   sync.RWMutex
	snap *Snapshot
}

// NewDirectory creates a directory holding an empty snapshot.
func NewDirectory() *Directory {
	return &Directory{snap: NewSnapshot(nil, time.Time{})}
}

// Snapshot returns the current snapshot. It is never nil.
func (d *Directory) Snapshot() *Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snap
}

// Replace swaps in a new snapshot. Readers holding the previous one are unaffected.
func (d *Directory) Replace(s *Snapshot) {
	if s == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.snap = s
}
