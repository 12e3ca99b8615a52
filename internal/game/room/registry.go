package room

import (
	"sync"

	"github.com/hallowdale/dicetable/internal/game/session"
)

// Registry is the set of live rooms. Lookup by id is O(1); lookup by name
// scans in insertion order so the first room registered under a duplicate
// name keeps winning until it is removed. All methods are safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]*Room
	ordered []*Room // insertion order, for name lookup and snapshots
}

// NewRegistry creates an empty room Registry.
func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[string]*Room),
	}
}

// Add registers a room.
func (g *Registry) Add(r *Room) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.byID[r.ID()]; exists {
		return
	}
	g.byID[r.ID()] = r
	g.ordered = append(g.ordered, r)
}

// Remove drops a room from the registry. No-op when the room is absent.
func (g *Registry) Remove(r *Room) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.byID[r.ID()]; !exists {
		return
	}
	delete(g.byID, r.ID())
	for i, existing := range g.ordered {
		if existing.ID() == r.ID() {
			g.ordered = append(g.ordered[:i], g.ordered[i+1:]...)
			break
		}
	}
}

// Find resolves a room by id or name. Ids are unique; names fall back to an
// insertion-order scan, first match wins. Room ids are 36-byte uuids while
// names are capped at 35 bytes, so the two key spaces cannot collide.
//
// Postcondition: Returns (room, true) if found, or (nil, false).
func (g *Registry) Find(key string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if r, ok := g.byID[key]; ok {
		return r, true
	}
	for _, r := range g.ordered {
		if r.Name() == key {
			return r, true
		}
	}
	return nil, false
}

// FindByPlayer returns the room whose member set contains the player.
//
// Postcondition: Returns (room, true) if found, or (nil, false).
func (g *Registry) FindByPlayer(p *session.Player) (*Room, bool) {
	if p == nil {
		return nil, false
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, r := range g.ordered {
		if r.HasMember(p) {
			return r, true
		}
	}
	return nil, false
}

// All returns a snapshot of every registered room in insertion order.
func (g *Registry) All() []*Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Room, len(g.ordered))
	copy(out, g.ordered)
	return out
}

// Count returns the number of registered rooms.
func (g *Registry) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.ordered)
}
