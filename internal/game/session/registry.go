package session

import (
	"fmt"
	"sync"
)

// Registry associates live connections with their Player state.
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	players map[string]*Player // conn id → player
}

// NewRegistry creates an empty connection→player Registry.
func NewRegistry() *Registry {
	return &Registry{
		players: make(map[string]*Player),
	}
}

// Register creates and stores a new Player for the connection.
//
// Precondition: conn must be non-nil.
// Postcondition: Returns the created Player, or an error if the connection is
// already registered (the transport guarantees this does not happen).
func (r *Registry) Register(conn Conn) (*Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.players[conn.ID()]; exists {
		return nil, fmt.Errorf("connection %q already registered", conn.ID())
	}

	p := NewPlayer(conn)
	r.players[conn.ID()] = p
	return p, nil
}

// Lookup returns the Player associated with the connection.
//
// Postcondition: Returns (player, true) if found, or (nil, false).
func (r *Registry) Lookup(conn Conn) (*Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[conn.ID()]
	return p, ok
}

// Update replaces the stored association for the connection, keeping the
// registry authoritative after a join mutates room membership or name.
//
// Precondition: conn and player must be non-nil.
func (r *Registry) Update(conn Conn, player *Player) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players[conn.ID()] = player
}

// Unregister removes the association for the connection. Idempotent.
func (r *Registry) Unregister(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.players, conn.ID())
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}
