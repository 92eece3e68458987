// Package registry tracks which local connections belong to which party.
// It is per-instance state, mutated by the transport gateway's connection
// goroutines and read by bus dispatch goroutines.
package registry

import (
	"sync"
	"time"
)

// Conn is the transport-layer connection the registry fans out to.
// *websocket.Conn satisfies it.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Session associates a connection with exactly one (party, user) pair for
// its lifetime.
type Session struct {
	PartyID     string
	UserID      int64
	UserName    string
	ConnID      string
	ConnectedAt time.Time
}

// Registry maps parties to local connection sets and connections back to
// their sessions. A connection appears in at most one party's set.
type Registry struct {
	mu       sync.RWMutex
	parties  map[string]map[Conn]struct{}
	sessions map[Conn]Session
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		parties:  make(map[string]map[Conn]struct{}),
		sessions: make(map[Conn]Session),
	}
}

// Register adds the connection to the session's party set. Re-registering a
// connection moves it out of its previous party first.
func (r *Registry) Register(conn Conn, sess Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.sessions[conn]; ok {
		r.remove(prev.PartyID, conn)
	}
	if _, ok := r.parties[sess.PartyID]; !ok {
		r.parties[sess.PartyID] = make(map[Conn]struct{})
	}
	r.parties[sess.PartyID][conn] = struct{}{}
	r.sessions[conn] = sess
}

// Unregister removes the connection and reports the session it held.
func (r *Registry) Unregister(conn Conn) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[conn]
	if !ok {
		return Session{}, false
	}
	delete(r.sessions, conn)
	r.remove(sess.PartyID, conn)
	return sess, true
}

func (r *Registry) remove(partyID string, conn Conn) {
	if conns, ok := r.parties[partyID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(r.parties, partyID)
		}
	}
}

// ConnectionsFor returns the local connections subscribed to a party.
func (r *Registry) ConnectionsFor(partyID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]Conn, 0, len(r.parties[partyID]))
	for conn := range r.parties[partyID] {
		conns = append(conns, conn)
	}
	return conns
}

// Count returns the number of local connections for a party.
func (r *Registry) Count(partyID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.parties[partyID])
}

// UserConnections counts a user's remaining local connections to a party.
// A user on both the control and chat channels holds two sessions; leave
// processing waits for the last one.
func (r *Registry) UserConnections(partyID string, userID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for conn := range r.parties[partyID] {
		if r.sessions[conn].UserID == userID {
			n++
		}
	}
	return n
}

// Session returns the session associated with a connection.
func (r *Registry) Session(conn Conn) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[conn]
	return sess, ok
}
