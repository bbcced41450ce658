package services

import (
	"encoding/json"
	"log"
	"sync"
)

// Conn is one live realtime channel. Enqueue must not block.
type Conn interface {
	Enqueue(msg []byte) bool
	Close()
}

// Registry maps a user to at most one live channel. The last connection for
// a user wins and the one it replaces is closed.
type Registry struct {
	mu    sync.RWMutex
	conns map[uint]Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[uint]Conn)}
}

func (r *Registry) Register(userID uint, c Conn) {
	r.mu.Lock()
	old := r.conns[userID]
	r.conns[userID] = c
	n := len(r.conns)
	r.mu.Unlock()

	activeConnections.Set(float64(n))
	if old != nil && old != c {
		log.Printf("ws: user %d reconnected, closing previous channel", userID)
		old.Close()
	}
}

func (r *Registry) Unregister(userID uint) {
	r.mu.Lock()
	delete(r.conns, userID)
	n := len(r.conns)
	r.mu.Unlock()
	activeConnections.Set(float64(n))
}

// Release removes the entry for userID only while c is still the registered
// channel, so a closing superseded channel cannot evict its replacement.
func (r *Registry) Release(userID uint, c Conn) bool {
	r.mu.Lock()
	cur, ok := r.conns[userID]
	if ok && cur == c {
		delete(r.conns, userID)
	}
	n := len(r.conns)
	r.mu.Unlock()
	activeConnections.Set(float64(n))
	return ok && cur == c
}

func (r *Registry) Lookup(userID uint) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[userID]
	return c, ok
}

// Send delivers v to the user's channel. It reports false when the user has
// no channel or the channel refused the message; it never returns an error.
func (r *Registry) Send(userID uint, v any) bool {
	c, ok := r.Lookup(userID)
	if !ok {
		return false
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("ws: marshal message for user %d: %v", userID, err)
		return false
	}
	return c.Enqueue(data)
}

// Broadcast sends v to every registered channel and returns how many
// accepted it.
func (r *Registry) Broadcast(v any) int {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("ws: marshal broadcast: %v", err)
		return 0
	}

	r.mu.RLock()
	conns := make([]Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	sent := 0
	for _, c := range conns {
		if c.Enqueue(data) {
			sent++
		}
	}
	return sent
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
