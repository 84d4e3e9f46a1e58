// Package registry tracks live connections: their display name, the room they
// are attached to and the outbox their writer goroutine drains.
package registry

import (
	"errors"
	"sync"

	"github.com/DoyleJ11/spell-duel-backend/internal/types"
	"github.com/DoyleJ11/spell-duel-backend/pkg/metrics"
)

var ErrDuplicateConnection = errors.New("connection already registered")
var ErrNotFound = errors.New("connection not found")

// RemoveHook runs after a connection is removed, outside the registry lock.
// room is empty when the connection was not attached anywhere.
type RemoveHook func(id, name, room string)

type conn struct {
	name   string
	room   string
	outbox chan<- types.Outbound
}

type Registry struct {
	mu       sync.RWMutex
	conns    map[string]*conn
	rooms    map[string]map[string]struct{}
	onRemove RemoveHook
}

func New() *Registry {
	return &Registry{
		conns: make(map[string]*conn),
		rooms: make(map[string]map[string]struct{}),
	}
}

// OnRemove installs the hook used to evict a removed connection from its room.
func (r *Registry) OnRemove(fn RemoveHook) {
	r.mu.Lock()
	r.onRemove = fn
	r.mu.Unlock()
}

func (r *Registry) Register(id, name string, outbox chan<- types.Outbound) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; ok {
		return ErrDuplicateConnection
	}
	r.conns[id] = &conn{name: name, outbox: outbox}
	metrics.Connections.Inc()
	return nil
}

// Identify sets the display name if the connection has none yet and returns
// the name that is in effect. Names never change once set.
func (r *Registry) Identify(id, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if !ok {
		return "", ErrNotFound
	}
	if c.name == "" {
		c.name = name
	}
	return c.name, nil
}

func (r *Registry) Attach(id, room string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if !ok {
		return ErrNotFound
	}
	if c.room == room {
		return nil
	}
	r.detachLocked(id, c)
	c.room = room
	members := r.rooms[room]
	if members == nil {
		members = make(map[string]struct{})
		r.rooms[room] = members
	}
	members[id] = struct{}{}
	return nil
}

func (r *Registry) Detach(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conns[id]; ok {
		r.detachLocked(id, c)
	}
}

func (r *Registry) detachLocked(id string, c *conn) {
	if c.room == "" {
		return
	}
	if members := r.rooms[c.room]; members != nil {
		delete(members, id)
		if len(members) == 0 {
			delete(r.rooms, c.room)
		}
	}
	c.room = ""
}

func (r *Registry) Lookup(id string) (room, name string, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	if !ok {
		return "", "", ErrNotFound
	}
	return c.room, c.name, nil
}

// Remove forgets the connection. Once it returns, nothing is sent to the
// connection's outbox any more, so the caller may close it.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	c, ok := r.conns[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	room := c.room
	r.detachLocked(id, c)
	delete(r.conns, id)
	hook := r.onRemove
	r.mu.Unlock()

	metrics.Connections.Dec()
	if hook != nil {
		hook(id, c.name, room)
	}
}

func (r *Registry) Attached(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.rooms[room]))
	for id := range r.rooms[room] {
		ids = append(ids, id)
	}
	return ids
}

// Send queues msg for one connection without blocking. It reports false when
// the connection is gone or its outbox is full.
func (r *Registry) Send(id string, msg types.Outbound) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	if !ok {
		return false
	}
	select {
	case c.outbox <- msg:
		return true
	default:
		return false
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
