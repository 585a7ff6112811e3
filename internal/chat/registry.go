package chat

import (
	"sort"
	"strings"
	"sync"
)

// Registry maps usernames to registered sessions. Every mutation is a single
// critical section so check-and-insert and check-and-remove cannot race.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// TryRegister inserts s under name unless the exact name is already taken or
// the registry has been drained.
func (r *Registry) TryRegister(name string, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRegistryClosed
	}
	if _, exists := r.sessions[name]; exists {
		return ErrUsernameTaken
	}
	s.Username = name
	r.sessions[name] = s
	ConnectedClients.Set(float64(len(r.sessions)))
	return nil
}

// Remove deletes name only while it still belongs to s.
func (r *Registry) Remove(name string, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.sessions[name]
	if !ok || cur != s {
		return false
	}
	delete(r.sessions, name)
	ConnectedClients.Set(float64(len(r.sessions)))
	return true
}

func (r *Registry) Lookup(name string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[name]
	return s, ok
}

// LookupFold resolves a loosely typed recipient name. An exact match wins,
// otherwise the smallest key that equals name under case folding.
func (r *Registry) LookupFold(name string) (*Session, bool) {
	name = strings.TrimSpace(name)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.sessions[name]; ok {
		return s, true
	}
	var (
		best    string
		session *Session
	)
	for key, s := range r.sessions {
		if strings.EqualFold(key, name) && (session == nil || key < best) {
			best, session = key, s
		}
	}
	return session, session != nil
}

// Names returns a sorted snapshot of registered usernames.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sessions))
	for name := range r.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sessions returns a snapshot of registered sessions sorted by username.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Drain empties the registry, refuses later registrations and returns the
// sessions that were registered.
func (r *Registry) Drain() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.sessions = make(map[string]*Session)
	r.closed = true
	ConnectedClients.Set(0)
	return out
}
