package session

import "sync"

// Registry tracks live sessions by user. Sessions are created on sign-in
// and torn down on sign-out; nothing here persists across restarts.
type Registry struct {
	mu       sync.Mutex
	store    Store
	sessions map[string]*Session
}

// NewRegistry creates an empty registry backed by the given store.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store, sessions: make(map[string]*Session)}
}

// Get returns the user's session if one exists.
func (r *Registry) Get(userID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	return s, ok
}

// GetOrCreate returns the user's session, creating an unhydrated one when
// missing. The bool reports whether the session already existed.
func (r *Registry) GetOrCreate(userID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[userID]; ok {
		return s, true
	}
	s := New(r.store, userID)
	r.sessions[userID] = s
	return s, false
}

// Delete tears down the user's session.
func (r *Registry) Delete(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}
