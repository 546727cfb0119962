package server

import "sync"

// Registry is the single source of truth for presence: it answers which
// live connection, if any, belongs to a username. It is an owned object
// injected into the Hub, never ambient global state. A single RWMutex
// serializes every bind, unbind, and lookup so readers never observe a
// half-updated binding.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]*Client
	byConn map[*Client]string
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]*Client),
		byConn: make(map[*Client]string),
	}
}

// Bind associates a connection with a username. If another connection is
// already bound to the same username, the new binding replaces it
// (last connection wins, matching a user opening a new tab) and the
// displaced client is returned so the caller can notify or close it. The
// displaced connection stays open but is no longer routable by username.
func (r *Registry) Bind(c *Client, username string) (displaced *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-authenticating under a different username releases the old binding.
	if prev, ok := r.byConn[c]; ok && prev != username {
		if r.byUser[prev] == c {
			delete(r.byUser, prev)
		}
	}

	if prev, ok := r.byUser[username]; ok && prev != c {
		displaced = prev
		delete(r.byConn, prev)
	}
	r.byUser[username] = c
	r.byConn[c] = username
	return displaced
}

// Unbind removes a connection's binding, if any. It is safe to call for
// connections that never authenticated (no-op) and for displaced
// connections: a stale client disconnecting never removes the binding of
// the connection that replaced it.
func (r *Registry) Unbind(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	username, ok := r.byConn[c]
	if !ok {
		return
	}
	delete(r.byConn, c)
	if r.byUser[username] == c {
		delete(r.byUser, username)
	}
}

// Lookup returns the live connection currently bound to username.
func (r *Registry) Lookup(username string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byUser[username]
	return c, ok
}

// Username returns the username a connection is bound to, or "" when the
// connection is unauthenticated or has been displaced.
func (r *Registry) Username(c *Client) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.byConn[c]
}

// OnlineUsernames returns a point-in-time snapshot of every bound
// username. It is a snapshot, not a subscription: presence changes are not
// pushed to existing connections.
func (r *Registry) OnlineUsernames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	usernames := make([]string, 0, len(r.byUser))
	for username := range r.byUser {
		usernames = append(usernames, username)
	}
	return usernames
}
