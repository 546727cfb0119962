// Package session implements the in-process session authenticator that maps
// opaque bearer tokens to usernames.
//
// Sessions live only as long as the process: a restart invalidates every
// token. Multiple tokens may map to the same username (multi-login).
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
)

// tokenBytes is the entropy of a session token; hex-encoding doubles the
// length on the wire.
const tokenBytes = 32

// Store is a concurrency-safe token -> username map.
type Store struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{tokens: make(map[string]string)}
}

// Create mints a new cryptographically random token for username and
// records the mapping.
func (s *Store) Create(username string) (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session: generating token: %w", err)
	}
	token := hex.EncodeToString(buf)

	s.mu.Lock()
	s.tokens[token] = username
	s.mu.Unlock()

	return token, nil
}

// Resolve returns the username a token is bound to. The second return value
// is false when the token is unknown; callers must treat that as "not
// authenticated", never as an error.
func (s *Store) Resolve(token string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	username, ok := s.tokens[token]
	return username, ok
}

// Invalidate removes a token. Removing an unknown token is a no-op.
func (s *Store) Invalidate(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, token)
}
