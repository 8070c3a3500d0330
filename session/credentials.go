package session

import "sync"

// Identity is the last known authenticated user.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Credentials is the full credential set for a session. The SDK replaces
// the whole value on every successful authentication; it never patches
// individual fields. RefreshToken stays empty in the API-key flow, which
// has no refresh capability.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Identity     *Identity
}

// Empty reports whether no access token is held.
func (c Credentials) Empty() bool { return c.AccessToken == "" }

// Store holds the current Credentials for one session. Replacement and
// clearing are atomic from the reader's point of view; a Snapshot never
// observes a half-updated credential set. Tokens live only in process
// memory.
type Store struct {
	mu    sync.RWMutex
	creds Credentials
}

// Snapshot returns a copy of the current credentials.
func (s *Store) Snapshot() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

// Replace swaps in a new credential set wholesale.
func (s *Store) Replace(creds Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds
}

// Clear drops all credentials.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = Credentials{}
}
