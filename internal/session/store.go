package session

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Persisted entry names. These are the stable keys under which the three
// session fields live in whatever KV backs the Store.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyProfile      = "profile"
)

// KV is a minimal key-value persistence abstraction over named string keys.
// Replace exchanges the entire key set in one atomic step: a concurrent
// Snapshot never observes a partially applied Replace. Implementations must
// be safe for concurrent use.
type KV interface {
	// Snapshot returns the current contents. The returned map is owned by
	// the caller.
	Snapshot() (map[string]string, error)

	// Replace atomically replaces all contents with the given entries.
	// An empty or nil map clears the medium.
	Replace(entries map[string]string) error
}

// Store persists the Session over a KV backend. It is the sole owner of
// credential bytes; readers get value copies, never references into the
// backing medium.
type Store struct {
	kv KV
}

// NewStore wraps a KV backend in a session Store.
func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// Get returns the persisted session, or nil if none is stored. A partially
// present record (e.g. a token without a profile) is treated as absent —
// the invariant is that all three fields are set together.
func (s *Store) Get() (*Session, error) {
	entries, err := s.kv.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("session: reading store: %w", err)
	}

	access := entries[KeyAccessToken]
	refresh := entries[KeyRefreshToken]
	rawProfile := entries[KeyProfile]

	if access == "" || refresh == "" || rawProfile == "" {
		return nil, nil //nolint:nilnil // absent session
	}

	var profile Profile
	if err := json.Unmarshal([]byte(rawProfile), &profile); err != nil {
		return nil, fmt.Errorf("session: decoding stored profile: %w", err)
	}

	return &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		Profile:      profile,
	}, nil
}

// Set persists the session. All three fields are written in a single
// Replace so a concurrent reader sees either the old session or the new
// one, never a mix.
func (s *Store) Set(sess *Session) error {
	if !sess.Valid() {
		return fmt.Errorf("session: refusing to store incomplete session")
	}

	rawProfile, err := json.Marshal(sess.Profile)
	if err != nil {
		return fmt.Errorf("session: encoding profile: %w", err)
	}

	entries := map[string]string{
		KeyAccessToken:  sess.AccessToken,
		KeyRefreshToken: sess.RefreshToken,
		KeyProfile:      string(rawProfile),
	}

	if err := s.kv.Replace(entries); err != nil {
		return fmt.Errorf("session: writing store: %w", err)
	}

	return nil
}

// Clear removes all three entries. Clearing an already-empty store is a no-op.
func (s *Store) Clear() error {
	if err := s.kv.Replace(nil); err != nil {
		return fmt.Errorf("session: clearing store: %w", err)
	}

	return nil
}

// MemoryKV is an in-memory KV for tests and ephemeral processes.
type MemoryKV struct {
	mu      sync.Mutex
	entries map[string]string
}

// NewMemoryKV returns an empty in-memory KV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{entries: map[string]string{}}
}

// Snapshot implements KV.
func (m *MemoryKV) Snapshot() (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]string, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}

	return out, nil
}

// Replace implements KV.
func (m *MemoryKV) Replace(entries map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]string, len(entries))
	for k, v := range entries {
		m.entries[k] = v
	}

	return nil
}
