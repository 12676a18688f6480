package server

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/energiemix/energiemix/pkg/types"
)

// sessionStore keeps processed tables in memory so the export endpoint can
// re-slice them without re-uploading. Entries expire after the configured
// TTL; expired entries are swept on every access.
type sessionStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]sessionEntry

	// now is replaceable in tests
	now func() time.Time
}

type sessionEntry struct {
	table   types.Table
	expires time.Time
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{
		ttl:     ttl,
		entries: make(map[string]sessionEntry),
		now:     time.Now,
	}
}

// Put stores the table under a fresh opaque id and returns the id.
func (s *sessionStore) Put(table types.Table) (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	id := hex.EncodeToString(buf[:])

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.entries[id] = sessionEntry{table: table, expires: s.now().Add(s.ttl)}
	return id, nil
}

// Get returns the table for id, or false when the id is unknown or expired.
func (s *sessionStore) Get(id string) (types.Table, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	entry, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return entry.table, true
}

func (s *sessionStore) sweepLocked() {
	now := s.now()
	for id, entry := range s.entries {
		if entry.expires.Before(now) {
			delete(s.entries, id)
		}
	}
}
