// Package challenge tracks outstanding attestation challenges.
package challenge

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/copperhead/attestation-server/pkg/protocol"
)

// DefaultTTL bounds how long an issued challenge stays consumable.
const DefaultTTL = time.Minute

// Store is a process-global set of pending challenges. Entries expire after
// the configured TTL and are removed atomically on first consumption.
type Store struct {
	mu      sync.Mutex
	pending *gocache.Cache
}

// NewStore creates a challenge store with the given TTL. A non-positive TTL
// falls back to DefaultTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{pending: gocache.New(ttl, ttl)}
}

// Issue generates a fresh random challenge and registers it as pending.
func (s *Store) Issue() ([]byte, error) {
	c := make([]byte, protocol.ChallengeLength)
	if _, err := rand.Read(c); err != nil {
		return nil, fmt.Errorf("generate challenge: %w", err)
	}
	s.pending.SetDefault(string(c), struct{}{})
	return c, nil
}

// Consume removes a pending challenge, reporting whether it was present.
// The test-and-remove is atomic: for any challenge only one caller ever
// observes true.
func (s *Store) Consume(c []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := string(c)
	if _, ok := s.pending.Get(key); !ok {
		return false
	}
	s.pending.Delete(key)
	return true
}

// IssueMessage issues a challenge and wraps it in the wire frame the Auditee
// expects: protocol version, a random challenge index and the challenge.
func (s *Store) IssueMessage() ([]byte, error) {
	index := make([]byte, protocol.ChallengeLength)
	if _, err := rand.Read(index); err != nil {
		return nil, fmt.Errorf("generate challenge index: %w", err)
	}
	c, err := s.Issue()
	if err != nil {
		return nil, err
	}
	return protocol.EncodeChallengeMessage(index, c), nil
}
