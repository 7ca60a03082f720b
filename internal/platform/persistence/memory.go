package persistence

import (
	"context"
	"sync"

	"github.com/tinywideclouds/go-relay-service/pkg/relay"
)

// MemoryTokenStore is an in-memory relay.TokenStore used in local run mode
// and tests. It honors the same three-way upsert contract as the Firestore
// implementation.
type MemoryTokenStore struct {
	mu      sync.RWMutex
	records map[string]relay.TokenRecord // keyed by token
}

// NewMemoryTokenStore creates an empty in-memory store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{records: make(map[string]relay.TokenRecord)}
}

// UpsertToken inserts, reassigns, or refreshes the record for the token.
func (s *MemoryTokenStore) UpsertToken(_ context.Context, token, ownerUserID string, timestampMillis int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[token]
	switch {
	case !ok:
		rec = relay.TokenRecord{Token: token, OwnerUserID: ownerUserID, LastUpdated: timestampMillis}
	case rec.OwnerUserID != ownerUserID:
		rec.OwnerUserID = ownerUserID
		rec.LastUpdated = timestampMillis
	default:
		rec.LastUpdated = timestampMillis
	}
	s.records[token] = rec
	return nil
}

// ListTokensForUser returns the tokens owned by the user.
func (s *MemoryTokenStore) ListTokensForUser(_ context.Context, userID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tokens []string
	for _, rec := range s.records {
		if rec.OwnerUserID == userID {
			tokens = append(tokens, rec.Token)
		}
	}
	return tokens
}

// DeleteTokens removes the given tokens; absent tokens are ignored.
func (s *MemoryTokenStore) DeleteTokens(_ context.Context, tokens []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, token := range tokens {
		delete(s.records, token)
	}
	return nil
}

// Record returns the stored record for a token, for test inspection.
func (s *MemoryTokenStore) Record(token string) (relay.TokenRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[token]
	return rec, ok
}
