package persistence

import (
	"context"

	"github.com/rs/zerolog"
)

// NoopTokenStore is the degraded store used when the document database
// cannot be reached at startup. Every read returns empty and every write is
// a no-op beyond logging, so a broken store never takes down real-time
// relay. The trade-off is that push fallback is silently disabled.
type NoopTokenStore struct {
	logger zerolog.Logger
}

// NewNoopTokenStore creates the degraded store.
func NewNoopTokenStore(logger zerolog.Logger) *NoopTokenStore {
	return &NoopTokenStore{
		logger: logger.With().Str("component", "NoopTokenStore").Logger(),
	}
}

func (s *NoopTokenStore) UpsertToken(_ context.Context, token, ownerUserID string, _ int64) error {
	s.logger.Warn().Str("user", ownerUserID).Msg("Token store unavailable, dropping token registration.")
	return nil
}

func (s *NoopTokenStore) ListTokensForUser(_ context.Context, userID string) []string {
	s.logger.Warn().Str("user", userID).Msg("Token store unavailable, returning no tokens.")
	return nil
}

func (s *NoopTokenStore) DeleteTokens(_ context.Context, tokens []string) error {
	s.logger.Warn().Int("count", len(tokens)).Msg("Token store unavailable, skipping token deletion.")
	return nil
}
