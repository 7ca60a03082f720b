// Package persistence provides the durable push-token store implementations.
package persistence

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tinywideclouds/go-relay-service/pkg/relay"
)

const defaultTokenCollection = "push-tokens"

// FirestoreTokenStore implements relay.TokenStore using Google Cloud
// Firestore. Token documents are keyed by the token string itself, which
// makes the token the natural unique key: re-registration under a different
// account overwrites the owner instead of duplicating the row.
type FirestoreTokenStore struct {
	client     *firestore.Client
	collection string
	logger     zerolog.Logger
}

// NewFirestoreTokenStore is the constructor for the FirestoreTokenStore.
func NewFirestoreTokenStore(client *firestore.Client, collection string, logger zerolog.Logger) (*FirestoreTokenStore, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client cannot be nil")
	}
	if collection == "" {
		collection = defaultTokenCollection
	}
	return &FirestoreTokenStore{
		client:     client,
		collection: collection,
		logger:     logger.With().Str("component", "FirestoreTokenStore").Logger(),
	}, nil
}

// UpsertToken applies the three-way branch inside a transaction: insert when
// the token is unknown, reassign owner and timestamp when the device moved
// to a different account, refresh only the timestamp otherwise.
func (s *FirestoreTokenStore) UpsertToken(ctx context.Context, token, ownerUserID string, timestampMillis int64) error {
	if token == "" {
		return fmt.Errorf("token cannot be empty")
	}

	docRef := s.client.Collection(s.collection).Doc(token)

	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return tx.Set(docRef, &relay.TokenRecord{
					Token:       token,
					OwnerUserID: ownerUserID,
					LastUpdated: timestampMillis,
				})
			}
			return err
		}

		var rec relay.TokenRecord
		if err := snap.DataTo(&rec); err != nil {
			return fmt.Errorf("failed to unmarshal token record: %w", err)
		}

		if rec.OwnerUserID != ownerUserID {
			return tx.Update(docRef, []firestore.Update{
				{Path: "userId", Value: ownerUserID},
				{Path: "lastUpdated", Value: timestampMillis},
			})
		}
		return tx.Update(docRef, []firestore.Update{
			{Path: "lastUpdated", Value: timestampMillis},
		})
	})
}

// ListTokensForUser returns all tokens registered to a user. Store errors
// are logged and yield an empty slice so the relay keeps operating in
// relay-only mode when the collection is unreachable.
func (s *FirestoreTokenStore) ListTokensForUser(ctx context.Context, userID string) []string {
	query := s.client.Collection(s.collection).Where("userId", "==", userID)

	docSnaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		s.logger.Warn().Err(err).Str("user", userID).Msg("Token lookup failed, treating user as having no devices.")
		return nil
	}

	tokens := make([]string, 0, len(docSnaps))
	for _, doc := range docSnaps {
		var rec relay.TokenRecord
		if err := doc.DataTo(&rec); err != nil {
			s.logger.Error().Err(err).Str("doc_id", doc.Ref.ID).Msg("Failed to unmarshal token record, skipping")
			continue
		}
		if rec.Token == "" {
			// The document ID is the token; older rows may lack the field.
			rec.Token = doc.Ref.ID
		}
		tokens = append(tokens, rec.Token)
	}
	return tokens
}

// DeleteTokens removes all matching token documents in one batch. Deleting
// an already-absent token is not an error.
func (s *FirestoreTokenStore) DeleteTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}

	log := s.logger.With().Int("count", len(tokens)).Logger()
	collectionRef := s.client.Collection(s.collection)

	// A BulkWriter is the scalable way to delete an arbitrary list of IDs.
	bulkWriter := s.client.BulkWriter(ctx)
	var firstErr error

	for _, token := range tokens {
		// Delete returns an error only if it fails to enqueue. Capture the
		// first one but keep enqueuing the rest.
		if _, err := bulkWriter.Delete(collectionRef.Doc(token)); err != nil {
			log.Error().Err(err).Msg("Failed to enqueue token for deletion")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	// End blocks until all enqueued writes have settled.
	bulkWriter.End()

	if firstErr != nil {
		return fmt.Errorf("failed to enqueue one or more tokens for deletion: %w", firstErr)
	}

	log.Info().Msg("Deleted invalid push tokens.")
	return nil
}
