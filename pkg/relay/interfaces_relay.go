package relay

import "context"

// TokenStore defines the durable push-token mapping.
//
// Implementations must degrade rather than fail: a store that cannot reach
// its backing collection keeps the relay operating in relay-only mode, at
// the cost of silently disabling push fallback.
type TokenStore interface {
	// UpsertToken looks up the record keyed by token value and applies the
	// three-way branch: insert when absent, overwrite owner and timestamp
	// when the owner changed, refresh only the timestamp otherwise.
	UpsertToken(ctx context.Context, token, ownerUserID string, timestampMillis int64) error

	// ListTokensForUser returns the tokens registered to a user. It never
	// fails: an unreachable store yields an empty slice.
	ListTokensForUser(ctx context.Context, userID string) []string

	// DeleteTokens removes all matching records in one batch. Empty input
	// and already-absent tokens are no-ops.
	DeleteTokens(ctx context.Context, tokens []string) error
}

// PushProvider is one per-token send operation against the push provider.
// Failures are data, not errors: the outcome carries the provider's reason
// so the permanent-vs-transient branch stays a pure function.
type PushProvider interface {
	Send(ctx context.Context, token, title, body string, dryRun bool) SendOutcome
}

// Notifier fans a notification out to many device tokens with bounded
// parallelism and prunes tokens the provider reports as permanently dead.
type Notifier interface {
	Send(ctx context.Context, tokens []string, title, body string, dryRun bool)
}

// Presence tracks which users currently hold at least one live connection.
// Pure in-memory bookkeeping, cleared on process restart; reconnect
// re-establishes truth.
type Presence interface {
	MarkPresent(userID string)
	MarkAbsent(userID string)
	IsPresent(userID string) bool
}

// ServiceDependencies holds the external services the relay needs to
// operate. This struct is used for dependency injection.
type ServiceDependencies struct {
	TokenStore TokenStore
	Presence   Presence
	Notifier   Notifier
}
