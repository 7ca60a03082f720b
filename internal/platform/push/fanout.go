package push

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tinywideclouds/go-relay-service/pkg/relay"
)

// MaxConcurrency bounds the number of provider calls in flight at once. The
// provider enforces per-credential rate limits, and an unbounded fan-out
// over a burst of thousands of tokens risks throttling.
const MaxConcurrency = 10

// Fanout implements relay.Notifier. Given a batch of tokens it issues one
// isolated send attempt per token through the provider, collects one
// outcome per attempt, and prunes tokens the provider reports as
// permanently dead.
type Fanout struct {
	provider relay.PushProvider
	store    relay.TokenStore
	logger   zerolog.Logger
}

// NewFanout creates the notifier.
func NewFanout(provider relay.PushProvider, store relay.TokenStore, logger zerolog.Logger) (*Fanout, error) {
	if provider == nil {
		return nil, errors.New("push: provider cannot be nil")
	}
	if store == nil {
		return nil, errors.New("push: token store cannot be nil")
	}
	return &Fanout{
		provider: provider,
		store:    store,
		logger:   logger.With().Str("component", "Fanout").Logger(),
	}, nil
}

// Send delivers the notification to every token and returns once all
// attempts have settled. At most MaxConcurrency attempts run at a time;
// one outcome is collected per attempt over a channel, then outcomes with
// a permanent failure reason are deleted from the store in one batch.
func (f *Fanout) Send(ctx context.Context, tokens []string, title, body string, dryRun bool) {
	if len(tokens) == 0 {
		f.logger.Warn().Msg("No push tokens provided for notification.")
		return
	}

	sem := make(chan struct{}, MaxConcurrency)
	outcomes := make(chan relay.SendOutcome, len(tokens))

	var wg sync.WaitGroup
	for _, token := range tokens {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes <- f.provider.Send(ctx, token, title, body, dryRun)
		}(token)
	}
	wg.Wait()
	close(outcomes)

	var dead []string
	successCount := 0
	total := 0
	for outcome := range outcomes {
		total++
		switch {
		case outcome.Success:
			successCount++
		case outcome.StatusCode.Permanent():
			dead = append(dead, outcome.Token)
		}
	}

	if len(dead) > 0 {
		f.logger.Info().Int("count", len(dead)).Msg("Removing permanently invalid push tokens.")
		if err := f.store.DeleteTokens(ctx, dead); err != nil {
			f.logger.Error().Err(err).Msg("Failed to delete invalid push tokens.")
		}
	}

	f.logger.Info().
		Int("success", successCount).
		Int("total", total).
		Msg("Push notification fan-out complete.")
}
