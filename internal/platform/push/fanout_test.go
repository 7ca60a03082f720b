package push

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-relay-service/pkg/relay"
)

// --- Mocks ---

type mockTokenStore struct {
	mock.Mock
}

func (m *mockTokenStore) UpsertToken(ctx context.Context, token, ownerUserID string, timestampMillis int64) error {
	args := m.Called(ctx, token, ownerUserID, timestampMillis)
	return args.Error(0)
}

func (m *mockTokenStore) ListTokensForUser(ctx context.Context, userID string) []string {
	args := m.Called(ctx, userID)
	tokens, _ := args.Get(0).([]string)
	return tokens
}

func (m *mockTokenStore) DeleteTokens(ctx context.Context, tokens []string) error {
	args := m.Called(ctx, tokens)
	return args.Error(0)
}

// fakeProvider returns canned outcomes and records concurrency.
type fakeProvider struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	calls       int
	delay       time.Duration
	outcomeFor  func(token string) relay.SendOutcome
}

func (p *fakeProvider) Send(_ context.Context, token, _, _ string, _ bool) relay.SendOutcome {
	p.mu.Lock()
	p.calls++
	p.inFlight++
	if p.inFlight > p.maxInFlight {
		p.maxInFlight = p.inFlight
	}
	p.mu.Unlock()

	if p.delay > 0 {
		time.Sleep(p.delay)
	}

	p.mu.Lock()
	p.inFlight--
	p.mu.Unlock()

	if p.outcomeFor != nil {
		return p.outcomeFor(token)
	}
	return relay.SendOutcome{Token: token, Success: true, StatusCode: relay.ReasonOK, MessageID: "msg-" + token}
}

// --- Tests ---

func TestFanout_EmptyTokenListIsNoOp(t *testing.T) {
	provider := &fakeProvider{}
	store := new(mockTokenStore)

	fanout, err := NewFanout(provider, store, zerolog.Nop())
	require.NoError(t, err)

	fanout.Send(context.Background(), nil, "title", "body", false)

	assert.Zero(t, provider.calls)
	store.AssertNotCalled(t, "DeleteTokens", mock.Anything, mock.Anything)
}

func TestFanout_BoundsConcurrencyAndJoins(t *testing.T) {
	provider := &fakeProvider{delay: 10 * time.Millisecond}
	store := new(mockTokenStore)

	fanout, err := NewFanout(provider, store, zerolog.Nop())
	require.NoError(t, err)

	tokens := make([]string, 25)
	for i := range tokens {
		tokens[i] = "tok-" + string(rune('a'+i))
	}

	fanout.Send(context.Background(), tokens, "title", "body", false)

	// Send returns only after every attempt has settled.
	assert.Equal(t, 25, provider.calls)
	assert.LessOrEqual(t, provider.maxInFlight, MaxConcurrency)
	// With 25 slow sends the gate should actually fill up.
	assert.Greater(t, provider.maxInFlight, 1)
	store.AssertNotCalled(t, "DeleteTokens", mock.Anything, mock.Anything)
}

func TestFanout_PrunesPermanentlyDeadTokens(t *testing.T) {
	provider := &fakeProvider{
		outcomeFor: func(token string) relay.SendOutcome {
			if token == "tB" {
				return relay.SendOutcome{
					Token:       token,
					StatusCode:  relay.ReasonUnregistered,
					ErrorDetail: "registration token not registered",
				}
			}
			return relay.SendOutcome{Token: token, Success: true, StatusCode: relay.ReasonOK, MessageID: "msg-" + token}
		},
	}
	store := new(mockTokenStore)
	store.On("DeleteTokens", mock.Anything, []string{"tB"}).Return(nil).Once()

	fanout, err := NewFanout(provider, store, zerolog.Nop())
	require.NoError(t, err)

	fanout.Send(context.Background(), []string{"tA", "tB", "tC"}, "title", "body", false)

	store.AssertExpectations(t)
}

func TestFanout_TransientFailuresLeaveTokens(t *testing.T) {
	provider := &fakeProvider{
		outcomeFor: func(token string) relay.SendOutcome {
			return relay.SendOutcome{
				Token:       token,
				StatusCode:  relay.ReasonUnavailable,
				ErrorDetail: "backend temporarily unavailable",
			}
		},
	}
	store := new(mockTokenStore)

	fanout, err := NewFanout(provider, store, zerolog.Nop())
	require.NoError(t, err)

	fanout.Send(context.Background(), []string{"tA", "tB"}, "title", "body", false)

	store.AssertNotCalled(t, "DeleteTokens", mock.Anything, mock.Anything)
}

func TestFanout_MixedOutcomesDeleteInOneBatch(t *testing.T) {
	provider := &fakeProvider{
		outcomeFor: func(token string) relay.SendOutcome {
			switch token {
			case "dead-1":
				return relay.SendOutcome{Token: token, StatusCode: relay.ReasonNotFound}
			case "dead-2":
				return relay.SendOutcome{Token: token, StatusCode: relay.ReasonInvalidArgument}
			case "flaky":
				return relay.SendOutcome{Token: token, StatusCode: relay.ReasonInternal}
			default:
				return relay.SendOutcome{Token: token, Success: true, StatusCode: relay.ReasonOK}
			}
		},
	}

	store := new(mockTokenStore)
	store.On("DeleteTokens", mock.Anything, mock.MatchedBy(func(tokens []string) bool {
		sorted := append([]string(nil), tokens...)
		sort.Strings(sorted)
		return len(sorted) == 2 && sorted[0] == "dead-1" && sorted[1] == "dead-2"
	})).Return(nil).Once()

	fanout, err := NewFanout(provider, store, zerolog.Nop())
	require.NoError(t, err)

	fanout.Send(context.Background(), []string{"ok-1", "dead-1", "flaky", "dead-2", "ok-2"}, "title", "body", false)

	store.AssertExpectations(t)
}

func TestNewFanout_RejectsNilDependencies(t *testing.T) {
	_, err := NewFanout(nil, new(mockTokenStore), zerolog.Nop())
	assert.Error(t, err)

	_, err = NewFanout(&fakeProvider{}, nil, zerolog.Nop())
	assert.Error(t, err)
}
