// Package push provides the notification fan-out and the FCM provider
// adapter behind it.
package push

import (
	"context"
	"errors"

	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"

	"github.com/tinywideclouds/go-relay-service/pkg/relay"
)

var errNilClient = errors.New("push: messaging client cannot be nil")

// FCMProvider implements relay.PushProvider against Firebase Cloud
// Messaging. Provider failures are returned as tagged outcomes, never as
// errors, so one token's failure cannot abort a batch.
type FCMProvider struct {
	client *messaging.Client
	logger zerolog.Logger
}

// NewFCMProvider creates the provider adapter.
func NewFCMProvider(client *messaging.Client, logger zerolog.Logger) (*FCMProvider, error) {
	if client == nil {
		return nil, errNilClient
	}
	return &FCMProvider{
		client: client,
		logger: logger.With().Str("component", "FCMProvider").Logger(),
	}, nil
}

// Send issues one isolated send attempt for a single token.
func (p *FCMProvider) Send(ctx context.Context, token, title, body string, dryRun bool) relay.SendOutcome {
	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
	}

	var (
		messageID string
		err       error
	)
	if dryRun {
		messageID, err = p.client.SendDryRun(ctx, msg)
	} else {
		messageID, err = p.client.Send(ctx, msg)
	}

	if err != nil {
		reason := classifySendError(err)
		p.logger.Warn().
			Str("token", truncateToken(token)).
			Str("reason", string(reason)).
			Err(err).
			Msg("Push notification failed.")
		return relay.SendOutcome{
			Token:       token,
			Success:     false,
			StatusCode:  reason,
			ErrorDetail: err.Error(),
		}
	}

	p.logger.Debug().
		Str("token", truncateToken(token)).
		Str("message_id", messageID).
		Msg("Push notification sent.")
	return relay.SendOutcome{
		Token:      token,
		Success:    true,
		StatusCode: relay.ReasonOK,
		MessageID:  messageID,
	}
}

// classifySendError maps an FCM SDK error to the fixed reason vocabulary.
func classifySendError(err error) relay.FailureReason {
	switch {
	case messaging.IsUnregistered(err):
		return relay.ReasonUnregistered
	case messaging.IsSenderIDMismatch(err):
		return relay.ReasonSenderMismatch
	case errorutils.IsNotFound(err):
		return relay.ReasonNotFound
	case errorutils.IsInvalidArgument(err):
		return relay.ReasonInvalidArgument
	case messaging.IsQuotaExceeded(err):
		return relay.ReasonQuotaExceeded
	case errorutils.IsUnavailable(err):
		return relay.ReasonUnavailable
	case errorutils.IsInternal(err):
		return relay.ReasonInternal
	default:
		return relay.ReasonUnknown
	}
}

// truncateToken keeps logs useful without leaking whole device tokens.
func truncateToken(token string) string {
	if len(token) > 8 {
		return token[:8] + "..."
	}
	return token
}
