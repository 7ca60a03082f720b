// Package relay contains the public domain models, interfaces, and error
// taxonomy for the relay service. It defines the contract for interacting
// with the service's external collaborators.
package relay

import "errors"

// ErrUnauthenticated is returned when no usable bearer credential can be
// extracted from a connection's transport context. No backend call is made.
var ErrUnauthenticated = errors.New("relay: no usable credential")

// ErrBackendUnavailable indicates a non-success status or transport failure
// from the inference backend. It is surfaced to the user's group as an error
// event, never propagated to the invoking transport layer.
var ErrBackendUnavailable = errors.New("relay: backend unavailable")

// TokenRecord is the durable mapping from a push token to its owning user.
// The token value is the natural unique key; the owner may change over the
// token's life when a device re-registers under a different account.
type TokenRecord struct {
	Token       string `firestore:"fcmToken" json:"fcmToken"`
	OwnerUserID string `firestore:"userId" json:"userId"`
	LastUpdated int64  `firestore:"lastUpdated" json:"lastUpdated"` // epoch millis
}

// FailureReason is the provider's error vocabulary for one send attempt.
type FailureReason string

const (
	ReasonOK              FailureReason = "OK"
	ReasonInvalidArgument FailureReason = "INVALID_ARGUMENT"
	ReasonNotFound        FailureReason = "NOT_FOUND"
	ReasonUnregistered    FailureReason = "UNREGISTERED"
	ReasonSenderMismatch  FailureReason = "SENDER_ID_MISMATCH"
	ReasonQuotaExceeded   FailureReason = "QUOTA_EXCEEDED"
	ReasonUnavailable     FailureReason = "UNAVAILABLE"
	ReasonInternal        FailureReason = "INTERNAL"
	ReasonUnknown         FailureReason = "UNKNOWN"
)

// Permanent reports whether the provider will never again accept the token,
// warranting its deletion from the store. Every other reason is treated as
// transient and leaves the token untouched.
func (r FailureReason) Permanent() bool {
	switch r {
	case ReasonInvalidArgument, ReasonNotFound, ReasonUnregistered, ReasonSenderMismatch:
		return true
	default:
		return false
	}
}

// SendOutcome is the terminal result of one provider send attempt. It is
// ephemeral: produced once per attempt and consumed only to decide token
// deletion.
type SendOutcome struct {
	Token       string
	Success     bool
	StatusCode  FailureReason
	MessageID   string
	ErrorDetail string
}
