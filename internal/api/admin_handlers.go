// Package api defines the administrative HTTP handlers for the relay
// service. The endpoints are unauthenticated and must only be reachable
// from a trusted internal network.
package api

import (
	"context"
	"io"
	"net/http"

	"github.com/rs/zerolog"
)

// maxBodyBytes caps admin request bodies, matching the transport ceiling
// enforced on the websocket side.
const maxBodyBytes = 2 << 20 // 2 MiB

// Gateway is the slice of the relay gateway the admin API drives.
type Gateway interface {
	DeliverOrFallback(ctx context.Context, userID, rawMessage, notificationText string)
	BroadcastTitle(userID, title string)
}

// API holds the dependencies for the stateless admin handlers.
type API struct {
	gateway Gateway
	logger  zerolog.Logger
}

// NewAPI creates a new, stateless admin API handler.
func NewAPI(gateway Gateway, logger zerolog.Logger) *API {
	return &API{
		gateway: gateway,
		logger:  logger.With().Str("component", "AdminAPI").Logger(),
	}
}

// Register attaches the admin routes to the mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /relay/sendMessage/{userId}", a.SendMessageHandler)
	mux.HandleFunc("POST /relay/sendTitle/{userId}", a.SendTitleHandler)
}

// SendMessageHandler accepts a raw message for a target user and hands it
// to the presence-aware delivery path. Delivery is fire-and-forget from the
// caller's perspective: the response is success once the message has been
// handed off.
func (a *API) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	if userID == "" {
		http.Error(w, "missing user id", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		a.logger.Warn().Err(err).Msg("Failed to read request body.")
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	notificationText := r.URL.Query().Get("notification")

	a.logger.Debug().Str("user", userID).Msg("Admin message hand-off.")
	a.gateway.DeliverOrFallback(r.Context(), userID, string(body), notificationText)

	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "done")
}

// SendTitleHandler broadcasts a room-title update to the target user's
// group, with no presence check.
func (a *API) SendTitleHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	if userID == "" {
		http.Error(w, "missing user id", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		a.logger.Warn().Err(err).Msg("Failed to read request body.")
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	a.gateway.BroadcastTitle(userID, string(body))

	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "done")
}
