// Package realtime provides the relay gateway: the websocket-facing server
// that mediates between live client connections, the inference backend,
// and the push-notification fallback.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tinywideclouds/go-relay-service/internal/backend"
	"github.com/tinywideclouds/go-relay-service/internal/middleware"
	"github.com/tinywideclouds/go-relay-service/pkg/relay"
)

// BackendClient is the slice of the backend API the gateway consumes.
type BackendClient interface {
	GenerateStream(ctx context.Context, credential, message string) (backend.Stream, error)
	GenerateOnce(ctx context.Context, credential, message string) (string, error)
}

// GatewayConfig carries the gateway's own settings.
type GatewayConfig struct {
	Port string
	// NotificationTitle is the title used for all push notifications.
	NotificationTitle string
	// DefaultNotificationText is used when the fallback caller supplies none.
	DefaultNotificationText string
	// NotificationsEnabled is the master switch for the push fallback path.
	// When off, absent users simply miss the message (broadcast to an empty
	// group), mirroring relay-only deployments.
	NotificationsEnabled bool
}

// Gateway manages all live websocket connections, their per-user broadcast
// groups, and the relay operations between clients and the backend. It runs
// its own dedicated HTTP server.
type Gateway struct {
	server   *http.Server
	upgrader websocket.Upgrader

	presence relay.Presence
	tokens   relay.TokenStore
	notifier relay.Notifier
	backend  BackendClient

	groups *groupRegistry
	ops    sync.WaitGroup

	cfg        GatewayConfig
	logger     zerolog.Logger
	instanceID string
}

// NewGateway creates and wires up the relay gateway.
func NewGateway(
	cfg GatewayConfig,
	authMiddleware func(http.Handler) http.Handler,
	deps *relay.ServiceDependencies,
	backendClient BackendClient,
	logger zerolog.Logger,
) (*Gateway, error) {
	if deps == nil || deps.Presence == nil || deps.TokenStore == nil || deps.Notifier == nil {
		return nil, fmt.Errorf("gateway dependencies cannot be nil")
	}
	if backendClient == nil {
		return nil, fmt.Errorf("backend client cannot be nil")
	}

	instanceID := uuid.NewString()
	gwLogger := logger.With().Str("component", "Gateway").Str("instance", instanceID).Logger()

	gw := &Gateway{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// TODO: Implement a real origin check
				return true
			},
		},
		presence:   deps.Presence,
		tokens:     deps.TokenStore,
		notifier:   deps.Notifier,
		backend:    backendClient,
		groups:     newGroupRegistry(),
		cfg:        cfg,
		logger:     gwLogger,
		instanceID: instanceID,
	}

	mux := http.NewServeMux()
	mux.Handle("/relay/chat", authMiddleware(http.HandlerFunc(gw.connectHandler)))
	gw.server = &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	return gw, nil
}

// Start runs the HTTP server for websocket connections.
func (gw *Gateway) Start(ctx context.Context) error {
	gw.logger.Info().Str("addr", gw.server.Addr).Msg("WebSocket server starting...")
	if err := gw.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("websocket server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server, terminates all live
// connections, and waits for in-flight relay operations to settle.
func (gw *Gateway) Shutdown(ctx context.Context) error {
	gw.logger.Info().Msg("Shutting down relay gateway...")
	err := gw.server.Shutdown(ctx)
	if err != nil {
		gw.logger.Error().Err(err).Msg("WebSocket server shutdown failed.")
	}

	gw.groups.closeAll()
	gw.ops.Wait()

	gw.logger.Info().Msg("Relay gateway shut down.")
	return err
}

// connectHandler upgrades a new HTTP request to a websocket and manages the
// connection's lifecycle. A request without a resolved identity is rejected
// before the upgrade.
func (gw *Gateway) connectHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok || userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	credential, _ := middleware.GetCredentialFromContext(r.Context())

	sock, err := gw.upgrader.Upgrade(w, r, nil)
	if err != nil {
		gw.logger.Error().Err(err).Msg("Failed to upgrade connection.")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	conn := &connection{
		id:         uuid.NewString(),
		userID:     userID,
		credential: credential,
		sock:       sock,
		cancel:     cancel,
	}

	gw.onConnect(conn)
	defer gw.onDisconnect(conn)

	// Read loop: dispatches client operations and detects disconnect.
	for {
		_, payload, err := sock.ReadMessage()
		if err != nil {
			return
		}
		gw.dispatch(ctx, conn, payload)
	}
}

// onConnect records the connection→user association, joins the per-user
// group, and marks one live connection for presence.
func (gw *Gateway) onConnect(conn *connection) {
	gw.groups.add(conn)
	gw.presence.MarkPresent(conn.userID)
	gw.logger.Info().Str("user", conn.userID).Str("conn", conn.id).Msg("User connected.")
}

// onDisconnect is the mirror of onConnect. Presence is reference counted,
// so a user with another device still connected stays present.
func (gw *Gateway) onDisconnect(conn *connection) {
	conn.cancel()
	gw.groups.remove(conn.id)
	gw.presence.MarkAbsent(conn.userID)
	_ = conn.sock.Close()
	gw.logger.Info().Str("user", conn.userID).Str("conn", conn.id).Msg("User disconnected.")
}

// dispatch routes one client frame. Relay operations run in their own
// goroutine so the read loop keeps pumping and can detect a disconnect
// mid-stream.
func (gw *Gateway) dispatch(ctx context.Context, conn *connection, payload []byte) {
	var frame clientFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		gw.logger.Warn().Err(err).Str("conn", conn.id).Msg("Dropping malformed client frame.")
		return
	}

	switch frame.Type {
	case opRegisterPushToken:
		gw.registerPushToken(ctx, conn, frame.Payload)

	case opSendStreamingMessage:
		gw.ops.Add(1)
		go func() {
			defer gw.ops.Done()
			gw.handleStreaming(ctx, conn, frame.Payload)
		}()

	case opSendMessage:
		gw.ops.Add(1)
		go func() {
			defer gw.ops.Done()
			if err := gw.RelayOnce(ctx, conn.userID, conn.credential, frame.Payload); err != nil {
				_ = conn.send(ServerEvent{Type: EventErrorOccurred, Payload: "Unauthenticated"})
			}
		}()

	default:
		gw.logger.Warn().Str("type", frame.Type).Str("conn", conn.id).Msg("Unknown client operation.")
	}
}

// registerPushToken upserts the device token under the connection's user
// with a server-side timestamp.
func (gw *Gateway) registerPushToken(ctx context.Context, conn *connection, token string) {
	if token == "" {
		gw.logger.Warn().Str("conn", conn.id).Msg("Ignoring empty push token registration.")
		return
	}
	if err := gw.tokens.UpsertToken(ctx, token, conn.userID, time.Now().UnixMilli()); err != nil {
		gw.logger.Error().Err(err).Str("user", conn.userID).Msg("Failed to upsert push token.")
	}
}

// handleStreaming is the chunk-consumption path: it forwards every chunk
// the relay yields to the user's group, and its context is cancelled when
// the invoking connection disconnects, abandoning the upstream stream.
func (gw *Gateway) handleStreaming(ctx context.Context, conn *connection, rawMessage string) {
	stream, err := gw.RelayStreaming(ctx, conn.userID, conn.credential, rawMessage)
	if err != nil {
		if errors.Is(err, relay.ErrUnauthenticated) {
			_ = conn.send(ServerEvent{Type: EventErrorOccurred, Payload: "Unauthenticated"})
		}
		return
	}
	defer func() { _ = stream.Close() }()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			gw.logger.Warn().Err(err).Str("user", conn.userID).Msg("Backend stream ended abnormally.")
			return
		}
		gw.groups.broadcast(conn.userID, ServerEvent{Type: EventReceiveChunk, Payload: chunk}, gw.logger)
	}
}

// RelayStreaming echoes the outbound message to the user's group, then
// opens a streaming backend call with the connection's credential. The echo
// is delivered before the backend call is issued. A missing credential
// fails with relay.ErrUnauthenticated before any network I/O; a backend
// failure is broadcast to the group as an error event.
func (gw *Gateway) RelayStreaming(ctx context.Context, userID, credential, rawMessage string) (backend.Stream, error) {
	gw.groups.broadcast(userID, ServerEvent{Type: EventReceiveClientMessage, Payload: rawMessage}, gw.logger)

	if credential == "" {
		return nil, relay.ErrUnauthenticated
	}

	stream, err := gw.backend.GenerateStream(ctx, credential, rawMessage)
	if err != nil {
		gw.broadcastBackendError(userID, err)
		return nil, err
	}
	return stream, nil
}

// RelayOnce echoes the outbound message, performs a single-shot backend
// call, and broadcasts either the full response body or an error event
// carrying the original message as fallback content. Backend failures are
// converted into the error-event path, never propagated; the only error
// returned is relay.ErrUnauthenticated.
func (gw *Gateway) RelayOnce(ctx context.Context, userID, credential, rawMessage string) error {
	gw.groups.broadcast(userID, ServerEvent{Type: EventReceiveClientMessage, Payload: rawMessage}, gw.logger)

	if credential == "" {
		return relay.ErrUnauthenticated
	}

	reply, err := gw.backend.GenerateOnce(ctx, credential, rawMessage)
	if err != nil {
		gw.logger.Warn().Err(err).Str("user", userID).Msg("Single-shot backend call failed.")
		gw.groups.broadcast(userID, ServerEvent{Type: EventErrorOccurred, Payload: rawMessage}, gw.logger)
		return nil
	}

	gw.groups.broadcast(userID, ServerEvent{Type: EventReceiveMessage, Payload: reply}, gw.logger)
	return nil
}

// DeliverOrFallback delivers a message to a present user's live
// connections, or falls back to push notifications for an absent one.
func (gw *Gateway) DeliverOrFallback(ctx context.Context, userID, rawMessage, notificationText string) {
	if gw.presence.IsPresent(userID) || !gw.cfg.NotificationsEnabled {
		gw.groups.broadcast(userID, ServerEvent{Type: EventReceiveMessage, Payload: rawMessage}, gw.logger)
		return
	}

	text := strings.TrimSpace(notificationText)
	if text == "" {
		text = gw.cfg.DefaultNotificationText
	}

	tokens := gw.tokens.ListTokensForUser(ctx, userID)
	gw.notifier.Send(ctx, tokens, gw.cfg.NotificationTitle, text, false)
}

// BroadcastTitle unconditionally pushes a room-title update to the user's
// group. Fire-and-forget: a no-op if nobody is listening.
func (gw *Gateway) BroadcastTitle(userID, title string) {
	gw.groups.broadcast(userID, ServerEvent{Type: EventRoomTitle, Payload: title}, gw.logger)
}

// broadcastBackendError surfaces a backend failure to the user's group in
// the form clients can distinguish from a normal response.
func (gw *Gateway) broadcastBackendError(userID string, err error) {
	var statusErr *backend.StatusError
	detail := "backend unavailable"
	if errors.As(err, &statusErr) {
		detail = fmt.Sprintf("Error: %d - %s", statusErr.Code, http.StatusText(statusErr.Code))
	}
	gw.groups.broadcast(userID, ServerEvent{Type: EventErrorOccurred, Payload: detail}, gw.logger)
}
