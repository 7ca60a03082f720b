// Package middleware provides the JWT authentication middleware for the
// live-connection transport.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	userIDContextKey     = contextKey("authedUserID")
	credentialContextKey = contextKey("bearerCredential")
)

// GetUserIDFromContext returns the verified caller identity attached by the
// auth middleware.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDContextKey).(string)
	return id, ok && id != ""
}

// GetCredentialFromContext returns the raw bearer credential the caller
// presented. The relay forwards it to the inference backend.
func GetCredentialFromContext(ctx context.Context) (string, bool) {
	cred, ok := ctx.Value(credentialContextKey).(string)
	return cred, ok && cred != ""
}

// WithAuthContext returns a context carrying a verified identity and raw
// credential, as the auth middleware would attach them. Intended for tests
// and in-process callers.
func WithAuthContext(ctx context.Context, userID, credential string) context.Context {
	ctx = context.WithValue(ctx, userIDContextKey, userID)
	return context.WithValue(ctx, credentialContextKey, credential)
}

// ExtractAccessToken applies the credential extraction policy: the
// access_token query parameter first, then a Bearer Authorization header
// with a case-insensitive scheme match. Returns "" when neither yields a
// token.
func ExtractAccessToken(r *http.Request) string {
	if token := r.URL.Query().Get("access_token"); token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	const scheme = "bearer "
	if len(authHeader) <= len(scheme) || !strings.EqualFold(authHeader[:len(scheme)], scheme) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(scheme):])
}

// AuthConfig selects the token verification mode: a JWKS endpoint in
// production, or a shared HS256 secret for local runs and tests.
type AuthConfig struct {
	JWKSURL    string
	HMACSecret []byte
}

// NewAuthMiddleware creates the JWT-validating middleware. On success the
// verified subject and the raw credential are attached to the request
// context; on failure the request is rejected with 401, which terminates
// a websocket handshake before upgrade.
func NewAuthMiddleware(ctx context.Context, cfg AuthConfig, logger zerolog.Logger) (func(http.Handler) http.Handler, error) {
	log := logger.With().Str("component", "AuthMiddleware").Logger()

	verify, err := newVerifier(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := ExtractAccessToken(r)
			if raw == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			token, err := verify(raw)
			if err != nil {
				log.Warn().Err(err).Msg("Rejected request with invalid token.")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			subject := token.Subject()
			if subject == "" {
				log.Warn().Msg("Rejected token without a subject claim.")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			reqCtx := context.WithValue(r.Context(), userIDContextKey, subject)
			reqCtx = context.WithValue(reqCtx, credentialContextKey, raw)
			next.ServeHTTP(w, r.WithContext(reqCtx))
		})
	}, nil
}

func newVerifier(ctx context.Context, cfg AuthConfig) (func(string) (jwt.Token, error), error) {
	switch {
	case cfg.JWKSURL != "":
		cache := jwk.NewCache(ctx)
		if err := cache.Register(cfg.JWKSURL); err != nil {
			return nil, fmt.Errorf("failed to register JWKS endpoint: %w", err)
		}
		keySet := jwk.NewCachedSet(cache, cfg.JWKSURL)
		return func(raw string) (jwt.Token, error) {
			return jwt.Parse([]byte(raw), jwt.WithKeySet(keySet), jwt.WithValidate(true))
		}, nil

	case len(cfg.HMACSecret) > 0:
		key, err := jwk.FromRaw(cfg.HMACSecret)
		if err != nil {
			return nil, fmt.Errorf("failed to construct HMAC key: %w", err)
		}
		return func(raw string) (jwt.Token, error) {
			return jwt.Parse([]byte(raw), jwt.WithKey(jwa.HS256, key), jwt.WithValidate(true))
		}, nil

	default:
		return nil, fmt.Errorf("auth config requires a JWKS URL or an HMAC secret")
	}
}
