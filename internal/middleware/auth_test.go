package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("unit-test-secret")

func signToken(t *testing.T, subject string) string {
	t.Helper()
	token, err := jwt.NewBuilder().
		Subject(subject).
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(time.Hour)).
		Build()
	require.NoError(t, err)

	key, err := jwk.FromRaw(testSecret)
	require.NoError(t, err)

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, key))
	require.NoError(t, err)
	return string(signed)
}

func newTestMiddleware(t *testing.T) func(http.Handler) http.Handler {
	t.Helper()
	mw, err := NewAuthMiddleware(context.Background(), AuthConfig{HMACSecret: testSecret}, zerolog.Nop())
	require.NoError(t, err)
	return mw
}

func TestExtractAccessToken_QueryParameterFirst(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/connect?access_token=from-query", nil)
	r.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-query", ExtractAccessToken(r))
}

func TestExtractAccessToken_HeaderFallback(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/connect", nil)
	r.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", ExtractAccessToken(r))

	// Scheme match is case-insensitive.
	r.Header.Set("Authorization", "bEaReR mixed-case")
	assert.Equal(t, "mixed-case", ExtractAccessToken(r))
}

func TestExtractAccessToken_NoCredential(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/connect", nil)
	assert.Empty(t, ExtractAccessToken(r))

	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Empty(t, ExtractAccessToken(r))
}

func TestAuthMiddleware_AttachesIdentityAndCredential(t *testing.T) {
	mw := newTestMiddleware(t)
	raw := signToken(t, "user-a")

	var gotUser, gotCred string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = GetUserIDFromContext(r.Context())
		gotCred, _ = GetCredentialFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/connect?access_token="+url.QueryEscape(raw), nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-a", gotUser)
	assert.Equal(t, raw, gotCred)
}

func TestAuthMiddleware_RejectsMissingToken(t *testing.T) {
	mw := newTestMiddleware(t)
	handler := mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not be reached")
	}))

	r := httptest.NewRequest(http.MethodGet, "/connect", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_RejectsInvalidToken(t *testing.T) {
	mw := newTestMiddleware(t)
	handler := mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not be reached")
	}))

	r := httptest.NewRequest(http.MethodGet, "/connect?access_token=garbage", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNewAuthMiddleware_RequiresAMode(t *testing.T) {
	_, err := NewAuthMiddleware(context.Background(), AuthConfig{}, zerolog.Nop())
	assert.Error(t, err)
}
