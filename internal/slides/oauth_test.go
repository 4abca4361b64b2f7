package slides

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func testOAuthConfig(baseURL string) OAuthConfig {
	return OAuthConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost/callback",
		AuthURL:      baseURL + "/auth",
		TokenURL:     baseURL + "/token",
	}
}

// tokenEndpoint answers every exchange or refresh with the given fields.
func tokenEndpoint(t *testing.T, status int, fields map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			http.Error(w, "nope", status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(fields)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestOAuthManager(t *testing.T, baseURL string) (*OAuthManager, *InMemoryOAuthTokenStore) {
	t.Helper()
	store := NewInMemoryOAuthTokenStore()
	manager, err := NewOAuthManager(testOAuthConfig(baseURL), store)
	require.NoError(t, err)
	return manager, store
}

func TestStartAuthBindsStateToSession(t *testing.T) {
	manager, store := newTestOAuthManager(t, "https://accounts.example.com")

	result, err := manager.StartAuth("session-7")
	require.NoError(t, err)
	assert.Equal(t, "session-7", result.SessionKey)
	assert.True(t, result.StateExpiresAt.After(time.Now()))

	parsed, err := url.Parse(result.AuthURL)
	require.NoError(t, err)
	assert.Equal(t, "accounts.example.com", parsed.Host)
	assert.Contains(t, parsed.Query().Get("scope"), "presentations")

	sessionKey, ok := store.ConsumeState(parsed.Query().Get("state"), time.Now())
	require.True(t, ok, "state should be stored")
	assert.Equal(t, "session-7", sessionKey)
}

func TestStartAuthMintsSessionKey(t *testing.T) {
	manager, _ := newTestOAuthManager(t, "https://accounts.example.com")

	first, err := manager.StartAuth("")
	require.NoError(t, err)
	second, err := manager.StartAuth("  ")
	require.NoError(t, err)

	assert.NotEmpty(t, first.SessionKey)
	assert.NotEqual(t, first.SessionKey, second.SessionKey)
}

func TestCompleteAuthStoresToken(t *testing.T) {
	server := tokenEndpoint(t, http.StatusOK, map[string]any{
		"access_token":  "access-1",
		"refresh_token": "refresh-1",
		"token_type":    "Bearer",
		"expires_in":    3600,
	})
	manager, store := newTestOAuthManager(t, server.URL)
	store.SaveState("state-1", "session-1", time.Now().Add(time.Minute))

	result, err := manager.CompleteAuth(context.Background(), "state-1", "code-1")
	require.NoError(t, err)
	assert.Equal(t, "session-1", result.SessionKey)
	require.NotNil(t, result.ExpiresAt)

	token, ok := store.Token("session-1")
	require.True(t, ok)
	assert.Equal(t, "refresh-1", token.RefreshToken)
}

func TestCompleteAuthErrors(t *testing.T) {
	failing := tokenEndpoint(t, http.StatusBadGateway, nil)

	cases := []struct {
		name  string
		state string
		code  string
		want  error
	}{
		{"empty state", "", "code", ErrOAuthStateInvalid},
		{"unknown state", "missing", "code", ErrOAuthStateInvalid},
		{"empty code", "state-1", "", ErrOAuthExchangeFailed},
		{"exchange rejected", "state-1", "code", ErrOAuthExchangeFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			manager, store := newTestOAuthManager(t, failing.URL)
			store.SaveState("state-1", "session-1", time.Now().Add(time.Minute))

			_, err := manager.CompleteAuth(context.Background(), tc.state, tc.code)
			assert.ErrorIs(t, err, tc.want)
			_, stored := store.Token("session-1")
			assert.False(t, stored)
		})
	}
}

func TestNewOAuthManagerRequiresConfig(t *testing.T) {
	_, err := NewOAuthManager(OAuthConfig{}, NewInMemoryOAuthTokenStore())
	assert.ErrorIs(t, err, ErrOAuthUnavailable)

	_, err = NewOAuthManager(testOAuthConfig("https://accounts.example.com"), nil)
	assert.ErrorIs(t, err, ErrOAuthUnavailable)
}

func TestTokenSourceRefreshesAndPersists(t *testing.T) {
	server := tokenEndpoint(t, http.StatusOK, map[string]any{
		"access_token": "refreshed-access",
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
	manager, store := newTestOAuthManager(t, server.URL)
	store.SaveToken("session-1", &oauth2.Token{
		AccessToken:  "expired-access",
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(-time.Minute),
	})

	source, ok := manager.TokenSource(context.Background(), "session-1")
	require.True(t, ok)

	token, err := source.Token()
	require.NoError(t, err)
	assert.Equal(t, "refreshed-access", token.AccessToken)

	stored, _ := store.Token("session-1")
	assert.Equal(t, "refreshed-access", stored.AccessToken)
	assert.Equal(t, "refresh-1", stored.RefreshToken)

	_, ok = manager.TokenSource(context.Background(), "unknown")
	assert.False(t, ok)
}

func TestDisconnectDropsToken(t *testing.T) {
	manager, store := newTestOAuthManager(t, "https://accounts.example.com")
	store.SaveToken("session-1", &oauth2.Token{AccessToken: "access-1"})

	manager.Disconnect("session-1")

	_, ok := manager.TokenSource(context.Background(), "session-1")
	assert.False(t, ok)

	var nilManager *OAuthManager
	assert.NotPanics(t, func() { nilManager.Disconnect("session-1") })
}

func TestParseOAuthScopes(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, ParseOAuthScopes("a, b a"))
	assert.Len(t, ParseOAuthScopes(""), 1)
}
