package slides

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	slidesapi "google.golang.org/api/slides/v1"
)

var ErrOAuthUnavailable = errors.New("google slides oauth unavailable")
var ErrOAuthStateInvalid = errors.New("google slides oauth state is invalid")
var ErrOAuthExchangeFailed = errors.New("google slides oauth code exchange failed")

const defaultOAuthStateTTL = 10 * time.Minute

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	AuthURL      string
	TokenURL     string
	StateTTL     time.Duration
}

func OAuthConfigFromEnv() OAuthConfig {
	cfg := OAuthConfig{
		ClientID:     strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_ID")),
		ClientSecret: strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_SECRET")),
		RedirectURL:  strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_REDIRECT_URL")),
		Scopes:       ParseOAuthScopes(os.Getenv("GOOGLE_OAUTH_SCOPES")),
		AuthURL:      strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_AUTH_URL")),
		TokenURL:     strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_TOKEN_URL")),
		StateTTL:     defaultOAuthStateTTL,
	}
	if raw := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_STATE_TTL")); raw != "" {
		if ttl, err := time.ParseDuration(raw); err == nil && ttl > 0 {
			cfg.StateTTL = ttl
		}
	}
	return cfg
}

func (c OAuthConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURL != ""
}

func (c OAuthConfig) oauth2Config() *oauth2.Config {
	endpoint := google.Endpoint
	if c.AuthURL != "" {
		endpoint.AuthURL = c.AuthURL
	}
	if c.TokenURL != "" {
		endpoint.TokenURL = c.TokenURL
	}
	scopes := c.Scopes
	if len(scopes) == 0 {
		scopes = []string{slidesapi.PresentationsScope}
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       scopes,
		Endpoint:     endpoint,
	}
}

type AuthStart struct {
	SessionKey     string
	AuthURL        string
	StateExpiresAt time.Time
}

type AuthCallback struct {
	SessionKey string
	ExpiresAt  *time.Time
}

type OAuthManager struct {
	config       *oauth2.Config
	store        OAuthTokenStore
	now          func() time.Time
	stateTTL     time.Duration
	randomString func(int) (string, error)
}

func NewOAuthManager(cfg OAuthConfig, store OAuthTokenStore) (*OAuthManager, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: token store is not configured", ErrOAuthUnavailable)
	}
	if !cfg.Configured() {
		return nil, fmt.Errorf("%w: GOOGLE_OAUTH_CLIENT_ID, GOOGLE_OAUTH_CLIENT_SECRET, and GOOGLE_OAUTH_REDIRECT_URL are required", ErrOAuthUnavailable)
	}

	ttl := cfg.StateTTL
	if ttl <= 0 {
		ttl = defaultOAuthStateTTL
	}

	return &OAuthManager{
		config:       cfg.oauth2Config(),
		store:        store,
		now:          time.Now,
		stateTTL:     ttl,
		randomString: secureRandomString,
	}, nil
}

// StartAuth binds a fresh state to sessionKey, minting a key when empty.
func (m *OAuthManager) StartAuth(sessionKey string) (AuthStart, error) {
	if m == nil || m.config == nil || m.store == nil {
		return AuthStart{}, fmt.Errorf("%w: manager is not initialized", ErrOAuthUnavailable)
	}

	if strings.TrimSpace(sessionKey) == "" {
		generated, err := m.randomString(32)
		if err != nil {
			return AuthStart{}, fmt.Errorf("%w: %v", ErrOAuthUnavailable, err)
		}
		sessionKey = generated
	}

	state, err := m.randomString(32)
	if err != nil {
		return AuthStart{}, fmt.Errorf("%w: %v", ErrOAuthUnavailable, err)
	}

	stateExpiresAt := m.now().Add(m.stateTTL)
	m.store.SaveState(state, sessionKey, stateExpiresAt)

	authURL := m.config.AuthCodeURL(
		state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)

	return AuthStart{
		SessionKey:     sessionKey,
		AuthURL:        authURL,
		StateExpiresAt: stateExpiresAt,
	}, nil
}

func (m *OAuthManager) CompleteAuth(ctx context.Context, state string, code string) (AuthCallback, error) {
	if m == nil || m.config == nil || m.store == nil {
		return AuthCallback{}, fmt.Errorf("%w: manager is not initialized", ErrOAuthUnavailable)
	}

	state = strings.TrimSpace(state)
	code = strings.TrimSpace(code)
	if state == "" {
		return AuthCallback{}, ErrOAuthStateInvalid
	}
	if code == "" {
		return AuthCallback{}, fmt.Errorf("%w: missing code", ErrOAuthExchangeFailed)
	}

	sessionKey, ok := m.store.ConsumeState(state, m.now())
	if !ok {
		return AuthCallback{}, ErrOAuthStateInvalid
	}

	token, err := m.config.Exchange(ctx, code)
	if err != nil {
		return AuthCallback{}, fmt.Errorf("%w: %v", ErrOAuthExchangeFailed, err)
	}
	m.store.SaveToken(sessionKey, token)

	result := AuthCallback{SessionKey: sessionKey}
	if !token.Expiry.IsZero() {
		expiresAt := token.Expiry.UTC()
		result.ExpiresAt = &expiresAt
	}
	return result, nil
}

// TokenSource returns a refreshing source for a session that completed
// OAuth. Refreshed tokens are written back to the store.
func (m *OAuthManager) TokenSource(ctx context.Context, sessionKey string) (oauth2.TokenSource, bool) {
	if m == nil || m.store == nil || strings.TrimSpace(sessionKey) == "" {
		return nil, false
	}
	token, ok := m.store.Token(sessionKey)
	if !ok {
		return nil, false
	}
	return &persistingTokenSource{
		base:       m.config.TokenSource(ctx, token),
		store:      m.store,
		sessionKey: sessionKey,
		last:       token.AccessToken,
	}, true
}

// Disconnect drops the session's Google token.
func (m *OAuthManager) Disconnect(sessionKey string) {
	if m == nil || m.store == nil {
		return
	}
	m.store.DeleteToken(sessionKey)
}

type persistingTokenSource struct {
	base       oauth2.TokenSource
	store      OAuthTokenStore
	sessionKey string
	last       string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	if token.AccessToken != s.last {
		s.last = token.AccessToken
		s.store.SaveToken(s.sessionKey, token)
		log.Printf("component=slides event=oauth_token_refreshed session_key_set=%t", s.sessionKey != "")
	}
	return token, nil
}

func ParseOAuthScopes(rawScopes string) []string {
	cleaned := strings.TrimSpace(rawScopes)
	if cleaned == "" {
		return []string{slidesapi.PresentationsScope}
	}

	parts := strings.FieldsFunc(cleaned, func(r rune) bool {
		return r == ',' || r == ' '
	})
	unique := make(map[string]struct{}, len(parts))
	scopes := make([]string, 0, len(parts))

	for _, part := range parts {
		scope := strings.TrimSpace(part)
		if scope == "" {
			continue
		}
		if _, exists := unique[scope]; exists {
			continue
		}
		unique[scope] = struct{}{}
		scopes = append(scopes, scope)
	}

	if len(scopes) == 0 {
		return []string{slidesapi.PresentationsScope}
	}
	return scopes
}

func secureRandomString(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}

	data := make([]byte, length)
	if _, err := rand.Read(data); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(data), nil
}
