package slides

import (
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// OAuthTokenStore keeps pending OAuth states and the tokens of sessions that
// connected Google Slides. States are single use.
type OAuthTokenStore interface {
	SaveState(state string, sessionKey string, expiresAt time.Time)
	ConsumeState(state string, now time.Time) (sessionKey string, ok bool)
	SaveToken(sessionKey string, token *oauth2.Token)
	Token(sessionKey string) (*oauth2.Token, bool)
	DeleteToken(sessionKey string)
}

type pendingState struct {
	sessionKey string
	expiresAt  time.Time
}

func (p pendingState) expired(now time.Time) bool {
	return !p.expiresAt.IsZero() && now.After(p.expiresAt)
}

// InMemoryOAuthTokenStore holds tokens by value so callers never share a
// token with the store.
type InMemoryOAuthTokenStore struct {
	mu     sync.Mutex
	now    func() time.Time
	states map[string]pendingState
	tokens map[string]oauth2.Token
}

func NewInMemoryOAuthTokenStore() *InMemoryOAuthTokenStore {
	return &InMemoryOAuthTokenStore{
		now:    time.Now,
		states: make(map[string]pendingState),
		tokens: make(map[string]oauth2.Token),
	}
}

func (s *InMemoryOAuthTokenStore) SaveState(state string, sessionKey string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, pending := range s.states {
		if pending.expired(now) {
			delete(s.states, key)
		}
	}
	s.states[state] = pendingState{sessionKey: sessionKey, expiresAt: expiresAt}
}

func (s *InMemoryOAuthTokenStore) ConsumeState(state string, now time.Time) (string, bool) {
	s.mu.Lock()
	pending, ok := s.states[state]
	delete(s.states, state)
	s.mu.Unlock()

	if !ok || pending.expired(now) {
		return "", false
	}
	return pending.sessionKey, true
}

// SaveToken merges token into the session's entry. Refresh responses
// usually omit the refresh token, so an empty one keeps the stored value.
func (s *InMemoryOAuthTokenStore) SaveToken(sessionKey string, token *oauth2.Token) {
	if token == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := *token
	if merged.RefreshToken == "" {
		merged.RefreshToken = s.tokens[sessionKey].RefreshToken
	}
	s.tokens[sessionKey] = merged
}

func (s *InMemoryOAuthTokenStore) Token(sessionKey string) (*oauth2.Token, bool) {
	s.mu.Lock()
	token, ok := s.tokens[sessionKey]
	s.mu.Unlock()

	if !ok {
		return nil, false
	}
	return &token, true
}

func (s *InMemoryOAuthTokenStore) DeleteToken(sessionKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, sessionKey)
}
