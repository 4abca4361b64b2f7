package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/alanmaizon/slidebuddy/internal/agents"
	"github.com/alanmaizon/slidebuddy/internal/engine"
	"github.com/alanmaizon/slidebuddy/internal/llm"
	"github.com/alanmaizon/slidebuddy/internal/metrics"
	"github.com/alanmaizon/slidebuddy/internal/middleware"
	"github.com/alanmaizon/slidebuddy/internal/session"
	"github.com/alanmaizon/slidebuddy/internal/slides"
	"github.com/gin-gonic/gin"
)

type errorEnvelope struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}

type routeEnvelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	CanUndo   bool   `json:"canUndo"`
	Directive struct {
		Operation string `json:"operation"`
	} `json:"directive"`
	Result struct {
		TotalMutated int `json:"totalMutated"`
	} `json:"result"`
	Metadata struct {
		Provider  string `json:"provider"`
		SessionID string `json:"sessionId"`
		RequestID string `json:"requestId"`
	} `json:"metadata"`
}

type snapshotsEnvelope struct {
	SessionID string `json:"sessionId"`
	Snapshots []struct {
		ID             string `json:"id"`
		OperationLabel string `json:"operationLabel"`
	} `json:"snapshots"`
}

type capabilitiesEnvelope struct {
	Runtime struct {
		RequestedProvider string `json:"requestedProvider"`
		ActiveProvider    string `json:"activeProvider"`
		ProviderFallback  bool   `json:"providerFallback"`
		Document          string `json:"document"`
		Translator        string `json:"translator"`
		UndoDepth         int    `json:"undoDepth"`
	} `json:"runtime"`
	Features struct {
		Operations     []string `json:"operations"`
		EnhanceStyles  []string `json:"enhanceStyles"`
		HeuristicOnly  bool     `json:"heuristicOnly"`
		PersistentUndo bool     `json:"persistentUndo"`
	} `json:"features"`
}

type authStartEnvelope struct {
	Connector      string `json:"connector"`
	SessionKey     string `json:"sessionKey"`
	AuthURL        string `json:"authUrl"`
	StateExpiresAt string `json:"stateExpiresAt"`
}

type authCallbackEnvelope struct {
	Connector     string `json:"connector"`
	SessionKey    string `json:"sessionKey"`
	Authenticated bool   `json:"authenticated"`
	ExpiresAt     string `json:"expiresAt"`
}

type testServer struct {
	router   *gin.Engine
	deck     *slides.MemoryDeck
	sessions *session.Manager
	store    *slides.InMemoryOAuthTokenStore
}

type testOption func(*Dependencies)

func withProviders(cfg llm.Config) testOption {
	return func(deps *Dependencies) {
		deps.Orchestrator = agents.NewOrchestrator(agents.Options{
			Providers: llm.NewFactory(cfg),
			Engine:    engine.New(engine.Options{Pacer: engine.FixedDelay(0)}),
		})
	}
}

func withOAuth(t *testing.T, server *testServer, authURL string, tokenURL string) testOption {
	t.Helper()
	return func(deps *Dependencies) {
		manager, err := slides.NewOAuthManager(slides.OAuthConfig{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			RedirectURL:  "http://localhost:8080/api/slides/auth/callback",
			AuthURL:      authURL,
			TokenURL:     tokenURL,
		}, server.store)
		if err != nil {
			t.Fatalf("failed to build oauth manager: %v", err)
		}
		deps.OAuth = manager
	}
}

func newTestServer(t *testing.T, build func(*testServer) []testOption) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	server := &testServer{
		deck:     slides.NewMemoryDeck(slides.DemoDeck()),
		sessions: session.NewManager(session.NewMemoryStore(), 0),
		store:    slides.NewInMemoryOAuthTokenStore(),
	}
	deps := Dependencies{
		Orchestrator: agents.NewOrchestrator(agents.Options{
			Engine: engine.New(engine.Options{Pacer: engine.FixedDelay(0)}),
		}),
		Sessions: server.sessions,
		Opener:   slides.NewMemoryOpener(server.deck),
	}
	if build != nil {
		for _, option := range build(server) {
			option(&deps)
		}
	}

	server.router = gin.New()
	server.router.Use(middleware.RequestID())
	RegisterRoutes(server.router, deps)
	return server
}

func (s *testServer) do(method string, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	res := httptest.NewRecorder()
	s.router.ServeHTTP(res, req)
	return res
}

func decode(t *testing.T, res *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(res.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response: %v body=%s", err, res.Body.String())
	}
}

func TestHealth(t *testing.T) {
	res := newTestServer(t, nil).do(http.MethodGet, "/api/health", "", nil)

	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.Code)
	}
	if strings.TrimSpace(res.Body.String()) != "{\"ok\":true}" {
		t.Fatalf("unexpected body: %s", res.Body.String())
	}
}

func TestCapabilitiesDefault(t *testing.T) {
	res := newTestServer(t, nil).do(http.MethodGet, "/api/capabilities", "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.Code)
	}

	var payload capabilitiesEnvelope
	decode(t, res, &payload)

	if payload.Runtime.RequestedProvider != "mock" || payload.Runtime.ActiveProvider != "mock" {
		t.Fatalf("unexpected provider runtime payload: %+v", payload.Runtime)
	}
	if payload.Runtime.ProviderFallback {
		t.Fatalf("expected provider fallback=false")
	}
	if payload.Runtime.Document != "memory" {
		t.Fatalf("expected memory document, got %q", payload.Runtime.Document)
	}
	if payload.Runtime.Translator != "llm" {
		t.Fatalf("expected llm translator, got %q", payload.Runtime.Translator)
	}
	if payload.Runtime.UndoDepth != session.DefaultUndoDepth {
		t.Fatalf("expected undo depth %d, got %d", session.DefaultUndoDepth, payload.Runtime.UndoDepth)
	}
	if strings.Join(payload.Features.Operations, ",") != "enhance,recolor,replace,translate,undo" {
		t.Fatalf("unexpected operations: %v", payload.Features.Operations)
	}
	if len(payload.Features.EnhanceStyles) != 5 {
		t.Fatalf("expected 5 enhance styles, got %v", payload.Features.EnhanceStyles)
	}
	if payload.Features.HeuristicOnly || payload.Features.PersistentUndo {
		t.Fatalf("unexpected feature flags: %+v", payload.Features)
	}
}

func TestCapabilitiesFallbackVisibility(t *testing.T) {
	server := newTestServer(t, func(*testServer) []testOption {
		return []testOption{withProviders(llm.Config{Provider: "openai"})}
	})
	res := server.do(http.MethodGet, "/api/capabilities", "", nil)

	var payload capabilitiesEnvelope
	decode(t, res, &payload)

	if payload.Runtime.RequestedProvider != "openai" || payload.Runtime.ActiveProvider != "heuristics" {
		t.Fatalf("unexpected provider runtime payload: %+v", payload.Runtime)
	}
	if !payload.Runtime.ProviderFallback || !payload.Features.HeuristicOnly {
		t.Fatalf("expected fallback to be visible: %+v", payload)
	}
}

func TestRouteValidationErrors(t *testing.T) {
	testCases := []struct {
		name string
		body string
		code string
	}{
		{name: "invalid json", body: `{"utterance":`, code: "invalid_payload"},
		{name: "missing utterance", body: `{"utterance":"   "}`, code: "missing_utterance"},
	}

	server := newTestServer(t, nil)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := server.do(http.MethodPost, "/api/route", tc.body, nil)
			if res.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", res.Code)
			}

			var payload errorEnvelope
			decode(t, res, &payload)
			if payload.Error.Code != tc.code {
				t.Fatalf("expected %s, got %q", tc.code, payload.Error.Code)
			}
			if payload.Error.RequestID == "" {
				t.Fatalf("expected requestId in error payload")
			}
		})
	}
}

func TestRouteReplaceThenRevert(t *testing.T) {
	server := newTestServer(t, nil)
	headers := map[string]string{middleware.SessionIDHeader: "session-1"}

	res := server.do(http.MethodPost, "/api/route", `{"utterance":"Replace \"PRD\" with \"需求文档\""}`, headers)
	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", res.Code, res.Body.String())
	}
	if got := res.Header().Get(middleware.SessionIDHeader); got != "session-1" {
		t.Fatalf("expected session header echoed, got %q", got)
	}

	var routed routeEnvelope
	decode(t, res, &routed)
	if !routed.Success || !routed.CanUndo || routed.Directive.Operation != "replace" {
		t.Fatalf("unexpected route payload: %+v", routed)
	}
	if routed.Result.TotalMutated != 1 {
		t.Fatalf("expected one mutated element, got %d", routed.Result.TotalMutated)
	}
	if routed.Metadata.SessionID != "session-1" || routed.Metadata.RequestID == "" || routed.Metadata.Provider != "mock" {
		t.Fatalf("unexpected metadata: %+v", routed.Metadata)
	}
	if !strings.Contains(server.deck.Deck().Slides[0].Elements[1].Text, "需求文档") {
		t.Fatalf("deck was not updated")
	}

	var listed snapshotsEnvelope
	decode(t, server.do(http.MethodGet, "/api/snapshots", "", headers), &listed)
	if len(listed.Snapshots) != 1 || listed.SessionID != "session-1" {
		t.Fatalf("expected one snapshot, got %+v", listed)
	}

	res = server.do(http.MethodPost, "/api/revert", "", headers)
	if res.Code != http.StatusOK {
		t.Fatalf("expected revert status 200, got %d body=%s", res.Code, res.Body.String())
	}
	var reverted routeEnvelope
	decode(t, res, &reverted)
	if !reverted.Success {
		t.Fatalf("expected revert success, got %q", reverted.Message)
	}
	if strings.Contains(server.deck.Deck().Slides[0].Elements[1].Text, "需求文档") {
		t.Fatalf("deck was not reverted")
	}

	decode(t, server.do(http.MethodGet, "/api/snapshots", "", headers), &listed)
	if len(listed.Snapshots) != 0 {
		t.Fatalf("expected no snapshots after revert, got %d", len(listed.Snapshots))
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	server := newTestServer(t, nil)

	res := server.do(http.MethodPost, "/api/route", `{"utterance":"Replace \"PRD\" with \"spec\""}`, map[string]string{middleware.SessionIDHeader: "a"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.Code)
	}

	res = server.do(http.MethodPost, "/api/revert", "", map[string]string{middleware.SessionIDHeader: "b"})
	var reverted routeEnvelope
	decode(t, res, &reverted)
	if reverted.Success || reverted.Message != "There is nothing to undo." {
		t.Fatalf("expected empty undo stack for session b, got %+v", reverted)
	}

	res = server.do(http.MethodDelete, "/api/session", "", map[string]string{middleware.SessionIDHeader: "a"})
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", res.Code)
	}
	var listed snapshotsEnvelope
	decode(t, server.do(http.MethodGet, "/api/snapshots", "", map[string]string{middleware.SessionIDHeader: "a"}), &listed)
	if len(listed.Snapshots) != 0 {
		t.Fatalf("expected forgotten session to start empty, got %d", len(listed.Snapshots))
	}
}

func TestRouteGeneratesSessionID(t *testing.T) {
	res := newTestServer(t, nil).do(http.MethodPost, "/api/route", `{"utterance":"hello there"}`, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.Code)
	}
	if res.Header().Get(middleware.SessionIDHeader) == "" {
		t.Fatalf("expected generated session id")
	}

	var payload routeEnvelope
	decode(t, res, &payload)
	if !payload.Success || payload.CanUndo {
		t.Fatalf("expected a help response, got %+v", payload)
	}
}

func TestRouteRateLimited(t *testing.T) {
	server := newTestServer(t, func(*testServer) []testOption {
		return []testOption{func(deps *Dependencies) { deps.RateLimitPerMinute = 1 }}
	})

	first := server.do(http.MethodPost, "/api/route", `{"utterance":"undo"}`, nil)
	if first.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", first.Code)
	}

	second := server.do(http.MethodPost, "/api/route", `{"utterance":"undo"}`, nil)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatalf("expected a Retry-After header")
	}
	var payload errorEnvelope
	decode(t, second, &payload)
	if payload.Error.Code != "rate_limited" {
		t.Fatalf("expected rate_limited, got %q", payload.Error.Code)
	}
}

func TestMetricsAfterRoute(t *testing.T) {
	metrics.ResetForTests()
	server := newTestServer(t, nil)
	server.do(http.MethodPost, "/api/route", `{"utterance":"Replace \"PRD\" with \"spec\""}`, nil)

	res := server.do(http.MethodGet, "/metrics", "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "slidebuddy_operations_total") {
		t.Fatalf("expected operations counter, got %s", res.Body.String())
	}
}

func TestSlidesAuthStartOAuthNotConfigured(t *testing.T) {
	res := newTestServer(t, nil).do(http.MethodGet, "/api/slides/auth/start", "", nil)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", res.Code)
	}
	var payload errorEnvelope
	decode(t, res, &payload)
	if payload.Error.Code != "slides_service_unavailable" {
		t.Fatalf("expected slides_service_unavailable, got %q", payload.Error.Code)
	}
}

func TestSlidesAuthStartAndCallbackSuccess(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "oauth-access",
			"refresh_token": "oauth-refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	defer tokenServer.Close()

	server := newTestServer(t, func(s *testServer) []testOption {
		return []testOption{withOAuth(t, s, tokenServer.URL+"/auth", tokenServer.URL+"/token")}
	})

	startRes := server.do(http.MethodGet, "/api/slides/auth/start", "", map[string]string{middleware.SessionIDHeader: "session-9"})
	if startRes.Code != http.StatusOK {
		t.Fatalf("expected start status 200, got %d body=%s", startRes.Code, startRes.Body.String())
	}

	var startPayload authStartEnvelope
	decode(t, startRes, &startPayload)
	if startPayload.Connector != "google_slides" || startPayload.SessionKey != "session-9" {
		t.Fatalf("unexpected start payload: %+v", startPayload)
	}
	if startPayload.AuthURL == "" || startPayload.StateExpiresAt == "" {
		t.Fatalf("expected authUrl/stateExpiresAt in start response: %+v", startPayload)
	}

	authURL, err := url.Parse(startPayload.AuthURL)
	if err != nil {
		t.Fatalf("expected valid auth url, got %v", err)
	}
	state := strings.TrimSpace(authURL.Query().Get("state"))
	if state == "" {
		t.Fatalf("expected state query param in auth url")
	}

	callbackRes := server.do(http.MethodGet, "/api/slides/auth/callback?state="+url.QueryEscape(state)+"&code=good-code", "", nil)
	if callbackRes.Code != http.StatusOK {
		t.Fatalf("expected callback status 200, got %d body=%s", callbackRes.Code, callbackRes.Body.String())
	}

	var callbackPayload authCallbackEnvelope
	decode(t, callbackRes, &callbackPayload)
	if callbackPayload.SessionKey != "session-9" || !callbackPayload.Authenticated {
		t.Fatalf("unexpected callback payload: %+v", callbackPayload)
	}

	token, ok := server.store.Token("session-9")
	if !ok {
		t.Fatalf("expected oauth token to be stored")
	}
	if token.AccessToken != "oauth-access" || token.RefreshToken != "oauth-refresh" {
		t.Fatalf("unexpected stored token: %+v", token)
	}

	forgetRes := server.do(http.MethodDelete, "/api/session", "", map[string]string{middleware.SessionIDHeader: "session-9"})
	if forgetRes.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", forgetRes.Code)
	}
	if _, ok := server.store.Token("session-9"); ok {
		t.Fatalf("expected forgetting the session to disconnect google slides")
	}
}

func TestSlidesAuthCallbackErrors(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "exchange failed", http.StatusBadGateway)
	}))
	defer tokenServer.Close()

	server := newTestServer(t, func(s *testServer) []testOption {
		return []testOption{withOAuth(t, s, tokenServer.URL+"/auth", tokenServer.URL+"/token")}
	})

	var startPayload authStartEnvelope
	decode(t, server.do(http.MethodGet, "/api/slides/auth/start", "", nil), &startPayload)
	authURL, _ := url.Parse(startPayload.AuthURL)
	state := authURL.Query().Get("state")

	testCases := []struct {
		name   string
		query  string
		status int
		code   string
	}{
		{name: "access denied", query: "?error=access_denied&error_description=user+declined", status: http.StatusBadRequest, code: "oauth_access_denied"},
		{name: "missing state", query: "?code=abc", status: http.StatusBadRequest, code: "missing_oauth_state"},
		{name: "missing code", query: "?state=abc", status: http.StatusBadRequest, code: "missing_oauth_code"},
		{name: "unknown state", query: "?state=missing&code=abc", status: http.StatusBadRequest, code: "invalid_oauth_state"},
		{name: "exchange failure", query: "?state=" + url.QueryEscape(state) + "&code=abc", status: http.StatusBadGateway, code: "oauth_exchange_failed"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := server.do(http.MethodGet, "/api/slides/auth/callback"+tc.query, "", nil)
			if res.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, res.Code)
			}
			var payload errorEnvelope
			decode(t, res, &payload)
			if payload.Error.Code != tc.code {
				t.Fatalf("expected %s, got %q", tc.code, payload.Error.Code)
			}
		})
	}
}
