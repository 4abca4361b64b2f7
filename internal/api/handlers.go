package api

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/alanmaizon/slidebuddy/internal/agents"
	"github.com/alanmaizon/slidebuddy/internal/domain"
	"github.com/alanmaizon/slidebuddy/internal/llm"
	"github.com/alanmaizon/slidebuddy/internal/metrics"
	"github.com/alanmaizon/slidebuddy/internal/middleware"
	"github.com/alanmaizon/slidebuddy/internal/session"
	"github.com/alanmaizon/slidebuddy/internal/slides"
	"github.com/gin-gonic/gin"
)

const CredentialHeader = "X-LLM-Api-Key"

// Dependencies are the long-lived services behind the routes. OAuth may be
// nil when Google sign-in is not configured.
type Dependencies struct {
	Orchestrator       *agents.Orchestrator
	Sessions           *session.Manager
	Opener             slides.Opener
	OAuth              *slides.OAuthManager
	RateLimitPerMinute int
}

type handlers struct {
	Dependencies
	limiter *clientLimiter
}

func RegisterRoutes(router *gin.Engine, deps Dependencies) {
	h := &handlers{Dependencies: deps, limiter: newClientLimiter(deps.RateLimitPerMinute, nil)}

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	router.GET("/metrics", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(metrics.PrometheusText()))
	})

	router.GET("/api/capabilities", h.capabilities)
	router.GET("/api/slides/auth/start", h.authStart)
	router.GET("/api/slides/auth/callback", h.authCallback)

	sessions := router.Group("/api", middleware.SessionID())
	sessions.POST("/route", h.route)
	sessions.POST("/revert", h.revert)
	sessions.GET("/snapshots", h.snapshots)
	sessions.DELETE("/session", h.forget)
}

func (h *handlers) capabilities(c *gin.Context) {
	providers := h.Orchestrator.Providers()
	requested := providers.Base().Provider
	provider := providers.For("")

	active := provider.Name()
	_, unconfigured := provider.(*llm.UnconfiguredProvider)
	if unconfigured {
		active = "heuristics"
	}

	c.JSON(http.StatusOK, domain.CapabilitiesResponse{
		Runtime: domain.RuntimeCapabilities{
			RequestedProvider: requested,
			ActiveProvider:    active,
			ProviderFallback:  requested != active,
			Document:          h.Opener.Name(),
			Translator:        h.Orchestrator.Translator(provider).Name(),
			UndoDepth:         h.Sessions.Depth(),
		},
		Features: domain.FeatureFlags{
			Operations:      h.Orchestrator.Registry().Operations(),
			EnhanceStyles:   domain.EnhanceStyles,
			HeuristicOnly:   unconfigured,
			PersistentUndo:  h.Sessions.StoreName() != "memory",
			GoogleSlidesAPI: h.Opener.Name() == "google_slides",
		},
	})
}

func (h *handlers) authStart(c *gin.Context) {
	if h.OAuth == nil {
		writeError(c, http.StatusServiceUnavailable, "slides_service_unavailable", "google slides oauth is not configured")
		return
	}

	result, err := h.OAuth.StartAuth(strings.TrimSpace(c.GetHeader(middleware.SessionIDHeader)))
	if err != nil {
		writeError(c, http.StatusServiceUnavailable, "slides_service_unavailable", "failed to initialize google slides oauth")
		return
	}

	c.JSON(http.StatusOK, domain.ConnectorAuthStartResponse{
		Connector:      "google_slides",
		SessionKey:     result.SessionKey,
		AuthURL:        result.AuthURL,
		StateExpiresAt: result.StateExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *handlers) authCallback(c *gin.Context) {
	if h.OAuth == nil {
		writeError(c, http.StatusServiceUnavailable, "slides_service_unavailable", "google slides oauth is not configured")
		return
	}

	if oauthErr := strings.TrimSpace(c.Query("error")); oauthErr != "" {
		message := strings.TrimSpace(c.Query("error_description"))
		if message == "" {
			message = oauthErr
		}
		writeError(c, http.StatusBadRequest, "oauth_access_denied", message)
		return
	}

	state := strings.TrimSpace(c.Query("state"))
	if state == "" {
		writeError(c, http.StatusBadRequest, "missing_oauth_state", "state is required")
		return
	}
	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		writeError(c, http.StatusBadRequest, "missing_oauth_code", "code is required")
		return
	}

	result, err := h.OAuth.CompleteAuth(c.Request.Context(), state, code)
	if err != nil {
		switch {
		case errors.Is(err, slides.ErrOAuthStateInvalid):
			writeError(c, http.StatusBadRequest, "invalid_oauth_state", "oauth state is invalid or expired")
		case errors.Is(err, slides.ErrOAuthExchangeFailed):
			writeError(c, http.StatusBadGateway, "oauth_exchange_failed", "oauth code exchange failed")
		case errors.Is(err, slides.ErrOAuthUnavailable):
			writeError(c, http.StatusServiceUnavailable, "slides_service_unavailable", "google slides oauth is not configured")
		default:
			writeError(c, http.StatusInternalServerError, "internal_error", err.Error())
		}
		return
	}

	response := domain.ConnectorAuthCallbackResponse{
		Connector:     "google_slides",
		SessionKey:    result.SessionKey,
		Authenticated: true,
	}
	if result.ExpiresAt != nil {
		response.ExpiresAt = result.ExpiresAt.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, response)
}

func (h *handlers) route(c *gin.Context) {
	if !enforceRateLimit(c, h.limiter) {
		return
	}

	var req domain.RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_payload", "invalid route payload")
		return
	}
	if strings.TrimSpace(req.Utterance) == "" {
		writeError(c, http.StatusBadRequest, "missing_utterance", "utterance is required")
		return
	}

	sess, release, ok := h.acquire(c)
	if !ok {
		return
	}
	defer release()

	if !h.open(c, sess, slides.OpenRequest{
		DocumentID:         req.DocumentID,
		CurrentSlideID:     req.CurrentSlideID,
		SelectedElementIDs: req.SelectedElementIDs,
	}) {
		return
	}

	response := h.Orchestrator.RouteRequest(c.Request.Context(), sess, req.Utterance)
	response.Metadata.RequestID = middleware.GetRequestID(c)
	c.JSON(http.StatusOK, response)
}

func (h *handlers) revert(c *gin.Context) {
	if !enforceRateLimit(c, h.limiter) {
		return
	}

	var req domain.RevertRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid_payload", "invalid revert payload")
			return
		}
	}

	sess, release, ok := h.acquire(c)
	if !ok {
		return
	}
	defer release()

	if !h.open(c, sess, slides.OpenRequest{DocumentID: req.DocumentID}) {
		return
	}

	response := h.Orchestrator.Revert(c.Request.Context(), sess, strings.TrimSpace(req.SnapshotID))
	response.Metadata.RequestID = middleware.GetRequestID(c)
	c.JSON(http.StatusOK, response)
}

func (h *handlers) snapshots(c *gin.Context) {
	sess, release, ok := h.acquire(c)
	if !ok {
		return
	}
	defer release()

	c.JSON(http.StatusOK, domain.SnapshotListResponse{
		SessionID: sess.ID,
		Snapshots: sess.Undo.List(),
	})
}

func (h *handlers) forget(c *gin.Context) {
	sessionID := middleware.GetSessionID(c)
	if err := h.Sessions.Forget(c.Request.Context(), sessionID); err != nil {
		writeError(c, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	if h.OAuth != nil {
		h.OAuth.Disconnect(sessionID)
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) acquire(c *gin.Context) (*session.Session, func(), bool) {
	sess, release, err := h.Sessions.Acquire(c.Request.Context(), middleware.GetSessionID(c))
	if err != nil {
		log.Printf(
			"request_id=%s component=api session_id=%s event=session_load_failed error=%q",
			middleware.GetRequestID(c),
			middleware.GetSessionID(c),
			err.Error(),
		)
		writeError(c, http.StatusServiceUnavailable, "session_unavailable", "session state could not be loaded")
		return nil, nil, false
	}
	sess.Credential = strings.TrimSpace(c.GetHeader(CredentialHeader))
	return sess, release, true
}

func (h *handlers) open(c *gin.Context, sess *session.Session, req slides.OpenRequest) bool {
	req.SessionKey = sess.ID
	doc, err := h.Opener.Open(c.Request.Context(), req)
	if err != nil {
		status, code, message := documentError(err)
		log.Printf(
			"request_id=%s component=api session_id=%s document=%s event=open_failed error_code=%s",
			middleware.GetRequestID(c),
			sess.ID,
			h.Opener.Name(),
			code,
		)
		writeError(c, status, code, message)
		return false
	}
	sess.Document = doc
	return true
}

func documentError(err error) (status int, code string, message string) {
	switch {
	case errors.Is(err, slides.ErrNoDocument):
		return http.StatusBadRequest, "missing_document", "documentId is required"
	case errors.Is(err, slides.ErrUnauthorized):
		return http.StatusUnauthorized, "slides_unauthorized", "google slides credentials are missing or invalid"
	case errors.Is(err, slides.ErrForbidden):
		return http.StatusForbidden, "slides_forbidden", "access to this presentation is forbidden"
	case errors.Is(err, slides.ErrUnavailable):
		return http.StatusServiceUnavailable, "slides_service_unavailable", "google slides is unavailable"
	default:
		return http.StatusInternalServerError, "internal_error", err.Error()
	}
}

func writeError(c *gin.Context, status int, code string, message string) {
	c.JSON(status, domain.APIErrorResponse{
		Error: domain.APIError{
			Code:      code,
			Message:   message,
			RequestID: middleware.GetRequestID(c),
		},
	})
}
