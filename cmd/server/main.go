package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/alanmaizon/slidebuddy/internal/agents"
	"github.com/alanmaizon/slidebuddy/internal/api"
	"github.com/alanmaizon/slidebuddy/internal/config"
	"github.com/alanmaizon/slidebuddy/internal/middleware"
	"github.com/alanmaizon/slidebuddy/internal/session"
	"github.com/alanmaizon/slidebuddy/internal/slides"
	"github.com/alanmaizon/slidebuddy/internal/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownTracing, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}

	orchestrator, err := agents.FromConfig(cfg)
	if err != nil {
		log.Fatalf("failed to build orchestrator: %v", err)
	}

	store, err := session.NewStore(cfg.StoreConfig())
	if err != nil {
		log.Fatalf("failed to open undo store: %v", err)
	}
	sessions := session.NewManager(store, cfg.Undo.Depth)

	var oauth *slides.OAuthManager
	if oauthCfg := slides.OAuthConfigFromEnv(); oauthCfg.Configured() {
		oauth, err = slides.NewOAuthManager(oauthCfg, slides.NewInMemoryOAuthTokenStore())
		if err != nil {
			log.Fatalf("failed to configure oauth: %v", err)
		}
	}

	opener, err := slides.NewOpener(cfg.OpenerConfig(), oauth)
	if err != nil {
		log.Fatalf("failed to configure documents: %v", err)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(tracing.Middleware())
	router.Use(middleware.Logging())
	router.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-Request-Id",
			"X-Session-Id",
			api.CredentialHeader,
		},
		ExposeHeaders: []string{"X-Request-Id", "X-Session-Id", tracing.TraceIDHeader},
	}))

	api.RegisterRoutes(router, api.Dependencies{
		Orchestrator:       orchestrator,
		Sessions:           sessions,
		Opener:             opener,
		OAuth:              oauth,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
	})

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("component=server event=listening port=%s document_driver=%s undo_store=%s", cfg.Server.Port, opener.Name(), sessions.StoreName())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start server on port %s: %v", cfg.Server.Port, err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("component=server event=shutdown_failed error=%q", err.Error())
	}
	if err := sessions.Close(); err != nil {
		log.Printf("component=server event=undo_store_close_failed error=%q", err.Error())
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("component=server event=tracing_shutdown_failed error=%q", err.Error())
	}
}
