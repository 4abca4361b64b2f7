package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/alanmaizon/slidebuddy/internal/agents"
	"github.com/alanmaizon/slidebuddy/internal/config"
	"github.com/alanmaizon/slidebuddy/internal/mcpserver"
	"github.com/alanmaizon/slidebuddy/internal/session"
	"github.com/alanmaizon/slidebuddy/internal/slides"
)

var version = "dev"

func main() {
	var deckPath, undoPath string

	cmd := &cobra.Command{
		Use:           "slidebuddy-mcp",
		Short:         "Serve deck editing tools over MCP stdio",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), deckPath, undoPath)
		},
	}
	cmd.Flags().StringVar(&deckPath, "deck", "", "YAML deck to edit (default DECK_PATH, else the demo deck)")
	cmd.Flags().StringVar(&undoPath, "undo-db", "", "sqlite file for undo history (default <deck>.undo.db)")

	// stdout carries the protocol, so logs go to stderr.
	log.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		log.Fatalf("component=mcp event=fatal error=%q", err.Error())
	}
}

func serve(ctx context.Context, deckPath string, undoPath string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	orchestrator, err := agents.FromConfig(cfg)
	if err != nil {
		return err
	}

	if strings.TrimSpace(deckPath) == "" {
		deckPath = cfg.Document.DeckPath
	}

	deck := slides.NewMemoryDeck(slides.DemoDeck())
	storeCfg := session.StoreConfig{Driver: "memory"}
	sessionID := "mcp:demo"
	if deckPath != "" {
		deck, err = slides.LoadDeck(deckPath)
		if err != nil {
			return err
		}
		if undoPath == "" {
			undoPath = deckPath + ".undo.db"
		}
		storeCfg = session.StoreConfig{Driver: "sqlite", Path: undoPath}
		if abs, err := filepath.Abs(deckPath); err == nil {
			deckPath = abs
		}
		sessionID = "local:" + deckPath
	}

	store, err := session.NewStore(storeCfg)
	if err != nil {
		return err
	}
	sessions := session.NewManager(store, cfg.Undo.Depth)
	defer sessions.Close()

	srv := mcpserver.New(mcpserver.Options{
		Orchestrator: orchestrator,
		Sessions:     sessions,
		Deck:         deck,
		SessionID:    sessionID,
		Credential:   strings.TrimSpace(os.Getenv("SLIDEBUDDY_API_KEY")),
		Autosave:     deckPath != "",
	}).NewMCPServer(version)

	log.Printf("component=mcp event=serving session_id=%s undo_store=%s", sessionID, sessions.StoreName())
	return srv.Run(ctx, &mcp.StdioTransport{})
}
