package cli

import (
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alanmaizon/slidebuddy/internal/agents"
	"github.com/alanmaizon/slidebuddy/internal/config"
	"github.com/alanmaizon/slidebuddy/internal/session"
	"github.com/alanmaizon/slidebuddy/internal/slides"
)

type localFlags struct {
	deckPath string
	undoPath string
	slideID  string
	selected []string
	dryRun   bool
}

// newLocalCommand runs one utterance in-process against a YAML deck and
// writes the deck back. Undo history lives in a sqlite file next to the
// deck so "undo" works across invocations.
func newLocalCommand(stdout io.Writer) *cobra.Command {
	flags := &localFlags{}
	cmd := &cobra.Command{
		Use:   "local <utterance>",
		Short: "Run a command against a YAML deck file without a server",
		RunE: func(cmd *cobra.Command, args []string) error {
			utterance := strings.TrimSpace(strings.Join(args, " "))
			if utterance == "" {
				writeCLIError(stdout, "missing_utterance", "local requires an utterance", 0)
				return exitCode(2)
			}
			if strings.TrimSpace(flags.deckPath) == "" {
				writeCLIError(stdout, "missing_deck", "local requires --deck", 0)
				return exitCode(2)
			}
			apiKey, _ := cmd.Flags().GetString("api-key")
			return runLocal(cmd, stdout, flags, utterance, apiKey)
		},
	}
	cmd.Flags().StringVar(&flags.deckPath, "deck", "", "path to a YAML deck")
	cmd.Flags().StringVar(&flags.undoPath, "undo-db", "", "sqlite file for undo history (default <deck>.undo.db)")
	cmd.Flags().StringVar(&flags.slideID, "slide", "", "current slide id")
	cmd.Flags().StringSliceVar(&flags.selected, "select", nil, "selected element ids")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "do not write the deck or undo history")
	return cmd
}

func runLocal(cmd *cobra.Command, stdout io.Writer, flags *localFlags, utterance string, apiKey string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		writeCLIError(stdout, "invalid_config", err.Error(), 0)
		return exitCode(2)
	}
	orchestrator, err := agents.FromConfig(cfg)
	if err != nil {
		writeCLIError(stdout, "invalid_config", err.Error(), 0)
		return exitCode(2)
	}

	deck, err := slides.LoadDeck(flags.deckPath)
	if err != nil {
		writeCLIError(stdout, "invalid_deck", err.Error(), 0)
		return exitCode(1)
	}

	storeCfg := session.StoreConfig{Driver: "memory"}
	if !flags.dryRun {
		storeCfg = session.StoreConfig{Driver: "sqlite", Path: flags.undoPath}
		if storeCfg.Path == "" {
			storeCfg.Path = flags.deckPath + ".undo.db"
		}
	}
	store, err := session.NewStore(storeCfg)
	if err != nil {
		writeCLIError(stdout, "undo_store_unavailable", err.Error(), 0)
		return exitCode(1)
	}
	manager := session.NewManager(store, cfg.Undo.Depth)
	defer manager.Close()

	sessionID := flags.deckPath
	if abs, err := filepath.Abs(flags.deckPath); err == nil {
		sessionID = abs
	}
	sess, release, err := manager.Acquire(ctx, "local:"+sessionID)
	if err != nil {
		writeCLIError(stdout, "undo_store_unavailable", err.Error(), 0)
		return exitCode(1)
	}
	defer release()

	sess.Credential = strings.TrimSpace(apiKey)
	sess.Document = deck.View(slides.OpenRequest{
		CurrentSlideID:     strings.TrimSpace(flags.slideID),
		SelectedElementIDs: flags.selected,
	})

	response := orchestrator.RouteRequest(ctx, sess, utterance)
	if !flags.dryRun {
		if err := deck.Save(); err != nil {
			writeCLIError(stdout, "deck_write_failed", err.Error(), 0)
			return exitCode(1)
		}
	}

	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return exitCode(1)
	}
	if !response.Success {
		return exitCode(1)
	}
	return nil
}
