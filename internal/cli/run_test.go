package cli

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunHealthSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/health" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	var stdout strings.Builder
	var stderr strings.Builder

	exitCode := Run([]string{"--base-url", server.URL, "health"}, &stdout, &stderr)
	if exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d stdout=%s stderr=%s", exitCode, stdout.String(), stderr.String())
	}

	if !strings.Contains(stdout.String(), `"ok": true`) {
		t.Fatalf("expected health response in output, got %s", stdout.String())
	}
}

func TestRunMissingCommand(t *testing.T) {
	var stdout strings.Builder
	var stderr strings.Builder

	exitCode := Run(nil, &stdout, &stderr)
	if exitCode != 2 {
		t.Fatalf("expected exit code 2, got %d", exitCode)
	}
	if !strings.Contains(stdout.String(), `"code": "missing_command"`) {
		t.Fatalf("expected missing_command error, got %s", stdout.String())
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var stdout strings.Builder
	var stderr strings.Builder

	exitCode := Run([]string{"summarize"}, &stdout, &stderr)
	if exitCode != 2 {
		t.Fatalf("expected exit code 2, got %d", exitCode)
	}
	if !strings.Contains(stdout.String(), `"code": "invalid_arguments"`) {
		t.Fatalf("expected invalid_arguments error, got %s", stdout.String())
	}
}

func TestRunRouteMissingUtterance(t *testing.T) {
	var stdout strings.Builder
	var stderr strings.Builder

	exitCode := Run([]string{"route"}, &stdout, &stderr)
	if exitCode != 2 {
		t.Fatalf("expected exit code 2, got %d", exitCode)
	}
	if !strings.Contains(stdout.String(), `"code": "missing_utterance"`) {
		t.Fatalf("expected missing_utterance error, got %s", stdout.String())
	}
}

func TestRunRouteAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/route" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":"rate_limited","message":"rate limit exceeded","requestId":"req-1"}}`))
	}))
	defer server.Close()

	var stdout strings.Builder
	var stderr strings.Builder

	exitCode := Run([]string{"--base-url", server.URL, "route", "translate to French"}, &stdout, &stderr)
	if exitCode != 1 {
		t.Fatalf("expected exit code 1, got %d", exitCode)
	}
	if !strings.Contains(stdout.String(), `"code": "rate_limited"`) {
		t.Fatalf("expected rate_limited error, got %s", stdout.String())
	}
	if !strings.Contains(stdout.String(), `"status": 429`) {
		t.Fatalf("expected status 429 in error output, got %s", stdout.String())
	}
}

func TestRunRouteSendsHeadersAndPayload(t *testing.T) {
	var (
		seenSession string
		seenAPIKey  string
		seenPayload map[string]any
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenSession = r.Header.Get("X-Session-Id")
		seenAPIKey = r.Header.Get("X-LLM-Api-Key")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &seenPayload)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"message":"Translated 3 of 3 text elements.","canUndo":true}`))
	}))
	defer server.Close()

	var stdout strings.Builder
	var stderr strings.Builder

	exitCode := Run([]string{
		"--base-url", server.URL,
		"--session", "session-1",
		"--api-key", "sk-test",
		"route",
		"--document-id", "deck-1",
		"--slide", "slide-2",
		"--select", "title-2,body-2",
		"translate", "this", "slide", "to", "French",
	}, &stdout, &stderr)
	if exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d stdout=%s stderr=%s", exitCode, stdout.String(), stderr.String())
	}

	if seenSession != "session-1" {
		t.Fatalf("expected session header, got %q", seenSession)
	}
	if seenAPIKey != "sk-test" {
		t.Fatalf("expected api key header, got %q", seenAPIKey)
	}
	if seenPayload["utterance"] != "translate this slide to French" {
		t.Fatalf("unexpected utterance: %v", seenPayload["utterance"])
	}
	if seenPayload["documentId"] != "deck-1" || seenPayload["currentSlideId"] != "slide-2" {
		t.Fatalf("unexpected payload: %v", seenPayload)
	}
	selected, _ := seenPayload["selectedElementIds"].([]any)
	if len(selected) != 2 {
		t.Fatalf("expected two selected ids, got %v", seenPayload["selectedElementIds"])
	}
}

func TestRunRevertSendsSnapshot(t *testing.T) {
	var seenPath string
	var seenPayload map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &seenPayload)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"message":"Reverted."}`))
	}))
	defer server.Close()

	var stdout strings.Builder
	var stderr strings.Builder

	exitCode := Run([]string{"--base-url", server.URL, "revert", "--snapshot", "snap-1"}, &stdout, &stderr)
	if exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d stdout=%s", exitCode, stdout.String())
	}
	if seenPath != "/api/revert" || seenPayload["snapshotId"] != "snap-1" {
		t.Fatalf("unexpected request path=%s payload=%v", seenPath, seenPayload)
	}
}

const localDeck = `id: local
title: Local deck
slides:
  - id: s1
    elements:
      - id: t1
        text: Our PRD covers the roadmap.
        style:
          bold: true
  - id: s2
    elements:
      - id: t2
        text: The PRD is final.
`

func setLocalEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SLIDEBUDDY_CONFIG", "")
	t.Setenv("LLM_PROVIDER", "mock")
	t.Setenv("ENGINE_PACER", "none")
	t.Setenv("ENGINE_BATCH_DELAY", "")
	t.Setenv("ENGINE_BATCH_SIZE", "")
	t.Setenv("UNDO_DEPTH", "")
	t.Setenv("GOOGLE_TRANSLATE_API_KEY", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
}

func TestRunLocalReplaceThenUndo(t *testing.T) {
	setLocalEnv(t)
	dir := t.TempDir()
	deckPath := filepath.Join(dir, "deck.yaml")
	if err := os.WriteFile(deckPath, []byte(localDeck), 0o644); err != nil {
		t.Fatalf("failed to write deck: %v", err)
	}

	var stdout strings.Builder
	var stderr strings.Builder
	exitCode := Run([]string{"local", "--deck", deckPath, `Replace "PRD" with "spec"`}, &stdout, &stderr)
	if exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d stdout=%s", exitCode, stdout.String())
	}

	var response struct {
		Success bool `json:"success"`
		CanUndo bool `json:"canUndo"`
		Result  struct {
			TotalMutated int `json:"totalMutated"`
		} `json:"result"`
	}
	if err := json.Unmarshal([]byte(stdout.String()), &response); err != nil {
		t.Fatalf("expected json output, got error: %v", err)
	}
	if !response.Success || !response.CanUndo || response.Result.TotalMutated != 2 {
		t.Fatalf("unexpected response: %s", stdout.String())
	}

	written, err := os.ReadFile(deckPath)
	if err != nil {
		t.Fatalf("failed to read deck: %v", err)
	}
	if strings.Contains(string(written), "PRD") || !strings.Contains(string(written), "Our spec covers the roadmap.") {
		t.Fatalf("deck was not written back: %s", written)
	}
	if _, err := os.Stat(deckPath + ".undo.db"); err != nil {
		t.Fatalf("expected undo history next to the deck: %v", err)
	}

	stdout.Reset()
	exitCode = Run([]string{"local", "--deck", deckPath, "undo"}, &stdout, &stderr)
	if exitCode != 0 {
		t.Fatalf("expected undo exit code 0, got %d stdout=%s", exitCode, stdout.String())
	}

	written, err = os.ReadFile(deckPath)
	if err != nil {
		t.Fatalf("failed to read deck: %v", err)
	}
	if !strings.Contains(string(written), "Our PRD covers the roadmap.") || !strings.Contains(string(written), "bold: true") {
		t.Fatalf("deck was not restored: %s", written)
	}
}

func TestRunLocalDryRunLeavesDeck(t *testing.T) {
	setLocalEnv(t)
	deckPath := filepath.Join(t.TempDir(), "deck.yaml")
	if err := os.WriteFile(deckPath, []byte(localDeck), 0o644); err != nil {
		t.Fatalf("failed to write deck: %v", err)
	}

	var stdout strings.Builder
	var stderr strings.Builder
	exitCode := Run([]string{"local", "--dry-run", "--deck", deckPath, `Replace "PRD" with "spec"`}, &stdout, &stderr)
	if exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d stdout=%s", exitCode, stdout.String())
	}

	written, _ := os.ReadFile(deckPath)
	if string(written) != localDeck {
		t.Fatalf("dry run modified the deck: %s", written)
	}
	if _, err := os.Stat(deckPath + ".undo.db"); !os.IsNotExist(err) {
		t.Fatalf("dry run must not create undo history")
	}
}

func TestRunLocalMissingDeck(t *testing.T) {
	var stdout strings.Builder
	var stderr strings.Builder

	exitCode := Run([]string{"local", "undo"}, &stdout, &stderr)
	if exitCode != 2 {
		t.Fatalf("expected exit code 2, got %d", exitCode)
	}
	if !strings.Contains(stdout.String(), `"code": "missing_deck"`) {
		t.Fatalf("expected missing_deck error, got %s", stdout.String())
	}
}
