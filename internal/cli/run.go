package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// exitCode carries a process status out of a command whose error was
// already written to stdout.
type exitCode int

func (e exitCode) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

type globalFlags struct {
	baseURL   string
	sessionID string
	apiKey    string
	timeout   time.Duration
}

func (g *globalFlags) client() *apiClient {
	return &apiClient{
		baseURL:   strings.TrimRight(strings.TrimSpace(g.baseURL), "/"),
		sessionID: strings.TrimSpace(g.sessionID),
		apiKey:    strings.TrimSpace(g.apiKey),
		httpClient: &http.Client{
			Timeout: g.timeout,
		},
	}
}

// Run executes the CLI and returns the process exit status: 0 on success,
// 1 when a request failed and 2 for usage errors.
func Run(args []string, stdout io.Writer, stderr io.Writer) int {
	if args == nil {
		args = []string{}
	}
	root := newRootCommand(stdout)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(context.Background())
	if err == nil {
		return 0
	}

	var code exitCode
	if errors.As(err, &code) {
		return int(code)
	}
	writeCLIError(stdout, "invalid_arguments", err.Error(), 0)
	return 2
}

func newRootCommand(stdout io.Writer) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "slidebuddy",
		Short:         "Edit slide decks with natural-language commands.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			writeCLIError(stdout, "missing_command", usageText(), 0)
			return exitCode(2)
		},
	}
	root.SetHelpCommand(&cobra.Command{Hidden: true})

	persistent := root.PersistentFlags()
	persistent.StringVar(&flags.baseURL, "base-url", envOrDefault("SLIDEBUDDY_BASE_URL", "http://localhost:8080"), "slidebuddy API base URL")
	persistent.StringVar(&flags.sessionID, "session", strings.TrimSpace(os.Getenv("SLIDEBUDDY_SESSION")), "session id for X-Session-Id")
	persistent.StringVar(&flags.apiKey, "api-key", strings.TrimSpace(os.Getenv("SLIDEBUDDY_API_KEY")), "completion API key for X-LLM-Api-Key")
	persistent.DurationVar(&flags.timeout, "timeout", 60*time.Second, "HTTP timeout, e.g. 15s")

	root.AddCommand(
		&cobra.Command{
			Use:   "health",
			Short: "Check the API is up",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runRequest(cmd.Context(), flags.client(), stdout, http.MethodGet, "/api/health", nil)
			},
		},
		&cobra.Command{
			Use:   "capabilities",
			Short: "Show provider, document and undo settings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runRequest(cmd.Context(), flags.client(), stdout, http.MethodGet, "/api/capabilities", nil)
			},
		},
		newRouteCommand(flags, stdout),
		newRevertCommand(flags, stdout),
		&cobra.Command{
			Use:   "snapshots",
			Short: "List undo snapshots for the session",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runRequest(cmd.Context(), flags.client(), stdout, http.MethodGet, "/api/snapshots", nil)
			},
		},
		newLocalCommand(stdout),
	)
	return root
}

func newRouteCommand(flags *globalFlags, stdout io.Writer) *cobra.Command {
	var (
		documentID string
		slideID    string
		selected   []string
	)
	cmd := &cobra.Command{
		Use:   "route <utterance>",
		Short: "Send a natural-language command",
		RunE: func(cmd *cobra.Command, args []string) error {
			utterance := strings.TrimSpace(strings.Join(args, " "))
			if utterance == "" {
				writeCLIError(stdout, "missing_utterance", "route requires an utterance", 0)
				return exitCode(2)
			}
			payload := map[string]any{
				"utterance":          utterance,
				"documentId":         strings.TrimSpace(documentID),
				"currentSlideId":     strings.TrimSpace(slideID),
				"selectedElementIds": selected,
			}
			return runRequest(cmd.Context(), flags.client(), stdout, http.MethodPost, "/api/route", payload)
		},
	}
	cmd.Flags().StringVar(&documentID, "document-id", "", "presentation id")
	cmd.Flags().StringVar(&slideID, "slide", "", "current slide id")
	cmd.Flags().StringSliceVar(&selected, "select", nil, "selected element ids")
	return cmd
}

func newRevertCommand(flags *globalFlags, stdout io.Writer) *cobra.Command {
	var documentID, snapshotID string
	cmd := &cobra.Command{
		Use:   "revert",
		Short: "Undo the newest change, or back to --snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]string{
				"documentId": strings.TrimSpace(documentID),
				"snapshotId": strings.TrimSpace(snapshotID),
			}
			return runRequest(cmd.Context(), flags.client(), stdout, http.MethodPost, "/api/revert", payload)
		},
	}
	cmd.Flags().StringVar(&documentID, "document-id", "", "presentation id")
	cmd.Flags().StringVar(&snapshotID, "snapshot", "", "snapshot id to revert to")
	return cmd
}

func runRequest(ctx context.Context, client *apiClient, stdout io.Writer, method string, path string, payload any) error {
	responseBody, err := client.request(ctx, method, path, payload)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) {
			writeCLIError(stdout, apiErr.Code, apiErr.Message, apiErr.Status)
			return exitCode(1)
		}
		writeCLIError(stdout, "request_failed", err.Error(), 0)
		return exitCode(1)
	}

	if err := writeStructuredJSON(stdout, responseBody); err != nil {
		writeCLIError(stdout, "invalid_response", err.Error(), 0)
		return exitCode(1)
	}
	return nil
}

func writeStructuredJSON(output io.Writer, body []byte) error {
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return err
	}

	encoder := json.NewEncoder(output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func writeCLIError(output io.Writer, code string, message string, status int) {
	payload := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
	if status > 0 {
		payload["error"].(map[string]any)["status"] = status
	}

	encoder := json.NewEncoder(output)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(payload)
}

func usageText() string {
	return strings.Join([]string{
		"usage: slidebuddy [global flags] <command> [command flags]",
		"commands: health, capabilities, route, revert, snapshots, local",
		"global flags: --base-url --session --api-key --timeout",
	}, "\n")
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
