// Package mcpserver exposes deck editing as MCP tools over a YAML deck.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/alanmaizon/slidebuddy/internal/agents"
	"github.com/alanmaizon/slidebuddy/internal/domain"
	"github.com/alanmaizon/slidebuddy/internal/session"
	"github.com/alanmaizon/slidebuddy/internal/slides"
	"github.com/alanmaizon/slidebuddy/internal/translate"
)

// Server binds one deck to one undo session. Every mutating call is saved
// back to the deck file when the deck was loaded from one.
type Server struct {
	orchestrator *agents.Orchestrator
	sessions     *session.Manager
	deck         *slides.MemoryDeck
	sessionID    string
	credential   string
	autosave     bool
}

type Options struct {
	Orchestrator *agents.Orchestrator
	Sessions     *session.Manager
	Deck         *slides.MemoryDeck
	SessionID    string
	Credential   string
	Autosave     bool
}

func New(opts Options) *Server {
	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = "mcp"
	}
	return &Server{
		orchestrator: opts.Orchestrator,
		sessions:     opts.Sessions,
		deck:         opts.Deck,
		sessionID:    sessionID,
		credential:   opts.Credential,
		autosave:     opts.Autosave,
	}
}

// NewMCPServer returns an MCP server with every deck tool registered.
func (s *Server) NewMCPServer(version string) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "slidebuddy", Version: version}, nil)
	s.Register(srv)
	return srv
}

func (s *Server) Register(srv *mcp.Server) {
	srv.AddTool(&mcp.Tool{
		Name:        "slides_route",
		Description: "Run a natural-language command (translate, find and replace, enhance, recolor, undo) against the deck.",
		InputSchema: inputSchema(withScope(map[string]any{
			"utterance": map[string]any{"type": "string", "description": "What to do, in plain language"},
		}), []string{"utterance"}),
	}, s.handle(s.route))

	srv.AddTool(&mcp.Tool{
		Name:        "slides_translate",
		Description: "Translate every text element in scope, keeping its style.",
		InputSchema: inputSchema(withScope(map[string]any{
			"language": map[string]any{"type": "string", "description": "Target language name or code, e.g. French or fr"},
		}), []string{"language"}),
	}, s.handle(s.translate))

	srv.AddTool(&mcp.Tool{
		Name:        "slides_replace",
		Description: "Replace whole-word occurrences of a phrase in every text element in scope.",
		InputSchema: inputSchema(withScope(map[string]any{
			"find":       map[string]any{"type": "string"},
			"replace":    map[string]any{"type": "string"},
			"match_case": map[string]any{"type": "boolean", "description": "Match letter case exactly. Defaults to false"},
			"substring":  map[string]any{"type": "boolean", "description": "Match inside words too"},
		}), []string{"find", "replace"}),
	}, s.handle(s.replace))

	styles := make([]string, 0, len(domain.EnhanceStyles))
	for _, style := range domain.EnhanceStyles {
		styles = append(styles, string(style))
	}
	srv.AddTool(&mcp.Tool{
		Name:        "slides_enhance",
		Description: "Rewrite meaningful text in scope in the given style.",
		InputSchema: inputSchema(withScope(map[string]any{
			"style": map[string]any{"type": "string", "description": "One of " + strings.Join(styles, ", ") + "; defaults to professional"},
		}), nil),
	}, s.handle(s.enhance))

	srv.AddTool(&mcp.Tool{
		Name:        "slides_recolor",
		Description: "Change the text colour in scope, optionally only where the text is already a given colour.",
		InputSchema: inputSchema(withScope(map[string]any{
			"color": map[string]any{"type": "string", "description": "New colour: a name like navy or a hex code like #1a73e8"},
			"from":  map[string]any{"type": "string", "description": "Only recolour text close to this colour"},
		}), []string{"color"}),
	}, s.handle(s.recolor))

	srv.AddTool(&mcp.Tool{
		Name:        "slides_undo",
		Description: "Undo the newest change, or every change back to snapshot_id.",
		InputSchema: inputSchema(map[string]any{
			"snapshot_id": map[string]any{"type": "string"},
		}, nil),
	}, s.handle(s.undo))

	srv.AddTool(&mcp.Tool{
		Name:        "slides_snapshots",
		Description: "List undo snapshots, newest first.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, s.handle(s.snapshots))
}

type toolArgs struct {
	Utterance  string   `json:"utterance"`
	Language   string   `json:"language"`
	Find       string   `json:"find"`
	Replace    string   `json:"replace"`
	MatchCase  *bool    `json:"match_case"`
	Substring  bool     `json:"substring"`
	Style      string   `json:"style"`
	Color      string   `json:"color"`
	From       string   `json:"from"`
	Scope      string   `json:"scope"`
	SlideID    string   `json:"slide_id"`
	ElementIDs []string `json:"element_ids"`
	SnapshotID string   `json:"snapshot_id"`
}

type endpoint func(ctx context.Context, sess *session.Session, args toolArgs) (any, bool, error)

// handle decodes arguments, binds the session to the deck and serialises
// the endpoint's reply. Argument errors become tool errors.
func (s *Server) handle(fn endpoint) func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args toolArgs
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
			}
		}

		sess, release, err := s.sessions.Acquire(ctx, s.sessionID)
		if err != nil {
			return toolError(err), nil
		}
		defer release()

		sess.Credential = s.credential
		sess.Document = s.deck.View(slides.OpenRequest{
			CurrentSlideID:     strings.TrimSpace(args.SlideID),
			SelectedElementIDs: args.ElementIDs,
		})

		reply, changed, err := fn(ctx, sess, args)
		if err != nil {
			return toolError(err), nil
		}
		if changed && s.autosave {
			if err := s.deck.Save(); err != nil {
				log.Printf("component=mcp session_id=%s event=save_failed error=%q", sess.ID, err.Error())
				return toolError(err), nil
			}
		}

		data, err := json.Marshal(reply)
		if err != nil {
			return toolError(fmt.Errorf("marshal: %w", err)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	}
}

func (s *Server) route(ctx context.Context, sess *session.Session, args toolArgs) (any, bool, error) {
	if strings.TrimSpace(args.Utterance) == "" {
		return nil, false, fmt.Errorf("utterance is required")
	}
	response := s.orchestrator.RouteRequest(ctx, sess, args.Utterance)
	return response, changed(response), nil
}

func (s *Server) translate(ctx context.Context, sess *session.Session, args toolArgs) (any, bool, error) {
	lang, ok := translate.LookupLanguage(args.Language)
	if !ok {
		return nil, false, fmt.Errorf("unknown language %q", args.Language)
	}
	d := domain.NewTranslate(lang.Name, lang.Code).WithScope(scopeOf(args)).WithSource(domain.SourceHeuristic)
	response := s.orchestrator.Dispatch(ctx, sess, d)
	return response, changed(response), nil
}

func (s *Server) replace(ctx context.Context, sess *session.Session, args toolArgs) (any, bool, error) {
	if strings.TrimSpace(args.Find) == "" {
		return nil, false, fmt.Errorf("find is required")
	}
	d := domain.NewReplace(args.Find, args.Replace).WithScope(scopeOf(args)).WithSource(domain.SourceHeuristic)
	if d.Replace != nil {
		if args.MatchCase != nil {
			d.Replace.MatchCase = *args.MatchCase
		}
		d.Replace.Substring = args.Substring
	}
	response := s.orchestrator.Dispatch(ctx, sess, d)
	return response, changed(response), nil
}

func (s *Server) enhance(ctx context.Context, sess *session.Session, args toolArgs) (any, bool, error) {
	style := domain.StyleProfessional
	if strings.TrimSpace(args.Style) != "" {
		parsed, ok := domain.ParseEnhanceStyle(args.Style)
		if !ok {
			return nil, false, fmt.Errorf("unknown style %q", args.Style)
		}
		style = parsed
	}
	d := domain.NewEnhance(style).WithScope(scopeOf(args)).WithSource(domain.SourceHeuristic)
	response := s.orchestrator.Dispatch(ctx, sess, d)
	return response, changed(response), nil
}

func (s *Server) recolor(ctx context.Context, sess *session.Session, args toolArgs) (any, bool, error) {
	d := domain.NewRecolor(args.Color, args.From)
	if d.NeedsClarification {
		return nil, false, fmt.Errorf("%s", d.ClarificationPrompt)
	}
	d = d.WithScope(scopeOf(args)).WithSource(domain.SourceHeuristic)
	response := s.orchestrator.Dispatch(ctx, sess, d)
	return response, changed(response), nil
}

func (s *Server) undo(ctx context.Context, sess *session.Session, args toolArgs) (any, bool, error) {
	response := s.orchestrator.Revert(ctx, sess, strings.TrimSpace(args.SnapshotID))
	return response, response.Success, nil
}

func (s *Server) snapshots(_ context.Context, sess *session.Session, _ toolArgs) (any, bool, error) {
	return domain.SnapshotListResponse{SessionID: sess.ID, Snapshots: sess.Undo.List()}, false, nil
}

// changed reports whether a route response may have written to the deck.
func changed(response domain.RouteResponse) bool {
	if response.Result != nil && response.Result.TotalMutated > 0 {
		return true
	}
	return response.Success && response.Directive != nil && response.Directive.Operation == domain.OpUndo
}

func scopeOf(args toolArgs) domain.ScopeKind {
	if args.Scope == "" {
		if len(args.ElementIDs) > 0 {
			return domain.ScopeSelection
		}
		if args.SlideID != "" {
			return domain.ScopeCurrentSlide
		}
	}
	return domain.ParseScopeKind(args.Scope)
}

func toolError(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func withScope(properties map[string]any) map[string]any {
	properties["scope"] = map[string]any{
		"type":        "string",
		"enum":        []string{"document", "current_slide", "selection"},
		"description": "Defaults to selection when element_ids are given, current_slide when slide_id is given, else document",
	}
	properties["slide_id"] = map[string]any{"type": "string"}
	properties["element_ids"] = map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	return properties
}
