package agents

import (
	"errors"
	"fmt"
	"sort"

	"github.com/alanmaizon/slidebuddy/internal/domain"
	"github.com/alanmaizon/slidebuddy/internal/engine"
	"github.com/alanmaizon/slidebuddy/internal/llm"
	"github.com/alanmaizon/slidebuddy/internal/translate"
)

var ErrMissingParams = errors.New("directive is missing parameters")

// Toolkit carries the per-request services a tool builds its plan from.
type Toolkit struct {
	Provider   llm.Provider
	Translator translate.Translator
}

// Tool turns a directive into an engine plan for one operation.
type Tool struct {
	Name        string
	Operation   domain.Operation
	Description string
	Build       func(kit Toolkit, d domain.Directive) (engine.Plan, error)
}

type Registry struct {
	tools map[domain.Operation]Tool
}

// NewRegistry returns the registry with the translate, replace, enhance and
// recolor tools.
func NewRegistry() *Registry {
	r := &Registry{tools: make(map[domain.Operation]Tool)}
	r.Register(Tool{
		Name:        "slides_translate",
		Operation:   domain.OpTranslate,
		Description: "Translate every text element in scope into the target language.",
		Build:       buildTranslate,
	})
	r.Register(Tool{
		Name:        "slides_replace",
		Operation:   domain.OpReplace,
		Description: "Replace whole-word occurrences of a term across the slides.",
		Build:       buildReplace,
	})
	r.Register(Tool{
		Name:        "slides_enhance",
		Operation:   domain.OpEnhance,
		Description: "Rewrite text in a style: professional, engaging, concise, academic or creative.",
		Build:       buildEnhance,
	})
	r.Register(Tool{
		Name:        "slides_recolor",
		Operation:   domain.OpRecolor,
		Description: "Change the text colour in scope, optionally only where text already has a given colour.",
		Build:       buildRecolor,
	})
	return r
}

func (r *Registry) Register(tool Tool) {
	r.tools[tool.Operation] = tool
}

func (r *Registry) Lookup(op domain.Operation) (Tool, bool) {
	tool, ok := r.tools[op]
	return tool, ok
}

// Tools lists registered tools by name.
func (r *Registry) Tools() []Tool {
	tools := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

func (r *Registry) Operations() []domain.Operation {
	var ops []domain.Operation
	for _, tool := range r.Tools() {
		ops = append(ops, tool.Operation)
	}
	return append(ops, domain.OpUndo)
}

func buildTranslate(kit Toolkit, d domain.Directive) (engine.Plan, error) {
	if d.Translate == nil || d.Translate.TargetLanguage == "" {
		return engine.Plan{}, fmt.Errorf("%w: target language", ErrMissingParams)
	}
	code := d.Translate.LanguageCode
	if code == "" {
		code = translate.CodeFor(d.Translate.TargetLanguage)
	}
	return engine.Plan{
		Operation: domain.OpTranslate,
		Transform: engine.TranslateTransform(kit.Translator, code),
	}, nil
}

func buildReplace(_ Toolkit, d domain.Directive) (engine.Plan, error) {
	if d.Replace == nil || d.Replace.FindText == "" {
		return engine.Plan{}, fmt.Errorf("%w: find text", ErrMissingParams)
	}
	matcher := engine.NewMatcher(d.Replace.FindText, d.Replace.MatchCase, d.Replace.Substring)
	return engine.Plan{
		Operation: domain.OpReplace,
		Transform: engine.ReplaceTransform(matcher, d.Replace.ReplaceText),
		Match:     matcher.Match,
	}, nil
}

func buildEnhance(kit Toolkit, d domain.Directive) (engine.Plan, error) {
	style := domain.StyleProfessional
	if d.Enhance != nil && d.Enhance.Style != "" {
		style = d.Enhance.Style
	}
	return engine.Plan{
		Operation: domain.OpEnhance,
		Transform: engine.EnhanceTransform(kit.Provider, style),
		Filter:    engine.Meaningful,
		Validate:  engine.ValidRewrite,
	}, nil
}

func buildRecolor(_ Toolkit, d domain.Directive) (engine.Plan, error) {
	if d.Recolor == nil || !d.Recolor.To.IsSet() {
		return engine.Plan{}, fmt.Errorf("%w: colour", ErrMissingParams)
	}
	return engine.Plan{
		Operation: domain.OpRecolor,
		Restyle:   engine.RecolorStyle(d.Recolor.From, d.Recolor.To),
	}, nil
}
