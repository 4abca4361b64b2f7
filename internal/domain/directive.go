package domain

import (
	"fmt"
	"strings"
)

type EnhanceStyle string

const (
	StyleProfessional EnhanceStyle = "professional"
	StyleEngaging     EnhanceStyle = "engaging"
	StyleConcise      EnhanceStyle = "concise"
	StyleAcademic     EnhanceStyle = "academic"
	StyleCreative     EnhanceStyle = "creative"
)

var EnhanceStyles = []EnhanceStyle{
	StyleProfessional,
	StyleEngaging,
	StyleConcise,
	StyleAcademic,
	StyleCreative,
}

// ParseEnhanceStyle matches a style name case-insensitively.
func ParseEnhanceStyle(raw string) (EnhanceStyle, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	for _, style := range EnhanceStyles {
		if string(style) == cleaned {
			return style, true
		}
	}
	return "", false
}

type DirectiveSource string

const (
	SourceLLM       DirectiveSource = "llm"
	SourceHeuristic DirectiveSource = "heuristic"
	SourceFallback  DirectiveSource = "fallback"
)

type TranslateParams struct {
	TargetLanguage string `json:"targetLanguage"`
	LanguageCode   string `json:"languageCode,omitempty"`
}

// ReplaceParams matches case-insensitively unless MatchCase is set.
type ReplaceParams struct {
	FindText    string `json:"findText"`
	ReplaceText string `json:"replaceText"`
	MatchCase   bool   `json:"matchCase"`
	Substring   bool   `json:"substring"`
}

type EnhanceParams struct {
	Style EnhanceStyle `json:"style"`
}

// RecolorParams sets the text colour to To. From, when named, limits the
// change to text already near that colour. The names are kept as the user
// gave them for messages and clarification.
type RecolorParams struct {
	To       Color  `json:"to"`
	ToName   string `json:"toName"`
	From     Color  `json:"from,omitempty"`
	FromName string `json:"fromName,omitempty"`
}

// Directive is the parsed intent of one user turn. Operation selects which
// of the parameter payloads is populated; build one with the New*
// constructors rather than by hand.
type Directive struct {
	Operation           Operation        `json:"operation"`
	Translate           *TranslateParams `json:"translate,omitempty"`
	Replace             *ReplaceParams   `json:"replace,omitempty"`
	Enhance             *EnhanceParams   `json:"enhance,omitempty"`
	Recolor             *RecolorParams   `json:"recolor,omitempty"`
	Scope               ScopeKind        `json:"scope"`
	NeedsClarification  bool             `json:"needsClarification"`
	ClarificationPrompt string           `json:"clarificationPrompt,omitempty"`
	Source              DirectiveSource  `json:"source"`
}

func NewTranslate(language string, code string) Directive {
	d := Directive{
		Operation: OpTranslate,
		Translate: &TranslateParams{TargetLanguage: strings.TrimSpace(language), LanguageCode: code},
		Scope:     ScopeDocument,
	}
	return d.validated()
}

func NewReplace(findText string, replaceText string) Directive {
	d := Directive{
		Operation: OpReplace,
		Replace: &ReplaceParams{
			FindText:    strings.TrimSpace(findText),
			ReplaceText: strings.TrimSpace(replaceText),
		},
		Scope: ScopeDocument,
	}
	return d.validated()
}

func NewEnhance(style EnhanceStyle) Directive {
	if style == "" {
		style = StyleProfessional
	}
	d := Directive{
		Operation: OpEnhance,
		Enhance:   &EnhanceParams{Style: style},
		Scope:     ScopeDocument,
	}
	return d.validated()
}

// NewRecolor builds a recolour directive. from may be empty, or "any", to
// recolour all text in scope.
func NewRecolor(to string, from string) Directive {
	params := &RecolorParams{ToName: strings.TrimSpace(to), FromName: strings.TrimSpace(from)}
	switch strings.ToLower(params.FromName) {
	case "any", "*", "all":
		params.FromName = ""
	}
	if color, ok := ParseColor(params.ToName); ok {
		params.To = color
	}
	if color, ok := ParseColor(params.FromName); ok {
		params.From = color
	}
	d := Directive{
		Operation: OpRecolor,
		Recolor:   params,
		Scope:     ScopeDocument,
	}
	return d.validated()
}

func NewUndo() Directive {
	return Directive{Operation: OpUndo, Scope: ScopeDocument}
}

func NewUnclear(prompt string) Directive {
	return Directive{
		Operation:           OpUnclear,
		Scope:               ScopeDocument,
		NeedsClarification:  true,
		ClarificationPrompt: prompt,
	}
}

func (d Directive) WithScope(scope ScopeKind) Directive {
	if scope != "" {
		d.Scope = scope
	}
	return d
}

func (d Directive) WithSource(source DirectiveSource) Directive {
	d.Source = source
	return d
}

// Validate reports the clarification question for missing parameters, or
// "" when the directive can run as is.
func (d Directive) Validate() string {
	switch d.Operation {
	case OpTranslate:
		if d.Translate == nil || d.Translate.TargetLanguage == "" {
			return "Which language would you like me to translate the presentation to?"
		}
	case OpReplace:
		if d.Replace == nil || d.Replace.FindText == "" {
			return "What text should I look for, and what should it be replaced with? For example: replace \"old\" with \"new\"."
		}
		if d.Replace.ReplaceText == "" {
			return fmt.Sprintf("What should I replace %q with?", d.Replace.FindText)
		}
	case OpEnhance:
		if d.Enhance == nil || d.Enhance.Style == "" {
			return "Which style should the text be enhanced in? Options: professional, engaging, concise, academic, creative."
		}
	case OpRecolor:
		if d.Recolor == nil || d.Recolor.ToName == "" {
			return "Which colour should the text become? For example: make the text navy, or change red text to #1a73e8."
		}
		if !d.Recolor.To.IsSet() {
			return fmt.Sprintf("I don't recognise %q as a colour. Try a name like navy or a hex code like #1a73e8.", d.Recolor.ToName)
		}
		if d.Recolor.FromName != "" && !d.Recolor.From.IsSet() {
			return fmt.Sprintf("I don't recognise %q as a colour. Try a name like navy or a hex code like #1a73e8.", d.Recolor.FromName)
		}
	case OpUnclear:
		if d.ClarificationPrompt == "" {
			return GenericHelp
		}
		return d.ClarificationPrompt
	}
	return ""
}

func (d Directive) validated() Directive {
	if question := d.Validate(); question != "" {
		d.NeedsClarification = true
		d.ClarificationPrompt = question
	}
	return d
}

// Mutates reports whether running the directive writes to the document.
func (d Directive) Mutates() bool {
	switch d.Operation {
	case OpTranslate, OpReplace, OpEnhance, OpRecolor:
		return !d.NeedsClarification
	default:
		return false
	}
}

// Label is the human-readable operation label stored on snapshots.
func (d Directive) Label() string {
	switch d.Operation {
	case OpTranslate:
		if d.Translate != nil {
			return "Translate " + ScopeDescriptor{Kind: d.Scope}.Describe() + " to " + d.Translate.TargetLanguage
		}
	case OpReplace:
		if d.Replace != nil {
			return fmt.Sprintf("Replace %q with %q", d.Replace.FindText, d.Replace.ReplaceText)
		}
	case OpEnhance:
		if d.Enhance != nil {
			return "Enhance " + ScopeDescriptor{Kind: d.Scope}.Describe() + " (" + string(d.Enhance.Style) + ")"
		}
	case OpRecolor:
		if d.Recolor != nil {
			if d.Recolor.FromName != "" {
				return fmt.Sprintf("Recolor %s text to %s", d.Recolor.FromName, d.Recolor.ToName)
			}
			return "Recolor " + ScopeDescriptor{Kind: d.Scope}.Describe() + " to " + d.Recolor.ToName
		}
	}
	return string(d.Operation)
}

const GenericHelp = "I can help with three things:\n" +
	"- Translate: \"translate everything to Spanish\" or just \"French\"\n" +
	"- Find & replace: replace \"old text\" with \"new text\"\n" +
	"- Enhance text: \"make the slides more engaging\" (professional, engaging, concise, academic, creative)\n" +
	"You can also change the text colour (\"make the text navy\") or say \"undo\" to revert the last change."
