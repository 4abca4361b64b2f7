package intent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/alanmaizon/slidebuddy/internal/domain"
	"github.com/alanmaizon/slidebuddy/internal/translate"
)

// Strategy is one step of the heuristic cascade. Apply reports whether it
// recognised the utterance.
type Strategy struct {
	Name  string
	Apply func(utterance string) (domain.Directive, bool)
}

// Cascade is the fixed priority order used when the model gives no usable
// answer.
var Cascade = []Strategy{
	{Name: "language_name", Apply: exactLanguage},
	{Name: "translate_phrase", Apply: translatePhrase},
	{Name: "quoted_pair", Apply: quotedPair},
	{Name: "recolor_phrase", Apply: recolorPhrase},
	{Name: "replace_phrase", Apply: replacePhrase},
	{Name: "undo_keyword", Apply: undoKeyword},
	{Name: "enhance_keyword", Apply: enhanceKeyword},
	{Name: "keyword_clarification", Apply: keywordClarification},
	{Name: "generic_help", Apply: genericHelp},
}

// translateDirective resolves a language name or code; an unknown language
// yields a translate directive that asks again.
func translateDirective(raw string) domain.Directive {
	raw = strings.TrimRight(strings.TrimSpace(raw), ".!?")
	lang, ok := translate.LookupLanguage(raw)
	if !ok {
		d := domain.NewTranslate(raw, "")
		d.NeedsClarification = true
		d.ClarificationPrompt = fmt.Sprintf("I don't recognise %q as a language. Which language should I translate to?", raw)
		return d
	}
	return domain.NewTranslate(lang.Name, lang.Code)
}

var politeSuffix = regexp.MustCompile(`(?i)[\s,]*(please|thanks|thank you)?[\s.!?]*$`)

func exactLanguage(utterance string) (domain.Directive, bool) {
	cleaned := strings.TrimSpace(politeSuffix.ReplaceAllString(utterance, ""))
	lang, ok := translate.LookupLanguageName(cleaned)
	if !ok {
		return domain.Directive{}, false
	}
	return domain.NewTranslate(lang.Name, lang.Code), true
}

var translatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:to|into|in)\s+(\p{L}+)`),
	regexp.MustCompile(`(?i)\b(?:make|turn|convert|translate)\s+(?:it|this|that|everything|all(?:\s+(?:the\s+)?slides)?)\s+(\p{L}+)`),
}

func translatePhrase(utterance string) (domain.Directive, bool) {
	for _, pattern := range translatePatterns {
		for _, match := range pattern.FindAllStringSubmatch(utterance, -1) {
			if lang, ok := translate.LookupLanguageName(match[1]); ok {
				return domain.NewTranslate(lang.Name, lang.Code), true
			}
		}
	}
	return domain.Directive{}, false
}

var quotedPairPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)"([^"]+)"\s*(?:to|with|into|for|by|->|→)\s*"([^"]+)"`),
	regexp.MustCompile(`(?i)“([^”]+)”\s*(?:to|with|into|for|by|->|→)\s*“([^”]+)”`),
	regexp.MustCompile(`(?i)'([^']+)'\s*(?:to|with|into|for|by|->|→)\s*'([^']+)'`),
	regexp.MustCompile(`"([^"]+)".*?"([^"]+)"`),
	regexp.MustCompile(`“([^”]+)”.*?“([^”]+)”`),
}

func quotedPair(utterance string) (domain.Directive, bool) {
	for _, pattern := range quotedPairPatterns {
		match := pattern.FindStringSubmatch(utterance)
		if match == nil {
			continue
		}
		find, replace := strings.TrimSpace(match[1]), strings.TrimSpace(match[2])
		if find != "" && replace != "" {
			return domain.NewReplace(find, replace), true
		}
	}
	return domain.Directive{}, false
}

const replaceVerbs = `replace|swap|change|update|substitute|switch|rename`

// Quantifiers are only dropped in front of "instances of" and the like;
// "replace all hands with ..." looks for "all hands".
const (
	countedPrefix = `(?:(?:all\s+(?:the\s+)?|every\s+|each\s+)?(?:instances?|occurrences?|mentions?)\s+of\s+)?`
	loosePrefix   = `(?:all\s+(?:the\s+)?|every\s+|each\s+)?(?:(?:instances?|occurrences?|mentions?)\s+of\s+)?`
)

var (
	hasReplaceVerb  = regexp.MustCompile(`(?i)\b(?:` + replaceVerbs + `)\b`)
	replaceVerbWith = regexp.MustCompile(`(?i)\b(?:` + replaceVerbs + `)\s+` + countedPrefix + `(.+)\s+with\s+(.+?)\s*[.!?]*$`)
	replaceVerbBy   = regexp.MustCompile(`(?i)\b(?:` + replaceVerbs + `)\s+` + countedPrefix + `(.+)\s+by\s+(.+?)\s*[.!?]*$`)
	replaceFromTo   = regexp.MustCompile(`(?i)\b(?:from|of)\s+(.+?)\s+(?:to|with|into|for)\s+(.+?)\s*[.!?]*$`)
	replaceVerbTo   = regexp.MustCompile(`(?i)\b(?:` + replaceVerbs + `)\s+` + loosePrefix + `(.+?)\s+(?:for|to|into)\s+(.+?)\s*[.!?]*$`)
	trailingScope   = regexp.MustCompile(`(?i)\s+(?:on|in|across)\s+(?:this|the\s+current|current|all|every|the\s+selected)\s*(?:slides?|elements?|text|selection|deck|presentation)?$`)
)

// replacePhrase reads natural find/replace phrasing. A "with" split wins
// over "by", and both split on the last separator so the find term may
// contain either word. "with" is tried before "to" so a find term
// containing "to" survives.
func replacePhrase(utterance string) (domain.Directive, bool) {
	if !hasReplaceVerb.MatchString(utterance) {
		return domain.Directive{}, false
	}
	for _, pattern := range []*regexp.Regexp{replaceVerbWith, replaceVerbBy, replaceFromTo, replaceVerbTo} {
		match := pattern.FindStringSubmatch(utterance)
		if match == nil {
			continue
		}
		find := stripQuotes(match[1])
		replace := stripQuotes(trailingScope.ReplaceAllString(match[2], ""))
		if find != "" && replace != "" {
			return domain.NewReplace(find, replace), true
		}
	}
	return domain.Directive{}, false
}

func stripQuotes(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "\"'`“”‘’"))
}

var (
	leadingReplace = regexp.MustCompile(`(?i)^\s*(?:please\s+)?(?:replace|substitute|swap)\b`)
	recolorVerb    = regexp.MustCompile(`(?i)\b(?:make|turn|change|switch|set|paint|recolou?r|colou?r)\b`)
	colourKeyword  = regexp.MustCompile(`(?i)\b(?:colou?rs?|recolou?r(?:ed|ing)?)\b`)
	colourTarget   = regexp.MustCompile(`(?i)\b(?:text|font|words|everything|it|all)\b`)
	colourToken    = regexp.MustCompile(`#[0-9A-Fa-f]{3}(?:[0-9A-Fa-f]{3})?\b|[\p{L}\d]+`)
)

// colourTerms lists the colours named in utterance in order. Two-word names
// such as "dark blue" are tried before single words.
func colourTerms(utterance string) []string {
	words := colourToken.FindAllString(utterance, -1)
	var terms []string
	for i := 0; i < len(words); i++ {
		if i+1 < len(words) {
			if pair := words[i] + " " + words[i+1]; isColour(pair) {
				terms = append(terms, pair)
				i++
				continue
			}
		}
		if isColour(words[i]) {
			terms = append(terms, words[i])
		}
	}
	return terms
}

func isColour(term string) bool {
	_, ok := domain.ParseColor(term)
	return ok
}

// recolorPhrase reads "make the text navy" and "change red to blue". An
// utterance that starts with replace is always a text replacement.
func recolorPhrase(utterance string) (domain.Directive, bool) {
	if leadingReplace.MatchString(utterance) || !recolorVerb.MatchString(utterance) {
		return domain.Directive{}, false
	}
	terms := colourTerms(utterance)
	switch {
	case len(terms) >= 2:
		return domain.NewRecolor(terms[len(terms)-1], terms[0]), true
	case len(terms) == 1 && (colourKeyword.MatchString(utterance) || colourTarget.MatchString(utterance)):
		return domain.NewRecolor(terms[0], ""), true
	}
	return domain.Directive{}, false
}

var undoPattern = regexp.MustCompile(`(?i)^\s*(?:please\s+)?(?:undo|revert|roll\s*back)\b|\b(?:undo|revert|roll\s*back)\s+(?:that|it|this|the\s+last|my\s+last|last)\b`)

func undoKeyword(utterance string) (domain.Directive, bool) {
	if undoPattern.MatchString(utterance) {
		return domain.NewUndo(), true
	}
	return domain.Directive{}, false
}

var (
	enhanceVerb = regexp.MustCompile(`(?i)\b(?:enhance|improve|polish|rewrite|refine|punch\s+up)\b|\bmake\s+(?:(?:it|this|that|these|the|everything|all)(?:\s+\w+)?\s+)?(?:sound\s+)?(?:more|less)\b`)

	styleSynonyms = []struct {
		pattern *regexp.Regexp
		style   domain.EnhanceStyle
	}{
		{regexp.MustCompile(`(?i)\b(?:professional|formal|business(?:-like)?)\b`), domain.StyleProfessional},
		{regexp.MustCompile(`(?i)\b(?:engaging|exciting|compelling|catchy|lively)\b`), domain.StyleEngaging},
		{regexp.MustCompile(`(?i)\b(?:concise|shorter|brief|succinct|tighter|less\s+wordy)\b`), domain.StyleConcise},
		{regexp.MustCompile(`(?i)\b(?:academic|scholarly|scientific)\b`), domain.StyleAcademic},
		{regexp.MustCompile(`(?i)\b(?:creative|fun|playful|vivid)\b`), domain.StyleCreative},
	}
)

func enhanceKeyword(utterance string) (domain.Directive, bool) {
	if !enhanceVerb.MatchString(utterance) {
		return domain.Directive{}, false
	}
	for _, synonym := range styleSynonyms {
		if synonym.pattern.MatchString(utterance) {
			return domain.NewEnhance(synonym.style), true
		}
	}
	return domain.NewEnhance(domain.StyleProfessional), true
}

var (
	translateKeyword = regexp.MustCompile(`(?i)\btranslat(?:e|ion|ing)\b`)
	replaceKeyword   = regexp.MustCompile(`(?i)\b(?:replace|substitute|swap|find\s+and\s+replace)\b`)
	replaceOneTerm   = regexp.MustCompile(`(?i)\breplace\s+(?:all\s+|every\s+)?(\S+)\s*[.!?]*$`)
)

func keywordClarification(utterance string) (domain.Directive, bool) {
	if translateKeyword.MatchString(utterance) {
		return domain.NewTranslate("", ""), true
	}
	if replaceKeyword.MatchString(utterance) {
		if match := replaceOneTerm.FindStringSubmatch(utterance); match != nil {
			return domain.NewReplace(stripQuotes(match[1]), ""), true
		}
		return domain.NewReplace("", ""), true
	}
	if colourKeyword.MatchString(utterance) && recolorVerb.MatchString(utterance) {
		return domain.NewRecolor("", ""), true
	}
	return domain.Directive{}, false
}

func genericHelp(string) (domain.Directive, bool) {
	return domain.NewUnclear(domain.GenericHelp), true
}

var scopeHints = []struct {
	pattern *regexp.Regexp
	scope   domain.ScopeKind
}{
	{regexp.MustCompile(`(?i)\b(?:selected|selection|highlighted)\b`), domain.ScopeSelection},
	{regexp.MustCompile(`(?i)\b(?:this|current|the\s+current)\s+slide\b`), domain.ScopeCurrentSlide},
}

// ScopeHint reads a narrower scope out of the utterance, or "" for the
// whole document.
func ScopeHint(utterance string) domain.ScopeKind {
	for _, hint := range scopeHints {
		if hint.pattern.MatchString(utterance) {
			return hint.scope
		}
	}
	return ""
}
