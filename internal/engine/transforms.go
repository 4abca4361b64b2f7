package engine

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/alanmaizon/slidebuddy/internal/domain"
	"github.com/alanmaizon/slidebuddy/internal/llm"
	"github.com/alanmaizon/slidebuddy/internal/translate"
)

// TransformFunc computes the new text for one element. Returning the input
// unchanged means "leave it alone".
type TransformFunc func(ctx context.Context, text string) (string, error)

// RestyleFunc returns the new style for an element, or false when the
// element should be left alone.
type RestyleFunc func(style domain.StyleSnapshot) (domain.StyleSnapshot, bool)

// RecolorStyle sets the text colour to to. With from set, only text whose
// colour is near from changes; text with an inherited colour never matches.
func RecolorStyle(from domain.Color, to domain.Color) RestyleFunc {
	return func(style domain.StyleSnapshot) (domain.StyleSnapshot, bool) {
		if !to.IsSet() {
			return style, false
		}
		if from.IsSet() && !style.Foreground.Near(from) {
			return style, false
		}
		style.Foreground = to
		return style, true
	}
}

func TranslateTransform(translator translate.Translator, targetCode string) TransformFunc {
	return func(ctx context.Context, text string) (string, error) {
		return translator.Translate(ctx, text, targetCode)
	}
}

func ReplaceTransform(matcher Matcher, replacement string) TransformFunc {
	return func(_ context.Context, text string) (string, error) {
		return matcher.ReplaceAll(text, replacement), nil
	}
}

var styleInstructions = map[domain.EnhanceStyle]string{
	domain.StyleProfessional: "Make this text more professional and business-appropriate",
	domain.StyleEngaging:     "Make this text more engaging and compelling for the audience",
	domain.StyleConcise:      "Make this text more concise and direct",
	domain.StyleAcademic:     "Make this text more scholarly and precise",
	domain.StyleCreative:     "Make this text more creative and vivid",
}

// EnhanceTransform rewrites text through the completion provider.
func EnhanceTransform(provider llm.Provider, style domain.EnhanceStyle) TransformFunc {
	return func(ctx context.Context, text string) (string, error) {
		reply, err := provider.Complete(ctx, EnhancePrompt(text, style), enhanceTokenBudget(text))
		if err != nil {
			return "", err
		}
		reply = strings.Trim(strings.TrimSpace(reply), `"`)
		if sameIgnoringSpace(reply, text) {
			return text, nil
		}
		return reply, nil
	}
}

func EnhancePrompt(text string, style domain.EnhanceStyle) string {
	instruction, ok := styleInstructions[style]
	if !ok {
		instruction = styleInstructions[domain.StyleProfessional]
	}

	var builder strings.Builder
	builder.WriteString(instruction)
	builder.WriteString(" for a presentation slide.\n\n")
	builder.WriteString("Requirements:\n")
	builder.WriteString("- Keep roughly the original length (within 20%)\n")
	builder.WriteString("- Preserve key facts and numbers exactly\n")
	builder.WriteString("- Keep the same language as the original\n")
	builder.WriteString("- Return only the improved text, no explanations\n\n")
	builder.WriteString(llm.Quote(text))
	return builder.String()
}

func enhanceTokenBudget(text string) int {
	budget := utf8.RuneCountInString(text)
	if budget < 128 {
		budget = 128
	}
	if budget > 1024 {
		budget = 1024
	}
	return budget
}

func sameIgnoringSpace(a string, b string) bool {
	return strings.Join(strings.Fields(a), " ") == strings.Join(strings.Fields(b), " ")
}
