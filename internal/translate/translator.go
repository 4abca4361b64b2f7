package translate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/alanmaizon/slidebuddy/internal/llm"
	"github.com/alanmaizon/slidebuddy/internal/middleware"
)

var (
	ErrEmptyText   = errors.New("translate: empty text")
	ErrNoTarget    = errors.New("translate: target language not specified")
	ErrUnavailable = errors.New("translate: service unavailable")
	ErrEmptyResult = errors.New("translate: service returned empty result")
)

// Completion budget for prompt-based translation. Short text gets the
// floor; longer text gets two tokens per input rune up to the ceiling.
const (
	LLMMinTokens = 200
	LLMMaxTokens = 4096
)

// TokenBudget sizes the completion for text so long elements are not cut
// off mid-sentence.
func TokenBudget(text string) int {
	budget := 2 * utf8.RuneCountInString(text)
	if budget < LLMMinTokens {
		budget = LLMMinTokens
	}
	if budget > LLMMaxTokens {
		budget = LLMMaxTokens
	}
	return budget
}

type Translator interface {
	Name() string
	Translate(ctx context.Context, text string, targetCode string) (string, error)
}

func validateInput(text string, targetCode string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	if strings.TrimSpace(targetCode) == "" {
		return ErrNoTarget
	}
	return nil
}

// LLMTranslator routes text through the completion provider with an explicit
// translation prompt.
type LLMTranslator struct {
	provider llm.Provider
}

func NewLLMTranslator(provider llm.Provider) *LLMTranslator {
	return &LLMTranslator{provider: provider}
}

func (t *LLMTranslator) Name() string {
	return "llm"
}

func (t *LLMTranslator) Translate(ctx context.Context, text string, targetCode string) (string, error) {
	if err := validateInput(text, targetCode); err != nil {
		return "", err
	}
	reply, err := t.provider.Complete(ctx, BuildPrompt(text, targetCode), TokenBudget(text))
	if err != nil {
		return "", err
	}
	reply = cleanReply(reply)
	if reply == "" {
		return "", ErrEmptyResult
	}
	return reply, nil
}

// BuildPrompt asks for the translation and nothing else.
func BuildPrompt(text string, targetCode string) string {
	name := targetCode
	if lang, ok := LookupLanguage(targetCode); ok {
		name = fmt.Sprintf("%s (%s)", lang.Name, lang.Code)
	}

	var builder strings.Builder
	builder.WriteString("Translate the presentation text below to ")
	builder.WriteString(name)
	builder.WriteString(".\n\n")
	builder.WriteString("Requirements:\n")
	builder.WriteString("- Maintain a professional presentation tone\n")
	builder.WriteString("- Preserve line breaks and list structure\n")
	builder.WriteString("- Use natural, contextually appropriate language\n\n")
	builder.WriteString("Provide ONLY the translated text without explanations.\n\n")
	builder.WriteString(llm.Quote(text))
	return builder.String()
}

func cleanReply(reply string) string {
	reply = strings.TrimSpace(reply)
	if len(reply) >= 2 && strings.HasPrefix(reply, `"`) && strings.HasSuffix(reply, `"`) {
		reply = strings.TrimSpace(reply[1 : len(reply)-1])
	}
	return reply
}

// FallbackTranslator tries Primary and falls back on error or empty output.
type FallbackTranslator struct {
	Primary  Translator
	Fallback Translator
}

func (f *FallbackTranslator) Name() string {
	switch {
	case f.Primary == nil && f.Fallback == nil:
		return "none"
	case f.Primary == nil:
		return f.Fallback.Name()
	case f.Fallback == nil:
		return f.Primary.Name()
	default:
		return f.Primary.Name() + "+" + f.Fallback.Name()
	}
}

func (f *FallbackTranslator) Translate(ctx context.Context, text string, targetCode string) (string, error) {
	if err := validateInput(text, targetCode); err != nil {
		return "", err
	}

	var primaryErr error
	if f.Primary != nil {
		result, err := f.Primary.Translate(ctx, text, targetCode)
		if err == nil && strings.TrimSpace(result) != "" {
			return result, nil
		}
		if err == nil {
			err = ErrEmptyResult
		}
		primaryErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Printf(
			"request_id=%s component=translate translator=%s event=fallback target=%s error=%q",
			middleware.RequestIDFromContext(ctx),
			f.Primary.Name(),
			targetCode,
			err.Error(),
		)
	}

	if f.Fallback == nil {
		if primaryErr == nil {
			primaryErr = ErrUnavailable
		}
		return "", primaryErr
	}

	result, err := f.Fallback.Translate(ctx, text, targetCode)
	if err != nil {
		if primaryErr != nil {
			return "", fmt.Errorf("%w (primary: %v)", err, primaryErr)
		}
		return "", err
	}
	return result, nil
}
