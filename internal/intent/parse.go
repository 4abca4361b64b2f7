package intent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alanmaizon/slidebuddy/internal/domain"
)

const (
	tagTranslate = "EXECUTE_TRANSLATE"
	tagReplace   = "EXECUTE_REPLACE"
	tagEnhance   = "EXECUTE_ENHANCE"
	tagRecolor   = "EXECUTE_RECOLOR"
	tagUndo      = "EXECUTE_UNDO"
	tagPrefix    = "EXECUTE_"
)

var (
	ErrNoTag  = errors.New("reply carries no execution tag")
	ErrBadTag = errors.New("malformed execution tag")
)

// ParseReply maps a tagged model reply onto a directive. Fields are
// positional and fixed per operation:
//
//	EXECUTE_TRANSLATE|<language>[|<scope>]
//	EXECUTE_REPLACE|<find>|<replace>[|<scope>]
//	EXECUTE_ENHANCE|<style>[|<scope>]
//	EXECUTE_RECOLOR|<old colour or any>|<new colour>[|<scope>]
//	EXECUTE_UNDO
func ParseReply(reply string) (domain.Directive, error) {
	start := strings.Index(reply, tagPrefix)
	if start < 0 {
		return domain.Directive{}, ErrNoTag
	}
	line := reply[start:]
	if end := strings.IndexAny(line, "\r\n"); end >= 0 {
		line = line[:end]
	}

	fields := strings.Split(line, "|")
	for i := range fields {
		fields[i] = cleanField(fields[i])
	}
	field := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}
	scope := func(i int) domain.ScopeKind {
		if raw := field(i); raw != "" {
			return domain.ParseScopeKind(strings.ToLower(raw))
		}
		return ""
	}

	switch fields[0] {
	case tagTranslate:
		if field(1) == "" {
			return domain.Directive{}, fmt.Errorf("%w: translate needs a language", ErrBadTag)
		}
		return translateDirective(field(1)).WithScope(scope(2)), nil
	case tagReplace:
		if len(fields) < 3 || field(1) == "" {
			return domain.Directive{}, fmt.Errorf("%w: replace needs find and replace fields", ErrBadTag)
		}
		return domain.NewReplace(field(1), field(2)).WithScope(scope(3)), nil
	case tagEnhance:
		style := domain.StyleProfessional
		if raw := field(1); raw != "" {
			parsed, ok := domain.ParseEnhanceStyle(raw)
			if !ok {
				return domain.Directive{}, fmt.Errorf("%w: unknown style %q", ErrBadTag, raw)
			}
			style = parsed
		}
		return domain.NewEnhance(style).WithScope(scope(2)), nil
	case tagRecolor:
		if len(fields) < 3 || field(2) == "" {
			return domain.Directive{}, fmt.Errorf("%w: recolor needs old and new colour fields", ErrBadTag)
		}
		return domain.NewRecolor(field(2), field(1)).WithScope(scope(3)), nil
	case tagUndo:
		return domain.NewUndo(), nil
	default:
		return domain.Directive{}, fmt.Errorf("%w: unknown tag %q", ErrBadTag, fields[0])
	}
}

func cleanField(raw string) string {
	return strings.Trim(strings.TrimSpace(raw), "\"'`“”‘’[]")
}
