package translate

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

type Language struct {
	Name   string
	Native string
	Code   string
}

// Languages lists the languages offered by name. Anything else is still
// reachable through a BCP-47 code.
var Languages = []Language{
	{Name: "English", Native: "English", Code: "en"},
	{Name: "Spanish", Native: "Español", Code: "es"},
	{Name: "French", Native: "Français", Code: "fr"},
	{Name: "German", Native: "Deutsch", Code: "de"},
	{Name: "Italian", Native: "Italiano", Code: "it"},
	{Name: "Portuguese", Native: "Português", Code: "pt"},
	{Name: "Chinese", Native: "中文", Code: "zh"},
	{Name: "Japanese", Native: "日本語", Code: "ja"},
	{Name: "Korean", Native: "한국어", Code: "ko"},
	{Name: "Russian", Native: "Русский", Code: "ru"},
	{Name: "Arabic", Native: "العربية", Code: "ar"},
	{Name: "Hindi", Native: "हिन्दी", Code: "hi"},
	{Name: "Dutch", Native: "Nederlands", Code: "nl"},
	{Name: "Swedish", Native: "Svenska", Code: "sv"},
	{Name: "Norwegian", Native: "Norsk", Code: "no"},
	{Name: "Danish", Native: "Dansk", Code: "da"},
	{Name: "Polish", Native: "Polski", Code: "pl"},
}

// LookupLanguageName matches English or native names only, case-insensitively.
func LookupLanguageName(s string) (Language, bool) {
	needle := strings.ToLower(strings.TrimSpace(s))
	if needle == "" {
		return Language{}, false
	}
	for _, lang := range Languages {
		if needle == strings.ToLower(lang.Name) || needle == strings.ToLower(lang.Native) {
			return lang, true
		}
	}
	return Language{}, false
}

// LookupLanguage resolves a name, a native name or a language code. Codes
// outside the table are resolved through BCP-47 so "pt-BR" or "fi" work.
func LookupLanguage(s string) (Language, bool) {
	if lang, ok := LookupLanguageName(s); ok {
		return lang, true
	}

	raw := strings.TrimSpace(s)
	if !looksLikeCode(raw) {
		return Language{}, false
	}

	tag, err := language.Parse(strings.ReplaceAll(raw, "_", "-"))
	if err != nil {
		return Language{}, false
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return Language{}, false
	}

	for _, lang := range Languages {
		if lang.Code == base.String() {
			return lang, true
		}
	}

	baseTag := language.Make(base.String())
	name := display.English.Languages().Name(baseTag)
	if name == "" {
		return Language{}, false
	}
	native := display.Self.Name(baseTag)
	if native == "" {
		native = name
	}
	return Language{Name: name, Native: native, Code: base.String()}, true
}

// CodeFor returns the code to send to a translation backend.
func CodeFor(nameOrCode string) string {
	if lang, ok := LookupLanguage(nameOrCode); ok {
		return lang.Code
	}
	return strings.ToLower(strings.TrimSpace(nameOrCode))
}

func looksLikeCode(s string) bool {
	if len(s) < 2 || len(s) > 12 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
