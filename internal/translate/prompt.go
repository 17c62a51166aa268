package translate

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// LanguageName returns the English name of a BCP 47 code, or the input
// unchanged when it does not parse.
func LanguageName(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}

// BuildPrompt renders the per-segment translation instruction. An empty or
// "auto" source lets the model detect the language.
func BuildPrompt(text, source, target string) string {
	from := ""
	if s := strings.TrimSpace(source); s != "" && !strings.EqualFold(s, "auto") {
		from = " from " + LanguageName(s)
	}
	return fmt.Sprintf(
		"Translate the following text%s to %s.\nKeep the same style and tone. Return only the translation without explanations:\n\n\"%s\"",
		from, LanguageName(target), text,
	)
}

const quoteChars = "\"'“”‘’„«»"

// CleanQuotes strips surrounding whitespace and quote characters that
// models tend to wrap their answer in.
func CleanQuotes(s string) string {
	for {
		trimmed := strings.TrimSpace(s)
		trimmed = strings.Trim(trimmed, quoteChars)
		if trimmed == s {
			return s
		}
		s = trimmed
	}
}
