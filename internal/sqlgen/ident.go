package sqlgen

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultMaxIdentifier is the identifier cap used when Options leaves it
// unset. It matches MySQL's limit; Postgres allows one byte less, so
// callers targeting it strictly may pass 63.
const DefaultMaxIdentifier = 64

// Sanitize turns an arbitrary table or column label into a bare SQL
// identifier: accents are folded ("Café" -> "cafe"), characters other than
// letters, digits, underscores and spaces are removed, spaces become
// underscores, and the result is lowercased and cut to limit bytes on a rune
// boundary. limit <= 0 means DefaultMaxIdentifier.
//
// The result may be empty when the label has no word characters.
func Sanitize(name string, limit int) string {
	if limit <= 0 {
		limit = DefaultMaxIdentifier
	}
	s := strings.TrimSpace(name)
	if s == "" {
		return ""
	}
	if folded, _, err := transform.String(foldMarks(), s); err == nil {
		s = folded
	}
	s = cases.Lower(language.Und).String(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte('_')
		}
	}
	return truncate(b.String(), limit)
}

// foldMarks decomposes and drops combining marks. Chains carry state, so
// each call gets its own.
func foldMarks() transform.Transformer {
	return transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Quote wraps a sanitized identifier in the dialect's delimiters.
func (d Dialect) Quote(id string) string {
	switch d {
	case MySQL:
		return "`" + strings.ReplaceAll(id, "`", "``") + "`"
	case SQLServer:
		return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
	default:
		return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
	}
}
