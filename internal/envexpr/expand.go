// Package envexpr expands ${env.NAME} references in configuration text.
package envexpr

import (
	"os"
	"strings"
	"unicode"
)

const prefix = "${env."

// Expand replaces every ${env.NAME} in text with lookup(NAME). Names must be
// letters, digits or '_'; anything else leaves the prefix literal and
// scanning resumes after it. An unterminated reference is kept as is.
func Expand(text string, lookup func(string) string) string {
	if lookup == nil {
		lookup = os.Getenv
	}
	if !strings.Contains(text, prefix) {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	for {
		start := strings.Index(text, prefix)
		if start < 0 {
			b.WriteString(text)
			return b.String()
		}
		b.WriteString(text[:start])
		rest := text[start+len(prefix):]
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			b.WriteString(text[start:])
			return b.String()
		}
		name := rest[:end]
		if !validName(name) {
			b.WriteString(prefix)
			text = rest
			continue
		}
		b.WriteString(lookup(name))
		text = rest[end+1:]
	}
}

func validName(name string) bool {
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}
