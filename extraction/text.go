package extraction

import (
	"strings"
	"unicode"

	"github.com/poiesic/jobstream/core"
)

// NormalizeText prepares raw input for a prompt: control characters other than line
// breaks and tabs are removed, whitespace within a line is collapsed and blank lines are
// dropped. Line structure is kept because postings use it to separate sections.
func NormalizeText(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == '\r':
			return '\n'
		case unicode.IsControl(r), r == unicode.ReplacementChar, r == '\u200b', r == '\ufeff':
			return -1
		}
		return r
	}, raw)

	var lines []string
	for _, line := range strings.Split(cleaned, "\n") {
		if line = core.CollapseSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// truncateRunes cuts s to at most limit runes. A limit of zero disables the cut.
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
