package entities

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
)

// GeneratePatterns derives match patterns from entity aliases. An alias
// like "FT-101A" yields a template capturing its shape: letter runs become
// character classes with the observed length, digit runs likewise, and
// separators are kept literally. Duplicate patterns are collapsed; aliases
// with no letter or digit content produce nothing.
func GeneratePatterns(ents []Entity) []string {
	patterns := make([]string, 0)

	for _, e := range ents {
		for _, alias := range e.Aliases {
			if p := aliasPattern(alias); p != "" && !slices.Contains(patterns, p) {
				patterns = append(patterns, p)
			}
		}
	}

	return patterns
}

// MergePatterns appends manual override patterns to the generated set,
// deduplicating by exact pattern string. Manual entries keep their position
// after generated ones so operator intent is visible in the stored cache.
func MergePatterns(generated, manual []string) []string {
	merged := slices.Clone(generated)
	for _, p := range manual {
		if p != "" && !slices.Contains(merged, p) {
			merged = append(merged, p)
		}
	}
	return merged
}

func aliasPattern(alias string) string {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return ""
	}

	var b strings.Builder
	var runLetters, runDigits int
	content := false

	flush := func() {
		if runLetters > 0 {
			fmt.Fprintf(&b, "[A-Z]{%d}", runLetters)
			runLetters = 0
		}
		if runDigits > 0 {
			fmt.Fprintf(&b, "[0-9]{%d}", runDigits)
			runDigits = 0
		}
	}

	for _, r := range alias {
		switch {
		case unicode.IsLetter(r):
			if runDigits > 0 {
				flush()
			}
			runLetters++
			content = true
		case unicode.IsDigit(r):
			if runLetters > 0 {
				flush()
			}
			runDigits++
			content = true
		default:
			flush()
			b.WriteRune(r)
		}
	}
	flush()

	if !content {
		return ""
	}
	return b.String()
}
