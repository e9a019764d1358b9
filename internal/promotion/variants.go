package promotion

import "strings"

// maxVariants caps the alias-search fan-out per text.
const maxVariants = 10

// separators are the characters industrial identifiers vary on:
// "FT-101A", "FT_101A", "FT 101A", and "FT101A" all name the same tag.
const separators = "-_ ."

// Normalize returns the canonical cache key for a text: upper case with
// every separator removed. All separator variants of one identifier
// collapse to the same key.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	for _, r := range strings.ToUpper(strings.TrimSpace(text)) {
		if strings.ContainsRune(separators, r) {
			continue
		}
		b.WriteRune(r)
	}

	return b.String()
}

// Variants generates the spellings to search aliases with, capped at
// maxVariants. The original text always comes first.
func Variants(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	out := make([]string, 0, maxVariants)
	seen := make(map[string]bool)

	add := func(v string) {
		if v == "" || seen[v] || len(out) >= maxVariants {
			return
		}
		seen[v] = true
		out = append(out, v)
	}

	add(trimmed)
	add(strings.ToUpper(trimmed))

	tokens := strings.FieldsFunc(trimmed, func(r rune) bool {
		return strings.ContainsRune(separators, r)
	})
	if len(tokens) < 2 {
		add(Normalize(trimmed))
		return out
	}

	upper := make([]string, len(tokens))
	for i, t := range tokens {
		upper[i] = strings.ToUpper(t)
	}

	for _, sep := range []string{"-", "_", " ", ""} {
		add(strings.Join(upper, sep))
	}

	// "FT-0101" and "FT-101" are usually the same tag.
	if stripped := stripZeros(upper); stripped != nil {
		for _, sep := range []string{"-", ""} {
			add(strings.Join(stripped, sep))
		}
	}

	return out
}

// stripZeros removes leading zeros from purely numeric tokens. Returns
// nil when no token changes.
func stripZeros(tokens []string) []string {
	out := make([]string, len(tokens))
	changed := false

	for i, t := range tokens {
		out[i] = t
		if !numeric(t) {
			continue
		}
		s := strings.TrimLeft(t, "0")
		if s == "" {
			s = "0"
		}
		if s != t {
			out[i] = s
			changed = true
		}
	}

	if !changed {
		return nil
	}
	return out
}

func numeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
