// Package phone holds the single canonical phone representation used for storage:
// digits only, no leading plus, no separators.
package phone

import "strings"

// Normalize strips every non-digit character.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Variants lists the spellings a phone may have been stored under before
// normalization was enforced: canonical, canonical with a leading plus, and the
// trimmed raw input. Duplicates and empties are removed.
func Variants(raw string) []string {
	canonical := Normalize(raw)
	candidates := []string{canonical, "+" + canonical, strings.TrimSpace(raw)}
	if canonical == "" {
		candidates = candidates[2:]
	}

	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
