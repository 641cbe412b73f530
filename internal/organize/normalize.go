// Package organize implements the hierarchical data-organization engine:
// text normalization, path derivation, validation, sorting, batching, and
// processing metrics for the report export pipeline.
package organize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// stripMarks decomposes to NFD and removes combining marks, turning
	// "Educación" into "Educacion" and "año" into "ano".
	stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	disallowedChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	whitespaceRuns  = regexp.MustCompile(`\s+`)
	hyphenRuns      = regexp.MustCompile(`-+`)
)

// Normalize produces a filesystem-safe, accent-free, lowercase-hyphenated
// token: lowercase, strip diacritics (ñ → n), drop everything outside
// [a-z0-9\s-], collapse whitespace runs to single hyphens, collapse hyphen
// runs, and trim leading/trailing hyphens. Idempotent.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	s := strings.ToLower(text)
	if stripped, _, err := transform.String(stripMarks, s); err == nil {
		s = stripped
	}
	s = strings.ReplaceAll(s, "ñ", "n")
	s = disallowedChars.ReplaceAllString(s, "")
	s = whitespaceRuns.ReplaceAllString(s, "-")
	s = hyphenRuns.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// NormalizeStudentName normalizes each whitespace-separated name part
// independently and joins them with hyphens. Empty input falls back to
// "unknown-student" so paths never contain empty segments.
func NormalizeStudentName(name string) string {
	if name == "" {
		return "unknown-student"
	}

	var parts []string
	for _, part := range strings.Fields(name) {
		if n := Normalize(part); n != "" {
			parts = append(parts, n)
		}
	}
	if len(parts) == 0 {
		return "unknown-student"
	}
	return strings.Join(parts, "-")
}

// NormalizeSubject normalizes a subject name, falling back to
// "unknown-subject" for empty input.
func NormalizeSubject(subject string) string {
	if subject == "" {
		return "unknown-subject"
	}
	return Normalize(subject)
}

// NormalizeSede normalizes a campus name, falling back to "unknown-sede"
// for empty input.
func NormalizeSede(sede string) string {
	if sede == "" {
		return "unknown-sede"
	}
	return Normalize(sede)
}
