package arr

import (
	"regexp"
	"strings"
)

var (
	punctuationRegex   = regexp.MustCompile(`[^\w\s]`)
	multipleSpaceRegex = regexp.MustCompile(`\s+`)
	imdbPaddingRegex   = regexp.MustCompile(`^tt0*`)
)

// NormalizeTitle prepares a title for comparison: lowercase, punctuation
// replaced with spaces, runs of whitespace collapsed.
func NormalizeTitle(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = punctuationRegex.ReplaceAllString(s, " ")
	s = multipleSpaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// TitlesMatch compares two normalized titles. Equality or a substring in
// either direction counts, so "Afro Samurai Resurrection" matches
// "Afro Samurai Resurrection 2009" and vice versa. Short generic names can
// match unintended titles; that looseness is accepted behaviour.
func TitlesMatch(want, got string) bool {
	if want == "" || got == "" {
		return false
	}
	if want == got {
		return true
	}
	return strings.Contains(got, want) || strings.Contains(want, got)
}

// NormalizeIMDB prepares an IMDB id for comparison, dropping zero padding so
// tt123 and tt0123 compare equal.
func NormalizeIMDB(id string) string {
	s := strings.ToLower(strings.TrimSpace(id))
	if s == "" || !strings.HasPrefix(s, "tt") {
		return s
	}
	digits := imdbPaddingRegex.ReplaceAllString(s, "")
	if digits == "" {
		return s
	}
	return "tt" + digits
}
