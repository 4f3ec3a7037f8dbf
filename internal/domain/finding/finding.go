// Package finding extracts short key-finding phrases from assessment text.
package finding

import (
	"regexp"
	"strings"
)

// Extraction limits.
const (
	MaxFindings = 5
	minLength   = 10
	maxLength   = 200
)

// Patterns are evaluated in order; earlier patterns win when the cap is reached.
var patterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)key findings?\s*[:\-]?\s*([^.!?]+)`),
	regexp.MustCompile(`(?i)important\s*[:\-]?\s*([^.!?]+)`),
	regexp.MustCompile(`(?i)critical\s*[:\-]?\s*([^.!?]+)`),
	regexp.MustCompile(`(?i)recommendations?\s*[:\-]?\s*([^.!?]+)`),
	regexp.MustCompile(`(?i)issues?\s*[:\-]?\s*([^.!?]+)`),
}

// Extract returns up to MaxFindings distinct phrases whose trimmed length is
// strictly between 10 and 200 characters.
func Extract(text string) []string {
	if text == "" {
		return nil
	}

	var out []string
	seen := make(map[string]struct{})
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			phrase := strings.Join(strings.Fields(m[1]), " ")
			n := len([]rune(phrase))
			if n <= minLength || n >= maxLength {
				continue
			}
			key := strings.ToLower(phrase)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, phrase)
			if len(out) == MaxFindings {
				return out
			}
		}
	}
	return out
}
