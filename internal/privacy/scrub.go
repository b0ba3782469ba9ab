// Package privacy provides utilities for protecting sensitive data in
// recorded search queries.
package privacy

import (
	"regexp"
	"strings"
)

// piiPatterns contains compiled regular expressions for detecting personal
// data that should never land in the history log. Patterns aim for minimal
// false positives: a query like "teach me calculus 101" must pass through.
var piiPatterns = []*regexp.Regexp{
	// Email addresses
	regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),

	// Phone numbers (international and US/Haiti formats, 8+ digits)
	regexp.MustCompile(`\+?\d{1,3}[\s.-]?\(?\d{2,4}\)?[\s.-]?\d{3,4}[\s.-]?\d{4}`),

	// Credit-card-like digit runs (13-19 digits, optional separators)
	regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`),

	// Bearer tokens pasted into the search box
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_-]{20,}`),
}

// ContainsPII checks if the given text contains any patterns that look
// like personal data.
func ContainsPII(text string) bool {
	if text == "" {
		return false
	}

	for _, pattern := range piiPatterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// ScrubQuery replaces detected personal data with a redaction marker so
// the query can still be stored and counted.
func ScrubQuery(query string) string {
	if query == "" {
		return query
	}

	result := query
	for _, pattern := range piiPatterns {
		result = pattern.ReplaceAllString(result, "[redacted]")
	}
	return strings.TrimSpace(result)
}
