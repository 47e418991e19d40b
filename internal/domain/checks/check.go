// Package checks implements the seven PhishingCheck heuristics and the
// Analyzer that runs them in a fixed order, aggregating a point-sum
// phishing score over a single mailbox's messages.
package checks

import (
	"context"
	"strings"
	"unicode"

	"github.com/stoik/phishd/internal/domain"
)

// PhishingCheck is one heuristic in the analysis pipeline. A check that
// encounters an internal error returns an empty (possibly nil) result slice
// rather than propagating the error -- a single bad check must never fail
// the whole analysis.
type PhishingCheck interface {
	Name() string
	Check(ctx context.Context, email *domain.ParsedEmail, actx *domain.AnalysisContext) []domain.CheckResult
}

// looksLikeURL reports whether displayText of a link resembles a URL: it
// either starts with an http(s) scheme, or contains a '.' with no
// whitespace and is longer than 4 characters.
func looksLikeURL(s string) bool {
	if len(s) <= 4 {
		return false
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return true
	}
	return strings.Contains(s, ".") && !containsWhitespace(s)
}

func containsWhitespace(s string) bool {
	return strings.IndexFunc(s, unicode.IsSpace) != -1
}
