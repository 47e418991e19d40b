package checks

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/stoik/phishd/internal/domain"
)

// AuthHeaderCheck inspects the server-evaluated Authentication-Results
// header for SPF/DKIM/DMARC outcomes. The header is trusted as-is -- no
// DNS-level re-verification is performed.
type AuthHeaderCheck struct{}

func NewAuthHeaderCheck() *AuthHeaderCheck { return &AuthHeaderCheck{} }

func (c *AuthHeaderCheck) Name() string { return "AuthHeaderCheck" }

var authResultPattern = map[string]*regexp.Regexp{
	"spf":   regexp.MustCompile(`\bspf=([a-z]+)`),
	"dkim":  regexp.MustCompile(`\bdkim=([a-z]+)`),
	"dmarc": regexp.MustCompile(`\bdmarc=([a-z]+)`),
}

func (c *AuthHeaderCheck) Check(_ context.Context, email *domain.ParsedEmail, _ *domain.AnalysisContext) []domain.CheckResult {
	if strings.TrimSpace(email.AuthenticationResults) == "" {
		return nil
	}
	text := strings.ToLower(email.AuthenticationResults)

	var results []domain.CheckResult
	for _, proto := range []string{"spf", "dkim", "dmarc"} {
		m := authResultPattern[proto].FindStringSubmatch(text)
		if m == nil {
			continue
		}
		status := m[1]
		switch status {
		case "pass", "neutral":
			// no result
		case "fail", "softfail":
			results = append(results, domain.CheckResult{
				CheckName: c.Name(),
				Points:    3,
				Reason:    fmt.Sprintf("%s %s — sender authentication failed", proto, status),
			})
		case "none":
			results = append(results, domain.CheckResult{
				CheckName: c.Name(),
				Points:    3,
				Reason:    fmt.Sprintf("%s not found", proto),
			})
		case "temperror", "permerror":
			results = append(results, domain.CheckResult{
				CheckName: c.Name(),
				Points:    2,
				Reason:    fmt.Sprintf("%s could not be verified", proto),
			})
		}
	}
	return results
}
