package checks

import (
	"context"
	"fmt"
	"regexp"

	"github.com/stoik/phishd/internal/domain"
)

var ipURLRe = regexp.MustCompile(`https?://(?:\d{1,3}\.){3}\d{1,3}(?:[/:][^\s"'<>]*)?`)

const maxIPURLDisplayLen = 60

// IPURLCheck flags literal IP-address URLs, a hallmark of links that bypass
// domain reputation entirely.
type IPURLCheck struct{}

func NewIPURLCheck() *IPURLCheck { return &IPURLCheck{} }

func (c *IPURLCheck) Name() string { return "IPURLCheck" }

func (c *IPURLCheck) Check(_ context.Context, email *domain.ParsedEmail, actx *domain.AnalysisContext) []domain.CheckResult {
	var found []string
	seen := make(map[string]struct{})
	add := func(u string) {
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		found = append(found, u)
	}

	for _, link := range actx.Links {
		for _, m := range ipURLRe.FindAllString(link.Href, -1) {
			add(m)
		}
	}

	if len(found) == 0 {
		for _, m := range ipURLRe.FindAllString(email.TextBody, -1) {
			add(m)
		}
	}

	if len(found) == 0 {
		return nil
	}

	var results []domain.CheckResult
	for _, u := range found {
		display := u
		if len(display) > maxIPURLDisplayLen {
			display = display[:maxIPURLDisplayLen] + "…"
		}
		results = append(results, domain.CheckResult{
			CheckName: c.Name(),
			Points:    4,
			Reason:    fmt.Sprintf("Link to raw IP address: %s", display),
		})
	}
	return results
}
