package checks

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/stoik/phishd/internal/domain"
	"github.com/stoik/phishd/internal/ports"
)

var wordRe = regexp.MustCompile(`[a-zA-Z]{3,}`)

// BrandImpersonationCheck flags a display name that reads like a brand
// (e.g. "ARGENTA") while the sender's actual domain and local part share no
// word with it -- personal addresses like "John Smith <john.smith@gmail.com>"
// are explicitly exempted.
type BrandImpersonationCheck struct {
	campaigns ports.SafeonwebCampaignStore
}

func NewBrandImpersonationCheck(campaigns ports.SafeonwebCampaignStore) *BrandImpersonationCheck {
	return &BrandImpersonationCheck{campaigns: campaigns}
}

func (c *BrandImpersonationCheck) Name() string { return "BrandImpersonationCheck" }

func (c *BrandImpersonationCheck) Check(ctx context.Context, email *domain.ParsedEmail, actx *domain.AnalysisContext) []domain.CheckResult {
	name := domain.DisplayName(email.From)
	if name == "" {
		return nil
	}

	words := uniqueLowerWords(name)
	if len(words) == 0 {
		return nil
	}

	for _, w := range words {
		if email.FromDomain != "" && strings.Contains(email.FromDomain, w) {
			return nil
		}
	}

	local := domain.LocalPart(domain.SenderEmail(email.From))
	localLower := strings.ToLower(local)
	for _, w := range words {
		if strings.Contains(localLower, w) {
			return nil
		}
	}

	results := []domain.CheckResult{{
		CheckName: c.Name(),
		Points:    3,
		Reason:    fmt.Sprintf("Display name %s does not match sender domain %s", name, email.FromDomain),
	}}

	if len(actx.Links) > 0 && !anyLinkDomainContainsWord(actx, words) {
		results = append(results, domain.CheckResult{
			CheckName: c.Name(),
			Points:    2,
			Reason:    fmt.Sprintf("No links point to %s", name),
		})
	}

	if c.campaigns != nil {
		for _, w := range words {
			active, err := c.campaigns.IsActiveCampaignBrand(ctx, w)
			if err == nil && active {
				results = append(results, domain.CheckResult{
					CheckName: c.Name(),
					Points:    2,
					Reason:    fmt.Sprintf("Active Safeonweb phishing campaign targets %s", name),
				})
				break
			}
		}
	}

	return results
}

func uniqueLowerWords(s string) []string {
	matches := wordRe.FindAllString(s, -1)
	seen := make(map[string]struct{}, len(matches))
	var words []string
	for _, m := range matches {
		w := strings.ToLower(m)
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		words = append(words, w)
	}
	return words
}

func anyLinkDomainContainsWord(actx *domain.AnalysisContext, words []string) bool {
	for d := range actx.LinkDomains {
		for _, w := range words {
			if strings.Contains(d, w) {
				return true
			}
		}
	}
	return false
}
