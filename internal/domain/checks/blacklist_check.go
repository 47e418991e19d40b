package checks

import (
	"context"
	"fmt"

	"github.com/stoik/phishd/internal/domain"
	"github.com/stoik/phishd/internal/ports"
)

// BlacklistCheck flags any domain among {fromDomain, returnPathDomain,
// linkDomains} that appears in the blacklist store.
type BlacklistCheck struct {
	blacklist ports.BlacklistStore
}

func NewBlacklistCheck(blacklist ports.BlacklistStore) *BlacklistCheck {
	return &BlacklistCheck{blacklist: blacklist}
}

func (c *BlacklistCheck) Name() string { return "BlacklistCheck" }

func (c *BlacklistCheck) Check(ctx context.Context, email *domain.ParsedEmail, actx *domain.AnalysisContext) []domain.CheckResult {
	if c.blacklist == nil {
		return nil
	}

	seen := make(map[string]struct{})
	var candidates []string
	add := func(d string) {
		if d == "" {
			return
		}
		if _, ok := seen[d]; ok {
			return
		}
		seen[d] = struct{}{}
		candidates = append(candidates, d)
	}

	add(email.FromDomain)
	add(email.ReturnPathDomain)
	for d := range actx.LinkDomains {
		add(d)
	}

	if len(candidates) == 0 {
		return nil
	}

	hits, err := c.blacklist.CheckDomains(ctx, candidates)
	if err != nil {
		return nil
	}

	var results []domain.CheckResult
	for _, d := range candidates {
		if hits[d] {
			results = append(results, domain.CheckResult{
				CheckName: c.Name(),
				Points:    5,
				Reason:    fmt.Sprintf("Domain %s found in phishing blacklist", d),
			})
		}
	}
	return results
}
