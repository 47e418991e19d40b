package checks

import (
	"context"
	"fmt"
	"strings"

	"github.com/stoik/phishd/internal/domain"
)

var suspiciousTLDs = map[string]bool{
	"tk": true, "ml": true, "ga": true, "cf": true, "gq": true,
	"xyz": true, "top": true, "club": true, "work": true, "buzz": true,
	"surf": true, "rest": true, "icu": true, "cam": true, "fit": true,
	"bid": true, "loan": true,
}

// SuspiciousTLDCheck flags sender or link domains registered under TLDs
// disproportionately used for throwaway phishing infrastructure.
type SuspiciousTLDCheck struct{}

func NewSuspiciousTLDCheck() *SuspiciousTLDCheck { return &SuspiciousTLDCheck{} }

func (c *SuspiciousTLDCheck) Name() string { return "SuspiciousTLDCheck" }

func tld(d string) string {
	parts := strings.Split(d, ".")
	return parts[len(parts)-1]
}

func (c *SuspiciousTLDCheck) Check(_ context.Context, email *domain.ParsedEmail, actx *domain.AnalysisContext) []domain.CheckResult {
	var results []domain.CheckResult

	// "Sender domain" covers both the From domain and the envelope
	// Return-Path domain: a throwaway-TLD bounce address is as much a
	// sender-side signal as the From header itself.
	senderDomains := make(map[string]struct{}, 2)
	if email.FromDomain != "" {
		senderDomains[strings.ToLower(email.FromDomain)] = struct{}{}
	}
	if email.ReturnPathDomain != "" {
		senderDomains[strings.ToLower(email.ReturnPathDomain)] = struct{}{}
	}
	for d := range senderDomains {
		if suspiciousTLDs[tld(d)] {
			results = append(results, domain.CheckResult{
				CheckName: c.Name(),
				Points:    2,
				Reason:    fmt.Sprintf("Domain %s uses suspicious TLD (in sender domain)", d),
			})
		}
	}

	seen := make(map[string]struct{})
	for d := range actx.LinkDomains {
		lower := strings.ToLower(d)
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		if suspiciousTLDs[tld(lower)] {
			results = append(results, domain.CheckResult{
				CheckName: c.Name(),
				Points:    2,
				Reason:    fmt.Sprintf("Domain %s uses suspicious TLD (in link domain)", lower),
			})
		}
	}

	return results
}
