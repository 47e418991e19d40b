package checks

import (
	"context"
	"time"

	"github.com/stoik/phishd/internal/domain"
	"github.com/stoik/phishd/internal/htmlparse"
	"github.com/stoik/phishd/internal/ports"
)

// Analyzer runs the fixed seven-check pipeline over a ParsedEmail and
// aggregates a scored Verdict: construct once, run the fixed check list,
// sum each check's points, with an allowlist short-circuit that skips the
// pipeline entirely.
type Analyzer struct {
	checks    []PhishingCheck
	allowlist ports.AllowlistStore
}

// NewAnalyzer wires the seven standard checks, injecting the stores each
// one needs.
func NewAnalyzer(
	allowlist ports.AllowlistStore,
	blacklist ports.BlacklistStore,
	trustedLinkDomains ports.TrustedLinkDomainStore,
	campaigns ports.SafeonwebCampaignStore,
) *Analyzer {
	return &Analyzer{
		allowlist: allowlist,
		checks: []PhishingCheck{
			NewAuthHeaderCheck(),
			NewReturnPathCheck(),
			NewBlacklistCheck(blacklist),
			NewLinkMismatchCheck(trustedLinkDomains),
			NewIPURLCheck(),
			NewSuspiciousTLDCheck(),
			NewBrandImpersonationCheck(campaigns),
		},
	}
}

// Analyze builds the AnalysisContext once and runs every check in order,
// unless the sender's domain is allowlisted, in which case it returns a
// zero-score verdict without running any check. imapUID may be nil when the
// message's UID is not known.
func (a *Analyzer) Analyze(ctx context.Context, email *domain.ParsedEmail, now time.Time, imapUID *uint32) domain.Verdict {
	if a.allowlist != nil {
		if allowed, err := a.allowlist.Contains(ctx, email.FromDomain); err == nil && allowed {
			none := domain.ActionNone
			return domain.Verdict{
				MessageID:    email.MessageID,
				Score:        0,
				Timestamp:    now,
				ActionTaken:  &none,
				From:         email.From,
				Subject:      email.Subject,
				ReceivedDate: email.ReceivedDate,
				IMAPUID:      imapUID,
			}
		}
	}

	links := htmlparse.ExtractLinks(email.HTMLBody)
	actx := domain.NewAnalysisContext(links)

	var reasons []domain.CheckResult
	for _, check := range a.checks {
		reasons = append(reasons, check.Check(ctx, email, actx)...)
	}

	v := domain.NewVerdict(email.MessageID, reasons, now, email.From, email.Subject, email.ReceivedDate, imapUID)
	return v
}
