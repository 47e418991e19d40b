package checks

import (
	"context"
	"fmt"

	"github.com/stoik/phishd/internal/domain"
)

// ReturnPathCheck flags a mismatch between the registrable sender domain
// and the registrable envelope-sender (Return-Path) domain. Subdomain
// matches within the same registrable domain are not suspicious.
type ReturnPathCheck struct{}

func NewReturnPathCheck() *ReturnPathCheck { return &ReturnPathCheck{} }

func (c *ReturnPathCheck) Name() string { return "ReturnPathCheck" }

func (c *ReturnPathCheck) Check(_ context.Context, email *domain.ParsedEmail, _ *domain.AnalysisContext) []domain.CheckResult {
	if email.ReturnPathDomain == "" || email.FromDomain == "" {
		return nil
	}

	fromBase := domain.BaseDomain(email.FromDomain)
	rpBase := domain.BaseDomain(email.ReturnPathDomain)
	if fromBase == rpBase {
		return nil
	}

	return []domain.CheckResult{{
		CheckName: c.Name(),
		Points:    3,
		Reason:    fmt.Sprintf("Return-Path domain %s does not match sender domain %s", rpBase, fromBase),
	}}
}
