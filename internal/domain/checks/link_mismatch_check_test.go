package checks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stoik/phishd/internal/domain"
	"github.com/stoik/phishd/internal/htmlparse"
)

func runLinkMismatch(t *testing.T, email *domain.ParsedEmail, trusted ...string) []domain.CheckResult {
	t.Helper()
	check := NewLinkMismatchCheck(newFakeDomainSet(trusted...))
	actx := domain.NewAnalysisContext(htmlparse.ExtractLinks(email.HTMLBody))
	return check.Check(context.Background(), email, actx)
}

func TestLinkMismatchCheck(t *testing.T) {
	tests := []struct {
		name        string
		from        string
		fromDomain  string
		htmlBody    string
		trusted     []string
		expectHits  int
	}{
		{
			name:       "display text names a different domain than href",
			fromDomain: "example.com",
			htmlBody:   `<a href="https://evil-site.com/login">https://paypal.com/verify</a>`,
			expectHits: 1,
		},
		{
			name:       "same base domain does not trigger",
			fromDomain: "example.com",
			htmlBody:   `<a href="https://www.paypal.com/x">https://paypal.com/verify</a>`,
			expectHits: 0,
		},
		{
			name:       "subdomain of href matches display base",
			fromDomain: "example.com",
			htmlBody:   `<a href="https://track.newsletter.co.uk/c">newsletter.co.uk</a>`,
			expectHits: 0,
		},
		{
			name:       "display text that is not URL-shaped is ignored",
			fromDomain: "example.com",
			htmlBody:   `<a href="https://evil-site.com/login">Click here to verify</a>`,
			expectHits: 0,
		},
		{
			name:       "esp tracking domain suppresses the mismatch",
			fromDomain: "example.com",
			htmlBody:   `<a href="https://list-manage.com/track?u=1">https://example.org/offer</a>`,
			expectHits: 0,
		},
		{
			name:       "google link wrapper suppresses the mismatch",
			fromDomain: "example.com",
			htmlBody:   `<a href="https://goo.gl/abc">https://example.org/x</a>`,
			expectHits: 0,
		},
		{
			name:       "trusted link domain suppresses the mismatch",
			fromDomain: "example.com",
			htmlBody:   `<a href="https://cdn.partner.net/go">https://example.org/x</a>`,
			trusted:    []string{"partner.net"},
			expectHits: 0,
		},
		{
			name:       "href matching the sender base domain suppresses",
			fromDomain: "shop.example.com",
			htmlBody:   `<a href="https://example.com/track">https://other-brand.com</a>`,
			expectHits: 0,
		},
		{
			name:       "quoted-printable 3D artifact is stripped before host extraction",
			fromDomain: "example.com",
			htmlBody:   `<a href="3Dhttps://evil-site.com/x">https://paypal.com/verify</a>`,
			expectHits: 1,
		},
		{
			name:       "malformed href host with underscore label is skipped",
			fromDomain: "example.com",
			htmlBody:   `<a href="https://bad_host.evil.com/x">https://paypal.com/verify</a>`,
			expectHits: 0,
		},
		{
			name:       "schemeless display text still yields a host",
			fromDomain: "example.com",
			htmlBody:   `<a href="https://evil-site.com/x">paypal.com/verify</a>`,
			expectHits: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email := &domain.ParsedEmail{
				From:       tt.from,
				FromDomain: tt.fromDomain,
				HTMLBody:   tt.htmlBody,
			}
			results := runLinkMismatch(t, email, tt.trusted...)
			assert.Len(t, results, tt.expectHits)
			for _, r := range results {
				assert.Equal(t, 4, r.Points)
			}
		})
	}
}
