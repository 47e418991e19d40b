package checks

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/stoik/phishd/internal/domain"
	"github.com/stoik/phishd/internal/ports"
)

// espTrackingDomains are click-tracking domains operated by email service
// providers and transport-security gateways. A link whose href rewrites
// through one of these is structural, not malicious, so LinkMismatchCheck
// suppresses it even when the href and display text disagree.
var espTrackingDomains = map[string]bool{
	// Mailchimp
	"list-manage.com": true,
	"mailchimp.com":   true,
	// Mailjet
	"mailjet.com": true,
	// SendGrid
	"sendgrid.net": true,
	"sendgrid.com": true,
	// Mandrill
	"mandrillapp.com": true,
	// Mailgun
	"mailgun.org": true,
	"mailgun.net": true,
	// MailerLite
	"mailerlite.com": true,
	// Campaign Monitor
	"createsend.com": true,
	"cmail20.com":    true,
	// Constant Contact
	"constantcontact.com": true,
	"ctctcdn.com":         true,
	// HubSpot
	"hubspotemail.net": true,
	"hs-sites.com":     true,
	// Brevo (formerly Sendinblue)
	"brevo.com":     true,
	"sendinblue.com": true,
	// Amazon SES
	"amazonses.com": true,
	// Microsoft Safe Links
	"safelinks.protection.outlook.com": true,
	// Google link wrappers/shorteners
	"google.com": true,
	"goo.gl":     true,
	"c.gle":      true,
	// Retarus
	"retarus.com": true,
	// Proofpoint
	"proofpoint.com": true,
	"pphosted.com":   true,
	// Barracuda
	"barracudanetworks.com": true,
	// Mimecast
	"mimecast.com": true,
}

var hostLabelRe = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

// LinkMismatchCheck flags a link whose displayed text names a different
// registrable domain than the one it actually points to -- the classic
// "looks like paypal.com but goes to evil-site.com" pattern.
type LinkMismatchCheck struct {
	trustedLinkDomains ports.TrustedLinkDomainStore
}

func NewLinkMismatchCheck(trustedLinkDomains ports.TrustedLinkDomainStore) *LinkMismatchCheck {
	return &LinkMismatchCheck{trustedLinkDomains: trustedLinkDomains}
}

func (c *LinkMismatchCheck) Name() string { return "LinkMismatchCheck" }

func (c *LinkMismatchCheck) Check(ctx context.Context, email *domain.ParsedEmail, actx *domain.AnalysisContext) []domain.CheckResult {
	senderBase := ""
	if email.FromDomain != "" {
		senderBase = domain.BaseDomain(email.FromDomain)
	}

	var results []domain.CheckResult
	for _, link := range actx.Links {
		if !looksLikeURL(link.DisplayText) {
			continue
		}

		hrefHost := normalizeHost(link.Href)
		displayHost := normalizeHost(link.DisplayText)
		if hrefHost == "" || displayHost == "" || !isWellFormedHost(hrefHost) || !isWellFormedHost(displayHost) {
			continue
		}

		hrefBase := domain.BaseDomain(hrefHost)
		displayBase := domain.BaseDomain(displayHost)
		if hrefBase == displayBase {
			continue
		}

		if espTrackingDomains[hrefBase] {
			continue
		}
		if c.trustedLinkDomains != nil {
			if trusted, err := c.trustedLinkDomains.Contains(ctx, hrefBase); err == nil && trusted {
				continue
			}
		}
		if senderBase != "" && hrefBase == senderBase {
			continue
		}

		results = append(results, domain.CheckResult{
			CheckName: c.Name(),
			Points:    4,
			Reason:    fmt.Sprintf("Link text shows %s but points to %s", displayHost, hrefHost),
		})
	}
	return results
}

// normalizeHost strips a leading quoted-printable "3D"/"3d" artifact,
// prepends a scheme when absent, and returns the lowercased host.
func normalizeHost(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "3D") || strings.HasPrefix(s, "3d") {
		s = s[2:]
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// isWellFormedHost rejects hosts with no '.' or labels containing
// characters other than letters, digits, and hyphens.
func isWellFormedHost(host string) bool {
	if !strings.Contains(host, ".") {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if label == "" || !hostLabelRe.MatchString(label) {
			return false
		}
	}
	return true
}
