package checks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stoik/phishd/internal/domain"
)

// fakeDomainSet is a minimal in-memory ports.DomainSetStore-compatible
// fake used to exercise the analyzer without a real database.
type fakeDomainSet struct {
	domains map[string]bool
}

func newFakeDomainSet(domains ...string) *fakeDomainSet {
	m := make(map[string]bool, len(domains))
	for _, d := range domains {
		m[d] = true
	}
	return &fakeDomainSet{domains: m}
}

func (f *fakeDomainSet) Contains(_ context.Context, domain string) (bool, error) {
	return f.domains[domain], nil
}
func (f *fakeDomainSet) Add(_ context.Context, domain string) error {
	f.domains[domain] = true
	return nil
}
func (f *fakeDomainSet) Remove(_ context.Context, domain string) error {
	delete(f.domains, domain)
	return nil
}
func (f *fakeDomainSet) AllDomains(_ context.Context) ([]string, error) {
	var out []string
	for d := range f.domains {
		out = append(out, d)
	}
	return out, nil
}
func (f *fakeDomainSet) AddWithUser(_ context.Context, domain, _ string) error {
	return f.Add(context.Background(), domain)
}
func (f *fakeDomainSet) ReplaceAll(_ context.Context, domains []string, _ string) error {
	f.domains = make(map[string]bool, len(domains))
	for _, d := range domains {
		f.domains[d] = true
	}
	return nil
}
func (f *fakeDomainSet) CheckDomains(_ context.Context, domains []string) (map[string]bool, error) {
	out := make(map[string]bool, len(domains))
	for _, d := range domains {
		out[d] = f.domains[d]
	}
	return out, nil
}
func (f *fakeDomainSet) LastUpdated(_ context.Context, _ string) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

type fakeCampaignStore struct {
	brands map[string]bool
}

func (f *fakeCampaignStore) ActiveBrands(_ context.Context) ([]string, error) {
	var out []string
	for b := range f.brands {
		out = append(out, b)
	}
	return out, nil
}
func (f *fakeCampaignStore) IsActiveCampaignBrand(_ context.Context, brand string) (bool, error) {
	return f.brands[brand], nil
}
func (f *fakeCampaignStore) InsertBrands(_ context.Context, brands []string, _ time.Time, _ string) error {
	for _, b := range brands {
		f.brands[b] = true
	}
	return nil
}
func (f *fakeCampaignStore) PurgeExpired(_ context.Context) (int, error) { return 0, nil }
func (f *fakeCampaignStore) LastFetched(_ context.Context) (time.Time, bool, error) {
	return time.Time{}, false, nil
}
func (f *fakeCampaignStore) Count(_ context.Context) (int, error) { return len(f.brands), nil }

func newAnalyzer(blacklisted []string, allowlisted []string, trusted []string, campaignBrands ...string) *Analyzer {
	campaigns := &fakeCampaignStore{brands: make(map[string]bool)}
	for _, b := range campaignBrands {
		campaigns.brands[b] = true
	}
	return NewAnalyzer(
		newFakeDomainSet(allowlisted...),
		newFakeDomainSet(blacklisted...),
		newFakeDomainSet(trusted...),
		campaigns,
	)
}

func TestAnalyze_CleanNewsletter(t *testing.T) {
	a := newAnalyzer(nil, nil, nil)
	email := &domain.ParsedEmail{
		MessageID:             "m1",
		From:                  "user@legitimate.com",
		FromDomain:            "legitimate.com",
		ReturnPath:            "bounce@legitimate.com",
		ReturnPathDomain:      "legitimate.com",
		AuthenticationResults: "spf=pass; dkim=pass; dmarc=pass",
		HTMLBody:              `<a href="https://legitimate.com/news">Read</a>`,
	}

	v := a.Analyze(context.Background(), email, time.Now(), nil)
	assert.Equal(t, 0, v.Score)
	assert.Equal(t, domain.ThreatClean, v.ThreatLevel())
	assert.Empty(t, v.Reasons)
}

func TestAnalyze_ReturnPathMismatchOnly(t *testing.T) {
	a := newAnalyzer(nil, nil, nil)
	email := &domain.ParsedEmail{
		MessageID:             "m2",
		From:                  "support@paypal.com",
		FromDomain:            "paypal.com",
		ReturnPath:            "bounce@unrelated.net",
		ReturnPathDomain:      "unrelated.net",
		AuthenticationResults: "spf=pass; dkim=pass; dmarc=pass",
	}

	v := a.Analyze(context.Background(), email, time.Now(), nil)
	assert.Equal(t, 3, v.Score)
	require.Len(t, v.Reasons, 1)
	assert.Equal(t, "ReturnPathCheck", v.Reasons[0].CheckName)
}

func TestAnalyze_ClassicPhishing(t *testing.T) {
	a := newAnalyzer(nil, nil, nil)
	email := &domain.ParsedEmail{
		MessageID:             "m3",
		From:                  "security@paypal.com",
		FromDomain:            "paypal.com",
		ReturnPath:            "x@evil.xyz",
		ReturnPathDomain:      "evil.xyz",
		AuthenticationResults: "spf=fail; dkim=fail; dmarc=fail",
		HTMLBody: `<a href="https://evil-site.com/paypal-login">https://paypal.com/verify</a>` +
			`<a href="http://192.168.1.100/steal">http://192.168.1.100/steal</a>`,
	}

	v := a.Analyze(context.Background(), email, time.Now(), nil)
	assert.GreaterOrEqual(t, v.Score, 6)
	assert.Equal(t, domain.ThreatPhishing, v.ThreatLevel())

	byCheck := map[string]bool{}
	for _, r := range v.Reasons {
		byCheck[r.CheckName] = true
	}
	assert.True(t, byCheck["AuthHeaderCheck"])
	assert.True(t, byCheck["ReturnPathCheck"])
	assert.True(t, byCheck["LinkMismatchCheck"])
	assert.True(t, byCheck["IPURLCheck"])
	assert.True(t, byCheck["SuspiciousTLDCheck"])
}

func TestAnalyze_BrandImpersonationWithCampaignBoost(t *testing.T) {
	a := newAnalyzer(nil, nil, nil, "argenta")
	email := &domain.ParsedEmail{
		MessageID:  "m4",
		From:       "ARGENTA <digipass@tradebulls.in>",
		FromDomain: "tradebulls.in",
	}

	v := a.Analyze(context.Background(), email, time.Now(), nil)
	require.Len(t, v.Reasons, 2)
	assert.Equal(t, 5, v.Score)
	assert.Contains(t, v.Reasons[0].Reason, "Display name ARGENTA does not match sender domain tradebulls.in")
	assert.Contains(t, v.Reasons[1].Reason, "Active Safeonweb phishing campaign targets ARGENTA")
}

func TestAnalyze_ESPPassthroughSuppressesLinkMismatch(t *testing.T) {
	a := newAnalyzer(nil, nil, nil)
	email := &domain.ParsedEmail{
		MessageID:  "m5",
		From:       "marketing@example.com",
		FromDomain: "example.com",
		HTMLBody:   `<a href="https://list-manage.com/track">https://example.com/offer</a>`,
	}

	v := a.Analyze(context.Background(), email, time.Now(), nil)
	for _, r := range v.Reasons {
		assert.NotEqual(t, "LinkMismatchCheck", r.CheckName)
	}
}

func TestAnalyze_AllowlistShortCircuits(t *testing.T) {
	a := newAnalyzer(nil, []string{"trusted.com"}, nil)
	email := &domain.ParsedEmail{
		MessageID:             "m6",
		From:                  "x@trusted.com",
		FromDomain:            "trusted.com",
		AuthenticationResults: "spf=fail",
	}

	v := a.Analyze(context.Background(), email, time.Now(), nil)
	assert.Equal(t, 0, v.Score)
	assert.Empty(t, v.Reasons)
	require.NotNil(t, v.ActionTaken)
	assert.Equal(t, domain.ActionNone, *v.ActionTaken)
}

func TestAnalyze_BlacklistHit(t *testing.T) {
	a := newAnalyzer([]string{"evil.com"}, nil, nil)
	email := &domain.ParsedEmail{
		MessageID:  "m7",
		From:       "a@evil.com",
		FromDomain: "evil.com",
	}

	v := a.Analyze(context.Background(), email, time.Now(), nil)
	require.Len(t, v.Reasons, 1)
	assert.Equal(t, "BlacklistCheck", v.Reasons[0].CheckName)
	assert.Equal(t, 5, v.Score)
}
