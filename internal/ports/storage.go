// Package ports defines the interfaces the core depends on but does not
// implement: the store contracts behind the embedded database. These are
// small interfaces the application/domain layers are built against, with
// adapters supplying the real implementation. The IMAP session is not
// abstracted here; the monitor and scan subsystem use the go-imap client
// directly.
package ports

import (
	"context"
	"time"

	"github.com/stoik/phishd/internal/domain"
)

// VerdictStore persists and queries Verdict rows.
type VerdictStore interface {
	Save(ctx context.Context, v domain.Verdict) error
	Lookup(ctx context.Context, messageID string) (*domain.Verdict, error)
	RecentVerdicts(ctx context.Context, limit int, minimumScore int) ([]domain.Verdict, error)
	UpdateAction(ctx context.Context, messageID string, action domain.Action) error
	MarkDomainSafe(ctx context.Context, domain string) (int, error)
	Delete(ctx context.Context, messageID string) error
	PurgeOld(ctx context.Context, days int) (int, error)
}

// DomainSetStore is the shared shape of the blacklist/allowlist/trusted-link
// domain sets: membership, insert, remove, enumerate.
type DomainSetStore interface {
	Contains(ctx context.Context, domain string) (bool, error)
	Add(ctx context.Context, domain string) error
	Remove(ctx context.Context, domain string) error
	AllDomains(ctx context.Context) ([]string, error)
}

// BlacklistStore is a DomainSetStore with a source-scoped bulk-replace
// operation and a batched membership check.
type BlacklistStore interface {
	DomainSetStore
	ReplaceAll(ctx context.Context, domains []string, source string) error
	CheckDomains(ctx context.Context, domains []string) (map[string]bool, error)
	LastUpdated(ctx context.Context, source string) (time.Time, bool, error)
}

// AllowlistStore additionally records who added a domain.
type AllowlistStore interface {
	DomainSetStore
	AddWithUser(ctx context.Context, domain, addedByUser string) error
}

// TrustedLinkDomainStore is a plain DomainSetStore.
type TrustedLinkDomainStore interface {
	DomainSetStore
}

// SafeonwebCampaignStore tracks brand names named in Safeonweb phishing
// advisories, used as an additional scoring signal with a freshness window.
type SafeonwebCampaignStore interface {
	ActiveBrands(ctx context.Context) ([]string, error)
	IsActiveCampaignBrand(ctx context.Context, brand string) (bool, error)
	InsertBrands(ctx context.Context, brands []string, publishedDate time.Time, articleTitle string) error
	PurgeExpired(ctx context.Context) (int, error)
	LastFetched(ctx context.Context) (time.Time, bool, error)
	Count(ctx context.Context) (int, error)
}
