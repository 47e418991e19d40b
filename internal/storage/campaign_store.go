package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// campaignFreshness is how long a Safeonweb-advisory brand stays "active"
// for BrandImpersonationCheck's campaign-boost signal after its advisory was
// published, and the age at which PurgeExpired removes a row.
const campaignFreshness = 90 * 24 * time.Hour

// CampaignStore persists brand names extracted from Safeonweb phishing
// advisories.
type CampaignStore struct {
	db *Database
}

func NewCampaignStore(db *Database) *CampaignStore {
	return &CampaignStore{db: db}
}

// ActiveBrands returns every distinct brand with a still-fresh advisory.
func (c *CampaignStore) ActiveBrands(ctx context.Context) ([]string, error) {
	cutoff := now().Add(-campaignFreshness)
	rows, err := c.db.db.QueryContext(ctx,
		`SELECT DISTINCT brand FROM safeonweb_campaigns WHERE publishedDate >= ? ORDER BY brand`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list active campaign brands: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// IsActiveCampaignBrand reports whether brand has a fresh advisory, matched
// case-insensitively since RSS-extracted brands and email display names
// differ in casing.
func (c *CampaignStore) IsActiveCampaignBrand(ctx context.Context, brand string) (bool, error) {
	cutoff := now().Add(-campaignFreshness)
	var exists int
	err := c.db.db.QueryRowContext(ctx,
		`SELECT 1 FROM safeonweb_campaigns WHERE lower(brand) = lower(?) AND publishedDate >= ? LIMIT 1`,
		brand, cutoff).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check active campaign brand %s: %w", brand, err)
	}
	return true, nil
}

// InsertBrands records brands extracted from one advisory article. Rows are
// deduplicated on (brand, articleTitle): re-ingesting the same feed entry is
// a no-op rather than a duplicate.
func (c *CampaignStore) InsertBrands(ctx context.Context, brands []string, publishedDate time.Time, articleTitle string) error {
	if len(brands) == 0 {
		return nil
	}
	tx, err := c.db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert brands: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO safeonweb_campaigns (brand, publishedDate, fetchedDate, articleTitle) VALUES (?, ?, ?, ?) ON CONFLICT(brand, articleTitle) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare insert brands: %w", err)
	}
	defer stmt.Close()

	fetched := now()
	for _, b := range brands {
		lower := strings.ToLower(b)
		if _, err := stmt.ExecContext(ctx, lower, publishedDate, fetched, articleTitle); err != nil {
			return fmt.Errorf("insert brand %s: %w", lower, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert brands: %w", err)
	}
	return nil
}

// PurgeExpired deletes advisories older than campaignFreshness and returns
// the count removed.
func (c *CampaignStore) PurgeExpired(ctx context.Context) (int, error) {
	cutoff := now().Add(-campaignFreshness)
	res, err := c.db.db.ExecContext(ctx, `DELETE FROM safeonweb_campaigns WHERE publishedDate < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge expired campaigns: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// LastFetched returns the most recent fetchedDate across all rows, or
// ok=false when the table is empty.
func (c *CampaignStore) LastFetched(ctx context.Context) (time.Time, bool, error) {
	var s sql.NullString
	err := c.db.db.QueryRowContext(ctx, `SELECT MAX(fetchedDate) FROM safeonweb_campaigns`).Scan(&s)
	if err == sql.ErrNoRows || (err == nil && !s.Valid) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last fetched: %w", err)
	}
	t, err := parseSQLiteTimestamp(s.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last fetched: %w", err)
	}
	return t, true, nil
}

// Count returns the total number of campaign rows, expired or not.
func (c *CampaignStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM safeonweb_campaigns`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count campaigns: %w", err)
	}
	return n, nil
}
