package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

// domainSetTable is the shared raw-SQL implementation behind BlacklistStore,
// AllowlistStore, and TrustedLinkDomainStore: all three are "a table of
// domain strings with a bit of provenance", differing only in column names
// and which extra methods the port requires.
type domainSetTable struct {
	db         *Database
	table      string
	ownerCol   string // "source" for blacklist, "addedByUser" for allowlist, "" for trusted-link
	ownerValue string // default owner written by Add/Contains-only callers
}

// normalizeDomain lowercases and trims a domain so membership checks are
// case-insensitive regardless of how the caller spells it.
func normalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}

func (t *domainSetTable) Contains(ctx context.Context, domain string) (bool, error) {
	var exists int
	err := t.db.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT 1 FROM %s WHERE domain = ?`, t.table), normalizeDomain(domain)).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check %s membership for %s: %w", t.table, domain, err)
	}
	return true, nil
}

func (t *domainSetTable) add(ctx context.Context, domain, owner string) error {
	domain = normalizeDomain(domain)
	if t.ownerCol == "" {
		_, err := t.db.db.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (domain, timestamp) VALUES (?, ?) ON CONFLICT(domain) DO UPDATE SET timestamp = excluded.timestamp`, t.table),
			domain, now())
		if err != nil {
			return fmt.Errorf("add to %s: %w", t.table, err)
		}
		return nil
	}
	_, err := t.db.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (domain, %s, timestamp) VALUES (?, ?, ?) ON CONFLICT(domain) DO UPDATE SET %s = excluded.%s, timestamp = excluded.timestamp`,
			t.table, quoteIdent(t.ownerCol), quoteIdent(t.ownerCol), quoteIdent(t.ownerCol)),
		domain, owner, now())
	if err != nil {
		return fmt.Errorf("add to %s: %w", t.table, err)
	}
	return nil
}

func (t *domainSetTable) Add(ctx context.Context, domain string) error {
	return t.add(ctx, domain, t.ownerValue)
}

func (t *domainSetTable) Remove(ctx context.Context, domain string) error {
	if _, err := t.db.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE domain = ?`, t.table), normalizeDomain(domain)); err != nil {
		return fmt.Errorf("remove from %s: %w", t.table, err)
	}
	return nil
}

func (t *domainSetTable) AllDomains(ctx context.Context) ([]string, error) {
	rows, err := t.db.db.QueryContext(ctx, fmt.Sprintf(`SELECT domain FROM %s ORDER BY domain`, t.table))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.table, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func quoteIdent(ident string) string { return `"` + ident + `"` }

// BlacklistStore persists domains reported by the configured blacklist
// feed (and any manual additions), scoped by source.
type BlacklistStore struct {
	domainSetTable
}

func NewBlacklistStore(db *Database) *BlacklistStore {
	return &BlacklistStore{domainSetTable{db: db, table: "blacklist", ownerCol: "source", ownerValue: "manual"}}
}

// ReplaceAll atomically swaps every domain previously recorded for source
// with domains, in a single transaction: the blacklist refresh is "this
// source's whole list changed", not an incremental diff.
func (b *BlacklistStore) ReplaceAll(ctx context.Context, domains []string, source string) error {
	tx, err := b.db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin blacklist replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM blacklist WHERE source = ?`, source); err != nil {
		return fmt.Errorf("clear blacklist source %s: %w", source, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO blacklist (domain, source, lastUpdated) VALUES (?, ?, ?) ON CONFLICT(domain) DO UPDATE SET source = excluded.source, lastUpdated = excluded.lastUpdated`)
	if err != nil {
		return fmt.Errorf("prepare blacklist insert: %w", err)
	}
	defer stmt.Close()

	ts := now()
	for _, d := range domains {
		d = normalizeDomain(d)
		if d == "" || strings.HasPrefix(d, "#") {
			continue
		}
		if _, err := stmt.ExecContext(ctx, d, source, ts); err != nil {
			return fmt.Errorf("insert blacklist domain %s: %w", d, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit blacklist replace: %w", err)
	}
	return nil
}

// CheckDomains batches a membership check for every domain in domains,
// avoiding one round-trip per domain for the checks that consult several at
// once (sender domain, return-path domain, every link domain).
func (b *BlacklistStore) CheckDomains(ctx context.Context, domains []string) (map[string]bool, error) {
	out := make(map[string]bool, len(domains))
	if len(domains) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(domains))
	args := make([]any, len(domains))
	for i, d := range domains {
		placeholders[i] = "?"
		args[i] = d
		out[d] = false
	}

	query := fmt.Sprintf(`SELECT domain FROM blacklist WHERE domain IN (%s)`, joinPlaceholders(placeholders))
	rows, err := b.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("check blacklist domains: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out[d] = true
	}
	return out, rows.Err()
}

// LastUpdated returns the most recent lastUpdated timestamp recorded for
// source, used to decide whether a refresh is due.
func (b *BlacklistStore) LastUpdated(ctx context.Context, source string) (time.Time, bool, error) {
	var s sql.NullString
	err := b.db.db.QueryRowContext(ctx,
		`SELECT MAX(lastUpdated) FROM blacklist WHERE source = ?`, source).Scan(&s)
	if err == sql.ErrNoRows || !s.Valid {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last updated for source %s: %w", source, err)
	}
	t, err := parseSQLiteTimestamp(s.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last updated for source %s: %w", source, err)
	}
	return t, true, nil
}

// parseSQLiteTimestamp parses a timestamp string returned by go-sqlite3 for
// an aggregate expression (e.g. MAX(col)), whose result loses the column's
// declared type so the driver hands back raw text instead of a time.Time.
func parseSQLiteTimestamp(s string) (time.Time, error) {
	for _, format := range sqlite3.SQLiteTimestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse sqlite timestamp %q", s)
}

func joinPlaceholders(ph []string) string {
	out := ph[0]
	for _, p := range ph[1:] {
		out += "," + p
	}
	return out
}

// AllowlistStore persists domains a user has explicitly marked safe.
type AllowlistStore struct {
	domainSetTable
}

func NewAllowlistStore(db *Database) *AllowlistStore {
	return &AllowlistStore{domainSetTable{db: db, table: "allowlist", ownerCol: "addedByUser", ownerValue: "unknown"}}
}

func (a *AllowlistStore) AddWithUser(ctx context.Context, domain, addedByUser string) error {
	return a.add(ctx, domain, addedByUser)
}

// TrustedLinkDomainStore persists domains the LinkMismatchCheck should treat
// as legitimate ESP/tracking redirectors beyond the hardcoded set.
type TrustedLinkDomainStore struct {
	domainSetTable
}

func NewTrustedLinkDomainStore(db *Database) *TrustedLinkDomainStore {
	return &TrustedLinkDomainStore{domainSetTable{db: db, table: "trusted_link_domains"}}
}
