// Package storage is the embedded-database adapter: schema, migration, and
// the concrete VerdictStore/BlacklistStore/AllowlistStore/
// TrustedLinkDomainStore/SafeonwebCampaignStore implementations behind the
// ports interfaces. It is a SQLite-backed store: raw database/sql +
// hand-written SQL (no ORM), upsert/transaction idioms, and a tuned
// single-file embedded database rather than a client/server one.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Database owns the single SQLite connection every store writes through.
// Reads and writes share this connection; the pool is capped at one open
// connection so SQLite's single-writer constraint is enforced structurally
// rather than via an additional application-level lock.
type Database struct {
	db   *sql.DB
	path string
}

const busyTimeoutMillis = 5000

// Open opens (creating if necessary) the embedded database at path, or an
// in-memory database if path is ":memory:". It applies the busy-timeout and
// journal-mode tuning and runs schema creation/migration before returning.
func Open(path string) (*Database, error) {
	dsn := path
	inMemory := path == ":memory:"
	if !inMemory {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		if !strings.Contains(dsn, "?") {
			dsn += fmt.Sprintf("?_busy_timeout=%d&_foreign_keys=1&_journal_mode=WAL", busyTimeoutMillis)
		}
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite allows exactly one writer; capping the pool at one connection
	// serializes writers without a separate application-level mutex or
	// write-request channel.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d;", busyTimeoutMillis),
		"PRAGMA foreign_keys = ON;",
	}
	if !inMemory {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL;")
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	d := &Database{db: sqlDB, path: path}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return d, nil
}

// Close releases the underlying connection.
func (d *Database) Close() error {
	return d.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS verdicts (
	messageId    TEXT PRIMARY KEY,
	score        INTEGER NOT NULL,
	reasons_json TEXT NOT NULL,
	timestamp    DATETIME NOT NULL,
	actionTaken  TEXT
);

CREATE TABLE IF NOT EXISTS blacklist (
	domain      TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	lastUpdated DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS allowlist (
	domain       TEXT PRIMARY KEY,
	addedByUser  TEXT NOT NULL,
	timestamp    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS trusted_link_domains (
	domain    TEXT PRIMARY KEY,
	timestamp DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS safeonweb_campaigns (
	brand         TEXT NOT NULL,
	publishedDate DATETIME NOT NULL,
	fetchedDate   DATETIME NOT NULL,
	articleTitle  TEXT NOT NULL,
	UNIQUE(brand, articleTitle)
);
`

// verdictMigrationColumns are additive columns introduced after the initial
// verdicts schema; existing databases are migrated up via ALTER TABLE so
// older verdict rows remain readable.
var verdictMigrationColumns = []struct {
	name       string
	definition string
}{
	{"from", "TEXT NOT NULL DEFAULT ''"},
	{"subject", "TEXT NOT NULL DEFAULT ''"},
	{"receivedDate", "DATETIME"},
	{"imapUID", "INTEGER"},
}

func (d *Database) migrate() error {
	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := d.db.Exec(`CREATE INDEX IF NOT EXISTS idx_verdicts_timestamp ON verdicts(timestamp);`); err != nil {
		return fmt.Errorf("create verdicts timestamp index: %w", err)
	}

	existing, err := d.verdictColumns()
	if err != nil {
		return fmt.Errorf("introspect verdicts columns: %w", err)
	}

	for _, col := range verdictMigrationColumns {
		if existing[col.name] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE verdicts ADD COLUMN %q %s", col.name, col.definition)
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate verdicts.%s: %w", col.name, err)
		}
	}
	return nil
}

func (d *Database) verdictColumns() (map[string]bool, error) {
	rows, err := d.db.Query(`PRAGMA table_info(verdicts)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dflt sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// now is overridable in tests.
var now = time.Now
