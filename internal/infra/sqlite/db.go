// Package sqlite persists loyalty program state with database/sql on the
// pure-Go sqlite driver. Timestamps are stored as RFC3339 UTC text so
// lexicographic comparison in SQL matches chronological order.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the sqlite handle.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies migrations.
// Pass ":memory:" for an ephemeral database.
func Open(path string) (*DB, error) {
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// Single writer; sqlite serializes anyway, and a pool of one avoids
	// SQLITE_BUSY on concurrent ledger commits.
	sqldb.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA foreign_keys = ON`,
		`PRAGMA busy_timeout = 5000`,
	} {
		if _, err := sqldb.Exec(pragma); err != nil {
			sqldb.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	db := &DB{db: sqldb}
	if err := db.migrate(); err != nil {
		sqldb.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the underlying handle.
func (db *DB) Close() error { return db.db.Close() }

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema migration statements.
// Each string is a single SQL statement (sqlite executes one at a time).
func Migrations() []string {
	return []string{
		// Loyalty accounts (one per customer)
		`CREATE TABLE IF NOT EXISTS loyalty_accounts (
			customer_id              TEXT PRIMARY KEY,
			tier_code                TEXT NOT NULL DEFAULT '',
			points_balance           INTEGER NOT NULL DEFAULT 0,
			points_earned_lifetime   INTEGER NOT NULL DEFAULT 0,
			points_redeemed_lifetime INTEGER NOT NULL DEFAULT 0,
			total_spend              INTEGER NOT NULL DEFAULT 0,
			tier_updated_at          TEXT,
			created_at               TEXT NOT NULL,
			updated_at               TEXT NOT NULL,
			CHECK (points_balance >= 0)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_balance ON loyalty_accounts(points_balance)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_lifetime ON loyalty_accounts(points_earned_lifetime)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_tier ON loyalty_accounts(tier_code)`,

		// Append-only transaction ledger
		`CREATE TABLE IF NOT EXISTS loyalty_transactions (
			id                   TEXT PRIMARY KEY,
			customer_id          TEXT NOT NULL,
			type                 TEXT NOT NULL,
			points               INTEGER NOT NULL,
			points_balance_after INTEGER NOT NULL,
			reference_type       TEXT NOT NULL DEFAULT '',
			reference_id         TEXT NOT NULL DEFAULT '',
			order_amount         INTEGER NOT NULL DEFAULT 0,
			tier_multiplier      REAL NOT NULL DEFAULT 0,
			rule_version_id      INTEGER NOT NULL DEFAULT 0,
			reason               TEXT NOT NULL DEFAULT '',
			created_by           TEXT NOT NULL DEFAULT '',
			created_at           TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_customer ON loyalty_transactions(customer_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_created ON loyalty_transactions(created_at)`,

		// Versioned program configuration
		`CREATE TABLE IF NOT EXISTS rule_versions (
			id                     INTEGER PRIMARY KEY AUTOINCREMENT,
			points_per_currency    REAL NOT NULL DEFAULT 0,
			earning_round_mode     TEXT NOT NULL DEFAULT 'floor',
			redemption_rate        INTEGER NOT NULL DEFAULT 1,
			max_redemption_percent INTEGER NOT NULL DEFAULT 100,
			min_redemption_points  INTEGER NOT NULL DEFAULT 0,
			allow_tier_downgrade   INTEGER NOT NULL DEFAULT 0,
			tier_evaluation_basis  TEXT NOT NULL DEFAULT 'lifetime_points',
			is_active              INTEGER NOT NULL DEFAULT 0,
			effective_from         TEXT NOT NULL,
			effective_to           TEXT,
			notes                  TEXT NOT NULL DEFAULT '',
			created_at             TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rules_active ON rule_versions(is_active, effective_from)`,

		// Tier catalog
		`CREATE TABLE IF NOT EXISTS tiers (
			code              TEXT PRIMARY KEY,
			name              TEXT NOT NULL,
			display_order     INTEGER NOT NULL DEFAULT 0,
			min_points        INTEGER NOT NULL DEFAULT 0,
			min_total_spend   INTEGER,
			points_multiplier REAL NOT NULL DEFAULT 1,
			benefits_json     TEXT NOT NULL DEFAULT '{}',
			is_active         INTEGER NOT NULL DEFAULT 1,
			created_at        TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
	}
}

func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// ─── Time Encoding ──────────────────────────────────────────────────────────

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func fmtTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := fmtTime(*t)
	return &s
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
