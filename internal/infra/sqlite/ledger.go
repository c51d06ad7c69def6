// Ledger persistence: accounts and the append-only transaction log.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/perkly/perkly/internal/domain"
)

// ─── Account Operations ─────────────────────────────────────────────────────

const accountColumns = `customer_id, tier_code, points_balance, points_earned_lifetime,
	points_redeemed_lifetime, total_spend, tier_updated_at, created_at, updated_at`

// LoadAccount retrieves a customer's loyalty account.
func (db *DB) LoadAccount(ctx context.Context, customerID string) (*domain.Account, error) {
	row := db.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM loyalty_accounts WHERE customer_id = ?
	`, customerID)
	return scanAccount(row)
}

func scanAccount(row *sql.Row) (*domain.Account, error) {
	var a domain.Account
	var tierUpdated sql.NullString
	var created, updated string
	err := row.Scan(&a.CustomerID, &a.TierCode, &a.PointsBalance, &a.PointsEarnedLifetime,
		&a.PointsRedeemedLifetime, &a.TotalSpend, &tierUpdated, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	if a.TierUpdatedAt, err = parseTimePtr(tierUpdated); err != nil {
		return nil, err
	}
	if a.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &a, nil
}

// SaveAccount inserts or updates an account snapshot.
func (db *DB) SaveAccount(ctx context.Context, acct *domain.Account) error {
	_, err := db.db.ExecContext(ctx, upsertAccountSQL, upsertAccountArgs(acct)...)
	return err
}

const upsertAccountSQL = `
	INSERT INTO loyalty_accounts (customer_id, tier_code, points_balance,
		points_earned_lifetime, points_redeemed_lifetime, total_spend,
		tier_updated_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(customer_id) DO UPDATE SET
		tier_code                = excluded.tier_code,
		points_balance           = excluded.points_balance,
		points_earned_lifetime   = excluded.points_earned_lifetime,
		points_redeemed_lifetime = excluded.points_redeemed_lifetime,
		total_spend              = excluded.total_spend,
		tier_updated_at          = excluded.tier_updated_at,
		updated_at               = excluded.updated_at
`

func upsertAccountArgs(acct *domain.Account) []any {
	return []any{
		acct.CustomerID, acct.TierCode, acct.PointsBalance,
		acct.PointsEarnedLifetime, acct.PointsRedeemedLifetime, acct.TotalSpend,
		fmtTimePtr(acct.TierUpdatedAt), fmtTime(acct.CreatedAt), fmtTime(acct.UpdatedAt),
	}
}

// ─── Transaction Operations ─────────────────────────────────────────────────

// AppendTransaction adds one immutable ledger row. There is no update or
// delete path for this table.
func (db *DB) AppendTransaction(ctx context.Context, tx *domain.Transaction) error {
	_, err := db.db.ExecContext(ctx, insertTransactionSQL, insertTransactionArgs(tx)...)
	return err
}

const insertTransactionSQL = `
	INSERT INTO loyalty_transactions (id, customer_id, type, points,
		points_balance_after, reference_type, reference_id, order_amount,
		tier_multiplier, rule_version_id, reason, created_by, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func insertTransactionArgs(tx *domain.Transaction) []any {
	return []any{
		tx.ID, tx.CustomerID, string(tx.Type), tx.Points,
		tx.PointsBalanceAfter, tx.ReferenceType, tx.ReferenceID, tx.OrderAmount,
		tx.TierMultiplier, tx.RuleVersionID, tx.Reason, tx.CreatedBy, fmtTime(tx.CreatedAt),
	}
}

// CommitEntry persists the account update and the new transaction inside
// one SQL transaction — the ledger's atomic unit.
func (db *DB) CommitEntry(ctx context.Context, acct *domain.Account, tx *domain.Transaction) error {
	sqlTx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger commit: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx, upsertAccountSQL, upsertAccountArgs(acct)...); err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	if _, err := sqlTx.ExecContext(ctx, insertTransactionSQL, insertTransactionArgs(tx)...); err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return sqlTx.Commit()
}
