// Read-side queries: member listings, history, program statistics.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/perkly/perkly/internal/domain"
)

// ListAccounts pages through accounts. The sort column is whitelisted via
// domain.SortField, never interpolated from raw input.
func (db *DB) ListAccounts(ctx context.Context, search string, sortBy domain.SortField, desc bool, page domain.Page) ([]domain.Account, int64, error) {
	if !sortBy.Valid() {
		sortBy = domain.SortByLifetime
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	page = page.Clamp()
	pattern := "%" + search + "%"

	var total int64
	err := db.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM loyalty_accounts WHERE customer_id LIKE ?
	`, pattern).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := db.db.QueryContext(ctx, `
		SELECT `+accountColumns+`
		FROM loyalty_accounts
		WHERE customer_id LIKE ?
		ORDER BY `+string(sortBy)+` `+dir+`
		LIMIT ? OFFSET ?
	`, pattern, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		var a domain.Account
		var tierUpdated sql.NullString
		var created, updated string
		if err := rows.Scan(&a.CustomerID, &a.TierCode, &a.PointsBalance, &a.PointsEarnedLifetime,
			&a.PointsRedeemedLifetime, &a.TotalSpend, &tierUpdated, &created, &updated); err != nil {
			return nil, 0, err
		}
		if a.TierUpdatedAt, err = parseTimePtr(tierUpdated); err != nil {
			return nil, 0, err
		}
		if a.CreatedAt, err = parseTime(created); err != nil {
			return nil, 0, err
		}
		if a.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

// ListTransactions pages through one customer's ledger, newest first.
func (db *DB) ListTransactions(ctx context.Context, customerID string, page domain.Page) ([]domain.Transaction, int64, error) {
	page = page.Clamp()

	var total int64
	err := db.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM loyalty_transactions WHERE customer_id = ?
	`, customerID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := db.db.QueryContext(ctx, `
		SELECT id, customer_id, type, points, points_balance_after,
			reference_type, reference_id, order_amount, tier_multiplier,
			rule_version_id, reason, created_by, created_at
		FROM loyalty_transactions
		WHERE customer_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`, customerID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var created string
		if err := rows.Scan(&tx.ID, &tx.CustomerID, (*string)(&tx.Type), &tx.Points,
			&tx.PointsBalanceAfter, &tx.ReferenceType, &tx.ReferenceID, &tx.OrderAmount,
			&tx.TierMultiplier, &tx.RuleVersionID, &tx.Reason, &tx.CreatedBy, &created); err != nil {
			return nil, 0, err
		}
		if tx.CreatedAt, err = parseTime(created); err != nil {
			return nil, 0, err
		}
		out = append(out, tx)
	}
	return out, total, rows.Err()
}

// ProgramStats aggregates the program-wide snapshot in two scans.
func (db *DB) ProgramStats(ctx context.Context, recentWindow time.Duration) (*domain.ProgramStats, error) {
	stats := &domain.ProgramStats{MembersByTier: make(map[string]int64)}

	err := db.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(points_earned_lifetime), 0),
			COALESCE(SUM(points_redeemed_lifetime), 0),
			COALESCE(SUM(points_balance), 0)
		FROM loyalty_accounts
	`).Scan(&stats.TotalMembers, &stats.PointsIssuedTotal,
		&stats.PointsRedeemedTotal, &stats.PointsOutstanding)
	if err != nil {
		return nil, err
	}

	rows, err := db.db.QueryContext(ctx, `
		SELECT tier_code, COUNT(*) FROM loyalty_accounts
		WHERE tier_code != '' GROUP BY tier_code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var code string
		var n int64
		if err := rows.Scan(&code, &n); err != nil {
			return nil, err
		}
		stats.MembersByTier[code] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cutoff := fmtTime(time.Now().Add(-recentWindow))
	err = db.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM loyalty_transactions WHERE created_at > ?
	`, cutoff).Scan(&stats.RecentTransactions)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
