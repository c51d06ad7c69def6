// Rule version and tier catalog persistence.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/perkly/perkly/internal/domain"
)

// ─── Rule Version Operations ────────────────────────────────────────────────

const ruleColumns = `id, points_per_currency, earning_round_mode, redemption_rate,
	max_redemption_percent, min_redemption_points, allow_tier_downgrade,
	tier_evaluation_basis, is_active, effective_from, effective_to, notes, created_at`

// LoadActiveRuleVersion resolves the active version covering at; ties
// break toward the latest effective_from, then the highest id.
func (db *DB) LoadActiveRuleVersion(ctx context.Context, at time.Time) (*domain.RuleVersion, error) {
	ts := fmtTime(at)
	row := db.db.QueryRowContext(ctx, `
		SELECT `+ruleColumns+`
		FROM rule_versions
		WHERE is_active = 1 AND effective_from <= ?
		  AND (effective_to IS NULL OR effective_to > ?)
		ORDER BY effective_from DESC, id DESC
		LIMIT 1
	`, ts, ts)

	rv, err := scanRuleVersion(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNoActiveRules
	}
	return rv, err
}

func scanRuleVersion(scan func(dest ...any) error) (*domain.RuleVersion, error) {
	var rv domain.RuleVersion
	var downgrade, active int
	var from, created string
	var to sql.NullString
	err := scan(&rv.ID, &rv.PointsPerCurrency, (*string)(&rv.EarningRoundMode), &rv.RedemptionRate,
		&rv.MaxRedemptionPercent, &rv.MinRedemptionPoints, &downgrade,
		(*string)(&rv.TierEvaluationBasis), &active, &from, &to, &rv.Notes, &created)
	if err != nil {
		return nil, err
	}
	rv.AllowTierDowngrade = downgrade == 1
	rv.IsActive = active == 1
	if rv.EffectiveFrom, err = parseTime(from); err != nil {
		return nil, err
	}
	if rv.EffectiveTo, err = parseTimePtr(to); err != nil {
		return nil, err
	}
	if rv.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &rv, nil
}

// InsertRuleVersion persists a new version and returns it with its ID.
func (db *DB) InsertRuleVersion(ctx context.Context, rv *domain.RuleVersion) (*domain.RuleVersion, error) {
	res, err := db.db.ExecContext(ctx, `
		INSERT INTO rule_versions (points_per_currency, earning_round_mode,
			redemption_rate, max_redemption_percent, min_redemption_points,
			allow_tier_downgrade, tier_evaluation_basis, is_active,
			effective_from, effective_to, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rv.PointsPerCurrency, string(rv.EarningRoundMode), rv.RedemptionRate,
		rv.MaxRedemptionPercent, rv.MinRedemptionPoints, boolInt(rv.AllowTierDowngrade),
		string(rv.TierEvaluationBasis), boolInt(rv.IsActive),
		fmtTime(rv.EffectiveFrom), fmtTimePtr(rv.EffectiveTo), rv.Notes, fmtTime(rv.CreatedAt))
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	out := *rv
	out.ID = id
	return &out, nil
}

// CloseRuleVersion bounds a version's interval at the given instant.
// Versions are otherwise immutable once effective.
func (db *DB) CloseRuleVersion(ctx context.Context, id int64, at time.Time) error {
	res, err := db.db.ExecContext(ctx, `
		UPDATE rule_versions SET effective_to = ? WHERE id = ?
	`, fmtTime(at), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrRulesNotFound
	}
	return nil
}

// ListRuleVersions returns all versions, newest effective_from first.
func (db *DB) ListRuleVersions(ctx context.Context) ([]domain.RuleVersion, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT `+ruleColumns+`
		FROM rule_versions ORDER BY effective_from DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RuleVersion
	for rows.Next() {
		rv, err := scanRuleVersion(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *rv)
	}
	return out, rows.Err()
}

// ─── Tier Operations ────────────────────────────────────────────────────────

const tierColumns = `code, name, display_order, min_points, min_total_spend,
	points_multiplier, benefits_json, is_active, created_at`

// LoadTierCatalog returns all tiers ordered by display order.
func (db *DB) LoadTierCatalog(ctx context.Context) ([]domain.Tier, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT `+tierColumns+` FROM tiers ORDER BY display_order
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Tier
	for rows.Next() {
		t, err := scanTier(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// GetTier returns a tier by code.
func (db *DB) GetTier(ctx context.Context, code string) (*domain.Tier, error) {
	row := db.db.QueryRowContext(ctx, `
		SELECT `+tierColumns+` FROM tiers WHERE code = ?
	`, code)
	t, err := scanTier(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTierNotFound
	}
	return t, err
}

func scanTier(scan func(dest ...any) error) (*domain.Tier, error) {
	var t domain.Tier
	var minSpend sql.NullInt64
	var benefits string
	var active int
	var created string
	err := scan(&t.Code, &t.Name, &t.DisplayOrder, &t.MinPoints, &minSpend,
		&t.PointsMultiplier, &benefits, &active, &created)
	if err != nil {
		return nil, err
	}
	if minSpend.Valid {
		t.MinTotalSpend = &minSpend.Int64
	}
	if benefits != "" && benefits != "{}" {
		_ = json.Unmarshal([]byte(benefits), &t.Benefits)
	}
	t.IsActive = active == 1
	if t.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &t, nil
}

// InsertTier stores a new tier; the code must be unused.
func (db *DB) InsertTier(ctx context.Context, t *domain.Tier) error {
	benefits, err := benefitsJSON(t.Benefits)
	if err != nil {
		return err
	}
	_, err = db.db.ExecContext(ctx, `
		INSERT INTO tiers (code, name, display_order, min_points, min_total_spend,
			points_multiplier, benefits_json, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.Code, t.Name, t.DisplayOrder, t.MinPoints, nullableInt(t.MinTotalSpend),
		t.PointsMultiplier, benefits, boolInt(t.IsActive), fmtTime(t.CreatedAt))
	return err
}

// UpdateTier replaces an existing tier row.
func (db *DB) UpdateTier(ctx context.Context, t *domain.Tier) error {
	benefits, err := benefitsJSON(t.Benefits)
	if err != nil {
		return err
	}
	res, err := db.db.ExecContext(ctx, `
		UPDATE tiers SET name = ?, display_order = ?, min_points = ?,
			min_total_spend = ?, points_multiplier = ?, benefits_json = ?, is_active = ?
		WHERE code = ?
	`, t.Name, t.DisplayOrder, t.MinPoints, nullableInt(t.MinTotalSpend),
		t.PointsMultiplier, benefits, boolInt(t.IsActive), t.Code)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrTierNotFound
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func benefitsJSON(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
