// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing.
package domain

import (
	"math"
	"time"
)

// ─── Account Types ──────────────────────────────────────────────────────────

// Account is a customer's loyalty account (one per customer).
// Monetary fields are integer minor units (cents); points are integers.
type Account struct {
	CustomerID             string     `json:"customer_id"`
	TierCode               string     `json:"tier_code,omitempty"` // empty until first qualification
	PointsBalance          int64      `json:"points_balance"`
	PointsEarnedLifetime   int64      `json:"points_earned_lifetime"`
	PointsRedeemedLifetime int64      `json:"points_redeemed_lifetime"`
	TotalSpend             int64      `json:"total_spend"`
	TierUpdatedAt          *time.Time `json:"tier_updated_at,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// EvaluationValue returns the figure tier qualification is measured against.
func (a *Account) EvaluationValue(basis EvaluationBasis) int64 {
	if basis == BasisTotalSpend {
		return a.TotalSpend
	}
	return a.PointsEarnedLifetime
}

// ─── Tier Types ─────────────────────────────────────────────────────────────

// Tier is a membership level in the loyalty ladder.
type Tier struct {
	Code             string            `json:"code"`
	Name             string            `json:"name"`
	DisplayOrder     int               `json:"display_order"`
	MinPoints        int64             `json:"min_points"`
	MinTotalSpend    *int64            `json:"min_total_spend,omitempty"`
	PointsMultiplier float64           `json:"points_multiplier"` // 1–10
	Benefits         map[string]string `json:"benefits,omitempty"`
	IsActive         bool              `json:"is_active"`
	CreatedAt        time.Time         `json:"created_at"`
}

// Threshold returns the qualification threshold for the given basis.
// A tier with no MinTotalSpend falls back to MinPoints on spend basis,
// so a points-only ladder still resolves.
func (t *Tier) Threshold(basis EvaluationBasis) int64 {
	if basis == BasisTotalSpend && t.MinTotalSpend != nil {
		return *t.MinTotalSpend
	}
	return t.MinPoints
}

// Validate checks catalog field ranges before a tier is persisted.
func (t *Tier) Validate() error {
	if t.Code == "" {
		return ErrValidation("tier code is required")
	}
	if t.Name == "" {
		return ErrValidation("tier name is required")
	}
	if t.MinPoints < 0 {
		return ErrValidation("min_points must be >= 0")
	}
	if t.MinTotalSpend != nil && *t.MinTotalSpend < 0 {
		return ErrValidation("min_total_spend must be >= 0")
	}
	if t.PointsMultiplier < 1 || t.PointsMultiplier > 10 {
		return ErrValidation("points_multiplier must be in [1,10]")
	}
	return nil
}

// ResolveTier returns the highest-ordered active tier whose threshold is
// ≤ value, or nil if none qualify. When thresholds tie, the higher
// DisplayOrder wins. The catalog need not be pre-sorted.
func ResolveTier(catalog []Tier, value int64, basis EvaluationBasis) *Tier {
	var best *Tier
	for i := range catalog {
		t := &catalog[i]
		if !t.IsActive || t.Threshold(basis) > value {
			continue
		}
		if best == nil || t.DisplayOrder > best.DisplayOrder {
			best = t
		}
	}
	return best
}

// ─── Rule Version Types ─────────────────────────────────────────────────────

// RoundMode selects how fractional earned points collapse to an integer.
type RoundMode string

const (
	RoundFloor RoundMode = "floor" // truncate toward zero
	RoundHalf  RoundMode = "round" // round-half-up
	RoundCeil  RoundMode = "ceil"  // round up on any remainder
)

// EvaluationBasis selects the figure tiers qualify against.
type EvaluationBasis string

const (
	BasisLifetimePoints EvaluationBasis = "lifetime_points"
	BasisTotalSpend     EvaluationBasis = "total_spend"
)

// RuleVersion is a time-bounded, immutable-once-effective set of program
// parameters. At most one active version covers any instant.
type RuleVersion struct {
	ID                   int64           `json:"id"`
	PointsPerCurrency    float64         `json:"points_per_currency"` // points per minor unit spent
	EarningRoundMode     RoundMode       `json:"earning_round_mode"`
	RedemptionRate       int64           `json:"redemption_rate"` // minor units per point
	MaxRedemptionPercent int             `json:"max_redemption_percent"`
	MinRedemptionPoints  int64           `json:"min_redemption_points"`
	AllowTierDowngrade   bool            `json:"allow_tier_downgrade"`
	TierEvaluationBasis  EvaluationBasis `json:"tier_evaluation_basis"`
	IsActive             bool            `json:"is_active"`
	EffectiveFrom        time.Time       `json:"effective_from"`
	EffectiveTo          *time.Time      `json:"effective_to,omitempty"` // half-open: nil = unbounded
	Notes                string          `json:"notes,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
}

// Covers reports whether at falls inside [EffectiveFrom, EffectiveTo).
func (rv *RuleVersion) Covers(at time.Time) bool {
	if at.Before(rv.EffectiveFrom) {
		return false
	}
	return rv.EffectiveTo == nil || at.Before(*rv.EffectiveTo)
}

// Validate checks field ranges before a version is persisted.
func (rv *RuleVersion) Validate() error {
	if rv.PointsPerCurrency < 0 {
		return ErrValidation("points_per_currency must be >= 0")
	}
	switch rv.EarningRoundMode {
	case RoundFloor, RoundHalf, RoundCeil:
	default:
		return ErrValidation("earning_round_mode must be floor, round, or ceil")
	}
	if rv.RedemptionRate <= 0 {
		return ErrValidation("redemption_rate must be > 0")
	}
	if rv.MaxRedemptionPercent < 0 || rv.MaxRedemptionPercent > 100 {
		return ErrValidation("max_redemption_percent must be in [0,100]")
	}
	if rv.MinRedemptionPoints < 0 {
		return ErrValidation("min_redemption_points must be >= 0")
	}
	switch rv.TierEvaluationBasis {
	case BasisLifetimePoints, BasisTotalSpend:
	default:
		return ErrValidation("tier_evaluation_basis must be lifetime_points or total_spend")
	}
	if rv.EffectiveTo != nil && !rv.EffectiveFrom.Before(*rv.EffectiveTo) {
		return ErrValidation("effective_from must precede effective_to")
	}
	return nil
}

// RoundPoints collapses a raw fractional point figure to an integer per the
// version's rounding mode. Raw must be non-negative.
func (rv *RuleVersion) RoundPoints(raw float64) int64 {
	switch rv.EarningRoundMode {
	case RoundCeil:
		return int64(math.Ceil(raw))
	case RoundHalf:
		return int64(math.Floor(raw + 0.5))
	default:
		return int64(math.Floor(raw))
	}
}

// ─── Transaction Types ──────────────────────────────────────────────────────

// TransactionType is the business reason for a ledger entry.
type TransactionType string

const (
	TxEarn         TransactionType = "earn"
	TxRedeem       TransactionType = "redeem"
	TxManualCredit TransactionType = "manual_credit"
	TxManualDebit  TransactionType = "manual_debit"
	TxCorrection   TransactionType = "correction"
	TxPromotion    TransactionType = "promotion"
	TxExpiration   TransactionType = "expiration"
)

// CreditsBalance reports whether the type must carry positive points.
// Corrections may carry either sign.
func (t TransactionType) CreditsBalance() bool {
	return t == TxEarn || t == TxManualCredit || t == TxPromotion
}

// DebitsBalance reports whether the type must carry negative points.
func (t TransactionType) DebitsBalance() bool {
	return t == TxRedeem || t == TxManualDebit || t == TxExpiration
}

// AdjustmentType reports whether the type is a valid manual adjustment.
func (t TransactionType) AdjustmentType() bool {
	switch t {
	case TxManualCredit, TxManualDebit, TxCorrection, TxPromotion, TxExpiration:
		return true
	}
	return false
}

// Transaction is a single immutable row in the loyalty ledger.
// Points are signed: positive = credit, negative = debit.
// The resolved multiplier and rule version are snapshotted so historical
// entries stay reproducible as catalogs evolve.
type Transaction struct {
	ID                 string          `json:"id"`
	CustomerID         string          `json:"customer_id"`
	Type               TransactionType `json:"type"`
	Points             int64           `json:"points"`
	PointsBalanceAfter int64           `json:"points_balance_after"`
	ReferenceType      string          `json:"reference_type,omitempty"`
	ReferenceID        string          `json:"reference_id,omitempty"`
	OrderAmount        int64           `json:"order_amount,omitempty"`
	TierMultiplier     float64         `json:"tier_multiplier,omitempty"`
	RuleVersionID      int64           `json:"rule_version_id,omitempty"`
	Reason             string          `json:"reason,omitempty"`
	CreatedBy          string          `json:"created_by,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// ─── Operation Results ──────────────────────────────────────────────────────

// EarnResult reports the outcome of an earn operation.
type EarnResult struct {
	PointsEarned   int64   `json:"points_earned"`
	PointsBalance  int64   `json:"points_balance"`
	TierMultiplier float64 `json:"tier_multiplier"`
	TransactionID  string  `json:"transaction_id,omitempty"` // empty on zero-point no-op
	TierUpgraded   bool    `json:"tier_upgraded"`
	NewTierName    string  `json:"new_tier_name,omitempty"`
}

// RedemptionPreview is the advisory, non-mutating redemption quote.
type RedemptionPreview struct {
	MaxDiscountAmount   int64 `json:"max_discount_amount"`
	MaxRedeemablePoints int64 `json:"max_redeemable_points"`
	PointsToRedeem      int64 `json:"points_to_redeem"`
	DiscountAmount      int64 `json:"discount_amount"`
	PointsBalance       int64 `json:"points_balance"`
}

// RedeemResult reports the outcome of a committed redemption.
type RedeemResult struct {
	PointsRedeemed int64  `json:"points_redeemed"`
	DiscountAmount int64  `json:"discount_amount"`
	PointsBalance  int64  `json:"points_balance"`
	TransactionID  string `json:"transaction_id"`
}

// AdjustResult reports the outcome of a manual adjustment.
type AdjustResult struct {
	Points        int64  `json:"points"`
	PointsBalance int64  `json:"points_balance"`
	TransactionID string `json:"transaction_id"`
}

// ─── Reporting Types ────────────────────────────────────────────────────────

// SortField enumerates the member-listing sort keys.
type SortField string

const (
	SortByBalance   SortField = "points_balance"
	SortByLifetime  SortField = "points_earned_lifetime"
	SortBySpend     SortField = "total_spend"
	SortByCreatedAt SortField = "created_at"
)

// Valid reports whether the sort field is a known column.
func (s SortField) Valid() bool {
	switch s {
	case SortByBalance, SortByLifetime, SortBySpend, SortByCreatedAt:
		return true
	}
	return false
}

// Page is a bounded listing request.
type Page struct {
	Offset int
	Limit  int
}

// Clamp applies defaults and bounds to a page request.
func (p Page) Clamp() Page {
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Limit > 500 {
		p.Limit = 500
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// ProgramStats is the program-wide statistics snapshot.
type ProgramStats struct {
	TotalMembers        int64            `json:"total_members"`
	PointsIssuedTotal   int64            `json:"points_issued_total"`
	PointsRedeemedTotal int64            `json:"points_redeemed_total"`
	PointsOutstanding   int64            `json:"points_outstanding"`
	MembersByTier       map[string]int64 `json:"members_by_tier"`
	RecentTransactions  int64            `json:"recent_transactions"` // trailing 24h
}
