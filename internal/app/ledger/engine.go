// Package ledger implements the transactional core of the loyalty program:
// point earning, redemption, manual adjustment, and tier transitions.
//
// Every mutating operation is one atomic unit — validate, compute, append
// one immutable transaction, update the account snapshot — serialized per
// customer. On any failure path nothing is persisted.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/perkly/perkly/internal/domain"
	"github.com/perkly/perkly/internal/infra/observability"
)

// OrderRef links a ledger operation to the originating order or service.
type OrderRef struct {
	Type string // e.g. "order", "service"
	ID   string
}

// Engine is the loyalty ledger engine. It owns all writes to accounts and
// transactions; rule versions and tiers are consumed read-only.
type Engine struct {
	repo  domain.Repository
	locks *keyedMutex
	now   func() time.Time
}

// New creates a ledger engine backed by the given repository.
func New(repo domain.Repository) *Engine {
	return &Engine{
		repo:  repo,
		locks: newKeyedMutex(),
		now:   time.Now,
	}
}

// SetClock overrides the engine clock (tests only).
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// ─── Earn ───────────────────────────────────────────────────────────────────

// Earn credits points for a purchase of amount minor units. The account is
// created lazily on first earn. Zero-point results (after rounding) are a
// no-op: no transaction is recorded and the account is untouched.
func (e *Engine) Earn(ctx context.Context, customerID string, amount int64, ref *OrderRef) (*domain.EarnResult, error) {
	if customerID == "" {
		return nil, domain.ErrValidation("customer_id is required")
	}
	if amount < 0 {
		return nil, domain.ErrValidation("amount must be >= 0")
	}

	e.locks.Lock(customerID)
	defer e.locks.Unlock(customerID)

	now := e.now()
	rules, err := e.repo.LoadActiveRuleVersion(ctx, now)
	if err != nil {
		observability.RecordOperation("earn", "error")
		return nil, err
	}
	catalog, err := e.repo.LoadTierCatalog(ctx)
	if err != nil {
		observability.RecordOperation("earn", "error")
		return nil, err
	}

	acct, err := e.loadOrCreateAccount(ctx, customerID, now)
	if err != nil {
		observability.RecordOperation("earn", "error")
		return nil, err
	}

	multiplier := 1.0
	if acct.TierCode != "" {
		if t := tierByCode(catalog, acct.TierCode); t != nil {
			multiplier = t.PointsMultiplier
		}
	}

	points := rules.RoundPoints(float64(amount) * rules.PointsPerCurrency * multiplier)
	if points <= 0 {
		observability.RecordOperation("earn", "noop")
		return &domain.EarnResult{
			PointsBalance:  acct.PointsBalance,
			TierMultiplier: multiplier,
		}, nil
	}

	acct.PointsBalance += points
	acct.PointsEarnedLifetime += points
	acct.TotalSpend += amount
	acct.UpdatedAt = now

	tx := &domain.Transaction{
		ID:                 uuid.NewString(),
		CustomerID:         customerID,
		Type:               domain.TxEarn,
		Points:             points,
		PointsBalanceAfter: acct.PointsBalance,
		OrderAmount:        amount,
		TierMultiplier:     multiplier,
		RuleVersionID:      rules.ID,
		CreatedAt:          now,
	}
	if ref != nil {
		tx.ReferenceType = ref.Type
		tx.ReferenceID = ref.ID
	}

	upgraded, newTier := e.evaluateTier(acct, catalog, rules, now)

	if err := e.repo.CommitEntry(ctx, acct, tx); err != nil {
		observability.RecordOperation("earn", "error")
		return nil, fmt.Errorf("commit earn: %w", err)
	}

	observability.RecordOperation("earn", "ok")
	observability.AddPointsIssued(points)
	if upgraded {
		observability.RecordTierTransition()
	}

	res := &domain.EarnResult{
		PointsEarned:   points,
		PointsBalance:  acct.PointsBalance,
		TierMultiplier: multiplier,
		TransactionID:  tx.ID,
		TierUpgraded:   upgraded,
	}
	if newTier != nil {
		res.NewTierName = newTier.Name
	}
	return res, nil
}

// evaluateTier re-resolves the account's tier after an earn and applies the
// transition policy: upgrades always apply; downgrades only when the active
// rules allow them ("sticky" tiers otherwise). Returns whether the account
// moved to a higher tier and the tier it now holds (nil if none).
func (e *Engine) evaluateTier(acct *domain.Account, catalog []domain.Tier, rules *domain.RuleVersion, now time.Time) (bool, *domain.Tier) {
	resolved := domain.ResolveTier(catalog, acct.EvaluationValue(rules.TierEvaluationBasis), rules.TierEvaluationBasis)

	current := tierByCode(catalog, acct.TierCode)
	currentOrder := -1
	if current != nil {
		currentOrder = current.DisplayOrder
	}

	if resolved == nil {
		if current != nil && rules.AllowTierDowngrade {
			acct.TierCode = ""
			acct.TierUpdatedAt = &now
		}
		return false, current
	}
	if resolved.Code == acct.TierCode {
		return false, resolved
	}

	higher := resolved.DisplayOrder > currentOrder
	if !higher && !rules.AllowTierDowngrade {
		return false, current
	}

	acct.TierCode = resolved.Code
	acct.TierUpdatedAt = &now
	return higher, resolved
}

// ─── Redemption ─────────────────────────────────────────────────────────────

// CalculateRedemption quotes a redemption without mutating state. The quote
// is advisory: Redeem re-validates at commit time. If pointsToRedeem is 0,
// the maximum redeemable quantity is suggested.
func (e *Engine) CalculateRedemption(ctx context.Context, customerID string, orderAmount, pointsToRedeem int64) (*domain.RedemptionPreview, error) {
	if customerID == "" {
		return nil, domain.ErrValidation("customer_id is required")
	}
	if orderAmount < 0 {
		return nil, domain.ErrValidation("order_amount must be >= 0")
	}
	if pointsToRedeem < 0 {
		return nil, domain.ErrValidation("points_to_redeem must be >= 0")
	}

	rules, err := e.repo.LoadActiveRuleVersion(ctx, e.now())
	if err != nil {
		return nil, err
	}
	acct, err := e.repo.LoadAccount(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if acct.PointsBalance < rules.MinRedemptionPoints {
		return nil, fmt.Errorf("%w: balance %d below minimum %d",
			domain.ErrInsufficientPoints, acct.PointsBalance, rules.MinRedemptionPoints)
	}

	maxDiscount := orderAmount * int64(rules.MaxRedemptionPercent) / 100
	maxPoints := maxDiscount / rules.RedemptionRate
	if maxPoints > acct.PointsBalance {
		maxPoints = acct.PointsBalance
	}

	points := pointsToRedeem
	if points == 0 {
		points = maxPoints
	} else {
		if err := validateRedeemQuantity(points, maxPoints, acct.PointsBalance, rules); err != nil {
			return nil, err
		}
	}

	return &domain.RedemptionPreview{
		MaxDiscountAmount:   maxDiscount,
		MaxRedeemablePoints: maxPoints,
		PointsToRedeem:      points,
		DiscountAmount:      points * rules.RedemptionRate,
		PointsBalance:       acct.PointsBalance,
	}, nil
}

func validateRedeemQuantity(points, maxPoints, balance int64, rules *domain.RuleVersion) error {
	if points < rules.MinRedemptionPoints {
		return fmt.Errorf("%w: %d points below minimum %d",
			domain.ErrInsufficientPoints, points, rules.MinRedemptionPoints)
	}
	if points > balance {
		return fmt.Errorf("%w: %d points requested, balance is %d",
			domain.ErrInsufficientPoints, points, balance)
	}
	if points > maxPoints {
		return domain.ErrValidation(
			fmt.Sprintf("%d points exceed the redemption cap of %d for this order", points, maxPoints))
	}
	return nil
}

// Redeem converts points into a discount amount. Constraints are validated
// at execution time against the current balance — a stale preview does not
// reserve points. When orderAmount is supplied (> 0) the percentage cap is
// enforced as well. Tier is never re-evaluated by a redemption.
func (e *Engine) Redeem(ctx context.Context, customerID string, points, orderAmount int64, ref *OrderRef) (*domain.RedeemResult, error) {
	if customerID == "" {
		return nil, domain.ErrValidation("customer_id is required")
	}
	if points <= 0 {
		return nil, domain.ErrValidation("points must be > 0")
	}
	if orderAmount < 0 {
		return nil, domain.ErrValidation("order_amount must be >= 0")
	}

	e.locks.Lock(customerID)
	defer e.locks.Unlock(customerID)

	now := e.now()
	rules, err := e.repo.LoadActiveRuleVersion(ctx, now)
	if err != nil {
		observability.RecordOperation("redeem", "error")
		return nil, err
	}
	acct, err := e.repo.LoadAccount(ctx, customerID)
	if err != nil {
		observability.RecordOperation("redeem", "error")
		return nil, err
	}

	maxPoints := acct.PointsBalance
	if orderAmount > 0 {
		if capped := orderAmount * int64(rules.MaxRedemptionPercent) / 100 / rules.RedemptionRate; capped < maxPoints {
			maxPoints = capped
		}
	}
	if err := validateRedeemQuantity(points, maxPoints, acct.PointsBalance, rules); err != nil {
		observability.RecordOperation("redeem", "rejected")
		return nil, err
	}

	acct.PointsBalance -= points
	acct.PointsRedeemedLifetime += points
	acct.UpdatedAt = now

	tx := &domain.Transaction{
		ID:                 uuid.NewString(),
		CustomerID:         customerID,
		Type:               domain.TxRedeem,
		Points:             -points,
		PointsBalanceAfter: acct.PointsBalance,
		OrderAmount:        orderAmount,
		RuleVersionID:      rules.ID,
		CreatedAt:          now,
	}
	if ref != nil {
		tx.ReferenceType = ref.Type
		tx.ReferenceID = ref.ID
	}

	if err := e.repo.CommitEntry(ctx, acct, tx); err != nil {
		observability.RecordOperation("redeem", "error")
		return nil, fmt.Errorf("commit redeem: %w", err)
	}

	observability.RecordOperation("redeem", "ok")
	observability.AddPointsRedeemed(points)

	return &domain.RedeemResult{
		PointsRedeemed: points,
		DiscountAmount: points * rules.RedemptionRate,
		PointsBalance:  acct.PointsBalance,
		TransactionID:  tx.ID,
	}, nil
}

// ─── Adjust ─────────────────────────────────────────────────────────────────

// Adjust applies a manual administrative credit, debit, correction,
// promotion, or expiration. Points are signed per the adjustment type;
// corrections may carry either sign. Adjustments touch the current balance
// only — lifetime counters stay put and tiers are never re-evaluated.
func (e *Engine) Adjust(ctx context.Context, customerID string, points int64, adjType domain.TransactionType, reason, actor string) (*domain.AdjustResult, error) {
	if customerID == "" {
		return nil, domain.ErrValidation("customer_id is required")
	}
	if !adjType.AdjustmentType() {
		return nil, domain.ErrValidation(fmt.Sprintf("%q is not an adjustment type", adjType))
	}
	if points == 0 {
		return nil, domain.ErrValidation("points must be non-zero")
	}
	if reason == "" {
		return nil, domain.ErrValidation("reason is required")
	}
	if adjType.CreditsBalance() && points < 0 {
		return nil, fmt.Errorf("%w: %s requires positive points", domain.ErrInvalidAdjustment, adjType)
	}
	if adjType.DebitsBalance() && points > 0 {
		return nil, fmt.Errorf("%w: %s requires negative points", domain.ErrInvalidAdjustment, adjType)
	}

	e.locks.Lock(customerID)
	defer e.locks.Unlock(customerID)

	now := e.now()
	acct, err := e.loadOrCreateAccount(ctx, customerID, now)
	if err != nil {
		observability.RecordOperation("adjust", "error")
		return nil, err
	}
	if acct.PointsBalance+points < 0 {
		observability.RecordOperation("adjust", "rejected")
		return nil, fmt.Errorf("%w: balance %d cannot absorb %d",
			domain.ErrInvalidAdjustment, acct.PointsBalance, points)
	}

	acct.PointsBalance += points
	acct.UpdatedAt = now

	tx := &domain.Transaction{
		ID:                 uuid.NewString(),
		CustomerID:         customerID,
		Type:               adjType,
		Points:             points,
		PointsBalanceAfter: acct.PointsBalance,
		Reason:             reason,
		CreatedBy:          actor,
		CreatedAt:          now,
	}

	if err := e.repo.CommitEntry(ctx, acct, tx); err != nil {
		observability.RecordOperation("adjust", "error")
		return nil, fmt.Errorf("commit adjustment: %w", err)
	}

	observability.RecordOperation("adjust", "ok")

	return &domain.AdjustResult{
		Points:        points,
		PointsBalance: acct.PointsBalance,
		TransactionID: tx.ID,
	}, nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func (e *Engine) loadOrCreateAccount(ctx context.Context, customerID string, now time.Time) (*domain.Account, error) {
	acct, err := e.repo.LoadAccount(ctx, customerID)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}
	return &domain.Account{
		CustomerID: customerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func tierByCode(catalog []domain.Tier, code string) *domain.Tier {
	if code == "" {
		return nil
	}
	for i := range catalog {
		if catalog[i].Code == code {
			return &catalog[i]
		}
	}
	return nil
}
