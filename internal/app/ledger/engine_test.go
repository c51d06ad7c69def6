package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/perkly/perkly/internal/domain"
	"github.com/perkly/perkly/internal/infra/memory"
)

// newTestEngine seeds a store with a standard program: 0.01 points per
// minor unit (floor), 100 minor units of discount per point, 50% order
// cap, 50-point redemption minimum, bronze/silver/gold ladder.
func newTestEngine(t *testing.T, mutate func(*domain.RuleVersion)) (*Engine, *memory.Store) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	rv := domain.RuleVersion{
		PointsPerCurrency:    0.01,
		EarningRoundMode:     domain.RoundFloor,
		RedemptionRate:       100,
		MaxRedemptionPercent: 50,
		MinRedemptionPoints:  50,
		TierEvaluationBasis:  domain.BasisLifetimePoints,
		IsActive:             true,
		EffectiveFrom:        time.Now().Add(-time.Hour),
	}
	if mutate != nil {
		mutate(&rv)
	}
	if _, err := store.InsertRuleVersion(ctx, &rv); err != nil {
		t.Fatalf("seed rules: %v", err)
	}

	for _, tier := range []domain.Tier{
		{Code: "bronze", Name: "Bronze", DisplayOrder: 1, MinPoints: 0, PointsMultiplier: 1, IsActive: true},
		{Code: "silver", Name: "Silver", DisplayOrder: 2, MinPoints: 1000, PointsMultiplier: 1.5, IsActive: true},
		{Code: "gold", Name: "Gold", DisplayOrder: 3, MinPoints: 5000, PointsMultiplier: 2, IsActive: true},
	} {
		if err := store.InsertTier(ctx, &tier); err != nil {
			t.Fatalf("seed tier %s: %v", tier.Code, err)
		}
	}

	return New(store), store
}

func seedAccount(t *testing.T, store *memory.Store, acct domain.Account) {
	t.Helper()
	acct.CreatedAt = time.Now()
	acct.UpdatedAt = acct.CreatedAt
	if err := store.SaveAccount(context.Background(), &acct); err != nil {
		t.Fatalf("seed account: %v", err)
	}
}

// ─── Earn ───────────────────────────────────────────────────────────────────

func TestEarn_FirstPurchase(t *testing.T) {
	engine, store := newTestEngine(t, nil)
	ctx := context.Background()

	res, err := engine.Earn(ctx, "cust-1", 1050, &OrderRef{Type: "order", ID: "ord-9"})
	if err != nil {
		t.Fatalf("Earn() error: %v", err)
	}
	if res.PointsEarned != 10 {
		t.Errorf("PointsEarned = %d, want 10 (floor of 10.5)", res.PointsEarned)
	}
	if res.PointsBalance != 10 {
		t.Errorf("PointsBalance = %d, want 10", res.PointsBalance)
	}
	if !res.TierUpgraded || res.NewTierName != "Bronze" {
		t.Errorf("first earn should land in Bronze, got upgraded=%v name=%q", res.TierUpgraded, res.NewTierName)
	}

	acct, err := store.LoadAccount(ctx, "cust-1")
	if err != nil {
		t.Fatalf("LoadAccount: %v", err)
	}
	if acct.PointsEarnedLifetime != 10 || acct.TotalSpend != 1050 {
		t.Errorf("lifetime=%d spend=%d, want 10/1050", acct.PointsEarnedLifetime, acct.TotalSpend)
	}

	txs := store.AllTransactions()
	if len(txs) != 1 {
		t.Fatalf("transaction count = %d, want 1", len(txs))
	}
	tx := txs[0]
	if tx.Type != domain.TxEarn || tx.Points != 10 || tx.PointsBalanceAfter != 10 {
		t.Errorf("transaction = %+v, want earn/+10/after 10", tx)
	}
	if tx.ReferenceType != "order" || tx.ReferenceID != "ord-9" {
		t.Errorf("order ref not recorded: %+v", tx)
	}
	if tx.TierMultiplier != 1 || tx.RuleVersionID == 0 {
		t.Errorf("multiplier/rule version not snapshotted: %+v", tx)
	}
}

func TestEarn_ZeroPointsIsNoop(t *testing.T) {
	engine, store := newTestEngine(t, nil)
	ctx := context.Background()

	res, err := engine.Earn(ctx, "cust-1", 50, nil) // 0.5 raw points, floors to 0
	if err != nil {
		t.Fatalf("Earn() error: %v", err)
	}
	if res.PointsEarned != 0 || res.TransactionID != "" {
		t.Errorf("zero-point earn should be a no-op, got %+v", res)
	}
	if len(store.AllTransactions()) != 0 {
		t.Error("no transaction should be recorded for a zero-point earn")
	}
	if _, err := store.LoadAccount(ctx, "cust-1"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Error("account should not be created by a no-op earn")
	}
}

func TestEarn_RoundModes(t *testing.T) {
	tests := []struct {
		mode domain.RoundMode
		want int64
	}{
		{domain.RoundFloor, 10},
		{domain.RoundHalf, 11},
		{domain.RoundCeil, 11},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			engine, _ := newTestEngine(t, func(rv *domain.RuleVersion) {
				rv.EarningRoundMode = tt.mode
			})
			res, err := engine.Earn(context.Background(), "cust-1", 1050, nil)
			if err != nil {
				t.Fatalf("Earn() error: %v", err)
			}
			if res.PointsEarned != tt.want {
				t.Errorf("mode %s: PointsEarned = %d, want %d", tt.mode, res.PointsEarned, tt.want)
			}
		})
	}
}

func TestEarn_TierMultiplierApplied(t *testing.T) {
	engine, store := newTestEngine(t, nil)
	seedAccount(t, store, domain.Account{
		CustomerID:           "cust-1",
		TierCode:             "silver",
		PointsBalance:        1000,
		PointsEarnedLifetime: 1000,
	})

	res, err := engine.Earn(context.Background(), "cust-1", 1000, nil)
	if err != nil {
		t.Fatalf("Earn() error: %v", err)
	}
	// 1000 × 0.01 × 1.5 = 15
	if res.PointsEarned != 15 {
		t.Errorf("PointsEarned = %d, want 15", res.PointsEarned)
	}
	if res.TierMultiplier != 1.5 {
		t.Errorf("TierMultiplier = %v, want 1.5", res.TierMultiplier)
	}
}

func TestEarn_TierUpgradeAtThreshold(t *testing.T) {
	engine, store := newTestEngine(t, nil)
	seedAccount(t, store, domain.Account{
		CustomerID:           "cust-1",
		TierCode:             "bronze",
		PointsBalance:        990,
		PointsEarnedLifetime: 990,
	})

	res, err := engine.Earn(context.Background(), "cust-1", 1000, nil) // +10 → lifetime 1000
	if err != nil {
		t.Fatalf("Earn() error: %v", err)
	}
	if !res.TierUpgraded || res.NewTierName != "Silver" {
		t.Errorf("expected Silver upgrade, got upgraded=%v name=%q", res.TierUpgraded, res.NewTierName)
	}

	acct, _ := store.LoadAccount(context.Background(), "cust-1")
	if acct.TierCode != "silver" || acct.TierUpdatedAt == nil {
		t.Errorf("tier not applied: %+v", acct)
	}
}

func TestEarn_StickyTier(t *testing.T) {
	// Lifetime points resolve to Silver, but the account holds Gold and
	// downgrades are disallowed: it must keep Gold.
	engine, store := newTestEngine(t, nil)
	seedAccount(t, store, domain.Account{
		CustomerID:           "cust-1",
		TierCode:             "gold",
		PointsBalance:        1200,
		PointsEarnedLifetime: 1200,
	})

	res, err := engine.Earn(context.Background(), "cust-1", 100, nil)
	if err != nil {
		t.Fatalf("Earn() error: %v", err)
	}
	if res.TierUpgraded {
		t.Error("no upgrade expected")
	}

	acct, _ := store.LoadAccount(context.Background(), "cust-1")
	if acct.TierCode != "gold" {
		t.Errorf("tier = %q, want gold (sticky)", acct.TierCode)
	}
	// Gold multiplier still applies while the tier is held.
	if res.TierMultiplier != 2 {
		t.Errorf("TierMultiplier = %v, want 2", res.TierMultiplier)
	}
}

func TestEarn_DowngradeWhenAllowed(t *testing.T) {
	engine, store := newTestEngine(t, func(rv *domain.RuleVersion) {
		rv.AllowTierDowngrade = true
	})
	seedAccount(t, store, domain.Account{
		CustomerID:           "cust-1",
		TierCode:             "gold",
		PointsBalance:        1200,
		PointsEarnedLifetime: 1200,
	})

	if _, err := engine.Earn(context.Background(), "cust-1", 100, nil); err != nil {
		t.Fatalf("Earn() error: %v", err)
	}
	acct, _ := store.LoadAccount(context.Background(), "cust-1")
	if acct.TierCode != "silver" {
		t.Errorf("tier = %q, want silver (downgrade allowed)", acct.TierCode)
	}
}

func TestEarn_NoActiveRules(t *testing.T) {
	store := memory.New()
	engine := New(store)

	_, err := engine.Earn(context.Background(), "cust-1", 1000, nil)
	if !errors.Is(err, domain.ErrNoActiveRules) {
		t.Errorf("Earn() error = %v, want ErrNoActiveRules", err)
	}
	if len(store.AllTransactions()) != 0 {
		t.Error("nothing may be persisted on a configuration gap")
	}
}

func TestEarn_Validation(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	if _, err := engine.Earn(context.Background(), "", 100, nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("empty customer: %v, want ErrInvalidInput", err)
	}
	if _, err := engine.Earn(context.Background(), "cust-1", -1, nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("negative amount: %v, want ErrInvalidInput", err)
	}
}

// ─── Redemption Preview ─────────────────────────────────────────────────────

func TestCalculateRedemption_Caps(t *testing.T) {
	engine, store := newTestEngine(t, nil)
	seedAccount(t, store, domain.Account{
		CustomerID:           "cust-1",
		PointsBalance:        10_000,
		PointsEarnedLifetime: 10_000,
	})

	// 500000 × 50% = 250000 max discount; / 100 = 2500 max points.
	p, err := engine.CalculateRedemption(context.Background(), "cust-1", 500_000, 0)
	if err != nil {
		t.Fatalf("CalculateRedemption() error: %v", err)
	}
	if p.MaxDiscountAmount != 250_000 {
		t.Errorf("MaxDiscountAmount = %d, want 250000", p.MaxDiscountAmount)
	}
	if p.MaxRedeemablePoints != 2500 {
		t.Errorf("MaxRedeemablePoints = %d, want 2500", p.MaxRedeemablePoints)
	}
	if p.PointsToRedeem != 2500 || p.DiscountAmount != 250_000 {
		t.Errorf("suggestion = %d pts / %d discount, want 2500/250000", p.PointsToRedeem, p.DiscountAmount)
	}
}

func TestCalculateRedemption_ClippedByBalance(t *testing.T) {
	engine, store := newTestEngine(t, nil)
	seedAccount(t, store, domain.Account{
		CustomerID:           "cust-1",
		PointsBalance:        1000,
		PointsEarnedLifetime: 1000,
	})

	p, err := engine.CalculateRedemption(context.Background(), "cust-1", 500_000, 0)
	if err != nil {
		t.Fatalf("CalculateRedemption() error: %v", err)
	}
	if p.MaxRedeemablePoints != 1000 {
		t.Errorf("MaxRedeemablePoints = %d, want 1000 (balance clip)", p.MaxRedeemablePoints)
	}
}

func TestCalculateRedemption_BelowProgramMinimum(t *testing.T) {
	engine, store := newTestEngine(t, nil)
	seedAccount(t, store, domain.Account{CustomerID: "cust-1", PointsBalance: 40})

	_, err := engine.CalculateRedemption(context.Background(), "cust-1", 100_000, 0)
	if !errors.Is(err, domain.ErrInsufficientPoints) {
		t.Errorf("error = %v, want ErrInsufficientPoints", err)
	}
}

func TestCalculateRedemption_UnknownCustomer(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	_, err := engine.CalculateRedemption(context.Background(), "ghost", 100_000, 0)
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("error = %v, want ErrAccountNotFound", err)
	}
}

func TestCalculateRedemption_DoesNotMutate(t *testing.T) {
	engine, store := newTestEngine(t, nil)
	seedAccount(t, store, domain.Account{CustomerID: "cust-1", PointsBalance: 1000})

	if _, err := engine.CalculateRedemption(context.Background(), "cust-1", 100_000, 100); err != nil {
		t.Fatalf("CalculateRedemption() error: %v", err)
	}
	acct, _ := store.LoadAccount(context.Background(), "cust-1")
	if acct.PointsBalance != 1000 || len(store.AllTransactions()) != 0 {
		t.Error("preview must not mutate state")
	}
}

// ─── Redeem ─────────────────────────────────────────────────────────────────

func TestRedeem_HappyPath(t *testing.T) {
	engine, store := newTestEngine(t, nil)
	seedAccount(t, store, domain.Account{
		CustomerID:           "cust-1",
		PointsBalance:        1000,
		PointsEarnedLifetime: 1000,
	})

	res, err := engine.Redeem(context.Background(), "cust-1", 100, 0, &OrderRef{Type: "order", ID: "ord-2"})
	if err != nil {
		t.Fatalf("Redeem() error: %v", err)
	}
	if res.DiscountAmount != 10_000 {
		t.Errorf("DiscountAmount = %d, want 10000", res.DiscountAmount)
	}
	if res.PointsBalance != 900 {
		t.Errorf("PointsBalance = %d, want 900", res.PointsBalance)
	}

	acct, _ := store.LoadAccount(context.Background(), "cust-1")
	if acct.PointsRedeemedLifetime != 100 {
		t.Errorf("redeemed lifetime = %d, want 100", acct.PointsRedeemedLifetime)
	}
	if acct.PointsEarnedLifetime != 1000 {
		t.Error("redeeming must not touch earned lifetime")
	}

	txs := store.AllTransactions()
	if len(txs) != 1 || txs[0].Points != -100 || txs[0].PointsBalanceAfter != 900 {
		t.Errorf("redeem transaction wrong: %+v", txs)
	}
}

func TestRedeem_BelowMinimumRejected(t *testing.T) {
	engine, store := newTestEngine(t, nil)
	seedAccount(t, store, domain.Account{CustomerID: "cust-1", PointsBalance: 1000})

	_, err := engine.Redeem(context.Background(), "cust-1", 10, 0, nil)
	if !errors.Is(err, domain.ErrInsufficientPoints) {
		t.Fatalf("error = %v, want ErrInsufficientPoints", err)
	}

	acct, _ := store.LoadAccount(context.Background(), "cust-1")
	if acct.PointsBalance != 1000 || len(store.AllTransactions()) != 0 {
		t.Error("rejected redeem must leave state unchanged")
	}
}

func TestRedeem_ExceedsBalanceRejected(t *testing.T) {
	engine, store := newTestEngine(t, nil)
	seedAccount(t, store, domain.Account{CustomerID: "cust-1", PointsBalance: 80})

	_, err := engine.Redeem(context.Background(), "cust-1", 100, 0, nil)
	if !errors.Is(err, domain.ErrInsufficientPoints) {
		t.Errorf("error = %v, want ErrInsufficientPoints", err)
	}
}

func TestRedeem_OrderCapEnforced(t *testing.T) {
	engine, store := newTestEngine(t, nil)
	seedAccount(t, store, domain.Account{CustomerID: "cust-1", PointsBalance: 10_000})

	// 10000 × 50% / 100 = 50 points max for this order.
	_, err := engine.Redeem(context.Background(), "cust-1", 60, 10_000, nil)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput (cap)", err)
	}

	if _, err := engine.Redeem(context.Background(), "cust-1", 50, 10_000, nil); err != nil {
		t.Errorf("at-cap redeem should succeed: %v", err)
	}
}

func TestRedeem_NeverDowngradesTier(t *testing.T) {
	engine, store := newTestEngine(t, func(rv *domain.RuleVersion) {
		rv.AllowTierDowngrade = true
	})
	seedAccount(t, store, domain.Account{
		CustomerID:           "cust-1",
		TierCode:             "gold",
		PointsBalance:        6000,
		PointsEarnedLifetime: 6000,
	})

	if _, err := engine.Redeem(context.Background(), "cust-1", 5000, 0, nil); err != nil {
		t.Fatalf("Redeem() error: %v", err)
	}
	acct, _ := store.LoadAccount(context.Background(), "cust-1")
	if acct.TierCode != "gold" {
		t.Errorf("tier = %q, want gold: redemption never re-evaluates tiers", acct.TierCode)
	}
}

// ─── Adjust ─────────────────────────────────────────────────────────────────

func TestAdjust_CreditAndDebit(t *testing.T) {
	engine, store := newTestEngine(t, nil)
	ctx := context.Background()

	res, err := engine.Adjust(ctx, "cust-1", 100, domain.TxManualCredit, "goodwill", "admin-7")
	if err != nil {
		t.Fatalf("Adjust(credit) error: %v", err)
	}
	if res.PointsBalance != 100 {
		t.Errorf("balance = %d, want 100", res.PointsBalance)
	}

	if _, err := engine.Adjust(ctx, "cust-1", -40, domain.TxManualDebit, "fraud reversal", "admin-7"); err != nil {
		t.Fatalf("Adjust(debit) error: %v", err)
	}

	acct, _ := store.LoadAccount(ctx, "cust-1")
	if acct.PointsBalance != 60 {
		t.Errorf("balance = %d, want 60", acct.PointsBalance)
	}
	// Adjustments touch the current balance only.
	if acct.PointsEarnedLifetime != 0 || acct.PointsRedeemedLifetime != 0 {
		t.Errorf("lifetime counters must be untouched: %+v", acct)
	}

	txs := store.AllTransactions()
	if len(txs) != 2 || txs[0].CreatedBy != "admin-7" || txs[0].Reason != "goodwill" {
		t.Errorf("adjustment transactions wrong: %+v", txs)
	}
}

func TestAdjust_NegativeBalanceRejected(t *testing.T) {
	engine, store := newTestEngine(t, nil)
	seedAccount(t, store, domain.Account{CustomerID: "cust-1", PointsBalance: 30})

	_, err := engine.Adjust(context.Background(), "cust-1", -50, domain.TxExpiration, "points expired", "")
	if !errors.Is(err, domain.ErrInvalidAdjustment) {
		t.Fatalf("error = %v, want ErrInvalidAdjustment", err)
	}
	acct, _ := store.LoadAccount(context.Background(), "cust-1")
	if acct.PointsBalance != 30 {
		t.Error("rejected adjustment must leave the balance unchanged")
	}
}

func TestAdjust_SignValidation(t *testing.T) {
	engine, _ := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := engine.Adjust(ctx, "c", -5, domain.TxManualCredit, "r", ""); !errors.Is(err, domain.ErrInvalidAdjustment) {
		t.Errorf("negative credit: %v, want ErrInvalidAdjustment", err)
	}
	if _, err := engine.Adjust(ctx, "c", 5, domain.TxExpiration, "r", ""); !errors.Is(err, domain.ErrInvalidAdjustment) {
		t.Errorf("positive expiration: %v, want ErrInvalidAdjustment", err)
	}
	if _, err := engine.Adjust(ctx, "c", 5, domain.TxEarn, "r", ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("earn is not an adjustment type: %v, want ErrInvalidInput", err)
	}
	if _, err := engine.Adjust(ctx, "c", 5, domain.TxManualCredit, "", ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("missing reason: %v, want ErrInvalidInput", err)
	}
}

func TestAdjust_DoesNotChangeTier(t *testing.T) {
	engine, store := newTestEngine(t, func(rv *domain.RuleVersion) {
		rv.AllowTierDowngrade = true
	})
	seedAccount(t, store, domain.Account{
		CustomerID:           "cust-1",
		TierCode:             "bronze",
		PointsBalance:        100,
		PointsEarnedLifetime: 100,
	})

	// A large credit would qualify for silver if adjustments re-evaluated
	// tiers; they do not.
	if _, err := engine.Adjust(context.Background(), "cust-1", 5000, domain.TxPromotion, "campaign", ""); err != nil {
		t.Fatalf("Adjust() error: %v", err)
	}
	acct, _ := store.LoadAccount(context.Background(), "cust-1")
	if acct.TierCode != "bronze" {
		t.Errorf("tier = %q, want bronze", acct.TierCode)
	}
}

// ─── Ledger Properties ──────────────────────────────────────────────────────

// Replaying the full ledger from zero must reproduce the stored balance,
// and every snapshot must match the running fold.
func TestBalanceReconciliation(t *testing.T) {
	engine, store := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := engine.Earn(ctx, "cust-1", 50_000, nil); err != nil { // +500
		t.Fatal(err)
	}
	if _, err := engine.Redeem(ctx, "cust-1", 200, 0, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Adjust(ctx, "cust-1", 75, domain.TxPromotion, "campaign", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Adjust(ctx, "cust-1", -25, domain.TxExpiration, "expired", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Earn(ctx, "cust-1", 10_000, nil); err != nil { // +100
		t.Fatal(err)
	}

	var running int64
	for _, tx := range store.AllTransactions() {
		running += tx.Points
		if tx.PointsBalanceAfter != running {
			t.Errorf("tx %s: snapshot %d != fold %d", tx.ID, tx.PointsBalanceAfter, running)
		}
	}

	acct, _ := store.LoadAccount(ctx, "cust-1")
	if acct.PointsBalance != running {
		t.Errorf("stored balance %d != replayed %d", acct.PointsBalance, running)
	}
	if acct.PointsBalance < 0 {
		t.Error("balance must never be negative")
	}
	if acct.PointsEarnedLifetime != 600 || acct.PointsRedeemedLifetime != 200 {
		t.Errorf("lifetime counters = %d/%d, want 600/200", acct.PointsEarnedLifetime, acct.PointsRedeemedLifetime)
	}
}

func TestLifetimeCountersMonotonic(t *testing.T) {
	engine, store := newTestEngine(t, nil)
	ctx := context.Background()

	var lastEarned, lastRedeemed int64
	step := func() {
		acct, err := store.LoadAccount(ctx, "cust-1")
		if errors.Is(err, domain.ErrAccountNotFound) {
			return
		}
		if acct.PointsEarnedLifetime < lastEarned || acct.PointsRedeemedLifetime < lastRedeemed {
			t.Fatalf("lifetime counters decreased: %d<%d or %d<%d",
				acct.PointsEarnedLifetime, lastEarned, acct.PointsRedeemedLifetime, lastRedeemed)
		}
		lastEarned, lastRedeemed = acct.PointsEarnedLifetime, acct.PointsRedeemedLifetime
	}

	engine.Earn(ctx, "cust-1", 30_000, nil)
	step()
	engine.Redeem(ctx, "cust-1", 100, 0, nil)
	step()
	engine.Adjust(ctx, "cust-1", -50, domain.TxManualDebit, "ops", "")
	step()
	engine.Earn(ctx, "cust-1", 5_000, nil)
	step()
}

// Two simultaneous earns on one account must both land: no lost update,
// two distinct transactions with correctly ordered balance snapshots.
func TestConcurrentEarns(t *testing.T) {
	engine, store := newTestEngine(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := engine.Earn(ctx, "cust-1", 10_000, nil); err != nil { // +100 each
				t.Errorf("concurrent Earn() error: %v", err)
			}
		}()
	}
	wg.Wait()

	acct, err := store.LoadAccount(ctx, "cust-1")
	if err != nil {
		t.Fatalf("LoadAccount: %v", err)
	}
	if acct.PointsBalance != 200 {
		t.Errorf("balance = %d, want 200 (no lost update)", acct.PointsBalance)
	}

	txs := store.AllTransactions()
	if len(txs) != 2 {
		t.Fatalf("transaction count = %d, want 2", len(txs))
	}
	if txs[0].ID == txs[1].ID {
		t.Error("transactions must be distinct")
	}
	if txs[0].PointsBalanceAfter != 100 || txs[1].PointsBalanceAfter != 200 {
		t.Errorf("snapshots = %d,%d, want 100,200", txs[0].PointsBalanceAfter, txs[1].PointsBalanceAfter)
	}
}

func TestConcurrentMixedOperations(t *testing.T) {
	engine, store := newTestEngine(t, nil)
	ctx := context.Background()
	seedAccount(t, store, domain.Account{
		CustomerID:           "cust-1",
		PointsBalance:        1000,
		PointsEarnedLifetime: 1000,
	})

	var wg sync.WaitGroup
	ops := []func(){
		func() { engine.Earn(ctx, "cust-1", 10_000, nil) },
		func() { engine.Redeem(ctx, "cust-1", 100, 0, nil) },
		func() { engine.Adjust(ctx, "cust-1", 50, domain.TxPromotion, "campaign", "") },
		func() { engine.Earn(ctx, "cust-2", 10_000, nil) },
	}
	for _, op := range ops {
		wg.Add(1)
		go func(f func()) {
			defer wg.Done()
			f()
		}(op)
	}
	wg.Wait()

	// Whatever the interleaving, the fold must reconcile.
	balances := map[string]int64{"cust-1": 0, "cust-2": 0}
	for _, tx := range store.AllTransactions() {
		balances[tx.CustomerID] += tx.Points
	}
	acct1, _ := store.LoadAccount(ctx, "cust-1")
	if acct1.PointsBalance != 1000+balances["cust-1"] {
		t.Errorf("cust-1 balance %d != seed+fold %d", acct1.PointsBalance, 1000+balances["cust-1"])
	}
	acct2, _ := store.LoadAccount(ctx, "cust-2")
	if acct2.PointsBalance != balances["cust-2"] {
		t.Errorf("cust-2 balance %d != fold %d", acct2.PointsBalance, balances["cust-2"])
	}
}
