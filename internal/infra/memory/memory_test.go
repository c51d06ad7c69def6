package memory

import (
	"context"
	"testing"
	"time"

	"github.com/perkly/perkly/internal/domain"
)

func TestLoadActiveRuleVersion_TieBreak(t *testing.T) {
	store := New()
	ctx := context.Background()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	rv := domain.RuleVersion{
		PointsPerCurrency:    0.01,
		EarningRoundMode:     domain.RoundFloor,
		RedemptionRate:       100,
		MaxRedemptionPercent: 50,
		MinRedemptionPoints:  50,
		TierEvaluationBasis:  domain.BasisLifetimePoints,
		IsActive:             true,
		EffectiveFrom:        from,
		CreatedAt:            from,
	}
	first, err := store.InsertRuleVersion(ctx, &rv)
	if err != nil {
		t.Fatal(err)
	}
	second, err := store.InsertRuleVersion(ctx, &rv)
	if err != nil {
		t.Fatal(err)
	}
	if second.ID <= first.ID {
		t.Fatalf("IDs not increasing: %d then %d", first.ID, second.ID)
	}

	// Identical effective_from: the later insert wins, same as the
	// sqlite store's effective_from DESC, id DESC ordering.
	got, err := store.LoadActiveRuleVersion(ctx, from.Add(time.Minute))
	if err != nil {
		t.Fatalf("LoadActiveRuleVersion(): %v", err)
	}
	if got.ID != second.ID {
		t.Errorf("resolved version %d, want %d", got.ID, second.ID)
	}

	// A later effective_from still beats a higher ID.
	older := rv
	older.EffectiveFrom = from.Add(-time.Hour)
	if _, err := store.InsertRuleVersion(ctx, &older); err != nil {
		t.Fatal(err)
	}
	got, err = store.LoadActiveRuleVersion(ctx, from.Add(time.Minute))
	if err != nil {
		t.Fatalf("LoadActiveRuleVersion(): %v", err)
	}
	if got.ID != second.ID {
		t.Errorf("resolved version %d, want %d", got.ID, second.ID)
	}
}
