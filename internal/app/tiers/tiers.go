// Package tiers manages the membership tier catalog: an ordered ladder of
// levels, each gating a points multiplier behind a qualification threshold.
//
// Threshold fields are immutable once a tier is referenced by history;
// only name, benefits, and the active flag may change afterwards. Strictly
// increasing thresholds along display order are an administrative
// guarantee, not enforced here.
package tiers

import (
	"context"
	"time"

	"github.com/perkly/perkly/internal/domain"
)

// Service is the tier catalog.
type Service struct {
	store domain.TierStore
}

// New creates a tier catalog service.
func New(store domain.TierStore) *Service {
	return &Service{store: store}
}

// Resolve returns the highest qualifying tier for the evaluation value, or
// nil when none qualify.
func (s *Service) Resolve(ctx context.Context, value int64, basis domain.EvaluationBasis) (*domain.Tier, error) {
	catalog, err := s.store.LoadTierCatalog(ctx)
	if err != nil {
		return nil, err
	}
	return domain.ResolveTier(catalog, value, basis), nil
}

// List returns the full catalog ordered by display order.
func (s *Service) List(ctx context.Context) ([]domain.Tier, error) {
	return s.store.LoadTierCatalog(ctx)
}

// Create validates and persists a new tier.
func (s *Service) Create(ctx context.Context, t domain.Tier) (*domain.Tier, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if err := s.store.InsertTier(ctx, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Update describes a patch to a tier's non-threshold fields. Nil fields
// are left untouched.
type Update struct {
	Name     *string
	Benefits map[string]string
	IsActive *bool
}

// Update applies non-threshold changes to an existing tier. Thresholds and
// multipliers stay fixed so historical transactions keep their recorded
// economics.
func (s *Service) Update(ctx context.Context, code string, upd Update) (*domain.Tier, error) {
	t, err := s.store.GetTier(ctx, code)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		if *upd.Name == "" {
			return nil, domain.ErrValidation("tier name is required")
		}
		t.Name = *upd.Name
	}
	if upd.Benefits != nil {
		t.Benefits = upd.Benefits
	}
	if upd.IsActive != nil {
		t.IsActive = *upd.IsActive
	}
	if err := s.store.UpdateTier(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}
