// Package rules manages versioned loyalty program configuration. Versions
// are immutable once effective: corrections are new versions, and at most
// one active version covers any instant.
package rules

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/perkly/perkly/internal/domain"
)

// Service is the rule version store.
type Service struct {
	store domain.RuleStore
	now   func() time.Time
}

// New creates a rule version service.
func New(store domain.RuleStore) *Service {
	return &Service{store: store, now: time.Now}
}

// SetClock overrides the service clock (tests only).
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// ActiveAt returns the rule version covering at. A missing version is a
// configuration gap, reported as ErrNoActiveRules — never a zero-rate
// default.
func (s *Service) ActiveAt(ctx context.Context, at time.Time) (*domain.RuleVersion, error) {
	return s.store.LoadActiveRuleVersion(ctx, at)
}

// Create validates and persists a new rule version. When the version is
// active, the previously active version covering its effective_from is
// closed at that instant so active intervals never overlap.
func (s *Service) Create(ctx context.Context, rv domain.RuleVersion) (*domain.RuleVersion, error) {
	now := s.now()
	if rv.EffectiveFrom.IsZero() {
		rv.EffectiveFrom = now
	}
	if err := rv.Validate(); err != nil {
		return nil, err
	}
	rv.CreatedAt = now

	if rv.IsActive {
		prev, err := s.store.LoadActiveRuleVersion(ctx, rv.EffectiveFrom)
		switch {
		case err == nil:
			if err := s.store.CloseRuleVersion(ctx, prev.ID, rv.EffectiveFrom); err != nil {
				return nil, fmt.Errorf("close previous rule version %d: %w", prev.ID, err)
			}
		case errors.Is(err, domain.ErrNoActiveRules):
			// first version, nothing to close
		default:
			return nil, err
		}
	}

	return s.store.InsertRuleVersion(ctx, &rv)
}

// List returns all rule versions, newest first.
func (s *Service) List(ctx context.Context) ([]domain.RuleVersion, error) {
	return s.store.ListRuleVersions(ctx)
}
