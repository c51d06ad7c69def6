// Package memory is a mutex-guarded, map-backed implementation of the
// persistence interfaces. It backs tests and the daemon's --memory mode;
// semantics mirror the sqlite store exactly.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/perkly/perkly/internal/domain"
)

// Store holds all program state in process memory.
type Store struct {
	mu           sync.RWMutex
	accounts     map[string]domain.Account
	transactions []domain.Transaction // creation order
	rules        []domain.RuleVersion
	tiers        map[string]domain.Tier
	nextRuleID   int64
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		accounts:   make(map[string]domain.Account),
		tiers:      make(map[string]domain.Tier),
		nextRuleID: 1,
	}
}

// ─── Repository ─────────────────────────────────────────────────────────────

// LoadAccount returns a copy of the stored account.
func (s *Store) LoadAccount(ctx context.Context, customerID string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[customerID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &acct, nil
}

// SaveAccount inserts or replaces the account snapshot.
func (s *Store) SaveAccount(ctx context.Context, acct *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[acct.CustomerID] = *acct
	return nil
}

// AppendTransaction adds one immutable ledger row.
func (s *Store) AppendTransaction(ctx context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append(s.transactions, *tx)
	return nil
}

// CommitEntry persists the account and transaction together. Under one
// mutex hold the pair is atomic by construction.
func (s *Store) CommitEntry(ctx context.Context, acct *domain.Account, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[acct.CustomerID] = *acct
	s.transactions = append(s.transactions, *tx)
	return nil
}

// LoadActiveRuleVersion resolves the active version covering at; ties on
// coverage break toward the latest effective_from, then the highest ID.
func (s *Store) LoadActiveRuleVersion(ctx context.Context, at time.Time) (*domain.RuleVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *domain.RuleVersion
	for i := range s.rules {
		rv := &s.rules[i]
		if !rv.IsActive || !rv.Covers(at) {
			continue
		}
		if best == nil || rv.EffectiveFrom.After(best.EffectiveFrom) ||
			(rv.EffectiveFrom.Equal(best.EffectiveFrom) && rv.ID > best.ID) {
			best = rv
		}
	}
	if best == nil {
		return nil, domain.ErrNoActiveRules
	}
	out := *best
	return &out, nil
}

// LoadTierCatalog returns all tiers ordered by display order.
func (s *Store) LoadTierCatalog(ctx context.Context) ([]domain.Tier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Tier, 0, len(s.tiers))
	for _, t := range s.tiers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

// ─── RuleStore ──────────────────────────────────────────────────────────────

// InsertRuleVersion assigns an ID and stores the version.
func (s *Store) InsertRuleVersion(ctx context.Context, rv *domain.RuleVersion) (*domain.RuleVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *rv
	stored.ID = s.nextRuleID
	s.nextRuleID++
	s.rules = append(s.rules, stored)
	out := stored
	return &out, nil
}

// CloseRuleVersion sets effective_to on the given version.
func (s *Store) CloseRuleVersion(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.rules {
		if s.rules[i].ID == id {
			end := at
			s.rules[i].EffectiveTo = &end
			return nil
		}
	}
	return domain.ErrRulesNotFound
}

// ListRuleVersions returns all versions, newest effective_from first.
func (s *Store) ListRuleVersions(ctx context.Context) ([]domain.RuleVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.RuleVersion, len(s.rules))
	copy(out, s.rules)
	sort.Slice(out, func(i, j int) bool { return out[i].EffectiveFrom.After(out[j].EffectiveFrom) })
	return out, nil
}

// ─── TierStore ──────────────────────────────────────────────────────────────

// GetTier returns a tier by code.
func (s *Store) GetTier(ctx context.Context, code string) (*domain.Tier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tiers[code]
	if !ok {
		return nil, domain.ErrTierNotFound
	}
	return &t, nil
}

// InsertTier stores a new tier; the code must be unused.
func (s *Store) InsertTier(ctx context.Context, t *domain.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tiers[t.Code]; ok {
		return domain.ErrValidation("tier code already exists: " + t.Code)
	}
	s.tiers[t.Code] = *t
	return nil
}

// UpdateTier replaces an existing tier.
func (s *Store) UpdateTier(ctx context.Context, t *domain.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tiers[t.Code]; !ok {
		return domain.ErrTierNotFound
	}
	s.tiers[t.Code] = *t
	return nil
}

// ─── ReportingStore ─────────────────────────────────────────────────────────

// ListAccounts pages through accounts filtered by customer ID substring.
func (s *Store) ListAccounts(ctx context.Context, search string, sortBy domain.SortField, desc bool, page domain.Page) ([]domain.Account, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []domain.Account
	for _, a := range s.accounts {
		if search != "" && !strings.Contains(a.CustomerID, search) {
			continue
		}
		all = append(all, a)
	}

	sort.Slice(all, func(i, j int) bool {
		var less bool
		switch sortBy {
		case domain.SortByBalance:
			less = all[i].PointsBalance < all[j].PointsBalance
		case domain.SortBySpend:
			less = all[i].TotalSpend < all[j].TotalSpend
		case domain.SortByCreatedAt:
			less = all[i].CreatedAt.Before(all[j].CreatedAt)
		default:
			less = all[i].PointsEarnedLifetime < all[j].PointsEarnedLifetime
		}
		if desc {
			return !less
		}
		return less
	})

	total := int64(len(all))
	page = page.Clamp()
	if page.Offset >= len(all) {
		return nil, total, nil
	}
	end := page.Offset + page.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[page.Offset:end], total, nil
}

// ListTransactions pages through one customer's history, newest first.
func (s *Store) ListTransactions(ctx context.Context, customerID string, page domain.Page) ([]domain.Transaction, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []domain.Transaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		if s.transactions[i].CustomerID == customerID {
			all = append(all, s.transactions[i])
		}
	}

	total := int64(len(all))
	page = page.Clamp()
	if page.Offset >= len(all) {
		return nil, total, nil
	}
	end := page.Offset + page.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[page.Offset:end], total, nil
}

// ProgramStats aggregates the program-wide snapshot.
func (s *Store) ProgramStats(ctx context.Context, recentWindow time.Duration) (*domain.ProgramStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &domain.ProgramStats{MembersByTier: make(map[string]int64)}
	for _, a := range s.accounts {
		stats.TotalMembers++
		stats.PointsIssuedTotal += a.PointsEarnedLifetime
		stats.PointsRedeemedTotal += a.PointsRedeemedLifetime
		stats.PointsOutstanding += a.PointsBalance
		if a.TierCode != "" {
			stats.MembersByTier[a.TierCode]++
		}
	}
	cutoff := time.Now().Add(-recentWindow)
	for i := range s.transactions {
		if s.transactions[i].CreatedAt.After(cutoff) {
			stats.RecentTransactions++
		}
	}
	return stats, nil
}

// ─── Test Helpers ───────────────────────────────────────────────────────────

// AllTransactions returns the full ledger in creation order (read-only use).
func (s *Store) AllTransactions() []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Transaction, len(s.transactions))
	copy(out, s.transactions)
	return out
}
