// Package reporting is the read side of the loyalty program: member
// listings, transaction history, and program-wide statistics. It never
// mutates state and tolerates reading a slightly stale snapshot — the
// ledger re-validates everything at commit time.
package reporting

import (
	"context"
	"time"

	"github.com/perkly/perkly/internal/domain"
)

// RecentWindow is the trailing interval counted as "recent" in stats.
const RecentWindow = 24 * time.Hour

// Store is the read-side persistence surface: the reporting queries plus
// single-account lookup.
type Store interface {
	domain.ReportingStore
	LoadAccount(ctx context.Context, customerID string) (*domain.Account, error)
}

// Service is the query/reporting layer.
type Service struct {
	store Store
}

// New creates a reporting service.
func New(store Store) *Service {
	return &Service{store: store}
}

// Member returns one customer's account.
func (s *Service) Member(ctx context.Context, customerID string) (*domain.Account, error) {
	if customerID == "" {
		return nil, domain.ErrValidation("customer_id is required")
	}
	return s.store.LoadAccount(ctx, customerID)
}

// MemberList is one page of the member listing.
type MemberList struct {
	Members []domain.Account `json:"members"`
	Total   int64            `json:"total"`
	Offset  int              `json:"offset"`
	Limit   int              `json:"limit"`
}

// ListMembers pages through loyalty accounts. Search matches customer IDs
// by substring; sort defaults to lifetime points descending.
func (s *Service) ListMembers(ctx context.Context, search string, sortBy domain.SortField, desc bool, page domain.Page) (*MemberList, error) {
	if sortBy == "" {
		sortBy = domain.SortByLifetime
	}
	if !sortBy.Valid() {
		return nil, domain.ErrValidation("unknown sort field: " + string(sortBy))
	}
	page = page.Clamp()
	members, total, err := s.store.ListAccounts(ctx, search, sortBy, desc, page)
	if err != nil {
		return nil, err
	}
	return &MemberList{Members: members, Total: total, Offset: page.Offset, Limit: page.Limit}, nil
}

// History is one page of a customer's transaction history.
type History struct {
	Transactions []domain.Transaction `json:"transactions"`
	Total        int64                `json:"total"`
	Offset       int                  `json:"offset"`
	Limit        int                  `json:"limit"`
}

// TransactionHistory pages through one customer's ledger, newest first.
func (s *Service) TransactionHistory(ctx context.Context, customerID string, page domain.Page) (*History, error) {
	if customerID == "" {
		return nil, domain.ErrValidation("customer_id is required")
	}
	page = page.Clamp()
	txs, total, err := s.store.ListTransactions(ctx, customerID, page)
	if err != nil {
		return nil, err
	}
	return &History{Transactions: txs, Total: total, Offset: page.Offset, Limit: page.Limit}, nil
}

// ProgramStats returns the program-wide statistics snapshot.
func (s *Service) ProgramStats(ctx context.Context) (*domain.ProgramStats, error) {
	return s.store.ProgramStats(ctx, RecentWindow)
}
