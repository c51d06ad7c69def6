package domain

import (
	"context"
	"time"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// Repository is the ledger engine's view of persistence. Implementations
// must make CommitEntry atomic: the account update and the appended
// transaction land together or not at all.
type Repository interface {
	// LoadAccount returns ErrAccountNotFound for unknown customers.
	LoadAccount(ctx context.Context, customerID string) (*Account, error)

	// SaveAccount inserts or updates an account snapshot.
	SaveAccount(ctx context.Context, acct *Account) error

	// AppendTransaction adds one immutable ledger row.
	AppendTransaction(ctx context.Context, tx *Transaction) error

	// CommitEntry persists the updated account and the new transaction as
	// one atomic unit.
	CommitEntry(ctx context.Context, acct *Account, tx *Transaction) error

	// LoadActiveRuleVersion resolves the active rules covering at.
	// Returns ErrNoActiveRules when no version covers the instant.
	LoadActiveRuleVersion(ctx context.Context, at time.Time) (*RuleVersion, error)

	// LoadTierCatalog returns all tiers, active and inactive.
	LoadTierCatalog(ctx context.Context) ([]Tier, error)
}

// RuleStore abstracts rule version administration.
type RuleStore interface {
	LoadActiveRuleVersion(ctx context.Context, at time.Time) (*RuleVersion, error)
	InsertRuleVersion(ctx context.Context, rv *RuleVersion) (*RuleVersion, error)
	CloseRuleVersion(ctx context.Context, id int64, at time.Time) error
	ListRuleVersions(ctx context.Context) ([]RuleVersion, error)
}

// TierStore abstracts tier catalog administration.
type TierStore interface {
	LoadTierCatalog(ctx context.Context) ([]Tier, error)
	GetTier(ctx context.Context, code string) (*Tier, error)
	InsertTier(ctx context.Context, t *Tier) error
	UpdateTier(ctx context.Context, t *Tier) error
}

// ReportingStore abstracts the read-side queries. Implementations never
// mutate state.
type ReportingStore interface {
	ListAccounts(ctx context.Context, search string, sort SortField, desc bool, page Page) ([]Account, int64, error)
	ListTransactions(ctx context.Context, customerID string, page Page) ([]Transaction, int64, error)
	ProgramStats(ctx context.Context, recentWindow time.Duration) (*ProgramStats, error)
}
