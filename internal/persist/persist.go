// Package persist defines the durability layer for the ledger. The
// in-memory ledger is the working copy; every committed ledger
// transaction is flushed here as one atomic changeset, and the full
// state is loaded back at startup.
package persist

import (
	"context"
	"time"
)

// AccountRow is the persisted form of an account's balances.
// Monetary values are serialized decimal strings.
type AccountRow struct {
	ID         string
	Cash       string
	FrozenCash string
	CreatedAt  time.Time
}

// HoldingRow is the persisted form of one (account, ticker) position.
type HoldingRow struct {
	AccountID    string
	Ticker       string
	Amount       int64
	FrozenAmount int64
	AvgPrice     string
}

// HoldingKey identifies a holding row for deletion.
type HoldingKey struct {
	AccountID string
	Ticker    string
}

// OfferRow is the persisted form of a pending P2P offer.
type OfferRow struct {
	ID        string
	AccountID string
	Ticker    string
	Side      string
	Price     string
	Quantity  int64
	Comment   string
	CreatedAt time.Time
}

// TransactionRow is the persisted form of one history record.
type TransactionRow struct {
	ID             string
	AccountID      string
	Ticker         string
	Side           string
	Kind           string
	Price          string
	Quantity       int64
	CounterpartyID string
	ExecutedAt     time.Time
}

// Changeset is the full set of row mutations produced by one ledger
// transaction. A Store must apply it atomically: either every row lands
// or none do.
type Changeset struct {
	Accounts       []AccountRow // upserts
	Holdings       []HoldingRow // upserts
	HoldingDeletes []HoldingKey
	Offers         []OfferRow // upserts
	OfferDeletes   []string
	Transactions   []TransactionRow // inserts, append-only
}

// Empty reports whether the changeset contains no mutations.
func (c *Changeset) Empty() bool {
	return len(c.Accounts) == 0 &&
		len(c.Holdings) == 0 &&
		len(c.HoldingDeletes) == 0 &&
		len(c.Offers) == 0 &&
		len(c.OfferDeletes) == 0 &&
		len(c.Transactions) == 0
}

// Snapshot is the complete persisted state, loaded at startup.
type Snapshot struct {
	Accounts     []AccountRow
	Holdings     []HoldingRow
	Offers       []OfferRow
	Transactions []TransactionRow // ordered by execution time
}

// Store is the durability interface. SQLite is the production
// implementation; an ephemeral ledger runs without one.
type Store interface {
	// Load reads the full persisted state.
	Load(ctx context.Context) (*Snapshot, error)

	// Apply writes a changeset as one atomic unit.
	Apply(ctx context.Context, cs *Changeset) error

	// Close releases the underlying resources.
	Close() error
}
