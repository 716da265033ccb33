// Package ledger implements the ledger store: the single place where
// account balances, holdings, offers, and the transaction log are
// mutated and where the accounting invariants are enforced.
//
// Every user-facing operation runs as one Tx scoped to the accounts it
// touches. A Tx stages all mutations on copies while holding the
// accounts' locks (acquired in ascending account-id order), so the
// balance check and the resulting write are indivisible with respect to
// other operations on the same accounts. On success the changeset is
// flushed to the persist store as one atomic unit and the staged state
// replaces the live state; on any error nothing is applied.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mockstocks/mockstocks/internal/domain"
	"github.com/mockstocks/mockstocks/internal/persist"
	"github.com/mockstocks/mockstocks/internal/store"
)

// Ledger owns the account map, the offer table, and the transaction log.
type Ledger struct {
	mu       sync.RWMutex // guards the accounts map itself, not account state
	accounts map[string]*domain.Account
	offers   *store.OfferStore
	txlog    *store.TransactionLog
	durable  persist.Store // nil for an ephemeral ledger
}

// New creates a ledger. If durable is non-nil, the persisted snapshot is
// loaded into memory and every committed Tx is written through.
func New(ctx context.Context, durable persist.Store) (*Ledger, error) {
	l := &Ledger{
		accounts: make(map[string]*domain.Account),
		offers:   store.NewOfferStore(),
		txlog:    store.NewTransactionLog(),
		durable:  durable,
	}

	if durable == nil {
		return l, nil
	}

	snap, err := durable.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if err := l.restore(snap); err != nil {
		return nil, fmt.Errorf("restore snapshot: %w", err)
	}
	return l, nil
}

func (l *Ledger) restore(snap *persist.Snapshot) error {
	for _, row := range snap.Accounts {
		cash, err := decimal.NewFromString(row.Cash)
		if err != nil {
			return fmt.Errorf("account %s cash: %w", row.ID, err)
		}
		frozen, err := decimal.NewFromString(row.FrozenCash)
		if err != nil {
			return fmt.Errorf("account %s frozen_cash: %w", row.ID, err)
		}
		l.accounts[row.ID] = &domain.Account{
			ID:         row.ID,
			Cash:       cash,
			FrozenCash: frozen,
			Holdings:   make(map[string]*domain.Holding),
			CreatedAt:  row.CreatedAt,
		}
	}

	for _, row := range snap.Holdings {
		acct, ok := l.accounts[row.AccountID]
		if !ok {
			return fmt.Errorf("holding %s/%s: %w", row.AccountID, row.Ticker, domain.ErrAccountNotFound)
		}
		avg, err := decimal.NewFromString(row.AvgPrice)
		if err != nil {
			return fmt.Errorf("holding %s/%s avg_price: %w", row.AccountID, row.Ticker, err)
		}
		acct.Holdings[row.Ticker] = &domain.Holding{
			Amount:       row.Amount,
			FrozenAmount: row.FrozenAmount,
			AvgPrice:     avg,
		}
	}

	for _, row := range snap.Offers {
		price, err := decimal.NewFromString(row.Price)
		if err != nil {
			return fmt.Errorf("offer %s price: %w", row.ID, err)
		}
		l.offers.Put(&domain.Offer{
			OfferID:   row.ID,
			OwnerID:   row.AccountID,
			Ticker:    row.Ticker,
			Side:      domain.OfferSide(row.Side),
			Price:     price,
			Quantity:  row.Quantity,
			Comment:   row.Comment,
			CreatedAt: row.CreatedAt,
		})
	}

	for _, row := range snap.Transactions {
		price, err := decimal.NewFromString(row.Price)
		if err != nil {
			return fmt.Errorf("transaction %s price: %w", row.ID, err)
		}
		l.txlog.Append(&domain.Transaction{
			TxID:           row.ID,
			AccountID:      row.AccountID,
			Ticker:         row.Ticker,
			Side:           domain.TradeSide(row.Side),
			Kind:           domain.TradeKind(row.Kind),
			Price:          price,
			Quantity:       row.Quantity,
			CounterpartyID: row.CounterpartyID,
			ExecutedAt:     row.ExecutedAt,
		})
	}

	return nil
}

// CreateAccount registers a new account with the given starting cash.
// Returns domain.ErrAccountAlreadyExists on duplicate IDs.
func (l *Ledger) CreateAccount(ctx context.Context, id string, initialCash decimal.Decimal) (*domain.Account, error) {
	if initialCash.IsNegative() {
		return nil, domain.ErrInvariantViolation
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.accounts[id]; exists {
		return nil, domain.ErrAccountAlreadyExists
	}

	acct := &domain.Account{
		ID:         id,
		Cash:       initialCash,
		FrozenCash: decimal.Zero,
		Holdings:   make(map[string]*domain.Holding),
		CreatedAt:  time.Now().UTC(),
	}

	if l.durable != nil {
		cs := &persist.Changeset{
			Accounts: []persist.AccountRow{accountRow(acct)},
		}
		if err := l.durable.Apply(ctx, cs); err != nil {
			return nil, fmt.Errorf("persist account: %w", err)
		}
	}

	l.accounts[id] = acct
	return acct.Clone(), nil
}

// Account returns a consistent copy of the account's balances and
// holdings, or domain.ErrAccountNotFound.
func (l *Ledger) Account(id string) (*domain.Account, error) {
	l.mu.RLock()
	acct, ok := l.accounts[id]
	l.mu.RUnlock()
	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	acct.Mu.Lock()
	defer acct.Mu.Unlock()
	return acct.Clone(), nil
}

// Exists reports whether an account with the given ID exists.
func (l *Ledger) Exists(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.accounts[id]
	return ok
}

// Offers exposes the offer table for read-only listing.
func (l *Ledger) Offers() *store.OfferStore {
	return l.offers
}

// Transactions exposes the transaction log for history reporting.
func (l *Ledger) Transactions() *store.TransactionLog {
	return l.txlog
}

// Tx runs fn as one atomic ledger transaction over the named accounts.
// Account locks are acquired in ascending ID order to avoid deadlock
// between transactions spanning the same pair. If fn returns an error,
// every staged mutation is discarded.
func (l *Ledger) Tx(ctx context.Context, accountIDs []string, fn func(tx *Tx) error) error {
	ids := dedupeSorted(accountIDs)

	l.mu.RLock()
	live := make(map[string]*domain.Account, len(ids))
	for _, id := range ids {
		acct, ok := l.accounts[id]
		if !ok {
			l.mu.RUnlock()
			return domain.ErrAccountNotFound
		}
		live[id] = acct
	}
	l.mu.RUnlock()

	for _, id := range ids {
		live[id].Mu.Lock()
	}
	defer func() {
		for i := len(ids) - 1; i >= 0; i-- {
			live[ids[i]].Mu.Unlock()
		}
	}()

	tx := newTx(l, live)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit(ctx)
}

func dedupeSorted(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func accountRow(a *domain.Account) persist.AccountRow {
	return persist.AccountRow{
		ID:         a.ID,
		Cash:       a.Cash.String(),
		FrozenCash: a.FrozenCash.String(),
		CreatedAt:  a.CreatedAt,
	}
}
