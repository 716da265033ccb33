package domain

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Holding represents an account's position in a single ticker. A holding
// only exists while Amount+FrozenAmount > 0; the ledger deletes the row
// when both reach zero.
type Holding struct {
	Amount       int64           // free quantity, spendable by sells and new offers
	FrozenAmount int64           // quantity reserved by the account's open SELLING offers
	AvgPrice     decimal.Decimal // volume-weighted average cost basis
}

// Clone returns a deep copy of the holding.
func (h *Holding) Clone() *Holding {
	c := *h
	return &c
}

// Account is one user's row in the ledger.
//
// Cash is the spendable balance; FrozenCash is tracked separately and has
// already been deducted from Cash, so an account's spendable cash is Cash
// alone. Both must stay non-negative at all times.
type Account struct {
	ID         string
	Cash       decimal.Decimal
	FrozenCash decimal.Decimal // reserved by the account's open BUYING offers
	Holdings   map[string]*Holding // ticker → holding
	CreatedAt  time.Time
	Mu         sync.Mutex // per-account lock; ledger transactions acquire in ascending ID order
}

// Holding returns the account's holding for ticker, or nil if none exists.
func (a *Account) Holding(ticker string) *Holding {
	return a.Holdings[ticker]
}

// Clone returns a deep copy of the account's balances and holdings.
// The copy carries its own zero-value mutex.
func (a *Account) Clone() *Account {
	c := &Account{
		ID:         a.ID,
		Cash:       a.Cash,
		FrozenCash: a.FrozenCash,
		Holdings:   make(map[string]*Holding, len(a.Holdings)),
		CreatedAt:  a.CreatedAt,
	}
	for ticker, h := range a.Holdings {
		c.Holdings[ticker] = h.Clone()
	}
	return c
}
