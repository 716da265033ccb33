package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mockstocks/mockstocks/internal/domain"
	"github.com/mockstocks/mockstocks/internal/persist"
)

// Tx is one all-or-nothing unit of ledger mutation. All primitives
// operate on staged copies of the locked accounts; nothing becomes
// visible until commit. User-caused shortfalls surface as ErrInsufficientFunds or
// ErrInsufficientShares, while ErrInvariantViolation always indicates a
// bookkeeping bug in the caller, not user input.
type Tx struct {
	l      *Ledger
	live   map[string]*domain.Account
	staged map[string]*domain.Account

	offerPuts map[string]*domain.Offer
	offerDels map[string]bool
	appends   []*domain.Transaction
}

func newTx(l *Ledger, live map[string]*domain.Account) *Tx {
	staged := make(map[string]*domain.Account, len(live))
	for id, acct := range live {
		staged[id] = acct.Clone()
	}
	return &Tx{
		l:         l,
		live:      live,
		staged:    staged,
		offerPuts: make(map[string]*domain.Offer),
		offerDels: make(map[string]bool),
	}
}

func (tx *Tx) account(id string) (*domain.Account, error) {
	acct, ok := tx.staged[id]
	if !ok {
		// The account was not named when the Tx was opened, so its lock
		// is not held. Touching it here would be a correctness bug.
		return nil, domain.ErrInvariantViolation
	}
	return acct, nil
}

// Account returns the staged state of a locked account.
func (tx *Tx) Account(id string) (*domain.Account, error) {
	return tx.account(id)
}

// Holding returns the staged holding for (account, ticker), or nil if
// the account holds none.
func (tx *Tx) Holding(id, ticker string) (*domain.Holding, error) {
	acct, err := tx.account(id)
	if err != nil {
		return nil, err
	}
	return acct.Holdings[ticker], nil
}

// CreditCash adds amount to the account's spendable cash.
func (tx *Tx) CreditCash(id string, amount decimal.Decimal) error {
	acct, err := tx.account(id)
	if err != nil {
		return err
	}
	if amount.IsNegative() {
		return domain.ErrInvariantViolation
	}
	acct.Cash = acct.Cash.Add(amount)
	return nil
}

// DebitCash removes amount from the account's spendable cash. Fails with
// ErrInsufficientFunds if it would drive the balance negative.
func (tx *Tx) DebitCash(id string, amount decimal.Decimal) error {
	acct, err := tx.account(id)
	if err != nil {
		return err
	}
	if amount.IsNegative() {
		return domain.ErrInvariantViolation
	}
	if acct.Cash.LessThan(amount) {
		return domain.ErrInsufficientFunds
	}
	acct.Cash = acct.Cash.Sub(amount)
	return nil
}

// FreezeCash moves amount from spendable cash into the frozen pool
// backing an open BUYING offer.
func (tx *Tx) FreezeCash(id string, amount decimal.Decimal) error {
	acct, err := tx.account(id)
	if err != nil {
		return err
	}
	if amount.IsNegative() {
		return domain.ErrInvariantViolation
	}
	if acct.Cash.LessThan(amount) {
		return domain.ErrInsufficientFunds
	}
	acct.Cash = acct.Cash.Sub(amount)
	acct.FrozenCash = acct.FrozenCash.Add(amount)
	return nil
}

// UnfreezeCash moves amount back from the frozen pool into spendable
// cash. A shortfall in the frozen pool is a bookkeeping bug.
func (tx *Tx) UnfreezeCash(id string, amount decimal.Decimal) error {
	acct, err := tx.account(id)
	if err != nil {
		return err
	}
	if amount.IsNegative() || acct.FrozenCash.LessThan(amount) {
		return domain.ErrInvariantViolation
	}
	acct.FrozenCash = acct.FrozenCash.Sub(amount)
	acct.Cash = acct.Cash.Add(amount)
	return nil
}

// IncreaseHolding adds quantity shares bought at price, blending the
// average cost basis by the volume-weighted formula
//
//	avg' = (avg·amount + price·quantity) / (amount + quantity)
//
// A first purchase creates the holding with avg = price.
func (tx *Tx) IncreaseHolding(id, ticker string, quantity int64, price decimal.Decimal) error {
	acct, err := tx.account(id)
	if err != nil {
		return err
	}
	if quantity <= 0 || !price.IsPositive() {
		return domain.ErrInvariantViolation
	}

	h := acct.Holdings[ticker]
	if h == nil {
		acct.Holdings[ticker] = &domain.Holding{
			Amount:   quantity,
			AvgPrice: price,
		}
		return nil
	}

	if h.Amount == 0 {
		h.AvgPrice = price
	} else {
		held := decimal.NewFromInt(h.Amount)
		bought := decimal.NewFromInt(quantity)
		total := h.AvgPrice.Mul(held).Add(price.Mul(bought))
		h.AvgPrice = total.Div(held.Add(bought))
	}
	h.Amount += quantity
	return nil
}

// DecreaseHolding removes quantity free shares. The cost basis is not
// recomputed on decrease; realized P/L is derived at read time. The
// holding row is deleted when both free and frozen quantities reach
// zero.
func (tx *Tx) DecreaseHolding(id, ticker string, quantity int64) error {
	acct, err := tx.account(id)
	if err != nil {
		return err
	}
	if quantity <= 0 {
		return domain.ErrInvariantViolation
	}

	h := acct.Holdings[ticker]
	if h == nil || h.Amount < quantity {
		return domain.ErrInsufficientShares
	}
	h.Amount -= quantity
	if h.Amount+h.FrozenAmount == 0 {
		delete(acct.Holdings, ticker)
	}
	return nil
}

// FreezeShares moves quantity shares from the free pool into the frozen
// pool backing an open SELLING offer. The account must currently own at
// least quantity unfrozen shares of the ticker.
func (tx *Tx) FreezeShares(id, ticker string, quantity int64) error {
	acct, err := tx.account(id)
	if err != nil {
		return err
	}
	if quantity <= 0 {
		return domain.ErrInvariantViolation
	}

	h := acct.Holdings[ticker]
	if h == nil || h.Amount < quantity {
		return domain.ErrInsufficientShares
	}
	h.Amount -= quantity
	h.FrozenAmount += quantity
	return nil
}

// UnfreezeShares moves quantity shares back from the frozen pool into
// the free pool. A shortfall in the frozen pool is a bookkeeping bug.
func (tx *Tx) UnfreezeShares(id, ticker string, quantity int64) error {
	acct, err := tx.account(id)
	if err != nil {
		return err
	}
	if quantity <= 0 {
		return domain.ErrInvariantViolation
	}

	h := acct.Holdings[ticker]
	if h == nil || h.FrozenAmount < quantity {
		return domain.ErrInvariantViolation
	}
	h.FrozenAmount -= quantity
	h.Amount += quantity
	return nil
}

// Offer returns the offer as seen by this Tx, accounting for staged
// creates, edits, and deletes. Returns domain.ErrOfferNotFound when the
// offer does not exist or was deleted in this Tx.
func (tx *Tx) Offer(id string) (*domain.Offer, error) {
	if tx.offerDels[id] {
		return nil, domain.ErrOfferNotFound
	}
	if o, ok := tx.offerPuts[id]; ok {
		return o.Clone(), nil
	}
	return tx.l.offers.Get(id)
}

// CreateOffer stages a new offer. The owner's account must be locked by
// this Tx.
func (tx *Tx) CreateOffer(o *domain.Offer) error {
	if _, ok := tx.staged[o.OwnerID]; !ok {
		return domain.ErrInvariantViolation
	}
	tx.offerPuts[o.OfferID] = o.Clone()
	delete(tx.offerDels, o.OfferID)
	return nil
}

// UpdateOffer stages a re-priced/re-sized offer. The owner's account
// must be locked by this Tx.
func (tx *Tx) UpdateOffer(o *domain.Offer) error {
	return tx.CreateOffer(o)
}

// DeleteOffer stages removal of an offer. The owner's account must be
// locked by this Tx.
func (tx *Tx) DeleteOffer(id string) error {
	o, err := tx.Offer(id)
	if err != nil {
		return err
	}
	if _, ok := tx.staged[o.OwnerID]; !ok {
		return domain.ErrInvariantViolation
	}
	delete(tx.offerPuts, id)
	tx.offerDels[id] = true
	return nil
}

// AppendTransaction stages a history record for a locked account.
func (tx *Tx) AppendTransaction(t *domain.Transaction) error {
	if _, ok := tx.staged[t.AccountID]; !ok {
		return domain.ErrInvariantViolation
	}
	tx.appends = append(tx.appends, t)
	return nil
}

// commit flushes the changeset to the durable store, then replaces the
// live state with the staged state. The persist write happens first so
// that a storage failure leaves memory untouched.
func (tx *Tx) commit(ctx context.Context) error {
	cs := tx.changeset()

	if tx.l.durable != nil && !cs.Empty() {
		if err := tx.l.durable.Apply(ctx, cs); err != nil {
			return fmt.Errorf("persist changeset: %w", err)
		}
	}

	for id, staged := range tx.staged {
		live := tx.live[id]
		live.Cash = staged.Cash
		live.FrozenCash = staged.FrozenCash
		live.Holdings = staged.Holdings
	}

	for id := range tx.offerDels {
		tx.l.offers.Remove(id)
	}
	for _, o := range tx.offerPuts {
		tx.l.offers.Put(o)
	}
	for _, t := range tx.appends {
		tx.l.txlog.Append(t)
	}

	return nil
}

func (tx *Tx) changeset() *persist.Changeset {
	cs := &persist.Changeset{}

	for id, staged := range tx.staged {
		cs.Accounts = append(cs.Accounts, accountRow(staged))

		live := tx.live[id]
		for ticker := range live.Holdings {
			if _, still := staged.Holdings[ticker]; !still {
				cs.HoldingDeletes = append(cs.HoldingDeletes, persist.HoldingKey{
					AccountID: id,
					Ticker:    ticker,
				})
			}
		}
		for ticker, h := range staged.Holdings {
			cs.Holdings = append(cs.Holdings, persist.HoldingRow{
				AccountID:    id,
				Ticker:       ticker,
				Amount:       h.Amount,
				FrozenAmount: h.FrozenAmount,
				AvgPrice:     h.AvgPrice.String(),
			})
		}
	}

	for _, o := range tx.offerPuts {
		cs.Offers = append(cs.Offers, persist.OfferRow{
			ID:        o.OfferID,
			AccountID: o.OwnerID,
			Ticker:    o.Ticker,
			Side:      string(o.Side),
			Price:     o.Price.String(),
			Quantity:  o.Quantity,
			Comment:   o.Comment,
			CreatedAt: o.CreatedAt,
		})
	}
	for id := range tx.offerDels {
		cs.OfferDeletes = append(cs.OfferDeletes, id)
	}

	for _, t := range tx.appends {
		cs.Transactions = append(cs.Transactions, persist.TransactionRow{
			ID:             t.TxID,
			AccountID:      t.AccountID,
			Ticker:         t.Ticker,
			Side:           string(t.Side),
			Kind:           string(t.Kind),
			Price:          t.Price.String(),
			Quantity:       t.Quantity,
			CounterpartyID: t.CounterpartyID,
			ExecutedAt:     t.ExecutedAt,
		})
	}

	return cs
}
