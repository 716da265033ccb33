// Package engine turns validated order requests into ledger
// transactions: market executions against the oracle's quote, and the
// P2P offer lifecycle with its reservation bookkeeping.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mockstocks/mockstocks/internal/domain"
	"github.com/mockstocks/mockstocks/internal/ledger"
	"github.com/mockstocks/mockstocks/internal/metrics"
	"github.com/mockstocks/mockstocks/internal/oracle"
)

// Executor executes market buys and sells. The price is always the
// oracle quote fetched synchronously by the caller before the ledger
// transaction opens, never a price supplied by the client.
type Executor struct {
	ledger *ledger.Ledger
}

// NewExecutor creates an Executor on the given ledger.
func NewExecutor(l *ledger.Ledger) *Executor {
	return &Executor{ledger: l}
}

// Buy purchases quantity shares of ticker at the quoted price,
// atomically debiting cash, blending the position's cost basis, and
// appending a BOUGHT/MARKET record.
func (e *Executor) Buy(ctx context.Context, accountID, ticker string, quantity int64, quote oracle.Quote) (*domain.Transaction, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	cost := domain.Cost(quote.Price, quantity)

	var rec *domain.Transaction
	err := e.ledger.Tx(ctx, []string{accountID}, func(tx *ledger.Tx) error {
		if err := tx.DebitCash(accountID, cost); err != nil {
			return err
		}
		if err := tx.IncreaseHolding(accountID, ticker, quantity, quote.Price); err != nil {
			return err
		}
		rec = &domain.Transaction{
			TxID:       uuid.New().String(),
			AccountID:  accountID,
			Ticker:     ticker,
			Side:       domain.TradeBought,
			Kind:       domain.TradeMarket,
			Price:      quote.Price,
			Quantity:   quantity,
			ExecutedAt: time.Now().UTC(),
		}
		return tx.AppendTransaction(rec)
	})
	if err != nil {
		return nil, err
	}

	metrics.MarketTradesTotal.WithLabelValues("buy").Inc()
	return rec, nil
}

// Sell disposes quantity free shares of ticker at the quoted price,
// atomically decreasing the holding, crediting cash, and appending a
// SOLD/MARKET record. The cost basis is left untouched.
func (e *Executor) Sell(ctx context.Context, accountID, ticker string, quantity int64, quote oracle.Quote) (*domain.Transaction, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	proceeds := domain.Cost(quote.Price, quantity)

	var rec *domain.Transaction
	err := e.ledger.Tx(ctx, []string{accountID}, func(tx *ledger.Tx) error {
		if err := tx.DecreaseHolding(accountID, ticker, quantity); err != nil {
			return err
		}
		if err := tx.CreditCash(accountID, proceeds); err != nil {
			return err
		}
		rec = &domain.Transaction{
			TxID:       uuid.New().String(),
			AccountID:  accountID,
			Ticker:     ticker,
			Side:       domain.TradeSold,
			Kind:       domain.TradeMarket,
			Price:      quote.Price,
			Quantity:   quantity,
			ExecutedAt: time.Now().UTC(),
		}
		return tx.AppendTransaction(rec)
	})
	if err != nil {
		return nil, err
	}

	metrics.MarketTradesTotal.WithLabelValues("sell").Inc()
	return rec, nil
}
