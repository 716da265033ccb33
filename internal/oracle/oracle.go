// Package oracle provides the price oracle client: given a ticker symbol
// it returns the current price and resolved name, and optionally a
// historical close series. An unknown ticker and any oracle failure are
// the same first-class outcome (domain.ErrUnknownTicker); a quote that
// reaches the caller is always fully populated.
package oracle

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the oracle's answer for one ticker.
type Quote struct {
	Symbol string
	Name   string
	Price  decimal.Decimal
}

// Candle is one point of a historical close series.
type Candle struct {
	Date  time.Time
	Close decimal.Decimal
}

// Client resolves ticker symbols against an external price source.
type Client interface {
	// Lookup returns the current quote for symbol, or
	// domain.ErrUnknownTicker when the symbol does not resolve or the
	// source fails.
	Lookup(ctx context.Context, symbol string) (*Quote, error)

	// History returns the close series for symbol over a source-defined
	// period such as "3mo". A failed lookup returns
	// domain.ErrUnknownTicker.
	History(ctx context.Context, symbol string, period string) ([]Candle, error)
}
