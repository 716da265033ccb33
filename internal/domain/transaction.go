package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide indicates the direction of an executed trade.
type TradeSide string

const (
	TradeBought TradeSide = "BOUGHT"
	TradeSold   TradeSide = "SOLD"
)

// TradeKind distinguishes market executions from peer-to-peer settlements.
type TradeKind string

const (
	TradeMarket TradeKind = "MARKET"
	TradeP2P    TradeKind = "P2P"
)

// Transaction is an append-only history record of one executed trade from
// one account's point of view. Records are never mutated or deleted; a P2P
// settlement appends one record per party, each naming the other as
// counterparty.
type Transaction struct {
	TxID           string
	AccountID      string
	Ticker         string
	Side           TradeSide
	Kind           TradeKind
	Price          decimal.Decimal // per share at execution
	Quantity       int64
	CounterpartyID string // empty for MARKET trades
	ExecutedAt     time.Time
}
