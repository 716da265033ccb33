package service

import (
	"context"
	"strings"

	"github.com/mockstocks/mockstocks/internal/domain"
	"github.com/mockstocks/mockstocks/internal/engine"
	"github.com/mockstocks/mockstocks/internal/metrics"
	"github.com/mockstocks/mockstocks/internal/oracle"
)

// QuoteResponse represents the response for GET /stocks/{symbol}/quote.
type QuoteResponse struct {
	Quote   oracle.Quote
	Candles []oracle.Candle // populated only when a period was requested
}

// TradeService handles quote lookups and market order execution. The
// oracle is always consulted synchronously at execution time; clients
// never supply the price.
type TradeService struct {
	exec   *engine.Executor
	oracle oracle.Client
}

// NewTradeService creates a new TradeService.
func NewTradeService(exec *engine.Executor, o oracle.Client) *TradeService {
	return &TradeService{
		exec:   exec,
		oracle: o,
	}
}

// normalizeTicker upper-cases and validates a user-supplied symbol.
func normalizeTicker(symbol string) (string, error) {
	ticker := strings.ToUpper(strings.TrimSpace(symbol))
	if !tickerRegex.MatchString(ticker) {
		return "", &domain.ValidationError{
			Message: "symbol must match ^[A-Z]{1,10}$",
		}
	}
	return ticker, nil
}

func (s *TradeService) lookup(ctx context.Context, ticker string) (*oracle.Quote, error) {
	quote, err := s.oracle.Lookup(ctx, ticker)
	if err != nil {
		metrics.OracleLookupsTotal.WithLabelValues("unknown").Inc()
		return nil, domain.ErrUnknownTicker
	}
	metrics.OracleLookupsTotal.WithLabelValues("ok").Inc()
	return quote, nil
}

// Quote resolves a symbol against the oracle, optionally with a
// historical close series for the given period.
func (s *TradeService) Quote(ctx context.Context, symbol, period string) (*QuoteResponse, error) {
	ticker, err := normalizeTicker(symbol)
	if err != nil {
		return nil, err
	}

	quote, err := s.lookup(ctx, ticker)
	if err != nil {
		return nil, err
	}

	resp := &QuoteResponse{Quote: *quote}
	if period != "" {
		candles, err := s.oracle.History(ctx, ticker, period)
		if err != nil {
			return nil, domain.ErrUnknownTicker
		}
		resp.Candles = candles
	}
	return resp, nil
}

// Buy executes a market buy at the oracle's current quote.
func (s *TradeService) Buy(ctx context.Context, accountID, symbol string, quantity int64) (*domain.Transaction, error) {
	ticker, err := normalizeTicker(symbol)
	if err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	quote, err := s.lookup(ctx, ticker)
	if err != nil {
		return nil, err
	}
	return s.exec.Buy(ctx, accountID, ticker, quantity, *quote)
}

// Sell executes a market sell at the oracle's current quote.
func (s *TradeService) Sell(ctx context.Context, accountID, symbol string, quantity int64) (*domain.Transaction, error) {
	ticker, err := normalizeTicker(symbol)
	if err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	quote, err := s.lookup(ctx, ticker)
	if err != nil {
		return nil, err
	}
	return s.exec.Sell(ctx, accountID, ticker, quantity, *quote)
}
