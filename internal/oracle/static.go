package oracle

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mockstocks/mockstocks/internal/domain"
)

// Static is an in-process oracle backed by a fixed quote table. It serves
// tests and local development when no quote service is configured. Safe
// for concurrent use.
type Static struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

// NewStatic creates an empty static oracle.
func NewStatic() *Static {
	return &Static{
		quotes: make(map[string]Quote),
	}
}

// Set registers or updates the quote for symbol.
func (s *Static) Set(symbol, name string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[symbol] = Quote{Symbol: symbol, Name: name, Price: price}
}

// Remove deletes the quote for symbol, making it unknown.
func (s *Static) Remove(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.quotes, symbol)
}

// Lookup implements Client.
func (s *Static) Lookup(_ context.Context, symbol string) (*Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quotes[symbol]
	if !ok {
		return nil, domain.ErrUnknownTicker
	}
	return &q, nil
}

// History implements Client. It synthesizes a short flat series at the
// current price, newest last.
func (s *Static) History(ctx context.Context, symbol string, _ string) ([]Candle, error) {
	q, err := s.Lookup(ctx, symbol)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	candles := make([]Candle, 0, 5)
	for i := 4; i >= 0; i-- {
		candles = append(candles, Candle{
			Date:  now.AddDate(0, 0, -i),
			Close: q.Price,
		})
	}
	return candles, nil
}
