package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mockstocks/mockstocks/internal/domain"
)

// HTTPClient queries a quote service over HTTP.
//
// Expected endpoints:
//
//	GET {base}/v1/quote?symbol=AAPL   → {"symbol":"AAPL","name":"Apple Inc.","price":"189.30"}
//	GET {base}/v1/history?symbol=AAPL&period=3mo
//	                                  → {"symbol":"AAPL","candles":[{"date":"2025-06-02","close":"187.10"},...]}
//
// Every failure mode (network error, non-200 status, malformed body,
// missing or non-positive price) collapses to domain.ErrUnknownTicker so
// that a partially-populated quote can never reach ledger mutation logic.
type HTTPClient struct {
	base   string
	client *http.Client
}

// NewHTTPClient creates an oracle client against the given base URL.
func NewHTTPClient(base string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		base: base,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type quotePayload struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}

type historyPayload struct {
	Symbol  string `json:"symbol"`
	Candles []struct {
		Date  string          `json:"date"`
		Close decimal.Decimal `json:"close"`
	} `json:"candles"`
}

// Lookup implements Client.
func (c *HTTPClient) Lookup(ctx context.Context, symbol string) (*Quote, error) {
	var payload quotePayload
	if err := c.get(ctx, "/v1/quote", url.Values{"symbol": {symbol}}, &payload); err != nil {
		return nil, domain.ErrUnknownTicker
	}
	if payload.Symbol == "" || !payload.Price.IsPositive() {
		return nil, domain.ErrUnknownTicker
	}
	return &Quote{
		Symbol: payload.Symbol,
		Name:   payload.Name,
		Price:  payload.Price,
	}, nil
}

// History implements Client.
func (c *HTTPClient) History(ctx context.Context, symbol string, period string) ([]Candle, error) {
	var payload historyPayload
	params := url.Values{"symbol": {symbol}, "period": {period}}
	if err := c.get(ctx, "/v1/history", params, &payload); err != nil {
		return nil, domain.ErrUnknownTicker
	}

	candles := make([]Candle, 0, len(payload.Candles))
	for _, raw := range payload.Candles {
		date, err := time.Parse("2006-01-02", raw.Date)
		if err != nil || !raw.Close.IsPositive() {
			continue
		}
		candles = append(candles, Candle{Date: date, Close: raw.Close})
	}
	return candles, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("oracle returned status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(v)
}
