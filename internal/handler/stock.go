package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mockstocks/mockstocks/internal/service"
)

// StockHandler handles HTTP requests for quote lookups.
type StockHandler struct {
	tradeSvc *service.TradeService
}

// NewStockHandler creates a new StockHandler.
func NewStockHandler(tradeSvc *service.TradeService) *StockHandler {
	return &StockHandler{tradeSvc: tradeSvc}
}

// candleResponse is one point of the historical close series.
type candleResponse struct {
	Date  string          `json:"date"`
	Close decimal.Decimal `json:"close"`
}

// quoteResponse is the JSON response for GET /stocks/{symbol}/quote.
type quoteResponse struct {
	Symbol  string           `json:"symbol"`
	Name    string           `json:"name"`
	Price   decimal.Decimal  `json:"price"`
	Candles []candleResponse `json:"candles,omitempty"`
}

// GetQuote handles GET /stocks/{symbol}/quote. An optional period query
// parameter (e.g. "3mo") adds a historical close series.
func (h *StockHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	period := r.URL.Query().Get("period")

	resp, err := h.tradeSvc.Quote(r.Context(), symbol, period)
	if err != nil {
		mapDomainError(w, err)
		return
	}

	out := quoteResponse{
		Symbol: resp.Quote.Symbol,
		Name:   resp.Quote.Name,
		Price:  resp.Quote.Price,
	}
	for _, c := range resp.Candles {
		out.Candles = append(out.Candles, candleResponse{
			Date:  c.Date.Format("2006-01-02"),
			Close: c.Close,
		})
	}

	WriteJSON(w, http.StatusOK, out)
}
