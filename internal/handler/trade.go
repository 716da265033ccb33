package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/mockstocks/mockstocks/internal/domain"
	"github.com/mockstocks/mockstocks/internal/service"
)

// TradeHandler handles HTTP requests for market order execution.
type TradeHandler struct {
	tradeSvc *service.TradeService
}

// NewTradeHandler creates a new TradeHandler.
func NewTradeHandler(tradeSvc *service.TradeService) *TradeHandler {
	return &TradeHandler{tradeSvc: tradeSvc}
}

// submitTradeRequest is the JSON request body for POST /trades.
type submitTradeRequest struct {
	AccountID string `json:"account_id"`
	Ticker    string `json:"ticker"`
	Side      string `json:"side"` // "BUY" or "SELL"
	Quantity  int64  `json:"quantity"`
}

// tradeResponse is the JSON response for POST /trades (201 Created).
type tradeResponse struct {
	TxID       string          `json:"tx_id"`
	AccountID  string          `json:"account_id"`
	Ticker     string          `json:"ticker"`
	Side       string          `json:"side"`
	Kind       string          `json:"kind"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int64           `json:"quantity"`
	Total      decimal.Decimal `json:"total"`
	ExecutedAt string          `json:"executed_at"`
}

// SubmitTrade handles POST /trades.
func (h *TradeHandler) SubmitTrade(w http.ResponseWriter, r *http.Request) {
	var req submitTradeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var rec *domain.Transaction
	var err error
	switch req.Side {
	case "BUY":
		rec, err = h.tradeSvc.Buy(r.Context(), req.AccountID, req.Ticker, req.Quantity)
	case "SELL":
		rec, err = h.tradeSvc.Sell(r.Context(), req.AccountID, req.Ticker, req.Quantity)
	default:
		WriteError(w, http.StatusBadRequest, "validation_error", "side must be 'BUY' or 'SELL'")
		return
	}
	if err != nil {
		mapDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, tradeResponse{
		TxID:       rec.TxID,
		AccountID:  rec.AccountID,
		Ticker:     rec.Ticker,
		Side:       string(rec.Side),
		Kind:       string(rec.Kind),
		Price:      rec.Price,
		Quantity:   rec.Quantity,
		Total:      domain.Cost(rec.Price, rec.Quantity),
		ExecutedAt: rec.ExecutedAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
}
