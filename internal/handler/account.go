package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mockstocks/mockstocks/internal/service"
)

// AccountHandler handles HTTP requests for account endpoints.
type AccountHandler struct {
	accountSvc *service.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountSvc *service.AccountService) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc}
}

// registerAccountRequest is the JSON request body for POST /accounts.
type registerAccountRequest struct {
	AccountID string `json:"account_id"`
}

// accountResponse is the JSON response for POST /accounts (201 Created).
type accountResponse struct {
	AccountID string          `json:"account_id"`
	Cash      decimal.Decimal `json:"cash"`
	CreatedAt string          `json:"created_at"`
}

// holdingResponse is a single holding in the balance response.
type holdingResponse struct {
	Ticker       string          `json:"ticker"`
	Amount       int64           `json:"amount"`
	FrozenAmount int64           `json:"frozen_amount"`
	AvgPrice     decimal.Decimal `json:"avg_price"`
}

// balanceResponse is the JSON response for GET /accounts/{account_id}/balance.
type balanceResponse struct {
	AccountID  string            `json:"account_id"`
	Cash       decimal.Decimal   `json:"cash"`
	FrozenCash decimal.Decimal   `json:"frozen_cash"`
	Holdings   []holdingResponse `json:"holdings"`
}

// positionResponse is a single valued position in the portfolio response.
type positionResponse struct {
	Ticker        string           `json:"ticker"`
	Amount        int64            `json:"amount"`
	FrozenAmount  int64            `json:"frozen_amount"`
	AvgPrice      decimal.Decimal  `json:"avg_price"`
	CurrentPrice  *decimal.Decimal `json:"current_price"`
	MarketValue   *decimal.Decimal `json:"market_value"`
	UnrealizedPnL *decimal.Decimal `json:"unrealized_pnl"`
}

// portfolioResponse is the JSON response for GET /accounts/{account_id}/portfolio.
type portfolioResponse struct {
	AccountID   string             `json:"account_id"`
	Cash        decimal.Decimal    `json:"cash"`
	FrozenCash  decimal.Decimal    `json:"frozen_cash"`
	Positions   []positionResponse `json:"positions"`
	StocksValue decimal.Decimal    `json:"stocks_value"`
	TotalValue  decimal.Decimal    `json:"total_value"`
}

// transactionResponse is a single record in the history response.
type transactionResponse struct {
	TxID           string          `json:"tx_id"`
	Ticker         string          `json:"ticker"`
	Side           string          `json:"side"`
	Kind           string          `json:"kind"`
	Price          decimal.Decimal `json:"price"`
	Quantity       int64           `json:"quantity"`
	CounterpartyID string          `json:"counterparty_id,omitempty"`
	ExecutedAt     string          `json:"executed_at"`
}

// historyResponse is the JSON response for GET /accounts/{account_id}/history.
type historyResponse struct {
	AccountID    string                `json:"account_id"`
	Transactions []transactionResponse `json:"transactions"`
}

// Register handles POST /accounts.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerAccountRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	acct, err := h.accountSvc.Register(r.Context(), req.AccountID)
	if err != nil {
		mapDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, accountResponse{
		AccountID: acct.ID,
		Cash:      acct.Cash,
		CreatedAt: acct.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

// GetBalance handles GET /accounts/{account_id}/balance.
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	balance, err := h.accountSvc.Balance(accountID)
	if err != nil {
		mapDomainError(w, err)
		return
	}

	holdings := make([]holdingResponse, len(balance.Holdings))
	for i, hb := range balance.Holdings {
		holdings[i] = holdingResponse{
			Ticker:       hb.Ticker,
			Amount:       hb.Amount,
			FrozenAmount: hb.FrozenAmount,
			AvgPrice:     hb.AvgPrice,
		}
	}

	WriteJSON(w, http.StatusOK, balanceResponse{
		AccountID:  balance.AccountID,
		Cash:       balance.Cash,
		FrozenCash: balance.FrozenCash,
		Holdings:   holdings,
	})
}

// GetPortfolio handles GET /accounts/{account_id}/portfolio.
func (h *AccountHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	portfolio, err := h.accountSvc.Portfolio(r.Context(), accountID)
	if err != nil {
		mapDomainError(w, err)
		return
	}

	positions := make([]positionResponse, len(portfolio.Positions))
	for i, p := range portfolio.Positions {
		positions[i] = positionResponse{
			Ticker:        p.Ticker,
			Amount:        p.Amount,
			FrozenAmount:  p.FrozenAmount,
			AvgPrice:      p.AvgPrice,
			CurrentPrice:  p.CurrentPrice,
			MarketValue:   p.MarketValue,
			UnrealizedPnL: p.UnrealizedPnL,
		}
	}

	WriteJSON(w, http.StatusOK, portfolioResponse{
		AccountID:   portfolio.AccountID,
		Cash:        portfolio.Cash,
		FrozenCash:  portfolio.FrozenCash,
		Positions:   positions,
		StocksValue: portfolio.StocksValue,
		TotalValue:  portfolio.TotalValue,
	})
}

// GetHistory handles GET /accounts/{account_id}/history.
func (h *AccountHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	records, err := h.accountSvc.History(accountID)
	if err != nil {
		mapDomainError(w, err)
		return
	}

	transactions := make([]transactionResponse, len(records))
	for i, rec := range records {
		transactions[i] = transactionResponse{
			TxID:           rec.TxID,
			Ticker:         rec.Ticker,
			Side:           string(rec.Side),
			Kind:           string(rec.Kind),
			Price:          rec.Price,
			Quantity:       rec.Quantity,
			CounterpartyID: rec.CounterpartyID,
			ExecutedAt:     rec.ExecutedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}

	WriteJSON(w, http.StatusOK, historyResponse{
		AccountID:    accountID,
		Transactions: transactions,
	})
}
