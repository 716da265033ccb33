package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mockstocks/mockstocks/internal/domain"
	"github.com/mockstocks/mockstocks/internal/service"
)

// OfferHandler handles HTTP requests for the P2P offer board.
type OfferHandler struct {
	offerSvc *service.OfferService
}

// NewOfferHandler creates a new OfferHandler.
func NewOfferHandler(offerSvc *service.OfferService) *OfferHandler {
	return &OfferHandler{offerSvc: offerSvc}
}

// createOfferRequest is the JSON request body for POST /offers.
type createOfferRequest struct {
	AccountID string          `json:"account_id"`
	Ticker    string          `json:"ticker"`
	Side      string          `json:"side"` // "BUYING" or "SELLING"
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	Comment   string          `json:"comment"`
}

// editOfferRequest is the JSON request body for PUT /offers/{offer_id}.
type editOfferRequest struct {
	AccountID string          `json:"account_id"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	Comment   string          `json:"comment"`
}

// acceptOfferRequest is the JSON request body for POST /offers/{offer_id}/accept.
type acceptOfferRequest struct {
	AccountID string `json:"account_id"`
}

// offerResponse is the JSON shape of one offer.
type offerResponse struct {
	OfferID   string          `json:"offer_id"`
	AccountID string          `json:"account_id"`
	Ticker    string          `json:"ticker"`
	Side      string          `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
	Comment   string          `json:"comment,omitempty"`
	CreatedAt string          `json:"created_at"`
}

// offerListResponse is the JSON response for GET /offers.
type offerListResponse struct {
	Offers []offerResponse `json:"offers"`
	Total  int             `json:"total"`
}

// settlementResponse is the JSON response for POST /offers/{offer_id}/accept.
type settlementResponse struct {
	OfferID      string                `json:"offer_id"`
	Transactions []transactionResponse `json:"transactions"`
}

func toOfferResponse(o *domain.Offer) offerResponse {
	return offerResponse{
		OfferID:   o.OfferID,
		AccountID: o.OwnerID,
		Ticker:    o.Ticker,
		Side:      string(o.Side),
		Price:     o.Price,
		Quantity:  o.Quantity,
		Total:     o.Total(),
		Comment:   o.Comment,
		CreatedAt: o.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// Create handles POST /offers.
func (h *OfferHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOfferRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	offer, err := h.offerSvc.Propose(r.Context(), service.ProposeOfferRequest{
		AccountID: req.AccountID,
		Ticker:    req.Ticker,
		Side:      req.Side,
		Price:     req.Price,
		Quantity:  req.Quantity,
		Comment:   req.Comment,
	})
	if err != nil {
		mapDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, toOfferResponse(offer))
}

// List handles GET /offers with optional ticker and side filters.
func (h *OfferHandler) List(w http.ResponseWriter, r *http.Request) {
	ticker := r.URL.Query().Get("ticker")
	side := r.URL.Query().Get("side")

	offers, err := h.offerSvc.List(ticker, side)
	if err != nil {
		mapDomainError(w, err)
		return
	}

	out := make([]offerResponse, len(offers))
	for i, o := range offers {
		out[i] = toOfferResponse(o)
	}

	WriteJSON(w, http.StatusOK, offerListResponse{
		Offers: out,
		Total:  len(out),
	})
}

// ListByAccount handles GET /accounts/{account_id}/offers.
func (h *OfferHandler) ListByAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	offers, err := h.offerSvc.ListByOwner(accountID)
	if err != nil {
		mapDomainError(w, err)
		return
	}

	out := make([]offerResponse, len(offers))
	for i, o := range offers {
		out[i] = toOfferResponse(o)
	}

	WriteJSON(w, http.StatusOK, offerListResponse{
		Offers: out,
		Total:  len(out),
	})
}

// Get handles GET /offers/{offer_id}.
func (h *OfferHandler) Get(w http.ResponseWriter, r *http.Request) {
	offerID := chi.URLParam(r, "offer_id")

	offer, err := h.offerSvc.Get(offerID)
	if err != nil {
		mapDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, toOfferResponse(offer))
}

// Update handles PUT /offers/{offer_id}.
func (h *OfferHandler) Update(w http.ResponseWriter, r *http.Request) {
	offerID := chi.URLParam(r, "offer_id")

	var req editOfferRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	offer, err := h.offerSvc.Edit(r.Context(), service.EditOfferRequest{
		AccountID: req.AccountID,
		OfferID:   offerID,
		Price:     req.Price,
		Quantity:  req.Quantity,
		Comment:   req.Comment,
	})
	if err != nil {
		mapDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, toOfferResponse(offer))
}

// Delete handles DELETE /offers/{offer_id}?account_id=.
func (h *OfferHandler) Delete(w http.ResponseWriter, r *http.Request) {
	offerID := chi.URLParam(r, "offer_id")
	accountID := r.URL.Query().Get("account_id")

	if accountID == "" {
		WriteError(w, http.StatusBadRequest, "validation_error", "account_id query parameter is required")
		return
	}

	if err := h.offerSvc.Cancel(r.Context(), accountID, offerID); err != nil {
		mapDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// Accept handles POST /offers/{offer_id}/accept.
func (h *OfferHandler) Accept(w http.ResponseWriter, r *http.Request) {
	offerID := chi.URLParam(r, "offer_id")

	var req acceptOfferRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	records, err := h.offerSvc.Accept(r.Context(), req.AccountID, offerID)
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

	WriteJSON(w, http.StatusOK, settlementResponse{
		OfferID:      offerID,
		Transactions: transactions,
	})
}
