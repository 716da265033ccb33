package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/mockstocks/mockstocks/internal/domain"
	"github.com/mockstocks/mockstocks/internal/engine"
	"github.com/mockstocks/mockstocks/internal/ledger"
	"github.com/mockstocks/mockstocks/internal/oracle"
)

// MaxCommentLen bounds the free-text comment on an offer.
const MaxCommentLen = 280

// ProposeOfferRequest represents the input for offer creation.
type ProposeOfferRequest struct {
	AccountID string
	Ticker    string
	Side      string
	Price     decimal.Decimal
	Quantity  int64
	Comment   string
}

// EditOfferRequest represents the input for offer editing.
type EditOfferRequest struct {
	AccountID string
	OfferID   string
	Price     decimal.Decimal
	Quantity  int64
	Comment   string
}

// OfferService handles the P2P offer lifecycle: validation and oracle
// checks here, reservation accounting in the engine.
type OfferService struct {
	p2p    *engine.P2P
	ledger *ledger.Ledger
	oracle oracle.Client
}

// NewOfferService creates a new OfferService.
func NewOfferService(p2p *engine.P2P, l *ledger.Ledger, o oracle.Client) *OfferService {
	return &OfferService{
		p2p:    p2p,
		ledger: l,
		oracle: o,
	}
}

func parseSide(side string) (domain.OfferSide, error) {
	switch domain.OfferSide(side) {
	case domain.OfferBuying, domain.OfferSelling:
		return domain.OfferSide(side), nil
	default:
		return "", &domain.ValidationError{
			Message: "side must be 'BUYING' or 'SELLING'",
		}
	}
}

func validateOfferTerms(price decimal.Decimal, quantity int64, comment string) error {
	if !domain.ValidPrice(price) {
		return domain.ErrInvalidPrice
	}
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	if len(comment) > MaxCommentLen {
		return &domain.ValidationError{
			Message: "comment must be at most 280 characters",
		}
	}
	return nil
}

// Propose validates and lists a new offer. A BUYING proposal additionally
// requires the ticker to resolve via the oracle; a SELLING proposal
// proves the ticker by requiring ownership of the shares.
func (s *OfferService) Propose(ctx context.Context, req ProposeOfferRequest) (*domain.Offer, error) {
	ticker, err := normalizeTicker(req.Ticker)
	if err != nil {
		return nil, err
	}
	side, err := parseSide(req.Side)
	if err != nil {
		return nil, err
	}
	if err := validateOfferTerms(req.Price, req.Quantity, req.Comment); err != nil {
		return nil, err
	}
	if !s.ledger.Exists(req.AccountID) {
		return nil, domain.ErrAccountNotFound
	}

	if side == domain.OfferBuying {
		if _, err := s.oracle.Lookup(ctx, ticker); err != nil {
			return nil, domain.ErrUnknownTicker
		}
	}

	return s.p2p.Propose(ctx, req.AccountID, ticker, side, req.Price, req.Quantity, req.Comment)
}

// Get retrieves one offer by ID.
func (s *OfferService) Get(offerID string) (*domain.Offer, error) {
	return s.ledger.Offers().Get(offerID)
}

// List returns the bulletin board. With a ticker the result is ordered
// by price ascending within each side; without one, newest first. An
// empty side string means both sides.
func (s *OfferService) List(ticker, side string) ([]*domain.Offer, error) {
	var sideFilter *domain.OfferSide
	if side != "" {
		parsed, err := parseSide(side)
		if err != nil {
			return nil, err
		}
		sideFilter = &parsed
	}

	if ticker == "" {
		return s.ledger.Offers().ListAll(sideFilter), nil
	}

	normalized, err := normalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	return s.ledger.Offers().ListByTicker(normalized, sideFilter), nil
}

// ListByOwner returns an account's own open offers.
func (s *OfferService) ListByOwner(accountID string) ([]*domain.Offer, error) {
	if !s.ledger.Exists(accountID) {
		return nil, domain.ErrAccountNotFound
	}
	return s.ledger.Offers().ListByOwner(accountID), nil
}

// Cancel removes the caller's offer and releases its reservation.
func (s *OfferService) Cancel(ctx context.Context, accountID, offerID string) error {
	if !s.ledger.Exists(accountID) {
		return domain.ErrAccountNotFound
	}
	return s.p2p.Cancel(ctx, accountID, offerID)
}

// Edit re-prices/re-sizes the caller's offer. A BUYING edit re-validates
// that the ticker still resolves via the oracle before touching the
// ledger.
func (s *OfferService) Edit(ctx context.Context, req EditOfferRequest) (*domain.Offer, error) {
	if err := validateOfferTerms(req.Price, req.Quantity, req.Comment); err != nil {
		return nil, err
	}
	if !s.ledger.Exists(req.AccountID) {
		return nil, domain.ErrAccountNotFound
	}

	offer, err := s.ledger.Offers().Get(req.OfferID)
	if err != nil {
		return nil, err
	}
	if offer.OwnerID != req.AccountID {
		return nil, domain.ErrNotOwner
	}
	if offer.Side == domain.OfferBuying {
		if _, err := s.oracle.Lookup(ctx, offer.Ticker); err != nil {
			return nil, domain.ErrUnknownTicker
		}
	}

	return s.p2p.Edit(ctx, req.AccountID, req.OfferID, req.Price, req.Quantity, req.Comment)
}

// Accept consumes an offer on behalf of the acceptor.
func (s *OfferService) Accept(ctx context.Context, accountID, offerID string) ([]*domain.Transaction, error) {
	if !s.ledger.Exists(accountID) {
		return nil, domain.ErrAccountNotFound
	}
	return s.p2p.Accept(ctx, accountID, offerID)
}
