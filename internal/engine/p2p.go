package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mockstocks/mockstocks/internal/domain"
	"github.com/mockstocks/mockstocks/internal/ledger"
	"github.com/mockstocks/mockstocks/internal/metrics"
)

// P2P manages the offer bulletin board: propose, cancel, edit, and the
// sole multi-account operation, accept. Every path mutates an offer only
// inside a ledger Tx holding the owner's account lock, so concurrent
// lifecycle operations on one offer serialize there. The losing side of
// a race observes the offer gone and gets domain.ErrOfferNotFound.
type P2P struct {
	ledger *ledger.Ledger
}

// NewP2P creates the offer engine on the given ledger.
func NewP2P(l *ledger.Ledger) *P2P {
	return &P2P{ledger: l}
}

// Propose lists a new offer, freezing the owner's cash (BUYING) or
// shares (SELLING) as its reservation.
func (p *P2P) Propose(ctx context.Context, ownerID, ticker string, side domain.OfferSide, price decimal.Decimal, quantity int64, comment string) (*domain.Offer, error) {
	offer := &domain.Offer{
		OfferID:   uuid.New().String(),
		OwnerID:   ownerID,
		Ticker:    ticker,
		Side:      side,
		Price:     price,
		Quantity:  quantity,
		Comment:   comment,
		CreatedAt: time.Now().UTC(),
	}

	err := p.ledger.Tx(ctx, []string{ownerID}, func(tx *ledger.Tx) error {
		if side == domain.OfferBuying {
			if err := tx.FreezeCash(ownerID, offer.Total()); err != nil {
				return err
			}
		} else {
			if err := tx.FreezeShares(ownerID, ticker, quantity); err != nil {
				return err
			}
		}
		return tx.CreateOffer(offer)
	})
	if err != nil {
		return nil, err
	}

	metrics.OpenOffers.Inc()
	return offer, nil
}

// Cancel removes an offer and releases its exact frozen reservation,
// atomically. Only the owner may cancel.
func (p *P2P) Cancel(ctx context.Context, accountID, offerID string) error {
	err := p.ledger.Tx(ctx, []string{accountID}, func(tx *ledger.Tx) error {
		offer, err := tx.Offer(offerID)
		if err != nil {
			return err
		}
		if offer.OwnerID != accountID {
			return domain.ErrNotOwner
		}

		if offer.Side == domain.OfferBuying {
			if err := tx.UnfreezeCash(accountID, offer.Total()); err != nil {
				return err
			}
		} else {
			if err := tx.UnfreezeShares(accountID, offer.Ticker, offer.Quantity); err != nil {
				return err
			}
		}
		return tx.DeleteOffer(offerID)
	})
	if err != nil {
		return err
	}

	metrics.OpenOffers.Dec()
	return nil
}

// Edit re-prices/re-sizes an offer by releasing the old reservation and
// applying the new one in the same transaction, so the edit fails
// atomically when the freed reservation plus the free balance cannot
// cover the new one. The offer keeps its ID, side, ticker, and creation
// time.
func (p *P2P) Edit(ctx context.Context, accountID, offerID string, newPrice decimal.Decimal, newQuantity int64, newComment string) (*domain.Offer, error) {
	var updated *domain.Offer
	err := p.ledger.Tx(ctx, []string{accountID}, func(tx *ledger.Tx) error {
		offer, err := tx.Offer(offerID)
		if err != nil {
			return err
		}
		if offer.OwnerID != accountID {
			return domain.ErrNotOwner
		}

		if offer.Side == domain.OfferBuying {
			if err := tx.UnfreezeCash(accountID, offer.Total()); err != nil {
				return err
			}
			if err := tx.FreezeCash(accountID, domain.Cost(newPrice, newQuantity)); err != nil {
				return err
			}
		} else {
			if err := tx.UnfreezeShares(accountID, offer.Ticker, offer.Quantity); err != nil {
				return err
			}
			if err := tx.FreezeShares(accountID, offer.Ticker, newQuantity); err != nil {
				return err
			}
		}

		updated = offer.Clone()
		updated.Price = newPrice
		updated.Quantity = newQuantity
		updated.Comment = newComment
		return tx.UpdateOffer(updated)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Accept consumes an offer, transferring cash and shares between the
// owner and the acceptor as one atomic multi-account transaction. The
// owner's reservation is consumed explicitly: released back to the free
// pool, then transferred, so the frozen pools always track exactly the
// open-offer exposure. The first acceptor to commit wins; later ones get
// domain.ErrOfferNotFound.
func (p *P2P) Accept(ctx context.Context, acceptorID, offerID string) ([]*domain.Transaction, error) {
	peek, err := p.ledger.Offers().Get(offerID)
	if err != nil {
		return nil, err
	}
	ownerID := peek.OwnerID
	if ownerID == acceptorID {
		return nil, &domain.ValidationError{Message: "cannot accept your own offer"}
	}

	var records []*domain.Transaction
	err = p.ledger.Tx(ctx, []string{acceptorID, ownerID}, func(tx *ledger.Tx) error {
		// Re-read under both locks: the offer may have been cancelled,
		// edited, or accepted while we were acquiring them.
		offer, err := tx.Offer(offerID)
		if err != nil {
			return err
		}

		total := offer.Total()
		executedAt := time.Now().UTC()

		if offer.Side == domain.OfferSelling {
			// Acceptor buys the owner's frozen shares.
			if err := tx.DebitCash(acceptorID, total); err != nil {
				return err
			}
			if err := tx.IncreaseHolding(acceptorID, offer.Ticker, offer.Quantity, offer.Price); err != nil {
				return err
			}
			if err := tx.UnfreezeShares(ownerID, offer.Ticker, offer.Quantity); err != nil {
				return err
			}
			if err := tx.DecreaseHolding(ownerID, offer.Ticker, offer.Quantity); err != nil {
				return err
			}
			if err := tx.CreditCash(ownerID, total); err != nil {
				return err
			}
			records = settlementRecords(offer, acceptorID, domain.TradeBought, executedAt)
		} else {
			// Acceptor sells into the owner's frozen cash.
			if err := tx.DecreaseHolding(acceptorID, offer.Ticker, offer.Quantity); err != nil {
				return err
			}
			if err := tx.CreditCash(acceptorID, total); err != nil {
				return err
			}
			if err := tx.UnfreezeCash(ownerID, total); err != nil {
				return err
			}
			if err := tx.DebitCash(ownerID, total); err != nil {
				return err
			}
			if err := tx.IncreaseHolding(ownerID, offer.Ticker, offer.Quantity, offer.Price); err != nil {
				return err
			}
			records = settlementRecords(offer, acceptorID, domain.TradeSold, executedAt)
		}

		for _, rec := range records {
			if err := tx.AppendTransaction(rec); err != nil {
				return err
			}
		}
		return tx.DeleteOffer(offerID)
	})
	if err != nil {
		return nil, err
	}

	metrics.OpenOffers.Dec()
	metrics.P2PSettlementsTotal.Inc()
	return records, nil
}

// settlementRecords builds the matching pair of P2P history records.
// acceptorSide is the acceptor's direction; the owner gets the opposite.
func settlementRecords(offer *domain.Offer, acceptorID string, acceptorSide domain.TradeSide, executedAt time.Time) []*domain.Transaction {
	ownerSide := domain.TradeSold
	if acceptorSide == domain.TradeSold {
		ownerSide = domain.TradeBought
	}
	return []*domain.Transaction{
		{
			TxID:           uuid.New().String(),
			AccountID:      acceptorID,
			Ticker:         offer.Ticker,
			Side:           acceptorSide,
			Kind:           domain.TradeP2P,
			Price:          offer.Price,
			Quantity:       offer.Quantity,
			CounterpartyID: offer.OwnerID,
			ExecutedAt:     executedAt,
		},
		{
			TxID:           uuid.New().String(),
			AccountID:      offer.OwnerID,
			Ticker:         offer.Ticker,
			Side:           ownerSide,
			Kind:           domain.TradeP2P,
			Price:          offer.Price,
			Quantity:       offer.Quantity,
			CounterpartyID: acceptorID,
			ExecutedAt:     executedAt,
		},
	}
}
