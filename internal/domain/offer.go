package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OfferSide indicates whether an offer's owner wants to buy or sell.
type OfferSide string

const (
	OfferBuying  OfferSide = "BUYING"
	OfferSelling OfferSide = "SELLING"
)

// Offer is a pending peer-to-peer listing on the bulletin board.
//
// A BUYING offer holds Price×Quantity of the owner's cash frozen; a
// SELLING offer holds Quantity of the owner's holding in Ticker frozen.
// Offers are edited or removed only by their owner and consumed exactly
// once by acceptance. The price is fixed by the owner and need not match
// the oracle's current quote.
type Offer struct {
	OfferID   string
	OwnerID   string
	Ticker    string
	Side      OfferSide
	Price     decimal.Decimal // per share
	Quantity  int64
	Comment   string
	CreatedAt time.Time
}

// Total returns Price × Quantity, the cash value of the offer.
func (o *Offer) Total() decimal.Decimal {
	return o.Price.Mul(decimal.NewFromInt(o.Quantity))
}

// Clone returns a copy of the offer.
func (o *Offer) Clone() *Offer {
	c := *o
	return &c
}
