package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"github.com/mockstocks/mockstocks/internal/domain"
)

// offerEntry is the B-tree key for one offer. Ordering is (ticker, side,
// price ascending, created_at ascending, id), so a range scan over one
// ticker yields its offers best-priced first within each side.
type offerEntry struct {
	ticker    string
	side      domain.OfferSide
	price     decimal.Decimal
	createdAt time.Time
	id        string
}

func offerLess(a, b offerEntry) bool {
	if a.ticker != b.ticker {
		return a.ticker < b.ticker
	}
	if a.side != b.side {
		return a.side < b.side
	}
	if !a.price.Equal(b.price) {
		return a.price.LessThan(b.price)
	}
	if !a.createdAt.Equal(b.createdAt) {
		return a.createdAt.Before(b.createdAt)
	}
	return a.id < b.id
}

func entryFor(o *domain.Offer) offerEntry {
	return offerEntry{
		ticker:    o.Ticker,
		side:      o.Side,
		price:     o.Price,
		createdAt: o.CreatedAt,
		id:        o.OfferID,
	}
}

// OfferStore is a thread-safe in-memory table of pending P2P offers with
// a primary index by offer ID, an ordering index for ticker listings,
// and a secondary index by owner.
//
// The mutex only guards the indexes. Offer lifecycle races (create,
// edit, cancel, accept) are serialized by the ledger, which mutates an
// offer only while holding its owner's account lock.
type OfferStore struct {
	mu      sync.RWMutex
	tree    *btree.BTreeG[offerEntry]
	byID    map[string]*domain.Offer
	byOwner map[string]map[string]bool // owner_id → set of offer ids
}

// NewOfferStore creates an empty OfferStore.
func NewOfferStore() *OfferStore {
	const degree = 32
	return &OfferStore{
		tree:    btree.NewG[offerEntry](degree, offerLess),
		byID:    make(map[string]*domain.Offer),
		byOwner: make(map[string]map[string]bool),
	}
}

// Put inserts or replaces an offer. On replace the old ordering entry is
// removed first, since an edit may have changed the price.
func (s *OfferStore) Put(o *domain.Offer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byID[o.OfferID]; ok {
		s.tree.Delete(entryFor(old))
	}

	stored := o.Clone()
	s.byID[o.OfferID] = stored
	s.tree.ReplaceOrInsert(entryFor(stored))

	owned := s.byOwner[o.OwnerID]
	if owned == nil {
		owned = make(map[string]bool)
		s.byOwner[o.OwnerID] = owned
	}
	owned[o.OfferID] = true
}

// Remove deletes an offer by ID. Removing a missing offer is a no-op.
func (s *OfferStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byID, id)
	s.tree.Delete(entryFor(o))

	if owned := s.byOwner[o.OwnerID]; owned != nil {
		delete(owned, id)
		if len(owned) == 0 {
			delete(s.byOwner, o.OwnerID)
		}
	}
}

// Get retrieves a copy of an offer by ID. It returns
// domain.ErrOfferNotFound if the offer does not exist.
func (s *OfferStore) Get(id string) (*domain.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrOfferNotFound
	}
	return o.Clone(), nil
}

// ListByTicker returns the ticker's offers ordered by price ascending
// within each side. If side is non-nil, only that side is included.
func (s *OfferStore) ListByTicker(ticker string, side *domain.OfferSide) []*domain.Offer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Offer
	pivot := offerEntry{ticker: ticker}
	s.tree.AscendGreaterOrEqual(pivot, func(e offerEntry) bool {
		if e.ticker != ticker {
			return false
		}
		if side != nil && e.side != *side {
			return true
		}
		out = append(out, s.byID[e.id].Clone())
		return true
	})
	return out
}

// ListAll returns every open offer, newest first. If side is non-nil,
// only that side is included.
func (s *OfferStore) ListAll(side *domain.OfferSide) []*domain.Offer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Offer, 0, len(s.byID))
	for _, o := range s.byID {
		if side != nil && o.Side != *side {
			continue
		}
		out = append(out, o.Clone())
	}
	sortNewestFirst(out)
	return out
}

// ListByOwner returns the owner's open offers, newest first.
func (s *OfferStore) ListByOwner(ownerID string) []*domain.Offer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byOwner[ownerID]
	out := make([]*domain.Offer, 0, len(ids))
	for id := range ids {
		out = append(out, s.byID[id].Clone())
	}
	sortNewestFirst(out)
	return out
}

// Len returns the number of open offers.
func (s *OfferStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func sortNewestFirst(offers []*domain.Offer) {
	sort.Slice(offers, func(i, j int) bool {
		if !offers[i].CreatedAt.Equal(offers[j].CreatedAt) {
			return offers[i].CreatedAt.After(offers[j].CreatedAt)
		}
		return offers[i].OfferID < offers[j].OfferID
	})
}
