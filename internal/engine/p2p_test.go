package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mockstocks/mockstocks/internal/domain"
	"github.com/mockstocks/mockstocks/internal/ledger"
)

// seedShares gives the account a position bought at the given price.
func seedShares(t *testing.T, l *ledger.Ledger, accountID, ticker string, qty int64, price string) {
	t.Helper()
	err := l.Tx(context.Background(), []string{accountID}, func(tx *ledger.Tx) error {
		return tx.IncreaseHolding(accountID, ticker, qty, d(price))
	})
	if err != nil {
		t.Fatalf("seedShares: %v", err)
	}
}

func TestPropose_Selling_FreezesShares(t *testing.T) {
	l := newTestLedger(t, map[string]string{"alice": "1000"})
	p := NewP2P(l)
	seedShares(t, l, "alice", "AAPL", 10, "100")

	offer, err := p.Propose(context.Background(), "alice", "AAPL", domain.OfferSelling, d("120"), 4, "selling some")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if offer.OfferID == "" || offer.Side != domain.OfferSelling {
		t.Errorf("offer = %+v", offer)
	}

	acct, _ := l.Account("alice")
	h := acct.Holding("AAPL")
	if h.Amount != 6 || h.FrozenAmount != 4 {
		t.Errorf("holding = %+v, want 6 free / 4 frozen", h)
	}
	// Cash untouched by a SELLING proposal.
	if !acct.Cash.Equal(d("1000")) || !acct.FrozenCash.IsZero() {
		t.Errorf("cash = %s, frozen = %s", acct.Cash, acct.FrozenCash)
	}

	if _, err := l.Offers().Get(offer.OfferID); err != nil {
		t.Errorf("offer not listed: %v", err)
	}
}

func TestPropose_Selling_ExactFreeShares(t *testing.T) {
	l := newTestLedger(t, map[string]string{"alice": "1000"})
	p := NewP2P(l)
	seedShares(t, l, "alice", "AAPL", 5, "100")

	if _, err := p.Propose(context.Background(), "alice", "AAPL", domain.OfferSelling, d("120"), 5, ""); err != nil {
		t.Fatalf("proposing exactly the free amount must succeed: %v", err)
	}

	// All shares are now reserved; even one more cannot be offered.
	_, err := p.Propose(context.Background(), "alice", "AAPL", domain.OfferSelling, d("120"), 1, "")
	if !errors.Is(err, domain.ErrInsufficientShares) {
		t.Errorf("expected ErrInsufficientShares, got %v", err)
	}
}

func TestPropose_Buying_FreezesTotalCost(t *testing.T) {
	l := newTestLedger(t, map[string]string{"alice": "1000"})
	p := NewP2P(l)

	// 10 × 20.00 = 200.00 frozen.
	offer, err := p.Propose(context.Background(), "alice", "AAPL", domain.OfferBuying, d("20.00"), 10, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	acct, _ := l.Account("alice")
	if !acct.Cash.Equal(d("800")) || !acct.FrozenCash.Equal(d("200")) {
		t.Errorf("cash = %s, frozen = %s, want 800/200", acct.Cash, acct.FrozenCash)
	}
	if !offer.Total().Equal(d("200")) {
		t.Errorf("total = %s, want 200", offer.Total())
	}
}

func TestPropose_Buying_InsufficientFunds(t *testing.T) {
	l := newTestLedger(t, map[string]string{"alice": "100"})
	p := NewP2P(l)

	_, err := p.Propose(context.Background(), "alice", "AAPL", domain.OfferBuying, d("50"), 3, "")
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}
	if l.Offers().Len() != 0 {
		t.Error("failed proposal left an offer listed")
	}
}

func TestCancel_Buying_RestoresExactReservation(t *testing.T) {
	l := newTestLedger(t, map[string]string{"alice": "1000"})
	p := NewP2P(l)

	offer, err := p.Propose(context.Background(), "alice", "AAPL", domain.OfferBuying, d("20.00"), 10, "")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	if err := p.Cancel(context.Background(), "alice", offer.OfferID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	acct, _ := l.Account("alice")
	if !acct.Cash.Equal(d("1000")) || !acct.FrozenCash.IsZero() {
		t.Errorf("cash = %s, frozen = %s, want 1000/0", acct.Cash, acct.FrozenCash)
	}
	if _, err := l.Offers().Get(offer.OfferID); !errors.Is(err, domain.ErrOfferNotFound) {
		t.Errorf("offer still listed after cancel: %v", err)
	}
}

func TestCancel_Selling_RestoresShares(t *testing.T) {
	l := newTestLedger(t, map[string]string{"alice": "1000"})
	p := NewP2P(l)
	seedShares(t, l, "alice", "AAPL", 10, "100")

	offer, err := p.Propose(context.Background(), "alice", "AAPL", domain.OfferSelling, d("120"), 10, "")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if err := p.Cancel(context.Background(), "alice", offer.OfferID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	acct, _ := l.Account("alice")
	h := acct.Holding("AAPL")
	if h.Amount != 10 || h.FrozenAmount != 0 {
		t.Errorf("holding = %+v, want 10 free / 0 frozen", h)
	}
}

func TestCancel_NotOwner(t *testing.T) {
	l := newTestLedger(t, map[string]string{"alice": "1000", "bob": "1000"})
	p := NewP2P(l)

	offer, err := p.Propose(context.Background(), "alice", "AAPL", domain.OfferBuying, d("10"), 1, "")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	if err := p.Cancel(context.Background(), "bob", offer.OfferID); !errors.Is(err, domain.ErrNotOwner) {
		t.Errorf("expected ErrNotOwner, got %v", err)
	}
	if _, err := l.Offers().Get(offer.OfferID); err != nil {
		t.Errorf("offer must survive a stranger's cancel: %v", err)
	}
}

func TestCancel_MissingOffer(t *testing.T) {
	l := newTestLedger(t, map[string]string{"alice": "1000"})
	p := NewP2P(l)

	if err := p.Cancel(context.Background(), "alice", "nope"); !errors.Is(err, domain.ErrOfferNotFound) {
		t.Errorf("expected ErrOfferNotFound, got %v", err)
	}
}

func TestEdit_Buying_AdjustsReservation(t *testing.T) {
	l := newTestLedger(t, map[string]string{"alice": "1000"})
	p := NewP2P(l)

	offer, err := p.Propose(context.Background(), "alice", "AAPL", domain.OfferBuying, d("20"), 10, "v1")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	// 200 frozen → edit to 30 × 5 = 150 frozen.
	updated, err := p.Edit(context.Background(), "alice", offer.OfferID, d("30"), 5, "v2")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if updated.OfferID != offer.OfferID || !updated.CreatedAt.Equal(offer.CreatedAt) {
		t.Errorf("edit must preserve identity: %+v", updated)
	}
	if updated.Comment != "v2" {
		t.Errorf("comment = %q, want v2", updated.Comment)
	}

	acct, _ := l.Account("alice")
	if !acct.Cash.Equal(d("850")) || !acct.FrozenCash.Equal(d("150")) {
		t.Errorf("cash = %s, frozen = %s, want 850/150", acct.Cash, acct.FrozenCash)
	}

	got, _ := l.Offers().Get(offer.OfferID)
	if !got.Price.Equal(d("30")) || got.Quantity != 5 {
		t.Errorf("stored offer = %+v", got)
	}
}

func TestEdit_Buying_GrowBeyondBalanceFails(t *testing.T) {
	l := newTestLedger(t, map[string]string{"alice": "250"})
	p := NewP2P(l)

	offer, err := p.Propose(context.Background(), "alice", "AAPL", domain.OfferBuying, d("20"), 10, "")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	// Free 50 + released 200 = 250 available; 300 needed.
	_, err = p.Edit(context.Background(), "alice", offer.OfferID, d("30"), 10, "")
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// The failed edit must leave the original reservation intact.
	acct, _ := l.Account("alice")
	if !acct.Cash.Equal(d("50")) || !acct.FrozenCash.Equal(d("200")) {
		t.Errorf("cash = %s, frozen = %s, want 50/200", acct.Cash, acct.FrozenCash)
	}
	got, _ := l.Offers().Get(offer.OfferID)
	if !got.Price.Equal(d("20")) || got.Quantity != 10 {
		t.Errorf("offer mutated by failed edit: %+v", got)
	}
}

func TestEdit_Buying_GrowWithinReleasedFundsSucceeds(t *testing.T) {
	l := newTestLedger(t, map[string]string{"alice": "250"})
	p := NewP2P(l)

	offer, err := p.Propose(context.Background(), "alice", "AAPL", domain.OfferBuying, d("20"), 10, "")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	// 250 total available covers the new 25 × 10 = 250 exactly.
	if _, err := p.Edit(context.Background(), "alice", offer.OfferID, d("25"), 10, ""); err != nil {
		t.Fatalf("edit within released funds must succeed: %v", err)
	}

	acct, _ := l.Account("alice")
	if !acct.Cash.IsZero() || !acct.FrozenCash.Equal(d("250")) {
		t.Errorf("cash = %s, frozen = %s, want 0/250", acct.Cash, acct.FrozenCash)
	}
}

func TestEdit_Selling_AdjustsFrozenShares(t *testing.T) {
	l := newTestLedger(t, map[string]string{"alice": "1000"})
	p := NewP2P(l)
	seedShares(t, l, "alice", "AAPL", 10, "100")

	offer, err := p.Propose(context.Background(), "alice", "AAPL", domain.OfferSelling, d("120"), 8, "")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	if _, err := p.Edit(context.Background(), "alice", offer.OfferID, d("130"), 3, ""); err != nil {
		t.Fatalf("edit: %v", err)
	}

	acct, _ := l.Account("alice")
	h := acct.Holding("AAPL")
	if h.Amount != 7 || h.FrozenAmount != 3 {
		t.Errorf("holding = %+v, want 7 free / 3 frozen", h)
	}
}

func TestAccept_Selling_TransfersSharesAndCash(t *testing.T) {
	l := newTestLedger(t, map[string]string{"alice": "1000", "bob": "1000"})
	p := NewP2P(l)
	seedShares(t, l, "alice", "AAPL", 10, "100")

	offer, err := p.Propose(context.Background(), "alice", "AAPL", domain.OfferSelling, d("120"), 4, "")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	records, err := p.Accept(context.Background(), "bob", offer.OfferID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}

	alice, _ := l.Account("alice")
	bob, _ := l.Account("bob")

	// Alice: +480 cash, 6 shares left, no frozen residue.
	if !alice.Cash.Equal(d("1480")) || !alice.FrozenCash.IsZero() {
		t.Errorf("alice cash = %s, frozen = %s", alice.Cash, alice.FrozenCash)
	}
	ah := alice.Holding("AAPL")
	if ah == nil || ah.Amount != 6 || ah.FrozenAmount != 0 {
		t.Errorf("alice holding = %+v", ah)
	}

	// Bob: -480 cash, 4 shares at the offer price.
	if !bob.Cash.Equal(d("520")) {
		t.Errorf("bob cash = %s, want 520", bob.Cash)
	}
	bh := bob.Holding("AAPL")
	if bh == nil || bh.Amount != 4 || !bh.AvgPrice.Equal(d("120")) {
		t.Errorf("bob holding = %+v", bh)
	}

	// One record per party, each naming the other.
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	byAccount := map[string]*domain.Transaction{}
	for _, r := range records {
		byAccount[r.AccountID] = r
	}
	if r := byAccount["bob"]; r == nil || r.Side != domain.TradeBought || r.Kind != domain.TradeP2P || r.CounterpartyID != "alice" {
		t.Errorf("bob record = %+v", r)
	}
	if r := byAccount["alice"]; r == nil || r.Side != domain.TradeSold || r.CounterpartyID != "bob" {
		t.Errorf("alice record = %+v", r)
	}

	if _, err := l.Offers().Get(offer.OfferID); !errors.Is(err, domain.ErrOfferNotFound) {
		t.Errorf("offer survived acceptance: %v", err)
	}
}

func TestAccept_Buying_ConsumesFrozenCash(t *testing.T) {
	l := newTestLedger(t, map[string]string{"alice": "1000", "bob": "1000"})
	p := NewP2P(l)
	seedShares(t, l, "bob", "AAPL", 10, "100")

	offer, err := p.Propose(context.Background(), "alice", "AAPL", domain.OfferBuying, d("110"), 5, "")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	records, err := p.Accept(context.Background(), "bob", offer.OfferID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}

	alice, _ := l.Account("alice")
	bob, _ := l.Account("bob")

	// Alice paid 550 from the frozen pool, gained 5 shares at 110.
	if !alice.Cash.Equal(d("450")) || !alice.FrozenCash.IsZero() {
		t.Errorf("alice cash = %s, frozen = %s, want 450/0", alice.Cash, alice.FrozenCash)
	}
	ah := alice.Holding("AAPL")
	if ah == nil || ah.Amount != 5 || !ah.AvgPrice.Equal(d("110")) {
		t.Errorf("alice holding = %+v", ah)
	}

	// Bob sold 5 free shares for 550.
	if !bob.Cash.Equal(d("1550")) {
		t.Errorf("bob cash = %s, want 1550", bob.Cash)
	}
	bh := bob.Holding("AAPL")
	if bh == nil || bh.Amount != 5 {
		t.Errorf("bob holding = %+v", bh)
	}

	byAccount := map[string]*domain.Transaction{}
	for _, r := range records {
		byAccount[r.AccountID] = r
	}
	if r := byAccount["bob"]; r == nil || r.Side != domain.TradeSold {
		t.Errorf("bob record = %+v", r)
	}
	if r := byAccount["alice"]; r == nil || r.Side != domain.TradeBought {
		t.Errorf("alice record = %+v", r)
	}
}

func TestAccept_SelfAcceptRejected(t *testing.T) {
	l := newTestLedger(t, map[string]string{"alice": "1000"})
	p := NewP2P(l)

	offer, err := p.Propose(context.Background(), "alice", "AAPL", domain.OfferBuying, d("10"), 1, "")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	_, err = p.Accept(context.Background(), "alice", offer.OfferID)
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestAccept_AcceptorCannotAfford(t *testing.T) {
	l := newTestLedger(t, map[string]string{"alice": "1000", "bob": "100"})
	p := NewP2P(l)
	seedShares(t, l, "alice", "AAPL", 10, "100")

	offer, err := p.Propose(context.Background(), "alice", "AAPL", domain.OfferSelling, d("120"), 4, "")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	_, err = p.Accept(context.Background(), "bob", offer.OfferID)
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// Everything untouched: offer listed, reservation intact.
	if _, err := l.Offers().Get(offer.OfferID); err != nil {
		t.Errorf("offer must survive a failed accept: %v", err)
	}
	alice, _ := l.Account("alice")
	if ah := alice.Holding("AAPL"); ah.FrozenAmount != 4 {
		t.Errorf("alice frozen shares = %d, want 4", ah.FrozenAmount)
	}
	bob, _ := l.Account("bob")
	if !bob.Cash.Equal(d("100")) {
		t.Errorf("bob cash = %s, want 100", bob.Cash)
	}
}

func TestAccept_ConcurrentAccepts_OneWinner(t *testing.T) {
	l := newTestLedger(t, map[string]string{"alice": "1000", "bob": "1000", "carol": "1000"})
	p := NewP2P(l)
	seedShares(t, l, "alice", "AAPL", 5, "100")

	offer, err := p.Propose(context.Background(), "alice", "AAPL", domain.OfferSelling, d("100"), 5, "")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, acceptor := range []string{"bob", "carol"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := p.Accept(context.Background(), id, offer.OfferID)
			results <- err
		}(acceptor)
	}
	wg.Wait()
	close(results)

	var wins, losses int
	for err := range results {
		if err == nil {
			wins++
		} else if errors.Is(err, domain.ErrOfferNotFound) {
			losses++
		} else {
			t.Errorf("unexpected loser error: %v", err)
		}
	}
	if wins != 1 || losses != 1 {
		t.Errorf("wins = %d, losses = %d, want 1/1", wins, losses)
	}

	// Conservation: exactly one party paid, alice got paid once.
	alice, _ := l.Account("alice")
	if !alice.Cash.Equal(d("1500")) {
		t.Errorf("alice cash = %s, want 1500", alice.Cash)
	}
	if alice.Holding("AAPL") != nil {
		t.Errorf("alice still holds AAPL: %+v", alice.Holding("AAPL"))
	}
}
