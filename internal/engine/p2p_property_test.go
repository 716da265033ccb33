package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"github.com/mockstocks/mockstocks/internal/domain"
	"github.com/mockstocks/mockstocks/internal/ledger"
)

// TestProperty_P2PConservation drives a random sequence of propose,
// cancel, edit, and accept operations across a small population of
// accounts and checks after every step that total cash and total shares
// across all accounts never change: P2P settlement only moves value,
// never creates or destroys it.
func TestProperty_P2PConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		l, err := ledger.New(ctx, nil)
		if err != nil {
			t.Fatalf("ledger.New: %v", err)
		}
		p := NewP2P(l)

		accounts := []string{"a0", "a1", "a2"}
		startCash := decimal.New(100_000, -2) // 1000.00 each
		var startShares int64
		for _, id := range accounts {
			if _, err := l.CreateAccount(ctx, id, startCash); err != nil {
				t.Fatalf("CreateAccount: %v", err)
			}
			shares := rapid.Int64Range(0, 50).Draw(t, "seed-"+id)
			if shares > 0 {
				err := l.Tx(ctx, []string{id}, func(tx *ledger.Tx) error {
					return tx.IncreaseHolding(id, "AAPL", shares, decimal.New(100, 0))
				})
				if err != nil {
					t.Fatalf("seed shares: %v", err)
				}
			}
			startShares += shares
		}
		totalCash := startCash.Mul(decimal.NewFromInt(int64(len(accounts))))

		var open []string
		steps := rapid.IntRange(1, 30).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			actor := accounts[rapid.IntRange(0, len(accounts)-1).Draw(t, fmt.Sprintf("actor-%d", i))]
			op := rapid.IntRange(0, 3).Draw(t, fmt.Sprintf("op-%d", i))

			switch {
			case op == 0 || len(open) == 0:
				side := domain.OfferSelling
				if rapid.Bool().Draw(t, fmt.Sprintf("buying-%d", i)) {
					side = domain.OfferBuying
				}
				price := decimal.New(rapid.Int64Range(1, 20000).Draw(t, fmt.Sprintf("price-%d", i)), -2)
				qty := rapid.Int64Range(1, 20).Draw(t, fmt.Sprintf("qty-%d", i))
				if offer, err := p.Propose(ctx, actor, "AAPL", side, price, qty, ""); err == nil {
					open = append(open, offer.OfferID)
				}
			case op == 1:
				id := open[rapid.IntRange(0, len(open)-1).Draw(t, fmt.Sprintf("pick-%d", i))]
				if err := p.Cancel(ctx, actor, id); err == nil {
					open = remove(open, id)
				}
			case op == 2:
				id := open[rapid.IntRange(0, len(open)-1).Draw(t, fmt.Sprintf("pick-%d", i))]
				price := decimal.New(rapid.Int64Range(1, 20000).Draw(t, fmt.Sprintf("eprice-%d", i)), -2)
				qty := rapid.Int64Range(1, 20).Draw(t, fmt.Sprintf("eqty-%d", i))
				_, _ = p.Edit(ctx, actor, id, price, qty, "")
			default:
				id := open[rapid.IntRange(0, len(open)-1).Draw(t, fmt.Sprintf("pick-%d", i))]
				if _, err := p.Accept(ctx, actor, id); err == nil {
					open = remove(open, id)
				}
			}

			var cash = decimal.Zero
			var shares int64
			for _, id := range accounts {
				acct, err := l.Account(id)
				if err != nil {
					t.Fatalf("Account(%s): %v", id, err)
				}
				if acct.Cash.IsNegative() || acct.FrozenCash.IsNegative() {
					t.Fatalf("%s has negative cash pool: %s / %s", id, acct.Cash, acct.FrozenCash)
				}
				cash = cash.Add(acct.Cash).Add(acct.FrozenCash)
				if h := acct.Holding("AAPL"); h != nil {
					if h.Amount < 0 || h.FrozenAmount < 0 {
						t.Fatalf("%s has negative share pool: %d / %d", id, h.Amount, h.FrozenAmount)
					}
					shares += h.Amount + h.FrozenAmount
				}
			}
			if !cash.Equal(totalCash) {
				t.Fatalf("total cash = %s, want %s", cash, totalCash)
			}
			if shares != startShares {
				t.Fatalf("total shares = %d, want %d", shares, startShares)
			}
		}
	})
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
