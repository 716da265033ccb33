package service

import (
	"context"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mockstocks/mockstocks/internal/domain"
	"github.com/mockstocks/mockstocks/internal/ledger"
	"github.com/mockstocks/mockstocks/internal/oracle"
)

var (
	accountIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	tickerRegex    = regexp.MustCompile(`^[A-Z]{1,10}$`)
)

// BalanceResponse represents the response for the balance endpoint.
type BalanceResponse struct {
	AccountID  string
	Cash       decimal.Decimal
	FrozenCash decimal.Decimal
	Holdings   []HoldingBalance
	CreatedAt  time.Time
}

// HoldingBalance represents a single holding in the balance response.
type HoldingBalance struct {
	Ticker       string
	Amount       int64
	FrozenAmount int64
	AvgPrice     decimal.Decimal
}

// Position is one holding valued at the oracle's current quote.
// CurrentPrice and the derived fields are nil when the oracle cannot
// resolve the ticker right now.
type Position struct {
	Ticker        string
	Amount        int64
	FrozenAmount  int64
	AvgPrice      decimal.Decimal
	CurrentPrice  *decimal.Decimal
	MarketValue   *decimal.Decimal
	UnrealizedPnL *decimal.Decimal // (current − avg) × (amount + frozen), derived at read time
}

// PortfolioResponse aggregates an account's positions.
type PortfolioResponse struct {
	AccountID   string
	Cash        decimal.Decimal
	FrozenCash  decimal.Decimal
	Positions   []Position
	StocksValue decimal.Decimal // sum of priced positions
	TotalValue  decimal.Decimal // cash + frozen cash + stocks value
}

// AccountService handles account registration and read-side queries.
type AccountService struct {
	ledger      *ledger.Ledger
	oracle      oracle.Client
	initialCash decimal.Decimal
}

// NewAccountService creates a new AccountService. New accounts start
// with initialCash.
func NewAccountService(l *ledger.Ledger, o oracle.Client, initialCash decimal.Decimal) *AccountService {
	return &AccountService{
		ledger:      l,
		oracle:      o,
		initialCash: initialCash,
	}
}

// Register validates the account ID and creates the account with the
// configured starting cash.
func (s *AccountService) Register(ctx context.Context, accountID string) (*domain.Account, error) {
	if !accountIDRegex.MatchString(accountID) {
		return nil, &domain.ValidationError{
			Message: "account_id must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}
	return s.ledger.CreateAccount(ctx, accountID, s.initialCash)
}

// Balance retrieves the account's balances including reservations.
func (s *AccountService) Balance(accountID string) (*BalanceResponse, error) {
	acct, err := s.ledger.Account(accountID)
	if err != nil {
		return nil, err
	}

	holdings := make([]HoldingBalance, 0, len(acct.Holdings))
	for ticker, h := range acct.Holdings {
		holdings = append(holdings, HoldingBalance{
			Ticker:       ticker,
			Amount:       h.Amount,
			FrozenAmount: h.FrozenAmount,
			AvgPrice:     h.AvgPrice,
		})
	}

	return &BalanceResponse{
		AccountID:  acct.ID,
		Cash:       acct.Cash,
		FrozenCash: acct.FrozenCash,
		Holdings:   holdings,
		CreatedAt:  acct.CreatedAt,
	}, nil
}

// Portfolio values the account's holdings at current oracle quotes. A
// ticker the oracle cannot resolve stays in the response with a nil
// price rather than failing the whole portfolio.
func (s *AccountService) Portfolio(ctx context.Context, accountID string) (*PortfolioResponse, error) {
	acct, err := s.ledger.Account(accountID)
	if err != nil {
		return nil, err
	}

	resp := &PortfolioResponse{
		AccountID:   acct.ID,
		Cash:        acct.Cash,
		FrozenCash:  acct.FrozenCash,
		Positions:   make([]Position, 0, len(acct.Holdings)),
		StocksValue: decimal.Zero,
	}

	for ticker, h := range acct.Holdings {
		pos := Position{
			Ticker:       ticker,
			Amount:       h.Amount,
			FrozenAmount: h.FrozenAmount,
			AvgPrice:     h.AvgPrice,
		}

		if quote, err := s.oracle.Lookup(ctx, ticker); err == nil {
			totalQty := decimal.NewFromInt(h.Amount + h.FrozenAmount)
			value := quote.Price.Mul(totalQty)
			pnl := quote.Price.Sub(h.AvgPrice).Mul(totalQty)

			price := quote.Price
			pos.CurrentPrice = &price
			pos.MarketValue = &value
			pos.UnrealizedPnL = &pnl
			resp.StocksValue = resp.StocksValue.Add(value)
		}

		resp.Positions = append(resp.Positions, pos)
	}

	resp.TotalValue = resp.Cash.Add(resp.FrozenCash).Add(resp.StocksValue)
	return resp, nil
}

// History returns the account's transaction records, oldest first.
func (s *AccountService) History(accountID string) ([]*domain.Transaction, error) {
	if !s.ledger.Exists(accountID) {
		return nil, domain.ErrAccountNotFound
	}
	return s.ledger.Transactions().ListByAccount(accountID), nil
}
