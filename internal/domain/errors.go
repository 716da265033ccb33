package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes; the core never
// formats user-facing text.
var (
	ErrAccountAlreadyExists = errors.New("account_already_exists")
	ErrAccountNotFound      = errors.New("account_not_found")
	ErrInsufficientFunds    = errors.New("insufficient_funds")
	ErrInsufficientShares   = errors.New("insufficient_shares")
	ErrInvalidQuantity      = errors.New("invalid_quantity")
	ErrInvalidPrice         = errors.New("invalid_price")
	ErrUnknownTicker        = errors.New("unknown_ticker")
	ErrOfferNotFound        = errors.New("offer_not_found")
	ErrNotOwner             = errors.New("not_owner")

	// ErrInvariantViolation signals internal bookkeeping inconsistency,
	// never user error. It aborts the enclosing ledger transaction and is
	// surfaced distinctly from user-input failures.
	ErrInvariantViolation = errors.New("invariant_violation")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
