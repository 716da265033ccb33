package store

import (
	"sync"

	"github.com/mockstocks/mockstocks/internal/domain"
)

// TransactionLog is a thread-safe append-only log of executed trades,
// with a secondary index by account. Records are never mutated or
// deleted; the log exists only for history reporting.
type TransactionLog struct {
	mu        sync.RWMutex
	all       []*domain.Transaction
	byAccount map[string][]*domain.Transaction // account_id → records (chronological)
}

// NewTransactionLog creates an empty TransactionLog.
func NewTransactionLog() *TransactionLog {
	return &TransactionLog{
		byAccount: make(map[string][]*domain.Transaction),
	}
}

// Append adds a record to the log and the account index.
func (l *TransactionLog) Append(t *domain.Transaction) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.all = append(l.all, t)
	l.byAccount[t.AccountID] = append(l.byAccount[t.AccountID], t)
}

// ListByAccount returns the account's records in chronological order.
// Returns an empty slice if the account has no history.
func (l *TransactionLog) ListByAccount(accountID string) []*domain.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	records := l.byAccount[accountID]
	out := make([]*domain.Transaction, len(records))
	copy(out, records)
	return out
}

// Len returns the total number of records.
func (l *TransactionLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.all)
}
