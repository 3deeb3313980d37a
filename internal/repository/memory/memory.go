// Package memory keeps every repository in process memory. Each Store is
// isolated, which makes it the default backing for service tests and local runs.
package memory

import (
	"sync"
	"time"

	"github.com/roryk/backend/internal/models"
	"github.com/roryk/backend/internal/repository"
)

type Store struct {
	mu sync.RWMutex

	accounts   map[string]*models.Account
	byUsername map[string]string
	byEmail    map[string]string

	ledger    []*models.Transaction
	byAccount map[string][]*models.Transaction
	byTxID    map[string]*models.Transaction
	byPayment map[string]string

	resets map[string]*models.PasswordReset

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	now func() time.Time
}

func New() *Store {
	return &Store{
		accounts:   make(map[string]*models.Account),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
		byAccount:  make(map[string][]*models.Transaction),
		byTxID:     make(map[string]*models.Transaction),
		byPayment:  make(map[string]string),
		resets:     make(map[string]*models.PasswordReset),
		locks:      make(map[string]*sync.Mutex),
		now:        time.Now,
	}
}

// WithClock overrides the time source used for timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Accounts() repository.AccountRepository {
	return &AccountRepository{store: s}
}

func (s *Store) Transactions() repository.TransactionRepository {
	return &TransactionRepository{store: s}
}

func (s *Store) Ledger() repository.LedgerStore {
	return &LedgerStore{store: s}
}

func (s *Store) PasswordResets() repository.PasswordResetRepository {
	return &PasswordResetRepository{store: s}
}

// accountLock returns the mutex serializing ledger writes for one account.
func (s *Store) accountLock(accountID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[accountID] = l
	}
	return l
}

func cloneAccounts(in []*models.Account) []*models.Account {
	out := make([]*models.Account, 0, len(in))
	for _, a := range in {
		out = append(out, a.Clone())
	}
	return out
}

// newestFirst copies records in reverse insertion order.
func newestFirst(in []*models.Transaction, keep func(*models.Transaction) bool) []*models.Transaction {
	out := make([]*models.Transaction, 0, len(in))
	for i := len(in) - 1; i >= 0; i-- {
		if keep == nil || keep(in[i]) {
			out = append(out, in[i].Clone())
		}
	}
	return out
}
