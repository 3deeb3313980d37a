package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/roryk/backend/internal/models"
	"github.com/roryk/backend/internal/repository"
)

// LedgerStore serializes mutations per account with a dedicated mutex, so the
// snapshot handed to the mutation stays current until the write lands.
type LedgerStore struct {
	store *Store
}

func (l *LedgerStore) ApplyBalanceChange(ctx context.Context, accountID string, fn repository.BalanceMutation) (*models.Account, *models.Transaction, error) {
	s := l.store
	lock := s.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	s.mu.RLock()
	current, exists := s.accounts[accountID]
	var snapshot *models.Account
	if exists {
		snapshot = current.Clone()
	}
	s.mu.RUnlock()
	if !exists {
		return nil, nil, fmt.Errorf("%w: account %s", repository.ErrNotFound, accountID)
	}

	record, err := fn(snapshot.Clone())
	if err != nil {
		return nil, nil, err
	}
	if record.PreviousBalance != snapshot.Balance || !record.Consistent() {
		return nil, nil, fmt.Errorf("%w: record does not match balance of account %s", repository.ErrConflict, accountID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account, exists := s.accounts[accountID]
	if !exists {
		return nil, nil, fmt.Errorf("%w: account %s", repository.ErrNotFound, accountID)
	}
	if account.Version != snapshot.Version {
		return nil, nil, fmt.Errorf("%w: account %s", repository.ErrConflict, accountID)
	}
	if record.PaymentReference != nil {
		if _, dup := s.byPayment[*record.PaymentReference]; dup {
			return nil, nil, fmt.Errorf("%w: payment %s", repository.ErrDuplicate, *record.PaymentReference)
		}
	}

	stored := record.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	stored.AccountID = accountID

	account.Balance = stored.NewBalance
	account.Version++
	account.UpdatedAt = s.now()

	s.ledger = append(s.ledger, stored)
	s.byAccount[accountID] = append(s.byAccount[accountID], stored)
	s.byTxID[stored.ID] = stored
	if stored.PaymentReference != nil {
		s.byPayment[*stored.PaymentReference] = stored.ID
	}

	return account.Clone(), stored.Clone(), nil
}
