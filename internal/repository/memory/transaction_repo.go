package memory

import (
	"context"
	"fmt"

	"github.com/roryk/backend/internal/models"
	"github.com/roryk/backend/internal/repository"
)

type TransactionRepository struct {
	store *Store
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, exists := s.byTxID[id]
	if !exists {
		return nil, fmt.Errorf("%w: transaction %s", repository.ErrNotFound, id)
	}
	return tx.Clone(), nil
}

func (r *TransactionRepository) GetByPaymentReference(ctx context.Context, reference string) (*models.Transaction, error) {
	s := r.store
	s.mu.RLock()
	id, exists := s.byPayment[reference]
	s.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: payment %s", repository.ErrNotFound, reference)
	}
	return r.GetByID(ctx, id)
}

func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.Transaction, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.byAccount[accountID], nil), nil
}

func (r *TransactionRepository) ListServiceByAccount(ctx context.Context, accountID string) ([]*models.Transaction, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.byAccount[accountID], (*models.Transaction).IsServiceCharge), nil
}

func (r *TransactionRepository) List(ctx context.Context, filter repository.TransactionFilter) ([]*models.Transaction, int, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := newestFirst(s.ledger, func(tx *models.Transaction) bool {
		if filter.Type != "" && tx.Type != filter.Type {
			return false
		}
		if filter.ServiceType != "" && (tx.ServiceType == nil || *tx.ServiceType != filter.ServiceType) {
			return false
		}
		return true
	})

	total := len(matched)
	start := filter.Offset()
	if start >= total {
		return []*models.Transaction{}, total, nil
	}
	end := total
	if filter.Limit > 0 && start+filter.Limit < total {
		end = start + filter.Limit
	}
	return matched[start:end], total, nil
}
