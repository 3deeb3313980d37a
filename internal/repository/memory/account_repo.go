package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/roryk/backend/internal/models"
	"github.com/roryk/backend/internal/repository"
)

type AccountRepository struct {
	store *Store
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if _, exists := s.accounts[account.ID]; exists {
		return fmt.Errorf("%w: account %s", repository.ErrDuplicate, account.ID)
	}
	if _, exists := s.byUsername[account.Username]; exists {
		return fmt.Errorf("%w: username %s", repository.ErrDuplicate, account.Username)
	}
	if account.Email != nil {
		if _, exists := s.byEmail[strings.ToLower(*account.Email)]; exists {
			return fmt.Errorf("%w: email %s", repository.ErrDuplicate, *account.Email)
		}
	}

	now := s.now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	if account.Version == 0 {
		account.Version = 1
	}

	s.accounts[account.ID] = account.Clone()
	s.byUsername[account.Username] = account.ID
	if account.Email != nil {
		s.byEmail[strings.ToLower(*account.Email)] = account.ID
	}
	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, exists := s.accounts[id]
	if !exists {
		return nil, fmt.Errorf("%w: account %s", repository.ErrNotFound, id)
	}
	return account.Clone(), nil
}

func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	s := r.store
	s.mu.RLock()
	id, exists := s.byUsername[username]
	s.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: username %s", repository.ErrNotFound, username)
	}
	return r.GetByID(ctx, id)
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	s := r.store
	s.mu.RLock()
	id, exists := s.byEmail[strings.ToLower(email)]
	s.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: email %s", repository.ErrNotFound, email)
	}
	return r.GetByID(ctx, id)
}

func (r *AccountRepository) List(ctx context.Context) ([]*models.Account, error) {
	return r.list(func(*models.Account) bool { return true }), nil
}

func (r *AccountRepository) ListByStatus(ctx context.Context, status models.AccountStatus) ([]*models.Account, error) {
	return r.list(func(a *models.Account) bool { return a.Status == status }), nil
}

// list returns matching accounts, most recently created first.
func (r *AccountRepository) list(keep func(*models.Account) bool) []*models.Account {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Account
	for _, a := range s.accounts {
		if keep(a) {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return cloneAccounts(result)
}

func (r *AccountRepository) UpdateStatus(ctx context.Context, id string, change models.StatusChange) (*models.Account, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	account, exists := s.accounts[id]
	if !exists {
		return nil, fmt.Errorf("%w: account %s", repository.ErrNotFound, id)
	}

	at := change.ChangedAt
	actor := change.Actor
	account.Status = change.Status
	switch change.Status {
	case models.StatusApproved:
		account.ApprovedAt = &at
		account.ApprovedBy = &actor
	case models.StatusRejected:
		reason := change.Reason
		account.RejectedAt = &at
		account.RejectedBy = &actor
		account.RejectionReason = &reason
	}
	account.UpdatedAt = s.now()
	return account.Clone(), nil
}

func (r *AccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	account, exists := s.accounts[id]
	if !exists {
		return fmt.Errorf("%w: account %s", repository.ErrNotFound, id)
	}
	account.PasswordHash = passwordHash
	account.UpdatedAt = s.now()
	return nil
}

func (r *AccountRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	account, exists := s.accounts[id]
	if !exists {
		return fmt.Errorf("%w: account %s", repository.ErrNotFound, id)
	}
	account.LastLogin = &at
	return nil
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	s := r.store
	lock := s.accountLock(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	account, exists := s.accounts[id]
	if !exists {
		return fmt.Errorf("%w: account %s", repository.ErrNotFound, id)
	}

	delete(s.accounts, id)
	delete(s.byUsername, account.Username)
	if account.Email != nil {
		delete(s.byEmail, strings.ToLower(*account.Email))
	}

	for _, tx := range s.byAccount[id] {
		delete(s.byTxID, tx.ID)
		if tx.PaymentReference != nil {
			delete(s.byPayment, *tx.PaymentReference)
		}
	}
	delete(s.byAccount, id)

	kept := s.ledger[:0]
	for _, tx := range s.ledger {
		if tx.AccountID != id {
			kept = append(kept, tx)
		}
	}
	s.ledger = kept

	for rid, reset := range s.resets {
		if reset.AccountID == id {
			delete(s.resets, rid)
		}
	}
	return nil
}

func (r *AccountRepository) Count(ctx context.Context) (int, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts), nil
}
