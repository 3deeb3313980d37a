package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/roryk/backend/internal/models"
	"github.com/roryk/backend/internal/repository"
)

type PasswordResetRepository struct {
	store *Store
}

func (r *PasswordResetRepository) Create(ctx context.Context, reset *models.PasswordReset) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if reset.ID == "" {
		reset.ID = uuid.NewString()
	}
	for _, existing := range s.resets {
		if existing.TokenHash == reset.TokenHash {
			return fmt.Errorf("%w: reset token", repository.ErrDuplicate)
		}
	}
	if reset.CreatedAt.IsZero() {
		reset.CreatedAt = s.now()
	}
	c := *reset
	s.resets[reset.ID] = &c
	return nil
}

func (r *PasswordResetRepository) FindValid(ctx context.Context, tokenHash string, now time.Time) (*models.PasswordReset, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, reset := range s.resets {
		if reset.TokenHash == tokenHash && reset.Valid(now) {
			c := *reset
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: reset token", repository.ErrNotFound)
}

func (r *PasswordResetRepository) MarkUsed(ctx context.Context, id string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	reset, exists := s.resets[id]
	if !exists || reset.Used {
		return fmt.Errorf("%w: reset %s", repository.ErrNotFound, id)
	}
	reset.Used = true
	return nil
}

func (r *PasswordResetRepository) CountRecent(ctx context.Context, accountID string, since time.Time) (int, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, reset := range s.resets {
		if reset.AccountID == accountID && reset.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}

func (r *PasswordResetRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, reset := range s.resets {
		if reset.Used || !now.Before(reset.ExpiresAt) {
			delete(s.resets, id)
			deleted++
		}
	}
	return deleted, nil
}
