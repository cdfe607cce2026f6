package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"capturesque/internal/common"
	"capturesque/internal/domain/model"
)

// memUserRepository keeps users in process memory. It backs development runs
// without DATABASE_URL and the handler tests; records vanish on restart.
type memUserRepository struct {
	mu      sync.RWMutex
	nextID  int64
	byEmail map[string]*model.User
}

func NewMemoryUserRepository() UserRepository {
	return &memUserRepository{
		byEmail: make(map[string]*model.User),
	}
}

func (r *memUserRepository) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[user.Email]; exists {
		return fmt.Errorf("email already registered: %w", common.ErrConflict)
	}
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = time.Now().UTC()

	stored := *user
	r.byEmail[stored.Email] = &stored
	return nil
}

func (r *memUserRepository) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byEmail[email]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *u
	return &cp, nil
}
