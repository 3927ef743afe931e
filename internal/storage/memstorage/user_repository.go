package memstorage

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/receiptly/activation-api/internal/domain/user"
	"github.com/receiptly/activation-api/internal/ierr"
)

// UserRepository holds the operator accounts. The system has exactly
// one admin, seeded from configuration, so a map is the whole store.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*user.User
}

func NewUserRepository(adminUsername, adminPasswordHash string) *UserRepository {
	repo := &UserRepository{
		users: make(map[string]*user.User),
	}

	adminUser := &user.User{
		ID:           uuid.New(),
		Username:     adminUsername,
		PasswordHash: adminPasswordHash,
		Role:         "admin",
	}
	repo.users[strings.ToLower(adminUser.Username)] = adminUser

	return repo
}

var _ user.Repository = (*UserRepository)(nil)

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[strings.ToLower(username)]
	if !ok {
		return nil, ierr.ErrUserNotFound
	}

	userCopy := *u
	return &userCopy, nil
}
