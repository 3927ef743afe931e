package memstorage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/receiptly/activation-api/internal/domain/apikey"
	"github.com/receiptly/activation-api/internal/ierr"
)

type APIKeyRepository struct {
	mu   sync.RWMutex
	keys map[uuid.UUID]*apikey.APIKey
}

func NewAPIKeyRepository() *APIKeyRepository {
	return &APIKeyRepository{
		keys: make(map[uuid.UUID]*apikey.APIKey),
	}
}

var _ apikey.Repository = (*APIKeyRepository)(nil)

func (r *APIKeyRepository) FindByPrefix(ctx context.Context, prefix string) (*apikey.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, key := range r.keys {
		if key.Prefix == prefix && key.IsEnabled {
			keyCopy := *key
			return &keyCopy, nil
		}
	}
	return nil, ierr.ErrAPIKeyNotFound
}

func (r *APIKeyRepository) Create(ctx context.Context, key *apikey.APIKey) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *key
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now().UTC()
	r.keys[stored.ID] = &stored
	return stored.ID, nil
}

func (r *APIKeyRepository) List(ctx context.Context) ([]*apikey.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*apikey.APIKey, 0, len(r.keys))
	for _, key := range r.keys {
		keyCopy := *key
		out = append(out, &keyCopy)
	}
	return out, nil
}

func (r *APIKeyRepository) Disable(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.keys[id]
	if !ok {
		return ierr.ErrNotFound
	}
	key.IsEnabled = false
	return nil
}

func (r *APIKeyRepository) UpdateLastUsed(ctx context.Context, id uuid.UUID, lastUsed time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if key, ok := r.keys[id]; ok {
		key.LastUsedAt = &lastUsed
	}
	return nil
}
