package apikey

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// FindByPrefix only returns enabled keys; ierr.ErrAPIKeyNotFound otherwise.
	FindByPrefix(ctx context.Context, prefix string) (*APIKey, error)
	Create(ctx context.Context, key *APIKey) (uuid.UUID, error)
	List(ctx context.Context) ([]*APIKey, error)
	Disable(ctx context.Context, id uuid.UUID) error
	UpdateLastUsed(ctx context.Context, id uuid.UUID, lastUsed time.Time) error
}
