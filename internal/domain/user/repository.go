package user

import "context"

type Repository interface {
	// FindByUsername returns ierr.ErrUserNotFound when no such account
	// exists. Callers must not leak that distinction to clients.
	FindByUsername(ctx context.Context, username string) (*User, error)
}
