package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateAPIKeyRequest struct {
	Description string `json:"description" binding:"required"`
}

type CreateAPIKeyResponse struct {
	ID          uuid.UUID `json:"id"`
	FullKey     string    `json:"full_key"`
	Prefix      string    `json:"prefix"`
	Description string    `json:"description"`
}

type APIKeyResponse struct {
	ID          uuid.UUID  `json:"id"`
	Prefix      string     `json:"prefix"`
	Description string     `json:"description"`
	IsEnabled   bool       `json:"is_enabled"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
}
