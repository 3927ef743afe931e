package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apikeyRepo "github.com/receiptly/activation-api/internal/domain/apikey"
	"github.com/receiptly/activation-api/internal/ierr"
	"github.com/receiptly/activation-api/internal/service"
	"github.com/receiptly/activation-api/internal/util"
)

const apiKeyHeader = "X-API-Key"

// IssuerAuthMiddleware guards endpoints callable either by the admin
// (bearer token) or by automation (X-API-Key). The API key path hashes
// the presented key and compares in constant time against the stored
// hash.
func IssuerAuthMiddleware(authService *service.AuthService, repo apikeyRepo.Repository, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("IssuerAuthMiddleware")
	bearerAuth := AuthMiddleware(authService, logger)

	return func(c *gin.Context) {
		apiKeyFromHeader := c.GetHeader(apiKeyHeader)
		if apiKeyFromHeader == "" {
			bearerAuth(c)
			return
		}

		parts := strings.SplitN(apiKeyFromHeader, "_", 3)
		if len(parts) < 3 || parts[0] != "ra" {
			log.Warn("Invalid API key format received")
			_ = c.Error(fmt.Errorf("%w: invalid api key format", ierr.ErrUnauthorized))
			c.Abort()
			return
		}
		prefix := parts[1]

		keyRecord, err := repo.FindByPrefix(c.Request.Context(), prefix)
		if err != nil {
			if errors.Is(err, ierr.ErrAPIKeyNotFound) {
				log.Warn("API key not found or disabled", zap.String("prefix", prefix))
				_ = c.Error(fmt.Errorf("%w: invalid or disabled api key", ierr.ErrForbidden))
				c.Abort()
				return
			}

			log.Error("Failed to query API key repository", zap.String("prefix", prefix), zap.Error(err))
			_ = c.Error(err)
			c.Abort()
			return
		}

		receivedKeyHash := util.HashAPIKey(apiKeyFromHeader)

		if subtle.ConstantTimeCompare([]byte(receivedKeyHash), []byte(keyRecord.KeyHash)) != 1 {
			log.Warn("API key hash mismatch", zap.String("prefix", prefix), zap.String("key_id", keyRecord.ID.String()))
			_ = c.Error(fmt.Errorf("%w: invalid or disabled api key", ierr.ErrForbidden))
			c.Abort()
			return
		}

		go func(id uuid.UUID, repo apikeyRepo.Repository, l *zap.Logger) {
			ctxAsync, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := repo.UpdateLastUsed(ctxAsync, id, time.Now().UTC()); err != nil {
				l.Error("Failed to update API key last used time asynchronously", zap.String("key_id", id.String()), zap.Error(err))
			}
		}(keyRecord.ID, repo, log)

		log.Debug("API key validated", zap.String("prefix", prefix), zap.String("key_id", keyRecord.ID.String()))
		c.Next()
	}
}
