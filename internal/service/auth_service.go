package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/receiptly/activation-api/internal/config"
	"github.com/receiptly/activation-api/internal/domain/user"
	"github.com/receiptly/activation-api/internal/ierr"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// TokenDenylist tracks revoked token IDs until their natural expiry.
type TokenDenylist interface {
	Add(ctx context.Context, jti string, ttl time.Duration) error
	Contains(ctx context.Context, jti string) (bool, error)
}

type AuthService struct {
	users    user.Repository
	denylist TokenDenylist
	cfg      *config.AuthConfig
	logger   *zap.Logger
}

func NewAuthService(users user.Repository, denylist TokenDenylist, cfg *config.AuthConfig, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:    users,
		denylist: denylist,
		cfg:      cfg,
		logger:   logger.Named("AuthService"),
	}
}

// Login verifies the operator credentials and issues a signed token.
// Unknown user and wrong password collapse into the same error so the
// endpoint cannot be used for account enumeration.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		s.logger.Info("Login attempt for unknown user", zap.String("username", username))
		return "", ierr.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("Login attempt with wrong password", zap.String("username", username))
		return "", ierr.ErrInvalidCredentials
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   u.Username,
		Issuer:    s.cfg.JWTIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		s.logger.Error("Failed to sign admin token", zap.Error(err))
		return "", fmt.Errorf("%w: token signing failed", ierr.ErrInternalServer)
	}

	s.logger.Info("Operator logged in", zap.String("username", u.Username))
	return token, nil
}

// VerifyToken checks signature, expiry and the logout denylist.
func (s *AuthService) VerifyToken(ctx context.Context, rawToken string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(rawToken, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithIssuer(s.cfg.JWTIssuer))

	if err != nil || !token.Valid {
		s.logger.Debug("Token verification failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ierr.ErrInvalidToken, err)
	}

	denied, err := s.denylist.Contains(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("denylist check failed: %w", err)
	}
	if denied {
		s.logger.Info("Rejected denylisted token", zap.String("jti", claims.ID))
		return nil, fmt.Errorf("%w: token revoked", ierr.ErrInvalidToken)
	}

	return claims, nil
}

// Logout denylists the token's ID for its remaining lifetime.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	claims, err := s.VerifyToken(ctx, rawToken)
	if err != nil {
		return err
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if err := s.denylist.Add(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("failed to denylist token: %w", err)
	}

	s.logger.Info("Operator logged out", zap.String("subject", claims.Subject))
	return nil
}
