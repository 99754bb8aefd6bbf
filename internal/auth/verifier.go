package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"chat-relay/internal/domain"

	"github.com/sirupsen/logrus"
)

const (
	msgNoToken      = "Authentication error: No token provided"
	msgInvalidToken = "Authentication error: Invalid token"
	msgInvalidUser  = "Authentication error: Invalid user"
	msgRevoked      = "Authentication error: Token has been revoked"
	msgExpired      = "Authentication error: Token expired"
)

// RevocationList reports tokens that were logged out before they expired.
type RevocationList interface {
	IsTokenRevoked(ctx context.Context, token string) (bool, error)
	RevokeToken(ctx context.Context, token string, ttl time.Duration) error
}

type UserFinder interface {
	FindUser(ctx context.Context, id string) (*domain.User, error)
}

// Verifier turns a presented credential into an Identity.
type Verifier struct {
	tokens  *JWTManager
	revoked RevocationList
	users   UserFinder
	log     logrus.FieldLogger
}

func NewVerifier(tokens *JWTManager, revoked RevocationList, users UserFinder, log logrus.FieldLogger) *Verifier {
	return &Verifier{
		tokens:  tokens,
		revoked: revoked,
		users:   users,
		log:     log.WithField("component", "auth"),
	}
}

// Verify validates credential and returns the identity of an active user.
// Every failure is an authentication error carrying a client-safe message.
func (v *Verifier) Verify(ctx context.Context, credential string) (domain.Identity, error) {
	token := StripBearer(credential)
	if token == "" {
		return domain.Identity{}, domain.NewAuthenticationError(msgNoToken, nil)
	}

	claims, err := v.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			return domain.Identity{}, domain.NewAuthenticationError(msgExpired, err)
		}
		return domain.Identity{}, domain.NewAuthenticationError(msgInvalidToken, err)
	}

	if v.revoked != nil {
		revoked, err := v.revoked.IsTokenRevoked(ctx, token)
		if err != nil {
			// Fail closed when the revocation list is unreachable.
			v.log.WithError(err).Warn("Revocation lookup failed")
			return domain.Identity{}, domain.NewAuthenticationError(msgInvalidToken, err)
		}
		if revoked {
			return domain.Identity{}, domain.NewAuthenticationError(msgRevoked, nil)
		}
	}

	user, err := v.users.FindUser(ctx, claims.UserID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			v.log.WithError(err).WithField("user_id", claims.UserID).Error("User lookup failed")
		}
		return domain.Identity{}, domain.NewAuthenticationError(msgInvalidUser, err)
	}
	if user.Status != domain.UserStatusActive {
		return domain.Identity{}, domain.NewAuthenticationError(msgInvalidUser, nil)
	}

	return domain.Identity{UserID: user.ID, Username: user.Username, Status: user.Status}, nil
}

// Revoke places a still-valid token on the revocation list until it expires.
func (v *Verifier) Revoke(ctx context.Context, credential string) error {
	if v.revoked == nil {
		return domain.NewInfrastructureError("token revocation is not configured", nil)
	}
	token := StripBearer(credential)
	claims, err := v.tokens.ValidateToken(token)
	if err != nil {
		return domain.NewAuthenticationError(msgInvalidToken, err)
	}
	ttl := claims.Remaining(time.Now())
	if ttl == 0 {
		return nil
	}
	if err := v.revoked.RevokeToken(ctx, token, ttl); err != nil {
		return domain.NewInfrastructureError("failed to revoke token", err)
	}
	return nil
}

// StripBearer removes an optional "Bearer " prefix.
func StripBearer(credential string) string {
	credential = strings.TrimSpace(credential)
	if len(credential) > 7 && strings.EqualFold(credential[:7], "bearer ") {
		return strings.TrimSpace(credential[7:])
	}
	return credential
}
