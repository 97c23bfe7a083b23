package auth

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"strings"
)

var _ contract.IAuthProvider = (*TokenResolver)(nil)

// UserDirectory answers whether an identity still exists.
type UserDirectory interface {
	UserExists(ctx context.Context, userID domain.UserID) (bool, error)
}

// TokenResolver turns a bearer token into the identity owning the connection.
type TokenResolver struct {
	secret []byte
	users  UserDirectory
	log    *slog.Logger
}

// NewTokenResolver builds a resolver; users may be nil to trust any valid token.
func NewTokenResolver(secret []byte, users UserDirectory, log *slog.Logger) *TokenResolver {
	return &TokenResolver{secret: secret, users: users, log: log}
}

func (r *TokenResolver) Resolve(ctx context.Context, token string) (domain.UserID, error) {
	if strings.TrimSpace(token) == "" {
		return 0, errors.ErrMissingToken
	}
	claims, err := ValidateToken(r.secret, token)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errors.ErrInvalidCredential, err)
	}
	if r.users == nil {
		return claims.UserID, nil
	}

	exists, err := r.users.UserExists(ctx, claims.UserID)
	if err != nil {
		// Not a credential problem, the directory is unavailable
		return 0, fmt.Errorf("user lookup failed: %w", err)
	}
	if !exists {
		r.log.Debug("Token refers to an unknown user", "user_id", claims.UserID)
		return 0, fmt.Errorf("%w: %w", errors.ErrInvalidCredential, errors.ErrUnknownUser)
	}
	return claims.UserID, nil
}
