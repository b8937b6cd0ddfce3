package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/staff-service/internal/domain"
)

const passwordResetKeyPrefix = "staff:password-reset:"

// PasswordResetRepository manages single-use password reset tokens.
type PasswordResetRepository interface {
	Create(ctx context.Context, token *domain.PasswordResetToken) error
	// Consume returns the token's owner and removes it atomically.
	Consume(ctx context.Context, token string) (*domain.PasswordResetToken, error)
}

type passwordResetRepository struct {
	client *redis.Client
}

// NewPasswordResetRepository stores reset tokens in redis with a TTL matching their expiry.
func NewPasswordResetRepository(client *redis.Client) PasswordResetRepository {
	return &passwordResetRepository{client: client}
}

func (r *passwordResetRepository) Create(ctx context.Context, token *domain.PasswordResetToken) error {
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("password reset token already expired")
	}
	return r.client.Set(ctx, passwordResetKeyPrefix+token.Token, token.UserID, ttl).Err()
}

func (r *passwordResetRepository) Consume(ctx context.Context, token string) (*domain.PasswordResetToken, error) {
	userID, err := r.client.GetDel(ctx, passwordResetKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &domain.PasswordResetToken{Token: token, UserID: userID}, nil
}
