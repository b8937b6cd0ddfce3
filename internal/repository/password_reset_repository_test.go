package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/staff-service/internal/domain"
)

func TestPasswordResetRepository(t *testing.T) {
	setup := func(t *testing.T) (*miniredis.Miniredis, PasswordResetRepository) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return mr, NewPasswordResetRepository(client)
	}

	t.Run("Should consume a token exactly once", func(t *testing.T) {
		_, repo := setup(t)
		ctx := context.Background()
		require.NoError(t, repo.Create(ctx, &domain.PasswordResetToken{
			Token: "tok", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour),
		}))

		got, err := repo.Consume(ctx, "tok")
		require.NoError(t, err)
		assert.Equal(t, "u1", got.UserID)

		_, err = repo.Consume(ctx, "tok")
		assert.ErrorIs(t, err, ErrNotFound)
	})
	t.Run("Should expire tokens", func(t *testing.T) {
		mr, repo := setup(t)
		ctx := context.Background()
		require.NoError(t, repo.Create(ctx, &domain.PasswordResetToken{
			Token: "tok", UserID: "u1", ExpiresAt: time.Now().Add(time.Minute),
		}))
		mr.FastForward(2 * time.Minute)

		_, err := repo.Consume(ctx, "tok")
		assert.ErrorIs(t, err, ErrNotFound)
	})
	t.Run("Should reject already expired tokens", func(t *testing.T) {
		_, repo := setup(t)
		err := repo.Create(context.Background(), &domain.PasswordResetToken{
			Token: "tok", UserID: "u1", ExpiresAt: time.Now().Add(-time.Second),
		})
		assert.Error(t, err)
	})
}
