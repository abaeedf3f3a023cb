// Package storetest holds the behavioural checks every revocation.Store must pass.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/jwtauth/revocation"
)

// Run exercises store against the denylist contract.
func Run(t *testing.T, store revocation.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("unknown id is not revoked", func(t *testing.T) {
		revoked, err := store.IsRevoked(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("revoke then lookup", func(t *testing.T) {
		jti := uuid.NewString()
		require.NoError(t, store.Revoke(ctx, jti, time.Now().Add(time.Hour)))

		revoked, err := store.IsRevoked(ctx, jti)
		require.NoError(t, err)
		assert.True(t, revoked)
	})

	t.Run("revoke is idempotent", func(t *testing.T) {
		jti := uuid.NewString()
		expiresAt := time.Now().Add(time.Hour)
		require.NoError(t, store.Revoke(ctx, jti, expiresAt))
		require.NoError(t, store.Revoke(ctx, jti, expiresAt))

		revoked, err := store.IsRevoked(ctx, jti)
		require.NoError(t, err)
		assert.True(t, revoked)
	})

	t.Run("other ids unaffected", func(t *testing.T) {
		require.NoError(t, store.Revoke(ctx, uuid.NewString(), time.Now().Add(time.Hour)))

		revoked, err := store.IsRevoked(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("concurrent revoke", func(t *testing.T) {
		jti := uuid.NewString()
		expiresAt := time.Now().Add(time.Hour)

		var wg sync.WaitGroup
		errs := make(chan error, 16)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- store.Revoke(ctx, jti, expiresAt)
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		revoked, err := store.IsRevoked(ctx, jti)
		require.NoError(t, err)
		assert.True(t, revoked)
	})
}
