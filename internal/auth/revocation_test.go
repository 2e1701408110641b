package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRevocations_ExpiryFollowsClock(t *testing.T) {
	current := time.Date(2026, 5, 12, 9, 0, 0, 0, time.UTC)
	revocations := NewMemoryRevocations().WithClock(func() time.Time { return current })
	ctx := context.Background()

	require.NoError(t, revocations.Revoke(ctx, "jti-1", current.Add(time.Hour)))

	revoked, err := revocations.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	current = current.Add(2 * time.Hour)
	revoked, err = revocations.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	revoked, err = revocations.IsRevoked(ctx, "jti-unknown")
	require.NoError(t, err)
	assert.False(t, revoked)
}
