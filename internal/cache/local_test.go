package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalClaimExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocal()
	l.now = func() time.Time { return now }

	ok, err := l.Claim(ctx, "wamid.1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.Claim(ctx, "wamid.1", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = l.Claim(ctx, "wamid.1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}
