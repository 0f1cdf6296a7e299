package outbox

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"kwikflow/internal/cache"
	"kwikflow/internal/logging"
)

// Requires a reachable Redis; set TEST_REDIS_ADDR to run.
func TestRedisQueueRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	r := cache.New(cache.Config{Addr: addr}, logging.Discard())
	t.Cleanup(func() { _ = r.Close() })
	require.NoError(t, r.Ping(ctx))

	q := NewRedisQueue(r, "kwikflow:test:"+uuid.NewString())
	require.NoError(t, q.Push(ctx, Job{ID: "a", Kind: "k", Payload: []byte(`{"n":1}`)}))
	require.NoError(t, q.Push(ctx, Job{ID: "b", Kind: "k", Payload: []byte(`{"n":2}`)}))

	popCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	first, err := q.Pop(popCtx)
	require.NoError(t, err)
	require.Equal(t, "a", first.ID)
	second, err := q.Pop(popCtx)
	require.NoError(t, err)
	require.Equal(t, "b", second.ID)
	require.JSONEq(t, `{"n":2}`, string(second.Payload))
}
