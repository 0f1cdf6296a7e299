package outbox

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kwikflow/internal/logging"
)

type greeting struct {
	To string `json:"to"`
}

func startDispatcher(t *testing.T, opts Options, register func(d *Dispatcher)) *Dispatcher {
	t.Helper()
	d := NewDispatcher(NewMemoryQueue(16), opts, logging.Discard(), nil)
	register(d)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return d
}

func TestDispatcherDeliversPayload(t *testing.T) {
	got := make(chan greeting, 1)
	d := startDispatcher(t, Options{Workers: 2, MaxAttempts: 3}, func(d *Dispatcher) {
		d.Register("greet", func(_ context.Context, job Job) error {
			var g greeting
			if err := job.Decode(&g); err != nil {
				return err
			}
			got <- g
			return nil
		})
	})

	require.NoError(t, d.Enqueue(context.Background(), "greet", greeting{To: "ann@example.com"}))

	select {
	case g := <-got:
		require.Equal(t, "ann@example.com", g.To)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed")
	}
}

func TestDispatcherRetriesUntilMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)
	d := startDispatcher(t, Options{Workers: 1, MaxAttempts: 3, Backoff: time.Millisecond}, func(d *Dispatcher) {
		d.Register("flaky", func(_ context.Context, job Job) error {
			calls.Add(1)
			wg.Done()
			return errors.New("provider unavailable")
		})
	})

	require.NoError(t, d.Enqueue(context.Background(), "flaky", nil))
	waitOrFail(t, &wg)

	// give the worker a moment to prove it does not try a fourth time
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(3), calls.Load())
}

func TestDispatcherStopsOnPermanentError(t *testing.T) {
	var calls atomic.Int32
	attempts := make(chan int, 4)
	d := startDispatcher(t, Options{Workers: 1, MaxAttempts: 5, Backoff: time.Millisecond}, func(d *Dispatcher) {
		d.Register("broken", func(_ context.Context, job Job) error {
			calls.Add(1)
			attempts <- job.Attempt
			return Permanent(errors.New("not configured"))
		})
	})

	require.NoError(t, d.Enqueue(context.Background(), "broken", nil))
	select {
	case n := <-attempts:
		require.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed")
	}
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(1), calls.Load())
}

func TestDispatcherSucceedsAfterTransientFailure(t *testing.T) {
	done := make(chan int, 1)
	d := startDispatcher(t, Options{Workers: 1, MaxAttempts: 4, Backoff: time.Millisecond}, func(d *Dispatcher) {
		d.Register("eventually", func(_ context.Context, job Job) error {
			if job.Attempt < 2 {
				return errors.New("timeout")
			}
			done <- job.Attempt
			return nil
		})
	})

	require.NoError(t, d.Enqueue(context.Background(), "eventually", nil))
	select {
	case n := <-done:
		require.Equal(t, 2, n)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not succeed")
	}
}

func TestMemoryQueueRejectsWhenFull(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()
	require.NoError(t, q.Push(ctx, Job{ID: "1"}))
	require.ErrorIs(t, q.Push(ctx, Job{ID: "2"}), ErrQueueFull)

	job, err := q.Pop(ctx)
	require.NoError(t, err)
	require.Equal(t, "1", job.ID)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = q.Pop(cancelled)
	require.ErrorIs(t, err, context.Canceled)
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	d := NewDispatcher(NewMemoryQueue(1), Options{Backoff: time.Second}, logging.Discard(), nil)
	require.Equal(t, time.Second, d.backoff(1))
	require.Equal(t, 2*time.Second, d.backoff(2))
	require.Equal(t, 4*time.Second, d.backoff(3))
	require.Equal(t, time.Minute, d.backoff(10))
}

func TestDecodeErrorIsPermanent(t *testing.T) {
	err := Job{Kind: "x", Payload: []byte("{")}.Decode(&greeting{})
	require.Error(t, err)
	require.True(t, IsPermanent(err))
	require.False(t, IsPermanent(errors.New("plain")))
}

func waitOrFail(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	ch := make(chan struct{})
	go func() {
		wg.Wait()
		close(ch)
	}()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handler calls")
	}
}
