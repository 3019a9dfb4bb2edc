package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	q, err := Open(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q
}

func TestPushPopFIFO(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, q.Push("ch", fmt.Sprintf("msg-%d", i)))
	}
	for i := 0; i < 10; i++ {
		got, err := q.Pop(ctx, "ch", 0)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("msg-%d", i), got)
	}

	_, err := q.Pop(ctx, "ch", 0)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestPopZeroTimeoutNonBlocking(t *testing.T) {
	q := newTestQueue(t)

	start := time.Now()
	_, err := q.Pop(context.Background(), "empty", 0)
	assert.ErrorIs(t, err, ErrEmpty)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestPopTimeoutBound(t *testing.T) {
	q := newTestQueue(t)

	timeout := 300 * time.Millisecond
	start := time.Now()
	_, err := q.Pop(context.Background(), "empty", timeout)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrEmpty)
	assert.GreaterOrEqual(t, elapsed, timeout)
	// Bounded overshoot: timeout plus roughly one poll interval.
	assert.Less(t, elapsed, timeout+5*DefaultPollInterval)
}

func TestPopWaitsForLatePush(t *testing.T) {
	q := newTestQueue(t)

	go func() {
		time.Sleep(150 * time.Millisecond)
		_ = q.Push("late", "arrived")
	}()

	got, err := q.Pop(context.Background(), "late", 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "arrived", got)
}

func TestConcurrentPopAtMostOnce(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	const n = 50
	for i := 0; i < n; i++ {
		require.NoError(t, q.Push("shared", fmt.Sprintf("entry-%d", i)))
	}

	var mu sync.Mutex
	seen := make(map[string]int)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				msg, err := q.Pop(ctx, "shared", 0)
				if err != nil {
					return
				}
				mu.Lock()
				seen[msg]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
	for msg, count := range seen {
		assert.Equal(t, 1, count, "entry %s delivered more than once", msg)
	}
}

func TestChannelsIsolated(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Push("a", "for-a"))
	require.NoError(t, q.Push("b", "for-b"))

	got, err := q.Pop(ctx, "b", 0)
	require.NoError(t, err)
	assert.Equal(t, "for-b", got)

	got, err = q.Pop(ctx, "a", 0)
	require.NoError(t, err)
	assert.Equal(t, "for-a", got)
}

func TestPushJSONRoundTrip(t *testing.T) {
	q := newTestQueue(t)

	in := Envelope{Source: "cli", Content: "hello", SessionID: "s1"}
	require.NoError(t, q.PushJSON(Inbox, in))

	raw, err := q.Pop(context.Background(), Inbox, 0)
	require.NoError(t, err)

	var out Envelope
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	assert.Equal(t, in, out)
}

func TestPublishAliasesPush(t *testing.T) {
	q := newTestQueue(t)

	require.NoError(t, q.Publish("alerts", "whale sighted"))
	got, err := q.Pop(context.Background(), "alerts", 0)
	require.NoError(t, err)
	assert.Equal(t, "whale sighted", got)

	// A published entry is consumed once, not broadcast.
	_, err = q.Pop(context.Background(), "alerts", 0)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestLen(t *testing.T) {
	q := newTestQueue(t)

	n, err := q.Len("ch")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, q.Push("ch", "x"))
	require.NoError(t, q.Push("ch", "y"))
	n, err = q.Len("ch")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
