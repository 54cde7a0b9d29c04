package messaging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnpath/learnpath-lms/internal/domain/shared"
	"github.com/learnpath/learnpath-lms/pkg/retry"
)

func fastRetry() []retry.Option {
	return []retry.Option{
		retry.WithMaxAttempts(3),
		retry.WithInitialDelay(time.Millisecond),
		retry.WithMaxDelay(2 * time.Millisecond),
	}
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next shared.EventHandler) shared.EventHandler {
			return func(e shared.Event) error {
				order = append(order, name)
				return next(e)
			}
		}
	}

	h := Chain(func(shared.Event) error {
		order = append(order, "handler")
		return nil
	}, mark("outer"), mark("inner"))

	require.NoError(t, h(shared.NewLeaderboardUpdatedEvent("U", 1, 1)))
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestRetry_RecoversFromTransientFailure(t *testing.T) {
	calls := 0
	h := Chain(func(shared.Event) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	}, Retry(fastRetry()...))

	require.NoError(t, h(shared.NewLeaderboardUpdatedEvent("U", 1, 1)))
	assert.Equal(t, 3, calls)
}

func TestRetry_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	h := Chain(func(shared.Event) error {
		calls++
		return retry.Permanent(errors.New("bad payload"))
	}, Retry(fastRetry()...))

	err := h(shared.NewLeaderboardUpdatedEvent("U", 1, 1))
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	h := Chain(func(shared.Event) error {
		<-release
		return nil
	}, Timeout(10*time.Millisecond))

	err := h(shared.NewLeaderboardUpdatedEvent("U", 1, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")

	fast := Chain(func(shared.Event) error { return nil }, Timeout(time.Second))
	assert.NoError(t, fast(shared.NewLeaderboardUpdatedEvent("U", 1, 1)))
}

func TestTimeout_ContainsPanic(t *testing.T) {
	h := Chain(func(shared.Event) error { panic("boom") }, Timeout(time.Second))
	err := h(shared.NewLeaderboardUpdatedEvent("U", 1, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
}

func TestDeadLetter(t *testing.T) {
	q := NewDeadLetterQueue(2)
	failing := Chain(func(shared.Event) error { return errors.New("down") }, DeadLetter(q, "notify"))
	ok := Chain(func(shared.Event) error { return nil }, DeadLetter(q, "notify"))

	require.NoError(t, ok(shared.NewLeaderboardUpdatedEvent("U", 1, 1)))
	assert.Equal(t, 0, q.Len())

	for _, user := range []string{"A", "B", "C"} {
		require.Error(t, failing(shared.NewLeaderboardUpdatedEvent(user, 1, 1)))
	}

	entries := q.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "B", entries[0].Event.AggregateID())
	assert.Equal(t, "C", entries[1].Event.AggregateID())
	assert.Equal(t, "notify", entries[0].Handler)
}
