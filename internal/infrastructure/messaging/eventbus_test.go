package messaging

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnpath/learnpath-lms/internal/domain/shared"
)

func TestInMemoryEventBus_SyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})

	var typed, all []shared.EventType
	require.NoError(t, bus.Subscribe(shared.EventAchievementEarned, func(e shared.Event) error {
		typed = append(typed, e.EventType())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		all = append(all, e.EventType())
		return errors.New("ignored")
	}))

	require.NoError(t, bus.Publish(shared.NewAchievementEarnedEvent("U", "a", "A", 1, "")))
	require.NoError(t, bus.Publish(shared.NewLeaderboardUpdatedEvent("U", 1, 1)))

	assert.Equal(t, []shared.EventType{shared.EventAchievementEarned}, typed)
	assert.Len(t, all, 2)

	m := bus.Metrics()
	assert.Equal(t, int64(2), m.Published)
	assert.Equal(t, int64(1), m.Handled)
	assert.Equal(t, int64(2), m.Failed)
}

func TestInMemoryEventBus_PanicIsContained(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("boom") }))

	assert.NotPanics(t, func() {
		_ = bus.Publish(shared.NewLeaderboardUpdatedEvent("U", 1, 1))
	})
	assert.Equal(t, int64(1), bus.Metrics().Failed)
}

func TestInMemoryEventBus_AsyncCloseWaits(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 2})

	var calls atomic.Int32
	require.NoError(t, bus.Subscribe(shared.EventLeaderboardUpdated, func(shared.Event) error {
		calls.Add(1)
		return nil
	}))

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(shared.NewLeaderboardUpdatedEvent("U", 1, i)))
	}
	require.NoError(t, bus.Close())

	m := bus.Metrics()
	assert.Equal(t, int64(5), int64(calls.Load())+m.Dropped)
	assert.ErrorIs(t, bus.Publish(shared.NewLeaderboardUpdatedEvent("U", 1, 1)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventLeaderboardUpdated, func(shared.Event) error { return nil }), ErrEventBusClosed)
}

func TestInMemoryEventBus_NilArguments(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	assert.Error(t, bus.Publish(nil))
	assert.Error(t, bus.Subscribe(shared.EventAchievementEarned, nil))
	assert.Error(t, bus.SubscribeAll(nil))
}
