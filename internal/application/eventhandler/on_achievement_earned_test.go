package eventhandler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnpath/learnpath-lms/internal/domain/notification"
	"github.com/learnpath/learnpath-lms/internal/domain/shared"
)

type memNotifications struct {
	saved []*notification.Notification
	err   error
}

func (m *memNotifications) Save(_ context.Context, n *notification.Notification) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, n)
	return nil
}

func (m *memNotifications) ListByUser(context.Context, string, bool, int) ([]*notification.Notification, error) {
	return m.saved, nil
}

func (m *memNotifications) MarkRead(context.Context, string, string, time.Time) error { return nil }

func TestOnAchievementEarned_StoresNotification(t *testing.T) {
	repo := &memNotifications{}
	h := NewOnAchievementEarnedHandler(repo, nil, AchievementEarnedConfig{})

	err := h.Handle(shared.NewAchievementEarnedEvent("U", "a1", "First Steps", 10, "C"))
	require.NoError(t, err)

	require.Len(t, repo.saved, 1)
	n := repo.saved[0]
	assert.Equal(t, "U", n.UserID)
	assert.Equal(t, notification.NotificationTypeAchievement, n.Type)
	assert.Equal(t, "First Steps", n.Title)
	assert.Equal(t, "+10 points", n.Body)
}

func TestOnAchievementEarned_IgnoresOtherEvents(t *testing.T) {
	repo := &memNotifications{}
	h := NewOnAchievementEarnedHandler(repo, nil, DefaultAchievementEarnedConfig())

	require.NoError(t, h.Handle(shared.NewLeaderboardUpdatedEvent("U", 5, 5)))
	assert.Empty(t, repo.saved)
}

func TestOnAchievementEarned_SaveError(t *testing.T) {
	repo := &memNotifications{err: errors.New("db down")}
	h := NewOnAchievementEarnedHandler(repo, nil, DefaultAchievementEarnedConfig())

	err := h.Handle(shared.NewAchievementEarnedEvent("U", "a1", "First Steps", 10, ""))
	assert.ErrorIs(t, err, repo.err)
}

func TestOnAchievementEarned_Gated(t *testing.T) {
	repo := &memNotifications{}
	h := NewOnAchievementEarnedHandler(repo, nil, AchievementEarnedConfig{
		Enabled: func(userID string) bool { return userID == "beta" },
	})

	require.NoError(t, h.Handle(shared.NewAchievementEarnedEvent("U", "a1", "First Steps", 10, "")))
	assert.Empty(t, repo.saved)

	require.NoError(t, h.Handle(shared.NewAchievementEarnedEvent("beta", "a1", "First Steps", 10, "")))
	assert.Len(t, repo.saved, 1)
}
