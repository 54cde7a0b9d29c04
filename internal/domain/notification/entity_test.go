package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	at := time.Date(2026, 10, 15, 12, 0, 0, 0, time.FixedZone("ALMT", 5*3600))
	n, err := New("U", NotificationTypeAchievement, "First Steps", "+10 points", at)
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, time.UTC, n.CreatedAt.Location())
	assert.False(t, n.IsRead())

	_, err = New("", NotificationTypeAchievement, "x", "", at)
	assert.ErrorIs(t, err, ErrEmptyRecipient)
	_, err = New("U", "digest", "x", "", at)
	assert.ErrorIs(t, err, ErrInvalidType)
	_, err = New("U", NotificationTypeAchievement, "", "", at)
	assert.ErrorIs(t, err, ErrEmptyTitle)
}

func TestMarkRead(t *testing.T) {
	n, err := New("U", NotificationTypeAchievement, "Points", "", time.Now())
	require.NoError(t, err)

	require.NoError(t, n.MarkRead(time.Now()))
	assert.True(t, n.IsRead())
	assert.ErrorIs(t, n.MarkRead(time.Now()), ErrAlreadyRead)
}
