// Package notification contains the in-app notification model of LearnPath LMS.
// Notifications are written by event handlers after gamification work commits
// and are read back by the learner's client.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION TYPE
// ══════════════════════════════════════════════════════════════════════════════

// NotificationType identifies what a notification is about.
type NotificationType string

const (
	// NotificationTypeAchievement - a new achievement was earned.
	NotificationTypeAchievement NotificationType = "achievement"
)

// IsValid reports whether the type is known.
func (t NotificationType) IsValid() bool {
	return t == NotificationTypeAchievement
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// Notification is one message for one learner.
type Notification struct {
	ID        string
	UserID    string
	Type      NotificationType
	Title     string
	Body      string
	CreatedAt time.Time
	ReadAt    *time.Time
}

// Errors.
var (
	ErrInvalidType    = errors.New("notification: invalid type")
	ErrEmptyRecipient = errors.New("notification: recipient is required")
	ErrEmptyTitle     = errors.New("notification: title is required")
	ErrAlreadyRead    = errors.New("notification: already read")
	ErrNotFound       = errors.New("notification: not found")
)

// New creates an unread notification.
func New(userID string, t NotificationType, title, body string, at time.Time) (*Notification, error) {
	if userID == "" {
		return nil, ErrEmptyRecipient
	}
	if !t.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, t)
	}
	if title == "" {
		return nil, ErrEmptyTitle
	}
	return &Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      t,
		Title:     title,
		Body:      body,
		CreatedAt: at.UTC(),
	}, nil
}

// IsRead reports whether the learner has seen it.
func (n *Notification) IsRead() bool { return n.ReadAt != nil }

// MarkRead marks the notification as read.
func (n *Notification) MarkRead(at time.Time) error {
	if n.IsRead() {
		return ErrAlreadyRead
	}
	at = at.UTC()
	n.ReadAt = &at
	return nil
}

// Repository persists notifications.
type Repository interface {
	Save(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*Notification, error)
	MarkRead(ctx context.Context, userID, id string, at time.Time) error
}
