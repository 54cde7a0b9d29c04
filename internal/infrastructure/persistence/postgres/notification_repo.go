package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/learnpath/learnpath-lms/internal/domain/notification"
)

// NotificationRepository implements notification.Repository for PostgreSQL.
type NotificationRepository struct {
	db Querier
}

var _ notification.Repository = (*NotificationRepository)(nil)

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db Querier) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Save inserts a notification.
func (r *NotificationRepository) Save(ctx context.Context, n *notification.Notification) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO notifications (id, user_id, kind, title, body, created_at, read_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, n.ID, n.UserID, string(n.Type), n.Title, n.Body, n.CreatedAt, n.ReadAt)
	if err != nil {
		return fmt.Errorf("failed to save notification: %w", err)
	}
	return nil
}

// ListByUser returns the newest notifications of a user.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*notification.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, kind, title, body, created_at, read_at
		FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR read_at IS NULL)
		ORDER BY created_at DESC
		LIMIT $3
	`, userID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*notification.Notification, error) {
		var n notification.Notification
		var kind string
		if err := row.Scan(&n.ID, &n.UserID, &kind, &n.Title, &n.Body, &n.CreatedAt, &n.ReadAt); err != nil {
			return nil, err
		}
		n.Type = notification.NotificationType(kind)
		return &n, nil
	})
}

// MarkRead marks an unread notification of the user as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id string, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE notifications SET read_at = $3
		WHERE id = $1 AND user_id = $2 AND read_at IS NULL
	`, id, userID, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notification.ErrNotFound
	}
	return nil
}
