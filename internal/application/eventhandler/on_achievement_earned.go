// Package eventhandler contains domain event handlers. Handlers run after
// the work that produced the event has committed and only cause side
// effects such as notifications.
package eventhandler

import (
	"context"
	"fmt"
	"time"

	"github.com/learnpath/learnpath-lms/internal/domain/notification"
	"github.com/learnpath/learnpath-lms/internal/domain/shared"
	"github.com/learnpath/learnpath-lms/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON ACHIEVEMENT EARNED HANDLER
// Stores an in-app notification for every newly earned achievement.
// ═══════════════════════════════════════════════════════════════════════════

// AchievementEarnedConfig configures the handler.
type AchievementEarnedConfig struct {
	// Timeout bounds the notification write.
	Timeout time.Duration

	// Enabled gates notifications per user. Nil means always.
	Enabled func(userID string) bool
}

// DefaultAchievementEarnedConfig returns default configuration.
func DefaultAchievementEarnedConfig() AchievementEarnedConfig {
	return AchievementEarnedConfig{Timeout: 5 * time.Second}
}

// OnAchievementEarnedHandler handles shared.EventAchievementEarned.
type OnAchievementEarnedHandler struct {
	notifications notification.Repository
	log           *logger.Logger
	config        AchievementEarnedConfig
	now           func() time.Time
}

// NewOnAchievementEarnedHandler creates the handler.
func NewOnAchievementEarnedHandler(repo notification.Repository, log *logger.Logger, config AchievementEarnedConfig) *OnAchievementEarnedHandler {
	if log == nil {
		log = logger.Nop()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultAchievementEarnedConfig().Timeout
	}
	return &OnAchievementEarnedHandler{
		notifications: repo,
		log:           log.With(logger.Component("on_achievement_earned")),
		config:        config,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Handle implements shared.EventHandler.
func (h *OnAchievementEarnedHandler) Handle(event shared.Event) error {
	ev, ok := event.(shared.AchievementEarnedEvent)
	if !ok {
		h.log.Warn("unexpected event", logger.String("event_type", string(event.EventType())))
		return nil
	}
	if h.config.Enabled != nil && !h.config.Enabled(ev.UserID) {
		return nil
	}

	body := fmt.Sprintf("+%d points", ev.Points)
	n, err := notification.New(ev.UserID, notification.NotificationTypeAchievement, ev.AchievementName, body, h.now())
	if err != nil {
		return fmt.Errorf("on_achievement_earned: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	if err := h.notifications.Save(ctx, n); err != nil {
		return fmt.Errorf("on_achievement_earned: %w", err)
	}

	h.log.Info("achievement notification stored",
		logger.UserID(ev.UserID),
		logger.String("achievement_id", ev.AchievementID),
		logger.Points(ev.Points),
	)
	return nil
}
