package gamification

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/learnpath/learnpath-lms/internal/domain/gamification"
	"github.com/learnpath/learnpath-lms/pkg/logger"
)

// DefaultEventTimeout bounds the evaluation calls of one event.
const DefaultEventTimeout = 10 * time.Second

const tracerName = "github.com/learnpath/learnpath-lms/internal/application/gamification"

// ReactorConfig configures a Reactor.
type ReactorConfig struct {
	EventTimeout time.Duration
}

// Reactor drives the evaluation API for committed events.
type Reactor struct {
	evaluator gamification.Evaluator
	log       *logger.Logger
	tracer    trace.Tracer
	timeout   time.Duration
}

// NewReactor creates a reactor.
func NewReactor(evaluator gamification.Evaluator, log *logger.Logger, cfg ReactorConfig) *Reactor {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.EventTimeout <= 0 {
		cfg.EventTimeout = DefaultEventTimeout
	}
	return &Reactor{
		evaluator: evaluator,
		log:       log.With(logger.Component("gamification_reactor")),
		tracer:    otel.Tracer(tracerName),
		timeout:   cfg.EventTimeout,
	}
}

// ReactSummary counts the outcome of one React call.
type ReactSummary struct {
	Processed int
	Failed    int
}

// React processes events in order. A failing event is logged and skipped;
// nothing is retried and no error is returned.
//
// The caller's cancellation is detached: the data is already committed, so
// the reaction must not be cut short by the request ending. Each event gets
// its own deadline instead.
func (r *Reactor) React(ctx context.Context, events []ProgressChangeEvent) ReactSummary {
	var sum ReactSummary
	base := context.WithoutCancel(ctx)
	for _, ev := range events {
		if err := r.handle(base, ev); err != nil {
			sum.Failed++
			r.log.Error("gamification reaction failed",
				logger.EventKind(ev.Kind.String()),
				logger.UserID(ev.UserID),
				logger.String("entity_id", ev.EntityID),
				logger.Err(err),
			)
			continue
		}
		sum.Processed++
	}
	return sum
}

func (r *Reactor) handle(ctx context.Context, ev ProgressChangeEvent) (err error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ctx, span := r.tracer.Start(ctx, "gamification.react",
		trace.WithAttributes(
			attribute.String("event.kind", ev.Kind.String()),
			attribute.String("user.id", ev.UserID),
			attribute.String("course.id", ev.CourseID),
		),
	)
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	start := time.Now()
	res, err := r.evaluator.CheckAndAwardAchievements(ctx, awardRequest(ev))
	if err != nil {
		return fmt.Errorf("check achievements: %w", err)
	}

	if err := r.evaluator.UpdateLeaderboard(ctx, ev.UserID, ev.CourseID, res.Points); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	span.SetAttributes(attribute.Int("points.delta", res.Points), attribute.Int("achievements.earned", len(res.Earned)))
	r.log.Debug("gamification reaction done",
		logger.EventKind(ev.Kind.String()),
		logger.UserID(ev.UserID),
		logger.Points(res.Points),
		logger.Latency(time.Since(start)),
	)
	return nil
}

func awardRequest(ev ProgressChangeEvent) gamification.AwardRequest {
	req := gamification.AwardRequest{
		UserID:   ev.UserID,
		CourseID: ev.CourseID,
	}
	if ev.Kind == KindAssessmentCompleted {
		score := ev.Score
		req.AssessmentID = ev.AssessmentID
		req.Score = &score
	}
	return req
}
