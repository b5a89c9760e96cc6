package notification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/realtime-notifier/internal/jobqueue"
	"github.com/aliskhannn/realtime-notifier/internal/rabbitmq/queue"
	"github.com/aliskhannn/realtime-notifier/internal/repository/notification"
)

//go:generate mockgen -source=handler.go -destination=../../../mocks/rabbitmq/handlers/notification/mock.go -package=mocks
type notificationService interface {
	Process(ctx context.Context, id uuid.UUID) error
	Abandon(ctx context.Context, id uuid.UUID, reason string) error
}

type deadLetterPublisher interface {
	PublishDead(ctx context.Context, msg queue.DeadLetter) error
}

type Handler struct {
	service notificationService
	dlq     deadLetterPublisher
}

func NewHandler(svc notificationService, dlq deadLetterPublisher) *Handler {
	return &Handler{
		service: svc,
		dlq:     dlq,
	}
}

// HandleJob runs one attempt of a queue job.
func (h *Handler) HandleJob(ctx context.Context, job jobqueue.Job) error {
	id := job.Payload.NotificationID

	zlog.Logger.Info().
		Str("job_id", job.ID).
		Str("notification_id", id.String()).
		Int("attempt", job.Attempts).
		Msg("processing notification job")

	err := h.service.Process(ctx, id)
	if err != nil {
		if errors.Is(err, notification.ErrNotificationNotFound) {
			zlog.Logger.Warn().Str("notification_id", id.String()).Msg("notification not found")
		} else {
			zlog.Logger.Error().Err(err).Str("job_id", job.ID).Msg("notification job failed")
		}

		return err
	}

	return nil
}

// HandleDead fails the notification of a job that ran out of attempts and parks the job in the DLQ.
func (h *Handler) HandleDead(ctx context.Context, job jobqueue.Job, cause error) {
	reason := "job attempts exhausted"
	if cause != nil {
		reason = cause.Error()
	}

	id := job.Payload.NotificationID

	if err := h.service.Abandon(ctx, id, reason); err != nil {
		zlog.Logger.Error().Err(err).Str("notification_id", id.String()).Msg("failed to abandon notification")
	}

	dl := queue.DeadLetter{
		JobID:          job.ID,
		NotificationID: id,
		Attempts:       job.Attempts,
		Reason:         reason,
		FailedAt:       time.Now(),
	}

	if err := h.dlq.PublishDead(ctx, dl); err != nil {
		zlog.Logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to publish to DLQ")
		return
	}

	zlog.Logger.Warn().Str("job_id", job.ID).Str("reason", reason).Msg("job moved to DLQ")
}
