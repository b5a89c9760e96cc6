package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/aliskhannn/realtime-notifier/internal/jobqueue"
	mocks "github.com/aliskhannn/realtime-notifier/internal/mocks/rabbitmq/handlers/notification"
	"github.com/aliskhannn/realtime-notifier/internal/rabbitmq/queue"
	"github.com/aliskhannn/realtime-notifier/internal/repository/notification"
)

func newJob() jobqueue.Job {
	id := uuid.New()
	return jobqueue.Job{
		ID:          "notification-" + id.String() + "-1",
		Payload:     jobqueue.Payload{NotificationID: id},
		State:       jobqueue.StateActive,
		Attempts:    1,
		MaxAttempts: 3,
	}
}

func TestHandler_HandleJob_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := mocks.NewMocknotificationService(ctrl)
	h := NewHandler(mockService, mocks.NewMockdeadLetterPublisher(ctrl))
	job := newJob()

	mockService.EXPECT().Process(gomock.Any(), job.Payload.NotificationID).Return(nil)

	assert.NoError(t, h.HandleJob(context.Background(), job))
}

func TestHandler_HandleJob_PropagatesError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := mocks.NewMocknotificationService(ctrl)
	h := NewHandler(mockService, mocks.NewMockdeadLetterPublisher(ctrl))
	job := newJob()

	retryErr := errors.New("recipient pending")
	mockService.EXPECT().Process(gomock.Any(), job.Payload.NotificationID).Return(retryErr)

	assert.ErrorIs(t, h.HandleJob(context.Background(), job), retryErr)
}

func TestHandler_HandleJob_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := mocks.NewMocknotificationService(ctrl)
	h := NewHandler(mockService, mocks.NewMockdeadLetterPublisher(ctrl))
	job := newJob()

	mockService.EXPECT().
		Process(gomock.Any(), job.Payload.NotificationID).
		Return(jobqueue.Permanent(notification.ErrNotificationNotFound))

	err := h.HandleJob(context.Background(), job)
	assert.True(t, jobqueue.IsPermanent(err))
}

func TestHandler_HandleDead(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := mocks.NewMocknotificationService(ctrl)
	mockDLQ := mocks.NewMockdeadLetterPublisher(ctrl)
	h := NewHandler(mockService, mockDLQ)
	job := newJob()
	job.Attempts = 3

	mockService.EXPECT().Abandon(gomock.Any(), job.Payload.NotificationID, "push failed").Return(nil)
	mockDLQ.EXPECT().PublishDead(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, dl queue.DeadLetter) error {
			assert.Equal(t, job.ID, dl.JobID)
			assert.Equal(t, job.Payload.NotificationID, dl.NotificationID)
			assert.Equal(t, 3, dl.Attempts)
			assert.Equal(t, "push failed", dl.Reason)
			return nil
		},
	)

	h.HandleDead(context.Background(), job, errors.New("push failed"))
}

func TestHandler_HandleDead_AbandonFailureStillParksJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := mocks.NewMocknotificationService(ctrl)
	mockDLQ := mocks.NewMockdeadLetterPublisher(ctrl)
	h := NewHandler(mockService, mockDLQ)
	job := newJob()

	mockService.EXPECT().Abandon(gomock.Any(), gomock.Any(), "job attempts exhausted").Return(errors.New("db down"))
	mockDLQ.EXPECT().PublishDead(gomock.Any(), gomock.Any()).Return(errors.New("channel closed"))

	h.HandleDead(context.Background(), job, nil)
}
