package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/realtime-notifier/internal/dispatch"
	"github.com/aliskhannn/realtime-notifier/internal/jobqueue"
	"github.com/aliskhannn/realtime-notifier/internal/model"
	"github.com/aliskhannn/realtime-notifier/internal/repository/delivery"
	"github.com/aliskhannn/realtime-notifier/internal/repository/notification"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrForbidden         = errors.New("forbidden")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrNotEditable       = errors.New("notification can no longer be edited")
	ErrNotCancellable    = errors.New("notification can no longer be cancelled")
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type notificationRepository interface {
	CreateNotification(ctx context.Context, n model.Notification) (model.Notification, error)
	GetNotificationByID(ctx context.Context, id uuid.UUID) (model.Notification, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, to model.Status, from []model.Status) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) (bool, error)
	SetJobID(ctx context.Context, id uuid.UUID, jobID string) error
	IncrementRetry(ctx context.Context, id uuid.UUID, reason string) (int, error)
	UpdateEditable(ctx context.Context, n model.Notification) (bool, error)
	ListByCreator(ctx context.Context, creator uuid.UUID, limit, offset int) ([]model.Notification, error)
	ListReceived(ctx context.Context, userID uuid.UUID, status model.DeliveryStatus, limit, offset int) ([]model.ReceivedNotification, error)
	CountByStatus(ctx context.Context, creator uuid.UUID) ([]model.StatusCount, error)
	ListIDsByCreator(ctx context.Context, creator uuid.UUID) ([]uuid.UUID, error)
}

type recipientDirectory interface {
	UserExists(ctx context.Context, id uuid.UUID) (bool, error)
	GroupExists(ctx context.Context, id uuid.UUID) (bool, error)
	IsGroupMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error)
}

type deliveryLedger interface {
	Find(ctx context.Context, notificationID, recipientID uuid.UUID) (model.Delivery, error)
	CountPending(ctx context.Context, notificationID uuid.UUID) (int, error)
	CountFailed(ctx context.Context, notificationID uuid.UUID) (int, error)
	FailOutstanding(ctx context.Context, notificationID uuid.UUID, reason string) (int, error)
}

type dispatcher interface {
	Dispatch(ctx context.Context, n model.Notification) (dispatch.Result, error)
}

type jobQueue interface {
	Enqueue(ctx context.Context, notificationID uuid.UUID, delay time.Duration) (string, error)
	Remove(ctx context.Context, jobID string) error
	Counts(ctx context.Context, filter func(jobqueue.Payload) bool) (jobqueue.Counts, error)
}

type pusher interface {
	Push(userID uuid.UUID, msg any) bool
}

// Service drives the notification lifecycle.
type Service struct {
	repo      notificationRepository
	directory recipientDirectory
	ledger    deliveryLedger
	engine    dispatcher
	jobs      jobQueue
	cache     cache
	pusher    pusher
	strategy  retry.Strategy
	now       func() time.Time
}

func NewService(
	repo notificationRepository,
	directory recipientDirectory,
	ledger deliveryLedger,
	engine dispatcher,
	jobs jobQueue,
	cache cache,
	pusher pusher,
	strategy retry.Strategy,
) *Service {
	return &Service{
		repo:      repo,
		directory: directory,
		ledger:    ledger,
		engine:    engine,
		jobs:      jobs,
		cache:     cache,
		pusher:    pusher,
		strategy:  strategy,
		now:       time.Now,
	}
}

// CreateInput carries a new notification.
type CreateInput struct {
	CreatedBy    uuid.UUID
	Kind         model.Kind
	Recipient    uuid.UUID
	Title        string
	Message      string
	ScheduledFor *time.Time
	Metadata     map[string]any
	MaxRetries   int
}

// UpdateInput carries an edit. Nil fields are left unchanged.
// Reschedule replaces the schedule with ScheduledFor, nil meaning now.
type UpdateInput struct {
	Title        *string
	Message      *string
	Reschedule   bool
	ScheduledFor *time.Time
}

// Page selects a window of a listing.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalize() Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageSize
	}

	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}

	if p.Offset < 0 {
		p.Offset = 0
	}

	return p
}

// Stats summarizes a creator's notifications and their queue jobs.
type Stats struct {
	Statuses []model.StatusCount `json:"statuses"`
	Queue    jobqueue.Counts     `json:"queue"`
}

func (in CreateInput) validate() error {
	if in.Kind != model.KindSingle && in.Kind != model.KindGroup {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidInput, in.Kind)
	}

	if in.Recipient == uuid.Nil {
		return fmt.Errorf("%w: recipient is required", ErrInvalidInput)
	}

	if in.Title == "" || in.Message == "" {
		return fmt.Errorf("%w: title and message are required", ErrInvalidInput)
	}

	if in.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must not be negative", ErrInvalidInput)
	}

	return nil
}

// Create persists a notification and either schedules it or dispatches it right away.
func (s *Service) Create(ctx context.Context, in CreateInput) (model.Notification, error) {
	if err := in.validate(); err != nil {
		return model.Notification{}, err
	}

	if err := s.checkRecipient(ctx, in.Kind, in.Recipient); err != nil {
		return model.Notification{}, err
	}

	n := model.Notification{
		Kind:         in.Kind,
		Title:        in.Title,
		Message:      in.Message,
		CreatedBy:    in.CreatedBy,
		Recipient:    in.Recipient,
		ScheduledFor: in.ScheduledFor,
		Status:       model.StatusPending,
		MaxRetries:   in.MaxRetries,
		Metadata:     in.Metadata,
	}

	if n.MaxRetries == 0 {
		n.MaxRetries = model.DefaultMaxRetries
	}

	now := s.now()
	if n.ScheduledAfter(now) {
		n.Status = model.StatusScheduled
	} else {
		n.ScheduledFor = nil
	}

	n, err := s.repo.CreateNotification(ctx, n)
	if err != nil {
		return model.Notification{}, fmt.Errorf("create notification: %w", err)
	}

	s.cacheStatus(ctx, n.ID, n.Status)

	zlog.Logger.Info().
		Str("notification_id", n.ID.String()).
		Str("kind", string(n.Kind)).
		Str("status", string(n.Status)).
		Msg("notification created")

	if n.Status == model.StatusScheduled {
		if err := s.schedule(ctx, n.ID, n.ScheduledFor.Sub(now)); err != nil {
			s.fail(ctx, n, "failed to schedule delivery")
			return model.Notification{}, err
		}

		return s.reload(ctx, n.ID)
	}

	if err := s.dispatchNow(ctx, n); err != nil {
		return model.Notification{}, err
	}

	return s.reload(ctx, n.ID)
}

func (s *Service) checkRecipient(ctx context.Context, kind model.Kind, id uuid.UUID) error {
	var (
		ok  bool
		err error
	)

	if kind == model.KindGroup {
		ok, err = s.directory.GroupExists(ctx, id)
	} else {
		ok, err = s.directory.UserExists(ctx, id)
	}

	if err != nil {
		return fmt.Errorf("check recipient: %w", err)
	}

	if !ok {
		return ErrRecipientNotFound
	}

	return nil
}

func (s *Service) schedule(ctx context.Context, id uuid.UUID, delay time.Duration) error {
	jobID, err := s.jobs.Enqueue(ctx, id, delay)
	if err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}

	if err := s.repo.SetJobID(ctx, id, jobID); err != nil {
		return fmt.Errorf("store job id: %w", err)
	}

	return nil
}

// dispatchNow runs the immediate path of a pending or scheduled notification.
func (s *Service) dispatchNow(ctx context.Context, n model.Notification) error {
	ok, err := s.repo.TransitionStatus(ctx, n.ID, model.StatusProcessing, []model.Status{model.StatusPending, model.StatusScheduled})
	if err != nil {
		return fmt.Errorf("start processing: %w", err)
	}

	if !ok {
		zlog.Logger.Warn().Str("notification_id", n.ID.String()).Msg("notification left pending before dispatch")
		return nil
	}

	n.Status = model.StatusProcessing
	s.cacheStatus(ctx, n.ID, n.Status)

	res, err := s.engine.Dispatch(ctx, n)
	switch {
	case errors.Is(err, dispatch.ErrGroupInvalid):
		s.fail(ctx, n, dispatch.ErrGroupInvalid.Error())
		return nil

	case err != nil:
		zlog.Logger.Error().Err(err).Str("notification_id", n.ID.String()).Msg("immediate dispatch failed, handing over to the queue")
		return s.handOver(ctx, n)

	case res.NeedsRetry() || res.Queued > 0:
		return s.handOver(ctx, n)
	}

	if _, err := s.settle(ctx, n); err != nil {
		if errors.Is(err, dispatch.ErrRetry) {
			return s.handOver(ctx, n)
		}

		return err
	}

	return nil
}

// handOver leaves n in processing and lets a worker finish it. Without a job nothing
// would ever move n out of processing, so a failed enqueue fails n.
func (s *Service) handOver(ctx context.Context, n model.Notification) error {
	if err := s.schedule(ctx, n.ID, 0); err != nil {
		s.fail(ctx, n, "failed to hand over to queue")
		return fmt.Errorf("hand over to queue: %w", err)
	}

	return nil
}

// settle moves a processing notification to its final state once no delivery is pending.
func (s *Service) settle(ctx context.Context, n model.Notification) (model.Status, error) {
	pending, err := s.ledger.CountPending(ctx, n.ID)
	if err != nil {
		return "", fmt.Errorf("count pending deliveries: %w", err)
	}

	if pending > 0 {
		return model.StatusProcessing, fmt.Errorf("%w: %d recipient(s) pending", dispatch.ErrRetry, pending)
	}

	failed, err := s.ledger.CountFailed(ctx, n.ID)
	if err != nil {
		return "", fmt.Errorf("count failed deliveries: %w", err)
	}

	if failed > 0 {
		s.fail(ctx, n, fmt.Sprintf("delivery failed for %d recipient(s)", failed))
		return model.StatusFailed, nil
	}

	ok, err := s.repo.TransitionStatus(ctx, n.ID, model.StatusDelivered, []model.Status{model.StatusProcessing})
	if err != nil {
		return "", fmt.Errorf("mark delivered: %w", err)
	}

	if ok {
		s.cacheStatus(ctx, n.ID, model.StatusDelivered)
		s.notifyCreator(n, model.StatusDelivered, "")

		zlog.Logger.Info().Str("notification_id", n.ID.String()).Msg("notification delivered")
	}

	return model.StatusDelivered, nil
}

// fail moves n to failed, unless it is already terminal.
func (s *Service) fail(ctx context.Context, n model.Notification, reason string) {
	ok, err := s.repo.MarkFailed(ctx, n.ID, reason)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("notification_id", n.ID.String()).Msg("failed to mark notification failed")
		return
	}

	if !ok {
		return
	}

	if count, err := s.ledger.FailOutstanding(ctx, n.ID, reason); err != nil {
		zlog.Logger.Error().Err(err).Str("notification_id", n.ID.String()).Msg("failed to fail outstanding deliveries")
	} else if count > 0 {
		zlog.Logger.Info().Str("notification_id", n.ID.String()).Int("deliveries", count).Msg("outstanding deliveries failed")
	}

	s.cacheStatus(ctx, n.ID, model.StatusFailed)
	s.notifyCreator(n, model.StatusFailed, reason)

	zlog.Logger.Warn().Str("notification_id", n.ID.String()).Str("reason", reason).Msg("notification failed")
}

// Process is the queue worker body for one notification.
// A returned error is retried by the queue unless it is permanent.
func (s *Service) Process(ctx context.Context, id uuid.UUID) error {
	n, err := s.repo.GetNotificationByID(ctx, id)
	if err != nil {
		if errors.Is(err, notification.ErrNotificationNotFound) {
			return jobqueue.Permanent(err)
		}

		return fmt.Errorf("get notification: %w", err)
	}

	if n.Status.Terminal() {
		zlog.Logger.Info().
			Str("notification_id", id.String()).
			Str("status", string(n.Status)).
			Msg("notification already finished, skipping job")
		return nil
	}

	if n.Status != model.StatusProcessing {
		ok, err := s.repo.TransitionStatus(ctx, id, model.StatusProcessing, []model.Status{model.StatusPending, model.StatusScheduled})
		if err != nil {
			return fmt.Errorf("start processing: %w", err)
		}

		if !ok {
			zlog.Logger.Info().Str("notification_id", id.String()).Msg("notification changed concurrently, skipping job")
			return nil
		}

		n.Status = model.StatusProcessing
		s.cacheStatus(ctx, id, n.Status)
	}

	res, err := s.engine.Dispatch(ctx, n)
	if errors.Is(err, dispatch.ErrGroupInvalid) {
		s.fail(ctx, n, dispatch.ErrGroupInvalid.Error())
		return jobqueue.Permanent(err)
	}

	if err == nil && res.NeedsRetry() {
		err = fmt.Errorf("%w: %d recipient(s) to retry", dispatch.ErrRetry, res.Retry)
	}

	if err == nil {
		_, err = s.settle(ctx, n)
	}

	if err == nil {
		return nil
	}

	return s.recordFailure(ctx, n, err)
}

func (s *Service) recordFailure(ctx context.Context, n model.Notification, cause error) error {
	count, err := s.repo.IncrementRetry(ctx, n.ID, cause.Error())
	if err != nil {
		return fmt.Errorf("record retry: %w (after %v)", err, cause)
	}

	if count >= n.MaxRetries {
		s.fail(ctx, n, cause.Error())
		return jobqueue.Permanent(cause)
	}

	zlog.Logger.Warn().
		Err(cause).
		Str("notification_id", n.ID.String()).
		Int("retry_count", count).
		Msg("notification processing will be retried")

	return cause
}

// Abandon fails a notification whose queue job ran out of attempts.
func (s *Service) Abandon(ctx context.Context, id uuid.UUID, reason string) error {
	n, err := s.repo.GetNotificationByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get notification: %w", err)
	}

	if n.Status.Terminal() {
		return nil
	}

	s.fail(ctx, n, reason)

	return nil
}

// Update edits or reschedules a notification that has not started processing.
func (s *Service) Update(ctx context.Context, id, actor uuid.UUID, in UpdateInput) (model.Notification, error) {
	n, err := s.owned(ctx, id, actor)
	if err != nil {
		return model.Notification{}, err
	}

	if !n.Status.Editable() {
		return model.Notification{}, ErrNotEditable
	}

	if in.Title != nil {
		if *in.Title == "" {
			return model.Notification{}, fmt.Errorf("%w: title must not be empty", ErrInvalidInput)
		}

		n.Title = *in.Title
	}

	if in.Message != nil {
		if *in.Message == "" {
			return model.Notification{}, fmt.Errorf("%w: message must not be empty", ErrInvalidInput)
		}

		n.Message = *in.Message
	}

	if !in.Reschedule {
		ok, err := s.repo.UpdateEditable(ctx, n)
		if err != nil {
			return model.Notification{}, fmt.Errorf("update notification: %w", err)
		}

		if !ok {
			return model.Notification{}, ErrNotEditable
		}

		return s.reload(ctx, id)
	}

	return s.reschedule(ctx, n, in.ScheduledFor)
}

func (s *Service) reschedule(ctx context.Context, n model.Notification, at *time.Time) (model.Notification, error) {
	oldJob := n.JobID
	now := s.now()

	n.ScheduledFor = at
	n.JobID = ""
	if n.ScheduledAfter(now) {
		n.Status = model.StatusScheduled
	} else {
		n.Status = model.StatusPending
		n.ScheduledFor = nil
	}

	ok, err := s.repo.UpdateEditable(ctx, n)
	if err != nil {
		return model.Notification{}, fmt.Errorf("update notification: %w", err)
	}

	if !ok {
		return model.Notification{}, ErrNotEditable
	}

	if oldJob != "" {
		if err := s.jobs.Remove(ctx, oldJob); err != nil {
			zlog.Logger.Error().Err(err).Str("job_id", oldJob).Msg("failed to remove replaced job")
		}
	}

	s.cacheStatus(ctx, n.ID, n.Status)

	zlog.Logger.Info().
		Str("notification_id", n.ID.String()).
		Str("status", string(n.Status)).
		Msg("notification rescheduled")

	if n.Status == model.StatusScheduled {
		if err := s.schedule(ctx, n.ID, n.ScheduledFor.Sub(now)); err != nil {
			s.fail(ctx, n, "failed to schedule delivery")
			return model.Notification{}, err
		}
	} else if err := s.dispatchNow(ctx, n); err != nil {
		return model.Notification{}, err
	}

	return s.reload(ctx, n.ID)
}

// Cancel stops a notification that has not started processing.
func (s *Service) Cancel(ctx context.Context, id, actor uuid.UUID) (model.Notification, error) {
	n, err := s.owned(ctx, id, actor)
	if err != nil {
		return model.Notification{}, err
	}

	if !n.Status.Editable() {
		return model.Notification{}, ErrNotCancellable
	}

	ok, err := s.repo.TransitionStatus(ctx, id, model.StatusCancelled, []model.Status{model.StatusPending, model.StatusScheduled})
	if err != nil {
		return model.Notification{}, fmt.Errorf("cancel notification: %w", err)
	}

	if !ok {
		return model.Notification{}, ErrNotCancellable
	}

	if n.JobID != "" {
		if err := s.jobs.Remove(ctx, n.JobID); err != nil {
			zlog.Logger.Error().Err(err).Str("job_id", n.JobID).Msg("failed to remove job of cancelled notification")
		}
	}

	s.cacheStatus(ctx, id, model.StatusCancelled)

	zlog.Logger.Info().Str("notification_id", id.String()).Msg("notification cancelled")

	n.Status = model.StatusCancelled

	return n, nil
}

func (s *Service) owned(ctx context.Context, id, actor uuid.UUID) (model.Notification, error) {
	n, err := s.repo.GetNotificationByID(ctx, id)
	if err != nil {
		return model.Notification{}, err
	}

	if n.CreatedBy != actor {
		return model.Notification{}, ErrForbidden
	}

	return n, nil
}

func (s *Service) reload(ctx context.Context, id uuid.UUID) (model.Notification, error) {
	n, err := s.repo.GetNotificationByID(ctx, id)
	if err != nil {
		return model.Notification{}, fmt.Errorf("reload notification: %w", err)
	}

	return n, nil
}

// Get returns a notification to its creator or to one of its recipients.
// A recipient also gets their own delivery.
func (s *Service) Get(ctx context.Context, id, actor uuid.UUID) (model.ReceivedNotification, error) {
	n, err := s.repo.GetNotificationByID(ctx, id)
	if err != nil {
		return model.ReceivedNotification{}, err
	}

	recipient, err := s.isRecipient(ctx, n, actor)
	if err != nil {
		return model.ReceivedNotification{}, err
	}

	if !recipient && n.CreatedBy != actor {
		return model.ReceivedNotification{}, ErrForbidden
	}

	view := model.ReceivedNotification{Notification: n}
	if !recipient {
		return view, nil
	}

	d, err := s.ledger.Find(ctx, n.ID, actor)
	switch {
	case err == nil:
		view.Delivery = &d
	case !errors.Is(err, delivery.ErrDeliveryNotFound):
		return model.ReceivedNotification{}, fmt.Errorf("find delivery: %w", err)
	}

	return view, nil
}

func (s *Service) isRecipient(ctx context.Context, n model.Notification, userID uuid.UUID) (bool, error) {
	if id, ok := n.RecipientUser(); ok {
		return id == userID, nil
	}

	groupID, _ := n.RecipientGroup()

	ok, err := s.directory.IsGroupMember(ctx, groupID, userID)
	if err != nil {
		return false, fmt.Errorf("check group membership: %w", err)
	}

	return ok, nil
}

// ListSent returns the notifications created by creator, newest first.
func (s *Service) ListSent(ctx context.Context, creator uuid.UUID, page Page) ([]model.Notification, error) {
	page = page.normalize()

	list, err := s.repo.ListByCreator(ctx, creator, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list sent notifications: %w", err)
	}

	return list, nil
}

// ListReceived returns the notifications addressed to userID, optionally filtered by delivery status.
func (s *Service) ListReceived(
	ctx context.Context, userID uuid.UUID, status model.DeliveryStatus, page Page,
) ([]model.ReceivedNotification, error) {
	if status != "" && status.Rank() < 0 {
		return nil, fmt.Errorf("%w: unknown delivery status %q", ErrInvalidInput, status)
	}

	page = page.normalize()

	list, err := s.repo.ListReceived(ctx, userID, status, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list received notifications: %w", err)
	}

	return list, nil
}

// Stats counts the creator's notifications by status and their jobs by queue state.
func (s *Service) Stats(ctx context.Context, creator uuid.UUID) (Stats, error) {
	statuses, err := s.repo.CountByStatus(ctx, creator)
	if err != nil {
		return Stats{}, fmt.Errorf("count notifications: %w", err)
	}

	ids, err := s.repo.ListIDsByCreator(ctx, creator)
	if err != nil {
		return Stats{}, fmt.Errorf("list notification ids: %w", err)
	}

	mine := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		mine[id] = struct{}{}
	}

	counts, err := s.jobs.Counts(ctx, func(p jobqueue.Payload) bool {
		_, ok := mine[p.NotificationID]
		return ok
	})
	if err != nil {
		return Stats{}, fmt.Errorf("count jobs: %w", err)
	}

	return Stats{Statuses: statuses, Queue: counts}, nil
}

func (s *Service) notifyCreator(n model.Notification, status model.Status, reason string) {
	if s.pusher == nil {
		return
	}

	s.pusher.Push(n.CreatedBy, model.OutEnvelope{
		Type: model.MsgStatus,
		Payload: model.StatusPayload{
			NotificationID: n.ID,
			Status:         status,
			Error:          reason,
		},
	})
}
