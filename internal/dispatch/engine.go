package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aliskhannn/realtime-notifier/internal/metrics"
	"github.com/aliskhannn/realtime-notifier/internal/model"
	"github.com/aliskhannn/realtime-notifier/internal/repository/directory"
)

var (
	ErrGroupInvalid = errors.New("group invalid or empty")
	ErrRetry        = errors.New("delivery must be retried")
)

// Outcome is what happened to one recipient during a dispatch.
type Outcome string

const (
	OutcomeSkipped Outcome = "skipped" // already satisfied
	OutcomePushed  Outcome = "pushed"  // transmitted live, marked sent
	OutcomeQueued  Outcome = "queued"  // recipient offline, marked sent for flush on reconnect
	OutcomeRetry   Outcome = "retry"   // push failed below the attempt bound
	OutcomeFailed  Outcome = "failed"  // push attempts exhausted
)

const (
	DefaultMaxPushAttempts = 3
	DefaultFlushLimit      = 50
)

// Result aggregates the outcomes of one fan-out.
type Result struct {
	Recipients int
	Skipped    int
	Pushed     int
	Queued     int
	Retry      int
	Failed     int
}

// NeedsRetry reports whether at least one recipient must be attempted again.
func (r Result) NeedsRetry() bool {
	return r.Retry > 0
}

// Live reports whether every recipient was reached without the queue.
func (r Result) Live() bool {
	return r.Queued == 0 && r.Retry == 0 && r.Failed == 0
}

func (r *Result) add(o Outcome) {
	switch o {
	case OutcomeSkipped:
		r.Skipped++
	case OutcomePushed:
		r.Pushed++
	case OutcomeQueued:
		r.Queued++
	case OutcomeRetry:
		r.Retry++
	case OutcomeFailed:
		r.Failed++
	}
}

type presenceRegistry interface {
	IsOnline(userID uuid.UUID) bool
	Push(userID uuid.UUID, msg any) bool
}

type deliveryLedger interface {
	GetOrCreate(ctx context.Context, notificationID, recipientID uuid.UUID) (model.Delivery, error)
	MarkSent(ctx context.Context, id uuid.UUID) (bool, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) (bool, error)
	RecordAttemptFailure(ctx context.Context, id uuid.UUID, reason string) (int, error)
	PendingForRecipient(ctx context.Context, recipientID uuid.UUID, limit int) ([]model.PendingDelivery, error)
}

type groupDirectory interface {
	GroupMembers(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error)
}

// Options tunes the engine.
type Options struct {
	MaxPushAttempts int
	FlushLimit      int
}

// Engine delivers notifications to recipients, live when they are online and
// through the ledger otherwise.
type Engine struct {
	presence  presenceRegistry
	ledger    deliveryLedger
	directory groupDirectory
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	opts      Options
}

// New creates an Engine. m may be nil.
func New(p presenceRegistry, l deliveryLedger, dir groupDirectory, m *metrics.Metrics, opts Options) *Engine {
	if opts.MaxPushAttempts <= 0 {
		opts.MaxPushAttempts = DefaultMaxPushAttempts
	}

	if opts.FlushLimit <= 0 {
		opts.FlushLimit = DefaultFlushLimit
	}

	return &Engine{
		presence:  p,
		ledger:    l,
		directory: dir,
		metrics:   m,
		tracer:    otel.Tracer("github.com/aliskhannn/realtime-notifier/internal/dispatch"),
		opts:      opts,
	}
}

// DeliverTo runs the per-recipient algorithm for n.
func (e *Engine) DeliverTo(ctx context.Context, n model.Notification, recipientID uuid.UUID) (Outcome, error) {
	d, err := e.ledger.GetOrCreate(ctx, n.ID, recipientID)
	if err != nil {
		return "", fmt.Errorf("get delivery: %w", err)
	}

	if d.Status.Satisfied() {
		return e.record(OutcomeSkipped), nil
	}

	if d.Status == model.DeliveryFailed {
		return e.record(OutcomeFailed), nil
	}

	if !e.presence.IsOnline(recipientID) {
		if _, err := e.ledger.MarkSent(ctx, d.ID); err != nil {
			return "", err
		}

		return e.record(OutcomeQueued), nil
	}

	if e.presence.Push(recipientID, model.NewNotificationMessage(d.ID, n)) {
		if _, err := e.ledger.MarkSent(ctx, d.ID); err != nil {
			return "", err
		}

		return e.record(OutcomePushed), nil
	}

	attempts, err := e.ledger.RecordAttemptFailure(ctx, d.ID, "push failed")
	if err != nil {
		return "", err
	}

	if attempts < e.opts.MaxPushAttempts {
		zlog.Logger.Warn().
			Str("notification_id", n.ID.String()).
			Str("recipient_id", recipientID.String()).
			Int("attempts", attempts).
			Msg("push failed, will retry")

		return e.record(OutcomeRetry), nil
	}

	reason := fmt.Sprintf("push failed after %d attempts", attempts)
	if _, err := e.ledger.MarkFailed(ctx, d.ID, reason); err != nil {
		return "", err
	}

	zlog.Logger.Error().
		Str("notification_id", n.ID.String()).
		Str("recipient_id", recipientID.String()).
		Msg(reason)

	return e.record(OutcomeFailed), nil
}

// Dispatch resolves the recipients of n and delivers to each of them.
// A recipient whose delivery hits a store error does not stop the others.
func (e *Engine) Dispatch(ctx context.Context, n model.Notification) (Result, error) {
	ctx, span := e.tracer.Start(ctx, "dispatch.Dispatch",
		trace.WithAttributes(
			attribute.String("notification.id", n.ID.String()),
			attribute.String("notification.kind", string(n.Kind)),
		),
	)
	defer span.End()

	recipients, err := e.recipients(ctx, n)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	res := Result{Recipients: len(recipients)}

	var errs []error
	for _, rid := range recipients {
		outcome, err := e.DeliverTo(ctx, n, rid)
		if err != nil {
			errs = append(errs, fmt.Errorf("recipient %s: %w", rid, err))
			continue
		}

		res.add(outcome)
	}

	span.SetAttributes(
		attribute.Int("dispatch.recipients", res.Recipients),
		attribute.Int("dispatch.pushed", res.Pushed),
		attribute.Int("dispatch.queued", res.Queued),
		attribute.Int("dispatch.retry", res.Retry),
		attribute.Int("dispatch.failed", res.Failed),
	)

	if len(errs) > 0 {
		err := errors.Join(errs...)
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch incomplete")
		return res, err
	}

	return res, nil
}

func (e *Engine) recipients(ctx context.Context, n model.Notification) ([]uuid.UUID, error) {
	if userID, ok := n.RecipientUser(); ok {
		return []uuid.UUID{userID}, nil
	}

	groupID, ok := n.RecipientGroup()
	if !ok {
		return nil, fmt.Errorf("unknown notification kind %q", n.Kind)
	}

	members, err := e.directory.GroupMembers(ctx, groupID)
	if errors.Is(err, directory.ErrGroupNotFound) {
		return nil, ErrGroupInvalid
	}

	if err != nil {
		return nil, fmt.Errorf("resolve group members: %w", err)
	}

	if len(members) == 0 {
		return nil, ErrGroupInvalid
	}

	return members, nil
}

// FlushRecipient pushes the deliveries still owed to a freshly connected
// recipient, newest first, and marks each delivered once transmitted.
// It stops at the first push that does not go through.
func (e *Engine) FlushRecipient(ctx context.Context, recipientID uuid.UUID) (int, error) {
	ctx, span := e.tracer.Start(ctx, "dispatch.FlushRecipient",
		trace.WithAttributes(attribute.String("recipient.id", recipientID.String())),
	)
	defer span.End()

	owed, err := e.ledger.PendingForRecipient(ctx, recipientID, e.opts.FlushLimit)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("list pending deliveries: %w", err)
	}

	flushed := 0
	for _, pd := range owed {
		if !e.presence.Push(recipientID, model.NewNotificationMessage(pd.Delivery.ID, pd.Notification)) {
			zlog.Logger.Warn().
				Str("recipient_id", recipientID.String()).
				Int("flushed", flushed).
				Msg("flush interrupted, channel not writable")
			break
		}

		if _, err := e.ledger.MarkDelivered(ctx, pd.Delivery.ID); err != nil {
			span.RecordError(err)
			return flushed, err
		}

		flushed++
	}

	span.SetAttributes(attribute.Int("flush.count", flushed))

	if flushed > 0 {
		zlog.Logger.Info().
			Str("recipient_id", recipientID.String()).
			Int("count", flushed).
			Msg("flushed pending deliveries")
	}

	return flushed, nil
}

func (e *Engine) record(o Outcome) Outcome {
	e.metrics.Outcome(string(o))
	return o
}
