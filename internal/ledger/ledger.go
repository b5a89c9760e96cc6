package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/realtime-notifier/internal/model"
	"github.com/aliskhannn/realtime-notifier/internal/repository/delivery"
)

var ErrNotRecipient = errors.New("delivery belongs to another recipient")

// FlushStatuses are the delivery states that still owe the recipient a push.
var FlushStatuses = []model.DeliveryStatus{model.DeliveryPending, model.DeliverySent}

//go:generate mockgen -source=ledger.go -destination=../mocks/ledger/mock.go -package=mocks
type deliveryStore interface {
	Find(ctx context.Context, notificationID, recipientID uuid.UUID) (model.Delivery, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.Delivery, error)
	Create(ctx context.Context, notificationID, recipientID uuid.UUID) (model.Delivery, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, to model.DeliveryStatus, from []model.DeliveryStatus, reason string) (bool, error)
	IncrementRetry(ctx context.Context, id uuid.UUID, reason string) (int, error)
	FailPending(ctx context.Context, notificationID uuid.UUID, reason string) (int, error)
	CountByStatus(ctx context.Context, notificationID uuid.UUID, statuses ...model.DeliveryStatus) (int, error)
	ListUndelivered(ctx context.Context, recipientID uuid.UUID, statuses []model.DeliveryStatus, limit int) ([]model.PendingDelivery, error)
}

// Ledger records, per notification and recipient, how far delivery has progressed.
type Ledger struct {
	store deliveryStore
}

// New creates a Ledger on top of store.
func New(store deliveryStore) *Ledger {
	return &Ledger{store: store}
}

// GetOrCreate returns the delivery of the pair, creating a pending one on first touch.
func (l *Ledger) GetOrCreate(ctx context.Context, notificationID, recipientID uuid.UUID) (model.Delivery, error) {
	d, err := l.store.Find(ctx, notificationID, recipientID)
	if err == nil {
		return d, nil
	}

	if !errors.Is(err, delivery.ErrDeliveryNotFound) {
		return model.Delivery{}, fmt.Errorf("find delivery: %w", err)
	}

	d, err = l.store.Create(ctx, notificationID, recipientID)
	if err == nil {
		return d, nil
	}

	// Lost the race against a concurrent first touch.
	if errors.Is(err, delivery.ErrDeliveryExists) {
		d, err = l.store.Find(ctx, notificationID, recipientID)
		if err != nil {
			return model.Delivery{}, fmt.Errorf("find delivery after conflict: %w", err)
		}

		return d, nil
	}

	return model.Delivery{}, fmt.Errorf("create delivery: %w", err)
}

// Find returns the delivery of the pair without creating it.
func (l *Ledger) Find(ctx context.Context, notificationID, recipientID uuid.UUID) (model.Delivery, error) {
	return l.store.Find(ctx, notificationID, recipientID)
}

// MarkSent moves a pending delivery to sent.
func (l *Ledger) MarkSent(ctx context.Context, id uuid.UUID) (bool, error) {
	return l.transition(ctx, id, model.DeliverySent, "")
}

// MarkDelivered records that the recipient's channel transmitted the delivery.
func (l *Ledger) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	return l.transition(ctx, id, model.DeliveryDelivered, "")
}

// MarkRead records that the recipient has read the delivery.
func (l *Ledger) MarkRead(ctx context.Context, id uuid.UUID) (bool, error) {
	return l.transition(ctx, id, model.DeliveryRead, "")
}

// MarkFailed gives up on a pending delivery and stores the reason.
func (l *Ledger) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	return l.transition(ctx, id, model.DeliveryFailed, reason)
}

// RecordAttemptFailure counts a failed push attempt and returns the attempts so far.
func (l *Ledger) RecordAttemptFailure(ctx context.Context, id uuid.UUID, reason string) (int, error) {
	count, err := l.store.IncrementRetry(ctx, id, reason)
	if err != nil {
		return 0, fmt.Errorf("record attempt failure: %w", err)
	}

	return count, nil
}

// Acknowledge applies a client acknowledgement (delivered or read) sent by recipientID.
func (l *Ledger) Acknowledge(
	ctx context.Context, recipientID, deliveryID uuid.UUID, status model.DeliveryStatus,
) (model.Delivery, bool, error) {
	if status != model.DeliveryDelivered && status != model.DeliveryRead {
		return model.Delivery{}, false, fmt.Errorf("unsupported acknowledgement %q", status)
	}

	d, err := l.store.GetByID(ctx, deliveryID)
	if err != nil {
		return model.Delivery{}, false, err
	}

	if d.RecipientID != recipientID {
		return model.Delivery{}, false, ErrNotRecipient
	}

	applied, err := l.transition(ctx, deliveryID, status, "")
	if err != nil {
		return model.Delivery{}, false, err
	}

	if applied {
		d.Status = status
	}

	return d, applied, nil
}

// CountPending returns how many deliveries of the notification are still pending.
func (l *Ledger) CountPending(ctx context.Context, notificationID uuid.UUID) (int, error) {
	return l.store.CountByStatus(ctx, notificationID, model.DeliveryPending)
}

// CountFailed returns how many deliveries of the notification have failed.
func (l *Ledger) CountFailed(ctx context.Context, notificationID uuid.UUID) (int, error) {
	return l.store.CountByStatus(ctx, notificationID, model.DeliveryFailed)
}

// FailOutstanding fails the deliveries of a notification that never reached their
// recipient. Sent, delivered and read deliveries are left as they are.
func (l *Ledger) FailOutstanding(ctx context.Context, notificationID uuid.UUID, reason string) (int, error) {
	n, err := l.store.FailPending(ctx, notificationID, reason)
	if err != nil {
		return 0, fmt.Errorf("fail outstanding deliveries: %w", err)
	}

	return n, nil
}

// PendingForRecipient returns the newest deliveries still owed to a recipient.
func (l *Ledger) PendingForRecipient(ctx context.Context, recipientID uuid.UUID, limit int) ([]model.PendingDelivery, error) {
	return l.store.ListUndelivered(ctx, recipientID, FlushStatuses, limit)
}

func (l *Ledger) transition(ctx context.Context, id uuid.UUID, to model.DeliveryStatus, reason string) (bool, error) {
	applied, err := l.store.UpdateStatus(ctx, id, to, to.Below(), reason)
	if err != nil {
		return false, fmt.Errorf("mark delivery %s: %w", to, err)
	}

	if !applied {
		zlog.Logger.Warn().
			Str("delivery_id", id.String()).
			Str("to", string(to)).
			Msg("delivery transition rejected")
	}

	return applied, nil
}
