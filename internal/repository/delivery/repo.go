package delivery

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/wb-go/wbf/dbpg"

	"github.com/aliskhannn/realtime-notifier/internal/model"
)

var (
	ErrDeliveryNotFound = errors.New("delivery not found")
	ErrDeliveryExists   = errors.New("delivery already exists")
)

const uniqueViolation = "23505"

const deliveryColumns = `
	id, notification_id, recipient_id, status, sent_at, delivered_at, read_at, failed_at,
	retry_count, COALESCE(error, ''), created_at, updated_at`

// Repository provides methods to interact with notification_deliveries table.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new delivery repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDelivery(row scanner) (model.Delivery, error) {
	var d model.Delivery
	err := row.Scan(
		&d.ID, &d.NotificationID, &d.RecipientID, &d.Status,
		&d.SentAt, &d.DeliveredAt, &d.ReadAt, &d.FailedAt,
		&d.RetryCount, &d.Error, &d.CreatedAt, &d.UpdatedAt,
	)

	return d, err
}

func statusStrings(statuses []model.DeliveryStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}

	return out
}

// Find returns the delivery of a notification to a recipient.
func (r *Repository) Find(ctx context.Context, notificationID, recipientID uuid.UUID) (model.Delivery, error) {
	query := `SELECT` + deliveryColumns + `
		FROM notification_deliveries
		WHERE notification_id = $1 AND recipient_id = $2;
    `

	d, err := scanDelivery(r.db.QueryRowContext(ctx, query, notificationID, recipientID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Delivery{}, ErrDeliveryNotFound
		}

		return model.Delivery{}, fmt.Errorf("failed to find delivery: %w", err)
	}

	return d, nil
}

// GetByID returns a delivery by its ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (model.Delivery, error) {
	query := `SELECT` + deliveryColumns + `
		FROM notification_deliveries
		WHERE id = $1;
    `

	d, err := scanDelivery(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Delivery{}, ErrDeliveryNotFound
		}

		return model.Delivery{}, fmt.Errorf("failed to get delivery: %w", err)
	}

	return d, nil
}

// Create inserts a pending delivery. A second row for the same pair yields ErrDeliveryExists.
func (r *Repository) Create(ctx context.Context, notificationID, recipientID uuid.UUID) (model.Delivery, error) {
	query := `
		INSERT INTO notification_deliveries (notification_id, recipient_id, status)
		VALUES ($1, $2, 'pending')
		RETURNING` + deliveryColumns + `;
    `

	d, err := scanDelivery(r.db.QueryRowContext(ctx, query, notificationID, recipientID))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return model.Delivery{}, ErrDeliveryExists
		}

		return model.Delivery{}, fmt.Errorf("failed to create delivery: %w", err)
	}

	return d, nil
}

// UpdateStatus moves a delivery to `to` if its current status is one of `from`.
//
// A non-empty reason is stored as the delivery error. It reports whether the row changed.
func (r *Repository) UpdateStatus(
	ctx context.Context, id uuid.UUID, to model.DeliveryStatus, from []model.DeliveryStatus, reason string,
) (bool, error) {
	query := `
		UPDATE notification_deliveries
		SET status = $1,
		    sent_at = CASE WHEN $1 = 'sent' THEN NOW() ELSE sent_at END,
		    delivered_at = CASE WHEN $1 IN ('delivered', 'read') THEN COALESCE(delivered_at, NOW()) ELSE delivered_at END,
		    read_at = CASE WHEN $1 = 'read' THEN NOW() ELSE read_at END,
		    failed_at = CASE WHEN $1 = 'failed' THEN NOW() ELSE failed_at END,
		    error = CASE WHEN $3 <> '' THEN $3 ELSE error END,
		    updated_at = NOW()
		WHERE id = $2 AND status = ANY($4);
    `

	res, err := r.db.ExecContext(ctx, query, string(to), id, reason, pq.Array(statusStrings(from)))
	if err != nil {
		return false, fmt.Errorf("failed to update delivery status: %w", err)
	}

	rows, _ := res.RowsAffected()

	return rows > 0, nil
}

// FailPending marks every still pending delivery of a notification failed with reason.
// It returns the number of deliveries that changed.
func (r *Repository) FailPending(ctx context.Context, notificationID uuid.UUID, reason string) (int, error) {
	query := `
		UPDATE notification_deliveries
		SET status = 'failed', failed_at = NOW(), error = $1, updated_at = NOW()
		WHERE notification_id = $2 AND status = 'pending';
    `

	res, err := r.db.ExecContext(ctx, query, reason, notificationID)
	if err != nil {
		return 0, fmt.Errorf("failed to fail pending deliveries: %w", err)
	}

	rows, _ := res.RowsAffected()

	return int(rows), nil
}

// IncrementRetry bumps the retry counter of a delivery and returns the new value.
func (r *Repository) IncrementRetry(ctx context.Context, id uuid.UUID, reason string) (int, error) {
	query := `
		UPDATE notification_deliveries
		SET retry_count = retry_count + 1, error = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING retry_count;
    `

	var count int
	if err := r.db.QueryRowContext(ctx, query, reason, id).Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrDeliveryNotFound
		}

		return 0, fmt.Errorf("failed to increment delivery retry: %w", err)
	}

	return count, nil
}

// CountByStatus counts the deliveries of a notification that are in one of statuses.
func (r *Repository) CountByStatus(ctx context.Context, notificationID uuid.UUID, statuses ...model.DeliveryStatus) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM notification_deliveries
		WHERE notification_id = $1 AND status = ANY($2);
    `

	var count int
	err := r.db.QueryRowContext(ctx, query, notificationID, pq.Array(statusStrings(statuses))).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count deliveries: %w", err)
	}

	return count, nil
}

// ListUndelivered returns the newest deliveries of a recipient in one of statuses,
// joined with the notification they carry.
func (r *Repository) ListUndelivered(
	ctx context.Context, recipientID uuid.UUID, statuses []model.DeliveryStatus, limit int,
) ([]model.PendingDelivery, error) {
	query := `
		SELECT d.id, d.notification_id, d.recipient_id, d.status, d.retry_count, d.created_at,
		       n.kind, n.title, n.message, n.created_by, n.metadata, n.created_at
		FROM notification_deliveries d
		JOIN notifications n ON n.id = d.notification_id
		WHERE d.recipient_id = $1 AND d.status = ANY($2)
		ORDER BY d.created_at DESC
		LIMIT $3;
    `

	rows, err := r.db.QueryContext(ctx, query, recipientID, pq.Array(statusStrings(statuses)), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list undelivered: %w", err)
	}
	defer rows.Close()

	var pending []model.PendingDelivery
	for rows.Next() {
		var (
			p        model.PendingDelivery
			kind     string
			metadata []byte
		)

		err := rows.Scan(
			&p.Delivery.ID, &p.Delivery.NotificationID, &p.Delivery.RecipientID, &p.Delivery.Status,
			&p.Delivery.RetryCount, &p.Delivery.CreatedAt,
			&kind, &p.Notification.Title, &p.Notification.Message, &p.Notification.CreatedBy,
			&metadata, &p.Notification.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		p.Notification.ID = p.Delivery.NotificationID
		p.Notification.Kind = model.Kind(kind)

		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &p.Notification.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}

		pending = append(pending, p)
	}

	return pending, rows.Err()
}
