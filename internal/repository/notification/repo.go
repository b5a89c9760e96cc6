package notification

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
	ErrNotificationNotFound = errors.New("notification not found")
)

const notificationColumns = `
	n.id, n.kind, n.title, n.message, n.created_by,
	n.recipient_user_id, n.recipient_group_id, n.scheduled_for, n.status,
	COALESCE(n.job_id, ''), n.retry_count, n.max_retries, COALESCE(n.last_error, ''),
	n.metadata, n.processed_at, n.delivered_at, n.failed_at, n.created_at, n.updated_at`

// Repository provides methods to interact with notifications table.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new notification repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNotification(row scanner, extra ...any) (model.Notification, error) {
	var (
		n         model.Notification
		userID    uuid.NullUUID
		groupID   uuid.NullUUID
		metadata  []byte
		kind      string
		status    string
		scheduled sql.NullTime
	)

	dest := []any{
		&n.ID, &kind, &n.Title, &n.Message, &n.CreatedBy,
		&userID, &groupID, &scheduled, &status,
		&n.JobID, &n.RetryCount, &n.MaxRetries, &n.LastError,
		&metadata, &n.ProcessedAt, &n.DeliveredAt, &n.FailedAt, &n.CreatedAt, &n.UpdatedAt,
	}

	if err := row.Scan(append(dest, extra...)...); err != nil {
		return model.Notification{}, err
	}

	n.Kind = model.Kind(kind)
	n.Status = model.Status(status)

	switch n.Kind {
	case model.KindGroup:
		n.Recipient = groupID.UUID
	default:
		n.Recipient = userID.UUID
	}

	if scheduled.Valid {
		t := scheduled.Time
		n.ScheduledFor = &t
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &n.Metadata); err != nil {
			return model.Notification{}, fmt.Errorf("decode metadata: %w", err)
		}
	}

	return n, nil
}

func recipientColumns(n model.Notification) (uuid.NullUUID, uuid.NullUUID) {
	if n.Kind == model.KindGroup {
		return uuid.NullUUID{}, uuid.NullUUID{UUID: n.Recipient, Valid: true}
	}

	return uuid.NullUUID{UUID: n.Recipient, Valid: true}, uuid.NullUUID{}
}

func statusStrings(statuses []model.Status) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}

	return out
}

// CreateNotification inserts a new notification and returns it with its generated fields.
func (r *Repository) CreateNotification(ctx context.Context, n model.Notification) (model.Notification, error) {
	query := `
		INSERT INTO notifications (
		    kind, title, message, created_by, recipient_user_id, recipient_group_id,
		    scheduled_for, status, max_retries, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at;
    `

	metadata, err := json.Marshal(n.Metadata)
	if err != nil {
		return model.Notification{}, fmt.Errorf("failed to encode metadata: %w", err)
	}

	userID, groupID := recipientColumns(n)

	err = r.db.QueryRowContext(
		ctx, query,
		string(n.Kind), n.Title, n.Message, n.CreatedBy, userID, groupID,
		n.ScheduledFor, string(n.Status), n.MaxRetries, metadata,
	).Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return model.Notification{}, fmt.Errorf("failed to create notification: %w", err)
	}

	return n, nil
}

// GetNotificationByID retrieves a notification by its ID.
func (r *Repository) GetNotificationByID(ctx context.Context, id uuid.UUID) (model.Notification, error) {
	query := `SELECT` + notificationColumns + `
		FROM notifications n
		WHERE n.id = $1;
    `

	n, err := scanNotification(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Notification{}, ErrNotificationNotFound
		}

		return model.Notification{}, fmt.Errorf("failed to get notification: %w", err)
	}

	return n, nil
}

// TransitionStatus moves a notification to status `to` if it is currently in one of `from`.
//
// It reports whether the row was updated.
func (r *Repository) TransitionStatus(ctx context.Context, id uuid.UUID, to model.Status, from []model.Status) (bool, error) {
	query := `
		UPDATE notifications
		SET status = $1,
		    processed_at = CASE WHEN $1 = 'processing' THEN NOW() ELSE processed_at END,
		    delivered_at = CASE WHEN $1 = 'delivered' THEN NOW() ELSE delivered_at END,
		    updated_at = NOW()
		WHERE id = $2 AND status = ANY($3);
    `

	res, err := r.db.ExecContext(ctx, query, string(to), id, pq.Array(statusStrings(from)))
	if err != nil {
		return false, fmt.Errorf("failed to update notification status: %w", err)
	}

	rows, _ := res.RowsAffected()

	return rows > 0, nil
}

// MarkFailed moves a non-terminal notification to failed and records the reason.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	query := `
		UPDATE notifications
		SET status = 'failed', last_error = $1, failed_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND status NOT IN ('delivered', 'failed', 'cancelled');
    `

	res, err := r.db.ExecContext(ctx, query, reason, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification failed: %w", err)
	}

	rows, _ := res.RowsAffected()

	return rows > 0, nil
}

// SetJobID stores the reference of the queue job that will process the notification.
func (r *Repository) SetJobID(ctx context.Context, id uuid.UUID, jobID string) error {
	query := `
		UPDATE notifications
		SET job_id = NULLIF($1, ''), updated_at = NOW()
		WHERE id = $2;
    `

	res, err := r.db.ExecContext(ctx, query, jobID, id)
	if err != nil {
		return fmt.Errorf("failed to set job id: %w", err)
	}

	rows, _ := res.RowsAffected()

	if rows == 0 {
		return ErrNotificationNotFound
	}

	return nil
}

// IncrementRetry bumps the retry counter, records the reason and returns the new counter.
func (r *Repository) IncrementRetry(ctx context.Context, id uuid.UUID, reason string) (int, error) {
	query := `
		UPDATE notifications
		SET retry_count = retry_count + 1, last_error = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING retry_count;
    `

	var count int
	err := r.db.QueryRowContext(ctx, query, reason, id).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotificationNotFound
		}

		return 0, fmt.Errorf("failed to increment retry count: %w", err)
	}

	return count, nil
}

// UpdateEditable overwrites the editable fields of a notification that is still pending or scheduled.
//
// It reports false when the notification has already left those states.
func (r *Repository) UpdateEditable(ctx context.Context, n model.Notification) (bool, error) {
	query := `
		UPDATE notifications
		SET title = $1, message = $2, scheduled_for = $3, status = $4,
		    job_id = NULLIF($5, ''), updated_at = NOW()
		WHERE id = $6 AND status IN ('pending', 'scheduled');
    `

	res, err := r.db.ExecContext(ctx, query, n.Title, n.Message, n.ScheduledFor, string(n.Status), n.JobID, n.ID)
	if err != nil {
		return false, fmt.Errorf("failed to update notification: %w", err)
	}

	rows, _ := res.RowsAffected()

	return rows > 0, nil
}

// ListByCreator retrieves notifications created by a user, newest first.
func (r *Repository) ListByCreator(ctx context.Context, creator uuid.UUID, limit, offset int) ([]model.Notification, error) {
	query := `SELECT` + notificationColumns + `
		FROM notifications n
		WHERE n.created_by = $1
		ORDER BY n.created_at DESC
		LIMIT $2 OFFSET $3;
    `

	rows, err := r.db.QueryContext(ctx, query, creator, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list sent notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]model.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}

		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// ListReceived retrieves notifications addressed to a user directly or through a group,
// together with the user's delivery row when one exists.
func (r *Repository) ListReceived(
	ctx context.Context, userID uuid.UUID, status model.DeliveryStatus, limit, offset int,
) ([]model.ReceivedNotification, error) {
	query := `SELECT` + notificationColumns + `,
		       d.id, d.status, d.sent_at, d.delivered_at, d.read_at
		FROM notifications n
		LEFT JOIN notification_deliveries d ON d.notification_id = n.id AND d.recipient_id = $1
		WHERE (n.recipient_user_id = $1
		       OR n.recipient_group_id IN (SELECT group_id FROM group_members WHERE user_id = $1))
		  AND ($2 = '' OR d.status = $2)
		ORDER BY n.created_at DESC
		LIMIT $3 OFFSET $4;
    `

	rows, err := r.db.QueryContext(ctx, query, userID, string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list received notifications: %w", err)
	}
	defer rows.Close()

	received := make([]model.ReceivedNotification, 0)
	for rows.Next() {
		var (
			deliveryID     uuid.NullUUID
			deliveryStatus sql.NullString
			d              model.Delivery
		)

		n, err := scanNotification(rows, &deliveryID, &deliveryStatus, &d.SentAt, &d.DeliveredAt, &d.ReadAt)
		if err != nil {
			return nil, err
		}

		item := model.ReceivedNotification{Notification: n}
		if deliveryID.Valid {
			d.ID = deliveryID.UUID
			d.NotificationID = n.ID
			d.RecipientID = userID
			d.Status = model.DeliveryStatus(deliveryStatus.String)
			item.Delivery = &d
		}

		received = append(received, item)
	}

	return received, rows.Err()
}

// CountByStatus returns how many notifications of a creator are in each status.
func (r *Repository) CountByStatus(ctx context.Context, creator uuid.UUID) ([]model.StatusCount, error) {
	query := `
		SELECT status, COUNT(*)
		FROM notifications
		WHERE created_by = $1
		GROUP BY status
		ORDER BY status;
    `

	rows, err := r.db.QueryContext(ctx, query, creator)
	if err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}
	defer rows.Close()

	counts := make([]model.StatusCount, 0)
	for rows.Next() {
		var c model.StatusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, err
		}

		counts = append(counts, c)
	}

	return counts, rows.Err()
}

// ListIDsByCreator returns the ids of every notification created by a user.
func (r *Repository) ListIDsByCreator(ctx context.Context, creator uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT id
		FROM notifications
		WHERE created_by = $1;
    `

	rows, err := r.db.QueryContext(ctx, query, creator)
	if err != nil {
		return nil, fmt.Errorf("failed to list notification ids: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	return ids, rows.Err()
}
