package delivery

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/dbpg"

	"github.com/aliskhannn/realtime-notifier/internal/model"
)

var deliveryRowColumns = []string{
	"id", "notification_id", "recipient_id", "status", "sent_at", "delivered_at", "read_at", "failed_at",
	"retry_count", "error", "created_at", "updated_at",
}

func setupMockDB(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open mock db: %v", err)
	}

	return NewRepository(&dbpg.DB{Master: db}), mock
}

func deliveryRow(d model.Delivery) []driver.Value {
	return []driver.Value{
		d.ID.String(), d.NotificationID.String(), d.RecipientID.String(), string(d.Status),
		nil, nil, nil, nil, d.RetryCount, d.Error, d.CreatedAt, d.UpdatedAt,
	}
}

func TestFind(t *testing.T) {
	repo, mock := setupMockDB(t)

	d := model.Delivery{
		ID:             uuid.New(),
		NotificationID: uuid.New(),
		RecipientID:    uuid.New(),
		Status:         model.DeliverySent,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	mock.ExpectQuery(`WHERE notification_id = \$1 AND recipient_id = \$2`).
		WithArgs(d.NotificationID, d.RecipientID).
		WillReturnRows(sqlmock.NewRows(deliveryRowColumns).AddRow(deliveryRow(d)...))

	got, err := repo.Find(context.Background(), d.NotificationID, d.RecipientID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, model.DeliverySent, got.Status)
	assert.Nil(t, got.SentAt)

	mock.ExpectQuery(`WHERE notification_id = \$1 AND recipient_id = \$2`).
		WithArgs(d.NotificationID, d.RecipientID).
		WillReturnError(sql.ErrNoRows)

	_, err = repo.Find(context.Background(), d.NotificationID, d.RecipientID)
	assert.ErrorIs(t, err, ErrDeliveryNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate(t *testing.T) {
	repo, mock := setupMockDB(t)

	d := model.Delivery{
		ID:             uuid.New(),
		NotificationID: uuid.New(),
		RecipientID:    uuid.New(),
		Status:         model.DeliveryPending,
	}

	mock.ExpectQuery(`INSERT INTO notification_deliveries`).
		WithArgs(d.NotificationID, d.RecipientID).
		WillReturnRows(sqlmock.NewRows(deliveryRowColumns).AddRow(deliveryRow(d)...))

	got, err := repo.Create(context.Background(), d.NotificationID, d.RecipientID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, model.DeliveryPending, got.Status)

	mock.ExpectQuery(`INSERT INTO notification_deliveries`).
		WithArgs(d.NotificationID, d.RecipientID).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err = repo.Create(context.Background(), d.NotificationID, d.RecipientID)
	assert.ErrorIs(t, err, ErrDeliveryExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()
	from := model.DeliveryDelivered.Below()

	mock.ExpectExec(`UPDATE notification_deliveries\s+SET status = \$1`).
		WithArgs("delivered", id, "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.UpdateStatus(context.Background(), id, model.DeliveryDelivered, from, "")
	assert.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(`UPDATE notification_deliveries\s+SET status = \$1`).
		WithArgs("sent", id, "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err = repo.UpdateStatus(context.Background(), id, model.DeliverySent, model.DeliverySent.Below(), "")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementRetry(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()

	mock.ExpectQuery(`SET retry_count = retry_count \+ 1`).
		WithArgs("push failed", id).
		WillReturnRows(sqlmock.NewRows([]string{"retry_count"}).AddRow(1))

	count, err := repo.IncrementRetry(context.Background(), id, "push failed")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailPending(t *testing.T) {
	repo, mock := setupMockDB(t)

	nid := uuid.New()

	mock.ExpectExec(`(?s)SET status = 'failed'.*WHERE notification_id = \$2 AND status = 'pending'`).
		WithArgs("retries exhausted", nid).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.FailPending(context.Background(), nid, "retries exhausted")
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountByStatus(t *testing.T) {
	repo, mock := setupMockDB(t)

	nid := uuid.New()

	mock.ExpectQuery(`SELECT COUNT\(\*\)\s+FROM notification_deliveries`).
		WithArgs(nid, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountByStatus(context.Background(), nid, model.DeliveryPending)
	assert.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUndelivered(t *testing.T) {
	repo, mock := setupMockDB(t)

	recipient := uuid.New()
	newer := time.Now()
	older := newer.Add(-time.Minute)

	rows := sqlmock.NewRows([]string{
		"id", "notification_id", "recipient_id", "status", "retry_count", "created_at",
		"kind", "title", "message", "created_by", "metadata", "n_created_at",
	}).
		AddRow(uuid.New().String(), uuid.New().String(), recipient.String(), "sent", 0, newer,
			"single", "second", "b", uuid.New().String(), []byte(`{"k":"v"}`), newer).
		AddRow(uuid.New().String(), uuid.New().String(), recipient.String(), "pending", 0, older,
			"group", "first", "a", uuid.New().String(), nil, older)

	mock.ExpectQuery(`ORDER BY d.created_at DESC`).
		WithArgs(recipient, sqlmock.AnyArg(), 50).
		WillReturnRows(rows)

	list, err := repo.ListUndelivered(context.Background(), recipient,
		[]model.DeliveryStatus{model.DeliveryPending, model.DeliverySent}, 50)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Notification.Title)
	assert.Equal(t, list[0].Delivery.NotificationID, list[0].Notification.ID)
	assert.Equal(t, "v", list[0].Notification.Metadata["k"])
	assert.Equal(t, model.KindGroup, list[1].Notification.Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}
