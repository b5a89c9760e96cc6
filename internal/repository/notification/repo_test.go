package notification

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/dbpg"

	"github.com/aliskhannn/realtime-notifier/internal/model"
)

var notificationRowColumns = []string{
	"id", "kind", "title", "message", "created_by",
	"recipient_user_id", "recipient_group_id", "scheduled_for", "status",
	"job_id", "retry_count", "max_retries", "last_error",
	"metadata", "processed_at", "delivered_at", "failed_at", "created_at", "updated_at",
}

func setupMockDB(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open mock db: %v", err)
	}

	wrappedDB := &dbpg.DB{Master: db}
	repo := NewRepository(wrappedDB)

	return repo, mock
}

func notificationRow(n model.Notification) []driver.Value {
	var userID, groupID driver.Value
	if n.Kind == model.KindGroup {
		groupID = n.Recipient.String()
	} else {
		userID = n.Recipient.String()
	}

	var scheduled driver.Value
	if n.ScheduledFor != nil {
		scheduled = *n.ScheduledFor
	}

	return []driver.Value{
		n.ID.String(), string(n.Kind), n.Title, n.Message, n.CreatedBy.String(),
		userID, groupID, scheduled, string(n.Status),
		n.JobID, n.RetryCount, n.MaxRetries, n.LastError,
		[]byte(`{"source":"test"}`), nil, nil, nil, n.CreatedAt, n.UpdatedAt,
	}
}

func TestCreateNotification(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()
	now := time.Now()
	n := model.Notification{
		Kind:       model.KindSingle,
		Title:      "Hi",
		Message:    "This is a test notification",
		CreatedBy:  uuid.New(),
		Recipient:  uuid.New(),
		Status:     model.StatusPending,
		MaxRetries: model.DefaultMaxRetries,
	}

	mock.ExpectQuery(`INSERT INTO notifications`).
		WithArgs(
			"single", n.Title, n.Message, n.CreatedBy,
			uuid.NullUUID{UUID: n.Recipient, Valid: true}, uuid.NullUUID{},
			sqlmock.AnyArg(), "pending", 3, sqlmock.AnyArg(),
		).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(id, now, now))

	created, err := repo.CreateNotification(context.Background(), n)
	assert.NoError(t, err)
	assert.Equal(t, id, created.ID)
	assert.Equal(t, now, created.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateNotification_Group(t *testing.T) {
	repo, mock := setupMockDB(t)

	groupID := uuid.New()
	n := model.Notification{Kind: model.KindGroup, Recipient: groupID, Status: model.StatusScheduled}

	mock.ExpectQuery(`INSERT INTO notifications`).
		WithArgs(
			"group", "", "", uuid.Nil, uuid.NullUUID{}, uuid.NullUUID{UUID: groupID, Valid: true},
			sqlmock.AnyArg(), "scheduled", 0, sqlmock.AnyArg(),
		).
		WillReturnError(errors.New("connection refused"))

	_, err := repo.CreateNotification(context.Background(), n)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNotificationByID(t *testing.T) {
	repo, mock := setupMockDB(t)

	scheduled := time.Now().Add(time.Hour).Truncate(time.Second)
	n := model.Notification{
		ID:           uuid.New(),
		Kind:         model.KindGroup,
		Title:        "Standup",
		Message:      "in 5 minutes",
		CreatedBy:    uuid.New(),
		Recipient:    uuid.New(),
		ScheduledFor: &scheduled,
		Status:       model.StatusScheduled,
		JobID:        "notification-x-1",
		MaxRetries:   3,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	mock.ExpectQuery(`FROM notifications n\s+WHERE n.id = \$1`).
		WithArgs(n.ID).
		WillReturnRows(sqlmock.NewRows(notificationRowColumns).AddRow(notificationRow(n)...))

	got, err := repo.GetNotificationByID(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, model.KindGroup, got.Kind)
	assert.Equal(t, n.Recipient, got.Recipient)
	require.NotNil(t, got.ScheduledFor)
	assert.True(t, scheduled.Equal(*got.ScheduledFor))
	assert.Equal(t, "test", got.Metadata["source"])
	assert.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectQuery(`FROM notifications n\s+WHERE n.id = \$1`).
		WithArgs(n.ID).
		WillReturnError(sql.ErrNoRows)

	_, err = repo.GetNotificationByID(context.Background(), n.ID)
	assert.ErrorIs(t, err, ErrNotificationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionStatus(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()
	from := []model.Status{model.StatusPending, model.StatusScheduled}

	mock.ExpectExec(`UPDATE notifications\s+SET status = \$1`).
		WithArgs("processing", id, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.TransitionStatus(context.Background(), id, model.StatusProcessing, from)
	assert.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(`UPDATE notifications\s+SET status = \$1`).
		WithArgs("cancelled", id, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err = repo.TransitionStatus(context.Background(), id, model.StatusCancelled, from)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailed(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()

	mock.ExpectExec(`SET status = 'failed', last_error = \$1`).
		WithArgs("group invalid or empty", id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.MarkFailed(context.Background(), id, "group invalid or empty")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetJobID(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()

	mock.ExpectExec(`SET job_id = NULLIF\(\$1, ''\)`).
		WithArgs("notification-1", id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.SetJobID(context.Background(), id, "notification-1"))

	mock.ExpectExec(`SET job_id = NULLIF\(\$1, ''\)`).
		WithArgs("", id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.SetJobID(context.Background(), id, ""), ErrNotificationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementRetry(t *testing.T) {
	repo, mock := setupMockDB(t)

	id := uuid.New()

	mock.ExpectQuery(`SET retry_count = retry_count \+ 1`).
		WithArgs("push failed", id).
		WillReturnRows(sqlmock.NewRows([]string{"retry_count"}).AddRow(2))

	count, err := repo.IncrementRetry(context.Background(), id, "push failed")
	assert.NoError(t, err)
	assert.Equal(t, 2, count)

	mock.ExpectQuery(`SET retry_count = retry_count \+ 1`).
		WithArgs("push failed", id).
		WillReturnError(sql.ErrNoRows)

	_, err = repo.IncrementRetry(context.Background(), id, "push failed")
	assert.ErrorIs(t, err, ErrNotificationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEditable(t *testing.T) {
	repo, mock := setupMockDB(t)

	n := model.Notification{ID: uuid.New(), Title: "t", Message: "m", Status: model.StatusPending}

	mock.ExpectExec(`WHERE id = \$6 AND status IN \('pending', 'scheduled'\)`).
		WithArgs("t", "m", sqlmock.AnyArg(), "pending", "", n.ID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.UpdateEditable(context.Background(), n)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByCreator(t *testing.T) {
	repo, mock := setupMockDB(t)

	creator := uuid.New()
	n1 := model.Notification{ID: uuid.New(), Kind: model.KindSingle, CreatedBy: creator, Recipient: uuid.New(), Status: model.StatusDelivered}
	n2 := model.Notification{ID: uuid.New(), Kind: model.KindGroup, CreatedBy: creator, Recipient: uuid.New(), Status: model.StatusFailed}

	mock.ExpectQuery(`WHERE n.created_by = \$1`).
		WithArgs(creator, 20, 0).
		WillReturnRows(sqlmock.NewRows(notificationRowColumns).
			AddRow(notificationRow(n1)...).
			AddRow(notificationRow(n2)...))

	list, err := repo.ListByCreator(context.Background(), creator, 20, 0)
	assert.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, n1.Recipient, list[0].Recipient)
	assert.Equal(t, n2.Recipient, list[1].Recipient)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListReceived(t *testing.T) {
	repo, mock := setupMockDB(t)

	userID := uuid.New()
	withDelivery := model.Notification{ID: uuid.New(), Kind: model.KindSingle, Recipient: userID, Status: model.StatusDelivered}
	withoutDelivery := model.Notification{ID: uuid.New(), Kind: model.KindGroup, Recipient: uuid.New(), Status: model.StatusScheduled}
	deliveryID := uuid.New()
	sentAt := time.Now()

	columns := append(append([]string{}, notificationRowColumns...), "d_id", "d_status", "sent_at", "d_delivered_at", "read_at")
	row1 := append(notificationRow(withDelivery), deliveryID.String(), "sent", sentAt, nil, nil)
	row2 := append(notificationRow(withoutDelivery), nil, nil, nil, nil, nil)

	mock.ExpectQuery(`LEFT JOIN notification_deliveries d`).
		WithArgs(userID, "", 10, 0).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(row1...).AddRow(row2...))

	list, err := repo.ListReceived(context.Background(), userID, "", 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.NotNil(t, list[0].Delivery)
	assert.Equal(t, deliveryID, list[0].Delivery.ID)
	assert.Equal(t, model.DeliverySent, list[0].Delivery.Status)
	assert.Nil(t, list[1].Delivery)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountByStatus(t *testing.T) {
	repo, mock := setupMockDB(t)

	creator := uuid.New()

	mock.ExpectQuery(`GROUP BY status`).
		WithArgs(creator).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("delivered", 4).
			AddRow("pending", 1))

	counts, err := repo.CountByStatus(context.Background(), creator)
	assert.NoError(t, err)
	assert.Equal(t, []model.StatusCount{
		{Status: model.StatusDelivered, Count: 4},
		{Status: model.StatusPending, Count: 1},
	}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
