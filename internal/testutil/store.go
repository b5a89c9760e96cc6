// Package testutil holds in-memory stand-ins for the Postgres stores, the job queue
// and push connections, for tests that drive whole delivery flows.
package testutil

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aliskhannn/realtime-notifier/internal/model"
	"github.com/aliskhannn/realtime-notifier/internal/repository/delivery"
	"github.com/aliskhannn/realtime-notifier/internal/repository/directory"
	"github.com/aliskhannn/realtime-notifier/internal/repository/notification"
)

// DeliveryStore keeps deliveries in memory and enforces pair uniqueness.
type DeliveryStore struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]*model.Delivery
	pairs map[[2]uuid.UUID]uuid.UUID
	clock time.Time
}

func NewDeliveryStore() *DeliveryStore {
	return &DeliveryStore{
		rows:  make(map[uuid.UUID]*model.Delivery),
		pairs: make(map[[2]uuid.UUID]uuid.UUID),
		clock: time.Now(),
	}
}

// tick returns strictly increasing timestamps so ordering by creation is stable.
func (s *DeliveryStore) tick() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

func (s *DeliveryStore) Find(_ context.Context, notificationID, recipientID uuid.UUID) (model.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.pairs[[2]uuid.UUID{notificationID, recipientID}]
	if !ok {
		return model.Delivery{}, delivery.ErrDeliveryNotFound
	}

	return *s.rows[id], nil
}

func (s *DeliveryStore) GetByID(_ context.Context, id uuid.UUID) (model.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.rows[id]
	if !ok {
		return model.Delivery{}, delivery.ErrDeliveryNotFound
	}

	return *d, nil
}

func (s *DeliveryStore) Create(_ context.Context, notificationID, recipientID uuid.UUID) (model.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := [2]uuid.UUID{notificationID, recipientID}
	if _, ok := s.pairs[key]; ok {
		return model.Delivery{}, delivery.ErrDeliveryExists
	}

	now := s.tick()
	d := &model.Delivery{
		ID:             uuid.New(),
		NotificationID: notificationID,
		RecipientID:    recipientID,
		Status:         model.DeliveryPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.rows[d.ID] = d
	s.pairs[key] = d.ID

	return *d, nil
}

func (s *DeliveryStore) UpdateStatus(
	_ context.Context, id uuid.UUID, to model.DeliveryStatus, from []model.DeliveryStatus, reason string,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.rows[id]
	if !ok || !slices.Contains(from, d.Status) {
		return false, nil
	}

	now := s.tick()
	d.Status = to
	d.UpdatedAt = now
	if reason != "" {
		d.Error = reason
	}

	switch to {
	case model.DeliverySent:
		d.SentAt = &now
	case model.DeliveryDelivered:
		d.DeliveredAt = &now
	case model.DeliveryRead:
		d.ReadAt = &now
	case model.DeliveryFailed:
		d.FailedAt = &now
	}

	return true, nil
}

func (s *DeliveryStore) IncrementRetry(_ context.Context, id uuid.UUID, reason string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.rows[id]
	if !ok {
		return 0, delivery.ErrDeliveryNotFound
	}

	d.RetryCount++
	d.Error = reason

	return d.RetryCount, nil
}

func (s *DeliveryStore) FailPending(_ context.Context, notificationID uuid.UUID, reason string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, d := range s.rows {
		if d.NotificationID != notificationID || d.Status != model.DeliveryPending {
			continue
		}

		now := s.tick()
		d.Status = model.DeliveryFailed
		d.FailedAt = &now
		d.UpdatedAt = now
		d.Error = reason
		count++
	}

	return count, nil
}

func (s *DeliveryStore) CountByStatus(_ context.Context, notificationID uuid.UUID, statuses ...model.DeliveryStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, d := range s.rows {
		if d.NotificationID == notificationID && slices.Contains(statuses, d.Status) {
			count++
		}
	}

	return count, nil
}

func (s *DeliveryStore) ListUndelivered(
	_ context.Context, recipientID uuid.UUID, statuses []model.DeliveryStatus, limit int,
) ([]model.PendingDelivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.PendingDelivery
	for _, d := range s.rows {
		if d.RecipientID == recipientID && slices.Contains(statuses, d.Status) {
			out = append(out, model.PendingDelivery{
				Delivery:     *d,
				Notification: model.Notification{ID: d.NotificationID, Title: "title", Message: "message"},
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Delivery.CreatedAt.After(out[j].Delivery.CreatedAt)
	})

	if len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// ForNotification returns every delivery of a notification.
func (s *DeliveryStore) ForNotification(notificationID uuid.UUID) []model.Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Delivery
	for _, d := range s.rows {
		if d.NotificationID == notificationID {
			out = append(out, *d)
		}
	}

	return out
}

// Len returns the number of stored deliveries.
func (s *DeliveryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.rows)
}

// Directory is an in-memory user and group directory.
type Directory struct {
	mu     sync.Mutex
	users  map[uuid.UUID]bool
	groups map[uuid.UUID][]uuid.UUID
}

func NewDirectory() *Directory {
	return &Directory{
		users:  make(map[uuid.UUID]bool),
		groups: make(map[uuid.UUID][]uuid.UUID),
	}
}

// AddUser registers a user and returns its id.
func (d *Directory) AddUser() uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := uuid.New()
	d.users[id] = true

	return id
}

// AddGroup registers a group with the given members and returns its id.
func (d *Directory) AddGroup(members ...uuid.UUID) uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := uuid.New()
	d.groups[id] = members

	return id
}

func (d *Directory) UserExists(_ context.Context, id uuid.UUID) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.users[id], nil
}

func (d *Directory) GroupExists(_ context.Context, id uuid.UUID) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ok := d.groups[id]
	return ok, nil
}

func (d *Directory) GroupMembers(_ context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	members, ok := d.groups[groupID]
	if !ok {
		return nil, directory.ErrGroupNotFound
	}

	return slices.Clone(members), nil
}

func (d *Directory) IsGroupMember(_ context.Context, groupID, userID uuid.UUID) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return slices.Contains(d.groups[groupID], userID), nil
}

// NotificationStore keeps notifications in memory.
type NotificationStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*model.Notification

	Deliveries *DeliveryStore
	Directory  *Directory
}

func NewNotificationStore(deliveries *DeliveryStore, dir *Directory) *NotificationStore {
	return &NotificationStore{
		rows:       make(map[uuid.UUID]*model.Notification),
		Deliveries: deliveries,
		Directory:  dir,
	}
}

func (s *NotificationStore) CreateNotification(_ context.Context, n model.Notification) (model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	n.UpdatedAt = n.CreatedAt
	cp := n
	s.rows[n.ID] = &cp

	return n, nil
}

func (s *NotificationStore) GetNotificationByID(_ context.Context, id uuid.UUID) (model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.rows[id]
	if !ok {
		return model.Notification{}, notification.ErrNotificationNotFound
	}

	return *n, nil
}

func (s *NotificationStore) TransitionStatus(_ context.Context, id uuid.UUID, to model.Status, from []model.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.rows[id]
	if !ok || !slices.Contains(from, n.Status) {
		return false, nil
	}

	now := time.Now()
	n.Status = to
	n.UpdatedAt = now

	switch to {
	case model.StatusProcessing:
		n.ProcessedAt = &now
	case model.StatusDelivered:
		n.DeliveredAt = &now
	}

	return true, nil
}

func (s *NotificationStore) MarkFailed(_ context.Context, id uuid.UUID, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.rows[id]
	if !ok || n.Status.Terminal() {
		return false, nil
	}

	now := time.Now()
	n.Status = model.StatusFailed
	n.LastError = reason
	n.FailedAt = &now

	return true, nil
}

func (s *NotificationStore) SetJobID(_ context.Context, id uuid.UUID, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.rows[id]
	if !ok {
		return notification.ErrNotificationNotFound
	}

	n.JobID = jobID

	return nil
}

func (s *NotificationStore) IncrementRetry(_ context.Context, id uuid.UUID, reason string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.rows[id]
	if !ok {
		return 0, notification.ErrNotificationNotFound
	}

	n.RetryCount++
	n.LastError = reason

	return n.RetryCount, nil
}

func (s *NotificationStore) UpdateEditable(_ context.Context, upd model.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.rows[upd.ID]
	if !ok || !n.Status.Editable() {
		return false, nil
	}

	n.Title = upd.Title
	n.Message = upd.Message
	n.ScheduledFor = upd.ScheduledFor
	n.Status = upd.Status
	n.JobID = upd.JobID
	n.UpdatedAt = time.Now()

	return true, nil
}

func (s *NotificationStore) ListByCreator(_ context.Context, creator uuid.UUID, limit, offset int) ([]model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Notification
	for _, n := range s.rows {
		if n.CreatedBy == creator {
			out = append(out, *n)
		}
	}

	return page(out, limit, offset), nil
}

func (s *NotificationStore) ListReceived(
	ctx context.Context, userID uuid.UUID, status model.DeliveryStatus, limit, offset int,
) ([]model.ReceivedNotification, error) {
	s.mu.Lock()
	var candidates []model.Notification
	for _, n := range s.rows {
		candidates = append(candidates, *n)
	}
	s.mu.Unlock()

	var out []model.ReceivedNotification
	for _, n := range candidates {
		addressed := n.Kind == model.KindSingle && n.Recipient == userID
		if n.Kind == model.KindGroup && s.Directory != nil {
			addressed, _ = s.Directory.IsGroupMember(ctx, n.Recipient, userID)
		}

		if !addressed {
			continue
		}

		item := model.ReceivedNotification{Notification: n}
		if s.Deliveries != nil {
			if d, err := s.Deliveries.Find(ctx, n.ID, userID); err == nil {
				item.Delivery = &d
			}
		}

		if status != "" && (item.Delivery == nil || item.Delivery.Status != status) {
			continue
		}

		out = append(out, item)
	}

	if offset >= len(out) {
		return nil, nil
	}

	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (s *NotificationStore) CountByStatus(_ context.Context, creator uuid.UUID) ([]model.StatusCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[model.Status]int)
	for _, n := range s.rows {
		if n.CreatedBy == creator {
			counts[n.Status]++
		}
	}

	out := make([]model.StatusCount, 0, len(counts))
	for st, c := range counts {
		out = append(out, model.StatusCount{Status: st, Count: c})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })

	return out, nil
}

func (s *NotificationStore) ListIDsByCreator(_ context.Context, creator uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []uuid.UUID
	for id, n := range s.rows {
		if n.CreatedBy == creator {
			ids = append(ids, id)
		}
	}

	return ids, nil
}

// Get returns a copy of a stored notification, for assertions.
func (s *NotificationStore) Get(id uuid.UUID) model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.rows[id]; ok {
		return *n
	}

	return model.Notification{}
}

func page(in []model.Notification, limit, offset int) []model.Notification {
	if offset >= len(in) {
		return nil
	}

	in = in[offset:]
	if len(in) > limit {
		in = in[:limit]
	}

	return in
}
