package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/realtime-notifier/internal/api/dto"
	"github.com/aliskhannn/realtime-notifier/internal/api/respond"
	"github.com/aliskhannn/realtime-notifier/internal/middlewares"
	"github.com/aliskhannn/realtime-notifier/internal/model"
	"github.com/aliskhannn/realtime-notifier/internal/repository/notification"
	service "github.com/aliskhannn/realtime-notifier/internal/service/notification"
)

// notificationService defines the use cases the Handler exposes over HTTP.
//
//go:generate mockgen -source=handler.go -destination=../../../mocks/api/handlers/notification/mock.go -package=mocks
type notificationService interface {
	Create(ctx context.Context, in service.CreateInput) (model.Notification, error)
	Update(ctx context.Context, id, actor uuid.UUID, in service.UpdateInput) (model.Notification, error)
	Cancel(ctx context.Context, id, actor uuid.UUID) (model.Notification, error)
	Get(ctx context.Context, id, actor uuid.UUID) (model.ReceivedNotification, error)
	GetStatus(ctx context.Context, id uuid.UUID) (model.Status, error)
	ListSent(ctx context.Context, creator uuid.UUID, page service.Page) ([]model.Notification, error)
	ListReceived(
		ctx context.Context, userID uuid.UUID, status model.DeliveryStatus, page service.Page,
	) ([]model.ReceivedNotification, error)
	Stats(ctx context.Context, creator uuid.UUID) (service.Stats, error)
}

type presenceChecker interface {
	IsOnline(userID uuid.UUID) bool
}

// Handler handles HTTP requests related to notifications.
type Handler struct {
	service   notificationService
	presence  presenceChecker
	validator *validator.Validate
}

// NewHandler creates a new Handler instance.
func NewHandler(s notificationService, p presenceChecker, v *validator.Validate) *Handler {
	return &Handler{service: s, presence: p, validator: v}
}

// Create handles POST /notifications.
//
// The caller becomes the creator. A scheduledFor in the future schedules the
// notification, anything else dispatches it right away.
func (h *Handler) Create(c *ginext.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}

	var req dto.CreateRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to decode request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	if err := h.validator.Struct(req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to validate request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("validation error: %s", err.Error()))
		return
	}

	recipient, err := req.Recipient()
	if err != nil {
		zlog.Logger.Warn().Err(err).Msg("invalid recipient")
		respond.Fail(c.Writer, http.StatusBadRequest, err)
		return
	}

	in := service.CreateInput{
		CreatedBy:    actor,
		Kind:         model.Kind(req.Type),
		Recipient:    recipient,
		Title:        req.Title,
		Message:      req.Message,
		ScheduledFor: req.ScheduledFor,
		Metadata:     req.Metadata,
	}
	if req.MaxRetries != nil {
		in.MaxRetries = *req.MaxRetries
	}

	n, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err, "failed to create notification")
		return
	}

	respond.Created(c.Writer, n)
}

// Update handles PATCH /notifications/:id. Only the creator may edit, and only
// while the notification is pending or scheduled.
func (h *Handler) Update(c *ginext.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}

	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to decode request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	if err := h.validator.Struct(req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to validate request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("validation error: %s", err.Error()))
		return
	}

	reschedule, at, err := req.Schedule()
	if err != nil {
		respond.Fail(c.Writer, http.StatusBadRequest, err)
		return
	}

	n, err := h.service.Update(c.Request.Context(), id, actor, service.UpdateInput{
		Title:        req.Title,
		Message:      req.Message,
		Reschedule:   reschedule,
		ScheduledFor: at,
	})
	if err != nil {
		h.fail(c, err, "failed to update notification")
		return
	}

	respond.OK(c.Writer, n)
}

// Cancel handles DELETE /notifications/:id.
func (h *Handler) Cancel(c *ginext.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}

	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	n, err := h.service.Cancel(c.Request.Context(), id, actor)
	if err != nil {
		h.fail(c, err, "failed to cancel notification")
		return
	}

	respond.OK(c.Writer, n)
}

// Get handles GET /notifications/:id.
func (h *Handler) Get(c *ginext.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}

	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	view, err := h.service.Get(c.Request.Context(), id, actor)
	if err != nil {
		h.fail(c, err, "failed to get notification")
		return
	}

	respond.OK(c.Writer, view)
}

// GetStatus handles GET /notifications/:id/status.
func (h *Handler) GetStatus(c *ginext.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	status, err := h.service.GetStatus(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "failed to get notification status")
		return
	}

	respond.OK(c.Writer, dto.StatusResponse{ID: id, Status: string(status)})
}

// ListSent handles GET /notifications/sent.
func (h *Handler) ListSent(c *ginext.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}

	page, ok := pageQuery(c)
	if !ok {
		return
	}

	list, err := h.service.ListSent(c.Request.Context(), actor, page)
	if err != nil {
		h.fail(c, err, "failed to list sent notifications")
		return
	}

	respond.OK(c.Writer, list)
}

// ListReceived handles GET /notifications/received, optionally filtered by ?status=.
func (h *Handler) ListReceived(c *ginext.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}

	page, ok := pageQuery(c)
	if !ok {
		return
	}

	status := model.DeliveryStatus(c.Query("status"))

	list, err := h.service.ListReceived(c.Request.Context(), actor, status, page)
	if err != nil {
		h.fail(c, err, "failed to list received notifications")
		return
	}

	respond.OK(c.Writer, list)
}

// Stats handles GET /notifications/stats.
func (h *Handler) Stats(c *ginext.Context) {
	actor, ok := caller(c)
	if !ok {
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), actor)
	if err != nil {
		h.fail(c, err, "failed to get notification stats")
		return
	}

	respond.OK(c.Writer, stats)
}

// Presence handles GET /presence/:userId.
func (h *Handler) Presence(c *ginext.Context) {
	id, ok := pathID(c, "userId")
	if !ok {
		return
	}

	respond.OK(c.Writer, dto.PresenceResponse{UserID: id, Online: h.presence.IsOnline(id)})
}

// fail maps a service error to its HTTP status.
func (h *Handler) fail(c *ginext.Context, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		zlog.Logger.Warn().Err(err).Msg(msg)
		respond.Fail(c.Writer, http.StatusBadRequest, err)
	case errors.Is(err, service.ErrForbidden):
		zlog.Logger.Warn().Err(err).Msg(msg)
		respond.Fail(c.Writer, http.StatusForbidden, err)
	case errors.Is(err, notification.ErrNotificationNotFound), errors.Is(err, service.ErrRecipientNotFound):
		zlog.Logger.Warn().Err(err).Msg(msg)
		respond.Fail(c.Writer, http.StatusNotFound, err)
	case errors.Is(err, service.ErrNotEditable), errors.Is(err, service.ErrNotCancellable):
		zlog.Logger.Warn().Err(err).Msg(msg)
		respond.Fail(c.Writer, http.StatusConflict, err)
	default:
		zlog.Logger.Error().Err(err).Msg(msg)
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
	}
}

func caller(c *ginext.Context) (uuid.UUID, bool) {
	id, ok := middlewares.UserID(c)
	if !ok {
		respond.Fail(c.Writer, http.StatusUnauthorized, fmt.Errorf("unauthorized"))
		return uuid.Nil, false
	}

	return id, true
}

func pathID(c *ginext.Context, name string) (uuid.UUID, bool) {
	raw := c.Param(name)

	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		zlog.Logger.Warn().Str(name, raw).Msg("invalid id")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid %s", name))
		return uuid.Nil, false
	}

	return id, true
}

func pageQuery(c *ginext.Context) (service.Page, bool) {
	var page service.Page

	for name, dst := range map[string]*int{"limit": &page.Limit, "offset": &page.Offset} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}

		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid %s", name))
			return service.Page{}, false
		}

		*dst = v
	}

	return page, true
}
