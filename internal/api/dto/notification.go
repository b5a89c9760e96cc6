package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateRequest is the body of POST /notifications.
type CreateRequest struct {
	Type             string         `json:"type" validate:"required,oneof=single group"`
	Title            string         `json:"title" validate:"required,max=200"`
	Message          string         `json:"message" validate:"required,max=5000"`
	RecipientUserID  string         `json:"recipientUserId" validate:"omitempty,uuid"`
	RecipientGroupID string         `json:"recipientGroupId" validate:"omitempty,uuid"`
	ScheduledFor     *time.Time     `json:"scheduledFor"`
	Metadata         map[string]any `json:"metadata"`
	MaxRetries       *int           `json:"maxRetries" validate:"omitempty,min=1,max=10"`
}

// Recipient returns the target id matching the request type.
func (r CreateRequest) Recipient() (uuid.UUID, error) {
	field, raw := "recipientUserId", r.RecipientUserID
	if r.Type == "group" {
		field, raw = "recipientGroupId", r.RecipientGroupID
	}

	if raw == "" {
		return uuid.Nil, fmt.Errorf("%s is required for %s notifications", field, r.Type)
	}

	return uuid.Parse(raw)
}

// UpdateRequest is the body of PATCH /notifications/:id.
// ScheduledFor distinguishes an absent field from an explicit null, which means send now.
type UpdateRequest struct {
	Title        *string         `json:"title" validate:"omitempty,min=1,max=200"`
	Message      *string         `json:"message" validate:"omitempty,min=1,max=5000"`
	ScheduledFor json.RawMessage `json:"scheduledFor"`
}

// Schedule reports whether the request touches the schedule and the new due time, nil meaning now.
func (r UpdateRequest) Schedule() (bool, *time.Time, error) {
	if len(r.ScheduledFor) == 0 {
		return false, nil, nil
	}

	if bytes.Equal(r.ScheduledFor, []byte("null")) {
		return true, nil, nil
	}

	var at time.Time
	if err := json.Unmarshal(r.ScheduledFor, &at); err != nil {
		return false, nil, fmt.Errorf("invalid scheduledFor: %w", err)
	}

	return true, &at, nil
}

// PresenceResponse answers GET /presence/:userId.
type PresenceResponse struct {
	UserID uuid.UUID `json:"userId"`
	Online bool      `json:"online"`
}

// StatusResponse answers GET /notifications/:id/status.
type StatusResponse struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}
