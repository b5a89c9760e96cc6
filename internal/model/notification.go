package model

import (
	"time"

	"github.com/google/uuid"
)

// Kind tells whether a notification targets one user or a whole group.
type Kind string

const (
	KindSingle Kind = "single"
	KindGroup  Kind = "group"
)

// Status is the lifecycle state of a notification.
type Status string

const (
	StatusPending    Status = "pending"
	StatusScheduled  Status = "scheduled"
	StatusProcessing Status = "processing"
	StatusDelivered  Status = "delivered"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusFailed || s == StatusCancelled
}

// Editable reports whether a notification in s may be edited, rescheduled or cancelled.
func (s Status) Editable() bool {
	return s == StatusPending || s == StatusScheduled
}

// Notification represents an intent to deliver a message to a user or a group.
type Notification struct {
	ID           uuid.UUID      `json:"id"`                      // unique identifier for the notification
	Kind         Kind           `json:"kind"`                    // single or group
	Title        string         `json:"title"`                   // short title shown to the recipient
	Message      string         `json:"message"`                 // body of the notification
	CreatedBy    uuid.UUID      `json:"created_by"`              // user who created the notification
	Recipient    uuid.UUID      `json:"recipient_id"`            // user id for single, group id for group
	ScheduledFor *time.Time     `json:"scheduled_for,omitempty"` // nil means send immediately
	Status       Status         `json:"status"`                  // current lifecycle state
	JobID        string         `json:"job_id,omitempty"`        // reference to the queued job, if any
	RetryCount   int            `json:"retry_count"`             // number of failed processing attempts
	MaxRetries   int            `json:"max_retries"`             // bound on processing attempts
	LastError    string         `json:"last_error,omitempty"`    // reason of the last failure
	Metadata     map[string]any `json:"metadata,omitempty"`      // arbitrary client data
	ProcessedAt  *time.Time     `json:"processed_at,omitempty"`
	DeliveredAt  *time.Time     `json:"delivered_at,omitempty"`
	FailedAt     *time.Time     `json:"failed_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// DefaultMaxRetries is the processing attempt bound of a new notification.
const DefaultMaxRetries = 3

// ScheduledAfter reports whether the notification is due strictly after now.
func (n Notification) ScheduledAfter(now time.Time) bool {
	return n.ScheduledFor != nil && n.ScheduledFor.After(now)
}

// RecipientUser returns the target user of a single notification.
func (n Notification) RecipientUser() (uuid.UUID, bool) {
	if n.Kind != KindSingle {
		return uuid.Nil, false
	}

	return n.Recipient, true
}

// RecipientGroup returns the target group of a group notification.
func (n Notification) RecipientGroup() (uuid.UUID, bool) {
	if n.Kind != KindGroup {
		return uuid.Nil, false
	}

	return n.Recipient, true
}

// StatusCount is the number of notifications in a given status.
type StatusCount struct {
	Status Status `json:"status"`
	Count  int    `json:"count"`
}
