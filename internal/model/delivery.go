package model

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus is the state of one notification reaching one recipient.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryRead      DeliveryStatus = "read"
	DeliveryFailed    DeliveryStatus = "failed"
)

// Rank orders delivery statuses; a delivery only moves to a higher rank.
func (s DeliveryStatus) Rank() int {
	switch s {
	case DeliveryPending:
		return 0
	case DeliverySent, DeliveryFailed:
		return 1
	case DeliveryDelivered:
		return 2
	case DeliveryRead:
		return 3
	default:
		return -1
	}
}

// Satisfied reports whether no further server-side action is owed for the delivery.
func (s DeliveryStatus) Satisfied() bool {
	return s == DeliverySent || s == DeliveryDelivered || s == DeliveryRead
}

// Below returns every known status ranked strictly lower than s.
func (s DeliveryStatus) Below() []DeliveryStatus {
	all := []DeliveryStatus{DeliveryPending, DeliverySent, DeliveryFailed, DeliveryDelivered, DeliveryRead}

	var lower []DeliveryStatus
	for _, st := range all {
		if st.Rank() < s.Rank() {
			lower = append(lower, st)
		}
	}

	return lower
}

// Delivery is the per (notification, recipient) ledger row.
type Delivery struct {
	ID             uuid.UUID      `json:"id"`
	NotificationID uuid.UUID      `json:"notification_id"`
	RecipientID    uuid.UUID      `json:"recipient_id"`
	Status         DeliveryStatus `json:"status"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty"`
	ReadAt         *time.Time     `json:"read_at,omitempty"`
	FailedAt       *time.Time     `json:"failed_at,omitempty"`
	RetryCount     int            `json:"retry_count"`
	Error          string         `json:"error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// PendingDelivery pairs an undelivered ledger row with its notification, for flushing.
type PendingDelivery struct {
	Delivery     Delivery
	Notification Notification
}

// ReceivedNotification is a notification as seen by one of its recipients.
type ReceivedNotification struct {
	Notification Notification `json:"notification"`
	Delivery     *Delivery    `json:"delivery,omitempty"`
}
