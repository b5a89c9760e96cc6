package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Push channel message types.
const (
	MsgAuthenticate     = "authenticate"
	MsgPing             = "ping"
	MsgPong             = "pong"
	MsgRead             = "notification:read"
	MsgDelivered        = "notification:delivered"
	MsgConnected        = "connected"
	MsgAuthSuccess      = "auth:success"
	MsgAuthError        = "auth:error"
	MsgNew              = "notification:new"
	MsgStatus           = "notification:status"
	MsgReadSuccess      = "notification:read:success"
	MsgDeliveredSuccess = "notification:delivered:success"
	MsgError            = "error"
)

// Envelope is the frame exchanged over the push channel.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// OutEnvelope is a server frame whose payload is still a Go value.
type OutEnvelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// NotificationPayload is the body of notification:new.
type NotificationPayload struct {
	DeliveryID     uuid.UUID      `json:"deliveryId"`
	NotificationID uuid.UUID      `json:"notificationId"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	Type           Kind           `json:"type"`
	CreatedAt      time.Time      `json:"createdAt"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// NewNotificationMessage builds the notification:new frame for one delivery.
func NewNotificationMessage(deliveryID uuid.UUID, n Notification) OutEnvelope {
	return OutEnvelope{
		Type: MsgNew,
		Payload: NotificationPayload{
			DeliveryID:     deliveryID,
			NotificationID: n.ID,
			Title:          n.Title,
			Message:        n.Message,
			Type:           n.Kind,
			CreatedAt:      n.CreatedAt,
			Metadata:       n.Metadata,
		},
	}
}

// StatusPayload is the body of notification:status.
type StatusPayload struct {
	NotificationID uuid.UUID `json:"notificationId"`
	Status         Status    `json:"status"`
	Error          string    `json:"error,omitempty"`
}

// AuthenticatePayload is the body of authenticate.
type AuthenticatePayload struct {
	Token string `json:"token"`
}

// AckPayload is the body of notification:read and notification:delivered.
type AckPayload struct {
	DeliveryID uuid.UUID `json:"deliveryId"`
	// Older clients still send the id under this name.
	NotificationDeliveryID uuid.UUID `json:"notificationDeliveryId"`
}

// ID returns whichever delivery id the client set.
func (p AckPayload) ID() uuid.UUID {
	if p.DeliveryID != uuid.Nil {
		return p.DeliveryID
	}

	return p.NotificationDeliveryID
}

// AckResultPayload answers an acknowledgement.
type AckResultPayload struct {
	DeliveryID uuid.UUID      `json:"deliveryId"`
	Status     DeliveryStatus `json:"status"`
	Applied    bool           `json:"applied"`
}

// InfoPayload carries a human readable message.
type InfoPayload struct {
	Message string `json:"message"`
}

// AuthSuccessPayload is the body of auth:success.
type AuthSuccessPayload struct {
	UserID  uuid.UUID `json:"userId"`
	Message string    `json:"message"`
}
