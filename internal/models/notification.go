package models

import (
	"time"
)

// NotificationKind distinguishes a delivered payload from a silence marker
type NotificationKind string

const (
	KindPayload NotificationKind = "payload"
	KindTimeout NotificationKind = "timeout"
)

// ShutdownPayload is the only payload the listener treats as a control signal.
const ShutdownPayload = "shutdown"

// Notification is either a payload received on a channel or a timeout
// marker produced when nothing arrived within the notification timeout.
type Notification struct {
	Kind       NotificationKind `json:"kind"`
	Channel    string           `json:"channel"`
	Payload    string           `json:"payload,omitempty"`
	PID        uint32           `json:"pid,omitempty"` // backend that sent the NOTIFY
	ReceivedAt time.Time        `json:"received_at"`
}

// NewPayload builds a payload notification.
func NewPayload(channel, payload string, pid uint32) Notification {
	return Notification{
		Kind:       KindPayload,
		Channel:    channel,
		Payload:    payload,
		PID:        pid,
		ReceivedAt: time.Now(),
	}
}

// NewTimeout builds a timeout marker for channel.
func NewTimeout(channel string) Notification {
	return Notification{
		Kind:       KindTimeout,
		Channel:    channel,
		ReceivedAt: time.Now(),
	}
}

// IsTimeout reports whether n is a timeout marker
func (n Notification) IsTimeout() bool {
	return n.Kind == KindTimeout
}

// IsShutdown reports whether n carries the shutdown sentinel
func (n Notification) IsShutdown() bool {
	return n.Kind == KindPayload && n.Payload == ShutdownPayload
}
