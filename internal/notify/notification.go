// Package notify manages transient user-facing notifications: a queue
// with a bounded visible set and FIFO backlog, plus optional desktop
// notifications via beeep.
package notify

import (
	"time"

	"github.com/google/uuid"

	"github.com/fileferry/fileferry/internal/constants"
	"github.com/fileferry/fileferry/internal/events"
)

// Severity classifies a notification for display and expiry.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is one transient message. Once created its fields never
// change; the queue tracks visibility separately.
type Notification struct {
	ID        string
	Message   string
	Severity  Severity
	CreatedAt time.Time

	// Duration is how long the notification stays visible once shown.
	// The expiry clock starts at promotion, not at creation, so a
	// message that waited in the backlog still gets its full time on
	// screen.
	Duration time.Duration
}

func newNotification(message string, severity Severity, createdAt time.Time) Notification {
	d := constants.NotificationDuration
	if severity == SeverityError {
		d = constants.NotificationErrorDuration
	}
	return Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Severity:  severity,
		CreatedAt: createdAt,
		Duration:  d,
	}
}

// Action describes what just happened to a notification.
type Action string

const (
	ActionPosted    Action = "posted"    // became visible immediately
	ActionQueued    Action = "queued"    // waiting in the backlog
	ActionPromoted  Action = "promoted"  // moved from backlog to visible
	ActionDismissed Action = "dismissed" // removed by the user
	ActionExpired   Action = "expired"   // display time ran out
)

// NotificationEvent reports a queue change on the event bus.
type NotificationEvent struct {
	events.BaseEvent
	Notification Notification
	Action       Action
}

func newNotificationEvent(n Notification, action Action) *NotificationEvent {
	return &NotificationEvent{
		BaseEvent: events.BaseEvent{
			EventType: events.EventNotification,
			Time:      time.Now(),
		},
		Notification: n,
		Action:       action,
	}
}
