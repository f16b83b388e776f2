package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/fileferry/fileferry/internal/constants"
	"github.com/fileferry/fileferry/internal/transfer"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	// EventSnapshot carries a full progress snapshot; the payload type
	// lives in the progress package.
	EventSnapshot EventType = "snapshot"

	// EventState marks a job status transition.
	EventState EventType = "state"

	// EventFile marks a per-file milestone: started, completed, skipped.
	EventFile EventType = "file"

	// EventNotification carries notification queue changes; the payload
	// type lives in the notify package.
	EventNotification EventType = "notification"

	// EventLog carries log lines for UI surfaces that render them.
	EventLog EventType = "log"
)

// FileStage identifies which milestone a FileEvent reports.
type FileStage string

const (
	FileStarted   FileStage = "started"
	FileCompleted FileStage = "completed"
	FileSkipped   FileStage = "skipped"
)

// LogLevel defines log severity levels
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// StateChangeEvent represents a job status transition
type StateChangeEvent struct {
	BaseEvent
	JobID  string
	From   transfer.JobStatus
	To     transfer.JobStatus
	Reason string // failure reason when To is failed, otherwise empty
}

// FileEvent represents one file's milestone within a job
type FileEvent struct {
	BaseEvent
	JobID   string
	RelPath string
	Size    int64
	Bytes   int64
	Stage   FileStage
	Error   string // skip or failure reason when Stage is skipped
}

// LogEvent represents log messages routed to UI surfaces
type LogEvent struct {
	BaseEvent
	Level   LogLevel
	Message string
	JobID   string
	Error   error
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers. Publishing never blocks:
// an event is dropped for a subscriber whose buffer is full, and the
// drop is counted. Progress consumers always catch up through the next
// snapshot, so a dropped event cannot leave them permanently stale.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}

	for _, ch := range eb.all {
		select {
		case ch <- event:
		default:
			eb.droppedEvents.Add(1)
		}
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}

	for _, ch := range eb.all {
		close(ch)
	}
}

// PublishStateChange is a convenience method for publishing job status
// transitions
func (eb *EventBus) PublishStateChange(jobID string, from, to transfer.JobStatus, reason string) {
	eb.Publish(&StateChangeEvent{
		BaseEvent: BaseEvent{
			EventType: EventState,
			Time:      time.Now(),
		},
		JobID:  jobID,
		From:   from,
		To:     to,
		Reason: reason,
	})
}

// PublishFile is a convenience method for publishing per-file milestones
func (eb *EventBus) PublishFile(jobID string, task transfer.FileTask, stage FileStage, errText string) {
	eb.Publish(&FileEvent{
		BaseEvent: BaseEvent{
			EventType: EventFile,
			Time:      time.Now(),
		},
		JobID:   jobID,
		RelPath: task.RelPath,
		Size:    task.Size,
		Bytes:   task.BytesCopied,
		Stage:   stage,
		Error:   errText,
	})
}

// PublishLog is a convenience method for publishing log events
func (eb *EventBus) PublishLog(level LogLevel, message, jobID string, err error) {
	eb.Publish(&LogEvent{
		BaseEvent: BaseEvent{
			EventType: EventLog,
			Time:      time.Now(),
		},
		Level:   level,
		Message: message,
		JobID:   jobID,
		Error:   err,
	})
}

// Unsubscribe removes a subscription channel from a specific event type
// This prevents memory leaks from abandoned subscriptions
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	subscribers := eb.subscribers[eventType]
	for i, subCh := range subscribers {
		if subCh == ch {
			// Remove channel by replacing with last element and truncating
			subscribers[i] = subscribers[len(subscribers)-1]
			eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
			break
		}
	}
}

// UnsubscribeAll removes a subscription channel from all event types
// Use this when cleaning up a subscriber that subscribed to multiple event types
func (eb *EventBus) UnsubscribeAll(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	for eventType, subscribers := range eb.subscribers {
		for i, subCh := range subscribers {
			if subCh == ch {
				subscribers[i] = subscribers[len(subscribers)-1]
				eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
				break
			}
		}
	}

	for i, subCh := range eb.all {
		if subCh == ch {
			eb.all[i] = eb.all[len(eb.all)-1]
			eb.all = eb.all[:len(eb.all)-1]
			break
		}
	}
}

// GetDroppedEventCount returns the total number of events dropped due to
// full subscriber buffers
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}

// ResetDroppedEventCount resets the dropped event counter to zero
// Useful for periodic monitoring windows
func (eb *EventBus) ResetDroppedEventCount() int64 {
	return eb.droppedEvents.Swap(0)
}
