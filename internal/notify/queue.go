package notify

import (
	"sync"

	"github.com/fileferry/fileferry/internal/clock"
	"github.com/fileferry/fileferry/internal/constants"
	"github.com/fileferry/fileferry/internal/events"
)

// entry pairs a notification with its running expiry timer. The timer
// is nil while the notification waits in the backlog.
type entry struct {
	n     Notification
	timer clock.Timer
}

// Queue keeps at most a fixed number of notifications visible and holds
// the rest in a FIFO backlog. Dismissal and expiry free a visible slot,
// and the oldest backlog entry is promoted in arrival order. Each
// visible notification expires on its own timer, independent of
// transfer activity and of the other notifications.
type Queue struct {
	mu      sync.Mutex
	visible []*entry
	backlog []*entry
	max     int
	clk     clock.Clock
	bus     *events.EventBus
	stopped bool
}

// NewQueue creates a queue showing at most max notifications at once.
// Zero or negative max falls back to the engine default; a nil clock
// falls back to the system clock; a nil bus disables events.
func NewQueue(max int, clk clock.Clock, bus *events.EventBus) *Queue {
	if max <= 0 {
		max = constants.MaxVisibleNotifications
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Queue{max: max, clk: clk, bus: bus}
}

// Post adds a notification. It becomes visible immediately when a slot
// is free, otherwise it joins the backlog. The created notification is
// returned so callers can hold its ID for dismissal.
func (q *Queue) Post(message string, severity Severity) Notification {
	q.mu.Lock()
	n := newNotification(message, severity, q.clk.Now())
	if q.stopped {
		q.mu.Unlock()
		return n
	}
	e := &entry{n: n}
	action := ActionPosted
	if len(q.visible) < q.max {
		q.showLocked(e)
	} else {
		q.backlog = append(q.backlog, e)
		action = ActionQueued
	}
	q.mu.Unlock()

	q.emit(n, action)
	return n
}

// Dismiss removes a notification by ID, visible or backlogged. It
// reports whether the ID was found. Freeing a visible slot promotes the
// oldest backlog entry.
func (q *Queue) Dismiss(id string) bool {
	q.mu.Lock()
	var dismissed *Notification
	var promoted []Notification

	for i, e := range q.visible {
		if e.n.ID != id {
			continue
		}
		if e.timer != nil {
			e.timer.Stop()
		}
		q.visible = append(q.visible[:i], q.visible[i+1:]...)
		n := e.n
		dismissed = &n
		promoted = q.promoteLocked()
		break
	}
	if dismissed == nil {
		for i, e := range q.backlog {
			if e.n.ID != id {
				continue
			}
			q.backlog = append(q.backlog[:i], q.backlog[i+1:]...)
			n := e.n
			dismissed = &n
			break
		}
	}
	q.mu.Unlock()

	if dismissed == nil {
		return false
	}
	q.emit(*dismissed, ActionDismissed)
	for _, n := range promoted {
		q.emit(n, ActionPromoted)
	}
	return true
}

// Visible returns the currently shown notifications in display order.
func (q *Queue) Visible() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Notification, len(q.visible))
	for i, e := range q.visible {
		out[i] = e.n
	}
	return out
}

// BacklogSize returns how many notifications are waiting for a slot.
func (q *Queue) BacklogSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog)
}

// Stop cancels all timers and drops pending notifications. Posts after
// Stop are ignored.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
	for _, e := range q.visible {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	q.visible = nil
	q.backlog = nil
}

// expire handles a visible notification's timer firing. The entry may
// already be gone if a dismissal raced the timer; that is fine.
func (q *Queue) expire(id string) {
	q.mu.Lock()
	var expired *Notification
	var promoted []Notification
	for i, e := range q.visible {
		if e.n.ID != id {
			continue
		}
		q.visible = append(q.visible[:i], q.visible[i+1:]...)
		n := e.n
		expired = &n
		promoted = q.promoteLocked()
		break
	}
	q.mu.Unlock()

	if expired == nil {
		return
	}
	q.emit(*expired, ActionExpired)
	for _, n := range promoted {
		q.emit(n, ActionPromoted)
	}
}

// showLocked makes an entry visible and starts its expiry timer.
func (q *Queue) showLocked(e *entry) {
	q.visible = append(q.visible, e)
	id := e.n.ID
	e.timer = q.clk.AfterFunc(e.n.Duration, func() {
		q.expire(id)
	})
}

// promoteLocked fills free visible slots from the backlog in arrival
// order and returns the promoted notifications for event emission
// outside the lock.
func (q *Queue) promoteLocked() []Notification {
	var promoted []Notification
	for len(q.visible) < q.max && len(q.backlog) > 0 {
		e := q.backlog[0]
		q.backlog = q.backlog[1:]
		q.showLocked(e)
		promoted = append(promoted, e.n)
	}
	return promoted
}

func (q *Queue) emit(n Notification, action Action) {
	if q.bus == nil {
		return
	}
	q.bus.Publish(newNotificationEvent(n, action))
}
