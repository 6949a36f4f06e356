// Package events is the in-process bus that connects the directory state,
// the connectivity monitor and the terminal UI. Publishing never blocks: a
// subscriber that falls behind loses events rather than stalling a fetch.
package events

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prowessninja/smsctl/internal/constants"
)

// EventType names a kind of event.
type EventType string

const (
	EventLog          EventType = "log"
	EventError        EventType = "error"
	EventConnectivity EventType = "connectivity"  // reachability of the school API changed
	EventSessionReady EventType = "session_ready" // profile, reference data and permissions loaded
)

// LogLevel is the severity carried by a LogEvent.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l LogLevel) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// Event is implemented by everything published on the bus.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent carries the fields every event shares. Embed it.
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

func newBase(t EventType) BaseEvent { return BaseEvent{EventType: t, Time: time.Now()} }

// LogEvent mirrors a warning or error log line into the UI.
type LogEvent struct {
	BaseEvent
	Level     LogLevel
	Message   string
	Component string
	Error     error
}

// ErrorEvent reports a failed operation. Retryable is set for transport
// failures that may succeed once the network is back.
type ErrorEvent struct {
	BaseEvent
	Component string
	Operation string
	Error     error
	Retryable bool
}

// ConnectivityEvent is published on every online/offline transition.
type ConnectivityEvent struct {
	BaseEvent
	Online bool
	Error  error // probe failure behind an offline transition
}

// SessionReadyEvent summarises a freshly loaded session.
type SessionReadyEvent struct {
	BaseEvent
	UserID        string
	Role          string
	Permissions   int
	AcademicYears int
	Branches      int
}

type subscriber struct {
	ch    chan Event
	types []EventType // empty means every type
}

func (s *subscriber) wants(t EventType) bool {
	return len(s.types) == 0 || slices.Contains(s.types, t)
}

// EventBus fans published events out to buffered subscriber channels.
type EventBus struct {
	mu         sync.RWMutex
	subs       []*subscriber
	bufferSize int
	closed     bool
	dropped    atomic.Int64
}

// NewEventBus creates a bus whose subscriber channels hold bufferSize
// events. Non-positive sizes use constants.EventBusDefaultBuffer and sizes
// are capped at constants.EventBusMaxBuffer.
func NewEventBus(bufferSize int) *EventBus {
	switch {
	case bufferSize <= 0:
		bufferSize = constants.EventBusDefaultBuffer
	case bufferSize > constants.EventBusMaxBuffer:
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{bufferSize: bufferSize}
}

// Subscribe returns a channel receiving events of the given types, or of
// every type when none are given. On a closed bus the channel is already
// closed.
func (eb *EventBus) Subscribe(types ...EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}
	s := &subscriber{ch: make(chan Event, eb.bufferSize), types: types}
	eb.subs = append(eb.subs, s)
	return s.ch
}

// SubscribeAll is Subscribe with no type filter.
func (eb *EventBus) SubscribeAll() <-chan Event {
	return eb.Subscribe()
}

// Unsubscribe stops delivery to ch and closes it.
func (eb *EventBus) Unsubscribe(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.subs = slices.DeleteFunc(eb.subs, func(s *subscriber) bool {
		if s.ch == ch {
			close(s.ch)
			return true
		}
		return false
	})
}

// Publish delivers event to every interested subscriber without blocking.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}
	for _, s := range eb.subs {
		if !s.wants(event.Type()) {
			continue
		}
		select {
		case s.ch <- event:
		default:
			eb.dropped.Add(1)
		}
	}
}

// Close closes every subscriber channel. Later publishes are ignored.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true
	for _, s := range eb.subs {
		close(s.ch)
	}
	eb.subs = nil
}

// Dropped returns how many deliveries were skipped because a subscriber's
// buffer was full.
func (eb *EventBus) Dropped() int64 {
	return eb.dropped.Load()
}

// PublishLog publishes a LogEvent.
func (eb *EventBus) PublishLog(level LogLevel, message, component string, err error) {
	eb.Publish(&LogEvent{
		BaseEvent: newBase(EventLog),
		Level:     level,
		Message:   message,
		Component: component,
		Error:     err,
	})
}

// PublishError publishes an ErrorEvent.
func (eb *EventBus) PublishError(component, operation string, err error, retryable bool) {
	eb.Publish(&ErrorEvent{
		BaseEvent: newBase(EventError),
		Component: component,
		Operation: operation,
		Error:     err,
		Retryable: retryable,
	})
}

// PublishConnectivity publishes a ConnectivityEvent.
func (eb *EventBus) PublishConnectivity(online bool, err error) {
	eb.Publish(&ConnectivityEvent{
		BaseEvent: newBase(EventConnectivity),
		Online:    online,
		Error:     err,
	})
}
