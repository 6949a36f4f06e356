// Package state provides observable state containers for smsctl.
// These containers emit events when state changes, allowing any frontend
// (the CLI or the terminal browser) to subscribe and update accordingly.
package state

import (
	"time"

	"github.com/prowessninja/smsctl/internal/events"
	"github.com/prowessninja/smsctl/internal/models"
)

// State event types
const (
	// Directory events
	EventDirectoryChanged   events.EventType = "directory_changed"
	EventDirectoryLoading   events.EventType = "directory_loading"
	EventDirectoryError     events.EventType = "directory_error"
	EventDirectoryExhausted events.EventType = "directory_exhausted"
)

// DirectoryChangedEvent is published when the accumulated list changes.
type DirectoryChangedEvent struct {
	events.BaseEvent
	Users   []models.User
	Filters models.FilterSet // Page is the last page merged
	HasMore bool
	Count   *int // server-side total when reported
}

// DirectoryLoadingEvent is published when a page fetch starts or ends.
type DirectoryLoadingEvent struct {
	events.BaseEvent
	Filters models.FilterSet // Page is the page being fetched
	Loading bool
}

// DirectoryErrorEvent is published when a page fetch fails.
type DirectoryErrorEvent struct {
	events.BaseEvent
	Filters models.FilterSet
	Error   error
}

// DirectoryExhaustedEvent is published when the last page has been merged.
type DirectoryExhaustedEvent struct {
	events.BaseEvent
	Filters models.FilterSet
	Total   int
}

// NewDirectoryChangedEvent creates a new DirectoryChangedEvent.
func NewDirectoryChangedEvent(filters models.FilterSet, users []models.User, hasMore bool, count *int) *DirectoryChangedEvent {
	return &DirectoryChangedEvent{
		BaseEvent: events.BaseEvent{
			EventType: EventDirectoryChanged,
			Time:      time.Now(),
		},
		Users:   users,
		Filters: filters,
		HasMore: hasMore,
		Count:   count,
	}
}

// NewDirectoryLoadingEvent creates a new DirectoryLoadingEvent.
func NewDirectoryLoadingEvent(filters models.FilterSet, loading bool) *DirectoryLoadingEvent {
	return &DirectoryLoadingEvent{
		BaseEvent: events.BaseEvent{
			EventType: EventDirectoryLoading,
			Time:      time.Now(),
		},
		Filters: filters,
		Loading: loading,
	}
}

// NewDirectoryErrorEvent creates a new DirectoryErrorEvent.
func NewDirectoryErrorEvent(filters models.FilterSet, err error) *DirectoryErrorEvent {
	return &DirectoryErrorEvent{
		BaseEvent: events.BaseEvent{
			EventType: EventDirectoryError,
			Time:      time.Now(),
		},
		Filters: filters,
		Error:   err,
	}
}

// NewDirectoryExhaustedEvent creates a new DirectoryExhaustedEvent.
func NewDirectoryExhaustedEvent(filters models.FilterSet, total int) *DirectoryExhaustedEvent {
	return &DirectoryExhaustedEvent{
		BaseEvent: events.BaseEvent{
			EventType: EventDirectoryExhausted,
			Time:      time.Now(),
		},
		Filters: filters,
		Total:   total,
	}
}
