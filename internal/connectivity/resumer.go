// Package connectivity tracks reachability of the school API and replays
// one deferred action when it comes back.
package connectivity

import (
	"sync"

	"github.com/rs/zerolog/log"
)

type pendingAction struct {
	label  string
	action func()
}

// Resumer is a single-slot queue for the action to retry after reconnect.
// Deferring replaces whatever was parked; Resume takes the slot and runs
// the action exactly once.
type Resumer struct {
	mu      sync.Mutex
	pending *pendingAction
}

// NewResumer returns an empty Resumer.
func NewResumer() *Resumer {
	return &Resumer{}
}

// Defer parks action, replacing any action already parked.
func (r *Resumer) Defer(label string, action func()) {
	if action == nil {
		return
	}
	r.mu.Lock()
	replaced := r.pending
	r.pending = &pendingAction{label: label, action: action}
	r.mu.Unlock()

	if replaced != nil {
		log.Debug().Str("dropped", replaced.label).Str("deferred", label).Msg("Replacing deferred action")
	} else {
		log.Debug().Str("deferred", label).Msg("Deferred action until reconnect")
	}
}

// Resume clears the slot and runs the parked action, if any. The slot is
// emptied before the action runs, so concurrent calls never run it twice
// and the action may defer itself again.
func (r *Resumer) Resume() bool {
	r.mu.Lock()
	p := r.pending
	r.pending = nil
	r.mu.Unlock()

	if p == nil {
		return false
	}
	log.Info().Str("action", p.label).Msg("Resuming deferred action")
	p.action()
	return true
}

// Pending returns the label of the parked action.
func (r *Resumer) Pending() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		return "", false
	}
	return r.pending.label, true
}

// Clear drops the parked action without running it.
func (r *Resumer) Clear() {
	r.mu.Lock()
	r.pending = nil
	r.mu.Unlock()
}
