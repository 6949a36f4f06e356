// Package ui holds the directory presentation: the search debouncer, the
// two-column user grid and the terminal browser.
package ui

import (
	"sync"
	"time"
)

// SearchDebouncer turns keystrokes into settled search commits. Each OnText
// restarts the quiescence window; when the window elapses with no further
// input, commit runs once with the final text (trailing edge).
type SearchDebouncer struct {
	mu         sync.Mutex
	timer      *time.Timer
	window     time.Duration
	generation uint64 // bumped on every keystroke, Cancel and Close
	closed     bool
	pending    string

	deliver sync.Mutex // serialises commit callbacks
	commit  func(text string)
}

// NewSearchDebouncer creates a debouncer that calls commit after window of
// silence. commit must not call back into the debouncer.
func NewSearchDebouncer(window time.Duration, commit func(text string)) *SearchDebouncer {
	return &SearchDebouncer{
		window: window,
		commit: commit,
	}
}

// OnText records a keystroke and restarts the window.
func (d *SearchDebouncer) OnText(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}

	d.generation++
	gen := d.generation
	d.pending = text
	d.timer = time.AfterFunc(d.window, func() {
		d.fire(gen, text)
	})
}

// fire delivers text unless a later keystroke, Cancel or Close superseded it.
func (d *SearchDebouncer) fire(gen uint64, text string) {
	d.deliver.Lock()
	defer d.deliver.Unlock()

	d.mu.Lock()
	current := !d.closed && gen == d.generation
	if current {
		d.timer = nil
	}
	d.mu.Unlock()

	if current {
		d.commit(text)
	}
}

// Flush commits the pending text immediately, as when the user presses
// enter. It reports whether anything was pending.
func (d *SearchDebouncer) Flush() bool {
	d.mu.Lock()
	if d.closed || d.timer == nil {
		d.mu.Unlock()
		return false
	}
	d.timer.Stop()
	d.timer = nil
	d.generation++
	gen := d.generation
	text := d.pending
	d.mu.Unlock()

	d.fire(gen, text)
	return true
}

// Pending reports whether a commit is scheduled.
func (d *SearchDebouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Cancel drops any pending commit. Later keystrokes schedule new ones.
func (d *SearchDebouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.generation++
}

// Close cancels any pending commit and ignores all later input. When Close
// returns no commit is running and none will run.
func (d *SearchDebouncer) Close() {
	d.mu.Lock()
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.generation++
	d.mu.Unlock()

	// Wait out a commit that was already being delivered.
	d.deliver.Lock()
	d.deliver.Unlock()
}
