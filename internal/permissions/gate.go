package permissions

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrNotResolved is returned by guarded commands while no permission source
// has been loaded.
var ErrNotResolved = errors.New("permissions not loaded yet")

// BlockedError lists the codenames a guarded action lacked.
type BlockedError struct {
	Missing []string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("access denied: missing permission %s", strings.Join(e.Missing, ", "))
}

// Gate holds the current permission source and the set derived from it.
// The set is re-derived only when a different source is installed. Safe for
// concurrent use.
type Gate struct {
	mu     sync.RWMutex
	source *Source
	set    Set
}

// NewGate returns an unresolved gate.
func NewGate() *Gate {
	return &Gate{}
}

// Update installs src. It reports whether the set was re-derived, which
// happens only when src is not the source already installed. A nil src
// returns the gate to the unresolved state.
func (g *Gate) Update(src *Source) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if src == g.source {
		return false
	}
	g.source = src
	if src == nil {
		g.set = nil
		return true
	}
	g.set = src.Resolve()
	return true
}

// Resolved reports whether a source has been installed.
func (g *Gate) Resolved() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.source != nil
}

// Set returns the derived codename set, or nil while unresolved. Callers
// must not modify it.
func (g *Gate) Set() Set {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.set
}

// HasPermission reports whether codename is granted. Always false while
// unresolved.
func (g *Gate) HasPermission(codename string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.set.Has(codename)
}

// Checker answers permission queries for an allowed view.
type Checker func(codename string) bool

// Views are the three outcomes of Guard.
type Views[T any] struct {
	Loading func() T
	Blocked func(missing []string) T
	Allowed func(has Checker) T
}

// Guard renders the loading view while g is unresolved, the blocked view if
// any required codename is missing, and the allowed view otherwise.
//
// Usage:
//
//	err := permissions.Guard(gate, []string{"view_user"}, permissions.Views[error]{
//	    Loading: func() error { return permissions.ErrNotResolved },
//	    Blocked: func(missing []string) error { return &permissions.BlockedError{Missing: missing} },
//	    Allowed: func(has permissions.Checker) error { return run(has) },
//	})
func Guard[T any](g *Gate, required []string, views Views[T]) T {
	g.mu.RLock()
	resolved := g.source != nil
	set := g.set
	g.mu.RUnlock()

	if !resolved {
		return views.Loading()
	}
	if missing := set.Missing(required); len(missing) > 0 {
		return views.Blocked(missing)
	}
	return views.Allowed(set.Has)
}

// Require is Guard for commands: it runs action when every required
// codename is granted and returns ErrNotResolved or a *BlockedError
// otherwise.
func Require(g *Gate, required []string, action func(has Checker) error) error {
	return Guard(g, required, Views[error]{
		Loading: func() error { return ErrNotResolved },
		Blocked: func(missing []string) error { return &BlockedError{Missing: missing} },
		Allowed: action,
	})
}
