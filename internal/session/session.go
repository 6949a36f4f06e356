// Package session bootstraps what the directory needs before its first
// fetch: the signed-in user, reference data, permissions and the scope.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/prowessninja/smsctl/internal/events"
	"github.com/prowessninja/smsctl/internal/models"
	"github.com/prowessninja/smsctl/internal/permissions"
)

// Client is the subset of the API client a session needs.
type Client interface {
	ReferenceFetcher
	GetCurrentUser(ctx context.Context) (*models.Profile, error)
	GetPermissions(ctx context.Context) (json.RawMessage, error)
}

// Session is the loaded auth context.
type Session struct {
	Token         string
	User          *models.Profile
	AcademicYears []models.AcademicYear
	Branches      []models.Branch
	Gate          *permissions.Gate
	LoadedAt      time.Time
}

// Load fetches the current user, permissions and reference data
// concurrently. The first failure cancels the remaining requests.
func Load(ctx context.Context, client Client, cache *ReferenceCache, token string, bus *events.EventBus) (*Session, error) {
	if cache == nil {
		cache = NewReferenceCache(0)
	}

	var (
		user   *models.Profile
		source *permissions.Source
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := client.GetCurrentUser(gctx)
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	g.Go(func() error {
		raw, err := client.GetPermissions(gctx)
		if err != nil {
			return err
		}
		src, err := permissions.ParseSource(raw)
		if err != nil {
			return fmt.Errorf("failed to parse permissions: %w", err)
		}
		source = src
		return nil
	})
	g.Go(func() error {
		return cache.Fetch(gctx, client)
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	gate := permissions.NewGate()
	gate.Update(source)

	s := &Session{
		Token:         token,
		User:          user,
		AcademicYears: cache.AcademicYears(),
		Branches:      cache.Branches(),
		Gate:          gate,
		LoadedAt:      time.Now(),
	}

	log.Debug().
		Str("user", user.ID.String()).
		Str("role", user.Role).
		Int("permissions", len(gate.Set())).
		Int("academic_years", len(s.AcademicYears)).
		Int("branches", len(s.Branches)).
		Msg("Session loaded")

	if bus != nil {
		bus.Publish(&events.SessionReadyEvent{
			BaseEvent: events.BaseEvent{
				EventType: events.EventSessionReady,
				Time:      s.LoadedAt,
			},
			UserID:        user.ID.String(),
			Role:          user.Role,
			Permissions:   len(gate.Set()),
			AcademicYears: len(s.AcademicYears),
			Branches:      len(s.Branches),
		})
	}
	return s, nil
}

// Scope is a directory scope candidate.
type Scope struct {
	AcademicYear string
	Branch       string
}

// ResolveScope picks the academic year and branch for the directory.
// Candidates are tried in order (flags, saved profile, config defaults);
// the first value that names a known entry wins for each field. Without a
// usable candidate the current academic year and the user's own branch are
// used, then the first entry of each list.
func (s *Session) ResolveScope(candidates ...Scope) Scope {
	var out Scope

	for _, c := range candidates {
		if out.AcademicYear == "" && c.AcademicYear != "" && s.hasYear(c.AcademicYear) {
			out.AcademicYear = c.AcademicYear
		}
		if out.Branch == "" && c.Branch != "" && s.hasBranch(c.Branch) {
			out.Branch = c.Branch
		}
	}

	if out.AcademicYear == "" {
		for _, y := range s.AcademicYears {
			if y.IsCurrent {
				out.AcademicYear = y.ID.String()
				break
			}
		}
	}
	if out.AcademicYear == "" && len(s.AcademicYears) > 0 {
		out.AcademicYear = s.AcademicYears[0].ID.String()
	}

	if out.Branch == "" && s.User != nil && s.User.Branch != nil && s.hasBranch(s.User.Branch.ID.String()) {
		out.Branch = s.User.Branch.ID.String()
	}
	if out.Branch == "" && len(s.Branches) > 0 {
		out.Branch = s.Branches[0].ID.String()
	}
	return out
}

// hasYear accepts any value when the server listed no years, so an
// explicit selection still works against sparse deployments.
func (s *Session) hasYear(id string) bool {
	if len(s.AcademicYears) == 0 {
		return true
	}
	for _, y := range s.AcademicYears {
		if y.ID.String() == id {
			return true
		}
	}
	log.Warn().Str("academic_year", id).Msg("Ignoring unknown academic year")
	return false
}

func (s *Session) hasBranch(id string) bool {
	if len(s.Branches) == 0 {
		return true
	}
	for _, b := range s.Branches {
		if b.ID.String() == id {
			return true
		}
	}
	log.Warn().Str("branch", id).Msg("Ignoring unknown branch")
	return false
}

// YearName returns the display name for an academic year id.
func (s *Session) YearName(id string) string {
	for _, y := range s.AcademicYears {
		if y.ID.String() == id {
			return y.Name
		}
	}
	return id
}

// BranchName returns the display name for a branch id.
func (s *Session) BranchName(id string) string {
	for _, b := range s.Branches {
		if b.ID.String() == id {
			return b.Name
		}
	}
	return id
}
