package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/prowessninja/smsctl/internal/events"
	"github.com/prowessninja/smsctl/internal/models"
)

type fakeClient struct {
	years, branches int32 // call counters
	permErr         error
	permissions     string
}

func (f *fakeClient) GetCurrentUser(context.Context) (*models.Profile, error) {
	return &models.Profile{ID: "42", Username: "priya", Role: "teacher", Branch: &models.Branch{ID: "3", Name: "East"}}, nil
}

func (f *fakeClient) GetPermissions(ctx context.Context) (json.RawMessage, error) {
	if f.permErr != nil {
		return nil, f.permErr
	}
	return json.RawMessage(f.permissions), nil
}

func (f *fakeClient) ListAcademicYears(context.Context) ([]models.AcademicYear, error) {
	atomic.AddInt32(&f.years, 1)
	return []models.AcademicYear{{ID: "4", Name: "2024-25"}, {ID: "5", Name: "2025-26", IsCurrent: true}}, nil
}

func (f *fakeClient) ListBranches(context.Context) ([]models.Branch, error) {
	atomic.AddInt32(&f.branches, 1)
	return []models.Branch{{ID: "2", Name: "North"}, {ID: "3", Name: "East"}}, nil
}

func TestLoadSession(t *testing.T) {
	client := &fakeClient{permissions: `[{"codename":"view_user"}]`}
	bus := events.NewEventBus(10)
	ready := bus.Subscribe(events.EventSessionReady)

	s, err := Load(context.Background(), client, nil, "tok", bus)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.User.Username != "priya" || s.Token != "tok" {
		t.Errorf("session = %+v", s)
	}
	if !s.Gate.HasPermission("view_user") {
		t.Error("gate missing view_user")
	}
	if len(s.AcademicYears) != 2 || len(s.Branches) != 2 {
		t.Errorf("reference data = %d years, %d branches", len(s.AcademicYears), len(s.Branches))
	}

	select {
	case ev := <-ready:
		e := ev.(*events.SessionReadyEvent)
		if e.UserID != "42" || e.Role != "teacher" || e.Permissions != 1 {
			t.Errorf("session ready event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Error("no session_ready event")
	}
}

func TestLoadSessionFailsOnPermissionError(t *testing.T) {
	client := &fakeClient{permErr: errors.New("HTTP 500")}

	if _, err := Load(context.Background(), client, nil, "tok", nil); err == nil {
		t.Fatal("Load() error = nil, want permission failure")
	}
}

func TestReferenceCacheReusesFreshData(t *testing.T) {
	client := &fakeClient{}
	cache := NewReferenceCache(time.Minute)

	for i := 0; i < 3; i++ {
		if err := cache.Fetch(context.Background(), client); err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
	}
	if client.years != 1 || client.branches != 1 {
		t.Errorf("API calls = %d years, %d branches, want 1 each", client.years, client.branches)
	}
	if cache.GetLastFetched().IsZero() {
		t.Error("GetLastFetched() is zero after a fetch")
	}

	cache.Invalidate()
	if err := cache.Fetch(context.Background(), client); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if client.years != 2 {
		t.Errorf("Invalidate did not force a refetch (calls = %d)", client.years)
	}
}

func TestResolveScope(t *testing.T) {
	s := &Session{
		User:          &models.Profile{Branch: &models.Branch{ID: "3"}},
		AcademicYears: []models.AcademicYear{{ID: "4"}, {ID: "5", IsCurrent: true}},
		Branches:      []models.Branch{{ID: "2"}, {ID: "3"}},
	}

	tests := []struct {
		name       string
		candidates []Scope
		want       Scope
	}{
		{"defaults to current year and own branch", nil, Scope{"5", "3"}},
		{"flag wins", []Scope{{"4", "2"}, {"5", "3"}}, Scope{"4", "2"}},
		{"unknown values fall through", []Scope{{"99", "98"}, {"4", ""}}, Scope{"4", "3"}},
		{"partial candidates combine", []Scope{{"", "2"}, {"4", "3"}}, Scope{"4", "2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, s.ResolveScope(tt.candidates...)); diff != "" {
				t.Errorf("ResolveScope() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolveScopeWithoutReferenceData(t *testing.T) {
	s := &Session{}
	got := s.ResolveScope(Scope{AcademicYear: "7", Branch: "1"})
	if got != (Scope{AcademicYear: "7", Branch: "1"}) {
		t.Errorf("ResolveScope() = %+v, want explicit values kept", got)
	}
	if s.YearName("7") != "7" || s.BranchName("1") != "1" {
		t.Error("names should fall back to ids")
	}
}
