package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/prowessninja/smsctl/internal/models"
)

func sampleUsers(n int) []models.User {
	names := []string{"Asha Rao", "Ben Ade", "Chen Li", "Dana Cruz", "Eli Noor"}
	users := make([]models.User, n)
	for i := range users {
		parts := strings.SplitN(names[i%len(names)], " ", 2)
		users[i] = models.User{
			ID:        models.ID(string(rune('a' + i))),
			FirstName: parts[0],
			LastName:  parts[1],
			Email:     strings.ToLower(parts[0]) + "@school.test",
			Group:     "Teachers",
			Status:    "Active",
		}
	}
	return users
}

func TestRenderGridStates(t *testing.T) {
	if got := RenderGrid(nil, true, 80); !strings.Contains(got, LoadingMessage) {
		t.Errorf("empty+loading = %q, want loading indicator", got)
	}
	if got := RenderGrid(nil, false, 80); !strings.Contains(got, EmptyMessage) {
		t.Errorf("empty+idle = %q, want empty-state message", got)
	}

	got := RenderGrid(sampleUsers(3), false, 80)
	for _, name := range []string{"Asha Rao", "Ben Ade", "Chen Li"} {
		if !strings.Contains(got, name) {
			t.Errorf("grid missing %q:\n%s", name, got)
		}
	}
	if strings.Contains(got, EmptyMessage) || strings.Contains(got, LoadingMessage) {
		t.Errorf("grid with users shows a placeholder:\n%s", got)
	}

	// Two cards share the first row.
	first := strings.Split(got, "\n")[1]
	if !strings.Contains(first, "Asha Rao") || !strings.Contains(first, "Ben Ade") {
		t.Errorf("first grid row = %q, want two cards side by side", first)
	}
}

func TestRenderGridWindowLimitsRows(t *testing.T) {
	s := DefaultStyles()
	got := s.RenderGridWindow(sampleUsers(5), false, GridWindow{Width: 80, Selected: -1, FirstRow: 1, MaxRows: 1})

	if strings.Contains(got, "Asha Rao") {
		t.Error("row 0 rendered although FirstRow = 1")
	}
	if !strings.Contains(got, "Chen Li") || !strings.Contains(got, "Dana Cruz") {
		t.Errorf("row 1 missing:\n%s", got)
	}
	if strings.Contains(got, "Eli Noor") {
		t.Error("row 2 rendered although MaxRows = 1")
	}
}

func TestGridRows(t *testing.T) {
	for n, want := range map[int]int{0: 0, 1: 1, 2: 1, 3: 2, 10: 5} {
		if got := GridRows(n); got != want {
			t.Errorf("GridRows(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestEndReachedFiresOncePerCrossing(t *testing.T) {
	d := NewEndReachedDetector(2)

	if d.Observe(0, 3, 10) {
		t.Error("fired far from the end")
	}
	if !d.Observe(5, 3, 10) {
		t.Error("did not fire when crossing into the near-bottom zone")
	}
	for i := 0; i < 3; i++ {
		if d.Observe(6, 3, 10) {
			t.Error("fired again while staying near the bottom")
		}
	}

	// Leaving the zone re-arms.
	d.Observe(0, 3, 10)
	if !d.Observe(7, 3, 10) {
		t.Error("did not fire after leaving and re-entering the zone")
	}

	// Growth of the list re-arms even without leaving.
	if !d.Observe(7, 3, 11) {
		t.Error("did not fire after the list grew while near the bottom")
	}
	if d.Observe(7, 3, 11) {
		t.Error("fired twice for the same list length")
	}
}

func TestEndReachedShortList(t *testing.T) {
	d := NewEndReachedDetector(2)
	if d.Observe(0, 5, 0) {
		t.Error("fired on an empty list")
	}
	if !d.Observe(0, 5, 1) {
		t.Error("list shorter than the viewport should ask for more once")
	}
	d.Reset()
	if !d.Observe(0, 5, 1) {
		t.Error("Reset did not re-arm the detector")
	}
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	RenderTable(&buf, sampleUsers(3), false)
	out := buf.String()

	for _, want := range []string{"Asha Rao", "Ben Ade", "Chen Li", "asha@school.test", "Teachers / Active"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	RenderTable(&buf, nil, false)
	if strings.TrimSpace(buf.String()) != EmptyMessage {
		t.Errorf("empty table = %q", buf.String())
	}
}
