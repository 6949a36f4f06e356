package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/prowessninja/smsctl/internal/constants"
	"github.com/prowessninja/smsctl/internal/models"
)

// Messages shown instead of the grid.
const (
	LoadingMessage = "Loading users..."
	EmptyMessage   = "No users found"
)

// Styles for the user grid.
type Styles struct {
	Card     lipgloss.Style
	Selected lipgloss.Style
	Name     lipgloss.Style
	Muted    lipgloss.Style
	Active   lipgloss.Style
	Inactive lipgloss.Style
	Notice   lipgloss.Style
	Banner   lipgloss.Style
	Footer   lipgloss.Style
}

// DefaultStyles returns the styles used by the terminal browser.
func DefaultStyles() Styles {
	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	return Styles{
		Card:     card,
		Selected: card.BorderForeground(lipgloss.Color("39")),
		Name:     lipgloss.NewStyle().Bold(true),
		Muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Active:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Inactive: lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		Notice:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true).Padding(1, 2),
		Banner: lipgloss.NewStyle().
			Background(lipgloss.Color("203")).
			Foreground(lipgloss.Color("#ffffff")).
			Bold(true).
			Padding(0, 2),
		Footer: lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(0, 1),
	}
}

// GridWindow selects which rows of the grid are drawn.
type GridWindow struct {
	Width    int // total width; 0 means 80 columns
	Selected int // index into users, -1 for none
	FirstRow int
	MaxRows  int // 0 draws every row
}

// RenderGrid draws users as a two-column grid of cards. An empty list shows
// the loading indicator while loading and the empty-state message otherwise.
func RenderGrid(users []models.User, loading bool, width int) string {
	return DefaultStyles().RenderGridWindow(users, loading, GridWindow{Width: width, Selected: -1})
}

// RenderGridWindow draws the rows of the grid selected by win.
func (s Styles) RenderGridWindow(users []models.User, loading bool, win GridWindow) string {
	if len(users) == 0 {
		if loading {
			return s.Notice.Render(LoadingMessage)
		}
		return s.Notice.Render(EmptyMessage)
	}

	width := win.Width
	if width <= 0 {
		width = 80
	}
	cardWidth := width/constants.GridColumns - s.Card.GetHorizontalFrameSize()
	if cardWidth < 12 {
		cardWidth = 12
	}

	rows := GridRows(len(users))
	first := win.FirstRow
	if first < 0 {
		first = 0
	}
	last := rows
	if win.MaxRows > 0 && first+win.MaxRows < rows {
		last = first + win.MaxRows
	}

	var out []string
	for row := first; row < last; row++ {
		var cards []string
		for col := 0; col < constants.GridColumns; col++ {
			i := row*constants.GridColumns + col
			if i >= len(users) {
				break
			}
			style := s.Card
			if i == win.Selected {
				style = s.Selected
			}
			cards = append(cards, style.Width(cardWidth).Render(s.cardBody(users[i], cardWidth)))
		}
		out = append(out, lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	}
	if loading {
		out = append(out, s.Footer.Render(LoadingMessage))
	}
	return lipgloss.JoinVertical(lipgloss.Left, out...)
}

func (s Styles) cardBody(u models.User, width int) string {
	lines := []string{s.Name.Render(truncate(u.DisplayName(), width))}

	var meta []string
	if u.Group != "" {
		meta = append(meta, u.Group)
	}
	if u.Status != "" {
		status := s.Active
		if !strings.EqualFold(u.Status, "active") {
			status = s.Inactive
		}
		meta = append(meta, status.Render(u.Status))
	}
	lines = append(lines, strings.Join(meta, " · "))
	lines = append(lines, s.Muted.Render(truncate(u.Contact(), width)))
	return strings.Join(lines, "\n")
}

// GridRows returns the number of grid rows needed for n users.
func GridRows(n int) int {
	return (n + constants.GridColumns - 1) / constants.GridColumns
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 1 || len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

// EndReachedDetector decides when a scrolling view should ask for the next
// page. It fires once per approach to the bottom rather than on every
// frame spent near it.
type EndReachedDetector struct {
	Threshold int // rows from the end that count as "near"
	armed     bool
	lastTotal int
}

// NewEndReachedDetector returns an armed detector.
func NewEndReachedDetector(threshold int) *EndReachedDetector {
	if threshold < 0 {
		threshold = 0
	}
	return &EndReachedDetector{Threshold: threshold, armed: true}
}

// Observe reports a scroll position: offset is the first visible row,
// visible the number of rows on screen and total the rows available. It
// returns true when the view has just crossed into the near-bottom zone.
// The detector re-arms when the view leaves the zone or the list grows.
func (d *EndReachedDetector) Observe(offset, visible, total int) bool {
	if total != d.lastTotal {
		if total > d.lastTotal {
			d.armed = true
		}
		d.lastTotal = total
	}
	if total == 0 {
		return false
	}

	near := offset+visible >= total-d.Threshold
	if !near {
		d.armed = true
		return false
	}
	if d.armed {
		d.armed = false
		return true
	}
	return false
}

// Reset re-arms the detector for a new list.
func (d *EndReachedDetector) Reset() {
	d.armed = true
	d.lastTotal = 0
}
