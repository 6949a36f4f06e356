package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/prowessninja/smsctl/internal/constants"
	"github.com/prowessninja/smsctl/internal/events"
	"github.com/prowessninja/smsctl/internal/models"
	"github.com/prowessninja/smsctl/internal/state"
	"github.com/prowessninja/smsctl/internal/util/sanitize"
)

// cardHeight is the rendered height of one grid row: three lines of text
// plus the top and bottom border.
const cardHeight = 5

// busMsg carries an event from the bus into the bubbletea loop.
type busMsg struct{ event events.Event }

// busClosedMsg is sent once the subscription channel is closed.
type busClosedMsg struct{}

// BrowseModel is the interactive directory: a search box wired to the
// debouncer, the two-column grid, and scroll-driven paging.
type BrowseModel struct {
	dir       *state.DirectoryState
	debouncer *SearchDebouncer
	detector  *EndReachedDetector
	bus       *events.EventBus
	sub       <-chan events.Event

	input   textinput.Model
	spinner spinner.Model
	styles  Styles

	users     []models.User
	loading   bool
	hasMore   bool
	offline   bool
	lastError string
	title     string

	selected int
	firstRow int
	width    int
	height   int
	detail   *models.User

	// OnSelect is called with the chosen record when the user presses enter.
	OnSelect func(models.User)
}

// NewBrowseModel creates the browser. It subscribes to bus immediately, so
// create it before mounting dir to see the first page arrive.
func NewBrowseModel(dir *state.DirectoryState, bus *events.EventBus, debounce time.Duration, title string) *BrowseModel {
	ti := textinput.New()
	ti.Placeholder = "Search by name, email or phone (/ to focus)"
	ti.Prompt = "Search: "
	ti.CharLimit = constants.MaxSearchLength
	ti.Width = 50

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := &BrowseModel{
		dir:      dir,
		detector: NewEndReachedDetector(constants.EndReachedThreshold),
		bus:      bus,
		input:    ti,
		spinner:  sp,
		styles:   DefaultStyles(),
		hasMore:  true,
		title:    title,
		width:    80,
		height:   24,
	}
	m.debouncer = NewSearchDebouncer(debounce, dir.CommitSearch)
	if bus != nil {
		m.sub = bus.SubscribeAll()
	}
	return m
}

// Init starts the spinner and the event pump.
func (m *BrowseModel) Init() tea.Cmd {
	m.sync()
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.waitForEvent())
}

func (m *BrowseModel) waitForEvent() tea.Cmd {
	if m.sub == nil {
		return nil
	}
	sub := m.sub
	return func() tea.Msg {
		ev, ok := <-sub
		if !ok {
			return busClosedMsg{}
		}
		return busMsg{event: ev}
	}
}

// Update handles key presses, window resizes and bus events.
func (m *BrowseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = msg.Width - len(m.input.Prompt) - 2
		m.ensureVisible()
		m.checkEndReached()
		return m, nil

	case busMsg:
		m.handleEvent(msg.event)
		return m, m.waitForEvent()

	case busClosedMsg:
		m.sub = nil
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.detail != nil {
			switch msg.String() {
			case "ctrl+c", "q":
				return m, m.quit()
			case "esc", "enter", "backspace":
				m.detail = nil
				m.refocus()
			}
			return m, nil
		}

		if m.input.Focused() {
			switch msg.String() {
			case "ctrl+c":
				return m, m.quit()
			case "enter":
				m.input.Blur()
				m.debouncer.Flush()
				return m, nil
			case "esc":
				m.input.Blur()
				return m, nil
			}
			before := m.input.Value()
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			if m.input.Value() != before {
				m.debouncer.OnText(sanitize.Query(m.input.Value(), m.input.CharLimit))
			}
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, m.quit()
		case "/":
			m.input.Focus()
			return m, textinput.Blink
		case "esc":
			if m.input.Value() != "" {
				m.input.SetValue("")
				m.debouncer.Cancel()
				m.dir.CommitSearch("")
			}
		case "right", "l":
			m.move(1)
		case "left", "h":
			m.move(-1)
		case "down", "j":
			m.move(constants.GridColumns)
		case "up", "k":
			m.move(-constants.GridColumns)
		case "pgdown", " ":
			m.move(constants.GridColumns * m.visibleRows())
		case "pgup":
			m.move(-constants.GridColumns * m.visibleRows())
		case "end", "G":
			m.move(len(m.users))
		case "home", "g":
			m.move(-len(m.users))
		case "r":
			m.detector.Reset()
			m.dir.Refresh()
		case "enter":
			if m.selected >= 0 && m.selected < len(m.users) {
				u := m.users[m.selected]
				m.detail = &u
				if m.OnSelect != nil {
					m.OnSelect(u)
				}
			}
		}
	}

	return m, nil
}

// refocus runs when the list screen comes back from the detail view.
// Search and group are dropped and the list restarts at page 1.
func (m *BrowseModel) refocus() {
	m.input.SetValue("")
	m.input.Blur()
	m.debouncer.Cancel()
	m.detector.Reset()
	m.dir.Focus()
}

func (m *BrowseModel) quit() tea.Cmd {
	m.debouncer.Close()
	if m.bus != nil && m.sub != nil {
		m.bus.Unsubscribe(m.sub)
		m.sub = nil
	}
	return tea.Quit
}

func (m *BrowseModel) handleEvent(ev events.Event) {
	switch e := ev.(type) {
	case *state.DirectoryChangedEvent:
		if e.Filters.Page == 1 {
			m.selected = 0
			m.firstRow = 0
			m.detector.Reset()
		}
		m.lastError = ""
	case *state.DirectoryErrorEvent:
		m.lastError = e.Error.Error()
	case *events.ConnectivityEvent:
		m.offline = !e.Online
	case *state.DirectoryLoadingEvent, *state.DirectoryExhaustedEvent:
	default:
		return
	}
	m.sync()
	m.checkEndReached()
}

// sync copies the controller's view of the list into the model.
func (m *BrowseModel) sync() {
	m.users = m.dir.Users()
	m.loading = m.dir.IsLoading()
	m.hasMore = m.dir.HasMore()
	if m.selected >= len(m.users) {
		m.selected = len(m.users) - 1
	}
	if m.selected < 0 && len(m.users) > 0 {
		m.selected = 0
	}
}

func (m *BrowseModel) move(delta int) {
	if len(m.users) == 0 {
		return
	}
	m.selected += delta
	if m.selected < 0 {
		m.selected = 0
	}
	if m.selected >= len(m.users) {
		m.selected = len(m.users) - 1
	}
	m.ensureVisible()
	m.checkEndReached()
}

func (m *BrowseModel) ensureVisible() {
	row := m.selected / constants.GridColumns
	visible := m.visibleRows()
	if row < m.firstRow {
		m.firstRow = row
	}
	if row >= m.firstRow+visible {
		m.firstRow = row - visible + 1
	}
	if m.firstRow < 0 {
		m.firstRow = 0
	}
}

// checkEndReached asks for the next page when the view nears the bottom.
func (m *BrowseModel) checkEndReached() {
	if len(m.users) == 0 {
		return
	}
	if m.detector.Observe(m.firstRow, m.visibleRows(), GridRows(len(m.users))) {
		m.dir.LoadMore()
	}
}

// visibleRows is the number of grid rows that fit between header and footer.
func (m *BrowseModel) visibleRows() int {
	chrome := 4 // title, search box, blank line, footer
	if m.offline {
		chrome++
	}
	rows := (m.height - chrome) / cardHeight
	if rows < 1 {
		rows = 1
	}
	return rows
}

// View renders the browser.
func (m *BrowseModel) View() string {
	var b strings.Builder

	if m.offline {
		b.WriteString(m.styles.Banner.Width(m.width).Render("No connection. Changes will load when the network is back."))
		b.WriteString("\n")
	}
	b.WriteString(m.styles.Name.Render(m.title))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	if m.detail != nil {
		b.WriteString(m.renderDetail(*m.detail))
		b.WriteString("\n")
		b.WriteString(m.styles.Footer.Render("esc back · q quit"))
		return b.String()
	}

	b.WriteString(m.styles.RenderGridWindow(m.users, m.loading, GridWindow{
		Width:    m.width,
		Selected: m.selected,
		FirstRow: m.firstRow,
		MaxRows:  m.visibleRows(),
	}))
	b.WriteString("\n")
	b.WriteString(m.footer())
	return b.String()
}

func (m *BrowseModel) footer() string {
	var parts []string
	if m.loading {
		parts = append(parts, m.spinner.View()+" loading")
	}
	count := fmt.Sprintf("%d loaded", len(m.users))
	if total := m.dir.Count(); total != nil {
		count = fmt.Sprintf("%d of %d", len(m.users), *total)
	}
	if !m.hasMore && len(m.users) > 0 {
		count += " (end)"
	}
	parts = append(parts, count)
	if m.lastError != "" {
		parts = append(parts, m.styles.Inactive.Render(m.lastError))
	}
	parts = append(parts, "/ search · arrows move · enter details · r refresh · q quit")
	return m.styles.Footer.Render(strings.Join(parts, " · "))
}

func (m *BrowseModel) renderDetail(u models.User) string {
	rows := [][2]string{
		{"ID", u.ID.String()},
		{"Name", u.DisplayName()},
		{"Email", u.Email},
		{"Phone", u.Phone},
		{"Group", u.Group},
		{"Status", u.Status},
	}
	var lines []string
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		lines = append(lines, m.styles.Muted.Render(fmt.Sprintf("%-7s", r[0]))+" "+r[1])
	}
	return m.styles.Card.Render(strings.Join(lines, "\n"))
}

// Close stops the debouncer and drops the bus subscription. Safe to call
// after the program exits.
func (m *BrowseModel) Close() {
	m.debouncer.Close()
	if m.bus != nil && m.sub != nil {
		m.bus.Unsubscribe(m.sub)
		m.sub = nil
	}
}
