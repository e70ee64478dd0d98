package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nerrad567/tracker-grid/internal/grid"
)

// Controller is the part of the grid engine the terminal drives.
// *grid.Engine implements it.
type Controller interface {
	View() grid.View
	SetFilter(text string)
	ClearFilter()
	ToggleSort(col grid.Column) error
	Reconnect(id string) (bool, error)
}

// viewMsg carries one engine render into the program.
type viewMsg struct {
	mode grid.Mode
	view grid.View
}

// Model is the Bubble Tea model of the device table.
type Model struct {
	ctl Controller

	view     grid.View
	filter   textinput.Model
	spinner  spinner.Model
	filterOn bool

	// selected is the entity id of the highlighted row, kept across
	// renders so the selection follows the device rather than the index.
	selected string
	status   string
	width    int
}

// NewModel creates a model showing the controller's current view.
func NewModel(ctl Controller) Model {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.PromptStyle = styles.filterLabel
	ti.CharLimit = 256

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = styles.actionBusy

	m := Model{
		ctl:     ctl,
		filter:  ti,
		spinner: sp,
	}
	m.rebuild(ctl.View())
	return m
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles renders, key presses and spinner ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case viewMsg:
		if msg.mode == grid.ModeRebuild {
			m.rebuild(msg.view)
		} else {
			m.patch(msg.view)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.filterOn {
			return m.updateFilter(msg)
		}
		return m.updateTable(msg)
	}

	return m, nil
}

// rebuild replaces the whole view, including the filter control.
func (m *Model) rebuild(v grid.View) {
	m.view = v
	m.filter.Placeholder = v.Filter.Placeholder
	if !m.filterOn {
		m.filter.SetValue(v.Filter.Text)
	}
	m.keepSelection()
}

// patch replaces rows, the empty state and the sort indicators only. The
// filter control keeps its text and focus.
func (m *Model) patch(v grid.View) {
	m.view.Rows = v.Rows
	m.view.Columns = v.Columns
	m.view.Sort = v.Sort
	m.view.Empty = v.Empty
	m.view.EmptyMessage = v.EmptyMessage
	m.view.Total = v.Total
	m.view.CardSize = v.CardSize
	m.view.RenderedAt = v.RenderedAt
	m.keepSelection()
}

// keepSelection moves the selection to the first row when the selected
// device left the table.
func (m *Model) keepSelection() {
	if m.cursor() >= 0 {
		return
	}
	m.selected = ""
	if len(m.view.Rows) > 0 {
		m.selected = m.view.Rows[0].Device.ID
	}
}

// cursor returns the index of the selected row, or -1.
func (m Model) cursor() int {
	for i, r := range m.view.Rows {
		if r.Device.ID == m.selected {
			return i
		}
	}
	return -1
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyEnter:
		m.filterOn = false
		m.filter.Blur()
		return m, nil
	case tea.KeyCtrlU:
		m.filter.SetValue("")
		m.ctl.ClearFilter()
		return m, nil
	}

	before := m.filter.Value()
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	if after := m.filter.Value(); after != before {
		m.ctl.SetFilter(after)
	}
	return m, cmd
}

func (m Model) updateTable(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status = ""

	switch msg.String() {
	case "q":
		return m, tea.Quit

	case "/":
		if !m.view.Filter.Visible {
			return m, nil
		}
		m.filterOn = true
		return m, m.filter.Focus()

	case "ctrl+u":
		m.filter.SetValue("")
		m.ctl.ClearFilter()

	case "tab":
		m.cycleSort()

	case "s":
		m.flipSort()

	case "up", "k":
		m.move(-1)

	case "down", "j":
		m.move(1)

	case "enter":
		m.reconnect()
	}

	return m, nil
}

// cycleSort sorts by the sortable column after the active one.
func (m *Model) cycleSort() {
	var cols []grid.Column
	active := -1
	for _, c := range m.view.Columns {
		if !c.Sortable {
			continue
		}
		if c.Sorted {
			active = len(cols)
		}
		cols = append(cols, c.Column)
	}
	if len(cols) == 0 {
		m.status = "sorting is disabled"
		return
	}

	next := cols[(active+1)%len(cols)]
	if err := m.ctl.ToggleSort(next); err != nil {
		m.status = err.Error()
	}
}

// flipSort reverses the direction of the active column.
func (m *Model) flipSort() {
	if err := m.ctl.ToggleSort(grid.Column(m.view.Sort.Key)); err != nil {
		m.status = err.Error()
	}
}

func (m *Model) move(delta int) {
	if len(m.view.Rows) == 0 {
		return
	}
	i := m.cursor() + delta
	i = max(0, min(i, len(m.view.Rows)-1))
	m.selected = m.view.Rows[i].Device.ID
}

func (m *Model) reconnect() {
	if m.selected == "" || !m.view.HasActions() {
		return
	}
	started, err := m.ctl.Reconnect(m.selected)
	switch {
	case err != nil:
		m.status = err.Error()
	case !started:
		m.status = "reconnect unavailable for this device right now"
	}
}
