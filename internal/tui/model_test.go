package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/tracker-grid/internal/grid"
)

// fakeController records the calls made by the model.
type fakeController struct {
	view       grid.View
	filters    []string
	cleared    int
	toggled    []grid.Column
	toggleErr  error
	reconnects []string
	started    bool
	recErr     error
}

func (f *fakeController) View() grid.View       { return f.view }
func (f *fakeController) SetFilter(text string) { f.filters = append(f.filters, text) }
func (f *fakeController) ClearFilter()          { f.cleared++ }
func (f *fakeController) ToggleSort(col grid.Column) error {
	f.toggled = append(f.toggled, col)
	return f.toggleErr
}

func (f *fakeController) Reconnect(id string) (bool, error) {
	f.reconnects = append(f.reconnects, id)
	return f.started, f.recErr
}

func row(id, name string, online bool, phase grid.Phase, label string) grid.RowView {
	return grid.RowView{
		Device:    grid.DeviceRecord{ID: id, Name: name, MAC: "AA:BB", IP: "10.0.0.2"},
		DisplayIP: "10.0.0.2",
		Online:    online,
		Action:    grid.ActionView{Phase: phase, Label: label, Disabled: phase != grid.PhaseIdle},
	}
}

func testView() grid.View {
	return grid.View{
		Title: "Device Tracker",
		Columns: []grid.ColumnView{
			{Column: grid.ColumnName, Label: "Name", Sortable: true, Sorted: true, Order: grid.Ascending},
			{Column: grid.ColumnMAC, Label: "MAC", Sortable: true},
			{Column: grid.ColumnIP, Label: "IP", Sortable: true},
			{Column: grid.ColumnActions},
		},
		Filter:         grid.FilterView{Visible: true, Placeholder: "Filter devices..."},
		Sort:           grid.SortState{Key: grid.SortByName, Order: grid.Ascending},
		StateIndicator: true,
		Rows: []grid.RowView{
			row("device_tracker.laptop", "Laptop", false, grid.PhaseIdle, grid.LabelReconnect),
			row("device_tracker.phone", "Phone", true, grid.PhaseIdle, grid.LabelReconnect),
		},
		Total: 2,
	}
}

func newTestModel() (Model, *fakeController) {
	ctl := &fakeController{view: testView(), started: true}
	return NewModel(ctl), ctl
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, msgs ...tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, msg := range msgs {
		var next tea.Model
		next, cmd = m.Update(msg)
		m = next.(Model)
	}
	return m, cmd
}

func TestModel_InitialViewSelectsFirstRow(t *testing.T) {
	m, _ := newTestModel()

	assert.Equal(t, "device_tracker.laptop", m.selected)
	out := m.View()
	assert.Contains(t, out, "Device Tracker")
	assert.Contains(t, out, "Laptop")
	assert.Contains(t, out, "Name ▲")
	assert.Contains(t, out, "[Reconnect]")
	assert.Contains(t, out, dotOnline)
	assert.Contains(t, out, dotOffline)
}

func TestModel_FilterTyping(t *testing.T) {
	m, ctl := newTestModel()

	m, cmd := press(t, m, runes("/"))
	assert.True(t, m.filterOn)
	assert.NotNil(t, cmd, "focusing starts the cursor blink")

	m, _ = press(t, m, runes("p"), runes("h"))
	assert.Equal(t, []string{"p", "ph"}, ctl.filters)

	// q is text while the filter is focused.
	m, _ = press(t, m, runes("q"))
	assert.Equal(t, "phq", m.filter.Value())

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlU})
	assert.Equal(t, 1, ctl.cleared)
	assert.Empty(t, m.filter.Value())

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.filterOn)
}

func TestModel_FilterHidden(t *testing.T) {
	ctl := &fakeController{view: testView()}
	ctl.view.Filter.Visible = false
	m := NewModel(ctl)

	m, _ = press(t, m, runes("/"))
	assert.False(t, m.filterOn)
}

func TestModel_PatchKeepsFilterInput(t *testing.T) {
	m, _ := newTestModel()
	m, _ = press(t, m, runes("/"), runes("p"))

	patched := testView()
	patched.Title = "ignored by patch"
	patched.Filter.Text = "server side"
	patched.Rows = patched.Rows[1:]
	m, _ = press(t, m, viewMsg{mode: grid.ModePatch, view: patched})

	assert.True(t, m.filterOn)
	assert.Equal(t, "p", m.filter.Value())
	assert.Equal(t, "Device Tracker", m.view.Title)
	assert.Len(t, m.view.Rows, 1)
	assert.Equal(t, "device_tracker.phone", m.selected, "selection moves off a removed row")
}

func TestModel_RebuildResetsFilterText(t *testing.T) {
	m, _ := newTestModel()
	m.filter.SetValue("stale")

	v := testView()
	v.Title = "Network"
	m, _ = press(t, m, viewMsg{mode: grid.ModeRebuild, view: v})

	assert.Equal(t, "Network", m.view.Title)
	assert.Empty(t, m.filter.Value())
}

func TestModel_SortKeys(t *testing.T) {
	m, ctl := newTestModel()

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, []grid.Column{grid.ColumnMAC}, ctl.toggled, "tab moves to the next sortable column")

	// The last sortable column wraps around to the first.
	v := testView()
	v.Columns[0].Sorted = false
	v.Columns[2].Sorted = true
	v.Sort = grid.SortState{Key: grid.SortByIP, Order: grid.Ascending}
	m, _ = press(t, m, viewMsg{mode: grid.ModePatch, view: v}, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, grid.ColumnName, ctl.toggled[1])

	m, _ = press(t, m, runes("s"))
	assert.Equal(t, grid.ColumnIP, ctl.toggled[2], "s toggles the active column")

	ctl.toggleErr = grid.ErrSortingDisabled
	m, _ = press(t, m, runes("s"))
	assert.Contains(t, m.View(), grid.ErrSortingDisabled.Error())
}

func TestModel_SortDisabled(t *testing.T) {
	ctl := &fakeController{view: testView()}
	for i := range ctl.view.Columns {
		ctl.view.Columns[i].Sortable = false
	}
	m := NewModel(ctl)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Empty(t, ctl.toggled)
	assert.Equal(t, "sorting is disabled", m.status)
}

func TestModel_SelectionAndReconnect(t *testing.T) {
	m, ctl := newTestModel()

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, "device_tracker.phone", m.selected, "selection stops at the last row")

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, []string{"device_tracker.phone"}, ctl.reconnects)
	assert.Empty(t, m.status)

	m, _ = press(t, m, runes("k"))
	assert.Equal(t, "device_tracker.laptop", m.selected)

	ctl.started = false
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.NotEmpty(t, m.status)

	ctl.recErr = grid.ErrRowNotFound
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, grid.ErrRowNotFound.Error(), m.status)
}

func TestModel_ReconnectWithoutActionsColumn(t *testing.T) {
	ctl := &fakeController{view: testView(), started: true}
	ctl.view.Columns = ctl.view.Columns[:3]
	m := NewModel(ctl)

	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Empty(t, ctl.reconnects)
}

func TestModel_ActionBadges(t *testing.T) {
	m, _ := newTestModel()
	v := testView()
	v.Rows[0] = row("device_tracker.laptop", "Laptop", false, grid.PhaseFailed, grid.LabelError)
	v.Rows[1] = row("device_tracker.phone", "Phone", true, grid.PhasePending, grid.LabelReconnecting)

	m, _ = press(t, m, viewMsg{mode: grid.ModePatch, view: v})
	out := m.View()
	assert.Contains(t, out, "[Error!]")
	assert.Contains(t, out, grid.LabelReconnecting)
}

func TestModel_EmptyState(t *testing.T) {
	m, _ := newTestModel()
	v := testView()
	v.Rows = nil
	v.Total = 0
	v.Empty = grid.EmptyFilter
	v.EmptyMessage = grid.NoMatchMessage("zzz")

	m, _ = press(t, m, viewMsg{mode: grid.ModePatch, view: v})
	assert.Contains(t, m.View(), grid.NoMatchMessage("zzz"))
	assert.Empty(t, m.selected)

	// Enter on an empty table is a no-op.
	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
}

func TestModel_TitleCountsTruncation(t *testing.T) {
	m, _ := newTestModel()
	v := testView()
	v.Total = 7
	m, _ = press(t, m, viewMsg{mode: grid.ModePatch, view: v})

	assert.Contains(t, m.View(), "2 of 7 devices")
}

func TestModel_Quit(t *testing.T) {
	m, _ := newTestModel()

	_, cmd := press(t, m, runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	_, cmd = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestRenderer_CoalescesAndKeepsRebuild(t *testing.T) {
	r := NewRenderer()

	first := testView()
	second := testView()
	second.Title = "second"
	r.Rebuild(first)
	r.Patch(second)

	msg, ok := r.take()
	require.True(t, ok)
	assert.Equal(t, grid.ModeRebuild, msg.mode, "a waiting rebuild is not downgraded")
	assert.Equal(t, "second", msg.view.Title)

	_, ok = r.take()
	assert.False(t, ok)

	r.Patch(first)
	msg, _ = r.take()
	assert.Equal(t, grid.ModePatch, msg.mode)
}

func TestRenderer_Forward(t *testing.T) {
	r := NewRenderer()
	got := make(chan tea.Msg, 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Forward(ctx, func(msg tea.Msg) { got <- msg })
		close(done)
	}()

	r.Rebuild(testView())

	select {
	case msg := <-got:
		vm, ok := msg.(viewMsg)
		require.True(t, ok)
		assert.Equal(t, grid.ModeRebuild, vm.mode)
	case <-time.After(time.Second):
		t.Fatal("render was not forwarded")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Forward did not stop on cancel")
	}
}

func TestRenderer_NeverBlocks(t *testing.T) {
	r := NewRenderer()
	for i := 0; i < 100; i++ {
		r.Patch(testView())
	}
	_, ok := r.take()
	assert.True(t, ok)
}
