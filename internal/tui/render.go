package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nerrad567/tracker-grid/internal/grid"
)

const (
	dotOnline  = "●"
	dotOffline = "○"
	cellGap    = "  "
	cursorMark = "›"
	helpLine   = "/ filter • tab sort column • s flip • ↑/↓ select • enter reconnect • q quit"
)

// View renders the table.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.titleBar())
	b.WriteString("\n")

	if m.view.Filter.Visible {
		b.WriteString(m.filter.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")

	cells := m.cells()
	widths := columnWidths(m.view.Columns, cells)

	b.WriteString(m.headerLine(widths))
	b.WriteString("\n")

	if len(m.view.Rows) == 0 {
		b.WriteString(styles.empty.Render(m.view.EmptyMessage))
		b.WriteString("\n")
	}
	cur := m.cursor()
	for i, r := range m.view.Rows {
		b.WriteString(m.rowLine(r, cells[i], widths, i == cur))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.status != "" {
		b.WriteString(styles.status.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(styles.footer.Render(helpLine))
	b.WriteString("\n")

	if m.width > 0 {
		return lipgloss.NewStyle().MaxWidth(m.width).Render(b.String())
	}
	return b.String()
}

func (m Model) titleBar() string {
	shown := len(m.view.Rows)
	count := fmt.Sprintf("%d devices", shown)
	if m.view.Total > shown {
		count = fmt.Sprintf("%d of %d devices", shown, m.view.Total)
	}
	return styles.title.Render(m.view.Title) + "  " + styles.count.Render(count)
}

func (m Model) headerLine(widths []int) string {
	parts := make([]string, 0, len(m.view.Columns)+1)
	parts = append(parts, " ")
	for i, c := range m.view.Columns {
		label := c.Label
		if ind := c.Indicator(); ind != "" {
			label += " " + ind
		}
		parts = append(parts, pad(label, widths[i]))
	}
	return styles.header.Render(strings.Join(parts, cellGap))
}

func (m Model) rowLine(r grid.RowView, cells []string, widths []int, selected bool) string {
	mark := " "
	if selected {
		mark = styles.selected.Render(cursorMark)
	}

	parts := make([]string, 0, len(cells)+1)
	parts = append(parts, mark)
	for i, c := range m.view.Columns {
		parts = append(parts, m.styleCell(r, c.Column, pad(cells[i], widths[i])))
	}
	line := strings.Join(parts, cellGap)

	if r.Alternate {
		return styles.rowAlt.Render(line)
	}
	return styles.row.Render(line)
}

// cells returns the plain text of every row and column, used both for
// sizing and rendering.
func (m Model) cells() [][]string {
	out := make([][]string, len(m.view.Rows))
	for i, r := range m.view.Rows {
		row := make([]string, len(m.view.Columns))
		for j, c := range m.view.Columns {
			row[j] = m.cellText(r, c.Column)
		}
		out[i] = row
	}
	return out
}

func (m Model) cellText(r grid.RowView, col grid.Column) string {
	switch col {
	case grid.ColumnName:
		if m.view.StateIndicator {
			dot := dotOffline
			if r.Online {
				dot = dotOnline
			}
			return dot + " " + r.Device.Name
		}
		return r.Device.Name
	case grid.ColumnMAC:
		return r.Device.MAC
	case grid.ColumnIP:
		return r.DisplayIP
	case grid.ColumnState:
		return r.Device.State
	case grid.ColumnActions:
		if r.Action.Phase == grid.PhasePending {
			return m.spinner.View() + " " + r.Action.Label
		}
		return "[" + r.Action.Label + "]"
	}
	return ""
}

// styleCell colours a padded cell.
func (m Model) styleCell(r grid.RowView, col grid.Column, text string) string {
	switch col {
	case grid.ColumnName:
		if !m.view.StateIndicator {
			return text
		}
		dot, rest, _ := strings.Cut(text, " ")
		if r.Online {
			return styles.dotOnline.Render(dot) + " " + rest
		}
		return styles.dotOffline.Render(dot) + " " + rest
	case grid.ColumnIP:
		if r.Device.IP == "" {
			return styles.missing.Render(text)
		}
	case grid.ColumnActions:
		switch r.Action.Phase {
		case grid.PhaseSucceeded:
			return styles.badgeOK.Render(text)
		case grid.PhaseFailed:
			return styles.badgeError.Render(text)
		case grid.PhasePending:
			return styles.actionBusy.Render(text)
		default:
			return styles.actionIdle.Render(text)
		}
	}
	return text
}

// columnWidths sizes each column to its widest header or cell.
func columnWidths(cols []grid.ColumnView, cells [][]string) []int {
	widths := make([]int, len(cols))
	for i, c := range cols {
		w := lipgloss.Width(c.Label) + 2 // room for the sort indicator
		for _, row := range cells {
			w = max(w, lipgloss.Width(row[i]))
		}
		widths[i] = w
	}
	return widths
}

// pad right-pads s with spaces to width display cells.
func pad(s string, width int) string {
	if gap := width - lipgloss.Width(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}
