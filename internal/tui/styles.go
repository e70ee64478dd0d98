package tui

import "github.com/charmbracelet/lipgloss"

type uiStyles struct {
	title       lipgloss.Style
	count       lipgloss.Style
	header      lipgloss.Style
	row         lipgloss.Style
	rowAlt      lipgloss.Style
	selected    lipgloss.Style
	dotOnline   lipgloss.Style
	dotOffline  lipgloss.Style
	missing     lipgloss.Style
	actionIdle  lipgloss.Style
	actionBusy  lipgloss.Style
	badgeOK     lipgloss.Style
	badgeError  lipgloss.Style
	empty       lipgloss.Style
	filterLabel lipgloss.Style
	status      lipgloss.Style
	footer      lipgloss.Style
}

var styles = buildStyles()

// Colours are ANSI indexes so the table follows the terminal theme.
func buildStyles() uiStyles {
	return uiStyles{
		title:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		count:       lipgloss.NewStyle().Faint(true),
		header:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7")).Background(lipgloss.Color("8")),
		row:         lipgloss.NewStyle(),
		rowAlt:      lipgloss.NewStyle().Background(lipgloss.Color("236")),
		selected:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		dotOnline:   lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		dotOffline:  lipgloss.NewStyle().Faint(true),
		missing:     lipgloss.NewStyle().Faint(true),
		actionIdle:  lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		actionBusy:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		badgeOK:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		badgeError:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		empty:       lipgloss.NewStyle().Italic(true).Faint(true),
		filterLabel: lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
		status:      lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		footer:      lipgloss.NewStyle().Faint(true),
	}
}
