// Package tui renders the device grid in a terminal with Bubble Tea.
//
// The terminal is one more renderer of the grid engine: Renderer implements
// grid.Renderer and forwards each view into the running program, and key
// presses call back into the engine (filter, sort, reconnect). The terminal
// therefore shows the same table, with the same shared filter and sort, as
// the WebSocket clients.
//
// Keys:
//
//	/         focus the filter (esc or enter to leave, ctrl+u to clear)
//	tab       sort by the next sortable column
//	s         flip the sort direction
//	↑/↓ j/k   move the selection
//	enter     reconnect the selected device
//	q         quit
package tui
