package grid

import (
	"fmt"
	"time"
)

// Mode selects how a renderer applies a view.
type Mode int

const (
	// ModeRebuild redraws everything: header, filter control, rows.
	ModeRebuild Mode = iota
	// ModePatch only replaces row content and the empty-state message.
	ModePatch
)

// String returns the mode name.
func (m Mode) String() string {
	if m == ModeRebuild {
		return "rebuild"
	}
	return "patch"
}

// EmptyState classifies an empty grid so the message can point at the
// right remedy.
type EmptyState string

const (
	// EmptyNone means the grid has rows.
	EmptyNone EmptyState = ""
	// EmptyConfig means no device passes the configuration.
	EmptyConfig EmptyState = "config"
	// EmptyFilter means devices exist but none matches the filter.
	EmptyFilter EmptyState = "filter"
)

// MessageNoDevices is shown when the configuration leaves no rows.
const MessageNoDevices = "No devices found with the current configuration."

// NoMatchMessage is shown when the filter text leaves no rows.
func NoMatchMessage(filter string) string {
	return fmt.Sprintf("No devices found for filter \"%s\".", filter)
}

// Labels of the per-row action control.
const (
	LabelReconnect    = "Reconnect"
	LabelReconnecting = "Reconnecting..."
	LabelSent         = "Sent!"
	LabelError        = "Error!"
)

// MissingIP is displayed in place of an empty IP address.
const MissingIP = "N/A"

// MaxCardRows is the row count beyond which the card size stops growing.
const MaxCardRows = 5

// ColumnView is one header cell.
type ColumnView struct {
	Column   Column    `json:"column"`
	Label    string    `json:"label"`
	Sortable bool      `json:"sortable"`
	Sorted   bool      `json:"sorted"`
	Order    SortOrder `json:"order,omitempty"`
}

// Indicator returns the sort arrow for a sorted column, or "".
func (c ColumnView) Indicator() string {
	if !c.Sorted {
		return ""
	}
	if c.Order == Descending {
		return "▼"
	}
	return "▲"
}

// FilterView describes the filter control.
type FilterView struct {
	Visible     bool   `json:"visible"`
	Placeholder string `json:"placeholder"`
	Text        string `json:"text"`
}

// ActionView is the visual state of a row's reconnect control.
type ActionView struct {
	Phase    Phase  `json:"phase"`
	Label    string `json:"label"`
	Disabled bool   `json:"disabled"`
}

// RowView is one rendered device row.
type RowView struct {
	Device    DeviceRecord `json:"device"`
	DisplayIP string       `json:"display_ip"`
	Alternate bool         `json:"alternate"`
	Online    bool         `json:"online"`
	Action    ActionView   `json:"action"`
}

// View is the immutable view-model handed to renderers.
type View struct {
	Title          string       `json:"title"`
	Columns        []ColumnView `json:"columns"`
	Filter         FilterView   `json:"filter"`
	Sort           SortState    `json:"sort"`
	StateIndicator bool         `json:"state_indicator"`
	Rows           []RowView    `json:"rows"`
	Empty          EmptyState   `json:"empty,omitempty"`
	EmptyMessage   string       `json:"empty_message,omitempty"`

	// Total is the number of devices matching configuration and filter
	// before max_devices truncation.
	Total      int       `json:"total"`
	CardSize   int       `json:"card_size"`
	RenderedAt time.Time `json:"rendered_at"`
}

// HasActions reports whether the actions column is displayed.
func (v View) HasActions() bool {
	for _, c := range v.Columns {
		if c.Column == ColumnActions {
			return true
		}
	}
	return false
}

// CardSize returns the host layout height for a row count: one unit for the
// header plus one per row, capped at MaxCardRows rows.
func CardSize(rows int) int {
	return 1 + min(rows, MaxCardRows)
}

// buildView assembles the view-model. states supplies the action phase of
// each row id.
func buildView(cfg ViewConfig, snap Snapshot, sort SortState, filter string, total int, states func(id string) ActionView, now time.Time) View {
	cols := make([]ColumnView, 0, len(cfg.Columns))
	for _, c := range cfg.Columns {
		cv := ColumnView{
			Column:   c,
			Label:    c.Label(),
			Sortable: cfg.IsSortable(c),
		}
		if key, ok := c.SortKey(); ok && key == sort.Key {
			cv.Sorted = true
			cv.Order = sort.Order
		}
		cols = append(cols, cv)
	}

	rows := make([]RowView, 0, len(snap.Records))
	for i, r := range snap.Records {
		ip := r.IP
		if ip == "" {
			ip = MissingIP
		}
		rows = append(rows, RowView{
			Device:    r,
			DisplayIP: ip,
			Alternate: cfg.AlternatingRows && i%2 == 1,
			Online:    r.State != StateNotHome,
			Action:    states(r.ID),
		})
	}

	v := View{
		Title:   cfg.Title,
		Columns: cols,
		Filter: FilterView{
			Visible:     cfg.ShowFilter,
			Placeholder: cfg.FilterPlaceholder,
			Text:        filter,
		},
		Sort:           sort,
		StateIndicator: cfg.StateIndicator,
		Rows:           rows,
		Total:          total,
		CardSize:       CardSize(len(rows)),
		RenderedAt:     now,
	}

	if len(rows) == 0 {
		if isBlank(filter) {
			v.Empty = EmptyConfig
			v.EmptyMessage = MessageNoDevices
		} else {
			v.Empty = EmptyFilter
			v.EmptyMessage = NoMatchMessage(filter)
		}
	}
	return v
}
