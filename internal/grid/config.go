package grid

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Default values for ViewConfig.
const (
	DefaultTitle             = "Device Tracker"
	DefaultServiceDomain     = "tplink_omada"
	DefaultServiceAction     = "reconnect_client"
	DefaultMACParam          = "mac"
	DefaultFilterPlaceholder = "Filter devices..."
	DefaultDebounce          = 100 * time.Millisecond
	DefaultRestoreDelay      = 3 * time.Second
	DefaultActionTimeout     = 10 * time.Second
)

// ViewConfig is the resolved configuration of one grid. It is validated once
// and treated as immutable until the next Engine.Configure.
type ViewConfig struct {
	Title string

	// Reconnect action descriptor.
	ServiceDomain string
	ServiceAction string
	MACParam      string
	FormatMAC     bool

	// Columns is the displayed column order.
	Columns []Column

	ShowOffline    bool
	FilterByEntity []string
	MaxDevices     int

	SortBy    SortKey
	SortOrder SortOrder

	AlternatingRows   bool
	ShowFilter        bool
	FilterPlaceholder string
	StateIndicator    bool

	SortableColumns []Column
	EnableSorting   bool

	// Debounce is the render coalescing window.
	Debounce time.Duration
	// RestoreDelay is how long a reconnect result stays visible.
	RestoreDelay time.Duration
	// ActionTimeout bounds a single transport call.
	ActionTimeout time.Duration
}

// DefaultViewConfig returns the configuration used when no option is set.
func DefaultViewConfig() ViewConfig {
	return ViewConfig{
		Title:             DefaultTitle,
		ServiceDomain:     DefaultServiceDomain,
		ServiceAction:     DefaultServiceAction,
		MACParam:          DefaultMACParam,
		FormatMAC:         true,
		Columns:           []Column{ColumnName, ColumnMAC, ColumnIP, ColumnActions},
		ShowOffline:       true,
		MaxDevices:        0,
		SortBy:            SortByName,
		SortOrder:         Ascending,
		AlternatingRows:   true,
		ShowFilter:        true,
		FilterPlaceholder: DefaultFilterPlaceholder,
		StateIndicator:    true,
		SortableColumns:   []Column{ColumnName, ColumnMAC, ColumnIP},
		EnableSorting:     true,
		Debounce:          DefaultDebounce,
		RestoreDelay:      DefaultRestoreDelay,
		ActionTimeout:     DefaultActionTimeout,
	}
}

// ParseService splits a "domain.action" shorthand.
func ParseService(service string) (domain, action string, err error) {
	domain, action, ok := strings.Cut(service, ".")
	if !ok || domain == "" || action == "" {
		return "", "", fmt.Errorf("%w: service %q must be domain.action", ErrInvalidConfig, service)
	}
	return domain, action, nil
}

// Validate checks the configuration and reports every problem at once.
// The returned error wraps ErrInvalidConfig and each specific sentinel.
func (c ViewConfig) Validate() error {
	var errs []error

	if c.ServiceDomain == "" || c.ServiceAction == "" {
		errs = append(errs, errors.New("service_domain and service_action are required"))
	}
	if c.MACParam == "" {
		errs = append(errs, errors.New("mac_param is required"))
	}

	if len(c.Columns) == 0 {
		errs = append(errs, errors.New("columns_order must not be empty"))
	}
	seen := make(map[Column]bool, len(c.Columns))
	for _, col := range c.Columns {
		if !col.Valid() {
			errs = append(errs, fmt.Errorf("%w: columns_order %q", ErrUnknownColumn, col))
			continue
		}
		if seen[col] {
			errs = append(errs, fmt.Errorf("columns_order lists %q twice", col))
		}
		seen[col] = true
	}

	for _, col := range c.SortableColumns {
		if _, ok := col.SortKey(); !ok {
			errs = append(errs, fmt.Errorf("%w: sortable_columns %q", ErrUnknownSortKey, col))
		}
	}

	if !c.SortBy.Valid() {
		errs = append(errs, fmt.Errorf("%w: sort_by %q", ErrUnknownSortKey, c.SortBy))
	}
	if !c.SortOrder.Valid() {
		errs = append(errs, fmt.Errorf("%w: sort_order %q", ErrUnknownSortOrder, c.SortOrder))
	}

	if c.MaxDevices < 0 {
		errs = append(errs, errors.New("max_devices must not be negative"))
	}
	if c.Debounce <= 0 {
		errs = append(errs, errors.New("debounce must be positive"))
	}
	if c.RestoreDelay <= 0 {
		errs = append(errs, errors.New("restore_delay must be positive"))
	}
	if c.ActionTimeout <= 0 {
		errs = append(errs, errors.New("action_timeout must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// IsSortable reports whether a header click on col changes the sort.
// The column must be displayed and listed in SortableColumns, and sorting
// must be enabled.
func (c ViewConfig) IsSortable(col Column) bool {
	if !c.EnableSorting {
		return false
	}
	if _, ok := col.SortKey(); !ok {
		return false
	}
	return slices.Contains(c.Columns, col) && slices.Contains(c.SortableColumns, col)
}

// DefaultSort returns the configured initial sort state.
func (c ViewConfig) DefaultSort() SortState {
	return SortState{Key: c.SortBy, Order: c.SortOrder}
}
