package grid

import "errors"

// Domain errors for the grid package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, grid.ErrRowNotFound) {
//	    // the row left the grid before the click arrived
//	}
var (
	// ErrInvalidConfig is returned when a ViewConfig fails validation.
	// The returned error also wraps every individual problem found.
	ErrInvalidConfig = errors.New("grid: invalid configuration")

	// ErrUnknownSortKey is returned when a sort key is not orderable.
	ErrUnknownSortKey = errors.New("grid: unknown sort key")

	// ErrUnknownSortOrder is returned when a sort order is neither asc nor desc.
	ErrUnknownSortOrder = errors.New("grid: unknown sort order")

	// ErrUnknownColumn is returned when a column name is not recognised.
	ErrUnknownColumn = errors.New("grid: unknown column")

	// ErrRowNotFound is returned when an action targets a row that is not
	// in the current snapshot.
	ErrRowNotFound = errors.New("grid: row not found")

	// ErrSortingDisabled is returned when a sort change is requested while
	// sorting is disabled in the configuration.
	ErrSortingDisabled = errors.New("grid: sorting disabled")

	// ErrColumnNotSortable is returned when a sort change targets a column
	// that is hidden or not in the sortable set.
	ErrColumnNotSortable = errors.New("grid: column not sortable")
)
