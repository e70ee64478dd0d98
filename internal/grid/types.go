package grid

import (
	"strings"
	"time"
)

// EntityPrefix is the entity id namespace scanned for devices.
const EntityPrefix = "device_tracker."

// StateNotHome is the presence state hidden when offline devices are not shown.
const StateNotHome = "not_home"

// Attribute keys read from state records.
const (
	AttrMAC          = "mac"
	AttrIP           = "ip"
	AttrFriendlyName = "friendly_name"
)

// StateRecord is one entry of the host state feed.
type StateRecord struct {
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
}

// Feed maps entity ids to their latest state record.
// The engine only reads it; producers must hand over a fresh map per push.
type Feed map[string]StateRecord

// DeviceRecord is the projection of an eligible state record.
// Values are immutable once extracted.
type DeviceRecord struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	MAC         string    `json:"mac"`
	IP          string    `json:"ip"`
	State       string    `json:"state"`
	LastChanged time.Time `json:"last_changed"`
	LastUpdated time.Time `json:"last_updated"`

	// Attributes is the full source attribute set. It is kept for
	// fingerprinting and never rendered.
	Attributes map[string]any `json:"-"`
}

// ObjectID returns the part of the entity id after the first dot.
func (d DeviceRecord) ObjectID() string {
	return ObjectID(d.ID)
}

// ObjectID returns the part of an entity id after the first dot,
// or the whole id when it has no dot.
func ObjectID(entityID string) string {
	if _, obj, ok := strings.Cut(entityID, "."); ok {
		return obj
	}
	return entityID
}

// SortKey names an orderable device field.
type SortKey string

// Orderable fields.
const (
	SortByName  SortKey = "name"
	SortByMAC   SortKey = "mac"
	SortByIP    SortKey = "ip"
	SortByState SortKey = "state"
)

// Valid reports whether k names an orderable field.
func (k SortKey) Valid() bool {
	switch k {
	case SortByName, SortByMAC, SortByIP, SortByState:
		return true
	}
	return false
}

// SortOrder is the sort direction.
type SortOrder string

// Sort directions.
const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// Valid reports whether o is asc or desc.
func (o SortOrder) Valid() bool {
	return o == Ascending || o == Descending
}

// Reverse returns the opposite direction.
func (o SortOrder) Reverse() SortOrder {
	if o == Descending {
		return Ascending
	}
	return Descending
}

// SortState is the active sort key and direction.
type SortState struct {
	Key   SortKey   `json:"key"`
	Order SortOrder `json:"order"`
}

// Column identifies a table column.
type Column string

// Table columns.
const (
	ColumnName    Column = "name"
	ColumnMAC     Column = "mac"
	ColumnIP      Column = "ip"
	ColumnState   Column = "state"
	ColumnActions Column = "actions"
)

// Valid reports whether c is a known column.
func (c Column) Valid() bool {
	switch c {
	case ColumnName, ColumnMAC, ColumnIP, ColumnState, ColumnActions:
		return true
	}
	return false
}

// SortKey returns the field a column orders by. The actions column has none.
func (c Column) SortKey() (SortKey, bool) {
	k := SortKey(c)
	return k, k.Valid()
}

// Label returns the header text for the column.
func (c Column) Label() string {
	switch c {
	case ColumnName:
		return "Name"
	case ColumnMAC:
		return "MAC"
	case ColumnIP:
		return "IP"
	case ColumnState:
		return "State"
	default:
		return ""
	}
}

// Snapshot is the engine's accepted derivation between updates.
type Snapshot struct {
	// Records is the rendered list: filtered, sorted and truncated.
	Records []DeviceRecord

	// Fingerprints maps every id in Records to its Fingerprint.
	Fingerprints map[string]string

	// Filter is the free-text filter in effect when the snapshot was accepted.
	Filter string

	initialised bool
}

// NewSnapshot builds an accepted snapshot. The fingerprint map is rebuilt
// from scratch so ids that left the list cannot match later.
func NewSnapshot(records []DeviceRecord, filter string) Snapshot {
	fps := make(map[string]string, len(records))
	for _, r := range records {
		fps[r.ID] = Fingerprint(r)
	}
	return Snapshot{
		Records:      records,
		Fingerprints: fps,
		Filter:       filter,
		initialised:  true,
	}
}

// Initialised reports whether the snapshot came from an accepted derivation.
// The zero Snapshot is not initialised.
func (s Snapshot) Initialised() bool {
	return s.initialised
}

// recordIDs returns the set of ids in records.
func recordIDs(records []DeviceRecord) map[string]struct{} {
	ids := make(map[string]struct{}, len(records))
	for _, r := range records {
		ids[r.ID] = struct{}{}
	}
	return ids
}

// Logger defines the logging interface used by the grid components.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
