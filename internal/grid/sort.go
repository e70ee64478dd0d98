package grid

import (
	"slices"
	"strings"
)

// Sort returns a new slice ordered by key and direction.
//
// Values compare as lower-cased strings, absent values as "". The sort is
// stable in both directions: descending negates the comparison rather than
// reversing the result, so equal keys keep their input order.
// An unknown key compares every record as equal and leaves the order as is.
func Sort(records []DeviceRecord, key SortKey, order SortOrder) []DeviceRecord {
	out := slices.Clone(records)
	if len(out) < 2 {
		return out
	}

	keys := make(map[string]string, len(out))
	for _, r := range out {
		keys[r.ID] = strings.ToLower(sortValue(r, key))
	}

	slices.SortStableFunc(out, func(a, b DeviceRecord) int {
		c := strings.Compare(keys[a.ID], keys[b.ID])
		if order == Descending {
			return -c
		}
		return c
	})
	return out
}

// sortValue returns the raw field a key orders by.
func sortValue(r DeviceRecord, key SortKey) string {
	switch key {
	case SortByName:
		return r.Name
	case SortByMAC:
		return r.MAC
	case SortByIP:
		return r.IP
	case SortByState:
		return r.State
	default:
		return ""
	}
}
