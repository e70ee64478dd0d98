package grid

import (
	"slices"
	"strings"
)

// Extract projects the eligible device_tracker entities of a feed.
//
// A record is eligible when its entity id carries the device_tracker prefix,
// it has a non-empty string "mac" attribute, it is in the allowlist (when the
// allowlist is non-empty), and it is not "not_home" while offline devices are
// hidden. Ineligible entries are skipped silently.
//
// Records come back in ascending entity id order. Later stable sorts keep
// that order between equal keys.
func Extract(feed Feed, cfg ViewConfig) []DeviceRecord {
	var allow map[string]struct{}
	if len(cfg.FilterByEntity) > 0 {
		allow = make(map[string]struct{}, len(cfg.FilterByEntity))
		for _, id := range cfg.FilterByEntity {
			allow[id] = struct{}{}
		}
	}

	ids := make([]string, 0, len(feed))
	for id := range feed {
		if strings.HasPrefix(id, EntityPrefix) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	records := make([]DeviceRecord, 0, len(ids))
	for _, id := range ids {
		st := feed[id]

		mac := stringAttr(st.Attributes, AttrMAC)
		if mac == "" {
			continue
		}
		if allow != nil {
			if _, ok := allow[id]; !ok {
				continue
			}
		}
		if !cfg.ShowOffline && st.State == StateNotHome {
			continue
		}

		name := stringAttr(st.Attributes, AttrFriendlyName)
		if name == "" {
			name = ObjectID(id)
		}

		records = append(records, DeviceRecord{
			ID:          id,
			Name:        name,
			MAC:         mac,
			IP:          stringAttr(st.Attributes, AttrIP),
			State:       st.State,
			LastChanged: st.LastChanged,
			LastUpdated: st.LastUpdated,
			Attributes:  st.Attributes,
		})
	}
	return records
}

// stringAttr returns a string attribute, or "" when it is absent or not a string.
func stringAttr(attrs map[string]any, key string) string {
	if attrs == nil {
		return ""
	}
	s, _ := attrs[key].(string)
	return s
}
