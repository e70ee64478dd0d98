package grid

// Fingerprint combines the fields whose change makes a row stale:
// id, state, IP and MAC joined with "_".
func Fingerprint(r DeviceRecord) string {
	return r.ID + "_" + r.State + "_" + r.IP + "_" + r.MAC
}

// Detect reports whether next differs observably from the previous accepted
// snapshot.
//
// A refresh is required when prev was never initialised, when the list
// length changed, when any record's fingerprint differs from the one stored
// for its id (a missing entry counts as different), or when the filter text
// changed. Fingerprints are compared by id, so a pure reordering is not a
// change. Sort-state changes are forced by the caller.
//
// Detect has no side effects.
func Detect(prev Snapshot, next []DeviceRecord, filter string) bool {
	if !prev.initialised {
		return true
	}
	if len(next) != len(prev.Records) {
		return true
	}
	if filter != prev.Filter {
		return true
	}
	for _, r := range next {
		fp, ok := prev.Fingerprints[r.ID]
		if !ok || fp != Fingerprint(r) {
			return true
		}
	}
	return false
}
