package influxdb

import (
	"slices"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/tracker-grid/internal/grid"
)

// Measurement names written by Tracker Grid.
const (
	MeasurementReconnect = "reconnect"
	MeasurementPresence  = "presence"
)

// ReconnectPoint builds the point recorded for one reconnect call.
//
// Tags: entity_id, outcome, service. Fields: duration_ms, and error when the
// call failed. The timestamp is the moment the call completed.
func ReconnectPoint(r grid.ActionResult) *write.Point {
	fields := map[string]interface{}{
		"duration_ms": r.Duration.Milliseconds(),
	}
	if r.Err != nil {
		fields["error"] = r.Err.Error()
	}

	return write.NewPoint(
		MeasurementReconnect,
		map[string]string{
			"entity_id": r.ID,
			"outcome":   r.Outcome(),
			"service":   r.Domain + "." + r.Action,
		},
		fields,
		r.StartedAt.Add(r.Duration),
	)
}

// PresencePoints builds one point per device state present in the view.
// Each carries the number of rendered rows in that state as field count.
// States are emitted in sorted order; an empty view yields no points.
func PresencePoints(v grid.View, at time.Time) []*write.Point {
	counts := make(map[string]int)
	for _, row := range v.Rows {
		counts[row.Device.State]++
	}

	states := make([]string, 0, len(counts))
	for state := range counts {
		states = append(states, state)
	}
	slices.Sort(states)

	points := make([]*write.Point, 0, len(states))
	for _, state := range states {
		points = append(points, write.NewPoint(
			MeasurementPresence,
			map[string]string{"state": state},
			map[string]interface{}{"count": counts[state]},
			at,
		))
	}
	return points
}

// WriteReconnect records a completed reconnect. It matches the signature of
// grid.ActionController.OnResult. The write is non-blocking.
func (c *Client) WriteReconnect(r grid.ActionResult) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(ReconnectPoint(r))
}

// WritePresence records the per-state row counts of a rendered view.
func (c *Client) WritePresence(v grid.View) {
	if !c.IsConnected() {
		return
	}

	at := v.RenderedAt
	if at.IsZero() {
		at = time.Now()
	}
	for _, p := range PresencePoints(v, at) {
		c.writeAPI.WritePoint(p)
	}
}

// Rebuild implements grid.Renderer.
func (c *Client) Rebuild(v grid.View) { c.WritePresence(v) }

// Patch implements grid.Renderer.
func (c *Client) Patch(v grid.View) { c.WritePresence(v) }
