package influxdb

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/tracker-grid/internal/grid"
	"github.com/nerrad567/tracker-grid/internal/infrastructure/config"
)

// recordingWriter captures points instead of sending them.
type recordingWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (w *recordingWriter) WritePoint(p *write.Point) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.points = append(w.points, p)
}

func (w *recordingWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushes++
}

func tagValue(p *write.Point, key string) string {
	for _, tag := range p.TagList() {
		if tag.Key == key {
			return tag.Value
		}
	}
	return ""
}

func fieldValue(p *write.Point, key string) interface{} {
	for _, f := range p.FieldList() {
		if f.Key == key {
			return f.Value
		}
	}
	return nil
}

func presenceView() grid.View {
	row := func(id, state string) grid.RowView {
		return grid.RowView{Device: grid.DeviceRecord{ID: id, State: state}}
	}
	return grid.View{
		Rows: []grid.RowView{
			row("device_tracker.a", "home"),
			row("device_tracker.b", "not_home"),
			row("device_tracker.c", "home"),
		},
		RenderedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestReconnectPoint(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		err     error
		outcome string
	}{
		{"success", nil, grid.OutcomeSuccess},
		{"failure", errors.New("timeout"), grid.OutcomeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ReconnectPoint(grid.ActionResult{
				ID:        "device_tracker.phone",
				Domain:    "tplink_omada",
				Action:    "reconnect_client",
				Err:       tt.err,
				StartedAt: started,
				Duration:  250 * time.Millisecond,
			})

			if p.Name() != MeasurementReconnect {
				t.Errorf("Name() = %q, want %q", p.Name(), MeasurementReconnect)
			}
			if got := tagValue(p, "outcome"); got != tt.outcome {
				t.Errorf("outcome tag = %q, want %q", got, tt.outcome)
			}
			if got := tagValue(p, "entity_id"); got != "device_tracker.phone" {
				t.Errorf("entity_id tag = %q", got)
			}
			if got := tagValue(p, "service"); got != "tplink_omada.reconnect_client" {
				t.Errorf("service tag = %q", got)
			}
			if got := fieldValue(p, "duration_ms"); got != int64(250) {
				t.Errorf("duration_ms = %v, want 250", got)
			}
			if (fieldValue(p, "error") != nil) != (tt.err != nil) {
				t.Errorf("error field presence = %v, want %v", fieldValue(p, "error") != nil, tt.err != nil)
			}
			if !p.Time().Equal(started.Add(250 * time.Millisecond)) {
				t.Errorf("Time() = %v", p.Time())
			}
		})
	}
}

func TestPresencePoints(t *testing.T) {
	v := presenceView()
	points := PresencePoints(v, v.RenderedAt)

	if len(points) != 2 {
		t.Fatalf("len(points) = %d, want 2", len(points))
	}
	if tagValue(points[0], "state") != "home" || fieldValue(points[0], "count") != int64(2) {
		t.Errorf("points[0] = state %q count %v", tagValue(points[0], "state"), fieldValue(points[0], "count"))
	}
	if tagValue(points[1], "state") != "not_home" || fieldValue(points[1], "count") != int64(1) {
		t.Errorf("points[1] = state %q count %v", tagValue(points[1], "state"), fieldValue(points[1], "count"))
	}

	if got := PresencePoints(grid.View{}, time.Now()); len(got) != 0 {
		t.Errorf("empty view produced %d points", len(got))
	}
}

func TestClient_RendererWritesPresence(t *testing.T) {
	w := &recordingWriter{}
	c := newClient(w, config.InfluxDBConfig{Enabled: true})

	var r grid.Renderer = c
	r.Rebuild(presenceView())
	r.Patch(presenceView())

	if len(w.points) != 4 {
		t.Errorf("wrote %d points, want 4", len(w.points))
	}
}

func TestClient_WriteReconnect(t *testing.T) {
	w := &recordingWriter{}
	c := newClient(w, config.InfluxDBConfig{Enabled: true})

	c.WriteReconnect(grid.ActionResult{ID: "device_tracker.phone", StartedAt: time.Now()})
	if len(w.points) != 1 {
		t.Fatalf("wrote %d points, want 1", len(w.points))
	}
}

func TestClient_CloseFlushesAndStopsWrites(t *testing.T) {
	w := &recordingWriter{}
	c := newClient(w, config.InfluxDBConfig{Enabled: true})

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if w.flushes != 1 {
		t.Errorf("flushes = %d, want 1", w.flushes)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}

	c.WriteReconnect(grid.ActionResult{ID: "late"})
	c.WritePresence(presenceView())
	c.Flush()
	if len(w.points) != 0 || w.flushes != 1 {
		t.Errorf("writes after Close: points=%d flushes=%d", len(w.points), w.flushes)
	}

	// A second close is harmless.
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestClient_NilIsDisconnected(t *testing.T) {
	var c *Client
	if c.IsConnected() {
		t.Error("nil client reports connected")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
}
