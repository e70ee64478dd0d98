package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/tracker-grid/internal/grid"
)

func TestNewReconnectEvent(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ev := NewReconnectEvent(grid.ActionResult{
		ID:        "device_tracker.phone",
		MAC:       "AA-BB-CC-DD-EE-FF",
		Domain:    "tplink_omada",
		Action:    "reconnect_client",
		Err:       errors.New("client offline"),
		StartedAt: started,
		Duration:  2 * time.Second,
	})

	if ev.Service != "tplink_omada.reconnect_client" {
		t.Errorf("Service = %q", ev.Service)
	}
	if ev.Outcome != grid.OutcomeError || ev.Error != "client offline" {
		t.Errorf("Outcome = %q, Error = %q", ev.Outcome, ev.Error)
	}
	if ev.DurationMS != 2000 {
		t.Errorf("DurationMS = %d, want 2000", ev.DurationMS)
	}
	if !ev.Timestamp.Equal(started.Add(2 * time.Second)) {
		t.Errorf("Timestamp = %v", ev.Timestamp)
	}
}

func TestReconnectEvent_JSONOmitsEmptyError(t *testing.T) {
	b, err := json.Marshal(NewReconnectEvent(grid.ActionResult{ID: "device_tracker.phone", StartedAt: time.Now()}))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(b), `"error"`) {
		t.Errorf("payload %s contains an error key for a success", b)
	}
	if !strings.Contains(string(b), `"outcome":"success"`) {
		t.Errorf("payload %s missing success outcome", b)
	}
}
