package grid

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings() ActionSettings {
	return ActionSettings{
		Domain:       "tplink_omada",
		Action:       "reconnect_client",
		MACParam:     "mac",
		FormatMAC:    true,
		RestoreDelay: 3 * time.Second,
		Timeout:      10 * time.Second,
	}
}

type resultLog struct {
	mu      sync.Mutex
	results []ActionResult
}

func (l *resultLog) add(r ActionResult) {
	l.mu.Lock()
	l.results = append(l.results, r)
	l.mu.Unlock()
}

func (l *resultLog) get() []ActionResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ActionResult(nil), l.results...)
}

func TestFormatMAC(t *testing.T) {
	tests := []struct {
		mac     string
		enabled bool
		want    string
	}{
		{"aa:bb:cc:dd:ee:ff", true, "AA-BB-CC-DD-EE-FF"},
		{"aa:bb:cc:dd:ee:ff", false, "aa:bb:cc:dd:ee:ff"},
		{"AA-BB-CC-DD-EE-FF", true, "AA-BB-CC-DD-EE-FF"},
		{"", true, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatMAC(tt.mac, tt.enabled), "FormatMAC(%q, %v)", tt.mac, tt.enabled)
	}
}

func TestActionController_SuccessRestoresAfterDelay(t *testing.T) {
	clk := newFakeClock()
	tr := newFakeTransport()
	tr.hold = true
	c := NewActionController(clk, tr, testSettings())
	defer c.Close()

	var results resultLog
	c.OnResult(results.add)

	require.True(t, c.Trigger("device_tracker.phone", "aa:bb:cc:dd:ee:ff"))

	st := c.State("device_tracker.phone")
	assert.Equal(t, PhasePending, st.Phase)
	assert.Equal(t, LabelReconnecting, st.Label)
	assert.True(t, st.Disabled)

	assert.False(t, c.Trigger("device_tracker.phone", "aa:bb:cc:dd:ee:ff"), "click while pending is ignored")

	eventually(t, func() bool { return len(tr.Calls()) == 1 }, "transport called")
	call := tr.Calls()[0]
	assert.Equal(t, "tplink_omada", call.Domain)
	assert.Equal(t, "reconnect_client", call.Action)
	assert.Equal(t, map[string]any{"mac": "AA-BB-CC-DD-EE-FF"}, call.Data)

	tr.release <- nil
	eventually(t, func() bool { return c.State("device_tracker.phone").Phase == PhaseSucceeded }, "succeeded")
	assert.Equal(t, LabelSent, c.State("device_tracker.phone").Label)
	assert.False(t, c.Trigger("device_tracker.phone", "aa:bb:cc:dd:ee:ff"), "click while showing result is ignored")

	clk.Step(2 * time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, PhaseSucceeded, c.State("device_tracker.phone").Phase)

	clk.Step(time.Second)
	eventually(t, func() bool { return c.State("device_tracker.phone").Phase == PhaseIdle }, "restored to idle")

	st = c.State("device_tracker.phone")
	assert.Equal(t, LabelReconnect, st.Label, "original label restored")
	assert.False(t, st.Disabled)

	got := results.get()
	require.Len(t, got, 1)
	assert.Equal(t, OutcomeSuccess, got[0].Outcome())
	assert.Equal(t, "AA-BB-CC-DD-EE-FF", got[0].MAC)
}

func TestActionController_FailureRestoresAfterDelay(t *testing.T) {
	clk := newFakeClock()
	tr := newFakeTransport()
	tr.err = errTransport
	c := NewActionController(clk, tr, testSettings())
	defer c.Close()

	var results resultLog
	c.OnResult(results.add)

	require.True(t, c.Trigger("device_tracker.tv", "11:22:33:44:55:66"))
	eventually(t, func() bool { return c.State("device_tracker.tv").Phase == PhaseFailed }, "failed")
	assert.Equal(t, LabelError, c.State("device_tracker.tv").Label)

	clk.Step(3 * time.Second)
	eventually(t, func() bool { return c.State("device_tracker.tv").Phase == PhaseIdle }, "restored")

	got := results.get()
	require.Len(t, got, 1)
	assert.Equal(t, OutcomeError, got[0].Outcome())
	assert.ErrorIs(t, got[0].Err, errTransport)

	assert.True(t, c.Trigger("device_tracker.tv", "11:22:33:44:55:66"), "idle row accepts a new click")
}

func TestActionController_UnformattedMAC(t *testing.T) {
	tr := newFakeTransport()
	settings := testSettings()
	settings.FormatMAC = false
	settings.MACParam = "client_mac"
	c := NewActionController(newFakeClock(), tr, settings)
	defer c.Close()

	require.True(t, c.Trigger("device_tracker.phone", "aa:bb:cc:dd:ee:ff"))
	eventually(t, func() bool { return len(tr.Calls()) == 1 }, "transport called")
	assert.Equal(t, map[string]any{"client_mac": "aa:bb:cc:dd:ee:ff"}, tr.Calls()[0].Data)
}

func TestActionController_Guards(t *testing.T) {
	t.Run("empty mac", func(t *testing.T) {
		tr := newFakeTransport()
		c := NewActionController(newFakeClock(), tr, testSettings())
		defer c.Close()

		assert.False(t, c.Trigger("device_tracker.a", ""))
		assert.Equal(t, PhaseIdle, c.State("device_tracker.a").Phase)
	})

	t.Run("nil transport", func(t *testing.T) {
		c := NewActionController(newFakeClock(), nil, testSettings())
		defer c.Close()

		assert.False(t, c.Trigger("device_tracker.a", "aa"))
	})

	t.Run("transport unavailable", func(t *testing.T) {
		tr := newFakeTransport()
		tr.available = false
		c := NewActionController(newFakeClock(), tr, testSettings())
		defer c.Close()

		assert.False(t, c.Trigger("device_tracker.a", "aa"))
		assert.Empty(t, tr.Calls())
	})

	t.Run("closed", func(t *testing.T) {
		c := NewActionController(newFakeClock(), newFakeTransport(), testSettings())
		c.Close()

		assert.False(t, c.Trigger("device_tracker.a", "aa"))
	})
}

func TestActionController_IndependentRows(t *testing.T) {
	clk := newFakeClock()
	tr := newFakeTransport()
	tr.hold = true
	c := NewActionController(clk, tr, testSettings())
	defer c.Close()

	require.True(t, c.Trigger("device_tracker.a", "aa"))
	require.True(t, c.Trigger("device_tracker.b", "bb"))
	assert.Equal(t, 2, c.Busy())
	eventually(t, func() bool { return len(tr.Calls()) == 2 }, "both calls in flight")

	tr.release <- nil
	eventually(t, func() bool {
		return c.State("device_tracker.a").Phase != PhasePending || c.State("device_tracker.b").Phase != PhasePending
	}, "one call resolved")

	var first, second string
	if c.State("device_tracker.a").Phase == PhaseSucceeded {
		first, second = "device_tracker.a", "device_tracker.b"
	} else {
		first, second = "device_tracker.b", "device_tracker.a"
	}
	assert.Equal(t, PhasePending, c.State(second).Phase)

	clk.Step(2 * time.Second)
	tr.release <- errTransport
	eventually(t, func() bool { return c.State(second).Phase == PhaseFailed }, "second failed")

	clk.Step(time.Second)
	eventually(t, func() bool { return c.State(first).Phase == PhaseIdle }, "first restored on its own timer")
	assert.Equal(t, PhaseFailed, c.State(second).Phase, "second keeps its result")

	clk.Step(2 * time.Second)
	eventually(t, func() bool { return c.State(second).Phase == PhaseIdle }, "second restored")
}

func TestActionController_PruneDropsStateAndTimer(t *testing.T) {
	clk := newFakeClock()
	tr := newFakeTransport()
	c := NewActionController(clk, tr, testSettings())
	defer c.Close()

	var results resultLog
	c.OnResult(results.add)

	require.True(t, c.Trigger("device_tracker.gone", "aa"))
	eventually(t, func() bool { return c.State("device_tracker.gone").Phase == PhaseSucceeded }, "succeeded")

	c.Prune(map[string]struct{}{"device_tracker.other": {}})

	assert.Equal(t, 0, c.Busy())
	assert.Equal(t, PhaseIdle, c.State("device_tracker.gone").Phase)
	eventually(t, func() bool { return !clk.HasWaiters() }, "restoration timer cancelled")
	assert.Len(t, results.get(), 1)
}

func TestActionController_PruneKeepsPendingRow(t *testing.T) {
	clk := newFakeClock()
	tr := newFakeTransport()
	tr.hold = true
	c := NewActionController(clk, tr, testSettings())
	defer c.Close()

	var results resultLog
	c.OnResult(results.add)

	require.True(t, c.Trigger("device_tracker.gone", "aa"))
	eventually(t, func() bool { return len(tr.Calls()) == 1 }, "call in flight")

	c.Prune(nil)
	assert.Equal(t, PhasePending, c.State("device_tracker.gone").Phase)
	assert.False(t, c.Trigger("device_tracker.gone", "aa"), "still busy after prune")

	tr.release <- nil
	eventually(t, func() bool { return len(results.get()) == 1 }, "result reported")
	assert.Equal(t, PhaseSucceeded, c.State("device_tracker.gone").Phase)

	c.Prune(nil)
	assert.Equal(t, PhaseIdle, c.State("device_tracker.gone").Phase)
	assert.False(t, clk.HasWaiters(), "restoration timer cancelled")
	assert.Len(t, tr.Calls(), 1)
}

func TestActionController_OnChange(t *testing.T) {
	clk := newFakeClock()
	tr := newFakeTransport()
	c := NewActionController(clk, tr, testSettings())
	defer c.Close()

	var (
		mu      sync.Mutex
		changes int
	)
	c.OnChange(func() {
		mu.Lock()
		changes++
		mu.Unlock()
	})
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return changes
	}

	require.True(t, c.Trigger("device_tracker.a", "aa"))
	eventually(t, func() bool { return count() == 2 }, "pending and succeeded")

	clk.Step(3 * time.Second)
	eventually(t, func() bool { return count() == 3 }, "restored")
}
