package grid

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"k8s.io/utils/clock"
	testingclock "k8s.io/utils/clock/testing"
)

var errTransport = errors.New("omada controller unreachable")

// tracker builds a device_tracker state record.
func tracker(state, name, mac, ip string) StateRecord {
	attrs := map[string]any{}
	if name != "" {
		attrs[AttrFriendlyName] = name
	}
	if mac != "" {
		attrs[AttrMAC] = mac
	}
	if ip != "" {
		attrs[AttrIP] = ip
	}
	return StateRecord{
		State:       state,
		Attributes:  attrs,
		LastChanged: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		LastUpdated: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newFakeClock() *testingclock.FakeClock {
	return testingclock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

// asyncClock runs AfterFunc callbacks on their own goroutine.
// FakeClock.Step calls them while holding the clock lock, so a callback that
// reads the clock or schedules another timer would otherwise deadlock.
type asyncClock struct {
	*testingclock.FakeClock
}

var _ clock.WithDelayedExecution = asyncClock{}

func (c asyncClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	return c.FakeClock.AfterFunc(d, func() { go f() })
}

// eventually waits for cond. Use it after stepping an asyncClock, whose
// callbacks finish after Step returns.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, time.Millisecond, msg)
}

type serviceCall struct {
	Domain string
	Action string
	Data   map[string]any
}

// fakeTransport records calls. When hold is set, calls block until
// release delivers their result.
type fakeTransport struct {
	mu        sync.Mutex
	available bool
	err       error
	hold      bool
	calls     []serviceCall
	release   chan error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{available: true, release: make(chan error, 16)}
}

func (f *fakeTransport) Available() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.available
}

func (f *fakeTransport) CallService(ctx context.Context, domain, action string, data map[string]any) error {
	f.mu.Lock()
	f.calls = append(f.calls, serviceCall{Domain: domain, Action: action, Data: data})
	hold, err := f.hold, f.err
	f.mu.Unlock()

	if !hold {
		return err
	}
	select {
	case err := <-f.release:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeTransport) Calls() []serviceCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]serviceCall(nil), f.calls...)
}

type renderCall struct {
	Mode Mode
	View View
}

// recordingRenderer keeps every render it receives.
type recordingRenderer struct {
	mu      sync.Mutex
	renders []renderCall
}

func (r *recordingRenderer) Rebuild(v View) {
	r.mu.Lock()
	r.renders = append(r.renders, renderCall{Mode: ModeRebuild, View: v})
	r.mu.Unlock()
}

func (r *recordingRenderer) Patch(v View) {
	r.mu.Lock()
	r.renders = append(r.renders, renderCall{Mode: ModePatch, View: v})
	r.mu.Unlock()
}

func (r *recordingRenderer) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.renders)
}

func (r *recordingRenderer) Last() renderCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renders[len(r.renders)-1]
}

func ids(records []DeviceRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func rowIDs(v View) []string {
	out := make([]string, len(v.Rows))
	for i, r := range v.Rows {
		out[i] = r.Device.ID
	}
	return out
}
