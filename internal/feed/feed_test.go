package feed

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/tracker-grid/internal/grid"
	"github.com/nerrad567/tracker-grid/internal/infrastructure/mqtt"
)

// recordingSink captures every pushed feed.
type recordingSink struct {
	mu    sync.Mutex
	feeds []grid.Feed
}

func (r *recordingSink) push(f grid.Feed) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feeds = append(r.feeds, f)
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.feeds)
}

func (r *recordingSink) last() grid.Feed {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.feeds) == 0 {
		return nil
	}
	return r.feeds[len(r.feeds)-1]
}

func record(state, mac string) grid.StateRecord {
	return grid.StateRecord{State: state, Attributes: map[string]any{grid.AttrMAC: mac}}
}

func TestStore_ReplaceKeepsOnlyTrackers(t *testing.T) {
	sink := &recordingSink{}
	store := NewStore(sink.push)

	store.Replace(grid.Feed{
		"device_tracker.phone": record("home", "aa:bb"),
		"light.kitchen":        {State: "on"},
	})

	require.Equal(t, 1, sink.count())
	assert.Len(t, sink.last(), 1)
	assert.Contains(t, sink.last(), "device_tracker.phone")
	assert.Equal(t, 1, store.Len())
}

func TestStore_ApplyAndRemove(t *testing.T) {
	sink := &recordingSink{}
	store := NewStore(sink.push)

	assert.True(t, store.Apply("device_tracker.phone", record("home", "aa:bb")))
	assert.False(t, store.Apply("sensor.temperature", grid.StateRecord{State: "21"}))
	assert.Equal(t, 1, sink.count(), "ignored entity does not notify")

	store.Apply("device_tracker.phone", record("not_home", "aa:bb"))
	assert.Equal(t, "not_home", sink.last()["device_tracker.phone"].State)

	store.Remove("device_tracker.unknown")
	assert.Equal(t, 2, sink.count(), "removing an unknown id does not notify")

	store.Remove("device_tracker.phone")
	assert.Equal(t, 3, sink.count())
	assert.Empty(t, sink.last())
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	store := NewStore(nil)
	attrs := map[string]any{grid.AttrMAC: "aa:bb"}
	store.Apply("device_tracker.phone", grid.StateRecord{State: "home", Attributes: attrs})

	attrs[grid.AttrMAC] = "changed"
	snap := store.Snapshot()
	assert.Equal(t, "aa:bb", snap["device_tracker.phone"].Attributes[grid.AttrMAC])

	delete(snap, "device_tracker.phone")
	assert.Equal(t, 1, store.Len())
}

func TestStore_SetSink(t *testing.T) {
	store := NewStore(nil)
	store.Apply("device_tracker.phone", record("home", "aa:bb"))

	sink := &recordingSink{}
	store.SetSink(sink.push)
	store.Apply("device_tracker.tablet", record("home", "cc:dd"))

	require.Equal(t, 1, sink.count())
	assert.Len(t, sink.last(), 2)
}

func TestStore_SinkCallsAreSerialised(t *testing.T) {
	var mu sync.Mutex
	inSink, maxInSink := 0, 0
	store := NewStore(func(grid.Feed) {
		mu.Lock()
		inSink++
		if inSink > maxInSink {
			maxInSink = inSink
		}
		mu.Unlock()
		time.Sleep(time.Millisecond)
		mu.Lock()
		inSink--
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Apply("device_tracker.phone", record("home", "aa:bb"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInSink)
}

// fakeSubscriber stands in for the MQTT client.
type fakeSubscriber struct {
	topic   string
	qos     byte
	handler mqtt.MessageHandler
	err     error
	removed []string
}

func (f *fakeSubscriber) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	if f.err != nil {
		return f.err
	}
	f.topic, f.qos, f.handler = topic, qos, handler
	return nil
}

func (f *fakeSubscriber) Unsubscribe(topic string) error {
	f.removed = append(f.removed, topic)
	return nil
}

func startStatestream(t *testing.T) (*fakeSubscriber, *recordingSink, *Statestream) {
	t.Helper()
	sub := &fakeSubscriber{}
	sink := &recordingSink{}
	ss := NewStatestream(sub, NewStore(sink.push), "homeassistant/", 1)
	require.NoError(t, ss.Start())
	return sub, sink, ss
}

func TestStatestream_Subscribes(t *testing.T) {
	sub, _, ss := startStatestream(t)

	assert.Equal(t, "homeassistant/device_tracker/+/+", sub.topic)
	assert.Equal(t, byte(1), sub.qos)

	require.NoError(t, ss.Stop())
	assert.Equal(t, []string{"homeassistant/device_tracker/+/+"}, sub.removed)
}

func TestStatestream_StartError(t *testing.T) {
	sub := &fakeSubscriber{err: errors.New("not connected")}
	ss := NewStatestream(sub, NewStore(nil), "homeassistant", 0)
	assert.Error(t, ss.Start())
}

func TestStatestream_FoldsValues(t *testing.T) {
	sub, sink, _ := startStatestream(t)
	h := sub.handler

	require.NoError(t, h("homeassistant/device_tracker/phone/mac", []byte(`"AA:BB:CC:DD:EE:FF"`)))
	assert.Equal(t, 0, sink.count(), "held until state arrives")

	require.NoError(t, h("homeassistant/device_tracker/phone/state", []byte("home")))
	require.NoError(t, h("homeassistant/device_tracker/phone/friendly_name", []byte(`"José's phone"`)))
	require.NoError(t, h("homeassistant/device_tracker/phone/signal", []byte(`-61`)))
	require.NoError(t, h("homeassistant/device_tracker/phone/last_changed", []byte("2026-03-01T12:00:00.123456+00:00")))

	rec := sink.last()["device_tracker.phone"]
	assert.Equal(t, "home", rec.State)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", rec.Attributes[grid.AttrMAC])
	assert.Equal(t, "José's phone", rec.Attributes[grid.AttrFriendlyName])
	assert.Equal(t, float64(-61), rec.Attributes["signal"])
	assert.Equal(t, 2026, rec.LastChanged.Year())
	assert.Equal(t, 123456000, rec.LastChanged.Nanosecond())

	records := grid.Extract(sink.last(), grid.DefaultViewConfig())
	require.Len(t, records, 1)
	assert.Equal(t, "José's phone", records[0].Name)
}

func TestStatestream_BareStringAttribute(t *testing.T) {
	sub, sink, _ := startStatestream(t)

	require.NoError(t, sub.handler("homeassistant/device_tracker/tv/state", []byte(`"not_home"`)))
	require.NoError(t, sub.handler("homeassistant/device_tracker/tv/ip", []byte("10.0.0.7")))

	rec := sink.last()["device_tracker.tv"]
	assert.Equal(t, "not_home", rec.State)
	assert.Equal(t, "10.0.0.7", rec.Attributes[grid.AttrIP])
}

func TestStatestream_EmptyPayloads(t *testing.T) {
	sub, sink, _ := startStatestream(t)
	h := sub.handler

	require.NoError(t, h("homeassistant/device_tracker/phone/state", []byte("home")))
	require.NoError(t, h("homeassistant/device_tracker/phone/ip", []byte(`"10.0.0.2"`)))
	require.NoError(t, h("homeassistant/device_tracker/phone/ip", nil))
	assert.NotContains(t, sink.last()["device_tracker.phone"].Attributes, grid.AttrIP)

	require.NoError(t, h("homeassistant/device_tracker/phone/state", nil))
	assert.Empty(t, sink.last())
}

func TestStatestream_IgnoresForeignTopics(t *testing.T) {
	sub, sink, _ := startStatestream(t)

	require.NoError(t, sub.handler("homeassistant/light/kitchen/state", []byte("on")))
	require.NoError(t, sub.handler("elsewhere/device_tracker/phone/state", []byte("home")))
	assert.Equal(t, 0, sink.count())
}

func TestStatestream_BadTimestamp(t *testing.T) {
	sub, _, _ := startStatestream(t)

	err := sub.handler("homeassistant/device_tracker/phone/last_updated", []byte("yesterday"))
	assert.Error(t, err)
}
