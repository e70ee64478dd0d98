package feed

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/tracker-grid/internal/grid"
	"github.com/nerrad567/tracker-grid/internal/infrastructure/mqtt"
)

// Statestream leaves that are not attributes.
const (
	leafState       = "state"
	leafLastChanged = "last_changed"
	leafLastUpdated = "last_updated"
)

// Subscriber is the part of the MQTT client Statestream needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Logger is the logging interface used by the feed sources.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Statestream folds Home Assistant mqtt_statestream messages into a Store.
//
// mqtt_statestream publishes each value of an entity on its own topic:
//
//	<base>/device_tracker/<object_id>/state          raw state string
//	<base>/device_tracker/<object_id>/<attribute>    JSON-encoded value
//	<base>/device_tracker/<object_id>/last_changed   ISO-8601 timestamp
//
// Values are merged per entity. An entity reaches the store once its state
// is known; an empty retained state payload removes it.
//
// Thread Safety:
//   - Safe for concurrent message delivery.
type Statestream struct {
	sub    Subscriber
	store  *Store
	base   string
	qos    byte
	logger Logger

	mu      sync.Mutex
	partial map[string]*grid.StateRecord
}

// NewStatestream creates a statestream consumer for topics under base.
//
// Parameters:
//   - sub: MQTT client used for the subscription
//   - store: Destination feed store
//   - base: mqtt_statestream base_topic (e.g. "homeassistant")
//   - qos: Subscription QoS
//
// Returns:
//   - *Statestream: Consumer ready for Start
func NewStatestream(sub Subscriber, store *Store, base string, qos byte) *Statestream {
	return &Statestream{
		sub:     sub,
		store:   store,
		base:    strings.TrimRight(base, "/"),
		qos:     qos,
		logger:  noopLogger{},
		partial: make(map[string]*grid.StateRecord),
	}
}

// SetLogger sets the logger.
func (s *Statestream) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// Topic returns the subscription pattern.
func (s *Statestream) Topic() string {
	return mqtt.AllStatestreamTrackers(s.base)
}

// Start subscribes to every device_tracker value under the base topic.
// Retained values are delivered immediately by the broker.
func (s *Statestream) Start() error {
	if err := s.sub.Subscribe(s.Topic(), s.qos, s.handle); err != nil {
		return fmt.Errorf("subscribing to statestream: %w", err)
	}
	return nil
}

// Stop removes the subscription.
func (s *Statestream) Stop() error {
	return s.sub.Unsubscribe(s.Topic())
}

// handle is the MQTT message handler.
func (s *Statestream) handle(topic string, payload []byte) error {
	objectID, leaf, ok := mqtt.ParseStatestreamTopic(s.base, topic)
	if !ok {
		return nil
	}
	entityID := grid.EntityPrefix + objectID

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, known := s.partial[entityID]
	if !known {
		rec = &grid.StateRecord{Attributes: make(map[string]any)}
		s.partial[entityID] = rec
	}

	switch leaf {
	case leafState:
		if len(payload) == 0 {
			delete(s.partial, entityID)
			s.store.Remove(entityID)
			return nil
		}
		rec.State = unquote(payload)
	case leafLastChanged, leafLastUpdated:
		ts, err := parseTimestamp(payload)
		if err != nil {
			return fmt.Errorf("%s %s: %w", entityID, leaf, err)
		}
		if leaf == leafLastChanged {
			rec.LastChanged = ts
		} else {
			rec.LastUpdated = ts
		}
	default:
		if len(payload) == 0 {
			delete(rec.Attributes, leaf)
			break
		}
		var v any
		if err := json.Unmarshal(payload, &v); err != nil {
			// Older statestream versions publish bare strings.
			v = string(payload)
		}
		rec.Attributes[leaf] = v
	}

	if rec.State == "" {
		s.logger.Debug("statestream value held until state arrives", "entity_id", entityID, "leaf", leaf)
		return nil
	}
	s.store.Apply(entityID, *rec)
	return nil
}

// unquote returns the string value of payload, decoding it when it is a
// JSON string.
func unquote(payload []byte) string {
	if len(payload) > 1 && payload[0] == '"' {
		var s string
		if json.Unmarshal(payload, &s) == nil {
			return s
		}
	}
	return string(payload)
}

func parseTimestamp(payload []byte) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, unquote(payload))
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp: %w", err)
	}
	return ts, nil
}
