package hass

import (
	"encoding/json"
	"time"

	"github.com/nerrad567/tracker-grid/internal/grid"
)

// Message types of the Home Assistant WebSocket API.
const (
	typeAuthRequired    = "auth_required"
	typeAuth            = "auth"
	typeAuthOK          = "auth_ok"
	typeAuthInvalid     = "auth_invalid"
	typeResult          = "result"
	typeEvent           = "event"
	typePing            = "ping"
	typePong            = "pong"
	typeGetStates       = "get_states"
	typeSubscribeEvents = "subscribe_events"
	typeCallService     = "call_service"

	eventStateChanged = "state_changed"
)

// authMessage is sent in reply to auth_required.
type authMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

// command is an outgoing message carrying an id. Unused fields are omitted.
type command struct {
	ID          int64          `json:"id"`
	Type        string         `json:"type"`
	EventType   string         `json:"event_type,omitempty"`
	Domain      string         `json:"domain,omitempty"`
	Service     string         `json:"service,omitempty"`
	ServiceData map[string]any `json:"service_data,omitempty"`
}

// inbound is any message received from Home Assistant.
type inbound struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	Success   *bool           `json:"success,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *apiError       `json:"error,omitempty"`
	Event     *event          `json:"event,omitempty"`
	HAVersion string          `json:"ha_version,omitempty"`
	Message   string          `json:"message,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type event struct {
	EventType string    `json:"event_type"`
	Data      eventData `json:"data"`
}

type eventData struct {
	EntityID string `json:"entity_id"`
	NewState *State `json:"new_state"`
	OldState *State `json:"old_state"`
}

// State is one entity state as Home Assistant serialises it.
type State struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
}

// Record converts the state into a feed record.
func (s State) Record() grid.StateRecord {
	return grid.StateRecord{
		State:       s.State,
		Attributes:  s.Attributes,
		LastChanged: s.LastChanged,
		LastUpdated: s.LastUpdated,
	}
}

// feedFromStates builds a feed from a get_states result.
func feedFromStates(states []State) grid.Feed {
	feed := make(grid.Feed, len(states))
	for _, s := range states {
		feed[s.EntityID] = s.Record()
	}
	return feed
}
