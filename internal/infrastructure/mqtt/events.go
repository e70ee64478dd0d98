package mqtt

import (
	"time"

	"github.com/nerrad567/tracker-grid/internal/grid"
)

// ReconnectEvent is the JSON payload published for each completed reconnect.
type ReconnectEvent struct {
	EntityID   string    `json:"entity_id"`
	MAC        string    `json:"mac"`
	Service    string    `json:"service"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewReconnectEvent converts a reconnect result into its event payload.
func NewReconnectEvent(r grid.ActionResult) ReconnectEvent {
	ev := ReconnectEvent{
		EntityID:   r.ID,
		MAC:        r.MAC,
		Service:    r.Domain + "." + r.Action,
		Outcome:    r.Outcome(),
		DurationMS: r.Duration.Milliseconds(),
		Timestamp:  r.StartedAt.Add(r.Duration).UTC(),
	}
	if r.Err != nil {
		ev.Error = r.Err.Error()
	}
	return ev
}

// PublishReconnect publishes a reconnect result to
// <prefix>/event/reconnect/<object_id>. It matches the signature of
// grid.ActionController.OnResult, so failures are logged rather than returned.
func (c *Client) PublishReconnect(r grid.ActionResult) {
	topic := c.topics.ReconnectEvent(grid.ObjectID(r.ID))
	if err := c.PublishJSON(topic, NewReconnectEvent(r), false); err != nil {
		if logger := c.getLogger(); logger != nil {
			logger.Warn("publishing reconnect event failed",
				"topic", topic,
				"error", err,
			)
		}
	}
}
