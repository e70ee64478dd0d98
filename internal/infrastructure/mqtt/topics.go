package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is the root of every topic Tracker Grid publishes.
const DefaultTopicPrefix = "trackergrid"

// StatestreamDomain is the Home Assistant domain mirrored from statestream.
const StatestreamDomain = "device_tracker"

// Topics builds the topics Tracker Grid publishes under Prefix.
type Topics struct {
	Prefix string
}

// NewTopics returns topic builders rooted at prefix. An empty prefix uses
// DefaultTopicPrefix; trailing slashes are trimmed.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

func (t Topics) root() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// SystemStatus carries the retained online, offline and last-will payloads:
// <prefix>/system/status.
func (t Topics) SystemStatus() string {
	return t.root() + "/system/status"
}

// ReconnectEvent carries reconnect results for one device:
// <prefix>/event/reconnect/<object_id>.
func (t Topics) ReconnectEvent(objectID string) string {
	return fmt.Sprintf("%s/event/reconnect/%s", t.root(), objectID)
}

// AllStatestreamTrackers matches every device_tracker value Home Assistant's
// mqtt_statestream publishes under base: <base>/device_tracker/+/+.
func AllStatestreamTrackers(base string) string {
	return fmt.Sprintf("%s/%s/+/+", strings.TrimRight(base, "/"), StatestreamDomain)
}

// ParseStatestreamTopic splits a statestream topic under base into the
// object id and leaf, where leaf is "state", a timestamp or an attribute
// name. ok is false for topics of other shapes or domains.
func ParseStatestreamTopic(base, topic string) (objectID, leaf string, ok bool) {
	rest, found := strings.CutPrefix(topic, strings.TrimRight(base, "/")+"/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[0] != StatestreamDomain || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}
