// Package mqtt connects Tracker Grid to an MQTT broker.
//
// MQTT is optional. When enabled, the broker is used in two directions:
//
//	Home Assistant ──(mqtt_statestream)──► Broker ──► feed.Statestream
//	Tracker Grid   ──(status, reconnect events)──► Broker ──► dashboards
//
// The statestream side is an alternative to the Home Assistant WebSocket
// feed. The publishing side reports service status (with a last will for
// unexpected drops) and one ReconnectEvent per completed reconnect.
//
// The client reconnects with backoff and restores its subscriptions on
// every reconnect. Use TLS (broker.tls) outside a trusted network.
package mqtt
