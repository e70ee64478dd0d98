// Package influxdb provides optional InfluxDB telemetry for Tracker Grid.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched point writing and health monitoring.
//
// # Purpose
//
// Two measurements are written:
//   - reconnect: one point per completed reconnect call
//     (tags entity_id, outcome, service; field duration_ms)
//   - presence: per-state row counts of every rendered grid view
//     (tag state; field count)
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	engine.Actions().OnResult(client.WriteReconnect)
//	renderers = append(renderers, client) // presence on every render
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are reported via the
// SetOnError callback. Connection and health check errors are returned directly.
package influxdb
