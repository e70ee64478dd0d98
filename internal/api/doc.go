// Package api implements the HTTP REST API and WebSocket server for Tracker Grid.
//
// This package provides:
//   - REST endpoints to read the grid, drive the shared filter and sort, and
//     trigger reconnects
//   - The reconnect history backed by the audit repository
//   - A WebSocket hub that receives the engine's renders (grid.rebuild and
//     grid.patch events)
//   - JWT bearer authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The grid engine is the single owner of the table state. The API never
// derives rows itself: reads return engine.View() and writes call the
// engine's operations. Every debounced render reaches WebSocket clients
// through the Hub, which is one of the engine's renderers.
//
// # Security
//
// Tokens are issued offline with `trackergrid token`. The role claim gates
// each route: viewers read, operators also filter, sort and reconnect.
// WebSocket connections use single-use tickets so the JWT never appears in
// a URL.
//
// # Graceful Degradation
//
// The server runs without Home Assistant or a history database. Reconnect
// clicks are then rejected by the engine's guard (409) and the history
// endpoint returns 503.
package api
