// Package hass is a client for the Home Assistant WebSocket API.
//
// One connection carries both directions Tracker Grid needs:
//
//	Home Assistant ──(get_states, state_changed)──► Client ──► feed.Store
//	grid.ActionController ──(call_service)──► Client ──► Home Assistant
//
// # Protocol
//
// The session follows the documented handshake:
//
//	server: {"type":"auth_required"}
//	client: {"type":"auth","access_token":"..."}
//	server: {"type":"auth_ok"} | {"type":"auth_invalid","message":"..."}
//
// after which every command carries an increasing id and is answered by a
// result (or pong) with the same id. The client subscribes to state_changed
// before fetching states, so no change is lost between the two.
//
// # Usage
//
//	client := hass.New(hass.OptionsFromConfig(cfg.HomeAssistant), store)
//	client.SetLogger(logger)
//	go client.Run(ctx)
//
//	engine, _ := grid.NewEngine(viewCfg, grid.Deps{Transport: client})
//
// # Thread Safety
//
// All methods are safe for concurrent use. Results and events are handled on
// a single read goroutine in arrival order.
package hass
