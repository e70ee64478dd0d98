// Package grid implements the derived-view engine behind the device tracker
// table.
//
// The engine turns a frequently replaced feed of Home Assistant state records
// into a stable, filtered and sorted list of devices, decides whether that list
// materially changed, and hands an immutable view-model to one or more
// renderers. It also owns the per-row reconnect action lifecycle.
//
// # Pipeline
//
//	Feed ──► Extract ──► Filter ──► Sort ──► truncate ──► Detect ──► Scheduler ──► Renderer
//	                        ▲          ▲                                 ▲
//	               SetFilter│ ToggleSort│                  ActionController│(visual changes)
//
// Every stage up to Detect is a pure function and can be used on its own.
// The Engine composes them and is the single owner of the mutable state:
// the last feed, the accepted Snapshot, the active sort state and the filter
// text.
//
// # Rendering
//
// Renders are debounced by the Scheduler (100ms by default). The first render
// after construction, and the first after a configuration change, is a full
// rebuild. Every other render is a patch that only replaces row content.
// Renderers receive View values and never see engine internals.
//
// # Reconnect actions
//
// Each row has an independent state machine:
//
//	idle ──► pending ──► succeeded ──┐
//	                 └─► failed ─────┴──(restore delay)──► idle
//
// A click is ignored unless the row is idle, has a MAC address and the
// transport is available. Failures are logged and shown on the row; they are
// never returned to the caller.
//
// # Thread Safety
//
// All exported methods of Engine, Scheduler and ActionController are safe for
// concurrent use. Renderers are called outside every engine lock, one render
// at a time.
//
// # Usage
//
//	engine, err := grid.NewEngine(grid.DefaultViewConfig(), grid.Deps{
//	    Transport: hassClient,
//	    Renderer:  grid.Fanout{hub, terminal},
//	})
//	if err != nil {
//	    return err
//	}
//	defer engine.Close()
//
//	store.SetSink(engine.PushFeed)
package grid
