// Package panel serves the browser view of the device grid as embedded assets.
//
// The page is plain HTML and JavaScript compiled into the binary with
// go:embed. It asks for an API token once, keeps it in localStorage, and
// then follows the grid over the WebSocket API: grid.rebuild events redraw
// the whole card, grid.patch events replace rows and sort indicators only,
// so typing in the filter box never loses focus.
//
// Handler implements SPA fallback: unknown paths serve index.html.
package panel
