package grid

// Renderer paints views produced by the engine.
//
// Rebuild redraws the whole surface. Patch replaces row content, the empty
// state and the sort indicators, and must leave the header and the filter
// control (including its focus) alone.
type Renderer interface {
	Rebuild(v View)
	Patch(v View)
}

// Fanout dispatches every render to several renderers in order.
type Fanout []Renderer

// Rebuild implements Renderer.
func (f Fanout) Rebuild(v View) {
	for _, r := range f {
		if r != nil {
			r.Rebuild(v)
		}
	}
}

// Patch implements Renderer.
func (f Fanout) Patch(v View) {
	for _, r := range f {
		if r != nil {
			r.Patch(v)
		}
	}
}
