package tui

import (
	"context"
	"errors"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nerrad567/tracker-grid/internal/grid"
)

// Renderer forwards engine renders into a running program.
//
// Rebuild and Patch never block: renders wait in a one-slot mailbox until the
// forwarder hands them to the program. A newer render replaces a waiting one,
// and a waiting rebuild is never downgraded to a patch.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Renderer struct {
	mu      sync.Mutex
	pending *viewMsg
	wake    chan struct{}
}

var _ grid.Renderer = (*Renderer)(nil)

// NewRenderer creates an idle renderer.
func NewRenderer() *Renderer {
	return &Renderer{wake: make(chan struct{}, 1)}
}

// Rebuild implements grid.Renderer.
func (r *Renderer) Rebuild(v grid.View) {
	r.post(viewMsg{mode: grid.ModeRebuild, view: v})
}

// Patch implements grid.Renderer.
func (r *Renderer) Patch(v grid.View) {
	r.post(viewMsg{mode: grid.ModePatch, view: v})
}

func (r *Renderer) post(msg viewMsg) {
	r.mu.Lock()
	if r.pending != nil && r.pending.mode == grid.ModeRebuild {
		msg.mode = grid.ModeRebuild
	}
	r.pending = &msg
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// take removes the waiting render, if any.
func (r *Renderer) take() (viewMsg, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		return viewMsg{}, false
	}
	msg := *r.pending
	r.pending = nil
	return msg, true
}

// Forward delivers renders to send until ctx is cancelled.
func (r *Renderer) Forward(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.wake:
			if msg, ok := r.take(); ok {
				send(msg)
			}
		}
	}
}

// Options configure Run.
type Options struct {
	// AltScreen runs the table in the terminal's alternate screen.
	AltScreen bool
}

// Run shows the table until the user quits or ctx is cancelled.
// Both end the program cleanly and return nil.
//
// Parameters:
//   - ctx: Cancels the program
//   - ctl: Usually the grid engine
//   - r: A renderer registered with the same engine
//   - opts: Terminal options
func Run(ctx context.Context, ctl Controller, r *Renderer, opts Options) error {
	progOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.AltScreen {
		progOpts = append(progOpts, tea.WithAltScreen())
	}
	p := tea.NewProgram(NewModel(ctl), progOpts...)

	fwdCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go r.Forward(fwdCtx, p.Send)

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("running terminal ui: %w", err)
	}
	return nil
}
