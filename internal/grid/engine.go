package grid

import (
	"fmt"
	"sync"

	"k8s.io/utils/clock"
)

// Deps holds the collaborators of an Engine. Every field is optional.
type Deps struct {
	// Transport carries reconnect calls. Nil disables the action column's
	// behaviour without hiding it.
	Transport Transport

	// Renderer receives debounced views. Nil renders nowhere; View still works.
	Renderer Renderer

	// Clock drives debouncing and action restoration. Nil uses the real clock.
	Clock clock.WithDelayedExecution

	Logger Logger
}

// Engine is the single owner of the derived grid state.
//
// It keeps the last feed, the accepted Snapshot, the active sort state and
// filter text, and composes the pure pipeline stages with the Scheduler and
// the ActionController.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Renderers are called outside the engine lock, one render at a time.
type Engine struct {
	clock    clock.WithDelayedExecution
	renderer Renderer
	logger   Logger

	sched   *Scheduler
	actions *ActionController

	mu     sync.Mutex
	cfg    ViewConfig
	feed   Feed
	snap   Snapshot
	sort   SortState
	filter string
	total  int
	closed bool

	renderMu sync.Mutex
}

// NewEngine creates an engine for cfg. Nothing renders until the first
// PushFeed.
//
// Returns:
//   - *Engine: Ready to receive feed pushes
//   - error: Wraps ErrInvalidConfig if cfg fails validation
func NewEngine(cfg ViewConfig, deps Deps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clk := deps.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	e := &Engine{
		clock:    clk,
		renderer: deps.Renderer,
		logger:   logger,
		cfg:      cfg,
		sort:     cfg.DefaultSort(),
	}
	e.sched = NewScheduler(clk, cfg.Debounce, e.render)
	e.actions = NewActionController(clk, deps.Transport, cfg.ActionSettings())
	e.actions.SetLogger(logger)
	e.actions.OnChange(e.sched.Trigger)

	return e, nil
}

// Actions returns the engine's action controller, mainly to register
// result hooks.
func (e *Engine) Actions() *ActionController {
	return e.actions
}

// PushFeed replaces the state feed and re-derives the grid. The feed must
// not be modified afterwards.
func (e *Engine) PushFeed(feed Feed) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.feed = feed
	if e.deriveLocked(false) {
		e.logger.Debug("grid changed", "rows", len(e.snap.Records), "total", e.total)
	}
}

// SetFilter sets the free-text filter and re-derives against the last feed.
func (e *Engine) SetFilter(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.filter = text
	e.deriveLocked(false)
}

// ClearFilter removes the free-text filter.
func (e *Engine) ClearFilter() {
	e.SetFilter("")
}

// Filter returns the active filter text.
func (e *Engine) Filter() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filter
}

// ToggleSort applies a header click: the active column flips direction,
// another column becomes active in ascending order.
//
// Returns ErrSortingDisabled or ErrColumnNotSortable when the click has no
// effect. A successful toggle always refreshes the grid.
func (e *Engine) ToggleSort(col Column) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkSortableLocked(col); err != nil {
		return err
	}
	key, _ := col.SortKey()
	if e.sort.Key == key {
		e.sort.Order = e.sort.Order.Reverse()
	} else {
		e.sort = SortState{Key: key, Order: Ascending}
	}
	e.deriveLocked(true)
	return nil
}

// SetSort sets the sort state explicitly.
func (e *Engine) SetSort(key SortKey, order SortOrder) error {
	if !key.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownSortKey, key)
	}
	if !order.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownSortOrder, order)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkSortableLocked(Column(key)); err != nil {
		return err
	}
	e.sort = SortState{Key: key, Order: order}
	e.deriveLocked(true)
	return nil
}

// Sort returns the active sort state.
func (e *Engine) Sort() SortState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sort
}

func (e *Engine) checkSortableLocked(col Column) error {
	if !e.cfg.EnableSorting {
		return ErrSortingDisabled
	}
	if !col.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, col)
	}
	if !e.cfg.IsSortable(col) {
		return fmt.Errorf("%w: %q", ErrColumnNotSortable, col)
	}
	return nil
}

// Reconnect triggers the reconnect action for a row of the current grid.
//
// Returns:
//   - bool: true if a call started; false if the guard rejected the click
//     (no transport, transport unavailable, or the row is busy)
//   - error: ErrRowNotFound if id is not a rendered row
func (e *Engine) Reconnect(id string) (bool, error) {
	e.mu.Lock()
	var (
		mac   string
		found bool
	)
	for _, r := range e.snap.Records {
		if r.ID == id {
			mac, found = r.MAC, true
			break
		}
	}
	e.mu.Unlock()

	if !found {
		return false, fmt.Errorf("%w: %s", ErrRowNotFound, id)
	}
	return e.actions.Trigger(id, mac), nil
}

// Configure applies a new configuration. The sort state returns to the
// configured default, the filter is cleared and the next render is a
// rebuild.
func (e *Engine) Configure(cfg ViewConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.cfg = cfg
	e.sort = cfg.DefaultSort()
	e.filter = ""
	e.sched.SetDelay(cfg.Debounce)
	e.sched.Invalidate()
	e.actions.Configure(cfg.ActionSettings())
	e.deriveLocked(true)

	e.logger.Info("grid reconfigured", "title", cfg.Title, "columns", len(cfg.Columns))
	return nil
}

// Config returns the active configuration.
func (e *Engine) Config() ViewConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Snapshot returns the last accepted snapshot.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap
}

// View returns the current view-model.
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewLocked()
}

// CardSize returns the host layout height of the current grid.
func (e *Engine) CardSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return CardSize(len(e.snap.Records))
}

// Close stops the scheduler, cancels in-flight reconnects and stops every
// restoration timer. Later calls are no-ops.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.sched.Stop()
	e.actions.Close()
}

// deriveLocked runs the pipeline against the stored feed. Action state of
// rows that left the extracted feed is pruned first. When the result
// differs from the accepted snapshot, or force is set, the snapshot is
// replaced and a render is scheduled.
// Caller must hold e.mu.
func (e *Engine) deriveLocked(force bool) bool {
	extracted := Extract(e.feed, e.cfg)
	// Rows hidden by the filter or the row limit keep their action state.
	e.actions.Prune(recordIDs(extracted))

	records := Filter(extracted, e.filter)
	records = Sort(records, e.sort.Key, e.sort.Order)

	total := len(records)
	if e.cfg.MaxDevices > 0 && len(records) > e.cfg.MaxDevices {
		records = records[:e.cfg.MaxDevices]
	}

	if !force && !Detect(e.snap, records, e.filter) {
		return false
	}

	e.snap = NewSnapshot(records, e.filter)
	e.total = total
	e.sched.Trigger()
	return true
}

// viewLocked builds the view-model. Caller must hold e.mu.
func (e *Engine) viewLocked() View {
	return buildView(e.cfg, e.snap, e.sort, e.filter, e.total, e.actions.State, e.clock.Now())
}

// render is the scheduler callback.
func (e *Engine) render(mode Mode) {
	e.renderMu.Lock()
	defer e.renderMu.Unlock()

	v := e.View()
	if e.renderer == nil {
		return
	}
	switch mode {
	case ModeRebuild:
		e.renderer.Rebuild(v)
	default:
		e.renderer.Patch(v)
	}
}
