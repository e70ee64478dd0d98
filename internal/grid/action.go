package grid

import (
	"context"
	"strings"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// Transport invokes remote services on the host.
type Transport interface {
	// Available reports whether calls can currently be made.
	Available() bool

	// CallService invokes domain.action with data and returns when the host
	// has acknowledged or rejected the call.
	CallService(ctx context.Context, domain, action string, data map[string]any) error
}

// Phase is the state of a row's reconnect action.
type Phase string

// Action phases.
const (
	PhaseIdle      Phase = "idle"
	PhasePending   Phase = "pending"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

// Outcome values reported in ActionResult.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// ActionSettings describes the reconnect call and its timing.
type ActionSettings struct {
	Domain       string
	Action       string
	MACParam     string
	FormatMAC    bool
	RestoreDelay time.Duration
	Timeout      time.Duration
}

// ActionSettings extracts the action descriptor from a view configuration.
func (c ViewConfig) ActionSettings() ActionSettings {
	return ActionSettings{
		Domain:       c.ServiceDomain,
		Action:       c.ServiceAction,
		MACParam:     c.MACParam,
		FormatMAC:    c.FormatMAC,
		RestoreDelay: c.RestoreDelay,
		Timeout:      c.ActionTimeout,
	}
}

// ActionResult reports one completed transport call.
type ActionResult struct {
	ID        string
	MAC       string // as submitted, after formatting
	Domain    string
	Action    string
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// Outcome returns OutcomeSuccess or OutcomeError.
func (r ActionResult) Outcome() string {
	if r.Err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}

// FormatMAC canonicalises a MAC address when enabled: every ":" becomes "-"
// and letters are upper-cased. Disabled formatting returns mac unchanged.
func FormatMAC(mac string, enabled bool) string {
	if !enabled {
		return mac
	}
	return strings.ToUpper(strings.ReplaceAll(mac, ":", "-"))
}

// rowAction is the state of one row. Idle rows have no entry.
type rowAction struct {
	phase    Phase
	label    string
	captured string      // label restored on return to idle
	timer    clock.Timer // restoration timer, set once a result arrived
}

// ActionController runs the per-row reconnect state machines.
//
// Rows are independent: each has its own phase and restoration timer.
// Completions and timer fires for rows that were pruned or closed are
// ignored.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Change and result hooks are called outside the controller lock.
type ActionController struct {
	clock     clock.WithDelayedExecution
	transport Transport
	logger    Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	settings ActionSettings
	rows     map[string]*rowAction
	closed   bool
	onChange func()
	onResult []func(ActionResult)
}

// NewActionController creates a controller. A nil clock uses the real clock.
// A nil transport makes every Trigger a no-op.
func NewActionController(clk clock.WithDelayedExecution, transport Transport, settings ActionSettings) *ActionController {
	if clk == nil {
		clk = clock.RealClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ActionController{
		clock:     clk,
		transport: transport,
		logger:    noopLogger{},
		ctx:       ctx,
		cancel:    cancel,
		settings:  settings,
		rows:      make(map[string]*rowAction),
	}
}

// SetLogger sets the logger for the controller.
func (c *ActionController) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

// OnChange registers the hook called after every visual change.
func (c *ActionController) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// OnResult adds a hook called once per completed transport call.
func (c *ActionController) OnResult(fn func(ActionResult)) {
	c.mu.Lock()
	c.onResult = append(c.onResult, fn)
	c.mu.Unlock()
}

// Configure replaces the action settings. Calls already in flight keep the
// settings they started with.
func (c *ActionController) Configure(settings ActionSettings) {
	c.mu.Lock()
	c.settings = settings
	c.mu.Unlock()
}

// Trigger starts a reconnect for row id.
//
// It returns false without doing anything when mac is empty, the transport
// is missing or unavailable, or the row is not idle. Otherwise the row enters
// pending and the transport is called on its own goroutine.
func (c *ActionController) Trigger(id, mac string) bool {
	if mac == "" {
		return false
	}

	c.mu.Lock()
	if c.closed || c.transport == nil || !c.transport.Available() {
		c.mu.Unlock()
		return false
	}
	if _, busy := c.rows[id]; busy {
		c.mu.Unlock()
		return false
	}
	ra := &rowAction{
		phase:    PhasePending,
		label:    LabelReconnecting,
		captured: LabelReconnect,
	}
	c.rows[id] = ra
	settings := c.settings
	c.mu.Unlock()

	c.notifyChange()
	go c.invoke(id, ra, FormatMAC(mac, settings.FormatMAC), settings)
	return true
}

// invoke performs the transport call and records its outcome.
func (c *ActionController) invoke(id string, ra *rowAction, mac string, settings ActionSettings) {
	ctx, cancel := context.WithTimeout(c.ctx, settings.Timeout)
	defer cancel()

	start := c.clock.Now()
	err := c.transport.CallService(ctx, settings.Domain, settings.Action, map[string]any{
		settings.MACParam: mac,
	})
	result := ActionResult{
		ID:        id,
		MAC:       mac,
		Domain:    settings.Domain,
		Action:    settings.Action,
		Err:       err,
		StartedAt: start,
		Duration:  c.clock.Since(start),
	}

	c.mu.Lock()
	logger := c.logger
	current := !c.closed && c.rows[id] == ra
	if current {
		if err != nil {
			ra.phase, ra.label = PhaseFailed, LabelError
		} else {
			ra.phase, ra.label = PhaseSucceeded, LabelSent
		}
		ra.timer = c.clock.AfterFunc(settings.RestoreDelay, func() { c.restore(id, ra) })
	}
	c.mu.Unlock()

	if err != nil {
		logger.Error("reconnect failed",
			"entity_id", id,
			"service", settings.Domain+"."+settings.Action,
			"mac", mac,
			"error", err,
		)
	} else {
		logger.Info("reconnect sent",
			"entity_id", id,
			"service", settings.Domain+"."+settings.Action,
			"mac", mac,
		)
	}

	if current {
		c.notifyChange()
	}
	c.notifyResult(result)
}

// restore returns a row to idle after the result was shown.
func (c *ActionController) restore(id string, ra *rowAction) {
	c.mu.Lock()
	if c.closed || c.rows[id] != ra {
		c.mu.Unlock()
		return
	}
	ra.phase, ra.label = PhaseIdle, ra.captured
	delete(c.rows, id)
	c.mu.Unlock()

	c.notifyChange()
}

// State returns the visual state of row id.
func (c *ActionController) State(id string) ActionView {
	c.mu.Lock()
	defer c.mu.Unlock()

	ra, ok := c.rows[id]
	if !ok {
		return ActionView{Phase: PhaseIdle, Label: LabelReconnect}
	}
	return ActionView{Phase: ra.phase, Label: ra.label, Disabled: true}
}

// Busy returns the number of rows not idle.
func (c *ActionController) Busy() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rows)
}

// Prune drops the state of every settled row not in keep and cancels its
// restoration timer. Pending rows are kept until their call completes, so a
// row that leaves and returns cannot be triggered twice concurrently.
func (c *ActionController) Prune(keep map[string]struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, ra := range c.rows {
		if _, ok := keep[id]; ok {
			continue
		}
		if ra.phase == PhasePending {
			continue
		}
		if ra.timer != nil {
			ra.timer.Stop()
		}
		delete(c.rows, id)
	}
}

// Close cancels in-flight calls and stops all restoration timers.
func (c *ActionController) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for id, ra := range c.rows {
		if ra.timer != nil {
			ra.timer.Stop()
		}
		delete(c.rows, id)
	}
	c.mu.Unlock()

	c.cancel()
}

func (c *ActionController) notifyChange() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (c *ActionController) notifyResult(r ActionResult) {
	c.mu.Lock()
	hooks := append([]func(ActionResult){}, c.onResult...)
	c.mu.Unlock()

	for _, fn := range hooks {
		fn(r)
	}
}
