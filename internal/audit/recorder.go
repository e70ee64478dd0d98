package audit

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/tracker-grid/internal/grid"
	"github.com/nerrad567/tracker-grid/internal/infrastructure/logging"
)

// Values written for reconnect entries.
const (
	ActionReconnect         = "reconnect"
	EntityTypeDeviceTracker = "device_tracker"
	SourceGrid              = "grid"
)

// DefaultQueueSize is the recorder buffer used when NewRecorder gets zero.
const DefaultQueueSize = 256

// writeTimeout bounds a single history insert.
const writeTimeout = 5 * time.Second

// FromResult converts a completed reconnect into an audit entry.
func FromResult(r grid.ActionResult) *AuditLog {
	details := map[string]any{
		"mac":         r.MAC,
		"service":     r.Domain + "." + r.Action,
		"outcome":     r.Outcome(),
		"duration_ms": r.Duration.Milliseconds(),
	}
	if r.Err != nil {
		details["error"] = r.Err.Error()
	}

	return &AuditLog{
		Action:     ActionReconnect,
		EntityType: EntityTypeDeviceTracker,
		EntityID:   r.ID,
		Source:     SourceGrid,
		Details:    details,
		CreatedAt:  r.StartedAt.Add(r.Duration),
	}
}

// Recorder writes reconnect results to a Repository from a single goroutine.
// Record never blocks: when the buffer is full the entry is dropped and a
// warning is logged.
//
// Thread Safety:
//   - Record is safe for concurrent use.
//   - Run must be called exactly once.
type Recorder struct {
	repo   Repository
	logger *logging.Logger
	ch     chan *AuditLog

	mu      sync.Mutex
	dropped int
}

// NewRecorder creates a recorder with a buffer of size entries.
//
// Parameters:
//   - repo: Destination repository
//   - logger: Logger for write failures; nil uses logging.Default()
//   - size: Buffer size; zero or negative uses DefaultQueueSize
//
// Returns:
//   - *Recorder: Recorder ready for Run
func NewRecorder(repo Repository, logger *logging.Logger, size int) *Recorder {
	if logger == nil {
		logger = logging.Default()
	}
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Recorder{
		repo:   repo,
		logger: logger,
		ch:     make(chan *AuditLog, size),
	}
}

// Record enqueues a reconnect result. It matches the signature of
// grid.ActionController.OnResult.
func (rec *Recorder) Record(r grid.ActionResult) {
	entry := FromResult(r)

	select {
	case rec.ch <- entry:
	default:
		rec.mu.Lock()
		rec.dropped++
		rec.mu.Unlock()
		rec.logger.Warn("audit log channel full, dropping entry",
			"action", entry.Action,
			"entity_id", entry.EntityID,
		)
	}
}

// Dropped returns how many entries were discarded because the buffer was full.
func (rec *Recorder) Dropped() int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.dropped
}

// Run writes queued entries serially until ctx is cancelled, then drains
// whatever is still buffered and returns nil.
func (rec *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case entry := <-rec.ch:
			rec.write(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-rec.ch:
					rec.write(entry)
				default:
					return nil
				}
			}
		}
	}
}

func (rec *Recorder) write(entry *AuditLog) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := rec.repo.Create(ctx, entry); err != nil {
		rec.logger.Error("audit log write failed",
			"action", entry.Action,
			"entity_id", entry.EntityID,
			"error", err,
		)
	}
}
