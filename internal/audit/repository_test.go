package audit

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/tracker-grid/internal/grid"
	"github.com/nerrad567/tracker-grid/internal/infrastructure/config"
	"github.com/nerrad567/tracker-grid/internal/infrastructure/database"
	"github.com/nerrad567/tracker-grid/internal/infrastructure/logging"
	"github.com/nerrad567/tracker-grid/migrations"
)

func openRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "audit.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	require.NoError(t, db.Migrate(context.Background(), migrations.FS))
	return NewSQLiteRepository(db.DB)
}

func quietLogger() *logging.Logger {
	return logging.NewWithWriter(config.LoggingConfig{Level: "error", Format: "json"}, "test", io.Discard)
}

func TestSQLiteRepository_CreateAndList(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"device_tracker.a", "device_tracker.b", "device_tracker.a"} {
		entry := &AuditLog{
			Action:     ActionReconnect,
			EntityType: EntityTypeDeviceTracker,
			EntityID:   id,
			Source:     SourceGrid,
			Details:    map[string]any{"outcome": "success"},
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Create(ctx, entry))
		assert.NotEmpty(t, entry.ID)
	}

	res, err := repo.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, DefaultLimit, res.Limit)
	require.Len(t, res.Logs, 3)
	assert.Equal(t, base.Add(2*time.Minute), res.Logs[0].CreatedAt, "most recent first")
	assert.Equal(t, "success", res.Logs[0].Details["outcome"])

	res, err = repo.List(ctx, Filter{EntityID: "device_tracker.a"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)

	res, err = repo.List(ctx, Filter{Since: base.Add(time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
}

func TestSQLiteRepository_ListOutcomeFilter(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()

	ok := FromResult(grid.ActionResult{ID: "device_tracker.a", MAC: "AA-BB", Domain: "d", Action: "a", StartedAt: time.Now()})
	bad := FromResult(grid.ActionResult{ID: "device_tracker.b", MAC: "CC-DD", Domain: "d", Action: "a", Err: errors.New("boom"), StartedAt: time.Now()})
	require.NoError(t, repo.Create(ctx, ok))
	require.NoError(t, repo.Create(ctx, bad))

	res, err := repo.List(ctx, Filter{Outcome: grid.OutcomeError})
	require.NoError(t, err)
	require.Len(t, res.Logs, 1)
	assert.Equal(t, "device_tracker.b", res.Logs[0].EntityID)
	assert.Equal(t, "boom", res.Logs[0].Details["error"])
}

func TestSQLiteRepository_EmptyListIsNotNil(t *testing.T) {
	repo := openRepo(t)

	res, err := repo.List(context.Background(), Filter{Action: "nothing"})
	require.NoError(t, err)
	assert.NotNil(t, res.Logs)
	assert.Empty(t, res.Logs)
}

func TestFilter_Normalise(t *testing.T) {
	assert.Equal(t, DefaultLimit, Filter{}.normalise().Limit)
	assert.Equal(t, MaxLimit, Filter{Limit: 5000}.normalise().Limit)
	assert.Equal(t, 0, Filter{Offset: -4}.normalise().Offset)
	assert.Equal(t, 10, Filter{Limit: 10}.normalise().Limit)
}

func TestFromResult(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := FromResult(grid.ActionResult{
		ID:        "device_tracker.phone",
		MAC:       "AA-BB-CC-DD-EE-FF",
		Domain:    "tplink_omada",
		Action:    "reconnect_client",
		StartedAt: started,
		Duration:  1500 * time.Millisecond,
	})

	assert.Equal(t, ActionReconnect, entry.Action)
	assert.Equal(t, EntityTypeDeviceTracker, entry.EntityType)
	assert.Equal(t, "device_tracker.phone", entry.EntityID)
	assert.Equal(t, "tplink_omada.reconnect_client", entry.Details["service"])
	assert.Equal(t, grid.OutcomeSuccess, entry.Details["outcome"])
	assert.Equal(t, int64(1500), entry.Details["duration_ms"])
	assert.NotContains(t, entry.Details, "error")
	assert.Equal(t, started.Add(1500*time.Millisecond), entry.CreatedAt)
}

// memRepo is an in-memory Repository for recorder tests.
type memRepo struct {
	mu   sync.Mutex
	logs []AuditLog
	err  error
}

func (m *memRepo) Create(_ context.Context, log *AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.logs = append(m.logs, *log)
	return nil
}

func (m *memRepo) List(context.Context, Filter) (*ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &ListResult{Logs: append([]AuditLog(nil), m.logs...), Total: len(m.logs)}, nil
}

func (m *memRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logs)
}

func TestRecorder_WritesAndDrainsOnShutdown(t *testing.T) {
	repo := &memRepo{}
	rec := NewRecorder(repo, quietLogger(), 8)

	for i := 0; i < 5; i++ {
		rec.Record(grid.ActionResult{ID: "device_tracker.phone", StartedAt: time.Now()})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, rec.Run(ctx))
	assert.Equal(t, 5, repo.count())
}

func TestRecorder_RunsUntilCancelled(t *testing.T) {
	repo := &memRepo{}
	rec := NewRecorder(repo, quietLogger(), 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx) }()

	rec.Record(grid.ActionResult{ID: "device_tracker.phone", StartedAt: time.Now()})
	require.Eventually(t, func() bool { return repo.count() == 1 }, 2*time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	repo := &memRepo{}
	rec := NewRecorder(repo, quietLogger(), 1)

	rec.Record(grid.ActionResult{ID: "a"})
	rec.Record(grid.ActionResult{ID: "b"})
	rec.Record(grid.ActionResult{ID: "c"})

	assert.Equal(t, 2, rec.Dropped())
}

func TestRecorder_WriteErrorIsLogged(t *testing.T) {
	repo := &memRepo{err: errors.New("disk full")}
	rec := NewRecorder(repo, quietLogger(), 2)
	rec.Record(grid.ActionResult{ID: "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, rec.Run(ctx))
	assert.Equal(t, 0, repo.count())
}
