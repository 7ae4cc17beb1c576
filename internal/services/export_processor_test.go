package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/core"
	sheetsmem "backoffice/internal/sheets/memory"
	"backoffice/internal/storage"
)

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func recordBatches(t *testing.T, repo *storage.SQLiteRepository, ids ...string) {
	t.Helper()
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range ids {
		started := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.RecordBatch(context.Background(), core.BatchRecord{
			ID:         id,
			ProductID:  1,
			StartedAt:  started,
			FinishedAt: started,
			Result:     core.SaveResult{BatchID: id, Success: true, Errors: []string{}},
		}))
	}
}

type flakyWriter struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls []string
}

func (w *flakyWriter) AppendBatchReport(_ context.Context, rec core.BatchRecord) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, rec.ID)
	if w.fail[rec.ID] {
		return "", errors.New("quota exceeded")
	}
	return "ok", nil
}

func TestDefaultExportProcessorConfig(t *testing.T) {
	cfg := DefaultExportProcessorConfig()
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 20, cfg.BatchSize)
	assert.Equal(t, 5, cfg.MaxRetries)
}

func TestExportPending_ExportsInOrder(t *testing.T) {
	repo := newTestRepo(t)
	recordBatches(t, repo, "a", "b", "c")
	writer := sheetsmem.New()
	p := NewExportProcessor(repo, writer, DefaultExportProcessorConfig(), newTestLogger())

	n := p.ExportPending(context.Background())
	assert.Equal(t, 3, n)

	rows := writer.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, []any{"a", "b", "c"}, []any{rows[0][0], rows[1][0], rows[2][0]})

	assert.Zero(t, p.ExportPending(context.Background()), "exported batches are not exported twice")
}

func TestExportPending_RetriesThenGivesUp(t *testing.T) {
	repo := newTestRepo(t)
	recordBatches(t, repo, "ok", "broken")
	writer := &flakyWriter{fail: map[string]bool{"broken": true}}
	cfg := DefaultExportProcessorConfig()
	cfg.MaxRetries = 2
	p := NewExportProcessor(repo, writer, cfg, newTestLogger())
	ctx := context.Background()

	assert.Equal(t, 1, p.ExportPending(ctx))
	stats, err := repo.ExportStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.ExportStats{Pending: 1, Exported: 1}, stats)

	assert.Zero(t, p.ExportPending(ctx))
	stats, err = repo.ExportStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.ExportStats{Exported: 1, Failed: 1}, stats)

	assert.Zero(t, p.ExportPending(ctx))
	assert.Equal(t, []string{"ok", "broken", "broken"}, writer.calls, "failed batches stop being retried")
}

func TestExportProcessor_Lifecycle(t *testing.T) {
	repo := newTestRepo(t)
	recordBatches(t, repo, "a")
	writer := sheetsmem.New()
	cfg := DefaultExportProcessorConfig()
	cfg.PollInterval = 10 * time.Millisecond
	p := NewExportProcessor(repo, writer, cfg, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.False(t, p.IsRunning())
	require.NoError(t, p.Start(ctx))
	assert.True(t, p.IsRunning())
	assert.Error(t, p.Start(ctx), "second start must fail")

	assert.Eventually(t, func() bool { return len(writer.Rows()) == 1 }, time.Second, 5*time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	require.NoError(t, p.Stop(stopCtx))
	assert.False(t, p.IsRunning())
	assert.NoError(t, p.Stop(stopCtx), "stop when not running is a no-op")
}
