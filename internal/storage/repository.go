package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"backoffice/internal/core"

	_ "modernc.org/sqlite"
)

// ErrBatchNotFound is returned when no journal entry has the requested id.
var ErrBatchNotFound = errors.New("save batch not found")

// Fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FailedEdit is an edit the backend rejected, kept so the user can retry it.
type FailedEdit struct {
	BatchID    string           `json:"batchId"`
	RecordedAt time.Time        `json:"recordedAt"`
	Edit       core.PendingEdit `json:"edit"`
}

// PendingExport is a journal entry waiting to be exported.
type PendingExport struct {
	Batch    core.BatchRecord
	Attempts int
}

// ExportStats summarises the export state of the journal.
type ExportStats struct {
	Pending  int64 `json:"pending"`
	Exported int64 `json:"exported"`
	Failed   int64 `json:"failed"`
}

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// RecordBatch implements services.BatchJournal. The batch, its ordered
// errors and its failed edits are written in one transaction.
func (r *SQLiteRepository) RecordBatch(ctx context.Context, rec core.BatchRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	res := rec.Result
	if err := q.CreateSaveBatch(ctx, CreateSaveBatchParams{
		ID:                   rec.ID,
		ProductID:            rec.ProductID,
		StartedAt:            formatTime(rec.StartedAt),
		FinishedAt:           formatTime(rec.FinishedAt),
		EditCount:            int64(rec.EditCount),
		Success:              res.Success,
		PartialFailure:       res.PartialFailure,
		ProcessedActivities:  int64(res.ProcessedActivities),
		ProcessedValuations:  int64(res.ProcessedValuations),
		RecalculatedFunds:    int64(res.RecalculatedFunds),
		RecalculationsQueued: int64(res.RecalculationsQueued),
	}); err != nil {
		return fmt.Errorf("create save batch: %w", err)
	}

	for i, msg := range res.Errors {
		if err := q.CreateBatchError(ctx, rec.ID, int64(i), msg); err != nil {
			return fmt.Errorf("create batch error %d: %w", i, err)
		}
	}

	for i, e := range res.FailedEdits {
		if err := q.CreateFailedEdit(ctx, FailedEditRow{
			BatchID:          rec.ID,
			Position:         int64(i),
			FundID:           e.FundID,
			Month:            e.Month,
			FieldType:        e.FieldType,
			Value:            e.Value,
			IsNew:            e.IsNew,
			OriginalRecordID: e.OriginalRecordID,
			ToDelete:         e.ToDelete,
		}); err != nil {
			return fmt.Errorf("create failed edit %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.DebugContext(ctx, "Save batch recorded",
		"batch_id", rec.ID,
		"errors", len(res.Errors),
		"failed_edits", len(res.FailedEdits))
	return nil
}

// GetBatch returns one journal entry with its errors and failed edits.
func (r *SQLiteRepository) GetBatch(ctx context.Context, id string) (core.BatchRecord, error) {
	row, err := r.queries.GetSaveBatch(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BatchRecord{}, fmt.Errorf("get batch %s: %w", id, ErrBatchNotFound)
	}
	if err != nil {
		return core.BatchRecord{}, fmt.Errorf("get batch %s: %w", id, err)
	}
	return r.loadBatch(ctx, row)
}

// ListRecentBatches returns the newest journal entries first.
func (r *SQLiteRepository) ListRecentBatches(ctx context.Context, limit int) ([]core.BatchRecord, error) {
	rows, err := r.queries.ListRecentSaveBatches(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list recent batches: %w", err)
	}
	out := make([]core.BatchRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := r.loadBatch(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// ListFailedEdits returns edits from recent batches that the backend
// rejected, newest batch first and in original order within a batch.
func (r *SQLiteRepository) ListFailedEdits(ctx context.Context, limit int) ([]FailedEdit, error) {
	rows, err := r.queries.ListRecentFailedEdits(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list failed edits: %w", err)
	}

	started := make(map[string]time.Time)
	out := make([]FailedEdit, 0, len(rows))
	for _, row := range rows {
		at, ok := started[row.BatchID]
		if !ok {
			b, err := r.queries.GetSaveBatch(ctx, row.BatchID)
			if err != nil {
				return nil, fmt.Errorf("get batch %s: %w", row.BatchID, err)
			}
			at = parseTime(b.StartedAt)
			started[row.BatchID] = at
		}
		out = append(out, FailedEdit{BatchID: row.BatchID, RecordedAt: at, Edit: toPendingEdit(row)})
	}
	return out, nil
}

// ListUnexportedBatches returns the oldest batches not yet exported and not
// permanently failed.
func (r *SQLiteRepository) ListUnexportedBatches(ctx context.Context, limit int) ([]PendingExport, error) {
	rows, err := r.queries.ListUnexportedSaveBatches(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list unexported batches: %w", err)
	}
	out := make([]PendingExport, 0, len(rows))
	for _, row := range rows {
		rec, err := r.loadBatch(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, PendingExport{Batch: rec, Attempts: int(row.ExportAttempts)})
	}
	return out, nil
}

// MarkExported records a successful export.
func (r *SQLiteRepository) MarkExported(ctx context.Context, id string, at time.Time) error {
	n, err := r.queries.MarkBatchExported(ctx, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("mark batch exported: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("mark batch exported %s: %w", id, ErrBatchNotFound)
	}
	return nil
}

// IncrementExportAttempt records a failed export that will be retried.
func (r *SQLiteRepository) IncrementExportAttempt(ctx context.Context, id, errMsg string) error {
	if err := r.queries.IncrementExportAttempt(ctx, errMsg, id); err != nil {
		return fmt.Errorf("increment export attempt: %w", err)
	}
	return nil
}

// MarkExportFailed stops export retries for a batch.
func (r *SQLiteRepository) MarkExportFailed(ctx context.Context, id, errMsg string) error {
	if err := r.queries.MarkExportFailed(ctx, errMsg, id); err != nil {
		return fmt.Errorf("mark export failed: %w", err)
	}
	return nil
}

// RetryFailedExports makes permanently failed exports eligible again.
func (r *SQLiteRepository) RetryFailedExports(ctx context.Context) (int64, error) {
	n, err := r.queries.RetryFailedExports(ctx)
	if err != nil {
		return 0, fmt.Errorf("retry failed exports: %w", err)
	}
	return n, nil
}

// ExportStats returns export counters.
func (r *SQLiteRepository) ExportStats(ctx context.Context) (ExportStats, error) {
	row, err := r.queries.GetExportStats(ctx)
	if err != nil {
		return ExportStats{}, fmt.Errorf("get export stats: %w", err)
	}
	return ExportStats{Pending: row.Pending, Exported: row.Exported, Failed: row.Failed}, nil
}

func (r *SQLiteRepository) loadBatch(ctx context.Context, row SaveBatch) (core.BatchRecord, error) {
	msgs, err := r.queries.ListBatchErrors(ctx, row.ID)
	if err != nil {
		return core.BatchRecord{}, fmt.Errorf("list errors for batch %s: %w", row.ID, err)
	}
	failed, err := r.queries.ListBatchFailedEdits(ctx, row.ID)
	if err != nil {
		return core.BatchRecord{}, fmt.Errorf("list failed edits for batch %s: %w", row.ID, err)
	}

	res := core.SaveResult{
		BatchID:              row.ID,
		Success:              row.Success,
		PartialFailure:       row.PartialFailure,
		Errors:               append([]string{}, msgs...),
		ProcessedActivities:  int(row.ProcessedActivities),
		ProcessedValuations:  int(row.ProcessedValuations),
		RecalculatedFunds:    int(row.RecalculatedFunds),
		RecalculationsQueued: int(row.RecalculationsQueued),
	}
	for _, f := range failed {
		res.FailedEdits = append(res.FailedEdits, toPendingEdit(f))
	}

	return core.BatchRecord{
		ID:         row.ID,
		ProductID:  row.ProductID,
		StartedAt:  parseTime(row.StartedAt),
		FinishedAt: parseTime(row.FinishedAt),
		EditCount:  int(row.EditCount),
		Result:     res,
	}, nil
}

func toPendingEdit(f FailedEditRow) core.PendingEdit {
	return core.PendingEdit{
		FundID:           f.FundID,
		Month:            f.Month,
		FieldType:        f.FieldType,
		Value:            f.Value,
		IsNew:            f.IsNew,
		OriginalRecordID: f.OriginalRecordID,
		ToDelete:         f.ToDelete,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
