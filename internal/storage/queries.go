package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// SaveBatch is a row of save_batches.
type SaveBatch struct {
	ID                   string
	ProductID            int64
	StartedAt            string
	FinishedAt           string
	EditCount            int64
	Success              bool
	PartialFailure       bool
	ProcessedActivities  int64
	ProcessedValuations  int64
	RecalculatedFunds    int64
	RecalculationsQueued int64
	ExportedAt           sql.NullString
	ExportAttempts       int64
	ExportError          string
	ExportFailed         bool
}

// FailedEditRow is a row of failed_edits.
type FailedEditRow struct {
	BatchID          string
	Position         int64
	FundID           int64
	Month            string
	FieldType        string
	Value            string
	IsNew            bool
	OriginalRecordID int64
	ToDelete         bool
}

const saveBatchColumns = `id, product_id, started_at, finished_at, edit_count, success, partial_failure,
	processed_activities, processed_valuations, recalculated_funds, recalculations_queued,
	exported_at, export_attempts, export_error, export_failed`

func scanSaveBatch(row interface{ Scan(...any) error }) (SaveBatch, error) {
	var b SaveBatch
	err := row.Scan(
		&b.ID,
		&b.ProductID,
		&b.StartedAt,
		&b.FinishedAt,
		&b.EditCount,
		&b.Success,
		&b.PartialFailure,
		&b.ProcessedActivities,
		&b.ProcessedValuations,
		&b.RecalculatedFunds,
		&b.RecalculationsQueued,
		&b.ExportedAt,
		&b.ExportAttempts,
		&b.ExportError,
		&b.ExportFailed,
	)
	return b, err
}

const createSaveBatch = `-- name: CreateSaveBatch :exec
INSERT INTO save_batches (
	id, product_id, started_at, finished_at, edit_count, success, partial_failure,
	processed_activities, processed_valuations, recalculated_funds, recalculations_queued
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type CreateSaveBatchParams struct {
	ID                   string
	ProductID            int64
	StartedAt            string
	FinishedAt           string
	EditCount            int64
	Success              bool
	PartialFailure       bool
	ProcessedActivities  int64
	ProcessedValuations  int64
	RecalculatedFunds    int64
	RecalculationsQueued int64
}

func (q *Queries) CreateSaveBatch(ctx context.Context, arg CreateSaveBatchParams) error {
	_, err := q.db.ExecContext(ctx, createSaveBatch,
		arg.ID,
		arg.ProductID,
		arg.StartedAt,
		arg.FinishedAt,
		arg.EditCount,
		arg.Success,
		arg.PartialFailure,
		arg.ProcessedActivities,
		arg.ProcessedValuations,
		arg.RecalculatedFunds,
		arg.RecalculationsQueued,
	)
	return err
}

const createBatchError = `-- name: CreateBatchError :exec
INSERT INTO save_batch_errors (batch_id, position, message) VALUES (?, ?, ?)
`

func (q *Queries) CreateBatchError(ctx context.Context, batchID string, position int64, message string) error {
	_, err := q.db.ExecContext(ctx, createBatchError, batchID, position, message)
	return err
}

const createFailedEdit = `-- name: CreateFailedEdit :exec
INSERT INTO failed_edits (
	batch_id, position, fund_id, month, field_type, value, is_new, original_record_id, to_delete
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) CreateFailedEdit(ctx context.Context, arg FailedEditRow) error {
	_, err := q.db.ExecContext(ctx, createFailedEdit,
		arg.BatchID,
		arg.Position,
		arg.FundID,
		arg.Month,
		arg.FieldType,
		arg.Value,
		arg.IsNew,
		arg.OriginalRecordID,
		arg.ToDelete,
	)
	return err
}

const getSaveBatch = `-- name: GetSaveBatch :one
SELECT ` + saveBatchColumns + ` FROM save_batches WHERE id = ?
`

func (q *Queries) GetSaveBatch(ctx context.Context, id string) (SaveBatch, error) {
	return scanSaveBatch(q.db.QueryRowContext(ctx, getSaveBatch, id))
}

const listRecentSaveBatches = `-- name: ListRecentSaveBatches :many
SELECT ` + saveBatchColumns + ` FROM save_batches ORDER BY started_at DESC, id LIMIT ?
`

func (q *Queries) ListRecentSaveBatches(ctx context.Context, limit int64) ([]SaveBatch, error) {
	return q.listSaveBatches(ctx, listRecentSaveBatches, limit)
}

const listUnexportedSaveBatches = `-- name: ListUnexportedSaveBatches :many
SELECT ` + saveBatchColumns + ` FROM save_batches
WHERE exported_at IS NULL AND export_failed = 0
ORDER BY started_at, id
LIMIT ?
`

func (q *Queries) ListUnexportedSaveBatches(ctx context.Context, limit int64) ([]SaveBatch, error) {
	return q.listSaveBatches(ctx, listUnexportedSaveBatches, limit)
}

func (q *Queries) listSaveBatches(ctx context.Context, query string, args ...any) ([]SaveBatch, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SaveBatch
	for rows.Next() {
		b, err := scanSaveBatch(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listBatchErrors = `-- name: ListBatchErrors :many
SELECT message FROM save_batch_errors WHERE batch_id = ? ORDER BY position
`

func (q *Queries) ListBatchErrors(ctx context.Context, batchID string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listBatchErrors, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, err
		}
		items = append(items, msg)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const failedEditColumns = `batch_id, position, fund_id, month, field_type, value, is_new, original_record_id, to_delete`

const listBatchFailedEdits = `-- name: ListBatchFailedEdits :many
SELECT ` + failedEditColumns + ` FROM failed_edits WHERE batch_id = ? ORDER BY position
`

func (q *Queries) ListBatchFailedEdits(ctx context.Context, batchID string) ([]FailedEditRow, error) {
	return q.listFailedEdits(ctx, listBatchFailedEdits, batchID)
}

const listRecentFailedEdits = `-- name: ListRecentFailedEdits :many
SELECT f.batch_id, f.position, f.fund_id, f.month, f.field_type, f.value, f.is_new, f.original_record_id, f.to_delete
FROM failed_edits f
JOIN save_batches b ON b.id = f.batch_id
ORDER BY b.started_at DESC, f.batch_id, f.position
LIMIT ?
`

func (q *Queries) ListRecentFailedEdits(ctx context.Context, limit int64) ([]FailedEditRow, error) {
	return q.listFailedEdits(ctx, listRecentFailedEdits, limit)
}

func (q *Queries) listFailedEdits(ctx context.Context, query string, args ...any) ([]FailedEditRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []FailedEditRow
	for rows.Next() {
		var f FailedEditRow
		if err := rows.Scan(
			&f.BatchID,
			&f.Position,
			&f.FundID,
			&f.Month,
			&f.FieldType,
			&f.Value,
			&f.IsNew,
			&f.OriginalRecordID,
			&f.ToDelete,
		); err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markBatchExported = `-- name: MarkBatchExported :execrows
UPDATE save_batches SET exported_at = ?, export_error = '' WHERE id = ?
`

func (q *Queries) MarkBatchExported(ctx context.Context, exportedAt, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, markBatchExported, exportedAt, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const incrementExportAttempt = `-- name: IncrementExportAttempt :exec
UPDATE save_batches SET export_attempts = export_attempts + 1, export_error = ? WHERE id = ?
`

func (q *Queries) IncrementExportAttempt(ctx context.Context, exportError, id string) error {
	_, err := q.db.ExecContext(ctx, incrementExportAttempt, exportError, id)
	return err
}

const markExportFailed = `-- name: MarkExportFailed :exec
UPDATE save_batches
SET export_attempts = export_attempts + 1, export_error = ?, export_failed = 1
WHERE id = ?
`

func (q *Queries) MarkExportFailed(ctx context.Context, exportError, id string) error {
	_, err := q.db.ExecContext(ctx, markExportFailed, exportError, id)
	return err
}

const retryFailedExports = `-- name: RetryFailedExports :execrows
UPDATE save_batches SET export_failed = 0, export_attempts = 0 WHERE export_failed = 1
`

func (q *Queries) RetryFailedExports(ctx context.Context) (int64, error) {
	result, err := q.db.ExecContext(ctx, retryFailedExports)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getExportStats = `-- name: GetExportStats :one
SELECT
	COALESCE(SUM(CASE WHEN exported_at IS NULL AND export_failed = 0 THEN 1 ELSE 0 END), 0) AS pending,
	COALESCE(SUM(CASE WHEN exported_at IS NOT NULL THEN 1 ELSE 0 END), 0) AS exported,
	COALESCE(SUM(CASE WHEN export_failed = 1 THEN 1 ELSE 0 END), 0) AS failed
FROM save_batches
`

type GetExportStatsRow struct {
	Pending  int64
	Exported int64
	Failed   int64
}

func (q *Queries) GetExportStats(ctx context.Context) (GetExportStatsRow, error) {
	var s GetExportStatsRow
	err := q.db.QueryRowContext(ctx, getExportStats).Scan(&s.Pending, &s.Exported, &s.Failed)
	return s, err
}
