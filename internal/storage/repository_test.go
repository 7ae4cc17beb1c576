package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"backoffice/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "journal.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleBatch(id string, started time.Time) core.BatchRecord {
	failed := core.PendingEdit{FundID: 7, Month: "2024-03", FieldType: "Withdrawal", Value: "200", OriginalRecordID: 41}
	return core.BatchRecord{
		ID:         id,
		ProductID:  3,
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
		EditCount:  3,
		Result: core.SaveResult{
			BatchID:             id,
			PartialFailure:      true,
			Errors:              []string{"Failed to update Withdrawal for fund 7 (2024-03): boom"},
			ProcessedActivities: 1,
			ProcessedValuations: 1,
			RecalculatedFunds:   4,
			FailedEdits:         []core.PendingEdit{failed},
		},
	}
}

func TestRecordAndGetBatch(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	started := time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC)
	want := sampleBatch("batch-1", started)
	if err := repo.RecordBatch(ctx, want); err != nil {
		t.Fatalf("record batch: %v", err)
	}

	got, err := repo.GetBatch(ctx, "batch-1")
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("batch mismatch (-want +got):\n%s", diff)
	}
	if got.Outcome() != "partial" || got.Duration() != 1500*time.Millisecond {
		t.Errorf("unexpected outcome %q / duration %v", got.Outcome(), got.Duration())
	}
}

func TestGetBatchNotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetBatch(context.Background(), "missing")
	if !errors.Is(err, ErrBatchNotFound) {
		t.Fatalf("expected ErrBatchNotFound, got %v", err)
	}
}

func TestRecordBatchDuplicateIDRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	rec := sampleBatch("dup", time.Now())

	if err := repo.RecordBatch(ctx, rec); err != nil {
		t.Fatalf("first record: %v", err)
	}
	if err := repo.RecordBatch(ctx, rec); err == nil {
		t.Fatal("expected primary key violation on second record")
	}

	got, err := repo.GetBatch(ctx, "dup")
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if len(got.Result.Errors) != 1 || len(got.Result.FailedEdits) != 1 {
		t.Errorf("second insert must not leave partial rows: %+v", got.Result)
	}
}

func TestListRecentBatchesAndFailedEdits(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	clean := core.BatchRecord{
		ID:         "clean",
		ProductID:  3,
		StartedAt:  base.Add(time.Minute),
		FinishedAt: base.Add(time.Minute),
		EditCount:  1,
		Result:     core.SaveResult{BatchID: "clean", Success: true, Errors: []string{}, ProcessedValuations: 1},
	}
	for _, rec := range []core.BatchRecord{sampleBatch("old", base), clean, sampleBatch("new", base.Add(time.Hour))} {
		if err := repo.RecordBatch(ctx, rec); err != nil {
			t.Fatalf("record %s: %v", rec.ID, err)
		}
	}

	recent, err := repo.ListRecentBatches(ctx, 2)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	var ids []string
	for _, r := range recent {
		ids = append(ids, r.ID)
	}
	if diff := cmp.Diff([]string{"new", "clean"}, ids); diff != "" {
		t.Errorf("recent order mismatch (-want +got):\n%s", diff)
	}
	if !recent[1].Result.Success || recent[1].Result.Errors == nil {
		t.Errorf("clean batch should round-trip as success with empty errors: %+v", recent[1].Result)
	}

	failed, err := repo.ListFailedEdits(ctx, 10)
	if err != nil {
		t.Fatalf("list failed edits: %v", err)
	}
	if len(failed) != 2 || failed[0].BatchID != "new" || failed[1].BatchID != "old" {
		t.Fatalf("unexpected failed edits: %+v", failed)
	}
	if failed[0].Edit.OriginalRecordID != 41 || !failed[0].RecordedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("unexpected failed edit: %+v", failed[0])
	}
}

func TestExportTracking(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := repo.RecordBatch(ctx, sampleBatch(id, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("record %s: %v", id, err)
		}
	}

	pending, err := repo.ListUnexportedBatches(ctx, 10)
	if err != nil || len(pending) != 3 || pending[0].Batch.ID != "a" {
		t.Fatalf("unexpected pending: %+v err=%v", pending, err)
	}

	if err := repo.MarkExported(ctx, "a", base.Add(time.Hour)); err != nil {
		t.Fatalf("mark exported: %v", err)
	}
	if err := repo.IncrementExportAttempt(ctx, "b", "sheets unavailable"); err != nil {
		t.Fatalf("increment attempt: %v", err)
	}
	if err := repo.MarkExportFailed(ctx, "c", "quota exceeded"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := repo.MarkExported(ctx, "missing", base); !errors.Is(err, ErrBatchNotFound) {
		t.Errorf("expected ErrBatchNotFound for missing batch, got %v", err)
	}

	pending, err = repo.ListUnexportedBatches(ctx, 10)
	if err != nil || len(pending) != 1 || pending[0].Batch.ID != "b" || pending[0].Attempts != 1 {
		t.Fatalf("unexpected pending after updates: %+v err=%v", pending, err)
	}

	stats, err := repo.ExportStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats != (ExportStats{Pending: 1, Exported: 1, Failed: 1}) {
		t.Errorf("unexpected stats: %+v", stats)
	}

	n, err := repo.RetryFailedExports(ctx)
	if err != nil || n != 1 {
		t.Fatalf("retry failed: n=%d err=%v", n, err)
	}
	pending, _ = repo.ListUnexportedBatches(ctx, 10)
	if len(pending) != 2 {
		t.Errorf("expected 2 pending after retry, got %d", len(pending))
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	for i := 0; i < 2; i++ {
		if err := RunMigrations(path); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
}
