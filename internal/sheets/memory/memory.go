package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"backoffice/internal/core"
	ports "backoffice/internal/sheets"
)

// Ensure interface conformance
var _ ports.BatchReportWriter = (*Writer)(nil)

// Writer keeps audit rows in memory. It stands in for the spreadsheet when
// none is configured.
type Writer struct {
	mu   sync.Mutex
	rows [][]any
}

func New() *Writer {
	return &Writer{}
}

// AppendBatchReport stores the row and returns a synthetic row reference.
func (w *Writer) AppendBatchReport(_ context.Context, rec core.BatchRecord) (string, error) {
	if rec.ID == "" {
		return "", errors.New("batch record without id")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = append(w.rows, ports.ReportRow(rec))
	return fmt.Sprintf("mem:%d", len(w.rows)), nil
}

// Rows returns a copy of every appended row.
func (w *Writer) Rows() [][]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([][]any, len(w.rows))
	for i, r := range w.rows {
		out[i] = append([]any(nil), r...)
	}
	return out
}
