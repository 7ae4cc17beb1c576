package sheets

import (
	"context"

	"backoffice/internal/core"
)

// Ports for outbound adapters.
type (
	// BatchReportWriter appends one audit row per recorded save batch.
	BatchReportWriter interface {
		AppendBatchReport(ctx context.Context, rec core.BatchRecord) (rowRef string, err error)
	}
)

// ReportHeader is the header row of the audit sheet.
var ReportHeader = []string{
	"Batch",
	"Started",
	"Product",
	"Outcome",
	"Edits",
	"Activities",
	"Valuations",
	"IRR Recalculated",
	"Recalculations Queued",
	"Errors",
}

// ReportRow renders a journal entry as an audit sheet row matching
// ReportHeader.
func ReportRow(rec core.BatchRecord) []any {
	errs := ""
	for i, msg := range rec.Result.Errors {
		if i > 0 {
			errs += "\n"
		}
		errs += msg
	}
	return []any{
		rec.ID,
		rec.StartedAt.UTC().Format("2006-01-02 15:04:05"),
		rec.ProductID,
		rec.Outcome(),
		rec.EditCount,
		rec.Result.ProcessedActivities,
		rec.Result.ProcessedValuations,
		rec.Result.RecalculatedFunds,
		rec.Result.RecalculationsQueued,
		errs,
	}
}
