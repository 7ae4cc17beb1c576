package services

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"backoffice/internal/core"
)

func TestBuildPlan(t *testing.T) {
	edits := []core.PendingEdit{
		activity(2, "2024-03", "100"),
		{FundID: 2, Month: "2024-01", FieldType: "Dividend", Value: "5", OriginalRecordID: 4},
		{FundID: 2, Month: "2024-02", FieldType: "Dividend", Value: "6", IsNew: true},
		{FundID: 5, Month: "2023-11", FieldType: "Investment", OriginalRecordID: 8, ToDelete: true},
		valuation(2, "2024-02", "1000"),
	}

	got := BuildPlan(edits)
	want := SavePlan{
		Valid:          true,
		Activities:     4,
		Valuations:     1,
		Creates:        3,
		Updates:        1,
		Deletes:        1,
		UnknownLabels:  []string{"Dividend"},
		Recalculations: []core.RecalcPlan{{FundID: 2, ActivityDate: "2024-01-01"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BuildPlan() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildPlan_Invalid(t *testing.T) {
	got := BuildPlan([]core.PendingEdit{
		{FundID: 0, Month: "2024-01", FieldType: "Investment", Value: "1", IsNew: true},
	})
	if got.Valid || got.Error == "" {
		t.Errorf("BuildPlan() = %+v, want invalid with an error", got)
	}
	if got.Activities != 1 {
		t.Errorf("invalid batches are still counted, got %d activities", got.Activities)
	}
}
