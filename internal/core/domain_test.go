package core

import (
	"errors"
	"testing"
)

func TestPendingEditAction(t *testing.T) {
	cases := []struct {
		name string
		e    PendingEdit
		want Action
	}{
		{"create", PendingEdit{IsNew: true}, ActionCreate},
		{"update", PendingEdit{OriginalRecordID: 7}, ActionUpdate},
		{"delete", PendingEdit{ToDelete: true, OriginalRecordID: 7}, ActionDelete},
		{"new and delete", PendingEdit{IsNew: true, ToDelete: true, OriginalRecordID: 7}, ActionInvalid},
		{"delete without record", PendingEdit{ToDelete: true}, ActionInvalid},
		{"update without record", PendingEdit{}, ActionInvalid},
	}
	for _, tc := range cases {
		if got := tc.e.Action(); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestPendingEditValidate(t *testing.T) {
	base := PendingEdit{FundID: 1, Month: "2024-03", FieldType: "Investment", Value: "100", IsNew: true}

	cases := []struct {
		name   string
		mutate func(*PendingEdit)
		want   error
	}{
		{"valid create", func(*PendingEdit) {}, nil},
		{"valid update", func(e *PendingEdit) { e.IsNew = false; e.OriginalRecordID = 3 }, nil},
		{"valid delete", func(e *PendingEdit) { e.IsNew = false; e.Value = ""; e.ToDelete = true; e.OriginalRecordID = 3 }, nil},
		{"missing fund", func(e *PendingEdit) { e.FundID = 0 }, ErrInvalidFund},
		{"bad month", func(e *PendingEdit) { e.Month = "2024-13" }, ErrInvalidMonth},
		{"full date is not a month", func(e *PendingEdit) { e.Month = "2024-03-01" }, ErrInvalidMonth},
		{"empty field type", func(e *PendingEdit) { e.FieldType = " " }, ErrEmptyFieldType},
		{"new and delete", func(e *PendingEdit) { e.Value = ""; e.ToDelete = true; e.OriginalRecordID = 3 }, ErrNewAndDelete},
		{"delete with value", func(e *PendingEdit) { e.IsNew = false; e.ToDelete = true; e.OriginalRecordID = 3 }, ErrDeleteWithValue},
		{"delete without record", func(e *PendingEdit) { e.IsNew = false; e.Value = ""; e.ToDelete = true }, ErrMissingRecordID},
		{"update without record", func(e *PendingEdit) { e.IsNew = false }, ErrMissingRecordID},
		{"create without value", func(e *PendingEdit) { e.Value = "  " }, ErrEmptyValue},
	}
	for _, tc := range cases {
		e := base
		tc.mutate(&e)
		err := e.Validate()
		if tc.want == nil {
			if err != nil {
				t.Fatalf("%s: expected ok, got %v", tc.name, err)
			}
			continue
		}
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestPendingEditActivityDateAndCell(t *testing.T) {
	e := PendingEdit{FundID: 4, Month: " 2024-01 ", FieldType: "Regular  Investment"}
	if got := e.ActivityDate(); got != "2024-01-01" {
		t.Fatalf("unexpected activity date %q", got)
	}
	other := PendingEdit{FundID: 4, Month: "2024-01", FieldType: "regular investment"}
	if e.Cell() != other.Cell() {
		t.Fatalf("expected same cell: %v vs %v", e.Cell(), other.Cell())
	}
}

func TestIsValuationField(t *testing.T) {
	for _, ft := range []string{"Current Value", "current value", " Current  Value ", "Valuation"} {
		if !IsValuationField(ft) {
			t.Fatalf("%q expected valuation", ft)
		}
	}
	for _, ft := range []string{"Investment", "Withdrawal", "Value", ""} {
		if IsValuationField(ft) {
			t.Fatalf("%q expected activity", ft)
		}
	}
}

func TestParseDate(t *testing.T) {
	if _, err := ParseDate("2024-02-01"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if _, err := ParseDate("2024-02"); err == nil {
		t.Fatalf("expected error for month-only date")
	}
}
