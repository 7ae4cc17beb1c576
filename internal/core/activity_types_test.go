package core

import "testing"

func TestActivityTypeForLabel(t *testing.T) {
	cases := []struct {
		label string
		tag   string
		known bool
	}{
		{"Investment", "Investment", true},
		{"Regular Investment", "RegularInvestment", true},
		{"regular   investment", "RegularInvestment", true},
		{"RegularInvestment", "RegularInvestment", true},
		{"Tax Uplift", "GovernmentUplift", true},
		{"Fund Switch Out", "FundSwitchOut", true},
		{"Regular Withdrawal", "RegularWithdrawal", true},
		{" Dividend ", "Dividend", false},
	}
	for _, tc := range cases {
		tag, known := ActivityTypeForLabel(tc.label)
		if tag != tc.tag || known != tc.known {
			t.Fatalf("%q expected (%q, %v), got (%q, %v)", tc.label, tc.tag, tc.known, tag, known)
		}
	}
}

func TestActivityTypesIncludesValuation(t *testing.T) {
	types := ActivityTypes()
	last := types[len(types)-1]
	if last.Label != ValuationLabel || last.Tag != ValuationTag {
		t.Fatalf("expected valuation row last, got %+v", last)
	}
	// The returned slice is a copy.
	types[0].Label = "changed"
	if ActivityTypes()[0].Label != "Investment" {
		t.Fatalf("ActivityTypes exposed internal state")
	}
}

func TestClosestLabel(t *testing.T) {
	cases := map[string]string{
		"Investmnt":       "Investment",
		"withdrawl":       "Withdrawal",
		"Fund Switch  In": "Fund Switch In",
		"Curent Value":    "Current Value",
		"Something else":  "",
		"":                "",
	}
	for in, want := range cases {
		if got := ClosestLabel(in); got != want {
			t.Fatalf("ClosestLabel(%q) = %q, want %q", in, got, want)
		}
	}
}
