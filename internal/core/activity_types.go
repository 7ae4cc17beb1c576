package core

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/unicode/norm"
)

// ActivityType pairs the label shown in the grid with the tag the backend
// stores.
type ActivityType struct {
	Label string `json:"label"`
	Tag   string `json:"tag"`
}

// activityTypes is the fixed grid vocabulary. "Current Value" is not an
// activity: it routes to the valuation endpoints.
var activityTypes = []ActivityType{
	{Label: "Investment", Tag: "Investment"},
	{Label: "Regular Investment", Tag: "RegularInvestment"},
	{Label: "Government Uplift", Tag: "GovernmentUplift"},
	{Label: "Tax Uplift", Tag: "GovernmentUplift"},
	{Label: "Product Switch In", Tag: "ProductSwitchIn"},
	{Label: "Product Switch Out", Tag: "ProductSwitchOut"},
	{Label: "Fund Switch In", Tag: "FundSwitchIn"},
	{Label: "Fund Switch Out", Tag: "FundSwitchOut"},
	{Label: "Withdrawal", Tag: "Withdrawal"},
	{Label: "Regular Withdrawal", Tag: "RegularWithdrawal"},
}

var labelToTag = func() map[string]string {
	m := make(map[string]string, len(activityTypes)*2)
	for _, at := range activityTypes {
		m[normalizeLabel(at.Label)] = at.Tag
		// Backend tags are accepted as labels too.
		m[normalizeLabel(at.Tag)] = at.Tag
	}
	return m
}()

// ActivityTypes returns the grid vocabulary, including the valuation row.
func ActivityTypes() []ActivityType {
	out := make([]ActivityType, 0, len(activityTypes)+1)
	out = append(out, activityTypes...)
	out = append(out, ActivityType{Label: ValuationLabel, Tag: ValuationTag})
	return out
}

// ActivityTypeForLabel translates a grid label to the backend activity
// tag. Unknown labels are returned unchanged with known == false.
func ActivityTypeForLabel(label string) (tag string, known bool) {
	if tag, ok := labelToTag[normalizeLabel(label)]; ok {
		return tag, true
	}
	return strings.TrimSpace(label), false
}

// ClosestLabel returns the known label nearest to an unknown one, or ""
// when nothing is close enough to be a plausible typo.
func ClosestLabel(label string) string {
	needle := normalizeLabel(label)
	if needle == "" {
		return ""
	}

	candidates := make([]string, 0, len(activityTypes)+1)
	for _, at := range ActivityTypes() {
		candidates = append(candidates, at.Label)
	}
	sort.Strings(candidates)

	best, bestDist := "", -1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(needle, normalizeLabel(c))
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	// At most a third of the label may differ.
	if bestDist > len(needle)/3 {
		return ""
	}
	return best
}

// normalizeLabel folds labels typed or pasted from other tools to a single
// comparable form: NFC, lower case, single spaces.
func normalizeLabel(s string) string {
	s = norm.NFC.String(s)
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
