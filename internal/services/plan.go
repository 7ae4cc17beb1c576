package services

import "backoffice/internal/core"

// SavePlan previews what a save would do without calling the backend.
type SavePlan struct {
	Valid          bool              `json:"valid"`
	Error          string            `json:"error,omitempty"`
	Activities     int               `json:"activities"`
	Valuations     int               `json:"valuations"`
	Creates        int               `json:"creates"`
	Updates        int               `json:"updates"`
	Deletes        int               `json:"deletes"`
	UnknownLabels  []string          `json:"unknownLabels,omitempty"`
	Recalculations []core.RecalcPlan `json:"recalculations"`
}

// BuildPlan classifies a batch and lists the recalculations it would
// trigger. Activity labels without a backend mapping are reported once each.
func BuildPlan(edits []core.PendingEdit) SavePlan {
	c := core.Classify(edits)
	plan := SavePlan{
		Valid:          true,
		Activities:     len(c.Activities),
		Valuations:     len(c.Valuations),
		Recalculations: PlanRecalculations(edits),
	}
	if err := core.ValidateBatch(edits); err != nil {
		plan.Valid = false
		plan.Error = err.Error()
	}

	g := core.GroupByAction(edits)
	plan.Creates, plan.Updates, plan.Deletes = len(g.Creates), len(g.Updates), len(g.Deletes)

	seen := make(map[string]bool)
	for _, e := range c.Activities {
		if e.ToDelete || seen[e.FieldType] {
			continue
		}
		if _, known := core.ActivityTypeForLabel(e.FieldType); !known {
			seen[e.FieldType] = true
			plan.UnknownLabels = append(plan.UnknownLabels, e.FieldType)
		}
	}
	return plan
}
