package core

import (
	"fmt"
	"sort"
	"strings"
)

// Classification splits a batch into the two save phases.
type Classification struct {
	Activities []PendingEdit
	Valuations []PendingEdit
}

// ActionGroups splits one phase by what each edit asks for.
type ActionGroups struct {
	Creates []PendingEdit
	Updates []PendingEdit
	Deletes []PendingEdit
	Invalid []PendingEdit
}

// Classify partitions edits into activity and valuation edits, keeping
// input order within each list. Malformed edits are passed through.
func Classify(edits []PendingEdit) Classification {
	var c Classification
	for _, e := range edits {
		if e.IsValuation() {
			c.Valuations = append(c.Valuations, e)
		} else {
			c.Activities = append(c.Activities, e)
		}
	}
	return c
}

// Len returns the number of edits in both phases.
func (c Classification) Len() int {
	return len(c.Activities) + len(c.Valuations)
}

// GroupByAction splits edits into create, update and delete groups,
// keeping input order within each group.
func GroupByAction(edits []PendingEdit) ActionGroups {
	var g ActionGroups
	for _, e := range edits {
		switch e.Action() {
		case ActionCreate:
			g.Creates = append(g.Creates, e)
		case ActionUpdate:
			g.Updates = append(g.Updates, e)
		case ActionDelete:
			g.Deletes = append(g.Deletes, e)
		default:
			g.Invalid = append(g.Invalid, e)
		}
	}
	return g
}

// InvalidEditError reports an edit that breaks its invariants.
type InvalidEditError struct {
	Index int
	Edit  PendingEdit
	Err   error
}

func (e *InvalidEditError) Error() string {
	return fmt.Sprintf("edit %d (%s): %v", e.Index, e.Edit, e.Err)
}

func (e *InvalidEditError) Unwrap() error { return e.Err }

// ConflictError reports cells targeted by more than one edit.
type ConflictError struct {
	Cells []CellKey
}

func (e *ConflictError) Error() string {
	parts := make([]string, len(e.Cells))
	for i, c := range e.Cells {
		parts[i] = c.String()
	}
	return fmt.Sprintf("%v: %s", ErrConflictingEdits, strings.Join(parts, "; "))
}

func (e *ConflictError) Unwrap() error { return ErrConflictingEdits }

// ValidateBatch checks every edit's invariants and that no two edits
// target the same cell. The first invalid edit is reported; conflicts are
// reported together, sorted by fund, month and field.
func ValidateBatch(edits []PendingEdit) error {
	seen := make(map[CellKey]int, len(edits))
	var conflicts []CellKey
	for i, e := range edits {
		if err := e.Validate(); err != nil {
			return &InvalidEditError{Index: i, Edit: e, Err: err}
		}
		key := e.Cell()
		seen[key]++
		if seen[key] == 2 {
			conflicts = append(conflicts, key)
		}
	}
	if len(conflicts) == 0 {
		return nil
	}

	sort.Slice(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		if a.FundID != b.FundID {
			return a.FundID < b.FundID
		}
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		return a.FieldType < b.FieldType
	})
	return &ConflictError{Cells: conflicts}
}
