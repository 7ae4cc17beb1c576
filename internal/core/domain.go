package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// ValuationLabel is the grid field type that holds a fund valuation.
	// Every other field type is an activity.
	ValuationLabel = "Current Value"

	// ValuationTag is the backend name for the same field type.
	ValuationTag = "Valuation"

	monthLayout = "2006-01"
	dateLayout  = "2006-01-02"
)

type (
	// Action is what a pending edit asks the backend to do.
	Action string

	// Money is an amount in whole pence.
	Money struct {
		Cents int64
	}

	// PendingEdit is one change to a cell of the fund × month × field grid.
	PendingEdit struct {
		FundID           int64  `json:"fundId" yaml:"fundId"`
		Month            string `json:"month" yaml:"month"`
		FieldType        string `json:"fieldType" yaml:"fieldType"`
		Value            string `json:"value" yaml:"value"`
		IsNew            bool   `json:"isNew" yaml:"isNew"`
		OriginalRecordID int64  `json:"originalRecordId,omitempty" yaml:"originalRecordId,omitempty"`
		ToDelete         bool   `json:"toDelete,omitempty" yaml:"toDelete,omitempty"`
	}

	// CellKey identifies a single grid cell.
	CellKey struct {
		FundID    int64
		Month     string
		FieldType string
	}

	// SaveRequest is a batch of edits made against one product's grid.
	SaveRequest struct {
		ProductID int64         `json:"productId" yaml:"productId"`
		Edits     []PendingEdit `json:"edits" yaml:"edits"`
	}

	// Activity is a holding activity log record as the backend stores it.
	Activity struct {
		ID                int64   `json:"id,omitempty"`
		PortfolioFundID   int64   `json:"portfolio_fund_id"`
		ProductID         int64   `json:"product_id"`
		ActivityType      string  `json:"activity_type"`
		ActivityTimestamp string  `json:"activity_timestamp"`
		Amount            float64 `json:"amount"`
	}

	// Valuation is a fund valuation record as the backend stores it.
	Valuation struct {
		ID              int64   `json:"id,omitempty"`
		PortfolioFundID int64   `json:"portfolio_fund_id"`
		ValuationDate   string  `json:"valuation_date"`
		Valuation       float64 `json:"valuation"`
	}

	// RecalcPlan is one IRR recalculation to request after a save.
	RecalcPlan struct {
		FundID       int64  `json:"fundId"`
		ActivityDate string `json:"activityDate"`
	}
)

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionInvalid Action = "invalid"
)

var (
	ErrInvalidFund      = errors.New("invalid fund id")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyFieldType   = errors.New("empty field type")
	ErrNewAndDelete     = errors.New("edit cannot be both new and marked for deletion")
	ErrDeleteWithValue  = errors.New("deletion must not carry a value")
	ErrMissingRecordID  = errors.New("missing original record id")
	ErrEmptyValue       = errors.New("empty value")
	ErrConflictingEdits = errors.New("conflicting edits for the same cell")
	ErrMissingProductID = errors.New("missing product id")
	ErrDivisionByZero   = errors.New("division by zero")
)

// ParseMonth parses a YYYY-MM month.
func ParseMonth(s string) (time.Time, error) {
	t, err := time.Parse(monthLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return t, nil
}

// IsValuationField reports whether a grid field type routes to the
// valuation endpoints.
func IsValuationField(fieldType string) bool {
	switch normalizeLabel(fieldType) {
	case normalizeLabel(ValuationLabel), normalizeLabel(ValuationTag):
		return true
	default:
		return false
	}
}

// Action classifies the edit. Edits that break the invariants are
// ActionInvalid.
func (e PendingEdit) Action() Action {
	switch {
	case e.IsNew && e.ToDelete:
		return ActionInvalid
	case e.ToDelete && e.OriginalRecordID != 0:
		return ActionDelete
	case e.IsNew:
		return ActionCreate
	case !e.ToDelete && e.OriginalRecordID != 0:
		return ActionUpdate
	default:
		return ActionInvalid
	}
}

// IsValuation reports whether the edit targets a valuation.
func (e PendingEdit) IsValuation() bool {
	return IsValuationField(e.FieldType)
}

// Cell returns the grid cell the edit targets. Labels that reach the same
// backend field share a cell: "Current Value" and "Valuation" are one cell,
// as are "Tax Uplift" and "GovernmentUplift".
func (e PendingEdit) Cell() CellKey {
	return CellKey{
		FundID:    e.FundID,
		Month:     strings.TrimSpace(e.Month),
		FieldType: canonicalField(e.FieldType),
	}
}

// canonicalField returns the backend name of a grid field. Unknown
// activity labels fall back to their normalised form.
func canonicalField(fieldType string) string {
	if IsValuationField(fieldType) {
		return ValuationTag
	}
	if tag, known := ActivityTypeForLabel(fieldType); known {
		return tag
	}
	return normalizeLabel(fieldType)
}

// ActivityDate returns the first day of the edit's month as YYYY-MM-01.
// The month is not validated; use Validate first.
func (e PendingEdit) ActivityDate() string {
	return strings.TrimSpace(e.Month) + "-01"
}

// Validate checks the edit's structural invariants. The amount itself is
// checked at dispatch time.
func (e PendingEdit) Validate() error {
	if e.FundID <= 0 {
		return ErrInvalidFund
	}
	if _, err := ParseMonth(e.Month); err != nil {
		return err
	}
	if strings.TrimSpace(e.FieldType) == "" {
		return ErrEmptyFieldType
	}
	if e.IsNew && e.ToDelete {
		return ErrNewAndDelete
	}
	if e.ToDelete {
		if strings.TrimSpace(e.Value) != "" {
			return ErrDeleteWithValue
		}
		if e.OriginalRecordID == 0 {
			return ErrMissingRecordID
		}
		return nil
	}
	if !e.IsNew && e.OriginalRecordID == 0 {
		return ErrMissingRecordID
	}
	if strings.TrimSpace(e.Value) == "" {
		return ErrEmptyValue
	}
	return nil
}

// String describes the edit for error messages and logs.
func (e PendingEdit) String() string {
	return fmt.Sprintf("%s for fund %d (%s)", e.FieldType, e.FundID, e.Month)
}

func (c CellKey) String() string {
	return fmt.Sprintf("fund %d %s %s", c.FundID, c.Month, c.FieldType)
}

// Float returns the amount in currency units as the backend expects it.
func (m Money) Float() float64 {
	return float64(m.Cents) / 100.0
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}
