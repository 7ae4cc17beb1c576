package remote

import (
	"context"

	"backoffice/internal/core"
)

// Ports for the back-office REST API.
type (
	ActivityWriter interface {
		CreateActivity(ctx context.Context, a core.Activity) (core.Activity, error)
		UpdateActivity(ctx context.Context, id int64, a core.Activity) (core.Activity, error)
		DeleteActivity(ctx context.Context, id int64) error
	}

	ValuationWriter interface {
		CreateValuation(ctx context.Context, v core.Valuation) (core.Valuation, error)
		UpdateValuation(ctx context.Context, id int64, v core.Valuation) (core.Valuation, error)
		DeleteValuation(ctx context.Context, id int64) error
	}

	// IRRRecalculator recomputes a fund's IRR history from a date onwards.
	IRRRecalculator interface {
		// RecalculateIRR returns how many existing IRR values were recomputed.
		RecalculateIRR(ctx context.Context, fundID int64, activityDate string) (int, error)
	}

	// MutationClient is everything the save coordinator needs.
	MutationClient interface {
		ActivityWriter
		ValuationWriter
		IRRRecalculator
	}
)
