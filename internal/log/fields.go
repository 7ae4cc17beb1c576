package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldDurationHuman = "duration_human"
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldBatchID       = "batch_id"
	FieldProductID     = "product_id"
	FieldFundID        = "fund_id"
	FieldMonth         = "month"
	FieldFieldType     = "field_type"
	FieldPhase         = "phase"
	FieldEditCount     = "edit_count"
	FieldActivityDate  = "activity_date"
)

// Components defines standard component names
const (
	ComponentApp         = "app"
	ComponentHTTP        = "http"
	ComponentCoordinator = "coordinator"
	ComponentRecalc      = "recalc"
	ComponentExport      = "export"
	ComponentWorker      = "worker"
)

// OpSave names a coordinated save in log records.
const OpSave = "save"

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithBatch adds save-batch fields
func (f LogFields) WithBatch(batchID string, productID int64, edits int) LogFields {
	f[FieldBatchID] = batchID
	f[FieldProductID] = productID
	f[FieldEditCount] = edits
	return f
}

// WithCell adds the grid cell an edit targets
func (f LogFields) WithCell(fundID int64, month, fieldType string) LogFields {
	f[FieldFundID] = fundID
	f[FieldMonth] = month
	f[FieldFieldType] = fieldType
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
