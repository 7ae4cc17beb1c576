package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backoffice/internal/core"
)

// RecalcRequestMessage asks a worker to recompute one fund's IRR history
// from ActivityDate onwards.
type RecalcRequestMessage struct {
	FundID       int64     `json:"fund_id"`
	ActivityDate string    `json:"activity_date"`
	BatchID      string    `json:"batch_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewRecalcRequestMessage creates a recalculation request stamped with the current time
func NewRecalcRequestMessage(fundID int64, activityDate, batchID string) *RecalcRequestMessage {
	return &RecalcRequestMessage{
		FundID:       fundID,
		ActivityDate: activityDate,
		BatchID:      batchID,
		Timestamp:    time.Now(),
	}
}

// Validate rejects messages a worker could never process.
func (m *RecalcRequestMessage) Validate() error {
	if m.FundID <= 0 {
		return errors.New("fund_id must be positive")
	}
	if _, err := core.ParseDate(m.ActivityDate); err != nil {
		return fmt.Errorf("activity_date: %w", err)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *RecalcRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecalcRequestMessageFromJSON decodes and validates a message body.
func RecalcRequestMessageFromJSON(data []byte) (*RecalcRequestMessage, error) {
	var msg RecalcRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
