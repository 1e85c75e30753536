package amqp

import (
	"encoding/json"
	"time"

	"budgetwatch/internal/core"
)

// RecordAnalyzedMessage announces that a committed record has been run
// through the analysis engine. Consumers use it to drive report exports
// and notifications; the full record stays in the store.
type RecordAnalyzedMessage struct {
	RecordID  int64           `json:"record_id"`
	Category  string          `json:"category"`
	Level     core.AlertLevel `json:"level"`
	Percent   float64         `json:"percent"`
	Anomalous bool            `json:"anomalous"`
	Reason    string          `json:"reason,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewRecordAnalyzedMessage builds the event for one analysis outcome.
func NewRecordAnalyzedMessage(recordID int64, alert core.AlertResult, anomaly core.AnomalyFlag) *RecordAnalyzedMessage {
	return &RecordAnalyzedMessage{
		RecordID:  recordID,
		Category:  alert.Category,
		Level:     alert.Level,
		Percent:   alert.Percent,
		Anomalous: anomaly.Anomalous,
		Reason:    anomaly.Reason,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordAnalyzedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordAnalyzedMessageFromJSON creates a message from JSON bytes
func RecordAnalyzedMessageFromJSON(data []byte) (*RecordAnalyzedMessage, error) {
	var msg RecordAnalyzedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
