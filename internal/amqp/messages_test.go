package amqp

import (
	"testing"
	"time"

	"budgetwatch/internal/core"
)

func TestNewRecordAnalyzedMessage(t *testing.T) {
	alert := core.AlertResult{
		Category: "food",
		Spent:    core.Money{Cents: 85000},
		Limit:    core.Money{Cents: 100000},
		Percent:  85,
		Level:    core.LevelCritical,
	}
	anomaly := core.AnomalyFlag{
		RecordID:  42,
		Category:  "food",
		Anomalous: true,
		Score:     3.1,
		Reason:    "amount exceeds typical range",
	}

	msg := NewRecordAnalyzedMessage(42, alert, anomaly)

	if msg.RecordID != 42 {
		t.Errorf("NewRecordAnalyzedMessage() RecordID = %v, want %v", msg.RecordID, 42)
	}
	if msg.Category != "food" {
		t.Errorf("NewRecordAnalyzedMessage() Category = %v, want %v", msg.Category, "food")
	}
	if msg.Level != core.LevelCritical {
		t.Errorf("NewRecordAnalyzedMessage() Level = %v, want %v", msg.Level, core.LevelCritical)
	}
	if !msg.Anomalous {
		t.Error("NewRecordAnalyzedMessage() Anomalous should be true")
	}
	if msg.Timestamp.IsZero() {
		t.Error("NewRecordAnalyzedMessage() Timestamp should not be zero")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("NewRecordAnalyzedMessage() Timestamp should be recent")
	}
}

func TestRecordAnalyzedMessage_JSON(t *testing.T) {
	timestamp := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
	msg := &RecordAnalyzedMessage{
		RecordID:  12345,
		Category:  "rent",
		Level:     core.LevelWarning,
		Percent:   65,
		Anomalous: false,
		Timestamp: timestamp,
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsedMsg, err := RecordAnalyzedMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("RecordAnalyzedMessageFromJSON() error = %v", err)
	}

	if parsedMsg.RecordID != msg.RecordID {
		t.Errorf("Parsed RecordID = %v, want %v", parsedMsg.RecordID, msg.RecordID)
	}
	if parsedMsg.Category != msg.Category {
		t.Errorf("Parsed Category = %v, want %v", parsedMsg.Category, msg.Category)
	}
	if parsedMsg.Level != msg.Level {
		t.Errorf("Parsed Level = %v, want %v", parsedMsg.Level, msg.Level)
	}
	if parsedMsg.Percent != msg.Percent {
		t.Errorf("Parsed Percent = %v, want %v", parsedMsg.Percent, msg.Percent)
	}
	if !parsedMsg.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Parsed Timestamp = %v, want %v", parsedMsg.Timestamp, msg.Timestamp)
	}
}

func TestRecordAnalyzedMessage_InvalidJSON(t *testing.T) {
	invalidJSON := []byte(`{"record_id": "not_a_number", "category": 1}`)

	_, err := RecordAnalyzedMessageFromJSON(invalidJSON)
	if err == nil {
		t.Error("RecordAnalyzedMessageFromJSON() should fail with invalid JSON")
	}
}

func TestRecordAnalyzedMessage_OmitsEmptyReason(t *testing.T) {
	msg := &RecordAnalyzedMessage{RecordID: 1, Category: "food", Level: core.LevelNone}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	if got := string(jsonBytes); containsSubstring(got, `"reason"`) {
		t.Errorf("ToJSON() should omit empty reason, got %v", got)
	}
}

func containsSubstring(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
