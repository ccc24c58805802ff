package amqp

import (
	"encoding/json"
	"time"
)

// ReportRefreshMessage asks the worker to recompute and export the budget
// report for one month. It carries only the month key and a reason tag; the
// worker fetches fresh data itself.
type ReportRefreshMessage struct {
	MonthKey  string    `json:"monthKey"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// Refresh reasons.
const (
	ReasonTargetChanged = "target_changed"
	ReasonScheduled     = "scheduled"
	ReasonManual        = "manual"
)

// NewReportRefreshMessage creates a refresh message for the given month.
func NewReportRefreshMessage(monthKey, reason string) *ReportRefreshMessage {
	return &ReportRefreshMessage{
		MonthKey:  monthKey,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ReportRefreshMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes
func ReportRefreshMessageFromJSON(data []byte) (*ReportRefreshMessage, error) {
	var msg ReportRefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
