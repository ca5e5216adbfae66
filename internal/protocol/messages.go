package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// NotificationType distinguishes messages on the anomaly topic.
type NotificationType string

const (
	NotifyTypeAnomaly      NotificationType = "cycle_anomaly"
	NotifyTypeRunCompleted NotificationType = "run_completed"
)

// AnomalyNotification is published for every threshold-gated anomaly
// event the engine persists. EventID refers back to the event store so
// consumers can fetch the full record.
type AnomalyNotification struct {
	Type      NotificationType `json:"type"`
	RunID     string           `json:"run_id"`
	Well      string           `json:"well"`
	CycleID   int              `json:"cycle_id"`
	EventKind string           `json:"event_kind"`
	EventID   int64            `json:"event_id"`
	Emitted   time.Time        `json:"emitted"`
}

// RunCompletedNotification is published once after the last cycle of a
// run has been committed.
type RunCompletedNotification struct {
	Type     NotificationType `json:"type"`
	RunID    string           `json:"run_id"`
	Well     string           `json:"well"`
	Cycles   int              `json:"cycles"`
	Events   int              `json:"events"`
	Finished time.Time        `json:"finished"`
}

// EncodeAnomalyNotification serializes a notification for Kafka.
func EncodeAnomalyNotification(n *AnomalyNotification) ([]byte, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("failed to encode anomaly notification: %w", err)
	}
	return data, nil
}

// DecodeAnomalyNotification parses a notification received from Kafka.
func DecodeAnomalyNotification(data []byte) (*AnomalyNotification, error) {
	var n AnomalyNotification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("failed to decode anomaly notification: %w", err)
	}
	if n.Type != NotifyTypeAnomaly {
		return nil, fmt.Errorf("unexpected notification type: %s", n.Type)
	}
	return &n, nil
}

// EncodeRunCompletedNotification serializes a run summary for Kafka.
func EncodeRunCompletedNotification(n *RunCompletedNotification) ([]byte, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("failed to encode run notification: %w", err)
	}
	return data, nil
}
