package models

import "time"

// Event types with dedicated behavioral risk features.
const (
	EventTypeFailedLogin         = "failed_login"
	EventTypePrivilegeEscalation = "privilege_escalation"
	EventTypeDataTransfer        = "data_transfer"
)

// Event is a loosely-typed security telemetry record. Field presence is the
// routing signal: MetricValue routes to the time-series detector, LogMessage
// to the log detector, and UserID to the behavioral detector.
type Event struct {
	Timestamp        time.Time `json:"timestamp"`
	MetricValue      *float64  `json:"metric_value,omitempty"`
	LogMessage       string    `json:"log_message,omitempty"`
	UserID           string    `json:"user_id,omitempty"`
	EventType        string    `json:"event_type,omitempty"`
	SourceIP         string    `json:"source_ip,omitempty"`
	DestinationIP    string    `json:"destination_ip,omitempty"`
	BytesTransferred int64     `json:"bytes_transferred,omitempty"`
}

// MetricPoint is one multivariate sample of a numeric time series.
type MetricPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Values    []float64 `json:"values"`
}

// TrainingData bundles the per-detector training datasets for a single
// training run. Empty sub-datasets leave the corresponding detector untrained.
type TrainingData struct {
	Metrics    []MetricPoint `json:"metrics,omitempty"`
	NormalLogs []string      `json:"normal_logs,omitempty"`
	UserEvents []Event       `json:"user_events,omitempty"`
}
