// Package models contains shared data models used across the ThreatHunter codebase.
package models

import "time"

// Source identifies the detector that produced a result.
type Source string

const (
	SourceTimeSeries Source = "time_series"
	SourceLogs       Source = "log_analysis"
	SourceBehavioral Source = "behavioral_analysis"
)

// Severity buckets an anomaly score for downstream alerting.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// AnomalyResult is the unified output of every detector. IsAnomaly is always
// consistent with the detector's threshold, and Confidence is derived from
// score and threshold, never set independently.
type AnomalyResult struct {
	Timestamp    time.Time      `json:"timestamp"`
	Source       Source         `json:"source"`
	AnomalyScore float64        `json:"anomaly_score"`
	IsAnomaly    bool           `json:"is_anomaly"`
	Confidence   float64        `json:"confidence"`
	Features     map[string]any `json:"features"`
	Explanation  string         `json:"explanation"`
	Severity     Severity       `json:"severity"`
}
