package detector

import "github.com/kiranshivaraju/threathunter/pkg/models"

// severityForScore buckets a raw score against a threshold: high at or above
// twice the threshold, medium when anomalous but below that, low otherwise.
func severityForScore(score, threshold float64, isAnomaly bool) models.Severity {
	switch {
	case isAnomaly && score >= 2*threshold:
		return models.SeverityHigh
	case isAnomaly:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// severityForDecision buckets an isolation-forest decision value: strongly
// negative decisions are high severity, other outliers medium, inliers low.
func severityForDecision(decision float64, isAnomaly bool) models.Severity {
	switch {
	case decision < -0.5:
		return models.SeverityHigh
	case isAnomaly:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
