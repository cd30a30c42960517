package detector

import (
	"testing"
	"time"

	"github.com/kiranshivaraju/threathunter/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityForScore(t *testing.T) {
	tests := []struct {
		name      string
		score     float64
		threshold float64
		isAnomaly bool
		want      models.Severity
	}{
		{"not anomalous", 0.5, 1, false, models.SeverityLow},
		{"just over threshold", 1.1, 1, true, models.SeverityMedium},
		{"exactly double", 2.0, 1, true, models.SeverityHigh},
		{"far past double", 5.0, 1, true, models.SeverityHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, severityForScore(tt.score, tt.threshold, tt.isAnomaly))
		})
	}
}

func TestSeverityForDecision(t *testing.T) {
	assert.Equal(t, models.SeverityLow, severityForDecision(0.2, false))
	assert.Equal(t, models.SeverityMedium, severityForDecision(-0.2, true))
	assert.Equal(t, models.SeverityHigh, severityForDecision(-0.6, true))
}

func TestGroupByEntity(t *testing.T) {
	events := []models.Event{
		{UserID: "bob"},
		{UserID: "alice"},
		{UserID: ""},
		{UserID: "bob"},
	}

	groups, order := groupByEntity(events)

	assert.Equal(t, []string{"bob", "alice"}, order)
	assert.Len(t, groups["bob"], 2)
	assert.Len(t, groups["alice"], 1)
	assert.NotContains(t, groups, "")
}

func TestBehavioralFeatures_WeekendAndAggregates(t *testing.T) {
	saturday := time.Date(2025, 3, 22, 3, 0, 0, 0, time.UTC)
	tuesday := time.Date(2025, 3, 18, 14, 0, 0, 0, time.UTC)

	events := []models.Event{
		{Timestamp: tuesday, UserID: "alice", EventType: "login", SourceIP: "10.0.0.1"},
		{Timestamp: saturday, UserID: "alice", EventType: models.EventTypeFailedLogin, SourceIP: "10.0.0.2"},
		{Timestamp: saturday.Add(time.Minute), UserID: "alice", EventType: models.EventTypeDataTransfer,
			SourceIP: "10.0.0.1", DestinationIP: "198.51.100.4", BytesTransferred: 4096},
	}

	rows := behavioralFeatures(events)
	require.Len(t, rows, 3)

	weekday := rows[0]
	assert.Equal(t, 14.0, weekday[0])
	assert.Equal(t, 1.0, weekday[1])
	assert.Equal(t, 0.0, weekday[2])

	weekend := rows[1]
	assert.Equal(t, 3.0, weekend[0])
	assert.Equal(t, 5.0, weekend[1])
	assert.Equal(t, 1.0, weekend[2])
	assert.Equal(t, 2.0, weekend[3])

	// Aggregates are shared by every row in the slice.
	for _, row := range rows {
		assert.Equal(t, 2.0, row[4])
		assert.Equal(t, 1.0, row[5])
		assert.Equal(t, 1.0, row[6])
		assert.Equal(t, 0.0, row[7])
		assert.Equal(t, 4096.0, row[8])
	}
}
