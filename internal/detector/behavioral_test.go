package detector_test

import (
	"context"
	"testing"
	"time"

	"github.com/kiranshivaraju/threathunter/internal/detector"
	"github.com/kiranshivaraju/threathunter/internal/modelstore"
	"github.com/kiranshivaraju/threathunter/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// businessHoursEvents builds a weekday office-hours login history for one user,
// always from the same workstation.
func businessHoursEvents(userID string, n int) []models.Event {
	// Monday 2025-03-03.
	base := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	events := make([]models.Event, n)
	for i := range events {
		// Six logins per day, 10:00 through 15:00, skipping weekends.
		day := i / 6
		hour := 10 + (i % 6)
		events[i] = models.Event{
			Timestamp: base.AddDate(0, 0, day+(day/5)*2).Add(time.Duration(hour) * time.Hour),
			UserID:    userID,
			EventType: "login",
			SourceIP:  "10.0.0.1",
		}
	}
	return events
}

func newBehavioral() *detector.Behavioral {
	return detector.NewBehavioral(detector.BehavioralConfig{Contamination: 0.1, MinEvents: 10})
}

func TestBehavioral_DetectBeforeTrain(t *testing.T) {
	d := newBehavioral()

	_, err := d.Detect(context.Background(), businessHoursEvents("alice", 3))
	assert.ErrorIs(t, err, detector.ErrNotTrained)
}

func TestBehavioral_SkipsSparseEntities(t *testing.T) {
	d := newBehavioral()

	events := append(businessHoursEvents("alice", 30), businessHoursEvents("bob", 4)...)
	require.NoError(t, d.Train(context.Background(), events))
	require.True(t, d.Trained())

	// bob had too little history for a baseline, so his events score nothing.
	results, err := d.Detect(context.Background(), businessHoursEvents("bob", 3))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBehavioral_SkipsUnknownEntities(t *testing.T) {
	d := newBehavioral()
	require.NoError(t, d.Train(context.Background(), businessHoursEvents("alice", 30)))

	results, err := d.Detect(context.Background(), businessHoursEvents("mallory", 3))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBehavioral_IgnoresEventsWithoutUser(t *testing.T) {
	d := newBehavioral()
	require.NoError(t, d.Train(context.Background(), businessHoursEvents("alice", 30)))

	anonymous := businessHoursEvents("", 3)
	results, err := d.Detect(context.Background(), anonymous)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBehavioral_NormalActivityNotFlagged(t *testing.T) {
	d := newBehavioral()
	require.NoError(t, d.Train(context.Background(), businessHoursEvents("alice", 60)))

	// Midweek mid-morning logins from the usual workstation.
	batch := []models.Event{
		{Timestamp: time.Date(2025, 3, 19, 11, 0, 0, 0, time.UTC), UserID: "alice", EventType: "login", SourceIP: "10.0.0.1"},
		{Timestamp: time.Date(2025, 3, 19, 12, 0, 0, 0, time.UTC), UserID: "alice", EventType: "login", SourceIP: "10.0.0.1"},
		{Timestamp: time.Date(2025, 3, 19, 13, 0, 0, 0, time.UTC), UserID: "alice", EventType: "login", SourceIP: "10.0.0.1"},
	}

	results, err := d.Detect(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.False(t, r.IsAnomaly)
		assert.Equal(t, models.SeverityLow, r.Severity)
	}
}

func TestBehavioral_FlagsOffHoursBurst(t *testing.T) {
	d := newBehavioral()
	require.NoError(t, d.Train(context.Background(), businessHoursEvents("alice", 60)))

	// Saturday 03:00 failed-login burst from rotating addresses.
	base := time.Date(2025, 3, 22, 3, 0, 0, 0, time.UTC)
	batch := []models.Event{
		{Timestamp: base, UserID: "alice", EventType: models.EventTypeFailedLogin, SourceIP: "203.0.113.7"},
		{Timestamp: base.Add(time.Minute), UserID: "alice", EventType: models.EventTypeFailedLogin, SourceIP: "203.0.113.8"},
		{Timestamp: base.Add(2 * time.Minute), UserID: "alice", EventType: models.EventTypeFailedLogin, SourceIP: "203.0.113.9"},
		{Timestamp: base.Add(3 * time.Minute), UserID: "alice", EventType: models.EventTypeFailedLogin, SourceIP: "203.0.113.10"},
	}

	results, err := d.Detect(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, results, 4)

	for _, r := range results {
		assert.True(t, r.IsAnomaly)
		assert.Equal(t, models.SourceBehavioral, r.Source)
		assert.Positive(t, r.AnomalyScore)
		assert.Equal(t, "alice", r.Features["user_id"])
		assert.Equal(t, models.EventTypeFailedLogin, r.Features["event_type"])
		assert.Contains(t, r.Explanation, "alice")
		assert.NotEqual(t, models.SeverityLow, r.Severity)
	}
}

func TestBehavioral_SaveLoadRoundTrip(t *testing.T) {
	store := modelstore.New(t.TempDir())

	d := newBehavioral()
	require.NoError(t, d.Train(context.Background(), businessHoursEvents("alice", 60)))
	require.NoError(t, d.SaveTo(store))

	restored := newBehavioral()
	require.NoError(t, restored.LoadFrom(store))
	require.True(t, restored.Trained())

	batch := businessHoursEvents("alice", 5)
	want, err := d.Detect(context.Background(), batch)
	require.NoError(t, err)
	got, err := restored.Detect(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
