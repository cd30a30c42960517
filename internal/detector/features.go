package detector

import (
	"time"

	"github.com/kiranshivaraju/threathunter/pkg/models"
)

// behavioralFeatures turns a single entity's events into one feature row per
// event: time-of-day context for the event itself plus activity and risk
// aggregates computed over the whole slice. Aggregates with no matching
// events contribute zero.
func behavioralFeatures(events []models.Event) [][]float64 {
	srcAddrs := make(map[string]struct{})
	dstAddrs := make(map[string]struct{})
	hourCounts := make(map[time.Time]int)

	var failedLogins, privEscalations float64
	var transferredBytes float64

	for _, ev := range events {
		if ev.SourceIP != "" {
			srcAddrs[ev.SourceIP] = struct{}{}
		}
		if ev.DestinationIP != "" {
			dstAddrs[ev.DestinationIP] = struct{}{}
		}
		hourCounts[ev.Timestamp.Truncate(time.Hour)]++

		switch ev.EventType {
		case models.EventTypeFailedLogin:
			failedLogins++
		case models.EventTypePrivilegeEscalation:
			privEscalations++
		case models.EventTypeDataTransfer:
			transferredBytes += float64(ev.BytesTransferred)
		}
	}

	rows := make([][]float64, len(events))
	for i, ev := range events {
		dow := mondayIndexedWeekday(ev.Timestamp)
		weekend := 0.0
		if dow >= 5 {
			weekend = 1
		}

		rows[i] = []float64{
			float64(ev.Timestamp.Hour()),
			float64(dow),
			weekend,
			float64(hourCounts[ev.Timestamp.Truncate(time.Hour)]),
			float64(len(srcAddrs)),
			float64(len(dstAddrs)),
			failedLogins,
			privEscalations,
			transferredBytes,
		}
	}
	return rows
}

// mondayIndexedWeekday maps time.Weekday (Sunday=0) to Monday=0..Sunday=6 so
// the weekend flag covers indices 5 and 6.
func mondayIndexedWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// groupByEntity splits events by entity identifier, preserving both the
// order of first appearance and each entity's internal event order.
func groupByEntity(events []models.Event) (map[string][]models.Event, []string) {
	groups := make(map[string][]models.Event)
	var order []string
	for _, ev := range events {
		if ev.UserID == "" {
			continue
		}
		if _, seen := groups[ev.UserID]; !seen {
			order = append(order, ev.UserID)
		}
		groups[ev.UserID] = append(groups[ev.UserID], ev)
	}
	return groups, order
}
