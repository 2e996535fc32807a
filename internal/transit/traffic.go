package transit

import (
	"slices"
	"strings"
	"time"
)

// TrafficEvent is one upcoming passage of a vehicle at a stop.
// A zero Scheduled means no expected time was published.
type TrafficEvent struct {
	LineID          string    `json:"line_id"`
	Note            string    `json:"note"`
	DestinationName string    `json:"destination_name"`
	DestinationID   string    `json:"destination_id"`
	Direction       string    `json:"direction"`
	Scheduled       time.Time `json:"scheduled"`
	Delayed         bool      `json:"delayed"`
	AtStop          *bool     `json:"at_stop"`
	Platform        string    `json:"platform"`
	Status          Status    `json:"status"`
}

// Equal reports whether both events describe the same passage: same
// scheduled time, line and destination.
func (e TrafficEvent) Equal(o TrafficEvent) bool {
	return e.Scheduled.Equal(o.Scheduled) && e.LineID == o.LineID && e.DestinationID == o.DestinationID
}

// Before reports whether the event is scheduled strictly before t.
func (e TrafficEvent) Before(t time.Time) bool {
	return e.Scheduled.Before(t)
}

// CompareTraffic orders events by scheduled time, then by destination name.
// A missing time on either side ties the first leg and a missing
// destination name on either side ties the second.
func CompareTraffic(a, b TrafficEvent) int {
	if !a.Scheduled.IsZero() && !b.Scheduled.IsZero() {
		if c := a.Scheduled.Compare(b.Scheduled); c != 0 {
			return c
		}
	}
	if a.DestinationName == "" || b.DestinationName == "" {
		return 0
	}
	return strings.Compare(a.DestinationName, b.DestinationName)
}

// SortTraffic sorts events in place with CompareTraffic, keeping the
// relative order of tied events.
func SortTraffic(events []TrafficEvent) {
	slices.SortStableFunc(events, CompareTraffic)
}
