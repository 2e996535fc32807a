// Package transit holds the normalized line, stop and live traffic model
// shared by the dataset join and the live feed client.
package transit

import (
	"fmt"
	"strings"
	"time"
)

// Mode is a transport mode as published by the lines reference.
type Mode string

const (
	Metro Mode = "metro"
	Tram  Mode = "tram"
	Rail  Mode = "rail"
	Bus   Mode = "bus"
)

// Modes lists every known transport mode.
var Modes = []Mode{Metro, Tram, Rail, Bus}

// ParseMode returns the Mode named by s. "train" is accepted for Rail.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "metro":
		return Metro, nil
	case "tram", "tramway":
		return Tram, nil
	case "rail", "train":
		return Rail, nil
	case "bus":
		return Bus, nil
	}
	return "", fmt.Errorf("unknown transport mode %q", s)
}

// Line is a named route within one transport mode.
type Line struct {
	Name string `json:"name"`
	ID   string `json:"id"`
	Mode Mode   `json:"mode"`
}

// Stop is a place where a line can be boarded. ExchangeAreaID and
// ExchangeAreaName are empty when no interchange could be resolved.
type Stop struct {
	Name             string  `json:"name"`
	StopID           string  `json:"stop_id"`
	ExchangeAreaID   string  `json:"exchange_area_id,omitempty"`
	ExchangeAreaName string  `json:"exchange_area_name,omitempty"`
	City             string  `json:"city"`
	ZipCode          string  `json:"zip_code"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
}

// MonitoringRef returns the identifier to query live traffic with: the
// exchange area when one is known, the stop point otherwise.
func (s Stop) MonitoringRef() string {
	if s.ExchangeAreaID != "" {
		return s.ExchangeAreaID
	}
	return s.StopID
}

// Status is the SIRI call status of a vehicle at a stop.
type Status string

const (
	StatusOnTime      Status = "onTime"
	StatusEarly       Status = "early"
	StatusDelayed     Status = "delayed"
	StatusCancelled   Status = "cancelled"
	StatusArrived     Status = "arrived"
	StatusDeparted    Status = "departed"
	StatusMissed      Status = "missed"
	StatusNoReport    Status = "noReport"
	StatusNotExpected Status = "notExpected"
	StatusUnknown     Status = "unknown"
)

// ParseStatus maps a SIRI status code to a Status, defaulting to StatusUnknown.
func ParseStatus(code string) Status {
	switch s := Status(code); s {
	case StatusOnTime, StatusEarly, StatusDelayed, StatusCancelled, StatusArrived,
		StatusDeparted, StatusMissed, StatusNoReport, StatusNotExpected:
		return s
	}
	return StatusUnknown
}

// Delayed reports whether the status means the vehicle is not running as planned.
func (s Status) Delayed() bool {
	return s != StatusOnTime && s != StatusArrived && s != StatusUnknown
}

// InfoMessage is a general message published for a line.
type InfoMessage struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Severity int       `json:"severity"`
	Channel  string    `json:"channel"`
}

// Period is one application window of a disruption.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DisruptionReport is a disruption attached to a line.
type DisruptionReport struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Cause     string    `json:"cause"`
	Category  string    `json:"category"`
	Severity  string    `json:"severity"`
	Effect    string    `json:"effect"`
	Tags      []string  `json:"tags,omitempty"`
	Periods   []Period  `json:"periods"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether t falls within one of the report's periods.
func (r DisruptionReport) Active(t time.Time) bool {
	for _, p := range r.Periods {
		if !t.Before(p.Start) && (p.End.IsZero() || t.Before(p.End)) {
			return true
		}
	}
	return false
}
