package prim

import (
	"errors"
	"time"
	_ "time/tzdata"

	"github.com/danpilch/idfmpal/internal/htmltext"
	"github.com/danpilch/idfmpal/internal/transit"
)

const (
	messageTypeTitle = "SHORT_MESSAGE"
	messageTypeBody  = "TEXT_ONLY"

	channelTitle = "titre"
	channelBody  = "moteur"

	navitiaTimeLayout = "20060102T150405"
)

// ErrMissingDestination is returned when a stop visit has no destination.
var ErrMissingDestination = errors.New("stop visit has no destination")

// reportLocation is the civil time zone of navitia periods.
var reportLocation = mustLoadLocation("Europe/Paris")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// DecodeTrafficEvent converts one stop visit. It returns ok=false without an
// error when neither an expected arrival nor an expected departure time is
// published, and ErrMissingDestination when the destination block is absent
// or names no destination.
func DecodeTrafficEvent(v MonitoredStopVisit) (event transit.TrafficEvent, ok bool, err error) {
	journey := v.MonitoredVehicleJourney
	if journey == nil || journey.DestinationRef == nil {
		return transit.TrafficEvent{}, false, ErrMissingDestination
	}
	destination, found := first(journey.DestinationName)
	if !found || destination == "" {
		return transit.TrafficEvent{}, false, ErrMissingDestination
	}

	call := journey.MonitoredCall
	if call == nil {
		return transit.TrafficEvent{}, false, nil
	}
	scheduled, found := parseUTC(call.ExpectedArrivalTime)
	if !found {
		scheduled, found = parseUTC(call.ExpectedDepartureTime)
	}
	if !found {
		return transit.TrafficEvent{}, false, nil
	}

	direction, found := first(journey.DirectionName)
	if !found {
		direction = destination
	}
	note, _ := first(journey.JourneyNote)

	var lineID string
	if journey.LineRef != nil {
		lineID = transit.LineIDFromRef(journey.LineRef.Value)
	}

	var platform string
	if call.ArrivalPlatformName != nil {
		platform = call.ArrivalPlatformName.Value
	}

	code := call.ArrivalStatus
	if code == "" {
		code = call.DepartureStatus
	}
	status := transit.ParseStatus(code)

	return transit.TrafficEvent{
		LineID:          lineID,
		Note:            note,
		DestinationName: destination,
		DestinationID:   journey.DestinationRef.Value,
		Direction:       direction,
		Scheduled:       scheduled,
		Delayed:         status.Delayed(),
		AtStop:          call.VehicleAtStop,
		Platform:        platform,
		Status:          status,
	}, true, nil
}

// DecodeTraffic converts a batch of stop visits, dropping the ones that
// cannot be decoded.
func DecodeTraffic(visits []MonitoredStopVisit) []transit.TrafficEvent {
	events := make([]transit.TrafficEvent, 0, len(visits))
	for _, v := range visits {
		e, ok, err := DecodeTrafficEvent(v)
		if err != nil || !ok {
			continue
		}
		events = append(events, e)
	}
	return events
}

// DecodeInfoMessage converts one general message.
func DecodeInfoMessage(m InfoMessage) transit.InfoMessage {
	var title, body string
	var haveTitle, haveBody bool
	for _, msg := range m.Content.Message {
		if msg.MessageText == nil {
			continue
		}
		switch msg.MessageType {
		case messageTypeTitle:
			if !haveTitle {
				title, haveTitle = msg.MessageText.Value, true
			}
		case messageTypeBody:
			if !haveBody {
				body, haveBody = msg.MessageText.Value, true
			}
		}
	}

	info := transit.InfoMessage{
		Title:    title,
		Message:  htmltext.Strip(body),
		Severity: m.InfoMessageVersion,
	}
	if m.InfoMessageIdentifier != nil {
		info.ID = m.InfoMessageIdentifier.Value
	} else {
		info.ID = m.ItemIdentifier
	}
	if m.InfoChannelRef != nil {
		info.Channel = m.InfoChannelRef.Value
	}
	info.Start, _ = parseUTC(m.RecordedAtTime)
	info.End, _ = parseUTC(m.ValidUntilTime)
	return info
}

// DecodeDisruption converts one navitia disruption. Periods are read in
// the Europe/Paris time zone.
func DecodeDisruption(d Disruption) transit.DisruptionReport {
	report := transit.DisruptionReport{
		ID:       d.ID,
		Status:   d.Status,
		Cause:    d.Cause,
		Category: d.Category,
	}
	if report.ID == "" {
		report.ID = d.DisruptionID
	}
	if d.Severity != nil {
		report.Severity = d.Severity.Name
		report.Effect = d.Severity.Effect
	}

	var haveTitle, haveBody bool
	for _, m := range d.Messages {
		switch m.Channel.Name {
		case channelTitle:
			if !haveTitle {
				report.Title, haveTitle = m.Text, true
			}
		case channelBody:
			if !haveBody {
				report.Message, haveBody = htmltext.Strip(m.Text), true
			}
		}
	}

	for _, t := range d.Tags {
		report.Tags = append(report.Tags, string(t))
	}
	for _, p := range d.ApplicationPeriods {
		start, _ := parseReportTime(p.Begin)
		end, _ := parseReportTime(p.End)
		report.Periods = append(report.Periods, transit.Period{Start: start, End: end})
	}
	report.UpdatedAt, _ = parseReportTime(d.UpdatedAt)
	return report
}

func parseUTC(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func parseReportTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(navitiaTimeLayout, s, reportLocation)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
