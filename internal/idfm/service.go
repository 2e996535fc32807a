// Package idfm answers line, stop and live traffic queries by combining the
// cached reference listings with the PRIM live feeds.
package idfm

import (
	"context"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/danpilch/idfmpal/internal/api/prim"
	"github.com/danpilch/idfmpal/internal/reference"
	"github.com/danpilch/idfmpal/internal/transit"
)

// Listings provides the reference snapshot. *reference.Store implements it.
type Listings interface {
	Snapshot(ctx context.Context) (*reference.Snapshot, error)
}

// LiveFeed provides raw live records. *prim.Client implements it.
type LiveFeed interface {
	StopMonitoring(ctx context.Context, stopID, lineID string) ([]prim.MonitoredStopVisit, error)
	GeneralMessages(ctx context.Context, lineID string) ([]prim.InfoMessage, error)
	LineReports(ctx context.Context, lineID string, includeElevator bool) ([]prim.Disruption, error)
}

// Service is the query entry point.
type Service struct {
	listings Listings
	live     LiveFeed
	logger   *logrus.Logger
}

// NewService creates a new Service.
func NewService(listings Listings, live LiveFeed, logger *logrus.Logger) *Service {
	return &Service{
		listings: listings,
		live:     live,
		logger:   logger,
	}
}

// TrafficQuery selects the passages returned by Traffic. Empty filters
// match everything.
type TrafficQuery struct {
	StopID      string
	LineID      string
	Destination string
	Direction   string
}

// Lines returns the lines of a transport mode, or of every mode when mode
// is empty, ordered by mode then name.
func (s *Service) Lines(ctx context.Context, mode transit.Mode) ([]transit.Line, error) {
	snap, err := s.listings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	var lines []transit.Line
	for m, names := range snap.Lines {
		if mode != "" && m != mode {
			continue
		}
		for name, id := range names {
			lines = append(lines, transit.Line{Name: name, ID: id, Mode: m})
		}
	}
	slices.SortFunc(lines, func(a, b transit.Line) int {
		if c := strings.Compare(string(a.Mode), string(b.Mode)); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return lines, nil
}

// Stops returns the stops of a line, or nothing for an unknown line.
func (s *Service) Stops(ctx context.Context, lineID string) ([]transit.Stop, error) {
	snap, err := s.listings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(snap.Stops[lineID]), nil
}

// Traffic returns the upcoming passages at a stop, sorted by time then
// destination. An empty result may also mean the feed timed out.
func (s *Service) Traffic(ctx context.Context, q TrafficQuery) ([]transit.TrafficEvent, error) {
	visits, err := s.live.StopMonitoring(ctx, q.StopID, q.LineID)
	if err != nil {
		return nil, err
	}

	decoded := prim.DecodeTraffic(visits)
	if dropped := len(visits) - len(decoded); dropped > 0 {
		s.logger.WithFields(logrus.Fields{
			"stop":    q.StopID,
			"dropped": dropped,
		}).Debug("dropped undecodable stop visits")
	}

	events := decoded[:0]
	for _, e := range decoded {
		if q.Direction != "" && e.Direction != q.Direction {
			continue
		}
		if q.Destination != "" && e.DestinationName != q.Destination {
			continue
		}
		events = append(events, e)
	}
	transit.SortTraffic(events)
	return events, nil
}

// Destinations returns the distinct destination names served from a stop.
func (s *Service) Destinations(ctx context.Context, q TrafficQuery) ([]string, error) {
	q.Destination = ""
	events, err := s.Traffic(ctx, q)
	if err != nil {
		return nil, err
	}
	return distinct(events, func(e transit.TrafficEvent) string { return e.DestinationName }), nil
}

// Directions returns the distinct direction names served from a stop.
func (s *Service) Directions(ctx context.Context, q TrafficQuery) ([]string, error) {
	q.Destination, q.Direction = "", ""
	events, err := s.Traffic(ctx, q)
	if err != nil {
		return nil, err
	}
	return distinct(events, func(e transit.TrafficEvent) string { return e.Direction }), nil
}

// Infos returns the general messages of a line.
func (s *Service) Infos(ctx context.Context, lineID string) ([]transit.InfoMessage, error) {
	msgs, err := s.live.GeneralMessages(ctx, lineID)
	if err != nil {
		return nil, err
	}
	infos := make([]transit.InfoMessage, 0, len(msgs))
	for _, m := range msgs {
		infos = append(infos, prim.DecodeInfoMessage(m))
	}
	return infos, nil
}

// LineReports returns the disruptions of a line, leaving out elevator
// outages when excludeElevator is set.
func (s *Service) LineReports(ctx context.Context, lineID string, excludeElevator bool) ([]transit.DisruptionReport, error) {
	disruptions, err := s.live.LineReports(ctx, lineID, !excludeElevator)
	if err != nil {
		return nil, err
	}
	reports := make([]transit.DisruptionReport, 0, len(disruptions))
	for _, d := range disruptions {
		reports = append(reports, prim.DecodeDisruption(d))
	}
	return reports, nil
}

func distinct(events []transit.TrafficEvent, key func(transit.TrafficEvent) string) []string {
	set := make(map[string]struct{})
	for _, e := range events {
		set[key(e)] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
