package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/danpilch/idfmpal/internal/config"
	"github.com/danpilch/idfmpal/internal/idfm"
	"github.com/danpilch/idfmpal/internal/transit"
)

// DefaultWindow is how far ahead passages are watched when a watch sets no window.
const DefaultWindow = 30 * time.Minute

// Statuses alerted as delays. Departed or early passages also count as
// delayed on a TrafficEvent but need no alert.
var delayStatuses = map[transit.Status]bool{
	transit.StatusDelayed:     true,
	transit.StatusMissed:      true,
	transit.StatusNotExpected: true,
}

// Traffic provides the upcoming passages at a stop. *idfm.Service implements it.
type Traffic interface {
	Traffic(ctx context.Context, q idfm.TrafficQuery) ([]transit.TrafficEvent, error)
}

// DepartureNotifier delivers passage alerts. *notify.Notifier implements it.
type DepartureNotifier interface {
	SendCancellation(stop string, e transit.TrafficEvent) error
	SendDelay(stop string, e transit.TrafficEvent) error
}

type DepartureMonitor struct {
	traffic  Traffic
	notifier DepartureNotifier
	logger   *logrus.Logger
	now      func() time.Time

	mu              sync.Mutex
	notifiedDelays  map[string]transit.Status
	notifiedCancels map[string]bool
}

func NewDepartureMonitor(traffic Traffic, notifier DepartureNotifier, logger *logrus.Logger) *DepartureMonitor {
	return &DepartureMonitor{
		traffic:         traffic,
		notifier:        notifier,
		logger:          logger,
		now:             time.Now,
		notifiedDelays:  make(map[string]transit.Status),
		notifiedCancels: make(map[string]bool),
	}
}

func (m *DepartureMonitor) ResetNotificationState() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifiedDelays = make(map[string]transit.Status)
	m.notifiedCancels = make(map[string]bool)
}

// Check alerts on cancelled or delayed passages of the watched line at the
// watched stop within the watch window. Watches without a stop are ignored.
func (m *DepartureMonitor) Check(ctx context.Context, w config.WatchConfig) error {
	if w.Stop == "" {
		return nil
	}

	m.logger.WithFields(logrus.Fields{
		"line": w.Line,
		"stop": w.Stop,
	}).Info("checking passages")

	events, err := m.traffic.Traffic(ctx, idfm.TrafficQuery{
		StopID:      w.Stop,
		LineID:      w.Line,
		Destination: w.Destination,
	})
	if err != nil {
		return fmt.Errorf("fetching passages: %w", err)
	}

	window := w.Window
	if window <= 0 {
		window = DefaultWindow
	}
	horizon := m.now().Add(window)

	var errs []error
	for _, e := range events {
		// The stop may have answered for every line after an unknown line ref.
		if e.LineID != "" && e.LineID != w.Line {
			continue
		}
		if !e.Scheduled.IsZero() && !e.Before(horizon) {
			continue
		}

		var err error
		switch {
		case e.Status == transit.StatusCancelled:
			err = m.handleCancellation(w.Stop, e)
		case delayStatuses[e.Status]:
			err = m.handleDelay(w.Stop, e)
		default:
			m.logger.WithFields(logrus.Fields{
				"line":        e.LineID,
				"destination": e.DestinationName,
				"expected":    e.Scheduled,
				"status":      e.Status,
			}).Debug("passage running as planned")
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *DepartureMonitor) handleCancellation(stop string, e transit.TrafficEvent) error {
	key := passageKey(e)

	m.mu.Lock()
	alreadyNotified := m.notifiedCancels[key]
	if !alreadyNotified {
		m.notifiedCancels[key] = true
	}
	m.mu.Unlock()

	if alreadyNotified {
		return nil
	}

	m.logger.WithFields(logrus.Fields{
		"line":        e.LineID,
		"destination": e.DestinationName,
		"mission":     e.Note,
	}).Warn("passage cancelled")

	if err := m.notifier.SendCancellation(stop, e); err != nil {
		m.mu.Lock()
		delete(m.notifiedCancels, key)
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *DepartureMonitor) handleDelay(stop string, e transit.TrafficEvent) error {
	key := passageKey(e)

	m.mu.Lock()
	last, seen := m.notifiedDelays[key]
	shouldNotify := !seen || last != e.Status
	if shouldNotify {
		m.notifiedDelays[key] = e.Status
	}
	m.mu.Unlock()

	if !shouldNotify {
		m.logger.WithFields(logrus.Fields{
			"line":   e.LineID,
			"status": e.Status,
		}).Debug("delay already notified for this passage")
		return nil
	}

	m.logger.WithFields(logrus.Fields{
		"line":        e.LineID,
		"destination": e.DestinationName,
		"expected":    e.Scheduled,
		"platform":    e.Platform,
		"status":      e.Status,
	}).Warn("passage delayed")

	if err := m.notifier.SendDelay(stop, e); err != nil {
		m.mu.Lock()
		if seen {
			m.notifiedDelays[key] = last
		} else {
			delete(m.notifiedDelays, key)
		}
		m.mu.Unlock()
		return err
	}
	return nil
}

// passageKey identifies a vehicle journey across polls. The expected time
// drifts with delays, so it is only used when no mission code is published.
func passageKey(e transit.TrafficEvent) string {
	if e.Note != "" {
		return e.LineID + "|" + e.DestinationID + "|" + e.Note
	}
	return e.LineID + "|" + e.DestinationID + "|" + e.Scheduled.UTC().Format(time.RFC3339)
}
