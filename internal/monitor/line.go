package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/danpilch/idfmpal/internal/config"
	"github.com/danpilch/idfmpal/internal/transit"
)

// Reports provides the live line status. *idfm.Service implements it.
type Reports interface {
	LineReports(ctx context.Context, lineID string, excludeElevator bool) ([]transit.DisruptionReport, error)
	Infos(ctx context.Context, lineID string) ([]transit.InfoMessage, error)
}

// Notifier delivers alerts. *notify.Notifier implements it.
type Notifier interface {
	SendDisruption(line string, r transit.DisruptionReport) error
	SendInfo(line string, m transit.InfoMessage) error
}

type LineMonitor struct {
	reports  Reports
	notifier Notifier
	logger   *logrus.Logger

	mu       sync.Mutex
	notified map[string]map[string]bool
}

func NewLineMonitor(reports Reports, notifier Notifier, logger *logrus.Logger) *LineMonitor {
	return &LineMonitor{
		reports:  reports,
		notifier: notifier,
		logger:   logger,
		notified: make(map[string]map[string]bool),
	}
}

func (m *LineMonitor) ResetNotificationState() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notified = make(map[string]map[string]bool)
}

// Check notifies every disruption and general message of the watched
// line that has not been notified yet.
func (m *LineMonitor) Check(ctx context.Context, w config.WatchConfig) error {
	reports, err := m.reports.LineReports(ctx, w.Line, !w.IncludeElevator)
	if err != nil {
		return fmt.Errorf("fetching line reports: %w", err)
	}
	infos, err := m.reports.Infos(ctx, w.Line)
	if err != nil {
		return fmt.Errorf("fetching general messages: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"line":        w.Line,
		"disruptions": len(reports),
		"messages":    len(infos),
	}).Info("line status")

	var errs []error
	for _, r := range reports {
		if !m.markNotified(w.Line, "report:"+r.ID) {
			continue
		}
		m.logger.WithFields(logrus.Fields{
			"line":     w.Line,
			"id":       r.ID,
			"severity": r.Severity,
			"effect":   r.Effect,
		}).Warn("line disruption detected")
		if err := m.notifier.SendDisruption(w.Line, r); err != nil {
			m.forget(w.Line, "report:"+r.ID)
			errs = append(errs, err)
		}
	}
	for _, info := range infos {
		if !m.markNotified(w.Line, "info:"+info.ID) {
			continue
		}
		m.logger.WithFields(logrus.Fields{
			"line":    w.Line,
			"id":      info.ID,
			"channel": info.Channel,
		}).Info("new general message")
		if err := m.notifier.SendInfo(w.Line, info); err != nil {
			m.forget(w.Line, "info:"+info.ID)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// markNotified records key for line and reports whether it was new.
func (m *LineMonitor) markNotified(line, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.notified[line] == nil {
		m.notified[line] = make(map[string]bool)
	}
	if m.notified[line][key] {
		return false
	}
	m.notified[line][key] = true
	return true
}

func (m *LineMonitor) forget(line, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.notified[line], key)
}
