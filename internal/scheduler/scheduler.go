package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/danpilch/idfmpal/internal/config"
)

// DefaultInterval is used for watches without an interval.
const DefaultInterval = 5 * time.Minute

// Checker runs one kind of check for a watch. *monitor.LineMonitor and
// *monitor.DepartureMonitor implement it.
type Checker interface {
	Check(ctx context.Context, w config.WatchConfig) error
	ResetNotificationState()
}

type Scheduler struct {
	watches    []config.WatchConfig
	lines      Checker
	departures Checker
	logger     *logrus.Logger
	tick       time.Duration

	mu         sync.Mutex
	lastRun    map[int]time.Time
	currentDay int
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

func NewScheduler(watches []config.WatchConfig, lines, departures Checker, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		watches:    watches,
		lines:      lines,
		departures: departures,
		logger:     logger,
		tick:       time.Minute,
		lastRun:    make(map[int]time.Time),
		stopCh:     make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.logger.WithField("watches", len(s.watches)).Info("scheduler started")
	s.runDue(ctx, time.Now())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped: context cancelled")
			return
		case <-s.stopCh:
			s.logger.Info("scheduler stopped: stop signal received")
			return
		case now := <-ticker.C:
			s.runDue(ctx, now)
		}
	}
}

// runDue checks every watch active on now's weekday whose interval has
// elapsed since its last check.
func (s *Scheduler) runDue(ctx context.Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Day() != s.currentDay {
		if s.currentDay != 0 {
			s.logger.Info("day changed, resetting notification state")
			s.lines.ResetNotificationState()
			s.departures.ResetNotificationState()
		}
		s.currentDay = now.Day()
	}

	for i, w := range s.watches {
		if !w.IsActiveDay(now.Weekday()) {
			continue
		}
		interval := w.Interval
		if interval <= 0 {
			interval = DefaultInterval
		}
		if last, ok := s.lastRun[i]; ok && now.Sub(last) < interval {
			continue
		}
		s.lastRun[i] = now

		s.logger.WithFields(logrus.Fields{
			"line":     w.Line,
			"interval": interval,
		}).Debug("checking line")

		if err := s.lines.Check(ctx, w); err != nil {
			s.logger.WithFields(logrus.Fields{
				"line":  w.Line,
				"error": err,
			}).Error("line check failed")
		}
		if err := s.departures.Check(ctx, w); err != nil {
			s.logger.WithFields(logrus.Fields{
				"line":  w.Line,
				"stop":  w.Stop,
				"error": err,
			}).Error("passage check failed")
		}
	}
}
