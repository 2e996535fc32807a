package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/danpilch/idfmpal/internal/idfm"
	"github.com/danpilch/idfmpal/internal/monitor"
	"github.com/danpilch/idfmpal/internal/notify"
	"github.com/danpilch/idfmpal/internal/scheduler"
	"github.com/danpilch/idfmpal/internal/transit"
)

type LinesCmd struct {
	Mode string `help:"Transport mode (metro, tram, rail, bus)"`
}

func (c *LinesCmd) Run(a *app) error {
	var mode transit.Mode
	if c.Mode != "" {
		m, err := transit.ParseMode(c.Mode)
		if err != nil {
			return err
		}
		mode = m
	}
	lines, err := a.service.Lines(context.Background(), mode)
	if err != nil {
		return err
	}
	return a.out.Lines(lines)
}

type StopsCmd struct {
	Line string `arg:"" help:"Line id, e.g. C01371"`
}

func (c *StopsCmd) Run(a *app) error {
	stops, err := a.service.Stops(context.Background(), c.Line)
	if err != nil {
		return err
	}
	return a.out.Stops(stops)
}

type TrafficFlags struct {
	Stop string `arg:"" help:"Stop point or exchange area id"`
	Line string `help:"Only passages of this line"`
}

func (f TrafficFlags) query() idfm.TrafficQuery {
	return idfm.TrafficQuery{StopID: f.Stop, LineID: f.Line}
}

type TrafficCmd struct {
	TrafficFlags
	Destination string `help:"Only passages towards this destination"`
	Direction   string `help:"Only passages in this direction"`
}

func (c *TrafficCmd) Run(a *app) error {
	if err := a.cfg.RequireAPIKey(); err != nil {
		return err
	}
	q := c.query()
	q.Destination, q.Direction = c.Destination, c.Direction
	events, err := a.service.Traffic(context.Background(), q)
	if err != nil {
		return err
	}
	return a.out.Traffic(events)
}

type DestinationsCmd struct {
	TrafficFlags
	Direction string `help:"Only passages in this direction"`
}

func (c *DestinationsCmd) Run(a *app) error {
	if err := a.cfg.RequireAPIKey(); err != nil {
		return err
	}
	q := c.query()
	q.Direction = c.Direction
	names, err := a.service.Destinations(context.Background(), q)
	if err != nil {
		return err
	}
	return a.out.Names(names)
}

type DirectionsCmd struct {
	TrafficFlags
}

func (c *DirectionsCmd) Run(a *app) error {
	if err := a.cfg.RequireAPIKey(); err != nil {
		return err
	}
	names, err := a.service.Directions(context.Background(), c.query())
	if err != nil {
		return err
	}
	return a.out.Names(names)
}

type InfosCmd struct {
	Line string `arg:"" help:"Line id, e.g. C01742"`
}

func (c *InfosCmd) Run(a *app) error {
	if err := a.cfg.RequireAPIKey(); err != nil {
		return err
	}
	infos, err := a.service.Infos(context.Background(), c.Line)
	if err != nil {
		return err
	}
	return a.out.Infos(infos)
}

type ReportsCmd struct {
	Line            string `arg:"" help:"Line id, e.g. C01742"`
	IncludeElevator bool   `help:"Keep elevator outages"`
}

func (c *ReportsCmd) Run(a *app) error {
	if err := a.cfg.RequireAPIKey(); err != nil {
		return err
	}
	exclude := a.cfg.ExcludeElevator && !c.IncludeElevator
	reports, err := a.service.LineReports(context.Background(), c.Line, exclude)
	if err != nil {
		return err
	}
	return a.out.Reports(reports)
}

type WatchCmd struct{}

func (c *WatchCmd) Run(a *app) error {
	if err := a.cfg.RequireAPIKey(); err != nil {
		return err
	}
	if len(a.cfg.Watches) == 0 {
		return errors.New("no watches configured")
	}

	// Get credentials from environment
	pushoverToken := os.Getenv("PUSHOVER_TOKEN")
	pushoverUser := os.Getenv("PUSHOVER_USER")
	if pushoverToken == "" || pushoverUser == "" {
		return errors.New("PUSHOVER_TOKEN and PUSHOVER_USER environment variables are required")
	}

	notifier := notify.NewNotifier(pushoverToken, pushoverUser, a.logger)
	lineMonitor := monitor.NewLineMonitor(a.service, notifier, a.logger)
	departureMonitor := monitor.NewDepartureMonitor(a.service, notifier, a.logger)
	sched := scheduler.NewScheduler(a.cfg.Watches, lineMonitor, departureMonitor, a.logger)

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		a.logger.WithField("signal", sig).Info("received signal, shutting down")
		cancel()
	}()

	lines := make([]string, 0, len(a.cfg.Watches))
	for _, w := range a.cfg.Watches {
		lines = append(lines, w.Line)
	}
	a.logger.WithField("lines", lines).Info("starting idfmpal watch")

	sched.Start(ctx)

	// Wait for context cancellation
	<-ctx.Done()

	// Stop scheduler gracefully
	sched.Stop()
	a.logger.Info("idfmpal stopped")
	return nil
}
