package main

import (
	"os"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"

	"github.com/danpilch/idfmpal/internal/api/dataset"
	"github.com/danpilch/idfmpal/internal/api/prim"
	"github.com/danpilch/idfmpal/internal/config"
	"github.com/danpilch/idfmpal/internal/idfm"
	"github.com/danpilch/idfmpal/internal/reference"
)

var CLI struct {
	Config string `help:"Path to config file" default:"config.yaml" type:"path"`
	JSON   bool   `help:"Print results as JSON"`

	Lines        LinesCmd        `cmd:"" help:"List lines, optionally for one transport mode"`
	Stops        StopsCmd        `cmd:"" help:"List the stops of a line"`
	Traffic      TrafficCmd      `cmd:"" help:"Show upcoming passages at a stop"`
	Destinations DestinationsCmd `cmd:"" help:"List destinations served from a stop"`
	Directions   DirectionsCmd   `cmd:"" help:"List directions served from a stop"`
	Infos        InfosCmd        `cmd:"" help:"Show general messages for a line"`
	Reports      ReportsCmd      `cmd:"" help:"Show disruption reports for a line"`
	Watch        WatchCmd        `cmd:"" help:"Watch lines and send Pushover alerts on disruptions"`
}

// app carries the wiring shared by every command.
type app struct {
	cfg     *config.Config
	logger  *logrus.Logger
	service *idfm.Service
	out     *printer
}

func main() {
	kctx := kong.Parse(&CLI)

	// Setup structured logging with logfmt
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	})

	// Load configuration
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		logger.WithField("error", err).Fatal("failed to load config")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	// Initialize clients
	datasets := dataset.NewClient(cfg.Endpoints.Datasets(), cfg.DatasetTimeout, cfg.DatasetRetries, logger)
	store := reference.NewStore(datasets, cfg.DatasetTimeout, logger)
	live := prim.NewClient(cfg.APIKey, cfg.Timeout, cfg.Endpoints.Live(), logger)

	a := &app{
		cfg:     cfg,
		logger:  logger,
		service: idfm.NewService(store, live, logger),
		out:     &printer{w: os.Stdout, json: CLI.JSON},
	}

	if err := kctx.Run(a); err != nil {
		logger.WithField("error", err).Fatal("command failed")
	}
}
