package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/danpilch/idfmpal/internal/api/dataset"
	"github.com/danpilch/idfmpal/internal/api/prim"
)

// APIKeyEnv overrides the api_key of the config file.
const APIKeyEnv = "IDFM_API_KEY"

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

type Endpoints struct {
	StopMonitoring string `yaml:"stop_monitoring" validate:"required,url"`
	GeneralMessage string `yaml:"general_message" validate:"required,url"`
	LineReports    string `yaml:"line_reports" validate:"required"`
	Lines          string `yaml:"lines" validate:"required,url"`
	StopAndLines   string `yaml:"stop_and_lines" validate:"required,url"`
	StopRelations  string `yaml:"stop_relations" validate:"required,url"`
	ExchangeAreas  string `yaml:"exchange_areas" validate:"required,url"`
}

// Live returns the PRIM endpoints.
func (e Endpoints) Live() prim.Endpoints {
	return prim.Endpoints{
		StopMonitoring: e.StopMonitoring,
		GeneralMessage: e.GeneralMessage,
		LineReports:    e.LineReports,
	}
}

// Datasets returns the reference dataset endpoints.
func (e Endpoints) Datasets() dataset.Endpoints {
	return dataset.Endpoints{
		Lines:         e.Lines,
		StopAndLines:  e.StopAndLines,
		StopRelations: e.StopRelations,
		ExchangeAreas: e.ExchangeAreas,
	}
}

// WatchConfig is one line watched by the watch command. When Stop is set,
// the passages of the line at that stop are watched as well.
type WatchConfig struct {
	Line            string        `yaml:"line" validate:"required"`
	Days            []string      `yaml:"days"` // e.g., ["monday", "friday"]
	Interval        time.Duration `yaml:"interval" validate:"gte=0"`
	IncludeElevator bool          `yaml:"include_elevator"`
	Stop            string        `yaml:"stop"`
	Destination     string        `yaml:"destination"`
	Window          time.Duration `yaml:"window" validate:"gte=0"`
}

// IsActiveDay returns true if the given weekday is in the configured days list.
// If no days are configured, returns true (runs every day).
func (w WatchConfig) IsActiveDay(weekday time.Weekday) bool {
	if len(w.Days) == 0 {
		return true
	}
	dayName := strings.ToLower(weekday.String())
	for _, d := range w.Days {
		if strings.ToLower(d) == dayName {
			return true
		}
	}
	return false
}

// IsActiveToday returns true if today is an active day for this watch.
func (w WatchConfig) IsActiveToday() bool {
	return w.IsActiveDay(time.Now().Weekday())
}

type Config struct {
	APIKey          string        `yaml:"api_key"`
	Timeout         time.Duration `yaml:"timeout" validate:"gt=0"`
	DatasetTimeout  time.Duration `yaml:"dataset_timeout" validate:"gt=0"`
	DatasetRetries  uint64        `yaml:"dataset_retries" validate:"lte=10"`
	ExcludeElevator bool          `yaml:"exclude_elevator"`
	LogLevel        string        `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn warning error"`
	Endpoints       Endpoints     `yaml:"endpoints"`
	Watches         []WatchConfig `yaml:"watches" validate:"dive"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Timeout:         prim.DefaultTimeout,
		DatasetTimeout:  2 * time.Minute,
		DatasetRetries:  2,
		ExcludeElevator: true,
		LogLevel:        "info",
		Endpoints: Endpoints{
			StopMonitoring: prim.StopMonitoringURL,
			GeneralMessage: prim.GeneralMessageURL,
			LineReports:    prim.LineReportsURL,
			Lines:          dataset.LinesURL,
			StopAndLines:   dataset.StopAndLinesURL,
			StopRelations:  dataset.StopRelationsURL,
			ExchangeAreas:  dataset.ExchangeAreasURL,
		},
	}
}

// Load reads the config file at path on top of the defaults. A missing
// file is not an error. The IDFM_API_KEY environment variable takes
// precedence over the file's api_key.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if key := os.Getenv(APIKeyEnv); key != "" {
		cfg.APIKey = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	for i, w := range c.Watches {
		for _, d := range w.Days {
			if _, ok := weekdays[strings.ToLower(d)]; !ok {
				return fmt.Errorf("watches[%d]: unknown day %q", i, d)
			}
		}
	}
	return nil
}

// RequireAPIKey returns an error when no API key is configured. Only the
// live endpoints need one.
func (c *Config) RequireAPIKey() error {
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required (set it in the config file or %s)", APIKeyEnv)
	}
	return nil
}
