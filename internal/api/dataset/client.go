package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

const (
	LinesURL         = "https://data.iledefrance-mobilites.fr/explore/dataset/referentiel-des-lignes/download/?format=json&timezone=Europe/Berlin&lang=fr"
	StopAndLinesURL  = "https://data.iledefrance-mobilites.fr/explore/dataset/arrets-lignes/download/?format=json&timezone=Europe/Berlin&lang=fr"
	StopRelationsURL = "https://data.iledefrance-mobilites.fr/explore/dataset/relations/download/?format=json&timezone=Europe/Berlin&lang=fr"
	ExchangeAreasURL = "https://data.iledefrance-mobilites.fr/api/explore/v2.1/catalog/datasets/zones-de-correspondance/exports/json?lang=fr&timezone=Europe/Berlin"
)

// ErrUnexpectedStatus is returned when a dataset endpoint answers with
// anything other than 200.
var ErrUnexpectedStatus = errors.New("unexpected status code")

// Endpoints holds the download URLs of the four reference datasets.
type Endpoints struct {
	Lines         string
	StopAndLines  string
	StopRelations string
	ExchangeAreas string
}

// DefaultEndpoints points at the public IDFM open data exports.
var DefaultEndpoints = Endpoints{
	Lines:         LinesURL,
	StopAndLines:  StopAndLinesURL,
	StopRelations: StopRelationsURL,
	ExchangeAreas: ExchangeAreasURL,
}

// Client downloads the IDFM reference datasets. No authentication is needed.
type Client struct {
	httpClient *http.Client
	endpoints  Endpoints
	retries    uint64
	logger     *logrus.Logger
}

// NewClient creates a new dataset client. Transport errors are retried up
// to retries times with exponential backoff; HTTP errors are not.
func NewClient(endpoints Endpoints, timeout time.Duration, retries uint64, logger *logrus.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoints:  endpoints,
		retries:    retries,
		logger:     logger,
	}
}

// Lines downloads the lines reference.
func (c *Client) Lines(ctx context.Context) ([]Record[LineFields], error) {
	var out []Record[LineFields]
	if err := c.get(ctx, "lines", c.endpoints.Lines, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StopAndLines downloads the line to stop associations.
func (c *Client) StopAndLines(ctx context.Context) ([]Record[StopLineFields], error) {
	var out []Record[StopLineFields]
	if err := c.get(ctx, "stop_and_lines", c.endpoints.StopAndLines, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StopRelations downloads the stop point / stop area / exchange area relations.
func (c *Client) StopRelations(ctx context.Context) ([]Record[RelationFields], error) {
	var out []Record[RelationFields]
	if err := c.get(ctx, "stop_relations", c.endpoints.StopRelations, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ExchangeAreas downloads the exchange areas.
func (c *Client) ExchangeAreas(ctx context.Context) ([]ExchangeArea, error) {
	var out []ExchangeArea
	if err := c.get(ctx, "exchange_areas", c.endpoints.ExchangeAreas, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, name, url string, out any) error {
	start := time.Now()
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "idfmpal/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(fmt.Errorf("executing request: %w", err))
			}
			return fmt.Errorf("executing request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("%w: %d from %s", ErrUnexpectedStatus, resp.StatusCode, name))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decoding %s: %w", name, err))
		}
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.retries), ctx)
	notify := func(err error, wait time.Duration) {
		c.logger.WithFields(logrus.Fields{
			"dataset": name,
			"error":   err,
			"wait":    wait,
		}).Warn("dataset download failed, retrying")
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return fmt.Errorf("fetching dataset %s: %w", name, err)
	}

	c.logger.WithFields(logrus.Fields{
		"dataset":  name,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Debug("dataset downloaded")
	return nil
}
