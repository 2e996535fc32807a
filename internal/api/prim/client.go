// Package prim is a client for the IDFM PRIM real-time endpoints: SIRI Lite
// stop-monitoring and general-message, and navitia line reports.
package prim

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/danpilch/idfmpal/internal/transit"
)

const (
	StopMonitoringURL = "https://prim.iledefrance-mobilites.fr/marketplace/stop-monitoring"
	GeneralMessageURL = "https://prim.iledefrance-mobilites.fr/marketplace/general-message"
	// LineReportsURL has a single %s for the line id.
	LineReportsURL = "https://prim.iledefrance-mobilites.fr/marketplace/v2/navitia/line_reports/lines/line:IDFM:%s/line_reports"

	DefaultTimeout = 60 * time.Second

	elevatorTag = "Ascenseur"
)

// Endpoints holds the URLs of the live endpoints.
type Endpoints struct {
	StopMonitoring string
	GeneralMessage string
	LineReports    string
}

// DefaultEndpoints points at the public PRIM marketplace.
var DefaultEndpoints = Endpoints{
	StopMonitoring: StopMonitoringURL,
	GeneralMessage: GeneralMessageURL,
	LineReports:    LineReportsURL,
}

// Outcome is the result class of a live feed call.
type Outcome int

const (
	// OK means the feed returned data.
	OK Outcome = iota
	// NoData means the call timed out, failed upstream, or returned no delivery.
	NoData
	// UnknownIdentifiers means the feed rejected the MonitoringRef/LineRef pair.
	UnknownIdentifiers
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case NoData:
		return "no_data"
	case UnknownIdentifiers:
		return "unknown_identifiers"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result is a delivery together with its outcome. Delivery is only
// meaningful when Outcome is OK.
type Result struct {
	Outcome  Outcome
	Delivery Delivery
}

// Client is a PRIM API client. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	apiKey     string
	timeout    time.Duration
	endpoints  Endpoints
	logger     *logrus.Logger
}

// NewClient creates a new PRIM client. Every request is bounded by timeout;
// a zero timeout means DefaultTimeout.
func NewClient(apiKey string, timeout time.Duration, endpoints Endpoints, logger *logrus.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{},
		apiKey:     apiKey,
		timeout:    timeout,
		endpoints:  endpoints,
		logger:     logger,
	}
}

// StopMonitoring returns the upcoming visits at a stop. lineID narrows the
// query when set; if the feed reports the stop/line pair as unknown the
// query is retried once without it. A timeout yields no visits and no error.
func (c *Client) StopMonitoring(ctx context.Context, stopID, lineID string) ([]MonitoredStopVisit, error) {
	res, err := c.stopMonitoring(ctx, stopID, lineID)
	if err != nil {
		return nil, err
	}

	if res.Outcome == UnknownIdentifiers && lineID != "" {
		c.logger.WithFields(logrus.Fields{
			"stop": stopID,
			"line": lineID,
		}).Info("unknown stop/line pair, retrying without line")
		res, err = c.stopMonitoring(ctx, stopID, "")
		if err != nil {
			return nil, err
		}
	}

	if res.Outcome != OK || res.Delivery.StopMonitoring == nil {
		return nil, nil
	}
	return res.Delivery.StopMonitoring.MonitoredStopVisit, nil
}

func (c *Client) stopMonitoring(ctx context.Context, stopID, lineID string) (Result, error) {
	u, err := url.Parse(c.endpoints.StopMonitoring)
	if err != nil {
		return Result{}, fmt.Errorf("parsing stop monitoring url: %w", err)
	}
	q := u.Query()
	q.Set("MonitoringRef", transit.MonitoringRef(stopID))
	if lineID != "" {
		q.Set("LineRef", transit.LineRef(lineID))
	}
	u.RawQuery = q.Encode()
	return c.siri(ctx, u.String())
}

// GeneralMessages returns the general messages published for a line.
// A timeout yields no messages and no error.
func (c *Client) GeneralMessages(ctx context.Context, lineID string) ([]InfoMessage, error) {
	u, err := url.Parse(c.endpoints.GeneralMessage)
	if err != nil {
		return nil, fmt.Errorf("parsing general message url: %w", err)
	}
	q := u.Query()
	q.Set("LineRef", transit.LineRef(lineID))
	u.RawQuery = q.Encode()

	res, err := c.siri(ctx, u.String())
	if err != nil {
		return nil, err
	}
	if res.Outcome != OK || res.Delivery.GeneralMessage == nil {
		return nil, nil
	}
	return res.Delivery.GeneralMessage.InfoMessage, nil
}

// LineReports returns the disruptions of a line. Elevator disruptions are
// left out unless includeElevator is set. A timeout yields no disruptions
// and no error.
func (c *Client) LineReports(ctx context.Context, lineID string, includeElevator bool) ([]Disruption, error) {
	endpoint := c.endpoints.LineReports
	if strings.Contains(endpoint, "%s") {
		endpoint = fmt.Sprintf(endpoint, url.PathEscape(lineID))
	}

	var reports LineReports
	found, err := c.fetch(ctx, endpoint, &reports)
	if err != nil || !found {
		return nil, err
	}

	disruptions := make([]Disruption, 0, len(reports.Disruptions))
	for _, d := range reports.Disruptions {
		if !includeElevator && d.HasTag(elevatorTag) {
			continue
		}
		disruptions = append(disruptions, d)
	}
	return disruptions, nil
}

// siri fetches a SIRI Lite document and classifies its delivery.
func (c *Client) siri(ctx context.Context, rawURL string) (Result, error) {
	var env Envelope
	found, err := c.fetch(ctx, rawURL, &env)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{Outcome: NoData}, nil
	}

	delivery := env.Siri.ServiceDelivery.Unwrap()
	header := delivery.Header()
	if header == nil {
		return Result{Outcome: NoData}, nil
	}
	if header.Failed() {
		if header.ErrorCondition.UnknownIdentifiers() {
			return Result{Outcome: UnknownIdentifiers}, nil
		}
		c.logger.WithFields(logrus.Fields{
			"url":   rawURL,
			"error": header.ErrorCondition.Text(),
		}).Debug("delivery reported failure")
		return Result{Outcome: NoData}, nil
	}
	return Result{Outcome: OK, Delivery: delivery}, nil
}

// fetch performs an authenticated GET and decodes the JSON body into out.
// It returns found=false without an error when the request timed out or
// the body could not be decompressed or decoded; transport failures are
// returned as errors.
func (c *Client) fetch(ctx context.Context, rawURL string, out any) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("apiKey", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	req.Header.Set("User-Agent", "idfmpal/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			c.logger.WithFields(logrus.Fields{
				"url":     rawURL,
				"timeout": c.timeout,
			}).Error("timeout fetching live data")
			return false, nil
		}
		return false, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := decompress(resp)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"url":      rawURL,
			"status":   resp.StatusCode,
			"encoding": resp.Header.Get("Content-Encoding"),
			"error":    err,
		}).Warn("decompressing live response")
		return false, nil
	}
	defer body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.WithFields(logrus.Fields{
			"url":    rawURL,
			"status": resp.StatusCode,
		}).Debug("unexpected status code from live endpoint")
	}

	if err := json.NewDecoder(body).Decode(out); err != nil {
		if isTimeout(err) {
			c.logger.WithFields(logrus.Fields{
				"url":     rawURL,
				"timeout": c.timeout,
			}).Error("timeout reading live data")
			return false, nil
		}
		c.logger.WithFields(logrus.Fields{
			"url":    rawURL,
			"status": resp.StatusCode,
			"error":  err,
		}).Warn("decoding live response")
		return false, nil
	}
	return true, nil
}

func decompress(resp *http.Response) (io.ReadCloser, error) {
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "deflate":
		return inflate(resp.Body)
	}
	return io.NopCloser(resp.Body), nil
}

// inflate reads an HTTP deflate body. That is zlib framed DEFLATE, but some
// servers send raw DEFLATE, so the zlib header is checked first.
func inflate(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	header, err := br.Peek(2)
	if err != nil {
		return nil, err
	}
	if header[0]&0x0f == 8 && (uint16(header[0])<<8|uint16(header[1]))%31 == 0 {
		return zlib.NewReader(br)
	}
	return flate.NewReader(br), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
