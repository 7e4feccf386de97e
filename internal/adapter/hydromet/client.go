// Package hydromet reads time series from the Reclamation Hydromet pn-bin
// CSV endpoints.
package hydromet

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/couchcryptid/rise-hydromet-export/internal/domain"
	"github.com/couchcryptid/rise-hydromet-export/internal/observability"
)

// DefaultBaseURL is the public Hydromet pn-bin root.
const DefaultBaseURL = "https://www.usbr.gov/pn-bin"

const (
	dateLayout    = "2006-01-02"
	instantLayout = "2006-01-02 15:04"
)

// Client issues Hydromet CSV queries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	useGzip    bool
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Hydromet client.
func NewClient(baseURL string, timeout time.Duration, useGzip bool, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		useGzip: useGzip,
		metrics: metrics,
		logger:  logger,
	}
}

// Accessor returns the series reader bound to the endpoint for res.
func (c *Client) Accessor(res domain.Resolution) *Accessor {
	return &Accessor{client: c, resolution: res}
}

// Accessor reads one resolution class of Hydromet series.
type Accessor struct {
	client     *Client
	resolution domain.Resolution
}

// ReadSeries fetches station/parameter values within w, inclusive.
func (a *Accessor) ReadSeries(ctx context.Context, station, parameter string, w domain.TimeWindow) (domain.Series, error) {
	return a.client.read(ctx, a.resolution, station, parameter, w)
}

func (c *Client) read(ctx context.Context, res domain.Resolution, station, parameter string, w domain.TimeWindow) (domain.Series, error) {
	start := time.Now()
	series, err := c.doRequest(ctx, c.queryURL(res, station, parameter, w), res, station, parameter, w)
	c.metrics.FetchDuration.WithLabelValues(res.String()).Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		c.metrics.FetchRequests.WithLabelValues(res.String(), "error").Inc()
	case len(series) == 0:
		c.metrics.FetchRequests.WithLabelValues(res.String(), "empty").Inc()
	default:
		c.metrics.FetchRequests.WithLabelValues(res.String(), "success").Inc()
	}
	return series, err
}

func (c *Client) queryURL(res domain.Resolution, station, parameter string, w domain.TimeWindow) string {
	layout := dateLayout
	if res == domain.Instant {
		layout = instantLayout
	}

	params := url.Values{
		"list":        {station + " " + parameter},
		"start":       {w.Start.Format(layout)},
		"end":         {w.End.Format(layout)},
		"format":      {"csv"},
		"flags":       {"false"},
		"description": {"false"},
	}
	return fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint(res), params.Encode())
}

func endpoint(res domain.Resolution) string {
	switch res {
	case domain.Instant:
		return "instant.pl"
	case domain.Monthly:
		return "monthly.pl"
	default:
		return "daily.pl"
	}
}

func (c *Client) doRequest(ctx context.Context, fullURL string, res domain.Resolution, station, parameter string, w domain.TimeWindow) (domain.Series, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.useGzip {
		req.Header.Set("Accept-Encoding", "gzip")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hydromet request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("hydromet error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var body io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("open gzip response: %w", err)
		}
		defer gz.Close()
		body = gz
	}

	series, err := parseCSV(body, res, station, parameter, w)
	if err != nil {
		return nil, fmt.Errorf("parse hydromet response: %w", err)
	}

	c.logger.Debug("hydromet series read",
		"station", station,
		"parameter", parameter,
		"points", len(series),
	)
	return series, nil
}
