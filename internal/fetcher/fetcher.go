package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fundscore/internal/domain"
	"fundscore/internal/source"
	"fundscore/internal/version"
)

const (
	navPath       = "/mf/"
	benchmarkPath = "/index/"
)

// ErrNotFound marks a 404 from upstream. Series lookups turn it into an empty history.
var ErrNotFound = errors.New("fetcher: series not found")

// Options parameterise the history API client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client fetches NAV and index history over HTTP.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// New constructs a history client.
func New(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "history_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

// NavSeries implements source.NavSource.
func (c *Client) NavSeries(ctx context.Context, fundID string) ([]domain.NavPoint, error) {
	var payload historyResponse
	if err := c.get(ctx, navPath+url.PathEscape(fundID), &payload); err != nil {
		if errors.Is(err, ErrNotFound) {
			c.logger.Warn().Str("fund_id", fundID).Msg("nav history not found upstream")
			return nil, nil
		}
		return nil, fmt.Errorf("fetch nav %s: %w", fundID, err)
	}

	points := make([]domain.NavPoint, 0, len(payload.Data))
	for _, row := range payload.Data {
		date, value, err := row.parse("nav")
		if err != nil {
			return nil, fmt.Errorf("fund %s: %w", fundID, err)
		}
		points = append(points, domain.NavPoint{FundID: fundID, Date: date, NAV: value})
	}
	c.logger.Debug().Str("fund_id", fundID).Int("points", len(points)).Msg("nav history fetched")
	return points, nil
}

// BenchmarkSeries implements source.BenchmarkSource.
func (c *Client) BenchmarkSeries(ctx context.Context, benchmarkID string) ([]domain.BenchmarkPoint, error) {
	var payload historyResponse
	if err := c.get(ctx, benchmarkPath+url.PathEscape(benchmarkID), &payload); err != nil {
		if errors.Is(err, ErrNotFound) {
			c.logger.Warn().Str("benchmark_id", benchmarkID).Msg("benchmark history not found upstream")
			return nil, nil
		}
		return nil, fmt.Errorf("fetch benchmark %s: %w", benchmarkID, err)
	}

	points := make([]domain.BenchmarkPoint, 0, len(payload.Data))
	for _, row := range payload.Data {
		date, value, err := row.parse("value")
		if err != nil {
			return nil, fmt.Errorf("benchmark %s: %w", benchmarkID, err)
		}
		points = append(points, domain.BenchmarkPoint{BenchmarkID: benchmarkID, Date: date, Value: value})
	}
	c.logger.Debug().Str("benchmark_id", benchmarkID).Int("points", len(points)).Msg("benchmark history fetched")
	return points, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	if c.baseURL == "" {
		return errors.New("base url is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", version.UserAgent())
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return parseHTTPError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var (
	_ source.NavSource       = (*Client)(nil)
	_ source.BenchmarkSource = (*Client)(nil)
)
