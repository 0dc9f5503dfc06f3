// Package usgs fetches earthquake events from the USGS structured GeoJSON
// feed, in either of two modes: the rolling all-hour summary feed (global,
// filtered to the monitored region downstream) or the FDSN event query
// pre-scoped to the region with a magnitude floor.
package usgs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/seismowatch/quake-ingest/internal/domain"
)

// regionMinMagnitude is the floor applied to the regional query; the
// all-hour feed carries everything and is filtered client-side instead.
const regionMinMagnitude = 1.5

// regionQueryWindow bounds the regional query's starttime.
const regionQueryWindow = time.Hour

// Client implements the structured-feed source adapter.
type Client struct {
	httpClient *http.Client
	feedURL    string
	queryURL   string
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewClient creates a feed client. feedURL is the rolling summary feed,
// queryURL the FDSN event query endpoint.
func NewClient(feedURL, queryURL string, timeout time.Duration, clock clockwork.Clock, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		feedURL:    feedURL,
		queryURL:   queryURL,
		clock:      clock,
		logger:     logger,
	}
}

// FetchRecent retrieves the rolling recent-window summary feed. Results are
// global; the caller applies the monitored-region filter.
func (c *Client) FetchRecent(ctx context.Context) ([]domain.Event, error) {
	return c.fetch(ctx, c.feedURL)
}

// FetchRegional retrieves the regional query: events from the last hour
// inside the monitored bounding box at or above the magnitude floor.
func (c *Client) FetchRegional(ctx context.Context) ([]domain.Event, error) {
	params := url.Values{
		"format":       {"geojson"},
		"starttime":    {c.clock.Now().UTC().Add(-regionQueryWindow).Format(time.RFC3339)},
		"minlatitude":  {formatCoord(domain.RegionMinLat)},
		"maxlatitude":  {formatCoord(domain.RegionMaxLat)},
		"minlongitude": {formatCoord(domain.RegionMinLon)},
		"maxlongitude": {formatCoord(domain.RegionMaxLon)},
		"minmagnitude": {formatCoord(regionMinMagnitude)},
		"orderby":      {"time"},
	}
	return c.fetch(ctx, c.queryURL+"?"+params.Encode())
}

func (c *Client) fetch(ctx context.Context, fullURL string) ([]domain.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("feed API error: status %d: %s", resp.StatusCode, body)
	}

	var collection struct {
		Features []domain.FeedFeature `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&collection); err != nil {
		return nil, fmt.Errorf("decode feed response: %w", err)
	}

	events := make([]domain.Event, 0, len(collection.Features))
	for _, f := range collection.Features {
		event, err := domain.NormalizeFeed(f)
		if err != nil {
			if errors.Is(err, domain.ErrMalformedRecord) {
				c.logger.Warn("dropping malformed feed feature", "feature_id", f.ID, "error", err)
				continue
			}
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
