// Package nominatim resolves coordinates to place names via the OpenStreetMap
// Nominatim reverse-geocoding API, with a bounded in-process cache and a
// courtesy rate limit in front of it.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/seismowatch/quake-ingest/internal/domain"
)

// Nominatim's usage policy requires an identifying User-Agent.
const userAgent = "quake-ingest/1.0 (+https://github.com/seismowatch/quake-ingest)"

// Client implements domain.Geocoder against the Nominatim reverse endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Nominatim client. baseURL is the reverse endpoint,
// e.g. "https://nominatim.openstreetmap.org/reverse".
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

// ReverseGeocode looks up the address components for a coordinate pair.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.Address, error) {
	params := url.Values{
		"format":         {"jsonv2"},
		"lat":            {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":            {strconv.FormatFloat(lon, 'f', -1, 64)},
		"zoom":           {"18"},
		"addressdetails": {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.Address{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Address{}, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Address{}, fmt.Errorf("nominatim error: status %d: %s", resp.StatusCode, body)
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.Address{}, fmt.Errorf("decode nominatim response: %w", err)
	}

	return domain.Address{
		Village:      payload.Address.Village,
		Municipality: payload.Address.Municipality,
		Town:         payload.Address.Town,
		City:         payload.Address.City,
		Province:     payload.Address.Province,
		DisplayName:  payload.DisplayName,
	}, nil
}

// Nominatim jsonv2 response fields consumed by the resolver.

type response struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		Village      string `json:"village"`
		Municipality string `json:"municipality"`
		Town         string `json:"town"`
		City         string `json:"city"`
		Province     string `json:"province"`
	} `json:"address"`
}
