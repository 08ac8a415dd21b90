// Package geocode resolves location names to coordinates via the
// OpenStreetMap Nominatim API.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"ensemblecast/internal/httputil"
	"ensemblecast/internal/metrics"
)

const (
	DefaultBaseURL = "https://nominatim.openstreetmap.org/search"

	// Nominatim's usage policy requires an identifying user agent.
	userAgent = "ensemblecast/0.1"

	requestTimeout = 10 * time.Second
)

// ErrNotFound is returned when Nominatim has no match for the location.
var ErrNotFound = errors.New("location not found")

// Result is the best geocoding match for a query.
type Result struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"display_name"`
}

type Client struct {
	client  *http.Client
	baseURL string
}

func NewClient() *Client {
	return &Client{
		client:  httputil.NewClientWithTimeout(requestTimeout),
		baseURL: DefaultBaseURL,
	}
}

// NewClientWithBaseURL overrides the search endpoint, for tests.
func NewClientWithBaseURL(baseURL string) *Client {
	c := NewClient()
	c.baseURL = baseURL
	return c
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode resolves a free-form location string, like "Denver, CO", to
// coordinates. Only the top-ranked match is returned.
func (c *Client) Geocode(ctx context.Context, location string) (*Result, error) {
	params := url.Values{
		"q":      {location},
		"format": {"json"},
		"limit":  {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("geocode request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.GeocodeCallsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("geocode %q: %w", location, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.GeocodeCallsTotal.WithLabelValues("error").Inc()
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("geocode %q: status %d: %s", location, resp.StatusCode, string(b))
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		metrics.GeocodeCallsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("geocode %q: decode response: %w", location, err)
	}
	if len(results) == 0 {
		metrics.GeocodeCallsTotal.WithLabelValues("not_found").Inc()
		return nil, fmt.Errorf("geocode %q: %w", location, ErrNotFound)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("geocode %q: parse latitude %q: %w", location, results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("geocode %q: parse longitude %q: %w", location, results[0].Lon, err)
	}

	metrics.GeocodeCallsTotal.WithLabelValues("ok").Inc()
	return &Result{Latitude: lat, Longitude: lon, DisplayName: results[0].DisplayName}, nil
}
