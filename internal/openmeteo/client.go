// Package openmeteo fetches forecast series for individual numerical
// weather models from the Open-Meteo API and assembles them into an
// ensemble dataset. Each model is fetched independently: a failed model
// becomes an error record in the dataset rather than failing the fetch.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"ensemblecast/internal/ensemble"
	"ensemblecast/internal/httputil"
	"ensemblecast/internal/metrics"
)

// MaxForecastDays is the Open-Meteo API limit; requests beyond it are clamped.
const MaxForecastDays = 16

// Endpoints maps model names to their Open-Meteo API base URLs.
var Endpoints = map[string]string{
	"gfs":   "https://api.open-meteo.com/v1/gfs",      // NOAA, 13km, 4x daily
	"ecmwf": "https://api.open-meteo.com/v1/ecmwf",    // European, medium-range reference
	"gem":   "https://api.open-meteo.com/v1/gem",      // Canadian, 15km
	"icon":  "https://api.open-meteo.com/v1/dwd-icon", // German (DWD), 13km
}

// AvailableModels lists the model identifiers this client can query.
func AvailableModels() []string {
	return []string{"gfs", "ecmwf", "gem", "icon"}
}

type Client struct {
	client    *http.Client
	endpoints map[string]string
}

func NewClient() *Client {
	return &Client{
		client:    httputil.NewClient(),
		endpoints: Endpoints,
	}
}

// NewClientWithEndpoints overrides the model endpoints, for tests.
func NewClientWithEndpoints(endpoints map[string]string) *Client {
	return &Client{
		client:    httputil.NewClient(),
		endpoints: endpoints,
	}
}

type forecastResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
	Hourly    *struct {
		Time        []string  `json:"time"`
		Temperature []float64 `json:"temperature_2m"`
		Precip      []float64 `json:"precipitation"`
		WindSpeed   []float64 `json:"wind_speed_10m"`
	} `json:"hourly"`
	Daily *struct {
		Time      []string  `json:"time"`
		TempMax   []float64 `json:"temperature_2m_max"`
		TempMin   []float64 `json:"temperature_2m_min"`
		PrecipSum []float64 `json:"precipitation_sum"`
		WindMax   []float64 `json:"wind_speed_10m_max"`
	} `json:"daily"`
}

// FetchHourly retrieves hourly temperature, precipitation, and wind speed
// series from each requested model. Unknown or failed models yield error
// records; the returned dataset always has one entry per requested model.
func (c *Client) FetchHourly(ctx context.Context, lat, lon float64, days int, models []string) ensemble.Dataset {
	return c.fetch(ctx, "hourly", lat, lon, days, models)
}

// FetchDaily retrieves daily min/max summaries, which are far more compact
// than hourly series for multi-day analysis.
func (c *Client) FetchDaily(ctx context.Context, lat, lon float64, days int, models []string) ensemble.Dataset {
	return c.fetch(ctx, "daily", lat, lon, days, models)
}

func (c *Client) fetch(ctx context.Context, kind string, lat, lon float64, days int, models []string) ensemble.Dataset {
	if len(models) == 0 {
		models = []string{"gfs"}
	}
	if days < 1 {
		days = 1
	}
	if days > MaxForecastDays {
		days = MaxForecastDays
	}

	ds := make(ensemble.Dataset, len(models))
	for _, model := range models {
		base, ok := c.endpoints[model]
		if !ok {
			ds[model] = &ensemble.Model{Error: fmt.Sprintf("unknown model: %s", model)}
			continue
		}
		m, err := c.fetchModel(ctx, kind, base, model, lat, lon, days)
		if err != nil {
			ds[model] = &ensemble.Model{Error: err.Error()}
			continue
		}
		ds[model] = m
	}
	return ds
}

func (c *Client) fetchModel(ctx context.Context, kind, base, model string, lat, lon float64, days int) (*ensemble.Model, error) {
	params := url.Values{
		"latitude":           {strconv.FormatFloat(lat, 'f', -1, 64)},
		"longitude":          {strconv.FormatFloat(lon, 'f', -1, 64)},
		"temperature_unit":   {"fahrenheit"},
		"wind_speed_unit":    {"mph"},
		"precipitation_unit": {"inch"},
		"forecast_days":      {strconv.Itoa(days)},
		"timezone":           {"auto"},
	}
	if kind == "daily" {
		params.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_sum,wind_speed_10m_max")
	} else {
		params.Set("hourly", "temperature_2m,precipitation,wind_speed_10m")
	}
	reqURL := base + "?" + params.Encode()

	start := time.Now()
	body, err := c.get(ctx, reqURL)
	metrics.ForecastAPILatency.WithLabelValues(model, kind).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ForecastAPICallsTotal.WithLabelValues(model, kind, "error").Inc()
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	metrics.ForecastAPICallsTotal.WithLabelValues(model, kind, "ok").Inc()

	var data forecastResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	m := &ensemble.Model{
		Model:     model,
		Latitude:  data.Latitude,
		Longitude: data.Longitude,
		Timezone:  data.Timezone,
	}
	switch kind {
	case "daily":
		if data.Daily == nil {
			return nil, fmt.Errorf("failed to parse response: missing daily block")
		}
		m.Dates = data.Daily.Time
		m.TemperatureMax = data.Daily.TempMax
		m.TemperatureMin = data.Daily.TempMin
		m.Precipitation = data.Daily.PrecipSum
		m.WindSpeedMax = data.Daily.WindMax
	default:
		if data.Hourly == nil {
			return nil, fmt.Errorf("failed to parse response: missing hourly block")
		}
		m.Times = data.Hourly.Time
		m.Temperature = data.Hourly.Temperature
		m.Precipitation = data.Hourly.Precip
		m.WindSpeed = data.Hourly.WindSpeed
	}
	return m, nil
}

// get performs the HTTP request with exponential backoff. Rate limiting is
// retryable; other failures are permanent.
func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return backoff.Permanent(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("rate limited: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return body, nil
}
