// Package weather fetches current conditions for a trailhead or summit from
// an Open-Meteo compatible API.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/claude/summitchronicles/internal/cache"
)

// currentFields are requested from the upstream "current" block.
const currentFields = "temperature_2m,apparent_temperature,wind_speed_10m,wind_gusts_10m,precipitation,weather_code"

// APIKeyHeader carries the upstream API key.
const APIKeyHeader = "X-Api-Key"

// Conditions is the decoded "current" block of an upstream response.
type Conditions struct {
	Time                string  `json:"time"`
	Temperature         float64 `json:"temperature"`
	ApparentTemperature float64 `json:"apparentTemperature"`
	WindSpeed           float64 `json:"windSpeed"`
	WindGusts           float64 `json:"windGusts"`
	Precipitation       float64 `json:"precipitation"`
	WeatherCode         int     `json:"weatherCode"`
}

type currentResponse struct {
	Current struct {
		Time                string  `json:"time"`
		Temperature         float64 `json:"temperature_2m"`
		ApparentTemperature float64 `json:"apparent_temperature"`
		WindSpeed           float64 `json:"wind_speed_10m"`
		WindGusts           float64 `json:"wind_gusts_10m"`
		Precipitation       float64 `json:"precipitation"`
		WeatherCode         int     `json:"weather_code"`
	} `json:"current"`
}

// Client serves weather lookups through an APICache.
type Client struct {
	baseURL string
	apiKey  string
	api     *cache.APICache
	cfg     cache.Config
}

// New creates a Client. cfg sets how long responses are reused.
func New(baseURL, apiKey string, api *cache.APICache, cfg cache.Config) *Client {
	return &Client{baseURL: baseURL, apiKey: apiKey, api: api, cfg: cfg}
}

// ValidateCoords checks latitude and longitude ranges.
func ValidateCoords(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude %v out of range", lon)
	}
	return nil
}

// Current returns the upstream JSON for current conditions at lat/lon.
func (c *Client) Current(ctx context.Context, lat, lon float64) (json.RawMessage, error) {
	if err := ValidateCoords(lat, lon); err != nil {
		return nil, err
	}
	req, err := c.request(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	return c.api.FetchWithCache(ctx, req, c.cfg)
}

// Conditions returns the decoded current conditions at lat/lon. It shares
// cache entries with Current.
func (c *Client) Conditions(ctx context.Context, lat, lon float64) (Conditions, error) {
	if err := ValidateCoords(lat, lon); err != nil {
		return Conditions{}, err
	}
	req, err := c.request(ctx, lat, lon)
	if err != nil {
		return Conditions{}, err
	}
	resp, err := cache.FetchJSON[currentResponse](ctx, c.api, req, c.cfg)
	if err != nil {
		return Conditions{}, err
	}
	cur := resp.Current
	return Conditions{
		Time:                cur.Time,
		Temperature:         cur.Temperature,
		ApparentTemperature: cur.ApparentTemperature,
		WindSpeed:           cur.WindSpeed,
		WindGusts:           cur.WindGusts,
		Precipitation:       cur.Precipitation,
		WeatherCode:         cur.WeatherCode,
	}, nil
}

// Warmup prefetches conditions for the given points, typically the
// locations on the current week's plan.
func (c *Client) Warmup(ctx context.Context, points [][2]float64) {
	reqs := make([]cache.WarmupRequest, 0, len(points))
	for _, p := range points {
		req, err := c.request(ctx, p[0], p[1])
		if err != nil {
			continue
		}
		reqs = append(reqs, cache.WarmupRequest{Request: req, Config: c.cfg})
	}
	c.api.Warmup(ctx, reqs)
}

// CachePrefix is the cache key prefix of every weather response.
func (c *Client) CachePrefix() string {
	return "api_" + http.MethodGet + "_" + c.baseURL
}

func (c *Client) request(ctx context.Context, lat, lon float64) (*http.Request, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("current", currentFields)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building weather request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}
	return req, nil
}
