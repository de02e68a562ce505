// Package geocode turns free-text place queries into coordinates using a Nominatim search
// endpoint.
package geocode

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
	"gitlab.com/dirk.krummacker/location-contacts/internal/metrics"
)

// DefaultBaseURL is the public OpenStreetMap Nominatim instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// Nominatim rejects requests without an identifying User-Agent.
const defaultUserAgent = "location-contacts/1.0"

// Result is the best match for a query.
type Result struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"displayName"`
}

// Geocoder looks up places. found is false when the service knows no place for the query.
type Geocoder interface {
	Lookup(ctx context.Context, query string) (result Result, found bool, err error)
}

// Recorder receives the outcome of every lookup.
type Recorder interface {
	GeocodeLookup(outcome string)
}

// Config configures the client. Zero values select the defaults. RequestsPerSecond throttles
// outgoing lookups; the public Nominatim instance allows one per second. Zero disables throttling.
type Config struct {
	BaseURL           string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// place is one entry of a Nominatim search response. Coordinates arrive as strings.
type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Client queries Nominatim through a circuit breaker: after five consecutive failures, lookups
// fail fast for 30 seconds.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker[[]place]
	limiter   *rate.Limiter
	recorder  Recorder
}

// New creates a client. recorder may be nil.
func New(cfg Config, recorder Recorder) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker[[]place](gobreaker.Settings{
			Name:        "nominatim",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		limiter:  limiter,
		recorder: recorder,
	}
}

// Lookup returns the first search result for the query. A blank query finds nothing without
// calling the service.
func (c *Client) Lookup(ctx context.Context, query string) (Result, bool, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, false, nil
	}

	places, err := c.breaker.Execute(func() ([]place, error) {
		return c.search(ctx, query)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.record(metrics.OutcomeRejected)
		} else {
			c.record(metrics.OutcomeError)
		}
		return Result{}, false, errors.Wrapf(err, "geocode %q", query)
	}
	if len(places) == 0 {
		c.record(metrics.OutcomeNotFound)
		return Result{}, false, nil
	}

	first := places[0]
	lat, errLat := strconv.ParseFloat(first.Lat, 64)
	lng, errLng := strconv.ParseFloat(first.Lon, 64)
	if errLat != nil || errLng != nil {
		c.record(metrics.OutcomeError)
		return Result{}, false, fmt.Errorf("geocode %q: malformed coordinates %q, %q", query, first.Lat, first.Lon)
	}
	c.record(metrics.OutcomeFound)
	return Result{Latitude: lat, Longitude: lng, DisplayName: first.DisplayName}, true, nil
}

func (c *Client) search(ctx context.Context, query string) ([]place, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("format", "json")
	params.Set("limit", "1")
	params.Set("q", query)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	request.Header.Set("User-Agent", c.userAgent)
	request.Header.Set("Accept", "application/json")

	response, err := c.http.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", response.StatusCode)
	}
	var places []place
	if err := json.NewDecoder(response.Body).Decode(&places); err != nil {
		return nil, errors.Wrap(err, "decode search response")
	}
	return places, nil
}

func (c *Client) record(outcome string) {
	if c.recorder != nil {
		c.recorder.GeocodeLookup(outcome)
	}
}
