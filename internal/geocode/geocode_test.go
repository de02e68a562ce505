package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/dirk.krummacker/location-contacts/internal/metrics"
)

type outcomes []string

func (o *outcomes) GeocodeLookup(outcome string) {
	*o = append(*o, outcome)
}

// TestLookupFirstResult expects the first place of the response to win and the query to be sent
// with the expected parameters and User-Agent.
func TestLookupFirstResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "Fullerton Arboretum", r.URL.Query().Get("q"))
		assert.Equal(t, "contacts-test", r.Header.Get("User-Agent"))
		w.Write([]byte(`[
			{"lat": "33.8860", "lon": "-117.8846", "display_name": "Fullerton Arboretum, Fullerton"},
			{"lat": "1", "lon": "2", "display_name": "Elsewhere"}
		]`))
	}))
	defer server.Close()

	var seen outcomes
	client := New(Config{BaseURL: server.URL, UserAgent: "contacts-test"}, &seen)
	result, found, err := client.Lookup(context.Background(), "  Fullerton Arboretum ")

	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 33.8860, result.Latitude)
	assert.Equal(t, -117.8846, result.Longitude)
	assert.Equal(t, "Fullerton Arboretum, Fullerton", result.DisplayName)
	assert.Equal(t, outcomes{metrics.OutcomeFound}, seen)
}

// TestLookupNoResult expects an empty response to be reported as not found, without an error.
func TestLookupNoResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	var seen outcomes
	client := New(Config{BaseURL: server.URL}, &seen)
	_, found, err := client.Lookup(context.Background(), "xyzzy")

	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, outcomes{metrics.OutcomeNotFound}, seen)
}

// TestLookupBlankQuery expects no request to be sent for a blank query.
func TestLookupBlankQuery(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	_, found, err := New(Config{BaseURL: server.URL}, nil).Lookup(context.Background(), "   ")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, int32(0), hits.Load())
}

// TestLookupMalformedResponse expects undecodable bodies and coordinates to be errors.
func TestLookupMalformedResponse(t *testing.T) {
	for _, body := range []string{`{"not": "a list"}`, `[{"lat": "north", "lon": "-117.9"}]`} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))
		_, found, err := New(Config{BaseURL: server.URL}, nil).Lookup(context.Background(), "somewhere")
		server.Close()

		assert.Error(t, err, body)
		assert.False(t, found, body)
	}
}

// TestBreakerOpens lets the service fail five times in a row. It expects the sixth lookup to be
// rejected without reaching the service.
func TestBreakerOpens(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	var seen outcomes
	client := New(Config{BaseURL: server.URL}, &seen)
	for i := 0; i < 5; i++ {
		_, _, err := client.Lookup(context.Background(), "somewhere")
		require.Error(t, err)
	}
	_, _, err := client.Lookup(context.Background(), "somewhere")

	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(5), hits.Load())
	assert.Equal(t, metrics.OutcomeRejected, seen[len(seen)-1])
}

// TestLookupThrottled expects the second of two lookups to wait for the limiter and to give up
// when its context ends first.
func TestLookupThrottled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()
	client := New(Config{BaseURL: server.URL, RequestsPerSecond: 0.01}, nil)

	_, _, err := client.Lookup(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, err = client.Lookup(ctx, "second")
	assert.Error(t, err)
}
