package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func geocodingServer(t *testing.T, response string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("addressdetails"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		assert.Equal(t, "de", r.Header.Get("Accept-Language"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(response))
	}))
}

func TestReverseGeocode(t *testing.T) {
	ctx := context.Background()

	t.Run("builds a street address with district", func(t *testing.T) {
		srv := geocodingServer(t, `{
			"display_name": "Musterstraße 12, 10115 Berlin",
			"address": {
				"road": "Musterstraße",
				"house_number": "12",
				"postcode": "10115",
				"city": "Berlin",
				"suburb": "Mitte"
			}
		}`)
		defer srv.Close()

		c := NewGeocodingClient(srv.URL, "test-agent", time.Second, zerolog.Nop())
		result, err := c.ReverseGeocode(ctx, 52.532, 13.384)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, "Musterstraße 12, 10115 Berlin", result.Address)
		require.NotNil(t, result.District)
		assert.Equal(t, "Mitte", *result.District)
	})

	t.Run("falls back to the display name without address parts", func(t *testing.T) {
		srv := geocodingServer(t, `{"display_name": "Irgendwo im Wald"}`)
		defer srv.Close()

		c := NewGeocodingClient(srv.URL, "test-agent", time.Second, zerolog.Nop())
		result, err := c.ReverseGeocode(ctx, 51.0, 10.0)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, "Irgendwo im Wald", result.Address)
		assert.Nil(t, result.District)
	})

	t.Run("returns nil for an unknown location", func(t *testing.T) {
		srv := geocodingServer(t, `{"error": "Unable to geocode"}`)
		defer srv.Close()

		c := NewGeocodingClient(srv.URL, "test-agent", time.Second, zerolog.Nop())
		result, err := c.ReverseGeocode(ctx, 0, 0)
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("reports unexpected statuses as errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		c := NewGeocodingClient(srv.URL, "test-agent", time.Second, zerolog.Nop())
		_, err := c.ReverseGeocode(ctx, 52.0, 13.0)
		assert.Error(t, err)
	})
}
