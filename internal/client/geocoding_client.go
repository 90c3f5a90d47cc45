package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// GeoResult is a resolved address for a coordinate pair.
type GeoResult struct {
	Address  string
	District *string
}

// GeocodingClient resolves coordinates to addresses via a Nominatim
// (OpenStreetMap) instance. Failures are expected and non-fatal: callers
// treat a nil result as "address unknown".
type GeocodingClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewGeocodingClient creates a geocoding client with a bounded timeout.
func NewGeocodingClient(baseURL, userAgent string, timeout time.Duration, log zerolog.Logger) *GeocodingClient {
	return &GeocodingClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With().Str("client", "geocoding").Logger(),
	}
}

type nominatimAddress struct {
	Road          string `json:"road"`
	HouseNumber   string `json:"house_number"`
	Postcode      string `json:"postcode"`
	City          string `json:"city"`
	Town          string `json:"town"`
	Village       string `json:"village"`
	Suburb        string `json:"suburb"`
	Neighbourhood string `json:"neighbourhood"`
	Quarter       string `json:"quarter"`
	CityDistrict  string `json:"city_district"`
	Borough       string `json:"borough"`
}

type nominatimResponse struct {
	Error       string           `json:"error"`
	DisplayName string           `json:"display_name"`
	Address     nominatimAddress `json:"address"`
}

// ReverseGeocode resolves coordinates to an address and district. Returns
// (nil, nil) when the location is unknown and an error only for transport
// failures, which callers also treat as unknown.
func (c *GeocodingClient) ReverseGeocode(ctx context.Context, lat, lon float64) (*GeoResult, error) {
	reqURL := fmt.Sprintf("%s/reverse?%s", c.baseURL, url.Values{
		"lat":            {fmt.Sprintf("%f", lat)},
		"lon":            {fmt.Sprintf("%f", lon)},
		"format":         {"json"},
		"addressdetails": {"1"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", "de")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reverse geocode: unexpected status %d", resp.StatusCode)
	}

	var body nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("reverse geocode: decode response: %w", err)
	}
	if body.Error != "" || (body.DisplayName == "" && body.Address == (nominatimAddress{})) {
		c.log.Debug().Float64("lat", lat).Float64("lon", lon).Msg("No geocoding result")
		return nil, nil
	}

	result := &GeoResult{Address: formatAddress(body)}
	if district := pickDistrict(body.Address); district != "" {
		result.District = &district
	}

	c.log.Debug().
		Str("address", result.Address).
		Float64("lat", lat).
		Float64("lon", lon).
		Msg("Reverse geocoded")
	return result, nil
}

func formatAddress(body nominatimResponse) string {
	addr := body.Address
	var parts []string

	if addr.Road != "" {
		street := addr.Road
		if addr.HouseNumber != "" {
			street += " " + addr.HouseNumber
		}
		parts = append(parts, street)
	}

	city := firstNonEmpty(addr.City, addr.Town, addr.Village)
	if addr.Postcode != "" || city != "" {
		parts = append(parts, strings.TrimSpace(addr.Postcode+" "+city))
	}

	if len(parts) == 0 {
		return body.DisplayName
	}
	return strings.Join(parts, ", ")
}

// pickDistrict follows the Nominatim field precedence for city districts.
func pickDistrict(addr nominatimAddress) string {
	return firstNonEmpty(addr.Suburb, addr.Neighbourhood, addr.Quarter, addr.CityDistrict, addr.Borough)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
