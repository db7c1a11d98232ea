// Package geocode resolves coordinates to street addresses.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.mapbox.com"

// ErrAddressLookupFailed is returned when no address could be resolved.
// It is never fatal: the entry is kept without an address.
var ErrAddressLookupFailed = errors.New("address lookup failed")

// Lookuper resolves a coordinate to an address.
type Lookuper interface {
	Lookup(ctx context.Context, lng, lat float64) (string, error)
}

// Mapbox reverse-geocodes through the Mapbox places API.
type Mapbox struct {
	httpClient *http.Client
	token      string
	limiter    *rate.Limiter

	// Overridable for testing.
	baseURL string
}

// NewMapbox creates a client with the given access token. perSecond limits
// outgoing requests; zero or less disables the limit.
func NewMapbox(token string, perSecond float64) (*Mapbox, error) {
	if token == "" {
		return nil, fmt.Errorf("mapbox access token is required")
	}

	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}

	return &Mapbox{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		token:      token,
		limiter:    rate.NewLimiter(limit, 1),
		baseURL:    defaultBaseURL,
	}, nil
}

// placesResponse is the subset of the Mapbox response used here.
type placesResponse struct {
	Features []struct {
		PlaceName string `json:"place_name"`
	} `json:"features"`
}

// Lookup returns the place name of the first feature at lng,lat.
func (m *Mapbox) Lookup(ctx context.Context, lng, lat float64) (address string, err error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: waiting for rate limit: %w", ErrAddressLookupFailed, err)
	}

	coords := strconv.FormatFloat(lng, 'f', -1, 64) + "," + strconv.FormatFloat(lat, 'f', -1, 64)
	u := m.baseURL + "/geocoding/v5/mapbox.places/" + coords + ".json?" +
		url.Values{"access_token": {m.token}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("%w: creating request: %w", ErrAddressLookupFailed, err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: sending request: %w", ErrAddressLookupFailed, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("%w: closing body: %w", ErrAddressLookupFailed, closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: unexpected status %d", ErrAddressLookupFailed, resp.StatusCode)
	}

	var result placesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: decoding response: %w", ErrAddressLookupFailed, err)
	}

	if len(result.Features) == 0 || result.Features[0].PlaceName == "" {
		return "", fmt.Errorf("%w: no place found at %s", ErrAddressLookupFailed, coords)
	}

	return result.Features[0].PlaceName, nil
}
