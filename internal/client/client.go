// Package client provides an HTTP client for the knock REST API.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/doorline/knock/internal/pin"
	"github.com/doorline/knock/internal/tracking"
	"github.com/doorline/knock/internal/visitlog"
)

// Client is an HTTP client for the knock API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// LogRequest is the body of POST /api/pins.
type LogRequest struct {
	Lng      float64 `json:"lng"`
	Lat      float64 `json:"lat"`
	Status   string  `json:"status"`
	Severity *int    `json:"severity,omitempty"`
	Notes    string  `json:"notes,omitempty"`
}

// EditRequest is the body of PUT /api/pins/{timestamp}. Nil fields are left unchanged.
type EditRequest struct {
	Status   *string `json:"status,omitempty"`
	Severity *int    `json:"severity,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}

// NearbyOptions controls the nearby query. A nil Lng/Lat uses the server's
// last GPS fix.
type NearbyOptions struct {
	Lng    *float64
	Lat    *float64
	Radius float64 // meters, 0 = server default
	BBox   string  // minLng,minLat,maxLng,maxLat
	Day    string  // empty = today
}

// Health checks that the server is up.
func (c *Client) Health() error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.get("/health", &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("unexpected health status %q", resp.Status)
	}
	return nil
}

// LogPin records a visit at the given coordinates.
func (c *Client) LogPin(req LogRequest) (*pin.Rendered, error) {
	var p pin.Rendered
	if err := c.send("POST", "/api/pins", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// EditPin changes the status, severity or notes of a pin.
func (c *Client) EditPin(day string, timestamp int64, req EditRequest) (*pin.Rendered, error) {
	var p pin.Rendered
	if err := c.send("PUT", withDay(pinPath(timestamp), day), req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPin returns one pin.
func (c *Client) GetPin(day string, timestamp int64) (*pin.Rendered, error) {
	var p pin.Rendered
	if err := c.get(withDay(pinPath(timestamp), day), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPins returns one day's pins, today when day is empty.
func (c *Client) ListPins(day string) ([]pin.Rendered, error) {
	var pins []pin.Rendered
	if err := c.get(withDay("/api/pins", day), &pins); err != nil {
		return nil, err
	}
	return pins, nil
}

// Nearby returns the pins within a radius of a position.
func (c *Client) Nearby(opts NearbyOptions) ([]pin.Rendered, error) {
	q := url.Values{}
	if opts.Lng != nil && opts.Lat != nil {
		q.Set("lng", strconv.FormatFloat(*opts.Lng, 'f', -1, 64))
		q.Set("lat", strconv.FormatFloat(*opts.Lat, 'f', -1, 64))
	}
	if opts.Radius > 0 {
		q.Set("radius", strconv.FormatFloat(opts.Radius, 'f', -1, 64))
	}
	if opts.BBox != "" {
		q.Set("bbox", opts.BBox)
	}
	if opts.Day != "" {
		q.Set("day", opts.Day)
	}

	path := "/api/pins/nearby"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var pins []pin.Rendered
	if err := c.get(path, &pins); err != nil {
		return nil, err
	}
	return pins, nil
}

// Days returns per-day summaries, newest first.
func (c *Client) Days() ([]visitlog.Summary, error) {
	var days []visitlog.Summary
	if err := c.get("/api/days", &days); err != nil {
		return nil, err
	}
	return days, nil
}

// Day returns the summary of one day, today when day is empty.
func (c *Client) Day(day string) (*visitlog.Summary, error) {
	var s visitlog.Summary
	if err := c.get(dayPath(day), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// DayGeoJSON returns a day's pins as a GeoJSON feature collection, today
// when day is empty.
func (c *Client) DayGeoJSON(day string) (*geojson.FeatureCollection, error) {
	req, err := http.NewRequest("GET", c.baseURL+dayPath(day)+"/geojson", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	var raw json.RawMessage
	if err := c.do(req, &raw); err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding geojson: %w", err)
	}
	return fc, nil
}

// Backfill asks the server to resolve missing addresses for a day and
// returns how many were attached.
func (c *Client) Backfill(day string) (int, error) {
	var resp struct {
		Attached int `json:"attached"`
	}
	if err := c.send("POST", dayPath(day)+"/backfill", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Attached, nil
}

// Session returns the live tracking state.
func (c *Client) Session() (*tracking.State, error) {
	var s tracking.State
	if err := c.get("/api/session", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func pinPath(timestamp int64) string {
	return "/api/pins/" + strconv.FormatInt(timestamp, 10)
}

// dayPath returns the /api/days path of a day; the server resolves "today".
func dayPath(day string) string {
	if day == "" {
		day = "today"
	}
	return "/api/days/" + url.PathEscape(day)
}

func withDay(path, day string) string {
	if day == "" {
		return path
	}
	return path + "?day=" + url.QueryEscape(day)
}

// get performs a GET request and decodes the response.
func (c *Client) get(path string, result interface{}) error {
	req, err := http.NewRequest("GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, result)
}

// send performs a request with an optional JSON body and decodes the response.
func (c *Client) send(method, path string, body interface{}, result interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, result)
}

// do executes an HTTP request and handles errors.
func (c *Client) do(req *http.Request, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			fmt.Printf("warning: closing response body: %v\n", cerr)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &StatusError{Code: resp.StatusCode, Message: errorMessage(resp.StatusCode, respBody)}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}

// StatusError is returned for 4xx and 5xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return e.Message
}

func errorMessage(code int, body []byte) string {
	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		return errResp.Error
	}
	return "server error: " + http.StatusText(code)
}
