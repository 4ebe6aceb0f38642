// Package geocode resolves free-form addresses through the traffic proxy's
// /search endpoint.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/P-juuny/tsp-prob/pkg/seoul"
)

const callTimeout = 10 * time.Second

type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a client against the proxy base URL, e.g.
// "http://traffic-proxy:8003".
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: callTimeout},
	}
}

// Result is the one-best geocoding answer.
type Result struct {
	Lat         float64
	Lon         float64
	DisplayName string
	District    string
	Confidence  float64
}

type searchResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates [2]float64 `json:"coordinates"` // [lon, lat]
		} `json:"geometry"`
		Properties struct {
			Confidence  float64 `json:"confidence"`
			DisplayName string  `json:"display_name"`
			District    string  `json:"district"`
		} `json:"properties"`
	} `json:"features"`
}

// Locate geocodes an address. The proxy itself never fails, so an error here
// means the proxy is unreachable; callers degrade to Fallback.
func (c *Client) Locate(ctx context.Context, address string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/search?text=%s", c.baseURL, url.QueryEscape(address))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Result{}, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Result{}, fmt.Errorf("decode geocoder response: %w", err)
	}
	if len(parsed.Features) == 0 {
		return Result{}, fmt.Errorf("geocoder returned no features")
	}

	f := parsed.Features[0]
	district := f.Properties.District
	if district == "" {
		district = seoul.ExtractDistrict(address)
	}
	return Result{
		Lat:         f.Geometry.Coordinates[1],
		Lon:         f.Geometry.Coordinates[0],
		DisplayName: f.Properties.DisplayName,
		District:    district,
		Confidence:  f.Properties.Confidence,
	}, nil
}

// Fallback resolves an address offline: district centroid when the address
// names a known district, city center otherwise.
func Fallback(address string) Result {
	coord, district := seoul.DistrictCoordinates(address)
	confidence := 0.5
	if district == "" {
		confidence = 0.1
	}
	return Result{
		Lat:        coord.Lat,
		Lon:        coord.Lon,
		District:   district,
		Confidence: confidence,
	}
}
