// Package kakao is a minimal client for the Kakao local-search API, used by
// the proxy's geocoding endpoint.
package kakao

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://dapi.kakao.com"

// Client calls the Kakao address-search and keyword-search endpoints.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func New(apiKey string) *Client {
	return NewWithBaseURL(defaultBaseURL, apiKey)
}

// NewWithBaseURL is used by tests to point at an httptest server.
func NewWithBaseURL(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Place is one search candidate.
type Place struct {
	Lat      float64
	Lon      float64
	Name     string
	District string // region_2depth_name, e.g. "강남구"; may be empty
}

type document struct {
	X           string `json:"x"` // longitude
	Y           string `json:"y"` // latitude
	AddressName string `json:"address_name"`
	PlaceName   string `json:"place_name"`
	Address     *struct {
		Region2Depth string `json:"region_2depth_name"`
	} `json:"address"`
	RoadAddress *struct {
		Region2Depth string `json:"region_2depth_name"`
	} `json:"road_address"`
}

type searchResponse struct {
	Documents []document `json:"documents"`
}

// SearchAddress queries the structured address endpoint and returns the best
// candidate, or ok=false when there is none.
func (c *Client) SearchAddress(ctx context.Context, query string) (Place, bool, error) {
	return c.search(ctx, "/v2/local/search/address.json", query)
}

// SearchKeyword queries the keyword (place) endpoint, the fallback for
// free-form text that is not a structured address.
func (c *Client) SearchKeyword(ctx context.Context, query string) (Place, bool, error) {
	return c.search(ctx, "/v2/local/search/keyword.json", query)
}

func (c *Client) search(ctx context.Context, path, query string) (Place, bool, error) {
	u := fmt.Sprintf("%s%s?size=1&query=%s", c.baseURL, path, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Place{}, false, err
	}
	req.Header.Set("Authorization", "KakaoAK "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return Place{}, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Place{}, false, fmt.Errorf("kakao search returned status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Place{}, false, fmt.Errorf("decode kakao response: %w", err)
	}
	if len(parsed.Documents) == 0 {
		return Place{}, false, nil
	}

	doc := parsed.Documents[0]
	var lat, lon float64
	if _, err := fmt.Sscanf(doc.Y, "%f", &lat); err != nil {
		return Place{}, false, fmt.Errorf("parse kakao latitude %q: %w", doc.Y, err)
	}
	if _, err := fmt.Sscanf(doc.X, "%f", &lon); err != nil {
		return Place{}, false, fmt.Errorf("parse kakao longitude %q: %w", doc.X, err)
	}

	p := Place{Lat: lat, Lon: lon, Name: doc.AddressName}
	if p.Name == "" {
		p.Name = doc.PlaceName
	}
	if doc.Address != nil && doc.Address.Region2Depth != "" {
		p.District = doc.Address.Region2Depth
	} else if doc.RoadAddress != nil {
		p.District = doc.RoadAddress.Region2Depth
	}
	return p, true, nil
}
