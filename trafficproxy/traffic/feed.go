package traffic

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	feedResultOK    = "INFO-000"
	feedCallTimeout = 5 * time.Second
)

// FeedClient fetches per-link observations from the municipal traffic feed.
// The feed answers one service link per request, in XML.
type FeedClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewFeedClient creates a feed client. baseURL is the feed origin, e.g.
// "http://openapi.seoul.go.kr:8088".
func NewFeedClient(baseURL, apiKey string) *FeedClient {
	return &FeedClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: feedCallTimeout},
	}
}

// Observation is one feed row: a service link and its processed speed.
type Observation struct {
	LinkID   string
	SpeedKmh float64
	RoadName string // optional, empty when the feed omits it
}

type feedResponse struct {
	Result struct {
		Code string `xml:"CODE"`
	} `xml:"RESULT"`
	Row struct {
		LinkID  string  `xml:"link_id"`
		PrcsSpd float64 `xml:"prcs_spd"`
		RoadNm  string  `xml:"road_nm"`
	} `xml:"row"`
}

// Fetch retrieves the current observation for one service link.
func (c *FeedClient) Fetch(ctx context.Context, serviceLinkID string) (Observation, error) {
	url := fmt.Sprintf("%s/%s/xml/TrafficInfo/1/1/%s", c.baseURL, c.apiKey, serviceLinkID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Observation{}, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Observation{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Observation{}, fmt.Errorf("traffic feed returned status %d for link %s", resp.StatusCode, serviceLinkID)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Observation{}, err
	}

	var parsed feedResponse
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return Observation{}, fmt.Errorf("parse traffic feed response for link %s: %w", serviceLinkID, err)
	}
	if parsed.Result.Code != feedResultOK {
		return Observation{}, fmt.Errorf("traffic feed result code %q for link %s", parsed.Result.Code, serviceLinkID)
	}
	if parsed.Row.LinkID == "" {
		return Observation{}, fmt.Errorf("traffic feed row missing link_id for link %s", serviceLinkID)
	}
	return Observation{
		LinkID:   parsed.Row.LinkID,
		SpeedKmh: parsed.Row.PrcsSpd,
		RoadName: parsed.Row.RoadNm,
	}, nil
}
