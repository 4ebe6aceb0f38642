package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HTTPTrigger fires the cutover against a remote delivery dispatcher when the
// sides run as separate instances.
type HTTPTrigger struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPTrigger(baseURL string) *HTTPTrigger {
	return &HTTPTrigger{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *HTTPTrigger) Import(ctx context.Context) (int, error) {
	return t.post(ctx, "/delivery/import")
}

func (t *HTTPTrigger) Assign(ctx context.Context) (int, error) {
	return t.post(ctx, "/delivery/assign")
}

func (t *HTTPTrigger) post(ctx context.Context, path string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+path, nil)
	if err != nil {
		return 0, err
	}
	resp, err := t.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("delivery dispatcher unreachable: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
