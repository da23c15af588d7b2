package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/amoylab/boom/internal/common/config"
	"github.com/amoylab/boom/internal/common/errorx"
	"github.com/amoylab/boom/pkg/utils"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client posts envelopes to the application
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates an application client. A zero timeout leaves calls unbounded.
func NewClient(cfg *config.AppConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Auth.Token,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// URL returns the route an event of namespace nsp is posted to
func (c *Client) URL(nsp, event string) string {
	return utils.JoinURL(c.baseURL, utils.Slugify(nsp)+"/"+utils.Slugify(event))
}

// Post sends env and returns the decoded response body. A body that is not
// JSON is returned as a string. Non-2xx answers fail with *errorx.AppError.
func (c *Client) Post(ctx context.Context, nsp, event string, env *Envelope) (any, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}

	url := c.URL(nsp, event)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	data := decodeBody(raw)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &errorx.AppError{
			Method:     http.MethodPost,
			URL:        url,
			StatusCode: resp.StatusCode,
			Body:       data,
		}
	}
	return data, nil
}

func decodeBody(raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}
