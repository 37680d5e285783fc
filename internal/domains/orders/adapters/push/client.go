package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Apurer/go-order-saga/internal/domains/orders/ports"
)

var _ ports.Transport = (*Client)(nil)

// Client pushes messages through the gateway's connection management API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient instantiates the push client. A nil httpClient gets a traced client with a 5s timeout.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("gateway base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse gateway base URL: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   5 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}, nil
}

// PushToConnection posts data to /connections/{id}. 410 Gone maps to ports.ErrConnectionGone.
func (c *Client) PushToConnection(ctx context.Context, connectionID string, data []byte) error {
	if c == nil || c.httpClient == nil {
		return errors.New("push client not configured")
	}
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return ports.ErrConnectionGone
	}
	endpoint := c.baseURL + "/connections/" + url.PathEscape(connectionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call gateway: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	case resp.StatusCode == http.StatusGone:
		_, _ = io.Copy(io.Discard, resp.Body)
		return ports.ErrConnectionGone
	default:
		return fmt.Errorf("gateway push failed: %s", errorMessage(resp))
	}
}

type problem struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func errorMessage(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(body) == 0 {
		return resp.Status
	}
	var p problem
	if err := json.Unmarshal(body, &p); err != nil {
		return resp.Status
	}
	if msg := strings.TrimSpace(p.Detail); msg != "" {
		return resp.Status + ": " + msg
	}
	if msg := strings.TrimSpace(p.Title); msg != "" {
		return resp.Status + ": " + msg
	}
	return resp.Status
}
