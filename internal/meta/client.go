// Package meta talks to the Meta Conversions API (Graph API /<pixel-id>/events).
package meta

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/PratikDhanave/capi-relay/internal/models"
)

const maxResponseBody = 1 << 20 // 1MB cap on provider responses

const userAgent = "capi-relay/1.0"

// Doer is the subset of *http.Client used by Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client sends server events for a single pixel.
type Client struct {
	baseURL     string
	version     string
	pixelID     string
	accessToken string
	timeout     time.Duration
	http        Doer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		c.http = d
	}
}

// NewClient creates a client for baseURL (e.g. https://graph.facebook.com)
// and API version (e.g. v19.0). Every SendEvents call is bounded by timeout.
func NewClient(baseURL, version, pixelID, accessToken string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:     baseURL,
		version:     version,
		pixelID:     pixelID,
		accessToken: accessToken,
		timeout:     timeout,
		http:        &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// eventsURL builds <base>/<version>/<pixel>/events?access_token=<token>.
func (c *Client) eventsURL() string {
	q := url.Values{}
	q.Set("access_token", c.accessToken)
	return fmt.Sprintf("%s/%s/%s/events?%s",
		c.baseURL, c.version, url.PathEscape(c.pixelID), q.Encode())
}

// SendEvents posts payload once and returns the provider's response body.
//
// A non-2xx answer is returned as *APIError. Transport failures are returned
// wrapped; the request URL (which carries the access token) is stripped from
// them.
func (c *Client) SendEvents(ctx context.Context, payload models.EventsPayload) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.eventsURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", redact(err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send events: %w", redact(err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp.StatusCode, respBody)
	}

	if json.Valid(respBody) {
		return json.RawMessage(respBody), nil
	}
	// Relay non-JSON success bodies as a JSON string.
	raw, _ := json.Marshal(string(respBody))
	return raw, nil
}

// redact drops the *url.Error wrapper whose message embeds the full URL.
func redact(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}
