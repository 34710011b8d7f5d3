package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/v2t/web/internal/logging"
)

const maxErrorBody = 64 << 10

// Client talks to the video backend. It holds no session state; calls that
// need a bearer token go through WithToken.
type Client struct {
	baseURL string
	http    *http.Client
	upload  *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the client used for regular JSON calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithUploadTimeout sets the deadline for multipart uploads, which usually
// need far longer than the JSON calls.
func WithUploadTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.upload = &http.Client{Timeout: d, Transport: c.http.Transport}
		}
	}
}

// New constructs a Client for the backend rooted at baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
	c.upload = c.http
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithToken returns a view of the client that authenticates as token.
func (c *Client) WithToken(token string) *AuthedClient {
	return &AuthedClient{client: c, token: token}
}

// AuthedClient issues bearer-authenticated calls.
type AuthedClient struct {
	client *Client
	token  string
}

// authorize attaches the bearer token, or short-circuits when there is none.
func authorize(token string, req *http.Request) (*http.Request, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthenticated
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends req and hands a 2xx response to handle. Non-2xx responses become
// *APIError.
func (c *Client) do(hc *http.Client, name string, req *http.Request, handle func(*http.Response) error) error {
	ctx, span := logging.StartSpan(req.Context(), name)
	defer span.End()

	resp, err := hc.Do(req.WithContext(ctx))
	if err != nil {
		span.SetError(err)
		return fmt.Errorf("%s: %w", name, err)
	}
	defer resp.Body.Close()
	span.SetStatus(resp.StatusCode)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: body}
		span.SetError(apiErr)
		return fmt.Errorf("%s: %w", name, apiErr)
	}

	if handle == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := handle(resp); err != nil {
		span.SetError(err)
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func decodeInto(out any) func(*http.Response) error {
	return func(resp *http.Response) error {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
}
