// Package backend is the typed HTTP client of the hosted maintenance
// backend: auth, the defect row store and photo storage.
package backend

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

	"go.uber.org/zap"
)

// TokenSource yields the bearer access token for row and storage calls.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// ErrNoTokenSource is returned by authenticated calls made before a
// TokenSource was set.
var ErrNoTokenSource = errors.New("backend: no token source")

// Client talks to the backend. No call is retried.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	log     *zap.Logger
}

// New returns a Client for the backend at baseURL. A nil hc uses
// http.DefaultClient and a nil log discards output.
func New(baseURL string, hc *http.Client, log *zap.Logger) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		log:     log,
	}
}

// SetTokenSource installs the source of access tokens for row and storage calls.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.tokens = ts
}

// BaseURL returns the backend root the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

// newRequest builds a request for path relative to the backend root. A
// non-nil body is encoded as JSON.
func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// withBearer sets the Authorization header from token.
func withBearer(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
}

// authorize sets the Authorization header from the installed TokenSource.
func (c *Client) authorize(req *http.Request) error {
	if c.tokens == nil {
		return ErrNoTokenSource
	}
	token, err := c.tokens.AccessToken(req.Context())
	if err != nil {
		return err
	}
	withBearer(req, token)
	return nil
}

// send executes req and decodes a 2xx JSON answer into out when out is
// non-nil. Any other status becomes an *APIError.
func (c *Client) send(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	c.log.Debug("backend call",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}
