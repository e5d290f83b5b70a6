package backend

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

func objectPath(bucket, name string) string {
	return url.PathEscape(bucket) + "/" + url.PathEscape(name)
}

// Upload stores data as object name in bucket.
func (c *Client) Upload(ctx context.Context, bucket, name string, data []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/storage/v1/object/"+objectPath(bucket, name), bytes.NewReader(data))
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	if err := c.authorize(req); err != nil {
		return err
	}
	return c.send(req, nil)
}

// CreateSignedURL returns an absolute URL granting read access to the
// object for ttl.
func (c *Client) CreateSignedURL(ctx context.Context, bucket, name string, ttl time.Duration) (string, error) {
	body := struct {
		ExpiresIn int64 `json:"expiresIn"`
	}{ExpiresIn: int64(ttl / time.Second)}

	req, err := c.newRequest(ctx, http.MethodPost, "/storage/v1/object/sign/"+objectPath(bucket, name), nil, body)
	if err != nil {
		return "", err
	}
	if err := c.authorize(req); err != nil {
		return "", err
	}
	var out struct {
		SignedURL string `json:"signedURL"`
	}
	if err := c.send(req, &out); err != nil {
		return "", err
	}
	if out.SignedURL == "" {
		return "", errors.New("backend returned an empty signed url")
	}
	if strings.HasPrefix(out.SignedURL, "http://") || strings.HasPrefix(out.SignedURL, "https://") {
		return out.SignedURL, nil
	}
	return c.baseURL + "/storage/v1" + out.SignedURL, nil
}
