package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sitebatch/maintenance/internal/models"
)

type credentials struct {
	Email        string `json:"email,omitempty"`
	Password     string `json:"password,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	RedirectTo   string `json:"redirect_to,omitempty"`
}

// SignInWithPassword starts a session for email and password.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	return c.token(ctx, "password", credentials{Email: email, Password: password})
}

// RefreshSession exchanges a refresh token for a new session. The refresh
// token is rotated by the backend.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	return c.token(ctx, "refresh_token", credentials{RefreshToken: refreshToken})
}

func (c *Client) token(ctx context.Context, grant string, body credentials) (*models.Session, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/token", url.Values{"grant_type": {grant}}, body)
	if err != nil {
		return nil, err
	}
	var sess models.Session
	if err := c.send(req, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// SignUp registers an account. The confirmation link sends the user to redirectTo.
func (c *Client) SignUp(ctx context.Context, email, password, redirectTo string) (*models.User, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/signup", nil,
		credentials{Email: email, Password: password, RedirectTo: redirectTo})
	if err != nil {
		return nil, err
	}
	var u models.User
	if err := c.send(req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// SignOut revokes the refresh tokens of the session owning accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/logout", nil, nil)
	if err != nil {
		return err
	}
	withBearer(req, accessToken)
	return c.send(req, nil)
}

// GetUser returns the account owning accessToken.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*models.User, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/auth/v1/user", nil, nil)
	if err != nil {
		return nil, err
	}
	withBearer(req, accessToken)
	var u models.User
	if err := c.send(req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUser changes the password and/or metadata of the account owning accessToken.
func (c *Client) UpdateUser(ctx context.Context, accessToken string, upd models.UserUpdate) (*models.User, error) {
	req, err := c.newRequest(ctx, http.MethodPut, "/auth/v1/user", nil, upd)
	if err != nil {
		return nil, err
	}
	withBearer(req, accessToken)
	var u models.User
	if err := c.send(req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ResetPasswordForEmail asks the backend to mail a recovery link leading to
// redirectTo.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/recover", nil,
		credentials{Email: email, RedirectTo: redirectTo})
	if err != nil {
		return err
	}
	return c.send(req, nil)
}

// FollowVerifyLink opens an e-mailed verify link of this backend and returns
// the app link it redirects to, which carries the session in its fragment.
func (c *Client) FollowVerifyLink(ctx context.Context, link string) (string, error) {
	if !strings.HasPrefix(link, c.baseURL+"/auth/v1/verify") {
		return "", fmt.Errorf("%w: not a verify link of %s", models.ErrInvalidInput, c.baseURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}

	hc := *c.http
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	resp, err := hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("follow verify link: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 || resp.StatusCode > 399 {
		return "", newAPIError(resp)
	}
	target := resp.Header.Get("Location")
	if target == "" {
		return "", errors.New("verify link answered without a redirect")
	}
	return target, nil
}
