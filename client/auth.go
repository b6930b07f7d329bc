package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core/user"
)

// ErrUnauthorized is returned when the service rejects the bearer token
// (expired or invalid). It is the only error kind Me produces for a bad token.
var ErrUnauthorized = errors.New("invalid or expired token")

// Login exchanges credentials for a bearer token via the OAuth2 password flow.
func (c *Client) Login(ctx context.Context, creds user.Credentials) (user.Token, error) {
	if err := creds.Validate(c.validate, c.translator); err != nil {
		return user.Token{}, err
	}

	form := make(url.Values)
	form.Set("grant_type", "password")
	form.Set("username", creds.Username)
	form.Set("password", creds.Password)

	req, err := c.newRequest(ctx, http.MethodPost, "/api/auth/token", "", strings.NewReader(form.Encode()))
	if err != nil {
		return user.Token{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var token user.Token
	if err := c.do(req, &token); err != nil {
		return user.Token{}, err
	}
	return token, nil
}

// Signup registers a new account. It does not log the new user in;
// callers chain into Login themselves.
func (c *Client) Signup(ctx context.Context, data user.NewUser) (user.User, error) {
	if err := data.Validate(c.validate, c.translator); err != nil {
		return user.User{}, err
	}

	req, err := c.newJSONRequest(ctx, http.MethodPost, "/api/auth/signup", "", data)
	if err != nil {
		return user.User{}, err
	}

	var usr user.User
	if err := c.do(req, &usr); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

// Me resolves the bearer token into the current user's identity.
func (c *Client) Me(ctx context.Context, token string) (user.User, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/users/me", token, nil)
	if err != nil {
		return user.User{}, err
	}

	var usr user.User
	if err := c.do(req, &usr); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return user.User{}, ErrUnauthorized
		}
		return user.User{}, err
	}
	return usr, nil
}

// GetUser fetches a user's public identity by ID.
func (c *Client) GetUser(ctx context.Context, token, id string) (user.User, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/users/"+id, token, nil)
	if err != nil {
		return user.User{}, err
	}

	var usr user.User
	if err := c.do(req, &usr); err != nil {
		return user.User{}, err
	}
	return usr, nil
}
