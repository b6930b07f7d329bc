// Package client wraps the Kazi HTTP API. The service itself is an external
// collaborator; this package only speaks its wire surface, one method per
// endpoint, passing the bearer token on each authenticated call.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
)

type Client struct {
	baseURL    string
	http       *http.Client
	validate   *validator.Validate
	translator ut.Translator
}

func NewClient(conf *core.Config) *Client {
	validate, translator := core.NewValidator()
	return &Client{
		baseURL:    conf.API.BaseURL,
		http:       &http.Client{Timeout: conf.API.RequestTimeout},
		validate:   validate,
		translator: translator,
	}
}

// newRequest builds an API request; a non-empty token is sent as a bearer token.
func (c *Client) newRequest(ctx context.Context, method, path, token string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) newJSONRequest(ctx context.Context, method, path, token string, data interface{}) (*http.Request, error) {
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(data); err != nil {
		return nil, errors.Wrap(err, "encoding request body")
	}
	req, err := c.newRequest(ctx, method, path, token, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do sends the request and decodes a 2xx response body into out (when
// non-nil). Non-2xx responses become an *APIError carrying the service's
// `detail` message; transport failures are returned wrapped, undecorated.
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "sending request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decoding response body")
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	// the service reports errors as {"detail": ...}; some proxies use {"message": ...}
	var payload struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
		if payload.Detail != "" {
			apiErr.Detail = payload.Detail
		} else {
			apiErr.Detail = payload.Message
		}
	}
	return apiErr
}

// APIError is a non-2xx application-level response from the service.
type APIError struct {
	StatusCode int
	Detail     string
}

func (err *APIError) Error() string {
	if err.Detail != "" {
		return err.Detail
	}
	return fmt.Sprintf("request failed with status %d", err.StatusCode)
}

// ErrorDetail returns the service's error message for err, or fallback when
// err carries none (e.g. a transport failure).
func ErrorDetail(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return fallback
}
