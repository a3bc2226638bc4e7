// Package api is the HTTP client for the QA backend. All paths are
// relative to `{base}/api`; every request carries the current user's id as
// a `user_id` query parameter when a session exists.
package api

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

	"golang.org/x/time/rate"

	"github.com/sercano/qahub/config"
	"github.com/sercano/qahub/utils"
)

// UserSource reports the current session's user id, or "" when logged out.
// The session manager implements this; the client itself never reads
// persistent storage.
type UserSource interface {
	CurrentUserID() string
}

// Client is the backend API client. A single instance is shared by the
// whole process.
type Client struct {
	baseURL    string
	httpClient *http.Client
	// streamClient has no client-side timeout; streaming requests are
	// governed by their caller's context deadline instead.
	streamClient *http.Client
	userSource   UserSource
	limiter      *rate.Limiter
	logger       *utils.LoggerWithContext
}

// New creates a client from configuration. userSource may be nil until a
// session manager exists; SetUserSource wires it in later.
func New(cfg *config.Config, userSource UserSource) *Client {
	return &Client{
		baseURL: cfg.APIBaseURL(),
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		streamClient: &http.Client{},
		userSource:   userSource,
		limiter:      rate.NewLimiter(rate.Every(time.Second), 10),
		logger:       utils.GetLogger().WithSource("api_client"),
	}
}

// SetUserSource wires the session manager in after construction. The
// session manager needs the client to validate the device, so the two are
// built in sequence.
func (c *Client) SetUserSource(s UserSource) {
	c.userSource = s
}

// BaseURL returns the resolved API base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// get issues a GET and decodes the JSON response into out
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// post issues a POST with a JSON body and decodes the response into out
func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

// put issues a PUT with a JSON body and decodes the response into out
func (c *Client) put(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPut, path, nil, body, out)
}

// del issues a DELETE
func (c *Client) del(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, out)
}

// do executes one JSON request/response cycle with error mapping
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	resp, err := c.send(ctx, c.httpClient, method, path, query, body, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{
			StatusCode: resp.StatusCode,
			Message:    MsgInvalidFormat,
			Err:        err,
		}
	}
	return nil
}

// postRaw issues a POST and returns the raw response bytes (report exports)
func (c *Client) postRaw(ctx context.Context, path string, body interface{}) ([]byte, error) {
	resp, err := c.send(ctx, c.httpClient, http.MethodPost, path, nil, body, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, data)
	}
	return data, nil
}

// Stream issues a streaming POST and returns the undrained response body.
// The caller owns the body and must close it; cancellation and the
// workflow wall clock arrive through ctx.
func (c *Client) Stream(ctx context.Context, path string, body interface{}) (io.ReadCloser, error) {
	resp, err := c.send(ctx, c.streamClient, http.MethodPost, path, nil, body, "text/event-stream")
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		resp.Body.Close()
		return nil, statusError(resp.StatusCode, data)
	}
	return resp.Body, nil
}

// send builds and executes a request, applying the rate limiter and the
// user_id injection
func (c *Client) send(ctx context.Context, hc *http.Client, method, path string, query url.Values, body interface{}, accept string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, transportError(err)
	}

	u, err := c.buildURL(path, query)
	if err != nil {
		return nil, &Error{Message: MsgInvalidReq, Err: err}
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Message: MsgInvalidReq, Err: fmt.Errorf("encoding request body: %w", err)}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, &Error{Message: MsgInvalidReq, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", accept)

	c.logger.Debug("API request", map[string]interface{}{
		"method": method,
		"path":   path,
	})

	resp, err := hc.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	return resp, nil
}

// buildURL joins the base URL, path and query, injecting user_id unless
// the caller already supplied one
func (c *Client) buildURL(path string, query url.Values) (string, error) {
	u, err := url.Parse(c.baseURL + "/" + strings.TrimLeft(path, "/"))
	if err != nil {
		return "", err
	}

	q := u.Query()
	for key, values := range query {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	if q.Get("user_id") == "" && c.userSource != nil {
		if id := c.userSource.CurrentUserID(); id != "" {
			q.Set("user_id", id)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
