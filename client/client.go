// Package client is the typed gateway to the Masomo REST API.
//
// Every non-2xx response (and every transport failure) is returned as a *core.APIError.
// Authenticated calls carry the access token of a TokenSource; a 401 triggers one
// silent refresh followed by one retry, and a failed refresh ends the session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/session"
)

const (
	headerRequestID = "X-Request-ID"
	maxErrorBody    = 1 << 20
)

var newRequestID = func() string { return uuid.New().String() } // mockable

// TokenSource provides the access token of authenticated calls.
type TokenSource interface {
	AccessToken() string
	// RefreshIfStale refreshes the tokens unless the access token already differs from staleToken.
	RefreshIfStale(ctx context.Context, staleToken string) error
}

type Client struct {
	baseURL   string
	http      *http.Client
	tokens    TokenSource
	log       core.Logger
	userAgent string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(log core.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New returns a Client of the API rooted at baseURL (eg. http://localhost:8080/v1).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: 30 * time.Second},
		log:       core.NopLogger{},
		userAgent: "masomo-portal",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig returns a Client configured by conf.API.
func NewFromConfig(conf *core.Config, opts ...Option) *Client {
	opts = append([]Option{
		WithHTTPClient(&http.Client{Timeout: conf.API.Timeout}),
		WithUserAgent(conf.AppName + "/" + conf.Build),
	}, opts...)
	return New(conf.API.BaseURL, opts...)
}

// WithSession returns a copy of c authenticating its calls with ts.
func (c *Client) WithSession(ts TokenSource) *Client {
	cp := *c
	cp.tokens = ts
	return &cp
}

type request struct {
	method string
	path   string
	query  url.Values
	body   interface{}
	authed bool
	token  string // explicit bearer token, overrides the TokenSource
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.do(ctx, request{method: http.MethodGet, path: path, query: query, authed: true}, out)
}

func (c *Client) send(ctx context.Context, method, path string, body, out interface{}) error {
	return c.do(ctx, request{method: method, path: path, body: body, authed: true}, out)
}

func (c *Client) do(ctx context.Context, r request, out interface{}) error {
	var token string
	if r.token != "" {
		token = r.token
	} else if r.authed {
		if c.tokens == nil || c.tokens.AccessToken() == "" {
			return session.ErrNotAuthenticated
		}
		token = c.tokens.AccessToken()
	}

	resp, err := c.roundTrip(ctx, r, token)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && r.authed && r.token == "" {
		_ = resp.Body.Close()
		if err := c.tokens.RefreshIfStale(ctx, token); err != nil {
			if errors.Cause(err) == session.ErrSessionExpired || errors.Cause(err) == session.ErrNotAuthenticated {
				return session.ErrSessionExpired
			}
			return err
		}
		if resp, err = c.roundTrip(ctx, r, c.tokens.AccessToken()); err != nil {
			return err
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeError(resp)
		if apiErr.Retryable() {
			c.log.Error("api call failed", apiErr, map[string]interface{}{"method": r.method, "path": r.path})
		} else if apiErr.Code == core.CodeUnauthorized || apiErr.Code == core.CodeForbidden {
			c.log.Warn("api call refused", apiErr, map[string]interface{}{"method": r.method, "path": r.path})
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decoding %s %s response", r.method, r.path)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, r request, token string) (*http.Response, error) {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, errors.Wrap(err, "encoding request body")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(headerRequestID, newRequestID())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		apiErr := core.NewNetworkError(err)
		c.log.Warn("api unreachable", apiErr, map[string]interface{}{"method": r.method, "path": r.path})
		return nil, apiErr
	}
	return resp, nil
}

// decodeError builds the APIError of a non-2xx response. The API answers errors
// with either {"error": "message", ...details} or a {field: message} map.
func decodeError(resp *http.Response) *core.APIError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil || len(payload) == 0 {
		msg := strings.TrimSpace(string(data))
		if len(msg) > 200 || strings.HasPrefix(msg, "<") {
			msg = ""
		}
		return core.NewAPIError(resp.StatusCode, msg, nil)
	}

	if msg, ok := payload["error"].(string); ok {
		apiErr := core.NewAPIError(resp.StatusCode, msg, nil)
		for k, v := range payload {
			if s, ok := v.(string); ok && k != "error" {
				if apiErr.Details == nil {
					apiErr.Details = make(map[string]string)
				}
				apiErr.Details[k] = s
			}
		}
		return apiErr
	}

	fields := make(core.FieldErrors, len(payload))
	for k, v := range payload {
		if s, ok := v.(string); ok {
			fields[k] = s
		}
	}
	return core.NewAPIError(resp.StatusCode, "some fields are invalid", fields)
}
