package client

import (
	"context"
	"net/http"

	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/core/user"
)

type (
	LoginRequest struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	TokenResponse struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh,omitempty"`
	}

	refreshRequest struct {
		Refresh string `json:"refresh"`
	}

	verifyRequest struct {
		Token string `json:"token"`
	}

	VerifyResponse struct {
		Valid     bool   `json:"valid"`
		TokenType string `json:"token_type,omitempty"`
		Subject   string `json:"subject,omitempty"`
	}
)

func (tr TokenResponse) tokens() session.Tokens {
	return session.Tokens{Access: tr.Access, Refresh: tr.Refresh}
}

// Login exchanges credentials for an access/refresh token pair.
func (c *Client) Login(ctx context.Context, username, password string) (session.Tokens, error) {
	var resp TokenResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   LoginRequest{Username: username, Password: password},
	}, &resp)
	return resp.tokens(), err
}

// RefreshTokens exchanges a refresh token for a new access token.
func (c *Client) RefreshTokens(ctx context.Context, refreshToken string) (session.Tokens, error) {
	var resp TokenResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/refresh",
		body:   refreshRequest{Refresh: refreshToken},
	}, &resp)
	return resp.tokens(), err
}

// Logout revokes the refresh token.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/logout",
		body:   refreshRequest{Refresh: refreshToken},
	}, nil)
}

// Verify asks the server whether token is valid.
func (c *Client) Verify(ctx context.Context, token string) (VerifyResponse, error) {
	var resp VerifyResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/verify",
		body:   verifyRequest{Token: token},
	}, &resp)
	return resp, err
}

// Me returns the user of the session.
func (c *Client) Me(ctx context.Context) (user.User, error) {
	var usr user.User
	err := c.get(ctx, "/auth/me", nil, &usr)
	return usr, err
}

// Authenticator returns the session.Authenticator backed by c.
func (c *Client) Authenticator() session.Authenticator {
	return authenticator{c}
}

type authenticator struct {
	c *Client
}

var _ session.Authenticator = authenticator{}

func (a authenticator) Login(ctx context.Context, username, password string) (session.Tokens, error) {
	return a.c.Login(ctx, username, password)
}

func (a authenticator) Refresh(ctx context.Context, refreshToken string) (session.Tokens, error) {
	return a.c.RefreshTokens(ctx, refreshToken)
}

func (a authenticator) Logout(ctx context.Context, refreshToken string) error {
	return a.c.Logout(ctx, refreshToken)
}

func (a authenticator) Me(ctx context.Context, accessToken string) (user.User, error) {
	var usr user.User
	err := a.c.do(ctx, request{method: http.MethodGet, path: "/auth/me", token: accessToken}, &usr)
	return usr, err
}
