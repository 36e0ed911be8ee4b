package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/trezcool/masomo-portal/core/user"
)

func (c *Client) ListUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	q := make(url.Values)
	if filter.Search != "" {
		q.Set("search", filter.Search)
	}
	for _, role := range filter.Roles {
		q.Add("role", role)
	}
	if filter.IsActive != nil {
		q.Set("is_active", strconv.FormatBool(*filter.IsActive))
	}
	users := make([]user.User, 0)
	err := c.get(ctx, "/users", q, &users)
	return users, err
}

func (c *Client) GetUser(ctx context.Context, id string) (user.User, error) {
	var usr user.User
	err := c.get(ctx, "/users/"+url.PathEscape(id), nil, &usr)
	return usr, err
}

func (c *Client) CreateUser(ctx context.Context, nu user.NewUser) (user.User, error) {
	var usr user.User
	err := c.send(ctx, http.MethodPost, "/users", nu, &usr)
	return usr, err
}

func (c *Client) UpdateUser(ctx context.Context, id string, uu user.UpdateUser) (user.User, error) {
	var usr user.User
	err := c.send(ctx, http.MethodPut, "/users/"+url.PathEscape(id), uu, &usr)
	return usr, err
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil)
}

// ListRoles lists the roles an admin may assign.
func (c *Client) ListRoles(ctx context.Context) ([]user.Role, error) {
	roles := make([]user.Role, 0)
	err := c.get(ctx, "/users/roles", nil, &roles)
	return roles, err
}
