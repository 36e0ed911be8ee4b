package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/trezcool/masomo-portal/core/content"
)

func (c *Client) ListContents(ctx context.Context) ([]content.Content, error) {
	contents := make([]content.Content, 0)
	err := c.get(ctx, "/contents", nil, &contents)
	return contents, err
}

func (c *Client) GetContent(ctx context.Context, id string) (content.Content, error) {
	var cnt content.Content
	err := c.get(ctx, "/contents/"+url.PathEscape(id), nil, &cnt)
	return cnt, err
}

func (c *Client) CreateContent(ctx context.Context, nc content.NewContent) (content.Content, error) {
	var cnt content.Content
	err := c.send(ctx, http.MethodPost, "/contents", nc, &cnt)
	return cnt, err
}

func (c *Client) UpdateContent(ctx context.Context, id string, uc content.UpdateContent) (content.Content, error) {
	var cnt content.Content
	err := c.send(ctx, http.MethodPut, "/contents/"+url.PathEscape(id), uc, &cnt)
	return cnt, err
}

func (c *Client) DeleteContent(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, "/contents/"+url.PathEscape(id), nil, nil)
}

// Enroll enrolls the session user in a content. Enrolling twice is not an error.
func (c *Client) Enroll(ctx context.Context, contentID string) (content.Enrollment, error) {
	var e content.Enrollment
	err := c.send(ctx, http.MethodPost, "/contents/"+url.PathEscape(contentID)+"/enroll", nil, &e)
	return e, err
}

// ListEnrollments lists the enrollments of the session user.
func (c *Client) ListEnrollments(ctx context.Context) ([]content.Enrollment, error) {
	enrollments := make([]content.Enrollment, 0)
	err := c.get(ctx, "/enrollments/mine", nil, &enrollments)
	return enrollments, err
}
