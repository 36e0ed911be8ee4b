package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/trezcool/masomo-portal/core/project"
	"github.com/trezcool/masomo-portal/core/submitter"
)

// ListProjects lists every project matching filter (approvers and admins).
func (c *Client) ListProjects(ctx context.Context, filter project.QueryFilter) ([]project.Project, error) {
	q := make(url.Values)
	if filter.OwnerID != "" {
		q.Set("owner_id", filter.OwnerID)
	}
	if filter.Status != "" {
		q.Set("status", filter.Status)
	}
	if filter.Search != "" {
		q.Set("search", filter.Search)
	}
	projects := make([]project.Project, 0)
	err := c.get(ctx, "/projects", q, &projects)
	return projects, err
}

// ListOwnProjects lists the projects submitted by the session user.
func (c *Client) ListOwnProjects(ctx context.Context) ([]project.Project, error) {
	projects := make([]project.Project, 0)
	err := c.get(ctx, "/projects/mine", nil, &projects)
	return projects, err
}

// GetLatestOwnProject returns the last project submitted by the session user.
// It fails with a not_found APIError when there is none.
func (c *Client) GetLatestOwnProject(ctx context.Context) (project.Project, error) {
	var p project.Project
	err := c.get(ctx, "/projects/mine/latest", nil, &p)
	return p, err
}

func (c *Client) GetProject(ctx context.Context, id string) (project.Project, error) {
	var p project.Project
	err := c.get(ctx, "/projects/"+url.PathEscape(id), nil, &p)
	return p, err
}

// SubmitProject submits a draft and the profile of its submitter.
func (c *Client) SubmitProject(ctx context.Context, draft project.Draft, profile submitter.Profile) (project.Project, error) {
	var p project.Project
	err := c.send(ctx, http.MethodPost, "/projects/submit", project.NewSubmission(draft, profile), &p)
	return p, err
}

// UpdateProjectStatus approves the next stage of a project or rejects it.
func (c *Client) UpdateProjectStatus(ctx context.Context, id string, action project.Action, reason string) (project.Project, error) {
	var p project.Project
	err := c.send(ctx, http.MethodPatch, "/projects/"+url.PathEscape(id)+"/status", project.StatusUpdate{Action: action, Reason: reason}, &p)
	return p, err
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, "/projects/"+url.PathEscape(id), nil, nil)
}
