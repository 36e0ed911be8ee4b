package client

import (
	"context"

	"github.com/trezcool/masomo-portal/core/report"
)

func (c *Client) ProjectSummary(ctx context.Context) (report.ProjectSummary, error) {
	var sum report.ProjectSummary
	err := c.get(ctx, "/reports/projects", nil, &sum)
	return sum, err
}

func (c *Client) EnrollmentSummary(ctx context.Context) (report.EnrollmentSummary, error) {
	var sum report.EnrollmentSummary
	err := c.get(ctx, "/reports/enrollments", nil, &sum)
	return sum, err
}
