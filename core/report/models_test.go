package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-portal/core/content"
	"github.com/trezcool/masomo-portal/core/project"
)

func TestSummarizeProjects(t *testing.T) {
	now := time.Date(2024, 3, 1, 15, 0, 0, 0, time.FixedZone("ICT", 7*3600))
	stamp := now.Add(-time.Hour)

	projects := []project.Project{
		{ID: "1", SDGType: project.SDGTypes[0].Value},
		{ID: "2", SDGType: project.SDGTypes[0].Value, FirstApprovedAt: &stamp},
		{ID: "3", SDGType: project.SDGTypes[1].Value, FirstApprovedAt: &stamp, SecondApprovedAt: &stamp, ThirdApprovedAt: &stamp},
		{ID: "4", SDGType: project.SDGTypes[1].Value, RejectedAt: &stamp},
	}

	sum := SummarizeProjects(projects, now)
	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, map[string]int{
		"awaiting_first":  1,
		"awaiting_second": 1,
		"awaiting_third":  0,
		"approved":        1,
		"rejected":        1,
	}, sum.ByStatus)
	assert.Equal(t, map[string]int{project.SDGTypes[0].Value: 2, project.SDGTypes[1].Value: 2}, sum.BySDG)
	assert.Equal(t, time.UTC, sum.GeneratedAt.Location())

	empty := SummarizeProjects(nil, now)
	assert.Len(t, empty.ByStatus, len(project.StatusCodes), "every status is listed")
}

func TestSummarizeEnrollments(t *testing.T) {
	contents := []content.Content{{ID: "c1", Title: "Intro"}, {ID: "c2", Title: "Writing"}}
	enrollments := []content.Enrollment{
		{ContentID: "c2", UserID: "u1"},
		{ContentID: "c2", UserID: "u2"},
		{ContentID: "c1", UserID: "u1"},
	}

	sum := SummarizeEnrollments(contents, enrollments, time.Now())
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, []EnrollmentCount{
		{ContentID: "c1", Title: "Intro", Learners: 1},
		{ContentID: "c2", Title: "Writing", Learners: 2},
	}, sum.Contents)
}
