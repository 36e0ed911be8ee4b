package report

import (
	"time"

	"github.com/trezcool/masomo-portal/core/content"
	"github.com/trezcool/masomo-portal/core/project"
)

// ProjectSummary counts projects per display status.
type ProjectSummary struct {
	Total       int            `json:"total"`
	ByStatus    map[string]int `json:"by_status"`     // project.Status code -> count
	BySDG       map[string]int `json:"by_sdg"`        // sdg type -> count
	GeneratedAt time.Time      `json:"generated_at"` // UTC
}

// SummarizeProjects builds a ProjectSummary of projects.
func SummarizeProjects(projects []project.Project, now time.Time) ProjectSummary {
	sum := ProjectSummary{
		Total:       len(projects),
		ByStatus:    make(map[string]int, len(project.StatusCodes)),
		BySDG:       make(map[string]int),
		GeneratedAt: now.UTC(),
	}
	for _, code := range project.StatusCodes {
		sum.ByStatus[code] = 0
	}
	for _, p := range projects {
		sum.ByStatus[p.Status().Code()]++
		sum.BySDG[p.SDGType]++
	}
	return sum
}

// EnrollmentCount is the number of learners enrolled in a content.
type EnrollmentCount struct {
	ContentID string `json:"content_id"`
	Title     string `json:"title"`
	Learners  int    `json:"learners"`
}

type EnrollmentSummary struct {
	Contents    []EnrollmentCount `json:"contents"`
	Total       int               `json:"total"`
	GeneratedAt time.Time         `json:"generated_at"` // UTC
}

// SummarizeEnrollments counts enrollments per content, in the order of contents.
func SummarizeEnrollments(contents []content.Content, enrollments []content.Enrollment, now time.Time) EnrollmentSummary {
	counts := make(map[string]int, len(contents))
	for _, e := range enrollments {
		counts[e.ContentID]++
	}
	sum := EnrollmentSummary{
		Contents:    make([]EnrollmentCount, 0, len(contents)),
		Total:       len(enrollments),
		GeneratedAt: now.UTC(),
	}
	for _, c := range contents {
		sum.Contents = append(sum.Contents, EnrollmentCount{ContentID: c.ID, Title: c.Title, Learners: counts[c.ID]})
	}
	return sum
}
