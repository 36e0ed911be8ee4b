package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/content"
	"github.com/trezcool/masomo-portal/core/project"
	"github.com/trezcool/masomo-portal/core/report"
	"github.com/trezcool/masomo-portal/core/user"
)

type reportApi struct {
	projectSvc *project.Service
	contentSvc *content.Service
}

func registerReportAPI(g *echo.Group, jwt echo.MiddlewareFunc, projectSvc *project.Service, contentSvc *content.Service, usrSvc *user.Service) {
	api := reportApi{projectSvc: projectSvc, contentSvc: contentSvc}

	rg := g.Group("/reports", jwt)
	rg.GET("/projects", api.projects, roleMiddleware(usrSvc, user.RoleApprover))
	rg.GET("/enrollments", api.enrollments, adminMiddleware(usrSvc))
}

func (api *reportApi) projects(ctx echo.Context) error {
	projects, err := api.projectSvc.Filter(project.QueryFilter{})
	if err != nil {
		return errors.Wrap(err, "querying projects")
	}
	return ctx.JSON(http.StatusOK, report.SummarizeProjects(projects, core.NowFunc()))
}

func (api *reportApi) enrollments(ctx echo.Context) error {
	contents, err := api.contentSvc.List(false)
	if err != nil {
		return errors.Wrap(err, "querying contents")
	}
	enrollments, err := api.contentSvc.AllEnrollments()
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	return ctx.JSON(http.StatusOK, report.SummarizeEnrollments(contents, enrollments, core.NowFunc()))
}
