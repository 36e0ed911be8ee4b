package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/project"
	"github.com/trezcool/masomo-portal/core/user"
)

var errPrjNotFoundInCtx = errors.New("project object not found in echo.Context")

type projectApi struct {
	svc    *project.Service
	usrSvc *user.Service
}

func registerProjectAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *project.Service, usrSvc *user.Service) {
	api := projectApi{svc: svc, usrSvc: usrSvc}
	approver := roleMiddleware(usrSvc, user.RoleApprover)

	pg := g.Group("/projects", jwt)
	pg.GET("", api.query, approver)
	pg.GET("/mine", api.queryOwn)
	pg.GET("/mine/latest", api.retrieveLatest)
	pg.POST("/submit", api.submit, roleMiddleware(usrSvc, user.RoleLearner))

	// detail endpoints
	dg := pg.Group("/:id", ownerOrApproverMiddleware(svc, usrSvc))
	dg.GET("", api.retrieve)
	dg.PATCH("/status", api.updateStatus, approver)
	dg.DELETE("", api.destroy, adminMiddleware(usrSvc))
}

// Handlers

func (api *projectApi) query(ctx echo.Context) error {
	projects, err := api.svc.Filter(project.QueryFilter{
		OwnerID: ctx.QueryParam("owner_id"),
		Status:  ctx.QueryParam("status"),
		Search:  ctx.QueryParam("search"),
	})
	if err != nil {
		return errors.Wrap(err, "querying projects")
	}
	return ctx.JSON(http.StatusOK, projects)
}

func (api *projectApi) queryOwn(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	projects, err := api.svc.Filter(project.QueryFilter{OwnerID: usr.ID})
	if err != nil {
		return errors.Wrap(err, "querying own projects")
	}
	return ctx.JSON(http.StatusOK, projects)
}

func (api *projectApi) retrieveLatest(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	p, err := api.svc.Latest(usr.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *projectApi) submit(ctx echo.Context) error {
	var data project.Submission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Submission")
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	p, err := api.svc.Submit(usr.ID, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *projectApi) retrieve(ctx echo.Context) error {
	p, ok := ctx.Get("object").(project.Project)
	if !ok {
		return errors.Wrap(errPrjNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *projectApi) updateStatus(ctx echo.Context) error {
	p, ok := ctx.Get("object").(project.Project)
	if !ok {
		return errors.Wrap(errPrjNotFoundInCtx, "retrieving object from context")
	}

	var data project.StatusUpdate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusUpdate")
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	p, err = api.svc.UpdateStatus(p, usr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *projectApi) destroy(ctx echo.Context) error {
	p, ok := ctx.Get("object").(project.Project)
	if !ok {
		return errors.Wrap(errPrjNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(p.ID); err != nil {
		return errors.Wrap(err, "deleting project")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ownerOrApproverMiddleware loads the project of the :id param for its owner, approvers and admins.
func ownerOrApproverMiddleware(svc *project.Service, usrSvc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx, usrSvc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			p, err := svc.GetByID(ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == project.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding project by ID")
			}
			if p.OwnerID != ctxUsr.ID && !ctxUsr.IsApprover() && !ctxUsr.IsAdmin() {
				return errHttpNotFound
			}
			ctx.Set("object", p)
			return next(ctx)
		}
	}
}
