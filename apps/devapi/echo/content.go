package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/content"
	"github.com/trezcool/masomo-portal/core/user"
)

var errCntNotFoundInCtx = errors.New("content object not found in echo.Context")

type contentApi struct {
	svc    *content.Service
	usrSvc *user.Service
}

func registerContentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *content.Service, usrSvc *user.Service) {
	api := contentApi{svc: svc, usrSvc: usrSvc}
	admin := adminMiddleware(usrSvc)

	cg := g.Group("/contents", jwt)
	cg.GET("", api.query)
	cg.POST("", api.create, admin)

	// detail endpoints
	dg := cg.Group("/:id", contentMiddleware(svc, usrSvc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, admin)
	dg.DELETE("", api.destroy, admin)
	dg.POST("/enroll", api.enroll, roleMiddleware(usrSvc, user.RoleLearner))

	g.GET("/enrollments/mine", api.queryOwnEnrollments, jwt)
}

// Handlers

func (api *contentApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	contents, err := api.svc.List(!usr.IsAdmin())
	if err != nil {
		return errors.Wrap(err, "querying contents")
	}
	return ctx.JSON(http.StatusOK, contents)
}

func (api *contentApi) create(ctx echo.Context) error {
	var data content.NewContent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewContent")
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	c, err := api.svc.Create(usr.ID, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *contentApi) retrieve(ctx echo.Context) error {
	c, ok := ctx.Get("object").(content.Content)
	if !ok {
		return errors.Wrap(errCntNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *contentApi) update(ctx echo.Context) error {
	c, ok := ctx.Get("object").(content.Content)
	if !ok {
		return errors.Wrap(errCntNotFoundInCtx, "retrieving object from context")
	}

	var data content.UpdateContent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateContent")
	}

	c, err := api.svc.Update(c, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *contentApi) destroy(ctx echo.Context) error {
	c, ok := ctx.Get("object").(content.Content)
	if !ok {
		return errors.Wrap(errCntNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(c.ID); err != nil {
		return errors.Wrap(err, "deleting content")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *contentApi) enroll(ctx echo.Context) error {
	c, ok := ctx.Get("object").(content.Content)
	if !ok {
		return errors.Wrap(errCntNotFoundInCtx, "retrieving object from context")
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	e, err := api.svc.Enroll(c, usr.ID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *contentApi) queryOwnEnrollments(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	enrollments, err := api.svc.Enrollments(usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	return ctx.JSON(http.StatusOK, enrollments)
}

// contentMiddleware loads the content of the :id param. Unpublished contents are only visible to admins.
func contentMiddleware(svc *content.Service, usrSvc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx, usrSvc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			c, err := svc.GetByID(ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == content.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding content by ID")
			}
			if !c.IsPublished && !ctxUsr.IsAdmin() {
				return errHttpNotFound
			}
			ctx.Set("object", c)
			return next(ctx)
		}
	}
}
