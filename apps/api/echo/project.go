package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/pmajay/core/project"
)

type projectApi struct {
	svc      *project.Service
	validate *validator.Validate
}

func registerProjectAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, deps ServerDeps) {
	api := projectApi{svc: deps.ProjectSvc, validate: deps.Validate}

	pg := g.Group("/projects", authed(jwt, auth)...)
	pg.GET("", api.query)
	pg.POST("", api.create)
	pg.GET("/:id", api.retrieve)
	pg.PUT("/:id", api.update)
	pg.DELETE("/:id", api.destroy)
	pg.POST("/:id/approvals", api.approve)
}

func (api *projectApi) create(ctx echo.Context) error {
	var data project.NewProject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProject")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Create(ctx.Request().Context(), actor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating project")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *projectApi) query(ctx echo.Context) error {
	filter := new(project.QueryFilter)
	ordering, page, err := listQuery(ctx, filter)
	if err != nil {
		return err
	}
	filter.Clean()

	projects, total, err := api.svc.Query(ctx.Request().Context(), actor(ctx), *filter, ordering, page)
	if err != nil {
		return errors.Wrap(err, "querying projects")
	}
	return listResponse(ctx, emptyIfNil(projects), page, total)
}

func (api *projectApi) retrieve(ctx echo.Context) error {
	p, err := api.svc.Get(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting project")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *projectApi) update(ctx echo.Context) error {
	orig, err := api.svc.Get(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting project")
	}

	var data project.UpdateProject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProject")
	}
	if err := data.Validate(orig, api.validate); err != nil {
		return err
	}

	p, err := api.svc.Update(ctx.Request().Context(), actor(ctx), orig.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating project")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *projectApi) approve(ctx echo.Context) error {
	var data project.ApprovalDecision
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ApprovalDecision")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Approve(ctx.Request().Context(), actor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "approving project")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *projectApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), actor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting project")
	}
	return ctx.NoContent(http.StatusNoContent)
}
