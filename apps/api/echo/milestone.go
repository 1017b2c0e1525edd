package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/milestone"
)

type milestoneApi struct {
	svc      *milestone.Service
	validate *validator.Validate
}

func registerMilestoneAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, deps ServerDeps) {
	api := milestoneApi{svc: deps.MilestoneSvc, validate: deps.Validate}

	mg := g.Group("/milestones", authed(jwt, auth)...)
	mg.GET("", api.query)
	mg.POST("", api.create)
	mg.GET("/:id", api.retrieve)
	mg.PUT("/:id", api.update)
	mg.DELETE("/:id", api.destroy)
	mg.POST("/:id/verify", api.verify)

	g.GET("/projects/:projectID/milestones", api.queryProject, authed(jwt, auth)...)
}

func (api *milestoneApi) create(ctx echo.Context) error {
	var data milestone.NewMilestone
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMilestone")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.svc.Create(ctx.Request().Context(), actor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating milestone")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *milestoneApi) query(ctx echo.Context) error {
	filter := new(milestone.QueryFilter)
	ordering, page, err := listQuery(ctx, filter)
	if err != nil {
		return err
	}
	filter.Clean()
	return api.list(ctx, *filter, ordering, page)
}

func (api *milestoneApi) queryProject(ctx echo.Context) error {
	filter := new(milestone.QueryFilter)
	ordering, page, err := listQuery(ctx, filter)
	if err != nil {
		return err
	}
	filter.Clean()
	filter.ProjectID = ctx.Param("projectID")
	return api.list(ctx, *filter, ordering, page)
}

func (api *milestoneApi) list(ctx echo.Context, filter milestone.QueryFilter, ordering []core.DBOrdering, page core.Pagination) error {
	milestones, total, err := api.svc.Query(ctx.Request().Context(), actor(ctx), filter, ordering, page)
	if err != nil {
		return errors.Wrap(err, "querying milestones")
	}
	return listResponse(ctx, emptyIfNil(milestones), page, total)
}

func (api *milestoneApi) retrieve(ctx echo.Context) error {
	m, err := api.svc.Get(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting milestone")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *milestoneApi) update(ctx echo.Context) error {
	var data milestone.UpdateMilestone
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMilestone")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.svc.Update(ctx.Request().Context(), actor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating milestone")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *milestoneApi) verify(ctx echo.Context) error {
	var data milestone.Verification
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Verification")
	}

	m, err := api.svc.Verify(ctx.Request().Context(), actor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "verifying milestone")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *milestoneApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), actor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting milestone")
	}
	return ctx.NoContent(http.StatusNoContent)
}
