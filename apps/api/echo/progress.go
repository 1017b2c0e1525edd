package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/pmajay/core/progress"
)

type progressApi struct {
	svc      *progress.Service
	validate *validator.Validate
}

func registerProgressAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, deps ServerDeps) {
	api := progressApi{svc: deps.ProgressSvc, validate: deps.Validate}

	pg := g.Group("/progress", authed(jwt, auth)...)
	pg.GET("", api.query)
	pg.POST("", api.create)
	pg.GET("/:id", api.retrieve)
	pg.PUT("/:id", api.update)
	pg.DELETE("/:id", api.destroy)
}

// create reports progress. The response carries the milestone and the fund release the report triggered, if any.
func (api *progressApi) create(ctx echo.Context) error {
	var data progress.NewUpdate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUpdate")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Create(ctx.Request().Context(), actor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "reporting progress")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *progressApi) query(ctx echo.Context) error {
	filter := new(progress.QueryFilter)
	ordering, page, err := listQuery(ctx, filter)
	if err != nil {
		return err
	}
	filter.Clean()

	updates, total, err := api.svc.Query(ctx.Request().Context(), actor(ctx), *filter, ordering, page)
	if err != nil {
		return errors.Wrap(err, "querying progress updates")
	}
	return listResponse(ctx, emptyIfNil(updates), page, total)
}

func (api *progressApi) retrieve(ctx echo.Context) error {
	u, err := api.svc.Get(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting progress update")
	}
	return ctx.JSON(http.StatusOK, u)
}

func (api *progressApi) update(ctx echo.Context) error {
	var data progress.UpdateUpdate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUpdate")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	u, err := api.svc.Update(ctx.Request().Context(), actor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating progress update")
	}
	return ctx.JSON(http.StatusOK, u)
}

func (api *progressApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), actor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting progress update")
	}
	return ctx.NoContent(http.StatusNoContent)
}
