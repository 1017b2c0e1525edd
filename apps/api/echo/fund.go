package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/pmajay/core/fund"
)

type fundApi struct {
	svc      *fund.Service
	validate *validator.Validate
}

func registerFundAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, deps ServerDeps) {
	api := fundApi{svc: deps.FundSvc, validate: deps.Validate}

	fg := g.Group("/funds", authed(jwt, auth)...)
	fg.GET("", api.query)
	fg.POST("", api.create)
	fg.GET("/pending", api.pending)
	fg.GET("/:id", api.retrieve)
	fg.POST("/:id/approval", api.act)
	fg.PUT("/:id/status", api.updateStatus)
}

func (api *fundApi) create(ctx echo.Context) error {
	var data fund.NewTransaction
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTransaction")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	tx, err := api.svc.Create(ctx.Request().Context(), actor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating fund transaction")
	}
	return ctx.JSON(http.StatusCreated, tx)
}

func (api *fundApi) query(ctx echo.Context) error {
	filter := new(fund.QueryFilter)
	ordering, page, err := listQuery(ctx, filter)
	if err != nil {
		return err
	}
	filter.Clean()

	txs, total, err := api.svc.Query(ctx.Request().Context(), actor(ctx), *filter, ordering, page)
	if err != nil {
		return errors.Wrap(err, "querying fund transactions")
	}
	return listResponse(ctx, emptyIfNil(txs), page, total)
}

// pending lists the transactions waiting on the caller's approval level.
func (api *fundApi) pending(ctx echo.Context) error {
	ordering, page, err := listQuery(ctx, nil)
	if err != nil {
		return err
	}

	txs, total, err := api.svc.Pending(ctx.Request().Context(), actor(ctx), ordering, page)
	if err != nil {
		return errors.Wrap(err, "querying pending approvals")
	}
	return listResponse(ctx, emptyIfNil(txs), page, total)
}

func (api *fundApi) retrieve(ctx echo.Context) error {
	tx, err := api.svc.Get(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting fund transaction")
	}
	return ctx.JSON(http.StatusOK, tx)
}

func (api *fundApi) act(ctx echo.Context) error {
	var data fund.Decision
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Decision")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	tx, err := api.svc.Act(ctx.Request().Context(), actor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "acting on fund transaction")
	}
	return ctx.JSON(http.StatusOK, tx)
}

func (api *fundApi) updateStatus(ctx echo.Context) error {
	var data fund.StatusChange
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusChange")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	tx, err := api.svc.UpdateStatus(ctx.Request().Context(), actor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating fund transaction status")
	}
	return ctx.JSON(http.StatusOK, tx)
}
