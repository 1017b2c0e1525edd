package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/pmajay/core/dashboard"
)

type dashboardApi struct {
	svc *dashboard.Service
}

func registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, deps ServerDeps) {
	api := dashboardApi{svc: deps.DashboardSvc}
	g.GET("/dashboard/stats", api.stats, authed(jwt, auth)...)
}

func (api *dashboardApi) stats(ctx echo.Context) error {
	st, err := api.svc.Stats(ctx.Request().Context(), actor(ctx))
	if err != nil {
		return errors.Wrap(err, "computing dashboard stats")
	}
	return ctx.JSON(http.StatusOK, st)
}
