package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/services/notify"
)

const (
	defaultFeedLimit = 20
	maxFeedLimit     = 100
)

type notificationApi struct {
	hub  *notifysvc.Hub
	feed notifysvc.Feed
}

func registerNotificationAPI(g *echo.Group, auth *authenticator, deps ServerDeps) {
	api := notificationApi{hub: deps.Hub, feed: deps.Feed}

	ng := g.Group("/notifications")
	ng.GET("", api.recent, auth.middleware(), userMiddleware(auth))
	// browsers cannot set headers on websocket handshakes
	ng.GET("/ws", api.stream, auth.middleware("query:token"), userMiddleware(auth))
}

// recent returns the latest notifications of the caller, newest first.
func (api *notificationApi) recent(ctx echo.Context) error {
	limit := defaultFeedLimit
	if l, err := strconv.Atoi(ctx.QueryParam("limit")); err == nil && l > 0 {
		limit = l
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}

	if api.feed == nil {
		return ctx.JSON(http.StatusOK, []core.Notification{})
	}
	ns, err := api.feed.Recent(ctx.Request().Context(), actor(ctx).ID, limit)
	if err != nil {
		return errors.Wrap(err, "reading notification feed")
	}
	return ctx.JSON(http.StatusOK, emptyIfNil(ns))
}

// stream pushes the caller's notifications over a websocket until either side goes away.
func (api *notificationApi) stream(ctx echo.Context) error {
	if api.hub == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "realtime notifications are disabled")
	}
	if err := api.hub.ServeWS(ctx.Response(), ctx.Request(), actor(ctx).ID); err != nil {
		if core.IsShutdown(err) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		}
		return errors.Wrap(err, "serving websocket")
	}
	return nil
}
