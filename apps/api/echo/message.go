package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/message"
)

type messageApi struct {
	svc      *message.Service
	validate *validator.Validate
}

func registerMessageAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, deps ServerDeps) {
	api := messageApi{svc: deps.MessageSvc, validate: deps.Validate}

	mg := g.Group("/messages", authed(jwt, auth)...)
	mg.POST("", api.send)
	mg.GET("/unread", api.unreadCount)
	mg.GET("/contacts", api.contacts)
	mg.GET("/conversations", api.conversations)
	mg.GET("/conversations/:projectID/:counterpartID", api.conversation)
	mg.PUT("/conversations/:projectID/:counterpartID/read", api.markConversationRead)
	mg.PUT("/:id/read", api.markRead)
}

func (api *messageApi) send(ctx echo.Context) error {
	var data message.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	m, err := api.svc.Send(ctx.Request().Context(), actor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "sending message")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *messageApi) conversations(ctx echo.Context) error {
	convs, err := api.svc.Conversations(ctx.Request().Context(), actor(ctx))
	if err != nil {
		return errors.Wrap(err, "listing conversations")
	}
	return ctx.JSON(http.StatusOK, emptyIfNil(convs))
}

func (api *messageApi) conversation(ctx echo.Context) error {
	var page core.Pagination
	if err := ctx.Bind(&page); err != nil {
		return err
	}
	page.Clean()

	msgs, total, err := api.svc.Conversation(ctx.Request().Context(), actor(ctx), ctx.Param("projectID"), ctx.Param("counterpartID"), page)
	if err != nil {
		return errors.Wrap(err, "getting conversation")
	}
	return listResponse(ctx, emptyIfNil(msgs), page, total)
}

func (api *messageApi) markRead(ctx echo.Context) error {
	m, err := api.svc.MarkRead(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking message as read")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *messageApi) markConversationRead(ctx echo.Context) error {
	n, err := api.svc.MarkConversationRead(ctx.Request().Context(), actor(ctx), ctx.Param("projectID"), ctx.Param("counterpartID"))
	if err != nil {
		return errors.Wrap(err, "marking conversation as read")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

func (api *messageApi) unreadCount(ctx echo.Context) error {
	n, err := api.svc.UnreadCount(ctx.Request().Context(), actor(ctx))
	if err != nil {
		return errors.Wrap(err, "counting unread messages")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: n})
}

func (api *messageApi) contacts(ctx echo.Context) error {
	users, err := api.svc.Contacts(ctx.Request().Context(), actor(ctx))
	if err != nil {
		return errors.Wrap(err, "listing contacts")
	}
	return ctx.JSON(http.StatusOK, emptyIfNil(users))
}

type CountResponse struct {
	Count int `json:"count"`
}
