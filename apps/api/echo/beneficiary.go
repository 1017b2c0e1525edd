package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/pmajay/core/beneficiary"
)

type beneficiaryApi struct {
	svc      *beneficiary.Service
	validate *validator.Validate
}

func registerBeneficiaryAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, deps ServerDeps) {
	api := beneficiaryApi{svc: deps.BeneficiarySvc, validate: deps.Validate}

	bg := g.Group("/beneficiaries", authed(jwt, auth)...)
	bg.GET("", api.query)
	bg.POST("", api.create)
	bg.GET("/:id", api.retrieve)
	bg.PUT("/:id", api.update)
	bg.DELETE("/:id", api.destroy)
	bg.POST("/:id/verify", api.verify)
	bg.POST("/:id/benefits", api.addBenefit)
}

func (api *beneficiaryApi) create(ctx echo.Context) error {
	var data beneficiary.NewBeneficiary
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBeneficiary")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	b, err := api.svc.Create(ctx.Request().Context(), actor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating beneficiary")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *beneficiaryApi) query(ctx echo.Context) error {
	filter := new(beneficiary.QueryFilter)
	ordering, page, err := listQuery(ctx, filter)
	if err != nil {
		return err
	}
	filter.Clean()

	bs, total, err := api.svc.Query(ctx.Request().Context(), actor(ctx), *filter, ordering, page)
	if err != nil {
		return errors.Wrap(err, "querying beneficiaries")
	}
	return listResponse(ctx, emptyIfNil(bs), page, total)
}

func (api *beneficiaryApi) retrieve(ctx echo.Context) error {
	b, err := api.svc.Get(ctx.Request().Context(), actor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting beneficiary")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *beneficiaryApi) update(ctx echo.Context) error {
	var data beneficiary.UpdateBeneficiary
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateBeneficiary")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	b, err := api.svc.Update(ctx.Request().Context(), actor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating beneficiary")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *beneficiaryApi) verify(ctx echo.Context) error {
	var data beneficiary.Verification
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Verification")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	b, err := api.svc.Verify(ctx.Request().Context(), actor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "verifying beneficiary")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *beneficiaryApi) addBenefit(ctx echo.Context) error {
	var data beneficiary.NewBenefit
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBenefit")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	b, err := api.svc.AddBenefit(ctx.Request().Context(), actor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding benefit")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *beneficiaryApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), actor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting beneficiary")
	}
	return ctx.NoContent(http.StatusNoContent)
}
