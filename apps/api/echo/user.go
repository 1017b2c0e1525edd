package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/access"
	"github.com/trezcool/pmajay/core/user"
)

const contextObjectKey = "object"

var errUsrNotFoundInCtx = errors.New("user object not found in echo.Context")

type userApi struct {
	svc        user.ServiceInterface
	auth       *authenticator
	validate   *validator.Validate
	translator ut.Translator
	logger     core.Logger
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, deps ServerDeps) {
	api := userApi{
		svc:        deps.UserSvc,
		auth:       auth,
		validate:   deps.Validate,
		translator: deps.Translator,
		logger:     deps.Logger,
	}

	ug := g.Group("/users")

	// un-authed endpoints
	// TODO: rate limit `/login`, `/password-reset` & `/password-reset-confirm`
	ug.POST("/login", api.login)
	ug.POST("/password-reset", api.resetPassword)
	ug.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	ag := ug.Group("", authed(jwt, auth)...)
	ag.POST("/token-refresh", api.refreshToken)
	ag.GET("/me", api.me)
	ag.GET("/roles", api.queryRoles)
	ag.POST("/register", api.create, permissionMiddleware(user.PermManageUsers))
	ag.GET("", api.query, permissionMiddleware(user.PermManageUsers))

	// detail endpoints
	dg := ag.Group("/:id", ctxUserOrManagerMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy, permissionMiddleware(user.PermManageUsers))

	g.GET("/roles", api.queryRoles, authed(jwt, auth)...)
}

// Handlers

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.auth.authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return err
	}
	token, err := api.auth.generateToken(api.auth.userClaims(usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: usr})
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); err != nil && !core.IsNotFound(err) {
		// do not return errors to attackers
		api.logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *userApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := api.auth.refreshToken(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: actor(ctx)})
}

func (api *userApi) me(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, actor(ctx))
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles())
}

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	// managers only provision accounts within their own jurisdiction
	if !access.ScopeOf(actor(ctx)).Covers(data.Jurisdiction, data.Agency) {
		return core.NewValidationError(nil, core.FieldError{Field: "jurisdiction", Error: "outside your jurisdiction"})
	}

	usr, err := api.svc.Provision(ctx.Request().Context(), actor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	ordering, page, err := listQuery(ctx, filter)
	if err != nil {
		return err
	}
	filter.Clean()

	if !scopeUserFilter(actor(ctx), filter) {
		return listResponse(ctx, []user.User{}, page, 0)
	}

	users, total, err := api.svc.Query(ctx.Request().Context(), *filter, ordering, page)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	return listResponse(ctx, emptyIfNil(users), page, total)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, ok := ctx.Get(contextObjectKey).(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) update(ctx echo.Context) error {
	usr, ok := ctx.Get(contextObjectKey).(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	var data user.UpdateUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	if err := data.Validate(usr, api.validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Update(ctx.Request().Context(), actor(ctx), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) destroy(ctx echo.Context) error {
	usr, ok := ctx.Get(contextObjectKey).(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), actor(ctx), usr.ID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ctxUserOrManagerMiddleware loads the user `:id` for themselves, or for a user manager whose jurisdiction covers them.
func ctxUserOrManagerMiddleware(svc user.ServiceInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr := actor(ctx)
			isSelf := ctx.Param("id") == ctxUsr.ID
			if !isSelf && !ctxUsr.HasPermission(user.PermManageUsers) {
				return core.NewNotFoundError("user")
			}

			usr, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "finding user by ID")
			}
			if !isSelf && !access.ScopeOf(ctxUsr).Covers(usr.Jurisdiction, usr.Agency) {
				return core.NewNotFoundError("user")
			}
			ctx.Set(contextObjectKey, usr)
			return next(ctx)
		}
	}
}

// scopeUserFilter narrows filter to the jurisdiction of usr.
// It returns false when the requested filter lies outside of it.
func scopeUserFilter(usr user.User, filter *user.QueryFilter) bool {
	sf := access.ScopeOf(usr).Filter()
	if sf.Deny {
		return false
	}
	narrow := func(requested *string, scoped string) bool {
		if scoped == "" {
			return true
		}
		if *requested != "" && *requested != scoped {
			return false
		}
		*requested = scoped
		return true
	}
	return narrow(&filter.State, sf.State) &&
		narrow(&filter.District, sf.District) &&
		narrow(&filter.Village, sf.Village) &&
		narrow(&filter.Agency, sf.Agency)
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
