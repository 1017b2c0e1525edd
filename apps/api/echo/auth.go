package echoapi

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/user"
)

const (
	contextTokenKey = "userToken"
	contextUserKey  = "user"
	tokenAudience   = "PM-AJAY Portal"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt   int64         `json:"oriat,omitempty"`
	Name           string        `json:"name,omitempty"`
	Email          string        `json:"email,omitempty"`
	Role           string        `json:"role,omitempty"`
	Jurisdiction   core.Location `json:"jurisdiction"`
	Agency         string        `json:"agency,omitempty"`
	DashboardRoute string        `json:"dashboard_route,omitempty"`
}

// authenticator issues and checks the JWTs of the API.
type authenticator struct {
	issuer         string
	signingKey     []byte
	expiration     time.Duration
	refreshTimeout time.Duration
	users          user.ServiceInterface
}

func newAuthenticator(conf *core.Config, users user.ServiceInterface) *authenticator {
	return &authenticator{
		issuer:         conf.AppName,
		signingKey:     []byte(conf.SecretKey),
		expiration:     conf.Server.JWTExpirationDelta,
		refreshTimeout: conf.Server.JWTRefreshExpirationDelta,
		users:          users,
	}
}

// middleware returns the JWT auth middleware, reading the token from the Authorization header
// or, when given, from another lookup (eg: "query:token" for websockets).
func (a *authenticator) middleware(tokenLookup ...string) echo.MiddlewareFunc {
	conf := middleware.JWTConfig{
		SigningKey:    a.signingKey,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
	if len(tokenLookup) > 0 {
		conf.TokenLookup = tokenLookup[0]
	}
	return middleware.JWTWithConfig(conf)
}

func (a *authenticator) userClaims(usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    a.issuer,
			Subject:   usr.ID,
			Audience:  tokenAudience,
			ExpiresAt: now.Add(a.expiration).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt:   oriat,
		Name:           usr.Name,
		Email:          usr.Email,
		Role:           usr.Role,
		Jurisdiction:   usr.Jurisdiction,
		Agency:         usr.Agency,
		DashboardRoute: usr.DashboardRoute(),
	}
}

// generateToken generates a signed JWT token string representing the user Claims.
func (a *authenticator) generateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(a.signingKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// GenerateToken returns a signed JWT for usr.
func (s *Server) GenerateToken(usr user.User) (string, error) {
	return s.auth.generateToken(s.auth.userClaims(usr))
}

func (a *authenticator) authenticate(ctx context.Context, email, pwd string) (user.User, error) {
	usr, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, errAuthenticationFailed
		}
		return user.User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return user.User{}, errAuthenticationFailed
	}
	if !usr.Active() {
		return user.User{}, errAccountDeactivated
	}
	usr, err = a.users.SetLastLogin(ctx, usr)
	if err != nil {
		return user.User{}, errors.Wrap(err, "setting lastLogin")
	}
	return usr, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// contextUser loads the authenticated user once per request.
// Deleted or deactivated accounts lose access even if their token has not expired.
func (a *authenticator) contextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, err
	}
	usr, err := a.users.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	if !usr.Active() {
		return user.User{}, errAccountDeactivated
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

func (a *authenticator) refreshToken(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", err
	}
	usr, err := a.contextUser(ctx)
	if err != nil {
		return "", err
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.refreshTimeout)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	token, err := a.generateToken(a.userClaims(usr, claims.OrigIssuedAt))
	return token, errors.Wrap(err, "generating token")
}
