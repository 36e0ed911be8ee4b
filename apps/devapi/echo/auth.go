package echoapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/core/user"
)

var (
	contextTokenKey = "userToken"
	contextUserKey  = "user"

	newRequestID = func() string { return uuid.New().String() } // mockable
)

// authenticator issues and checks the JWTs of the API.
type authenticator struct {
	conf *core.Config
	svc  *user.Service

	mu      sync.Mutex
	revoked map[string]time.Time // refresh token id -> expiry
}

func newAuthenticator(conf *core.Config, svc *user.Service) *authenticator {
	return &authenticator{
		conf:    conf,
		svc:     svc,
		revoked: make(map[string]time.Time),
	}
}

func (a *authenticator) signingKey() []byte {
	return []byte(a.conf.Server.SecretKey)
}

// middleware authenticates requests carrying a valid access token.
func (a *authenticator) middleware() echo.MiddlewareFunc {
	jwtMw := middleware.JWTWithConfig(middleware.JWTConfig{
		SigningKey:    a.signingKey(),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(session.Claims),
	})
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return jwtMw(func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if claims.TokenType != session.TokenAccess {
				return errWrongTokenType
			}
			return next(ctx)
		})
	}
}

// generateToken signs claims.
func (a *authenticator) generateToken(claims *session.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(a.signingKey())
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (a *authenticator) accessToken(usr user.User, origIat int64) (string, error) {
	claims := session.NewClaims(usr, session.TokenAccess, a.conf.AppName, a.conf.Server.JWTExpirationDelta, origIat)
	return a.generateToken(claims)
}

func (a *authenticator) refreshToken(usr user.User) (string, error) {
	claims := session.NewClaims(usr, session.TokenRefresh, a.conf.AppName, a.conf.Server.JWTRefreshExpirationDelta)
	claims.Id = uuid.New().String()
	return a.generateToken(claims)
}

// login checks the credentials of an active user and issues a token pair.
func (a *authenticator) login(uname, pwd string) (session.Tokens, error) {
	usr, err := a.svc.Authenticate(uname, pwd)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return session.Tokens{}, errAuthenticationFailed
		}
		return session.Tokens{}, errors.Wrap(err, "authenticating")
	}
	if !usr.IsActive {
		return session.Tokens{}, errAccountDeactivated
	}
	if usr, err = a.svc.SetLastLogin(usr); err != nil {
		return session.Tokens{}, errors.Wrap(err, "setting lastLogin")
	}

	var tokens session.Tokens
	if tokens.Access, err = a.accessToken(usr, 0); err != nil {
		return session.Tokens{}, err
	}
	if tokens.Refresh, err = a.refreshToken(usr); err != nil {
		return session.Tokens{}, err
	}
	return tokens, nil
}

// parseRefresh verifies a refresh token.
func (a *authenticator) parseRefresh(refresh string) (*session.Claims, error) {
	claims := new(session.Claims)
	token, err := jwt.ParseWithClaims(refresh, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.signingKey(), nil
	})
	if err != nil {
		if vErr, ok := err.(*jwt.ValidationError); ok && vErr.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, errRefreshExpired
		}
		return nil, errInvalidRefresh
	}
	if !token.Valid || claims.TokenType != session.TokenRefresh || a.isRevoked(claims.Id) {
		return nil, errInvalidRefresh
	}
	return claims, nil
}

// refresh issues a new access token for the owner of a refresh token.
func (a *authenticator) refresh(refresh string) (session.Tokens, error) {
	claims, err := a.parseRefresh(refresh)
	if err != nil {
		return session.Tokens{}, err
	}

	usr, err := a.svc.GetByID(claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return session.Tokens{}, errInvalidRefresh
		}
		return session.Tokens{}, errors.Wrap(err, "finding user by ID")
	}
	// check if user is still active
	if !usr.IsActive {
		return session.Tokens{}, errAccountDeactivated
	}

	access, err := a.accessToken(usr, claims.OrigIssuedAt)
	if err != nil {
		return session.Tokens{}, err
	}
	return session.Tokens{Access: access}, nil
}

// revoke invalidates a refresh token. Invalid tokens are ignored.
func (a *authenticator) revoke(refresh string) {
	claims, err := a.parseRefresh(refresh)
	if err != nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	now := time.Now()
	for id, exp := range a.revoked { // forget tokens that expired anyway
		if now.After(exp) {
			delete(a.revoked, id)
		}
	}
	a.revoked[claims.Id] = claims.ExpiresAtTime()
}

func (a *authenticator) isRevoked(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.revoked[id]
	return ok
}

// verify reports whether token is a valid token of this API.
func (a *authenticator) verify(token string) (*session.Claims, bool) {
	claims := new(session.Claims)
	tok, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.signingKey(), nil
	})
	if err != nil || !tok.Valid {
		return nil, false
	}
	if claims.TokenType == session.TokenRefresh && a.isRevoked(claims.Id) {
		return nil, false
	}
	return claims, true
}

func getContextClaims(ctx echo.Context) (session.Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*session.Claims); ok {
			return *claims, nil
		}
	}
	return session.Claims{}, errUnauthorized
}

func getContextUser(ctx echo.Context, svc *user.Service) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, err
	}

	usr, err := svc.GetByID(claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive {
		return user.User{}, errAccountDeactivated
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

// Handlers

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	RefreshRequest struct {
		Refresh string `json:"refresh" validate:"required"`
	}

	VerifyRequest struct {
		Token string `json:"token" validate:"required"`
	}

	TokenResponse struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh,omitempty"`
	}

	VerifyResponse struct {
		Valid     bool   `json:"valid"`
		TokenType string `json:"token_type,omitempty"`
		Subject   string `json:"subject,omitempty"`
	}
)

func (lr *LoginRequest) Validate() error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return core.Validate.Struct(lr)
}

type authApi struct {
	auth *authenticator
}

func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator) {
	api := authApi{auth: auth}

	ag := g.Group("/auth")
	ag.POST("/login", api.login)
	ag.POST("/refresh", api.refresh)
	ag.POST("/logout", api.logout)
	ag.POST("/verify", api.verify)
	ag.GET("/me", api.me, jwt)
}

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	tokens, err := api.auth.login(data.Username, data.Password)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Access: tokens.Access, Refresh: tokens.Refresh})
}

func (api *authApi) refresh(ctx echo.Context) error {
	var data RefreshRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RefreshRequest")
	}
	if err := core.Validate.Struct(data); err != nil {
		return err
	}

	tokens, err := api.auth.refresh(data.Refresh)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Access: tokens.Access})
}

func (api *authApi) logout(ctx echo.Context) error {
	var data RefreshRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RefreshRequest")
	}
	api.auth.revoke(data.Refresh)
	return ctx.NoContent(http.StatusNoContent)
}

func (api *authApi) verify(ctx echo.Context) error {
	var data VerifyRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyRequest")
	}
	claims, ok := api.auth.verify(data.Token)
	if !ok {
		return ctx.JSON(http.StatusOK, VerifyResponse{Valid: false})
	}
	return ctx.JSON(http.StatusOK, VerifyResponse{Valid: true, TokenType: claims.TokenType, Subject: claims.Subject})
}

func (api *authApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.auth.svc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}
