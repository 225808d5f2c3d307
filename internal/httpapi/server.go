// Package httpapi is the echo transport for the session engine.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/logging"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = "1M"

// Accounts is the part of the user directory the API needs beyond what the
// engine already uses.
type Accounts interface {
	Register(ctx context.Context, username, email, password string) (goSession.UserRecord, error)
	UserByID(ctx context.Context, userID string) (goSession.UserRecord, error)
	VerifyCredentials(ctx context.Context, username, password string) (goSession.UserRecord, error)
	UpdateProfile(ctx context.Context, userID string, upd goSession.ProfileUpdate) (goSession.UserRecord, error)
	Delete(ctx context.Context, userID string) error
}

type Deps struct {
	Engine   *goSession.Engine
	Accounts Accounts
	Logger   *slog.Logger
	// Metrics is mounted at GET /metrics when set.
	Metrics http.Handler
}

type Handler struct {
	engine   *goSession.Engine
	accounts Accounts
}

// New builds the echo instance with every route registered.
func New(d Deps) *echo.Echo {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.RequestID())
	e.Use(logging.RequestLogger(logger))
	e.Use(echomw.Recover())
	e.Use(echomw.BodyLimit(MaxBodyBytes))

	Register(e, d)
	return e
}

func Register(e *echo.Echo, d Deps) {
	h := &Handler{engine: d.Engine, accounts: d.Accounts}
	guard := echo.WrapMiddleware(middleware.Guard(d.Engine))

	e.GET("/health/live", h.Live)
	e.GET("/health/ready", h.Ready)
	e.GET("/publickey", h.PublicKey)
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics))
	}

	e.POST("/session", h.Login, RequireJSON)
	e.POST("/login", h.Login, RequireJSON)
	e.POST("/session/refresh", h.Refresh, RequireJSON)
	e.POST("/refresh", h.Refresh, RequireJSON)
	e.DELETE("/session", h.Logout, RequireJSON)
	e.DELETE("/session/all", h.LogoutAll, guard)

	e.GET("/checkjwt", h.CheckJWT, guard)

	e.POST("/user", h.Register, RequireJSON)
	e.POST("/register", h.Register, RequireJSON)
	e.GET("/user/:id", h.UserInfo, guard)
	e.PATCH("/user/:id", h.UpdateProfile, guard, RequireJSON)
	e.DELETE("/user/:id", h.DeleteAccount, guard, RequireJSON)
	e.POST("/user/password", h.RequestReset, RequireJSON)
	e.PUT("/user/password", h.ConfirmReset, RequireJSON)
}
