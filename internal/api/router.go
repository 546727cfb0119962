package api

import (
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/securetalk/internal/server"
	"github.com/Tyrowin/securetalk/internal/session"
	"github.com/Tyrowin/securetalk/internal/store"
)

// NewRouter builds the Echo instance with all routes registered.
func NewRouter(st *store.Store, sessions *session.Store, hub *server.Hub, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = NewValidator()

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())

	// Each router carries its own metrics registry so building several
	// routers in one process (tests) never trips duplicate registration.
	metrics := prometheus.NewRegistry()
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "securetalk",
		Registerer: metrics,
	}))
	registerPresenceGauge(metrics, hub)

	authHandler := NewAuthHandler(st, sessions, logger)
	chatHandler := NewChatHandler(st, hub, logger)
	requireAuth := Auth(sessions)

	e.POST("/api/register", authHandler.Register)
	e.POST("/api/login", authHandler.Login)
	e.POST("/api/logout", authHandler.Logout, requireAuth)
	e.GET("/api/users", chatHandler.Users, requireAuth)
	e.GET("/api/history", chatHandler.History, requireAuth)

	// WebSocket connections authenticate in-band with an auth frame, so the
	// upgrade endpoint itself carries no middleware.
	e.GET("/ws", func(c echo.Context) error {
		hub.HandleWebSocket(c.Response(), c.Request())
		return nil
	})

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "SecureTalk server is running")
	})
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: metrics,
	}))

	return e
}

// registerPresenceGauge exposes the number of currently bound usernames.
func registerPresenceGauge(metrics *prometheus.Registry, hub *server.Hub) {
	metrics.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "securetalk",
			Name:      "online_users",
			Help:      "Number of usernames with a live WebSocket connection.",
		},
		func() float64 {
			return float64(len(hub.Registry().OnlineUsernames()))
		},
	))
}
