package api

import (
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/datallboy/gonntp/internal/api/controllers"
	"github.com/datallboy/gonntp/internal/app"
)

func RegisterRoutes(e *echo.Echo, app *app.Context) {

	// Middleware: Request Logger
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			app.Logger.Info("%s %s | %d | %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	nntpCtrl := &controllers.NNTPController{App: app}
	e.GET("/capabilities", nntpCtrl.Capabilities)
	e.GET("/groups/:name", nntpCtrl.Group)
	e.GET("/articles/:id", nntpCtrl.Article)
	e.GET("/articles/:id/raw", nntpCtrl.Raw)

	// Overview archive
	ovCtrl := &controllers.OverviewController{App: app}
	e.GET("/groups/:name/overviews", ovCtrl.List)
	e.GET("/groups/:name/runs", ovCtrl.Runs)
	e.GET("/groups/:name/feed", ovCtrl.Feed)
}
