package bootstrap

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CLewisMessina/wolfalert/internal/api"
	"github.com/CLewisMessina/wolfalert/internal/config"
	"github.com/CLewisMessina/wolfalert/internal/database"
	"github.com/CLewisMessina/wolfalert/internal/httpserver"
	"github.com/CLewisMessina/wolfalert/internal/logger"
)

const healthPingTimeout = 2 * time.Second

// SetupHTTPServer creates the HTTP server with health checks and API routes.
func SetupHTTPServer(cfg *config.Config, db *database.Connection, redisPing func() error, deps *Dependencies, log logger.Logger) *httpserver.Server {
	return httpserver.NewServer(&httpserver.Config{
		Port:           cfg.Service.Port,
		Debug:          cfg.Service.Debug,
		ServiceName:    cfg.Service.Name,
		ServiceVersion: version,
	}, log, func(router *gin.Engine) {
		checks := map[string]httpserver.HealthChecker{
			"database": httpserver.DatabaseHealthChecker(func() error {
				ctx, cancel := context.WithTimeout(context.Background(), healthPingTimeout)
				defer cancel()
				return db.Ping(ctx)
			}),
		}
		if redisPing != nil {
			checks["redis"] = httpserver.RedisHealthChecker(redisPing)
		}
		httpserver.RegisterHealthRoutes(router, cfg.Service.Name, version, checks)

		api.RegisterRoutes(router, api.Handlers{
			Dashboard: api.NewDashboardHandler(deps.Assembler, deps.Scorer.ModelVersion(), log),
			Profiles:  api.NewProfileHandler(deps.Profiles, log),
			Sources:   api.NewSourceHandler(deps.Sources, cfg.Fetcher.DefaultInterval, log),
		})
	})
}
