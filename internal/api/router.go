package api

import (
	"github.com/gin-gonic/gin"
)

// Handlers groups the handlers the router registers.
type Handlers struct {
	Dashboard *DashboardHandler
	Profiles  *ProfileHandler
	Sources   *SourceHandler
}

// RegisterRoutes wires the API v1 route groups onto the router.
func RegisterRoutes(router *gin.Engine, h Handlers) {
	v1 := router.Group("/api/v1")

	v1.GET("/dashboard/:profile_id", h.Dashboard.Get)

	profiles := v1.Group("/profiles")
	profiles.POST("", h.Profiles.Create)
	profiles.GET("", h.Profiles.List)
	profiles.GET("/:id", h.Profiles.GetByID)
	profiles.DELETE("/:id", h.Profiles.Delete)

	sources := v1.Group("/sources")
	sources.POST("", h.Sources.Create)
	sources.GET("", h.Sources.List)
	sources.GET("/:id", h.Sources.GetByID)
	sources.PATCH("/:id/active", h.Sources.SetActive)
}
