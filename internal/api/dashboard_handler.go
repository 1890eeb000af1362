package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/CLewisMessina/wolfalert/internal/domain"
	"github.com/CLewisMessina/wolfalert/internal/logger"
)

// DashboardAssembler builds the ranked alert view for one profile.
type DashboardAssembler interface {
	Assemble(ctx context.Context, profileID, modelVersion string) (*domain.Dashboard, error)
}

type DashboardHandler struct {
	assembler    DashboardAssembler
	modelVersion string
	logger       logger.Logger
}

func NewDashboardHandler(assembler DashboardAssembler, modelVersion string, log logger.Logger) *DashboardHandler {
	return &DashboardHandler{
		assembler:    assembler,
		modelVersion: modelVersion,
		logger:       log,
	}
}

func (h *DashboardHandler) Get(c *gin.Context) {
	profileID := c.Param("profile_id")

	dashboard, err := h.assembler.Assemble(c.Request.Context(), profileID, h.modelVersion)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
			return
		}
		h.logger.Error("Failed to assemble dashboard",
			logger.String("profile_id", profileID),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to assemble dashboard"})
		return
	}

	c.JSON(http.StatusOK, dashboard)
}
