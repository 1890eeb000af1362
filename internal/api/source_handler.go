package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CLewisMessina/wolfalert/internal/domain"
	"github.com/CLewisMessina/wolfalert/internal/logger"
)

// SourceStore is the source repository surface the handlers use.
type SourceStore interface {
	Create(ctx context.Context, source *domain.Source) error
	GetByID(ctx context.Context, id string) (*domain.Source, error)
	List(ctx context.Context) ([]*domain.Source, error)
	SetActive(ctx context.Context, id string, active bool) error
}

type SourceHandler struct {
	sources         SourceStore
	defaultInterval time.Duration
	logger          logger.Logger
}

// NewSourceHandler creates the source admin handler. defaultInterval is the
// fetch cadence applied when a create request omits one.
func NewSourceHandler(sources SourceStore, defaultInterval time.Duration, log logger.Logger) *SourceHandler {
	if defaultInterval <= 0 {
		defaultInterval = 4 * time.Hour
	}
	return &SourceHandler{
		sources:         sources,
		defaultInterval: defaultInterval,
		logger:          log,
	}
}

type createSourceRequest struct {
	Name          string  `json:"name" binding:"required"`
	FeedURL       string  `json:"feed_url" binding:"required,url"`
	Reliability   string  `json:"reliability"`
	Weight        float64 `json:"weight"`
	FetchInterval string  `json:"fetch_interval"`
}

func (h *SourceHandler) Create(c *gin.Context) {
	var req createSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("Invalid request body",
			logger.String("error", err.Error()),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	source := &domain.Source{
		Name:        req.Name,
		FeedURL:     req.FeedURL,
		Reliability: domain.Reliability(req.Reliability),
		Weight:      req.Weight,
		Active:      true,
	}
	if source.Reliability == "" {
		source.Reliability = domain.ReliabilityMedium
	}
	if !source.Reliability.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid reliability tier"})
		return
	}

	source.FetchInterval = h.defaultInterval
	if req.FetchInterval != "" {
		interval, err := time.ParseDuration(req.FetchInterval)
		if err != nil || interval <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid fetch interval"})
			return
		}
		source.FetchInterval = interval
	}

	if err := h.sources.Create(c.Request.Context(), source); err != nil {
		h.logger.Error("Failed to create source",
			logger.String("source_name", source.Name),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create source"})
		return
	}

	h.logger.Info("Source created",
		logger.String("source_id", source.ID),
		logger.String("source_name", source.Name),
	)

	c.JSON(http.StatusCreated, source)
}

func (h *SourceHandler) GetByID(c *gin.Context) {
	id := c.Param("id")

	source, err := h.sources.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
			return
		}
		h.logger.Error("Failed to get source",
			logger.String("source_id", id),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get source"})
		return
	}

	c.JSON(http.StatusOK, source)
}

func (h *SourceHandler) List(c *gin.Context) {
	sources, err := h.sources.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list sources", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sources"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": sources,
		"count":   len(sources),
	})
}

type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetActive pauses or resumes fetching for a source. Degraded sources stay
// in rotation until an operator pauses them here.
func (h *SourceHandler) SetActive(c *gin.Context) {
	id := c.Param("id")

	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if err := h.sources.SetActive(c.Request.Context(), id, *req.Active); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
			return
		}
		h.logger.Error("Failed to update source",
			logger.String("source_id", id),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update source"})
		return
	}

	h.logger.Info("Source activity changed",
		logger.String("source_id", id),
		logger.Bool("active", *req.Active),
	)

	c.Status(http.StatusNoContent)
}
