// Package api contains the Gin HTTP handlers and route registration.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/CLewisMessina/wolfalert/internal/domain"
	"github.com/CLewisMessina/wolfalert/internal/logger"
)

// ProfileStore is the profile repository surface the handlers use.
type ProfileStore interface {
	Create(ctx context.Context, profile *domain.Profile) error
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	List(ctx context.Context) ([]*domain.Profile, error)
	Delete(ctx context.Context, id string) error
}

type ProfileHandler struct {
	profiles ProfileStore
	logger   logger.Logger
}

func NewProfileHandler(profiles ProfileStore, log logger.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		logger:   log,
	}
}

type createProfileRequest struct {
	Name       string `json:"name"`
	Industry   string `json:"industry" binding:"required"`
	Department string `json:"department" binding:"required"`
	RoleLevel  string `json:"role_level" binding:"required"`
	SessionID  string `json:"session_id"`
}

func (h *ProfileHandler) Create(c *gin.Context) {
	var req createProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("Invalid request body",
			logger.String("error", err.Error()),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	profile := &domain.Profile{
		Name:       strings.TrimSpace(req.Name),
		Industry:   req.Industry,
		Department: req.Department,
		RoleLevel:  req.RoleLevel,
		SessionID:  req.SessionID,
		Active:     true,
	}

	if err := h.profiles.Create(c.Request.Context(), profile); err != nil {
		h.logger.Error("Failed to create profile",
			logger.String("industry", profile.Industry),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create profile"})
		return
	}

	h.logger.Info("Profile created",
		logger.String("profile_id", profile.ID),
		logger.String("fingerprint", profile.Fingerprint()),
	)

	c.JSON(http.StatusCreated, profile)
}

func (h *ProfileHandler) GetByID(c *gin.Context) {
	id := c.Param("id")

	profile, err := h.profiles.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
			return
		}
		h.logger.Error("Failed to get profile",
			logger.String("profile_id", id),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get profile"})
		return
	}

	c.JSON(http.StatusOK, profile)
}

func (h *ProfileHandler) List(c *gin.Context) {
	profiles, err := h.profiles.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list profiles", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list profiles"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"profiles": profiles,
		"count":    len(profiles),
	})
}

// Delete removes a profile. Stored insights keyed by the profile's
// fingerprint are kept: other profiles with the same axes still use them.
func (h *ProfileHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	if err := h.profiles.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
			return
		}
		h.logger.Error("Failed to delete profile",
			logger.String("profile_id", id),
			logger.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete profile"})
		return
	}

	h.logger.Info("Profile deleted", logger.String("profile_id", id))

	c.JSON(http.StatusNoContent, nil)
}
