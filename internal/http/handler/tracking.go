package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikey/outreach-tracker/internal/core"
	"go.uber.org/zap"
)

// 1x1 transparent GIF
var trackingPixel, _ = base64.StdEncoding.DecodeString("R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7")

// TrackingService is the tracking behavior the handlers depend on
type TrackingService interface {
	RecordOpen(ctx context.Context, email string) error
	RecordClick(ctx context.Context, email string) error
	MarkReplied(ctx context.Context, email string) (*core.TrackedContact, error)
	MarkRepliedBatch(ctx context.Context, emails []string) ([]core.TrackedContact, error)
	Stats(ctx context.Context, email string) (*core.ContactStats, error)
	CampaignStats(ctx context.Context) (*core.CampaignStats, error)
}

// RedirectChecker decides whether a click may redirect to a URL
type RedirectChecker interface {
	IsAllowed(target string) bool
}

type TrackingHandler struct {
	tracking TrackingService
	redirect RedirectChecker
	logger   *zap.Logger
}

func NewTrackingHandler(tracking TrackingService, redirect RedirectChecker, logger *zap.Logger) *TrackingHandler {
	return &TrackingHandler{
		tracking: tracking,
		redirect: redirect,
		logger:   logger,
	}
}

type markRepliedRequest struct {
	Email string `json:"email" binding:"required"`
}

type markRepliedBatchRequest struct {
	Emails []string `json:"emails" binding:"required"`
}

type contactStatsResponse struct {
	*core.TrackedContact
	Events []core.TrackingEvent `json:"events"`
}

// Health reports liveness
func (h *TrackingHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// Open records an email open and always serves the tracking pixel
func (h *TrackingHandler) Open(c *gin.Context) {
	email := c.Param("email")

	if err := h.tracking.RecordOpen(c.Request.Context(), email); err != nil {
		if errors.Is(err, core.ErrContactNotFound) {
			h.logger.Info("Open for unknown contact", zap.String("email", email))
		} else {
			h.logger.Error("Failed to record open", zap.Error(err), zap.String("email", email))
		}
	}

	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, private")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Data(http.StatusOK, "image/gif", trackingPixel)
}

// Click records a link click and redirects to the target URL
func (h *TrackingHandler) Click(c *gin.Context) {
	email := c.Param("email")
	target := c.Query("url")

	if target == "" {
		c.String(http.StatusBadRequest, "Missing URL parameter")
		return
	}
	if !h.redirect.IsAllowed(target) {
		h.logger.Warn("Rejected click redirect", zap.String("email", email), zap.String("url", target))
		c.String(http.StatusBadRequest, "Invalid request")
		return
	}

	if err := h.tracking.RecordClick(c.Request.Context(), email); err != nil {
		if errors.Is(err, core.ErrContactNotFound) {
			h.logger.Info("Click for unknown contact", zap.String("email", email))
		} else {
			h.logger.Error("Failed to record click", zap.Error(err), zap.String("email", email))
		}
	}

	c.Redirect(http.StatusFound, target)
}

// MarkReplied marks one contact as replied
func (h *TrackingHandler) MarkReplied(c *gin.Context) {
	var req markRepliedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email required"})
		return
	}

	contact, err := h.tracking.MarkReplied(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, core.ErrContactNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
			return
		}
		h.logger.Error("Failed to mark replied", zap.Error(err), zap.String("email", req.Email))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"email":   contact.Email,
		"data":    contact,
	})
}

// MarkRepliedBatch marks every known address in the request as replied
func (h *TrackingHandler) MarkRepliedBatch(c *gin.Context) {
	var req markRepliedBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Emails array required"})
		return
	}

	updated, err := h.tracking.MarkRepliedBatch(c.Request.Context(), req.Emails)
	if err != nil {
		h.logger.Error("Failed to mark replied batch", zap.Error(err), zap.Int("count", len(req.Emails)))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	emails := make([]string, 0, len(updated))
	for _, contact := range updated {
		emails = append(emails, contact.Email)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"updated": len(updated),
		"emails":  emails,
	})
}

// Stats returns one contact with its tracking events
func (h *TrackingHandler) Stats(c *gin.Context) {
	email := c.Param("email")

	stats, err := h.tracking.Stats(c.Request.Context(), email)
	if err != nil {
		if errors.Is(err, core.ErrContactNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
			return
		}
		h.logger.Error("Failed to load contact stats", zap.Error(err), zap.String("email", email))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, contactStatsResponse{
		TrackedContact: stats.Contact,
		Events:         stats.Events,
	})
}

// CampaignStats returns aggregate engagement numbers
func (h *TrackingHandler) CampaignStats(c *gin.Context) {
	stats, err := h.tracking.CampaignStats(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to load campaign stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}
