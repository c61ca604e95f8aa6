package router

import (
	"github.com/gin-gonic/gin"
	"github.com/mikey/outreach-tracker/internal/http/handler"
)

// SetupRoutes registers every tracking endpoint on the engine
func SetupRoutes(router *gin.Engine, h *handler.TrackingHandler) {
	router.GET("/health", h.Health)

	TrackRouter(router.Group("/track"), h)
	APIRouter(router.Group("/api"), h)
}

// TrackRouter sets up the pixel and click endpoints embedded in outbound mail
func TrackRouter(rg *gin.RouterGroup, h *handler.TrackingHandler) {
	rg.GET("/open/:email", h.Open)
	rg.GET("/click/:email", h.Click)
}

// APIRouter sets up the reporting and manual reply endpoints
func APIRouter(rg *gin.RouterGroup, h *handler.TrackingHandler) {
	rg.POST("/mark-replied", h.MarkReplied)
	rg.POST("/mark-replied-batch", h.MarkRepliedBatch)
	rg.GET("/stats/:email", h.Stats)
	rg.GET("/campaign-stats", h.CampaignStats)
}
