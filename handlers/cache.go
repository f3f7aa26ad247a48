package handlers

import (
	"net/http"
	"sort"

	"grocery-sync/services"

	"github.com/gin-gonic/gin"
)

type CacheHandler struct {
	processor *services.LocationProcessor
}

func NewCacheHandler(processor *services.LocationProcessor) *CacheHandler {
	return &CacheHandler{
		processor: processor,
	}
}

// GetCachedLocations GET /v1/realtime/locations
// Latest socket-reported location of every user, newest first.
func (h *CacheHandler) GetCachedLocations(c *gin.Context) {
	points := h.processor.GetAllCachedLocations()
	sort.Slice(points, func(i, j int) bool {
		return points[i].ReceivedAt.After(points[j].ReceivedAt)
	})

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"msg":       "Locations found!",
		"locations": points,
		"count":     len(points),
	})
}

// GetCacheStats GET /v1/realtime/stats
func (h *CacheHandler) GetCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   h.processor.GetCacheStats(),
	})
}
