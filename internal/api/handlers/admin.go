package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/services"
)

type AdminHandler struct {
	engine    *services.TranslationEngine
	retention *services.RetentionWorker
}

func NewAdminHandler(engine *services.TranslationEngine, retention *services.RetentionWorker) *AdminHandler {
	return &AdminHandler{
		engine:    engine,
		retention: retention,
	}
}

// GetStats returns translation counters and store aggregates
// GET /api/admin/translations/stats
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.engine.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{
		"stats":   stats,
		"backend": h.engine.BackendName(),
	}
	if h.retention != nil {
		resp["retention"] = h.retention.GetStatus()
	}
	c.JSON(http.StatusOK, resp)
}

// Cleanup runs the retention sweep now
// POST /api/admin/translations/cleanup?days=90&min_usage=5
func (h *AdminHandler) Cleanup(c *gin.Context) {
	days, err := optionalPositiveInt(c.Query("days"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
		return
	}
	minUsage, err := optionalPositiveInt(c.Query("min_usage"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "min_usage must be a positive integer"})
		return
	}

	deleted, err := h.engine.CleanupOldTranslations(c.Request.Context(), days, minUsage)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// ResetStats zeroes the in-memory counters
// POST /api/admin/translations/stats/reset
func (h *AdminHandler) ResetStats(c *gin.Context) {
	h.engine.ResetStats()
	c.JSON(http.StatusOK, gin.H{"message": "stats reset"})
}

// optionalPositiveInt parses s, treating empty as zero (use defaults).
func optionalPositiveInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}
