package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/user/tmdb-ratelimit/internal/limiter"
)

// Handler serves the rate limiter's introspection endpoints.
type Handler struct {
	Selection *limiter.Selection
}

// NewHandler creates a dashboard handler for the selected limiter.
func NewHandler(sel *limiter.Selection) *Handler {
	return &Handler{Selection: sel}
}

// Register mounts the handlers under /ratelimit.
func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/ratelimit")
	g.GET("/stats", h.GetStats)
	g.GET("/check", h.Check)
	g.POST("/test", h.TestRequest)
}

// GetStats returns the limiter snapshot and which variant is active.
func (h *Handler) GetStats(c *gin.Context) {
	stats := h.Selection.Limiter.GetStats(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"limiter":   h.Selection.Info(),
		"stats":     stats,
		"remaining": stats.Remaining(),
	})
}

// Check reports whether a request of the given priority would be admitted
// right now. Nothing is consumed.
func (h *Handler) Check(c *gin.Context) {
	priority := limiter.ParsePriority(c.Query("priority"))

	allowed, reason := h.Selection.Limiter.CanMakeRequest(c.Request.Context(), priority)

	c.JSON(http.StatusOK, gin.H{
		"allowed":  allowed,
		"reason":   reason,
		"priority": priority,
		"weight":   limiter.Weight(priority),
	})
}

// TestRequest admits one request through the limiter for demo purposes.
func (h *Handler) TestRequest(c *gin.Context) {
	ctx := c.Request.Context()
	priority := limiter.ParsePriority(c.Query("priority"))

	allowed := h.Selection.Limiter.MakeRequest(ctx, priority)
	stats := h.Selection.Limiter.GetStats(ctx)

	status := http.StatusOK
	if !allowed {
		status = http.StatusTooManyRequests
	}
	c.JSON(status, gin.H{
		"allowed":   allowed,
		"priority":  priority,
		"remaining": stats.Remaining(),
		"stats":     stats,
	})
}
