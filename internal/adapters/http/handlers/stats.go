package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quotes-api/internal/adapters/http/dto"
	"github.com/jsamuelsen/quotes-api/internal/app"
)

// StatsHandler serves collection-wide statistics.
type StatsHandler struct {
	service *app.QuoteService
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(service *app.QuoteService) *StatsHandler {
	return &StatsHandler{service: service}
}

// GetStats handles GET /stats
// Aggregates the whole collection on every call.
//
// @Summary Collection statistics
// @Tags stats
// @Produce json
// @Success 200 {object} dto.StatsResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /stats [get]
func (h *StatsHandler) GetStats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromStats(stats))
}

// RegisterStatsRoutes registers the stats route on the given router group.
func (h *StatsHandler) RegisterStatsRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.GetStats)
}

// RootHandler describes the service at GET /.
type RootHandler struct {
	info dto.ServiceInfoResponse
}

// NewRootHandler creates a root handler advertising name and version.
func NewRootHandler(name, version string) *RootHandler {
	return &RootHandler{
		info: dto.ServiceInfoResponse{
			Message: name,
			Version: version,
			Endpoints: map[string]string{
				"quotes": "/quotes",
				"search": "/quotes/search",
				"tags":   "/quotes/tags",
				"random": "/quotes/random",
				"stats":  "/stats",
			},
		},
	}
}

// ServiceInfo handles GET /
func (h *RootHandler) ServiceInfo(c *gin.Context) {
	c.JSON(http.StatusOK, h.info)
}
