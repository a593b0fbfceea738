package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/partimer-be/internal/detour"
)

// RouteMatches handles GET /api/v1/routes/:route_id/matches
func (h *RouteHandler) RouteMatches(c *gin.Context) {
	routeID, ok := parseID(c, "route_id")
	if !ok {
		return
	}

	matches, err := h.routes.MatchesForRoute(c.Request.Context(), routeID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to match orders")
		return
	}
	if matches == nil {
		matches = []detour.Match{}
	}

	c.JSON(http.StatusOK, matches)
}
