package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/partimer-be/internal/api/handler"
)

// HealthChecker reports whether a backing service is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// SetupRouter configures and returns the Gin router with all routes.
// db may be nil, in which case /health only reports the process as up.
func SetupRouter(deps *handler.Dependencies, serviceName string, db HealthChecker) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
			defer cancel()
			if err := db.HealthCheck(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": serviceName,
					"error":   err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": serviceName,
		})
	})

	matchingHandler := handler.NewMatchingHandler(deps)
	routeHandler := handler.NewRouteHandler(deps)

	v1 := r.Group("/api/v1")
	{
		matching := v1.Group("/matching")
		{
			// POST /api/v1/matching/jobs/:job_id/trigger - Run matching for a job
			matching.POST("/jobs/:job_id/trigger", matchingHandler.TriggerMatching)

			// POST /api/v1/matching/expire - Expire offers past their deadline
			matching.POST("/expire", matchingHandler.ExpireMatches)
		}

		jobs := v1.Group("/jobs")
		{
			jobs.POST("/:job_id/publish", matchingHandler.PublishJob)
			jobs.GET("/:job_id/matches", matchingHandler.ListJobMatches)
		}

		workers := v1.Group("/workers")
		{
			workers.GET("/:worker_id/offers", matchingHandler.ListWorkerOffers)
			workers.POST("/:worker_id/offers/:match_id/respond", matchingHandler.RespondToOffer)
		}

		v1.GET("/routes/:route_id/matches", routeHandler.RouteMatches)
	}

	return r
}
