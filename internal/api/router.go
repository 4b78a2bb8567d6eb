package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/whisker-watch-go/internal/config"
	"github.com/jengzang/whisker-watch-go/internal/handler"
	"github.com/jengzang/whisker-watch-go/internal/metrics"
	"github.com/jengzang/whisker-watch-go/internal/middleware"
	"github.com/jengzang/whisker-watch-go/internal/service"
)

// Services are the dependencies the routes are served from
type Services struct {
	Incidents *service.IncidentService
	Maps      *service.MapService
}

// SetupRouter builds the HTTP router. The returned func stops its background
// workers and is called on shutdown.
func SetupRouter(cfg *config.Config, svc Services, log *slog.Logger) (*gin.Engine, func()) {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(log))

	// CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"message":  "Whisker Watch map API is running",
			"sessions": svc.Maps.Count(),
		})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	incidentHandler := handler.NewIncidentHandler(svc.Incidents)
	mapHandler := handler.NewMapHandler(svc.Maps)
	events := middleware.NewRateLimiter(cfg.EventRateLimit, time.Second)

	api := r.Group("/api/v1")
	{
		incidents := api.Group("/incidents")
		{
			incidents.GET("", incidentHandler.ListIncidents)
			incidents.POST("", incidentHandler.CreateIncident)
			incidents.GET("/:id", incidentHandler.GetIncident)
		}

		sessions := api.Group("/sessions")
		{
			sessions.POST("", mapHandler.CreateSession)
			sessions.DELETE("/:id", mapHandler.DeleteSession)
			sessions.GET("/:id/frame.png", mapHandler.GetFrame)
			sessions.GET("/:id/viewport", mapHandler.GetViewport)
			sessions.POST("/:id/events", middleware.RateLimit(events, middleware.ByParam("id")), mapHandler.PostEvents)
			sessions.POST("/:id/fly-to", mapHandler.FlyTo)
			sessions.POST("/:id/fit-all", mapHandler.FitAll)
			sessions.PUT("/:id/layers", mapHandler.SetLayers)
		}
	}

	return r, events.Stop
}
