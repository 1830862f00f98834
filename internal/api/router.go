package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"crew-tracker/internal/tracker"
)

// NewRouter wires the dashboard API on top of a running tracker.
func NewRouter(tr *tracker.Tracker, lg *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(lg), cors())

	h := &Handler{tracker: tr, logger: lg.With("component", "api")}

	r.GET("/healthz", h.Health)

	api := r.Group("/api")
	api.GET("/staff", h.Staff)
	api.GET("/map", h.Map)
	api.POST("/refresh", h.Refresh)
	api.GET("/connection", h.GetConnection)
	api.PUT("/connection", h.PutConnection)
	api.DELETE("/connection", h.DeleteConnection)
	api.GET("/debug", h.Debug)
	return r
}

func requestLogger(lg *slog.Logger) gin.HandlerFunc {
	lg = lg.With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		lg.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// cors lets the browser dashboard call the API from another origin.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
