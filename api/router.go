// Package api is the HTTP and websocket surface of the shelf service.
package api

import (
	"net/http"
	"time"

	"ShelfLayoutServer/analysis"
	"ShelfLayoutServer/monitor"

	"github.com/gin-gonic/gin"
)

type Options struct {
	Version     string
	MaxUpload   int64
	IdleTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{Version: "dev", MaxUpload: 20 * 1024 * 1024, IdleTimeout: time.Minute}
}

type Handler struct {
	svc     *analysis.Service
	metrics *monitor.Metrics
	opts    Options
}

func NewHandler(svc *analysis.Service, metrics *monitor.Metrics, opts Options) *Handler {
	return &Handler{svc: svc, metrics: metrics, opts: opts}
}

// NewRouter builds the gin engine. mode is a gin mode (release, debug, test).
func NewRouter(h *Handler, mode string) *gin.Engine {
	gin.SetMode(mode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(Logger())
	r.MaxMultipartMemory = h.opts.MaxUpload

	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.opts.Version})
	})
	if reg := h.metrics.Registry(); reg != nil {
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	api := r.Group("/api")
	{
		api.POST("/analyze", h.Analyze)
		api.POST("/detect", h.Detect)
		api.POST("/ask", h.Ask)
	}
	r.GET("/ws/analyze", h.AnalyzeStream)
	return r
}
