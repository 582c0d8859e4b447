// Package api exposes faces, commands, statuses and the detection loop over
// HTTP and WebSocket.
package api

import (
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/facecommand/internal/api/handlers"
	"github.com/your-org/facecommand/internal/api/ws"
	"github.com/your-org/facecommand/internal/auth"
	"github.com/your-org/facecommand/internal/command"
	"github.com/your-org/facecommand/internal/detection"
	"github.com/your-org/facecommand/internal/faces"
)

type RouterConfig struct {
	APIKey    string
	Logger    *slog.Logger
	Faces     *faces.Service
	Commands  *command.Engine
	Detection *detection.Service
	// Snapshots is nil when MinIO is not configured.
	Snapshots handlers.SnapshotReader
	Hub       *ws.Hub
	// Checks are run by /readyz.
	Checks map[string]handlers.Check
	// DefaultFrequency is the loop interval when a start request sets none.
	DefaultFrequency time.Duration
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware(logger))
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Checks)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Faces
	faceH := handlers.NewFaceHandler(cfg.Faces)
	v1.POST("/faces", faceH.Create)
	v1.POST("/faces/capture", faceH.Capture)
	v1.GET("/faces", faceH.List)
	v1.GET("/faces/:id", faceH.Get)
	v1.GET("/faces/:id/image", faceH.Image)
	v1.PUT("/faces/:id", faceH.Update)
	v1.DELETE("/faces/:id", faceH.Delete)

	// Commands
	cmdH := handlers.NewCommandHandler(cfg.Commands, cfg.Detection.GetLastStatus)
	v1.GET("/command-types", cmdH.Types)
	v1.POST("/commands", cmdH.Create)
	v1.GET("/commands", cmdH.List)
	v1.GET("/commands/:id", cmdH.Get)
	v1.PUT("/commands/:id", cmdH.Update)
	v1.DELETE("/commands/:id", cmdH.Delete)
	v1.POST("/commands/:id/run", cmdH.Run)

	// Statuses
	statusH := handlers.NewStatusHandler(cfg.Detection, cfg.Snapshots)
	v1.GET("/statuses", statusH.List)
	v1.GET("/statuses/last", statusH.Last)
	v1.GET("/statuses/:id", statusH.Get)
	v1.GET("/statuses/:id/snapshot", statusH.Snapshot)

	// Detection loop
	detH := handlers.NewDetectionHandler(cfg.Detection, cfg.Faces, cfg.DefaultFrequency)
	v1.GET("/detection", detH.State)
	v1.POST("/detection/start", detH.Start)
	v1.POST("/detection/stop", detH.Stop)
	v1.POST("/detection/detect", detH.Detect)

	return r
}
