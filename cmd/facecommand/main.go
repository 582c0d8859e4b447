package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/your-org/facecommand/internal/api"
	"github.com/your-org/facecommand/internal/api/handlers"
	"github.com/your-org/facecommand/internal/api/ws"
	"github.com/your-org/facecommand/internal/command"
	"github.com/your-org/facecommand/internal/command/builtin"
	"github.com/your-org/facecommand/internal/config"
	"github.com/your-org/facecommand/internal/detection"
	"github.com/your-org/facecommand/internal/events"
	"github.com/your-org/facecommand/internal/faces"
	"github.com/your-org/facecommand/internal/observability"
	"github.com/your-org/facecommand/internal/queue"
	"github.com/your-org/facecommand/internal/storage"
	"github.com/your-org/facecommand/internal/vision"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)
	logger := slog.Default()

	slog.Info("starting facecommand", "addr", cfg.Server.Addr(), "db_driver", cfg.Database.Driver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("open database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	checks := map[string]handlers.Check{"database": store.Ping}

	var snapshots *storage.MinIOStore
	if cfg.MinIO.Enabled() {
		snapshots, err = storage.NewMinIOStore(cfg.MinIO)
		if err != nil {
			slog.Error("connect to minio", "error", err)
			os.Exit(1)
		}
		if err := snapshots.EnsureBucket(ctx); err != nil {
			slog.Warn("ensure minio bucket", "error", err)
		}
		checks["minio"] = snapshots.Ping
	}

	var producer *queue.Producer
	if cfg.NATS.Enabled() {
		producer, err = queue.NewProducer(cfg.NATS.URL)
		if err != nil {
			slog.Error("connect to nats", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		if err := producer.EnsureStreams(ctx); err != nil {
			slog.Warn("ensure nats streams", "error", err)
		}
		checks["nats"] = func(context.Context) error { return producer.Ping() }
	}

	// Vision: ONNX models plus an ffmpeg frame grabber.
	visionModels, err := vision.LoadModels(cfg.Vision)
	if err != nil {
		slog.Error("load vision models", "error", err)
		os.Exit(1)
	}
	defer visionModels.Close()

	camera := vision.NewCamera(
		vision.NewFFmpegGrabber(cfg.Capture),
		visionModels.Detector,
		visionModels.Embedder,
		cfg.Vision.ImageWidth,
		cfg.Vision.ImageHeight,
	)

	bus := events.NewBus()

	detOpts := []detection.Option{detection.WithLogger(logger)}
	if snapshots != nil {
		detOpts = append(detOpts, detection.WithSnapshotStore(snapshots))
	}
	detector := detection.NewService(detection.Config{
		MinimumBrightness:    cfg.Detection.MinimumBrightness,
		StopOnError:          cfg.Detection.StopOnError,
		EmitOnIdentityChange: cfg.Detection.EmitOnIdentityChange,
		DefaultThreshold:     cfg.Vision.RecognitionThreshold,
	}, camera, store, bus, detOpts...)

	// Command types and dispatch
	var pub builtin.Publisher
	if producer != nil {
		pub = producer
	}
	registry := command.NewRegistry()
	if err := builtin.Register(registry, cfg.Commands, pub); err != nil {
		slog.Error("register command types", "error", err)
		os.Exit(1)
	}
	engine := command.NewEngine(store, registry, logger)
	if err := engine.Subscribe(bus); err != nil {
		slog.Error("subscribe command engine", "error", err)
		os.Exit(1)
	}

	if producer != nil {
		if err := producer.Subscribe(bus, cfg.Events.Buffer); err != nil {
			slog.Error("subscribe nats producer", "error", err)
			os.Exit(1)
		}
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run(ctx)
	if err := hub.Subscribe(bus, cfg.Events.Buffer); err != nil {
		slog.Error("subscribe websocket hub", "error", err)
		os.Exit(1)
	}

	faceSvc := faces.NewService(store, camera, cfg.Vision.ImageWidth, cfg.Vision.ImageHeight, logger)

	routerCfg := api.RouterConfig{
		APIKey:           cfg.Server.APIKey,
		Logger:           logger,
		Faces:            faceSvc,
		Commands:         engine,
		Detection:        detector,
		Hub:              hub,
		Checks:           checks,
		DefaultFrequency: cfg.Detection.Frequency,
	}
	if snapshots != nil {
		routerCfg.Snapshots = snapshots
	}
	router := api.NewRouter(routerCfg)

	if cfg.Detection.AutostartEnabled() {
		err := detector.StartDetection(detection.Options{
			Frequency:      cfg.Detection.Frequency,
			AutostartFaces: true,
			Recognizer:     detection.RecognizerOptions{Threshold: cfg.Vision.RecognitionThreshold},
		})
		if err != nil {
			slog.Error("start detection", "error", err)
			os.Exit(1)
		}
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")
	detector.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	cancel()
	if err := bus.Close(); err != nil {
		slog.Warn("close event bus", "error", err)
	}

	slog.Info("facecommand stopped")
}
