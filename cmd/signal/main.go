package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"visionrelay/internal/core/ports"
	"visionrelay/internal/core/services"
	handlers "visionrelay/internal/handlers/http"
	"visionrelay/internal/infrastructure/detection"
	"visionrelay/internal/infrastructure/middleware"
	"visionrelay/internal/infrastructure/monitoring"
	"visionrelay/internal/infrastructure/repositories"
	signalws "visionrelay/internal/infrastructure/signal"
	"visionrelay/pkg/config"
	"visionrelay/pkg/logger"
	"visionrelay/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()

	log := logger.New(cfg.Logging.Level).Sugar()
	defer log.Sync()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to init tracing", "error", err)
	}

	factory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to init repositories", "error", err)
	}
	defer factory.Close()

	var collector *monitoring.PrometheusCollector
	if cfg.Monitoring.PrometheusEnabled {
		collector = monitoring.NewPrometheusCollector()
	}

	registry := services.NewSessionService(factory.CreatePeerDirectory(), log)
	broker := services.NewRoomService(registry, log)

	metrics := services.NewMetricsService(cfg.Metrics.Window, cfg.Metrics.MaxFrameHistory)

	var detector ports.Detector
	if cfg.Detector.URL != "" {
		detector = detection.NewHTTPDetector(cfg.Detector.URL, cfg.Detector.Timeout)
		log.Infow("using HTTP detector", "url", cfg.Detector.URL)
	} else {
		detector = detection.NewNoopDetector()
		log.Info("no detector configured, frames resolve with no detections")
	}

	pipeline := services.NewPipelineService(detector, metrics, cfg.Pipeline.MaxQueueSize, log)
	sampler := monitoring.NewSystemSampler(metrics, cfg.Metrics.SampleInterval, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go pipeline.Run(ctx)
	go sampler.Run(ctx)

	wsServer := signalws.NewWebSocketServer(registry, broker, metrics, iceServers(cfg), collector, log)
	wsServer.SetPingInterval(cfg.Signal.PingInterval)
	wsServer.SetPongTimeout(cfg.Signal.PongTimeout)
	wsServer.SetWriteTimeout(cfg.Signal.WriteTimeout)

	signalMux := http.NewServeMux()
	signalMux.HandleFunc("/ws", wsServer.HandleWebSocket)
	signalMux.HandleFunc("/health", wsServer.HealthCheck)

	signalSrv := &http.Server{
		Addr:    cfg.Signal.Address,
		Handler: signalMux,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}
	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	api := handlers.NewAPIHandler(pipeline, metrics, broker, collector,
		cfg.Pipeline.TargetFPS, cfg.Server.RequestTimeout, log)
	api.SetupRoutes(router)

	apiSrv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Infow("signaling server listening", "address", cfg.Signal.Address)
		if err := signalSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("signaling server failed", "error", err)
		}
	}()

	go func() {
		log.Infow("api server listening", "address", cfg.Server.Address)
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("api server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("api server shutdown failed", "error", err)
	}
	if err := signalSrv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("signaling server shutdown failed", "error", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Warnw("tracer shutdown failed", "error", err)
	}
}

func loadConfig() *config.Config {
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"config.yaml",
	}

	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			if cfg, err := config.Load(path); err == nil {
				return cfg
			}
		}
	}

	// No config file found: Load falls back to defaults + env overrides.
	cfg, _ := config.Load("config.yaml")
	return cfg
}

func iceServers(cfg *config.Config) []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, len(cfg.WebRTC.ICEServers))
	for _, s := range cfg.WebRTC.ICEServers {
		servers = append(servers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return servers
}
