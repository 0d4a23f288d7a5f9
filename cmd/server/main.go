package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/yegors/co-studio/internal/ai/gemini"
	"github.com/yegors/co-studio/internal/api"
	"github.com/yegors/co-studio/internal/config"
	"github.com/yegors/co-studio/internal/credential"
	"github.com/yegors/co-studio/internal/jobs"
	"github.com/yegors/co-studio/internal/live"
	"github.com/yegors/co-studio/internal/metrics"
	"github.com/yegors/co-studio/internal/studio"
	"github.com/yegors/co-studio/internal/websocket"
	"github.com/yegors/co-studio/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting Co-Studio server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	if cfg.Metrics.Enabled {
		metrics.MustRegister()
		metrics.SetBuildInfo(Version)
	}

	// The keyring resolves the API key and serves the media library
	keyring := credential.NewKeyring(cfg.Gemini.APIKey, cfg.Gemini.EnvFile, cfg.Studio.LibraryDir, log)
	if !keyring.HasCredential() {
		log.Warn("No API key configured, generation endpoints will answer 412 until one is provided")
	}

	client := gemini.NewClient(keyring, gemini.Options{
		BaseURL:       cfg.Gemini.BaseURL,
		LiveTransport: cfg.Gemini.LiveTransport,
	}, log)

	poller := jobs.NewPoller(client, jobs.Options{
		Interval:    time.Duration(cfg.Video.PollIntervalSecs) * time.Second,
		MaxPolls:    cfg.Video.MaxPolls,
		ExtendModel: cfg.Gemini.ExtendModel,
		Resolution:  cfg.Video.Resolution,
	}, log)

	studioService := studio.New(client, jobs.NewTracker(poller), studio.Config{
		Models: studio.Models{
			Fast:      cfg.Gemini.FastModel,
			Pro:       cfg.Gemini.ProModel,
			Speech:    cfg.Gemini.SpeechModel,
			Image:     cfg.Gemini.ImageModel,
			ImageEdit: cfg.Gemini.ImageEditModel,
			Video:     cfg.Gemini.VideoModel,
		},
		ThinkingBudget: cfg.Gemini.ThinkingBudget,
		Resolution:     cfg.Video.Resolution,
		MaxFrames:      cfg.Video.MaxAnalysisFrames,
		ProjectTitle:   cfg.Studio.ProjectTitle,
		DefaultVoice:   cfg.Studio.DefaultVoice,
	}, log)

	liveController := live.NewController(client, live.ControllerConfig{
		Model:      cfg.Gemini.LiveModel,
		CoachVoice: cfg.Live.CoachVoice,
		Settings: live.Settings{
			CaptureRate:  cfg.Live.CaptureSampleRate,
			PlaybackRate: cfg.Live.PlaybackSampleRate,
			BufferSize:   cfg.Live.BufferSize,
			QueueSize:    cfg.Live.OutboundQueue,
		},
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create and start the WebSocket hub
	wsServer := websocket.NewServer(log)
	go wsServer.Run(ctx)

	// Create API router
	handler := api.NewHandler(studioService, keyring, wsServer, cfg, Version, log)
	liveHandler := api.NewLiveHandler(liveController, studioService, keyring, wsServer, log)
	router := api.NewRouter(handler, liveHandler, cfg, log)

	// --- Setup for multiple HTTP servers ---
	var servers []*http.Server
	allPorts := []int{cfg.Server.Port}       // Start with the primary port
	if len(cfg.Server.AdditionalPorts) > 0 { // Only append if there are additional ports
		allPorts = append(allPorts, cfg.Server.AdditionalPorts...)
	}

	log.Info("Configured listener ports", logger.Any("ports", allPorts))

	routes := router.Routes()
	for _, port := range allPorts {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, port)
		server := &http.Server{
			Addr:         addr,
			Handler:      routes, // All servers use the same main router
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
		}
		servers = append(servers, server)

		go func(s *http.Server) {
			log.Info("Starting HTTP server", logger.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("HTTP server error on startup", logger.String("addr", s.Addr), logger.Error(err))
			}
		}(server)
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Live sessions hold the microphone bridge and an upstream connection
	log.Info("Stopping live sessions...")
	if err := liveController.Shutdown(shutdownCtx); err != nil {
		log.Error("Live sessions did not stop in time", logger.Error(err))
	} else {
		log.Info("Live sessions stopped.")
	}

	log.Info("Cancelling video jobs...")
	studioService.Close()

	// Cancel the main context, closing hub clients
	cancel()

	// Shutdown all HTTP servers
	log.Info("Shutting down HTTP servers...")
	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func(srv *http.Server) {
			defer wg.Done()
			log.Info("Attempting to shutdown HTTP server", logger.String("addr", srv.Addr))
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("HTTP server shutdown error", logger.String("addr", srv.Addr), logger.Error(err))
			} else {
				log.Info("HTTP server shutdown complete", logger.String("addr", srv.Addr))
			}
		}(s)
	}
	wg.Wait()

	log.Info("All HTTP servers shutdown.")
	log.Info("Server fully stopped")
}
