// bedrockd - Bedrock protocol server daemon
//
// bedrockd terminates game client connections over RakNet, validates
// JWT certificate-chain logins, decodes batched game packets, exposes a
// REST API for session and ban management, and publishes real-time
// telemetry via MQTT.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bedrocknet/bedrocknet/internal/api"
	"github.com/bedrocknet/bedrocknet/internal/cli"
	"github.com/bedrocknet/bedrocknet/internal/config"
	"github.com/bedrocknet/bedrocknet/internal/events"
	"github.com/bedrocknet/bedrocknet/internal/scheduler"
	"github.com/bedrocknet/bedrocknet/internal/server"
	"github.com/bedrocknet/bedrocknet/internal/store"
	"github.com/bedrocknet/bedrocknet/internal/telemetry"
	"github.com/bedrocknet/bedrocknet/internal/util"
	"github.com/bedrocknet/bedrocknet/protocol"
	"github.com/bedrocknet/bedrocknet/protocol/packet"
)

const (
	AppName    = "bedrockd"
	AppVersion = "1.0.0"
	Banner     = `
  _              _                _       _
 | |__   ___  __| |_ __ ___   ___| | ____| |
 | '_ \ / _ \/ _' | '__/ _ \ / __| |/ / _' |
 | |_) |  __/ (_| | | | (_) | (__|   < (_| |
 |_.__/ \___|\__,_|_|  \___/ \___|_|\_\__,_|  v%s
 Bedrock Protocol Server & API
`
)

func main() {
	// Print banner
	fmt.Printf(Banner, AppVersion)
	fmt.Println()

	// Initialize logger with defaults first (will be reconfigured after config load)
	if err := util.InitLogger(util.DefaultLogConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info().
		Str("version", AppVersion).
		Str("platform", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Int("cpus", runtime.NumCPU()).
		Msg("starting bedrockd")

	// Load configuration
	cfg, err := config.Load(config.DefaultConfigDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Re-initialize logger with config-based settings
	logCfg := util.LogConfig{
		Level:      cfg.Application.Logging.Level,
		Directory:  cfg.Application.Logging.Directory,
		MaxSizeMB:  cfg.Application.Logging.MaxSizeMB,
		MaxBackups: cfg.Application.Logging.MaxBackups,
		Console:    true,
	}
	if err := util.InitLogger(logCfg); err != nil {
		log.Warn().Err(err).Msg("failed to reconfigure logger, using defaults")
	}

	// Optional setup wizard: bedrockd setup
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := config.RunSetupWizard(cfg); err != nil {
			log.Fatal().Err(err).Msg("setup wizard failed")
		}
	}

	// Validate configuration
	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if !validation.IsValid() {
		for _, e := range validation.Errors {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		log.Fatal().Msg("configuration validation failed, please fix the errors above or run 'bedrockd setup'")
	}

	// Log system info
	sysInfo := util.GetSystemInfo()
	log.Info().
		Str("hostname", sysInfo.Hostname).
		Str("os", sysInfo.OS).
		Str("cpu", sysInfo.CPUModel).
		Int("cores", sysInfo.CPUCores).
		Uint64("memory_mb", sysInfo.TotalMemory).
		Msg("system information")

	// Create root context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize core components
	eventBus := events.NewEventBus()

	// Packet registry shared by every connection
	registry := protocol.NewRegistry()
	if err := packet.Register(registry); err != nil {
		log.Fatal().Err(err).Msg("failed to build packet registry")
	}
	log.Info().
		Int("packets", registry.Len()).
		Int32("protocol", protocol.CurrentProtocol).
		Str("version", protocol.CurrentVersion).
		Msg("packet registry ready")

	// Session store (history + bans)
	sessions, err := store.NewSessionStore(cfg.Application.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open session store")
	}
	defer sessions.Close()

	// Session gateway (central orchestrator)
	gateway := server.NewGateway(cfg, eventBus, sessions, registry)

	// REST API
	apiServer := api.NewServer(cfg, eventBus, sessions, registry)

	// MQTT telemetry
	var mqttHandler *telemetry.MQTTHandler
	if cfg.Application.MQTT.Enabled {
		mqttHandler, err = telemetry.NewMQTTHandler(cfg, eventBus)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize MQTT, telemetry disabled")
		}
	}

	// Interactive CLI
	cliHandler := cli.NewCLI(cfg, eventBus, sessions, registry)

	// ---------------------------------------------------------------
	// Launch all concurrent tasks
	// ---------------------------------------------------------------
	var wg sync.WaitGroup
	errCh := make(chan error, 10)

	// Task 1: session gateway (with retry for port binding)
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Str("addr", cfg.GetServer().ListenAddr).Msg("starting session gateway")
		if err := startWithRetry(ctx, "gateway", gateway.Start, 15); err != nil {
			log.Error().Err(err).Msg("gateway failed after retries")
			errCh <- fmt.Errorf("gateway: %w", err)
		}
	}()

	// Task 2: REST API server (with retry for port binding)
	if cfg.Application.API.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Int("port", cfg.Application.API.Port).Msg("starting REST API server")
			if err := startWithRetry(ctx, "API server", apiServer.Start, 15); err != nil {
				log.Warn().Err(err).Msg("API server failed after retries (non-fatal)")
			}
		}()
	}

	// Task 3: MQTT telemetry
	if mqttHandler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Msg("starting MQTT telemetry")
			if err := mqttHandler.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("MQTT telemetry failed")
			}
		}()
	}

	// Task 4: background maintenance scheduler
	sched := scheduler.NewScheduler(cfg, sessions)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Start(ctx)
	}()

	// Task 5: interactive CLI
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Msg("starting interactive CLI")
		cliHandler.Start(ctx)
	}()

	// Shutdown requested from the CLI ends up here as well.
	shutdownCh := make(chan struct{}, 1)
	eventBus.Subscribe(events.EventShutdown, "main.shutdown", func(ctx context.Context, ev events.Event) error {
		select {
		case shutdownCh <- struct{}{}:
		default:
		}
		return nil
	})

	// ---------------------------------------------------------------
	// Graceful shutdown handling
	// ---------------------------------------------------------------
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case <-shutdownCh:
		log.Info().Msg("shutdown requested")
	case err := <-errCh:
		log.Error().Err(err).Msg("critical error, initiating shutdown")
	}

	log.Info().Msg("initiating graceful shutdown...")

	// Cancel the root context to signal all goroutines
	cancel()
	gateway.Stop()

	// Wait for all goroutines with timeout
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all tasks stopped gracefully")
	case <-time.After(30 * time.Second):
		log.Warn().Msg("shutdown timed out after 30 seconds, forcing exit")
	}

	// Stop the event bus last
	eventBus.Stop()

	// Shutdown MQTT
	if mqttHandler != nil {
		mqttHandler.PublishShutdown()
	}

	log.Info().Msg("bedrockd stopped")
}

// startWithRetry attempts to start a listener/server with retry on bind
// errors. A fixed 3-second interval gives the OS time to release sockets
// after a previous process was force-killed.
func startWithRetry(ctx context.Context, name string, startFn func(context.Context) error, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = startFn(ctx)
		if lastErr == nil {
			return nil
		}
		if i < maxRetries {
			log.Warn().Err(lastErr).Str("component", name).Int("retry", i+1).Int("max", maxRetries).Msg("start failed, retrying in 3s...")
			time.Sleep(3 * time.Second)
		}
	}
	return lastErr
}
