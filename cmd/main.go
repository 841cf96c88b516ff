package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rfsentry/internal/config"
	"rfsentry/internal/engine"
	"rfsentry/internal/handlers"
	"rfsentry/internal/logger"
	"rfsentry/internal/repository"
	"rfsentry/internal/repository/db"
	"rfsentry/internal/scanner"
	"rfsentry/internal/server"
	"rfsentry/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// load config.yml first; the log level comes from it
	cfg, err := config.Load("")
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(cfg.LogLevel)

	// open DB
	sqldb, err := db.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := sqldb.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies: repos -> sinks -> engine -> services -> handlers
	repos := repository.NewRepository(sqldb)
	hub := handlers.NewHub(log)
	recorder := service.NewAlertRecorder(repos.EventRepo, repos.DeviceRepo, log)
	sink := engine.MultiSink(hub, recorder)

	eng := engine.New(cfg.Policy, sink, log, engine.Options{
		QueueSize:   cfg.QueueSize,
		IdleHorizon: cfg.IdleHorizon,
	})

	services := service.NewService(eng, repos, log)
	if auth, ok := services.Authorization.(*service.AuthService); ok {
		auth.WithSigningKey(cfg.SigningKey)
	}
	apiHandler := handlers.NewHandler(services, log, hub)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// evaluation worker
	go eng.Run(ctx)

	// scanners under watchdog supervision
	startScanners(ctx, cfg, eng, log)

	// policy hot-reload on config file change
	config.Watch(log, eng.OnConfigUpdate)

	// SIGUSR1 injects a simulated approach for end-to-end verification
	startTestTrigger(ctx, eng, log)

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, cfg.Port, apiHandler, log)

	log.Infow("sentry online",
		"wifi_interface", cfg.Scanner.WiFiInterface,
		"approach_delta", cfg.Policy.ApproachDelta,
		"rssi_threshold", cfg.Policy.RSSIAlertThreshold,
	)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)
}

// startScanners launches the Bluetooth and Wi-Fi monitors, each restarted
// by the watchdog when its heartbeat goes quiet.
func startScanners(ctx context.Context, cfg *config.Config, eng *engine.Engine, log *logger.Logger) {
	wd := scanner.NewWatchdog(log)

	bt := scanner.NewBluetoothMonitor(eng, log)
	go wd.Supervise(ctx, bt, cfg.Scanner.WatchdogTimeout)

	wifi := scanner.NewWiFiMonitor(eng, log, cfg.Scanner.WiFiInterface, cfg.Scanner.WiFiPulse)
	// active scans are pulsed, so the Wi-Fi stall budget is three pulses
	go wd.Supervise(ctx, wifi, 3*cfg.Scanner.WatchdogTimeout)
}

// startTestTrigger wires SIGUSR1 to the synthetic approach injection.
func startTestTrigger(ctx context.Context, eng *engine.Engine, log *logger.Logger) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1)
	log.Infow("simulation handler ready", "hint", "kill -SIGUSR1 <pid>")
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigs:
				log.Infow("received SIGUSR1, injecting simulated approach")
				if err := eng.TriggerTest(""); err != nil {
					log.Errorw("test trigger failed", "err", err)
				}
			}
		}
	}()
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down sentry...")

	// stop scanners and the evaluation worker
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
