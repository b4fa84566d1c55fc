package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fincrime_engine/internal/api"
	"fincrime_engine/internal/service"
	"fincrime_engine/internal/traces"
	"fincrime_engine/pkg/crypto"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, metrics server and alert monitor",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	logger := a.logger
	logger.Info("Starting fincrime engine",
		slog.String("version", version),
		slog.String("graph_backend", a.cfg.GraphBackend),
		slog.String("cache_backend", a.cfg.CacheBackend),
	)

	shutdownTracing, err := traces.Init(ctx, a.cfg.OTELEndpoint, version, logger)
	if err != nil {
		return err
	}

	var signer *crypto.Signer
	if a.cfg.SigningSecret != "" {
		signer = crypto.NewSigner(a.cfg.SigningSecret, logger)
	} else {
		logger.Warn("SIGNING_SECRET not set; responses are not signed")
	}

	notificationService := service.NewNotificationService(nil, nil, service.Recipients{}, 2, logger)

	if a.cfg.MonitorEnabled {
		var rules []service.AlertRule
		if a.cfg.MonitorRulesFile != "" {
			rules, err = service.LoadAlertRules(a.cfg.MonitorRulesFile)
			if err != nil {
				return err
			}
		}
		monitor := service.NewMonitor(a.engine, rules, notificationService, a.metrics, a.cfg.MonitorInterval, logger)
		go monitor.Run(ctx)
	}

	metricsServer := a.metrics.StartMetricsServer(a.cfg.MetricsAddr)

	handler := api.NewAPIHandler(a.engine, a.healthRegistry(), signer, version, logger)
	httpServer := startHTTPServer(a.cfg.HTTPAddr, handler, logger)

	waitForShutdown(logger, cancel, httpServer, metricsServer, notificationService, shutdownTracing)
	return nil
}

func startHTTPServer(addr string, handler *api.APIHandler, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("fincrime engine " + version))
	})

	server := &http.Server{
		Addr:         addr,
		Handler:      handler.Middleware(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	return server
}

func waitForShutdown(
	logger *slog.Logger,
	stopBackground context.CancelFunc,
	httpServer *http.Server,
	metricsServer *http.Server,
	notificationService *service.NotificationService,
	shutdownTracing func(context.Context) error,
) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
	}

	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Error("Metrics server shutdown error", slog.String("error", err.Error()))
	}

	if err := notificationService.Shutdown(ctx); err != nil {
		logger.Error("Notification service shutdown error", slog.String("error", err.Error()))
	}

	if err := shutdownTracing(ctx); err != nil {
		logger.Error("Tracer shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("Shutdown complete")
}
