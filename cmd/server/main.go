package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"showstopper/internal/media"
	"showstopper/internal/platform/config"
	"showstopper/internal/platform/logger"
	"showstopper/internal/platform/metrics"
	"showstopper/internal/showcase"
	"showstopper/internal/sse"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	showcaseFile := config.GetEnv("SHOWCASE_FILE", "showcases.yaml")
	probeTimeout := config.GetEnvDuration("PROBE_TIMEOUT", 10*time.Second)
	probeMaxBytes := config.GetEnvInt("PROBE_MAX_BYTES", 8<<20)
	sessionRateLimit := config.GetEnvInt("SESSION_RATE_LIMIT", 30)

	d := showcase.DefaultOptions()
	opts := showcase.Options{
		TeaserDelay:    config.GetEnvDuration("TEASER_DELAY", d.TeaserDelay),
		SyncInterval:   config.GetEnvDuration("SYNC_INTERVAL", d.SyncInterval),
		SyncWindow:     config.GetEnvDuration("SYNC_WINDOW", d.SyncWindow),
		DriftThreshold: config.GetEnvFloat("DRIFT_THRESHOLD_SECONDS", d.DriftThreshold),
		PipRate:        config.GetEnvFloat("PIP_RATE", d.PipRate),
		Gate:           d.Gate,
	}

	log := logger.New(logLevel, logFormat)

	catalog, err := showcase.LoadCatalog(showcaseFile, opts, logger.Component(log, "catalog"))
	if err != nil {
		log.Error("load showcase catalog", "path", showcaseFile, "error", err)
		os.Exit(1)
	}

	prober := media.NewHTTPProber(&http.Client{Timeout: probeTimeout}, int64(probeMaxBytes))
	met := metrics.New()
	hub := sse.NewHub(logger.Component(log, "sse"))
	go hub.Run()

	repo := showcase.NewInMemoryRepository()
	svc := showcase.NewService(repo, catalog, prober, showcase.ServiceConfig{
		Options: opts,
		Logger:  logger.Component(log, "service"),
		Metrics: met,
		Events:  hub,
	})
	h := showcase.NewHandler(svc, hub, log)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetActiveSessions(svc.ActiveCount()) }).ServeHTTP(w, r)
	})
	h.Routes(r, httprate.LimitByIP(sessionRateLimit, time.Minute))

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"showcases", len(catalog.Names()),
		"teaser_delay", opts.TeaserDelay,
		"sync_window", opts.SyncWindow,
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	// Event streams never finish on their own; closing the hub ends them.
	hub.Close()
	svc.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
