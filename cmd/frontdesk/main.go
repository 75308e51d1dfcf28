package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/avilev/frontdesk/internal/booking"
	"github.com/avilev/frontdesk/internal/bridge"
	"github.com/avilev/frontdesk/internal/config"
	"github.com/avilev/frontdesk/internal/httpapi"
	"github.com/avilev/frontdesk/internal/logger"
	"github.com/avilev/frontdesk/internal/observability"
	"github.com/avilev/frontdesk/internal/realtime"
	"github.com/avilev/frontdesk/internal/session"
	"github.com/avilev/frontdesk/internal/sessioncache"
	"github.com/avilev/frontdesk/internal/tools"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config error")
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := booking.NewStore(ctx, cfg.DatabaseURL, cfg.DatabasePath)
	if err != nil {
		log.WithError(err).Fatal("booking store init failed")
	}
	defer store.Close()

	cache, err := sessioncache.New(ctx, cfg.SessionCacheURL)
	if err != nil {
		log.WithError(err).Fatal("session cache init failed")
	}
	defer cache.Close()
	writer := sessioncache.NewWriter(cache, logrus.NewEntry(log), func() {
		metrics.CacheDrops.Inc()
	})
	defer writer.Close()

	dispatcher := tools.NewDispatcher(store, writer, metrics, logrus.NewEntry(log))

	client := realtime.NewClient(realtime.Config{
		APIKey:       cfg.LLMAPIKey,
		WSBaseURL:    cfg.LLMWSBaseURL,
		Model:        cfg.LLMRealtimeModel,
		Voice:        cfg.LLMVoice,
		Instructions: cfg.AgentInstructions,
	}, logrus.NewEntry(log))
	dialer := bridge.RealtimeDialer{Client: client, Tools: tools.Definitions()}

	registry := session.NewRegistry(15 * time.Minute)

	api := httpapi.New(cfg, registry, metrics, dialer, dispatcher, writer, store, log)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	registry.StartJanitor(runCtx, 30*time.Second)

	go func() {
		log.WithField("addr", cfg.BindAddr).Info("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("listen error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("graceful shutdown failed")
		_ = httpServer.Close()
	}

	log.Info("shutdown complete")
}
