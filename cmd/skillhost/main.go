package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appconfig "github.com/kardia-ai/skillbus/internal/config"
	apphttp "github.com/kardia-ai/skillbus/internal/http"
	applogger "github.com/kardia-ai/skillbus/internal/logger"
	"github.com/kardia-ai/skillbus/internal/skills/fallback"
	"github.com/kardia-ai/skillbus/internal/storage"
	"github.com/kardia-ai/skillbus/internal/transport/mqtt"
	"github.com/kardia-ai/skillbus/pkg/hermes"
)

func main() {
	cfg, err := appconfig.Load()
	if err != nil {
		fb, _ := zap.NewProduction()
		defer fb.Sync()
		fb.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := applogger.New(cfg.Log)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	manifests, err := appconfig.ScanSkillManifests(cfg.SkillsDir)
	if err != nil {
		logger.Fatal("failed to scan skill manifests", zap.Error(err))
	}

	registry := hermes.NewRegistry()

	var client *mqtt.Client
	publish := func(topic string, payload []byte) error {
		return client.Publish(topic, payload)
	}

	registerSkills(registry, manifests, hermes.PublisherFunc(publish), logger)
	registerTranscripts(registry, cfg.TranscriptsDir, logger)

	listener := hermes.NewListener(registry, hermes.PublisherFunc(publish), logger)

	client = mqtt.NewClient(mqtt.Config{
		BrokerURL: cfg.MQTT.BrokerURL,
		ClientID:  cfg.MQTT.ClientID,
		Username:  cfg.MQTT.Username,
		Password:  cfg.MQTT.Password,
		Filters:   listener.SubscriptionFilters(),
	}, mqtt.Callbacks{
		OnMessage: listener.HandleMessage,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := client.Connect(ctx); err != nil {
		cancel()
		logger.Fatal("failed to connect to broker", zap.Error(err))
	}
	cancel()
	defer client.Close()

	var server *http.Server
	if cfg.StatusAddr != "" {
		router := apphttp.NewRouter(client, listener, cfg.TranscriptsDir, logger)
		server = &http.Server{
			Addr:    cfg.StatusAddr,
			Handler: router,
		}
		go func() {
			logger.Info("starting status server", zap.String("addr", cfg.StatusAddr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal("status server error", zap.Error(err))
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("status server shutdown failed", zap.Error(err))
		}
	}
}

func registerSkills(registry *hermes.Registry, manifests []appconfig.SkillManifest, pub hermes.Publisher, logger *zap.Logger) {
	enabled := func(name string, fallbackEnabled bool) (appconfig.SkillManifest, bool) {
		manifest, ok := appconfig.FindSkillManifest(manifests, name)
		if !ok {
			return appconfig.SkillManifest{}, fallbackEnabled
		}
		return manifest, manifest.IsEnabled()
	}

	if manifest, ok := enabled("fallback", true); ok {
		fallback.New(pub, manifest.Option("text", ""), logger).Register(registry)
		logger.Info("skill registered", zap.String("skill", "fallback"))
	}
}

func registerTranscripts(registry *hermes.Registry, dir string, logger *zap.Logger) {
	registry.OnSessionEnded(func(ev hermes.SessionEnded) error {
		record := storage.SessionRecord{
			SessionID:  ev.SessionID,
			SiteID:     ev.SiteID,
			Reason:     ev.Reason,
			Error:      ev.Error,
			CustomData: ev.CustomData,
		}
		if err := storage.AppendRecord(dir, record); err != nil {
			logger.Warn("failed to record ended session",
				zap.String("session_id", ev.SessionID),
				zap.Error(err),
			)
		}
		return nil
	})
}
