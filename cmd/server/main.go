package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/noonyuu/sugoi-questionnaire/internal/browser"
	"github.com/noonyuu/sugoi-questionnaire/internal/config"
	"github.com/noonyuu/sugoi-questionnaire/internal/database"
	"github.com/noonyuu/sugoi-questionnaire/internal/events"
	"github.com/noonyuu/sugoi-questionnaire/internal/form"
	"github.com/noonyuu/sugoi-questionnaire/internal/httpx"
	"github.com/noonyuu/sugoi-questionnaire/internal/logger"
	"github.com/noonyuu/sugoi-questionnaire/internal/mq"
	"github.com/noonyuu/sugoi-questionnaire/internal/observability"
	"github.com/noonyuu/sugoi-questionnaire/internal/provider"
	"github.com/noonyuu/sugoi-questionnaire/internal/synth"
)

func main() {
	cfg := config.Load()
	log := logger.New()
	defer log.Sync()

	db, err := database.Connect(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	if err := db.AutoMigrate(&form.Form{}, &form.Question{}, &form.Option{}); err != nil {
		log.Fatal("migrations failed", zap.Error(err))
	}

	var producer *mq.Producer
	if cfg.KafkaBrokers != "" {
		producerCfg := mq.ProducerConfig{
			Brokers:  strings.Split(cfg.KafkaBrokers, ","),
			Topic:    cfg.KafkaTopic,
			ClientID: "sugoi-questionnaire",
		}
		producer, err = mq.NewProducer(producerCfg)
		if err != nil {
			log.Fatal("kafka producer init failed", zap.Error(err))
		}
		defer producer.Close()
		log.Info("event publication enabled", zap.Stringer("kafka", producerCfg))
	}

	metrics := observability.NewMetrics()
	timeouts := provider.Timeouts{
		Navigate: cfg.NavigateTimeout,
		Question: cfg.QuestionTimeout,
		Submit:   cfg.SubmitTimeout,
	}

	service := form.NewService(
		form.NewGormStore(db),
		map[string]form.Adapter{
			form.ProviderGoogle:    provider.NewGoogle(timeouts, log),
			form.ProviderMicrosoft: provider.NewMicrosoft(timeouts, log),
		},
		browser.NewFactory(cfg.BrowserRemoteURL, log),
		synth.NewClient(synth.Config{
			Endpoint: cfg.GeminiEndpoint,
			Model:    cfg.GeminiModel,
			APIKey:   cfg.GeminiAPIKey,
			Timeout:  cfg.GeminiTimeout,
		}, nil, metrics, log),
		events.NewPublisher(producer, log),
		metrics,
		log,
	)

	server := httpx.New()
	form.NewHandler(service, log).Mount(server.Router)
	observability.RegisterMetricsEndpoint(server.Router)

	addr := fmt.Sprintf(":%s", cfg.HTTPPort)
	go func() {
		log.Info("server starting", zap.String("address", addr))
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("server shutting down")
	if err := server.Shutdown(context.Background()); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
}
