package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"medmarket/internal/config"
	"medmarket/internal/eventbus"
	httpapi "medmarket/internal/http"
	"medmarket/internal/metrics"
	"medmarket/internal/repository"
	"medmarket/internal/service"

	_ "medmarket/docs"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Info().Str("appName", cfg.AppName).Msg("Application starting")

	store := repository.NewMemoryStore()
	ordersRepo := repository.NewMemoryOrders(store)

	bus := eventbus.New(cfg.KafkaBrokers, cfg.OrderEventsTopic)
	if bus.Enabled() {
		log.Info().Str("topic", cfg.OrderEventsTopic).Msg("Order events publisher enabled")
	}
	m := metrics.New(cfg.MetricsNamespace)

	inventorySvc := service.NewInventoryService(store)
	cartsSvc := service.NewCartService()
	ordersSvc := service.NewOrderService(store, ordersRepo, cartsSvc, bus, m)
	reportsSvc := service.NewReportService(ordersRepo)

	srv := httpapi.NewServer(inventorySvc, cartsSvc, ordersSvc, reportsSvc, m)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: srv.Engine(),
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	if err := bus.Close(); err != nil {
		log.Error().Err(err).Msg("event bus close error")
	}
}
