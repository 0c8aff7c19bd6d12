package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/JakeConal/smart-restaurant/internal/api"
	"github.com/JakeConal/smart-restaurant/internal/config"
	"github.com/JakeConal/smart-restaurant/internal/events"
	"github.com/JakeConal/smart-restaurant/internal/hub"
	"github.com/JakeConal/smart-restaurant/internal/logger"
	"github.com/JakeConal/smart-restaurant/internal/order"
	"github.com/JakeConal/smart-restaurant/internal/payment"
	"github.com/JakeConal/smart-restaurant/internal/store/postgres"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	cfg, err := config.New()
	if err != nil {
		return err
	}
	if err := logger.Setup(cfg.LogLevel); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := postgres.Connect(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer store.Close()

	rmq, err := events.Connect(cfg.AMQPURL)
	if err != nil {
		return err
	}
	defer rmq.Close()

	orderSvc := order.NewService(store, events.NewPublisher(rmq), cfg.TaxRate)

	gateway := payment.NewGateway(cfg.VNPayURL, cfg.VNPayTmnCode, cfg.VNPayHashSecret)
	paymentSvc := payment.NewService(orderSvc, store, gateway)

	notifications := hub.New(cfg.HubBuffer)

	// The bridge needs its own channel; consuming and publishing on one
	// channel deadlocks under load.
	bridgeRMQ, err := events.Connect(cfg.AMQPURL)
	if err != nil {
		return err
	}
	defer bridgeRMQ.Close()

	go func() {
		if err := hub.NewBridge(bridgeRMQ, notifications).Run(ctx); err != nil {
			log.Error().Err(err).Msg("hub bridge stopped")
			cancel()
		}
	}()

	handler := api.NewHandler(orderSvc, paymentSvc)
	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      api.NewRouter(handler, notifications),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("address", cfg.Address).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen and serve")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info().Msg("server stopped gracefully")
	return nil
}
