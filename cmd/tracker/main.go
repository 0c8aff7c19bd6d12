package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/JakeConal/smart-restaurant/internal/client"
	"github.com/JakeConal/smart-restaurant/internal/logger"
	"github.com/JakeConal/smart-restaurant/internal/order"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("tracker exited")
	}
}

func run() error {
	var (
		serverURL = flag.String("server", "http://localhost:8080", "restaurant server base URL")
		dbPath    = flag.String("db", "tracker.db", "path to the local order cache")
		track     = flag.String("track", "", "comma-separated order IDs to start tracking")
		logLevel  = flag.String("l", "info", "log level")
	)
	flag.Parse()

	if err := logger.Setup(*logLevel); err != nil {
		return err
	}

	store, err := client.OpenBoltStore(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	cache := client.NewCache(store)

	// Drop settled orders left over from previous sessions.
	unpaid, err := cache.LoadAllUnpaid()
	if err != nil {
		return err
	}
	for _, entry := range unpaid {
		log.Info().
			Str("order_id", entry.ID).
			Str("status", string(entry.Status)).
			Msg("resuming tracked order")
	}

	wsURL := "ws" + strings.TrimPrefix(*serverURL, "http") + "/ws"
	tracker := client.NewTracker(cache, wsURL, *serverURL)

	for _, id := range strings.Split(*track, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if err := tracker.Track(&order.Order{ID: id, Status: order.StatusPendingAcceptance}); err != nil {
			log.Warn().Err(err).Str("order_id", id).Msg("failed to track order")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		cancel()
	}()

	log.Info().Str("server", *serverURL).Msg("starting order tracker")
	tracker.Run(ctx)
	log.Info().Msg("tracker stopped")
	return nil
}
