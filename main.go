package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"goldboard/service"
)

// handleTermination processes context cancellation signals or interrupt signals from the OS.
func handleTermination(ctx context.Context, cancel context.CancelFunc) {
	// Listen for interrupt signals.
	signals := []os.Signal{os.Interrupt}
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, signals...)

	// Wait for the context to be cancelled or an interrupt signal.
	for {
		select {
		case <-ctx.Done():
			return

		case <-interrupt:
			cancel()
		}
	}
}

func main() {
	var cfg Config
	err := loadConfig(&cfg, "")
	if err != nil {
		log.Printf("loading config: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serviceCfg := service.GoldboardConfig{
		ListenAddr:   cfg.ListenAddr,
		Pair:         cfg.Pair,
		CSVPath:      cfg.CSVPath,
		DBEndpoint:   cfg.DBEndpoint,
		DBUser:       cfg.DBUser,
		DBPass:       cfg.DBPass,
		MetalsAPIKey: cfg.MetalsAPIKey,
		GoldAPIKey:   cfg.GoldAPIKey,
		NewsAPIKey:   cfg.NewsAPIKey,
		UnsplashKey:  cfg.UnsplashKey,
		Cancel:       cancel,
	}
	goldboard, err := service.NewGoldboard(ctx, &serviceCfg)
	if err != nil {
		log.Printf("creating goldboard service: %v", err)
		return
	}

	go handleTermination(ctx, cancel)
	goldboard.Run(ctx)
}
