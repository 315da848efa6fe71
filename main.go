package main

import (
	"fmt"
	"os"

	auction "spirit-market/internal/auctionService"
	"spirit-market/internal/config"
	lifecycle "spirit-market/internal/lifecycleService"
	listing "spirit-market/internal/listingService"
	"spirit-market/internal/notifier"
	"spirit-market/internal/repository"
	"spirit-market/internal/server"
	"spirit-market/utils"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	repo, cleanup, err := buildRepo(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize storage: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	queue := notifier.NewQueue(cfg.NotifyQueueSize)
	go notifier.LogDrain(queue)
	defer queue.Close()

	listingSvc := listing.NewListingService(repo, cfg.AuctionDuration, cfg.ConflictRetryLimit)
	auctionSvc := auction.NewAuctionService(repo, queue, cfg.ConflictRetryLimit)
	lifecycleSvc := lifecycle.NewLifecycleService(repo, queue, lifecycle.NewMemoryTradeCounter(), cfg.ConflictRetryLimit)

	router := server.SetupRouter(listingSvc, auctionSvc, lifecycleSvc)

	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	utils.Info("starting marketplace server", map[string]any{
		"addr":    addr,
		"storage": cfg.StorageDriver,
	})
	if err := router.Run(addr); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start server: %v\n", err)
		os.Exit(1)
	}
}

// buildRepo selects the storage backend from config
func buildRepo(cfg *config.Config) (repository.MarketDB, func(), error) {
	switch cfg.StorageDriver {
	case "postgres":
		db, err := repository.ConnectDB(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := repository.RunMigrations(db, cfg.MigrationsDir); err != nil {
			db.Close()
			return nil, nil, err
		}
		return repository.NewPostgresRepo(db), func() { db.Close() }, nil
	case "memory":
		return repository.NewMemoryRepo(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
