package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/elonfeng/festwatch/internal/config"
	"github.com/elonfeng/festwatch/internal/scheduler"
	"github.com/elonfeng/festwatch/internal/store"
	"github.com/elonfeng/festwatch/pkg/collect"
	"github.com/elonfeng/festwatch/pkg/discovery"
	"github.com/elonfeng/festwatch/pkg/export"
	"github.com/elonfeng/festwatch/pkg/server"
	"github.com/elonfeng/festwatch/pkg/steam"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func buildDiscovery(cfg *config.Config) *discovery.Engine {
	return discovery.New(discovery.Options{
		ListingURL:      cfg.Discovery.ListingURL,
		OffsetParam:     cfg.Discovery.OffsetParam,
		OffsetStride:    cfg.Discovery.OffsetStride,
		MaxOffset:       cfg.Discovery.MaxOffset,
		SectionSelector: cfg.Discovery.SectionSelector,
		NavTimeout:      cfg.Discovery.ParseNavTimeout(),
		WaitTimeout:     cfg.Discovery.ParseWaitTimeout(),
		SettleDelay:     cfg.Discovery.ParseSettleDelay(),
		BrowseLinks:     cfg.Discovery.BrowseLinks,
		SearchPageSize:  cfg.Discovery.SearchPageSize,
		SearchMaxItems:  cfg.Discovery.SearchMaxItems,
		Headless:        cfg.Discovery.Headless,
	})
}

func buildSteam(cfg *config.Config) *steam.Client {
	return steam.NewClient(steam.Options{
		DetailsURL: cfg.Steam.DetailsURL,
		ReviewsURL: cfg.Steam.ReviewsURL,
		PlayersURL: cfg.Steam.PlayersURL,
		Timeout:    cfg.Steam.ParseRequestTimeout(),
	})
}

// collectOnce opens the store for one run and closes it when the run
// ends, so the write connection's lifetime matches the run's.
func collectOnce(ctx context.Context, cfg *config.Config) error {
	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	c := collect.New(buildDiscovery(cfg), buildSteam(cfg), db, cfg.Collect.ParseDelay())
	return c.RunOnce(ctx)
}

func runCollect() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return collectOnce(ctx, cfg)
}

func runDaemon() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(scheduler.RunnerFunc(func(ctx context.Context) error {
		return collectOnce(ctx, cfg)
	}), cfg.Schedule.ParseCollectInterval())

	if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.OpenReadOnly(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store read-only: %w", err)
	}
	defer db.Close()

	return server.New(db, port).ListenAndServe()
}

func runExport(out string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.OpenReadOnly(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store read-only: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := export.WriteXLSX(ctx, db, out); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "exported to %s\n", out)
	return nil
}
