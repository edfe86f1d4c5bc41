package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/DumoulinR/aq-mobile-be/internal/api/http"
	"github.com/DumoulinR/aq-mobile-be/internal/belaqi"
	"github.com/DumoulinR/aq-mobile-be/internal/belaqi/providers"
	"github.com/DumoulinR/aq-mobile-be/internal/config"
	"github.com/DumoulinR/aq-mobile-be/internal/geocode"
	"github.com/DumoulinR/aq-mobile-be/internal/logging"
	"github.com/DumoulinR/aq-mobile-be/internal/scheduler"
	"github.com/DumoulinR/aq-mobile-be/internal/store"
)

func main() {
	log := logging.L()

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logging.SetDebug(cfg.LogDebug)

	// Breakpoint table, optionally extended from file.
	table := belaqi.DefaultTable()
	if cfg.BreakpointsFile != "" {
		table, err = belaqi.LoadTableFile(cfg.BreakpointsFile, table)
		if err != nil {
			log.Fatalf("failed to load breakpoints: %v", err)
		}
		log.Infof("loaded breakpoints from %s: %d tables", cfg.BreakpointsFile, len(table.Combinations()))
	}

	// Tracked locations; addresses need the geocoder.
	locations := cfg.Locations
	if len(cfg.Addresses) > 0 {
		resolver, err := geocode.NewResolver(cfg.GeocoderAPIKey)
		if err != nil {
			log.Fatalf("LOCATION_ADDRESSES set: %v", err)
		}
		resolved, err := resolver.ResolveAll(cfg.Addresses)
		if err != nil {
			log.Fatalf("failed to resolve addresses: %v", err)
		}
		locations = append(locations, resolved...)
	}

	// Shared HTTP client for outbound WMS calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// In-memory store with configured retention.
	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)

	// Sources with resilience (backoff + circuit breaker).
	sources := []belaqi.Source{
		providers.NewCurrentProvider(httpClient, cfg.CurrentWMSURL),
		providers.NewForecastProvider(httpClient, cfg.ForecastWMSURL),
	}

	// Core service orchestrating sources, aggregation and store.
	service := belaqi.NewService(memStore, sources, belaqi.NewAggregator(table, nil), belaqi.ServiceOptions{
		ForecastDays: cfg.ForecastDays,
		Zone:         cfg.Zone,
	})

	// Scheduler that periodically refreshes and stores timelines.
	sched := scheduler.New(locations, cfg.FetchInterval, service)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "belaqi-index",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"service":   "belaqi-index",
			"locations": len(locations),
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, service)

	go func() {
		log.Infof("listening on :%s", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Errorf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Errorf("error during shutdown: %v", err)
	}
}
