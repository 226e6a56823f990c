// Command storefrontd launches the storefront checkout core.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/velora/storefront/internal/address"
	"github.com/velora/storefront/internal/api"
	"github.com/velora/storefront/internal/cache"
	"github.com/velora/storefront/internal/cart"
	"github.com/velora/storefront/internal/checkout"
	"github.com/velora/storefront/internal/config"
	"github.com/velora/storefront/internal/session"
	"github.com/velora/storefront/internal/shipping"
	"github.com/velora/storefront/internal/telemetry"
	"github.com/velora/storefront/internal/variation"
	"github.com/velora/storefront/internal/wallet"
)

const (
	defaultConfigPath        = "config/app.yaml"
	storefrontLoggerPrefix   = "storefront "
	shutdownTimeout          = 30 * time.Second
	telemetryShutdownTimeout = 5 * time.Second
)

func main() {
	cfgPath := parseFlags()
	ctx, cancel := newSignalContext()
	defer cancel()

	logger := newStorefrontLogger()

	cfg, loadedFromFile, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if !loadedFromFile {
		logger.Printf("configuration file not found, using defaults")
	}
	logger.Printf("configuration initialised: env=%s, api=%s", cfg.Environment, cfg.API.BaseURL)

	telemetryProvider, metrics, err := initTelemetry(ctx, logger, cfg)
	if err != nil {
		logger.Fatalf("initialize telemetry: %v", err)
	}

	durable := cache.NewFileStore(cfg.Cache.Dir, logger)
	store := cart.NewStore(durable, logger)

	client := api.NewClient(api.Options{
		BaseURL:           cfg.API.BaseURL,
		Token:             api.StaticToken(cfg.API.Token),
		Timeout:           cfg.API.Timeout,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		MaxTries:          cfg.API.Retry.MaxTries,
		MaxElapsed:        cfg.API.Retry.MaxElapsed,
		Logger:            logger,
		Metrics:           metrics,
	})

	tracker := checkout.NewTracker(store, cfg.Checkout.PayOnDeliveryMethodID, logger, metrics)
	resolver := variation.NewResolver(client, logger, metrics)
	coordinator := shipping.NewCoordinator(client, tracker, logger, metrics)
	walletCtrl := wallet.NewController(client, store, logger, metrics)
	book := address.NewBook(client, logger)

	sess := session.New(session.Options{
		API:      client,
		Store:    store,
		Cache:    durable,
		Resolver: resolver,
		Tracker:  tracker,
		Shipping: coordinator,
		Wallet:   walletCtrl,
		Book:     book,
		Logger:   logger,
		Metrics:  metrics,
	})
	sess.Start(ctx)

	logger.Print("storefront started; awaiting shutdown signal")
	<-ctx.Done()
	logger.Print("shutdown signal received, initiating graceful shutdown")

	shutdownStart := time.Now()
	cancel()
	sess.Close()

	telemetryCtx, telemetryCancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	defer telemetryCancel()
	if err := telemetryProvider.Shutdown(telemetryCtx); err != nil {
		logger.Printf("telemetry shutdown: %v", err)
	}

	logger.Printf("shutdown completed in %v", time.Since(shutdownStart))
}

func parseFlags() string {
	cfgPath := flag.String("config", defaultConfigPath,
		fmt.Sprintf("Path to application configuration file (default: %s)", defaultConfigPath))
	flag.Parse()
	return *cfgPath
}

func newSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newStorefrontLogger() *log.Logger {
	return log.New(os.Stdout, storefrontLoggerPrefix, log.LstdFlags|log.Lmicroseconds)
}

func initTelemetry(ctx context.Context, logger *log.Logger, cfg config.Config) (*telemetry.Provider, *telemetry.Metrics, error) {
	telemetryCfg := telemetry.DefaultConfig()
	telemetryCfg.Enabled = cfg.Telemetry.Enabled
	if cfg.Telemetry.OTLPEndpoint != "" {
		telemetryCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	}
	telemetryCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	telemetryCfg.Environment = cfg.Environment

	provider, err := telemetry.NewProvider(ctx, telemetryCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize telemetry provider: %w", err)
	}

	metrics, err := telemetry.NewMetrics(provider.Meter("storefront"))
	if err != nil {
		return nil, nil, fmt.Errorf("initialize metrics: %w", err)
	}

	if telemetryCfg.Enabled {
		logger.Printf("telemetry initialized: endpoint=%s, service=%s",
			telemetryCfg.OTLPEndpoint, telemetryCfg.ServiceName)
	} else {
		logger.Printf("telemetry disabled")
	}
	return provider, metrics, nil
}
