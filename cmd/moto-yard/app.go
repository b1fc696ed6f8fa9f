package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"moto-yard/internal/config"
	"moto-yard/internal/logging"
	"moto-yard/internal/parking"
	"moto-yard/internal/store/apistore"
	"moto-yard/internal/store/redisstore"
	"moto-yard/internal/store/sqlstore"
)

type store interface {
	parking.CatalogSource
	parking.PlacementStore
}

type sectorSeeder interface {
	SeedSectors(ctx context.Context, sectors []parking.Sector) error
}

type app struct {
	cfg         *config.Config
	telemetry   *parking.TelemetryProvider
	store       store
	closeStore  func() error
	coordinator *parking.InstrumentedCoordinator
}

func newApp(ctx context.Context) (*app, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.Load()

	telemetry, err := newTelemetry(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logging.Init(cfg.OTelServiceName, cfg.Environment)

	s, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		_ = telemetry.Shutdown(context.Background())
		return nil, err
	}

	coordinator, err := parking.NewInstrumentedCoordinator(
		parking.NewCoordinator(s, s, parking.WithStoreTimeout(cfg.StoreTimeout)),
		telemetry,
	)
	if err != nil {
		_ = closeStore()
		_ = telemetry.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to instrument coordinator: %w", err)
	}

	logging.Info(ctx, "moto-yard initialized",
		"store", cfg.StoreDriver, "environment", cfg.Environment, "otel", cfg.OTelEnabled)

	return &app{
		cfg:         cfg,
		telemetry:   telemetry,
		store:       s,
		closeStore:  closeStore,
		coordinator: coordinator,
	}, nil
}

func newTelemetry(ctx context.Context, cfg *config.Config) (*parking.TelemetryProvider, error) {
	if !cfg.OTelEnabled {
		return parking.NewLocalTelemetryProvider(cfg.OTelServiceName), nil
	}
	tp, err := parking.NewTelemetryProvider(ctx, parking.TelemetryConfig{
		ServiceName:  cfg.OTelServiceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTelEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	return tp, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StoreDriver {
	case config.DriverMemory:
		sectors := parking.GenerateSectors(cfg.SeedSectors, cfg.SeedSlotsPerSector)
		return parking.NewMemoryStore(sectors), noop, nil
	case config.DriverPostgres, config.DriverSQLite:
		s, err := sqlstore.Open(sqlstore.Config{
			Driver:      cfg.StoreDriver,
			DatabaseURL: cfg.DatabaseURL,
			Debug:       cfg.Environment == "development",
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open %s store: %w", cfg.StoreDriver, err)
		}
		return s, s.Close, nil
	case config.DriverRedis:
		s, err := redisstore.New(ctx, redisstore.Config{Addr: cfg.RedisAddr, KeyPrefix: cfg.RedisKeyPrefix})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open redis store: %w", err)
		}
		return s, s.Close, nil
	case config.DriverAPI:
		return apistore.New(cfg.APIBaseURL), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func (a *app) close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := errors.Join(a.closeStore(), a.telemetry.Shutdown(shutdownCtx))
	if err != nil {
		logging.Error(shutdownCtx, "shutdown error", "error", err.Error())
	}
}
