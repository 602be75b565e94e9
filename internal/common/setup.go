package common

import (
	"context"
	"log"
	"strings"

	"marketplace-escrow-go/internal/api"
	"marketplace-escrow-go/internal/database"
	"marketplace-escrow-go/internal/lifecycle"
	"marketplace-escrow-go/internal/models"
	"marketplace-escrow-go/internal/notify"
	"marketplace-escrow-go/internal/reaper"
	"marketplace-escrow-go/internal/settlement"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Try to load .env file - if it doesn't exist, that's okay
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("Loaded environment variables from .env file")
	}
}

// Services holds every long-lived component, constructed once at process
// start and shut down at process stop. Nothing here is a package-level
// singleton; components receive their collaborators explicitly.
type Services struct {
	DbService *database.Service
	Notifier  notify.Gateway
	Engine    *settlement.Engine
	Machine   *lifecycle.Machine
	Sweeper   *reaper.Sweeper
	Orders    *api.OrderService
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	schedule := map[string]decimal.Decimal{}
	if cfg.Settlement.ScheduleFile != "" {
		zap.L().Info("Loading commission schedule", zap.String("file", cfg.Settlement.ScheduleFile))
		schedule, err = LoadCommissionSchedule(cfg.Settlement.ScheduleFile)
		if err != nil {
			dbService.Close()
			return nil, err
		}
	}

	engine, err := settlement.NewEngine(dbService, dbService, cfg.Settlement.CommissionRate, schedule)
	if err != nil {
		dbService.Close()
		return nil, err
	}

	notifier := notify.NewGateway(cfg.Notify)
	machine := lifecycle.NewMachine(dbService, dbService, engine)

	sweeper := reaper.NewSweeper(reaper.SweeperConfig{
		DbService:     dbService,
		Store:         dbService,
		Settler:       machine,
		Notifier:      notifier,
		GracePeriod:   cfg.Sweeper.GracePeriod,
		SweepInterval: cfg.Sweeper.SweepInterval,
	})

	zap.L().Info("Services initialized",
		zap.String("commission_rate", cfg.Settlement.CommissionRate.String()),
		zap.Int("commission_overrides", len(schedule)))

	return &Services{
		DbService: dbService,
		Notifier:  notifier,
		Engine:    engine,
		Machine:   machine,
		Sweeper:   sweeper,
		Orders:    api.NewOrderService(dbService, dbService, machine, engine, notifier),
	}, nil
}

// InitializeDatabaseOnly initializes just the database service.
// Useful for read-only operations like querying balances.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (cs *Services) Close() {
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
