package main

import (
	"context"
	"flag"

	"marketplace-escrow-go/internal/common"
	"marketplace-escrow-go/internal/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// createAccount inserts one account unless the id is already taken.
func createAccount(ctx context.Context, services *common.Services, id, name, email, role, pushToken string) {
	if id == "" {
		id = uuid.New().String()
	}

	account, err := services.DbService.CreateAccount(ctx, services.DbService.Querier(), id, name, email, role, pushToken)
	if err != nil {
		zap.L().Fatal("Failed to create account",
			zap.String("name", name),
			zap.String("email", email),
			zap.Error(err))
	}

	zap.L().Info("Account created",
		zap.String("id", account.Id),
		zap.String("name", account.Name),
		zap.String("email", account.Email),
		zap.String("role", account.Role))
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	idFlag := flag.String("id", "", "Account id (optional, generated when empty)")
	nameFlag := flag.String("name", "", "Account name")
	emailFlag := flag.String("email", "", "Account email")
	roleFlag := flag.String("role", "customer", "Account role: customer or provider")
	tokenFlag := flag.String("push-token", "", "Device push token (optional)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	zap.L().Info("Setting up SQLite database", zap.String("path", cfg.Database.Path))

	// NewService creates the schema (and demo accounts when
	// SEED_DEMO_ACCOUNTS is set), so connecting is the setup.
	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if *nameFlag != "" && *emailFlag != "" {
		if *roleFlag != "customer" && *roleFlag != "provider" {
			zap.L().Fatal("Role must be customer or provider", zap.String("role", *roleFlag))
		}
		createAccount(ctx, services, *idFlag, *nameFlag, *emailFlag, *roleFlag, *tokenFlag)
	}

	zap.L().Info("Setup complete")
}
