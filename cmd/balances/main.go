/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"

	"marketplace-escrow-go/internal/common"
	"marketplace-escrow-go/internal/config"
	"marketplace-escrow-go/internal/database"
	"marketplace-escrow-go/internal/models"

	"go.uber.org/zap"
)

const recentSettlementLimit = 10

type balanceStats struct {
	totalProviders       int
	providersWithBalance int
	totalSettlements     int
}

func formatOrderId(orderId string) string {
	if len(orderId) > 8 {
		return orderId[:8] + "..."
	}
	return orderId
}

func printSettlement(record models.SettlementRecord, isLast bool) {
	symbol := common.BoxPrefix(isLast)
	fmt.Printf("%s order %-12s gross %12d  fee %12d  net %12d  (%s)\n",
		symbol,
		formatOrderId(record.OrderId),
		record.GrossAmount,
		record.FeeAmount,
		record.NetAmount,
		record.CreatedAt.Format("2006-01-02 15:04:05"))
}

func printProviderHeader(provider models.Account, balance int64) {
	fmt.Printf("\n┌─ Provider: %s (%s)\n", provider.Name, provider.Email)
	fmt.Printf("│  ID: %s\n", provider.Id)
	fmt.Printf("│  Balance: %d\n", balance)
	common.PrintBoxSeparator(78)
}

func processProvider(ctx context.Context, provider models.Account, dbService *database.Service) (int, error) {
	balance, err := dbService.GetBalance(ctx, dbService.Querier(), provider.Id)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}

	records, err := dbService.ListSettlementRecords(ctx, dbService.Querier(), provider.Id, recentSettlementLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to list settlements: %w", err)
	}

	if balance == 0 && len(records) == 0 {
		return 0, nil
	}

	printProviderHeader(provider, balance)
	for i, record := range records {
		printSettlement(record, i == len(records)-1)
	}

	return len(records), nil
}

func generateReport(ctx context.Context, providers []models.Account, dbService *database.Service, logger *zap.Logger) balanceStats {
	stats := balanceStats{}

	for _, provider := range providers {
		stats.totalProviders++

		settlementCount, err := processProvider(ctx, provider, dbService)
		if err != nil {
			logger.Error("Failed to process provider",
				zap.String("provider_id", provider.Id),
				zap.String("provider_name", provider.Name),
				zap.Error(err))
			continue
		}

		if settlementCount > 0 {
			stats.providersWithBalance++
			stats.totalSettlements += settlementCount
		}
	}

	return stats
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	providerFlag := flag.String("provider", "", "Filter by specific provider id (optional)")
	flag.Parse()

	logger.Info("Starting balance query")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	var providers []models.Account
	if *providerFlag != "" {
		provider, err := dbService.GetAccount(ctx, dbService.Querier(), *providerFlag)
		if err != nil {
			logger.Fatal("Provider not found", zap.String("provider_id", *providerFlag), zap.Error(err))
		}
		providers = []models.Account{*provider}
	} else {
		providers, err = dbService.ListAccounts(ctx, dbService.Querier(), "provider")
		if err != nil {
			logger.Fatal("Failed to list providers", zap.Error(err))
		}
	}

	common.PrintHeader("PROVIDER BALANCE REPORT", common.DefaultWidth)

	stats := generateReport(ctx, providers, dbService, logger)

	summary := fmt.Sprintf("SUMMARY: %d providers with activity (%d settlements across %d providers queried)",
		stats.providersWithBalance, stats.totalSettlements, stats.totalProviders)
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Balance query completed",
		zap.Int("providers_queried", stats.totalProviders),
		zap.Int("providers_with_activity", stats.providersWithBalance),
		zap.Int("total_settlements", stats.totalSettlements))
}
