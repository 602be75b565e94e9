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
	"errors"
	"flag"
	"fmt"

	"marketplace-escrow-go/internal/common"
	"marketplace-escrow-go/internal/config"
	"marketplace-escrow-go/internal/lifecycle"
	"marketplace-escrow-go/internal/models"
	"marketplace-escrow-go/internal/settlement"
	"marketplace-escrow-go/internal/store"

	"go.uber.org/zap"
)

func printReleaseSummary(outcome *settlement.Outcome) {
	common.PrintHeader("FUNDS RELEASE", common.DefaultWidth)
	fmt.Printf("Order:        %s\n", outcome.OrderId)
	fmt.Printf("Provider:     %s\n", outcome.ProviderId)
	fmt.Printf("Gross Amount: %d\n", outcome.GrossAmount)
	fmt.Printf("Platform Fee: %d\n", outcome.FeeAmount)
	fmt.Printf("Net Credited: %d\n", outcome.NetAmount)
	common.PrintSeparator("=", common.DefaultWidth)
	if outcome.AlreadySettled {
		fmt.Println("\nOrder was already settled; no new credit was applied.")
	} else {
		fmt.Println("\nFunds released to provider balance.")
	}
	fmt.Println()
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	orderFlag := flag.String("order", "", "Order id to release (required)")
	flag.Parse()

	if *orderFlag == "" {
		zap.L().Fatal("Missing required flag: --order")
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	zap.L().Info("Releasing funds for order", zap.String("order_id", *orderFlag))

	// Drive the same transition a confirmation timeout would, so the
	// status log and settlement semantics stay identical.
	result, err := services.Machine.Transition(ctx, *orderFlag, models.StatusSettled, models.ActorSystem, "")
	if err != nil {
		common.PrintHeader("RELEASE FAILED", common.DefaultWidth)
		switch {
		case errors.Is(err, store.ErrOrderNotFound):
			fmt.Printf("Error: order %s not found\n", *orderFlag)
		case errors.Is(err, lifecycle.ErrInvalidTransition):
			fmt.Printf("Error: order %s is not awaiting confirmation\n", *orderFlag)
		default:
			fmt.Printf("Error: %v\n", err)
		}
		common.PrintSeparator("=", common.DefaultWidth)
		zap.L().Fatal("Release failed", zap.String("order_id", *orderFlag), zap.Error(err))
	}

	printReleaseSummary(result.Settlement)

	zap.L().Info("Release completed",
		zap.String("order_id", *orderFlag),
		zap.String("provider_id", result.Settlement.ProviderId),
		zap.Int64("net", result.Settlement.NetAmount),
		zap.Bool("already_settled", result.Settlement.AlreadySettled))
}
