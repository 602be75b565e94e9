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

	"marketplace-escrow-go/internal/api"
	"marketplace-escrow-go/internal/common"
	"marketplace-escrow-go/internal/config"
	"marketplace-escrow-go/internal/store"

	"go.uber.org/zap"
)

func parseAndValidateFlags() (*api.WithdrawRequest, error) {
	providerFlag := flag.String("provider", "", "Provider id (required)")
	amountFlag := flag.Int64("amount", 0, "Amount to withdraw in minor units (required)")
	referenceFlag := flag.String("reference", "", "External payout reference (optional)")
	flag.Parse()

	if *providerFlag == "" || *amountFlag == 0 {
		return nil, fmt.Errorf("required flags: --provider, --amount")
	}
	if *amountFlag < 0 {
		return nil, fmt.Errorf("amount must be greater than zero")
	}

	return &api.WithdrawRequest{
		ProviderId: *providerFlag,
		Amount:     *amountFlag,
		Reference:  *referenceFlag,
	}, nil
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	req, err := parseAndValidateFlags()
	if err != nil {
		zap.L().Fatal("Invalid flags", zap.Error(err))
	}

	zap.L().Info("Starting withdrawal",
		zap.String("provider_id", req.ProviderId),
		zap.Int64("amount", req.Amount))

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	balance, err := services.Orders.GetProviderBalance(ctx, req.ProviderId)
	if err != nil {
		zap.L().Fatal("Failed to read balance", zap.Error(err))
	}

	common.PrintHeader("WITHDRAWAL REQUEST", common.DefaultWidth)
	fmt.Printf("Provider:          %s\n", req.ProviderId)
	fmt.Printf("Current Balance:   %d\n", balance)
	fmt.Printf("Withdrawal Amount: %d\n", req.Amount)
	fmt.Printf("Remaining Balance: %d\n", balance-req.Amount)
	common.PrintSeparator("=", common.DefaultWidth)
	fmt.Println()

	err = services.Orders.Withdraw(ctx, *req)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			common.PrintHeader("WITHDRAWAL FAILED", common.DefaultWidth)
			fmt.Printf("Insufficient funds: balance=%d, requested=%d, shortfall=%d\n",
				balance, req.Amount, req.Amount-balance)
			common.PrintSeparator("=", common.DefaultWidth)
		}
		zap.L().Fatal("Withdrawal failed", zap.Error(err))
	}

	fmt.Println("Withdrawal recorded. Balance debited.")

	zap.L().Info("Withdrawal completed",
		zap.String("provider_id", req.ProviderId),
		zap.Int64("amount", req.Amount))
}
