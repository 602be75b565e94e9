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

package settlement

import (
	"context"
	"errors"
	"fmt"

	"marketplace-escrow-go/internal/database"
	"marketplace-escrow-go/internal/models"
	"marketplace-escrow-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrOrderNotEligible means the order's current status does not permit
// settlement. This is a defensive double-check independent of the state
// machine's own edge validation.
var ErrOrderNotEligible = errors.New("order not eligible for settlement")

// Outcome describes the result of a release. AlreadySettled is a benign
// no-op, not an error: the ledger was untouched because a settlement
// record for the order already exists.
type Outcome struct {
	OrderId        string
	ProviderId     string
	GrossAmount    int64
	FeeAmount      int64
	NetAmount      int64
	AlreadySettled bool
}

// Engine moves a completed order's funds into the provider balance
// exactly once. All duplicate-release protection lives here; callers
// never need their own guards.
type Engine struct {
	db          *database.Service
	store       store.EscrowStore
	defaultRate decimal.Decimal
	schedule    map[string]decimal.Decimal
}

func NewEngine(db *database.Service, st store.EscrowStore, defaultRate decimal.Decimal, schedule map[string]decimal.Decimal) (*Engine, error) {
	if err := validateRate(defaultRate); err != nil {
		return nil, fmt.Errorf("invalid commission rate: %w", err)
	}
	for category, rate := range schedule {
		if err := validateRate(rate); err != nil {
			return nil, fmt.Errorf("invalid commission rate for category %q: %w", category, err)
		}
	}

	return &Engine{
		db:          db,
		store:       st,
		defaultRate: defaultRate,
		schedule:    schedule,
	}, nil
}

func validateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("rate must be in [0, 1), got %s", rate.String())
	}
	return nil
}

// Rate returns the commission rate applied to orders in the given
// category: the per-category override if one is configured, otherwise
// the flat default.
func (e *Engine) Rate(category string) decimal.Decimal {
	if rate, ok := e.schedule[category]; ok {
		return rate
	}
	return e.defaultRate
}

// Split computes the fee/net division of a gross price. The fee is
// floored, never rounded, so fractional units always favor the provider
// check on conservation: fee + net == gross by construction.
func (e *Engine) Split(gross int64, category string) (fee, net int64) {
	rate := e.Rate(category)
	fee = decimal.NewFromInt(gross).Mul(rate).Floor().IntPart()
	net = gross - fee
	return fee, net
}

// Release settles the order in its own transaction: the status change,
// status-log append, balance credit and record insert commit or roll
// back together. Safe to retry on any infrastructure failure.
func (e *Engine) Release(ctx context.Context, orderId string) (*Outcome, error) {
	var outcome *Outcome
	err := e.db.WithTx(ctx, func(q store.DBTX) error {
		order, err := e.store.GetOrder(ctx, q, orderId)
		if err != nil {
			return err
		}

		result, err := e.ReleaseTx(ctx, q, order)
		if err != nil {
			return err
		}
		outcome = result
		if outcome.AlreadySettled {
			return nil
		}

		if err := e.store.UpdateOrderStatus(ctx, q, order.Id, models.StatusSettled); err != nil {
			return err
		}
		return e.store.AppendStatusLog(ctx, q, order.Id, models.StatusSettled, "Funds released to provider")
	})
	if errors.Is(err, store.ErrDuplicateRecord) {
		// A concurrent caller committed first; everything here rolled
		// back. Report the benign outcome the winner produced.
		order, gerr := e.store.GetOrder(ctx, e.db.Querier(), orderId)
		if gerr != nil {
			return nil, gerr
		}
		fee, net := e.Split(order.TotalPrice, order.Category)
		return &Outcome{
			OrderId:        order.Id,
			ProviderId:     order.ProviderId,
			GrossAmount:    order.TotalPrice,
			FeeAmount:      fee,
			NetAmount:      net,
			AlreadySettled: true,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// ReleaseTx performs the ledger half of a settlement inside the caller's
// transaction scope. The state machine calls this while it is already
// moving the order into settled, so the status update and the money
// movement share one atomic boundary.
//
// The idempotency guard and the record insert are evaluated under the
// same transaction; if two callers race past the guard, the unique
// constraint on order id downgrades the loser to AlreadySettled.
func (e *Engine) ReleaseTx(ctx context.Context, q store.DBTX, order *models.Order) (*Outcome, error) {
	exists, err := e.store.RecordExists(ctx, q, order.Id)
	if err != nil {
		return nil, err
	}

	fee, net := e.Split(order.TotalPrice, order.Category)
	outcome := &Outcome{
		OrderId:     order.Id,
		ProviderId:  order.ProviderId,
		GrossAmount: order.TotalPrice,
		FeeAmount:   fee,
		NetAmount:   net,
	}

	if exists {
		zap.L().Info("Order already settled, skipping release",
			zap.String("order_id", order.Id))
		outcome.AlreadySettled = true
		return outcome, nil
	}

	if order.Status != models.StatusAwaitingConfirmation {
		return nil, fmt.Errorf("%w: order %s has status %q", ErrOrderNotEligible, order.Id, order.Status)
	}

	if err := e.store.CreditBalance(ctx, q, order.ProviderId, net); err != nil {
		return nil, err
	}

	_, err = e.store.InsertRecord(ctx, q, store.InsertRecordParams{
		RecordId:    uuid.New().String(),
		OrderId:     order.Id,
		ProviderId:  order.ProviderId,
		GrossAmount: order.TotalPrice,
		FeeAmount:   fee,
		NetAmount:   net,
		Description: fmt.Sprintf("Earnings for order #%s", order.Id),
	})
	if errors.Is(err, store.ErrDuplicateRecord) {
		// Lost a race against a concurrent release. The other writer's
		// commit carries the credit; this transaction must not.
		zap.L().Warn("Concurrent release detected, treating as already settled",
			zap.String("order_id", order.Id))
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	zap.L().Info("Funds released",
		zap.String("order_id", order.Id),
		zap.String("provider_id", order.ProviderId),
		zap.Int64("gross", order.TotalPrice),
		zap.Int64("fee", fee),
		zap.Int64("net", net),
		zap.String("rate", e.Rate(order.Category).String()))

	return outcome, nil
}
