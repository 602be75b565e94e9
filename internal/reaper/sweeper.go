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

package reaper

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"marketplace-escrow-go/internal/database"
	"marketplace-escrow-go/internal/lifecycle"
	"marketplace-escrow-go/internal/models"
	"marketplace-escrow-go/internal/notify"
	"marketplace-escrow-go/internal/store"

	"go.uber.org/zap"
)

// Settler is the transition path the sweeper drives; *lifecycle.Machine
// satisfies it. The sweeper always uses the same path a customer
// confirmation would, never a shortcut into the ledger.
type Settler interface {
	Transition(ctx context.Context, orderId string, target models.OrderStatus, actor models.Actor, evidence string) (*lifecycle.Result, error)
}

// SweeperConfig contains configuration for Sweeper
type SweeperConfig struct {
	DbService     *database.Service
	Store         store.EscrowStore
	Settler       Settler
	Notifier      notify.Gateway
	GracePeriod   time.Duration
	SweepInterval time.Duration
}

// Sweeper force-settles orders whose customer never confirmed completion.
// It is the liveness guarantee: every order that reaches
// awaiting_confirmation reaches settled within grace period + interval.
type Sweeper struct {
	db       *database.Service
	store    store.EscrowStore
	settler  Settler
	notifier notify.Gateway

	gracePeriod   time.Duration
	sweepInterval time.Duration

	stopChan chan struct{}
	doneChan chan struct{}
}

func NewSweeper(cfg SweeperConfig) *Sweeper {
	return &Sweeper{
		db:            cfg.DbService,
		store:         cfg.Store,
		settler:       cfg.Settler,
		notifier:      cfg.Notifier,
		gracePeriod:   cfg.GracePeriod,
		sweepInterval: cfg.SweepInterval,
		stopChan:      make(chan struct{}),
		doneChan:      make(chan struct{}),
	}
}

// Start begins the periodic sweep.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.gracePeriod <= 0 {
		return fmt.Errorf("grace period must be positive, got %v", s.gracePeriod)
	}
	if s.sweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %v", s.sweepInterval)
	}

	go s.sweepLoop(ctx)

	zap.L().Info("Timeout sweeper started",
		zap.Duration("grace_period", s.gracePeriod),
		zap.Duration("sweep_interval", s.sweepInterval))

	return nil
}

// Stop gracefully stops the sweeper. An in-flight per-order settlement
// finishes; it either commits or rolls back whole.
func (s *Sweeper) Stop() {
	zap.L().Info("Stopping timeout sweeper")
	close(s.stopChan)
	<-s.doneChan
	zap.L().Info("Timeout sweeper stopped")
}

func (s *Sweeper) sweepLoop(ctx context.Context) {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	s.SweepOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.SweepOnce(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// SweepOnce settles every order whose confirmation grace period has
// elapsed. Each order is its own transaction: one failure is logged and
// skipped, the rest of the sweep continues. Failed orders are retried
// automatically on the next tick.
func (s *Sweeper) SweepOnce(ctx context.Context) (settled, failed int) {
	cutoff := time.Now().UTC().Add(-s.gracePeriod)

	overdue, err := s.store.ListOverdueConfirmations(ctx, s.db.Querier(), cutoff)
	if err != nil {
		zap.L().Error("Sweep query failed", zap.Error(err))
		return 0, 0
	}

	if len(overdue) == 0 {
		zap.L().Debug("No overdue confirmations", zap.Time("cutoff", cutoff))
		return 0, 0
	}

	zap.L().Info("Sweeping overdue confirmations",
		zap.Int("count", len(overdue)),
		zap.Time("cutoff", cutoff))

	for _, order := range overdue {
		result, err := s.settler.Transition(ctx, order.Id, models.StatusSettled, models.ActorSystem, "")
		if err != nil {
			failed++
			zap.L().Error("Failed to auto-settle order",
				zap.String("order_id", order.Id),
				zap.Error(err))
			continue
		}

		settled++
		if result.Settlement != nil && !result.Settlement.AlreadySettled {
			zap.L().Info("Order auto-settled",
				zap.String("order_id", order.Id),
				zap.String("provider_id", order.ProviderId),
				zap.Int64("net", result.Settlement.NetAmount))
			s.notifyProvider(ctx, order, result.Settlement.NetAmount)
		}
	}

	return settled, failed
}

// notifyProvider pushes a best-effort "funds released" message. Delivery
// failure never affects the committed settlement.
func (s *Sweeper) notifyProvider(ctx context.Context, order models.Order, net int64) {
	if s.notifier == nil {
		return
	}

	account, err := s.store.GetAccount(ctx, s.db.Querier(), order.ProviderId)
	if err != nil {
		zap.L().Warn("Cannot notify provider, account lookup failed",
			zap.String("provider_id", order.ProviderId),
			zap.Error(err))
		return
	}

	err = s.notifier.Push(ctx, account.PushToken,
		"Funds released",
		fmt.Sprintf("Order #%s settled automatically. %s credited to your balance.", order.Id, strconv.FormatInt(net, 10)),
		map[string]string{"order_id": order.Id})
	if err != nil {
		zap.L().Warn("Provider notification failed",
			zap.String("provider_id", order.ProviderId),
			zap.Error(err))
	}
}
