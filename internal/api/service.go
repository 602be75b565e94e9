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

package api

import (
	"context"
	"errors"
	"fmt"

	"marketplace-escrow-go/internal/database"
	"marketplace-escrow-go/internal/lifecycle"
	"marketplace-escrow-go/internal/models"
	"marketplace-escrow-go/internal/notify"
	"marketplace-escrow-go/internal/settlement"
	"marketplace-escrow-go/internal/store"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderService is the inbound boundary the request layer calls. It
// validates payloads, drives the state machine and engine, and fires
// best-effort notifications after commits.
type OrderService struct {
	db       *database.Service
	store    store.EscrowStore
	machine  *lifecycle.Machine
	engine   *settlement.Engine
	notifier notify.Gateway
	validate *validator.Validate
}

func NewOrderService(db *database.Service, st store.EscrowStore, machine *lifecycle.Machine, engine *settlement.Engine, notifier notify.Gateway) *OrderService {
	return &OrderService{
		db:       db,
		store:    st,
		machine:  machine,
		engine:   engine,
		notifier: notifier,
		validate: validator.New(),
	}
}

// PlaceOrder creates a new order in awaiting_payment and writes its first
// status-log entry in the same transaction.
func (s *OrderService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*models.Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid place order request: %w", err)
	}

	var order *models.Order
	err := s.db.WithTx(ctx, func(q store.DBTX) error {
		created, err := s.store.CreateOrder(ctx, q, store.CreateOrderParams{
			OrderId:     uuid.New().String(),
			CustomerId:  req.CustomerId,
			ProviderId:  req.ProviderId,
			Category:    req.Category,
			TotalPrice:  req.TotalPrice,
			ScheduledAt: req.ScheduledAt,
			Status:      models.StatusAwaitingPayment,
		})
		if err != nil {
			return err
		}
		order = created
		return s.store.AppendStatusLog(ctx, q, created.Id, created.Status, "Order placed")
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// PaymentConfirmed is the inbound edge for a "payment confirmed" event
// from the payment collaborator: the order becomes visible to the
// provider as pending work.
func (s *OrderService) PaymentConfirmed(ctx context.Context, orderId string) (*lifecycle.Result, error) {
	result, err := s.machine.Transition(ctx, orderId, models.StatusPending, models.ActorSystem, "")
	if err != nil {
		return nil, err
	}

	s.notifyCustomer(ctx, result.Order, "Payment confirmed", fmt.Sprintf("Your order #%s is now waiting for the provider.", orderId))
	return result, nil
}

// SubmitStatusUpdate drives one transition on behalf of a customer,
// provider or system caller.
func (s *OrderService) SubmitStatusUpdate(ctx context.Context, req StatusUpdateRequest) (*lifecycle.Result, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid status update request: %w", err)
	}

	result, err := s.machine.Transition(ctx, req.OrderId,
		models.OrderStatus(req.Status), models.Actor(req.Actor), req.Evidence)
	if err != nil {
		return nil, err
	}

	s.notifyCustomer(ctx, result.Order, "Order update",
		fmt.Sprintf("Your order status is now: %s", result.Order.Status))
	if result.Settlement != nil && !result.Settlement.AlreadySettled {
		s.notifyProviderSettled(ctx, result.Order, result.Settlement.NetAmount)
	}

	return result, nil
}

// ConfirmCompletion settles the order on the customer's behalf and stores
// the review in the same transaction as the settlement, so a rollback
// discards both.
func (s *OrderService) ConfirmCompletion(ctx context.Context, req ConfirmCompletionRequest) (*lifecycle.Result, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid confirm completion request: %w", err)
	}

	var result *lifecycle.Result
	err := s.db.WithTx(ctx, func(q store.DBTX) error {
		r, err := s.machine.TransitionTx(ctx, q, req.OrderId, models.StatusSettled, models.ActorCustomer, "")
		if err != nil {
			return err
		}
		result = r

		quality, punctuality := req.Quality, req.Punctuality
		if quality == 0 {
			quality = 5
		}
		if punctuality == 0 {
			punctuality = 5
		}
		return s.store.InsertReview(ctx, q, models.Review{
			Id:          uuid.New().String(),
			OrderId:     r.Order.Id,
			CustomerId:  r.Order.CustomerId,
			ProviderId:  r.Order.ProviderId,
			Rating:      req.Rating,
			Quality:     quality,
			Punctuality: punctuality,
			Comment:     req.Comment,
		})
	})
	if errors.Is(err, store.ErrDuplicateRecord) {
		// Raced against the reaper (or a duplicate confirmation). The
		// order is settled; the duplicate's review is discarded with
		// the rolled-back transaction.
		zap.L().Info("Confirmation raced a concurrent release",
			zap.String("order_id", req.OrderId))
		order, gerr := s.store.GetOrder(ctx, s.db.Querier(), req.OrderId)
		if gerr != nil {
			return nil, gerr
		}
		fee, net := s.engine.Split(order.TotalPrice, order.Category)
		return &lifecycle.Result{
			Order: order,
			Settlement: &settlement.Outcome{
				OrderId:        order.Id,
				ProviderId:     order.ProviderId,
				GrossAmount:    order.TotalPrice,
				FeeAmount:      fee,
				NetAmount:      net,
				AlreadySettled: true,
			},
		}, nil
	}
	if err != nil {
		return nil, err
	}

	if result.Settlement != nil && !result.Settlement.AlreadySettled {
		s.notifyProviderSettled(ctx, result.Order, result.Settlement.NetAmount)
	}

	return result, nil
}

// Withdraw debits a provider balance under the same atomicity discipline
// as settlement credits: debit and audit entry commit together.
func (s *OrderService) Withdraw(ctx context.Context, req WithdrawRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("invalid withdraw request: %w", err)
	}

	return s.db.WithTx(ctx, func(q store.DBTX) error {
		if err := s.store.DebitBalance(ctx, q, req.ProviderId, req.Amount); err != nil {
			return err
		}
		return s.store.InsertWithdrawal(ctx, q, req.ProviderId, req.Amount, req.Reference)
	})
}

// Release exposes the settlement engine's manual path (operator tooling).
func (s *OrderService) Release(ctx context.Context, orderId string) (*settlement.Outcome, error) {
	return s.engine.Release(ctx, orderId)
}

func (s *OrderService) GetProviderBalance(ctx context.Context, providerId string) (int64, error) {
	return s.store.GetBalance(ctx, s.db.Querier(), providerId)
}

func (s *OrderService) GetOrder(ctx context.Context, orderId string) (*models.Order, error) {
	return s.store.GetOrder(ctx, s.db.Querier(), orderId)
}

func (s *OrderService) GetStatusHistory(ctx context.Context, orderId string) ([]models.StatusLogEntry, error) {
	return s.store.GetStatusLog(ctx, s.db.Querier(), orderId)
}

func (s *OrderService) notifyCustomer(ctx context.Context, order *models.Order, title, body string) {
	s.push(ctx, order.CustomerId, title, body, map[string]string{"order_id": order.Id})
}

func (s *OrderService) notifyProviderSettled(ctx context.Context, order *models.Order, net int64) {
	s.push(ctx, order.ProviderId, "Funds released",
		fmt.Sprintf("Order #%s settled. %d credited to your balance.", order.Id, net),
		map[string]string{"order_id": order.Id})
}

// push delivers a best-effort notification; failures are logged and
// swallowed, never surfaced to the caller.
func (s *OrderService) push(ctx context.Context, accountId, title, body string, data map[string]string) {
	if s.notifier == nil {
		return
	}

	account, err := s.store.GetAccount(ctx, s.db.Querier(), accountId)
	if err != nil {
		zap.L().Warn("Cannot notify, account lookup failed",
			zap.String("account_id", accountId),
			zap.Error(err))
		return
	}

	if err := s.notifier.Push(ctx, account.PushToken, title, body, data); err != nil {
		zap.L().Warn("Notification failed",
			zap.String("account_id", accountId),
			zap.String("title", title),
			zap.Error(err))
	}
}
