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

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-escrow-go/internal/database"
	"marketplace-escrow-go/internal/models"
	"marketplace-escrow-go/internal/settlement"
	"marketplace-escrow-go/internal/store"

	"go.uber.org/zap"
)

// Sentinel errors for rejected transitions. Both are client errors; no
// retry will succeed without different input.
var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrMissingEvidence   = errors.New("missing proof of completion")
)

type edge struct {
	from models.OrderStatus
	to   models.OrderStatus
}

// transitions is the authoritative edge set: which status moves exist
// and which actor roles may drive each one. Anything absent here is
// rejected. Cancellation edges are handled separately because cancelled
// is reachable from every non-terminal state.
var transitions = map[edge][]models.Actor{
	{models.StatusCreated, models.StatusAwaitingPayment}:         {models.ActorSystem},
	{models.StatusCreated, models.StatusPending}:                 {models.ActorSystem},
	{models.StatusAwaitingPayment, models.StatusPending}:         {models.ActorSystem},
	{models.StatusPending, models.StatusAccepted}:                {models.ActorProvider},
	{models.StatusAccepted, models.StatusEnRoute}:                {models.ActorProvider},
	{models.StatusEnRoute, models.StatusInProgress}:              {models.ActorProvider},
	{models.StatusInProgress, models.StatusAwaitingConfirmation}: {models.ActorProvider},
	{models.StatusAwaitingConfirmation, models.StatusSettled}:    {models.ActorCustomer, models.ActorSystem},
}

func actorAllowed(actors []models.Actor, actor models.Actor) bool {
	for _, a := range actors {
		if a == actor {
			return true
		}
	}
	return false
}

// Result is what a successful transition produced. Settlement is non-nil
// only when the order moved into settled.
type Result struct {
	Order      *models.Order
	Settlement *settlement.Outcome
}

// Machine owns the order lifecycle: it validates every requested status
// change against the edge set and performs the change, the status-log
// append and (for settled) the fund release in one transaction.
type Machine struct {
	db     *database.Service
	store  store.EscrowStore
	engine *settlement.Engine
}

func NewMachine(db *database.Service, st store.EscrowStore, engine *settlement.Engine) *Machine {
	return &Machine{db: db, store: st, engine: engine}
}

// Transition moves the order to target on behalf of actor. Evidence is
// the proof-of-completion reference, required when entering
// awaiting_confirmation and ignored otherwise.
//
// A crash or failure anywhere rolls the whole transition back: the order
// can never be observed settled without the matching ledger mutation.
func (m *Machine) Transition(ctx context.Context, orderId string, target models.OrderStatus, actor models.Actor, evidence string) (*Result, error) {
	var result *Result
	err := m.db.WithTx(ctx, func(q store.DBTX) error {
		r, err := m.TransitionTx(ctx, q, orderId, target, actor, evidence)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if errors.Is(err, store.ErrDuplicateRecord) {
		// A concurrent release won the race and this transaction rolled
		// back. The order is settled; surface the benign outcome.
		return m.alreadySettledResult(ctx, orderId)
	}
	if err != nil {
		return nil, err
	}

	zap.L().Info("Order transitioned",
		zap.String("order_id", orderId),
		zap.String("status", string(target)),
		zap.String("actor", string(actor)))

	return result, nil
}

// TransitionTx validates and performs the transition inside the caller's
// transaction scope. Callers that need extra writes in the same atomic
// boundary (e.g. storing the review alongside a customer confirmation)
// compose them around this.
func (m *Machine) TransitionTx(ctx context.Context, q store.DBTX, orderId string, target models.OrderStatus, actor models.Actor, evidence string) (*Result, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, target)
	}

	order, err := m.store.GetOrder(ctx, q, orderId)
	if err != nil {
		return nil, err
	}

	if order.Status.Terminal() {
		return nil, fmt.Errorf("%w: order %s is already %s", ErrInvalidTransition, orderId, order.Status)
	}

	if target == models.StatusCancelled {
		// Reachable from any non-terminal state, by any actor.
	} else if actors, ok := transitions[edge{order.Status, target}]; !ok {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, target)
	} else if !actorAllowed(actors, actor) {
		return nil, fmt.Errorf("%w: %s may not move %s -> %s", ErrInvalidTransition, actor, order.Status, target)
	}

	if target == models.StatusAwaitingConfirmation {
		if evidence == "" {
			return nil, fmt.Errorf("%w: order %s", ErrMissingEvidence, orderId)
		}
		if err := m.store.SetOrderEvidence(ctx, q, orderId, evidence, time.Now().UTC()); err != nil {
			return nil, err
		}
	}

	if err := m.store.UpdateOrderStatus(ctx, q, orderId, target); err != nil {
		return nil, err
	}
	if err := m.store.AppendStatusLog(ctx, q, orderId, target, transitionNote(target, actor)); err != nil {
		return nil, err
	}

	var result Result
	if target == models.StatusSettled {
		outcome, err := m.engine.ReleaseTx(ctx, q, order)
		if err != nil {
			return nil, err
		}
		result.Settlement = outcome
	}

	updated, err := m.store.GetOrder(ctx, q, orderId)
	if err != nil {
		return nil, err
	}
	result.Order = updated
	return &result, nil
}

func (m *Machine) alreadySettledResult(ctx context.Context, orderId string) (*Result, error) {
	order, err := m.store.GetOrder(ctx, m.db.Querier(), orderId)
	if err != nil {
		return nil, err
	}
	fee, net := m.engine.Split(order.TotalPrice, order.Category)
	return &Result{
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

func transitionNote(target models.OrderStatus, actor models.Actor) string {
	if target == models.StatusSettled && actor == models.ActorSystem {
		return "Released automatically after confirmation timeout"
	}
	return fmt.Sprintf("Status updated by %s", actor)
}
