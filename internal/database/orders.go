package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"marketplace-escrow-go/internal/models"
	"marketplace-escrow-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func scanOrder(row interface {
	Scan(dest ...any) error
}) (*models.Order, error) {
	var order models.Order
	var scheduledAt sql.NullTime
	var evidenceAt sql.NullTime
	err := row.Scan(&order.Id, &order.CustomerId, &order.ProviderId, &order.Category,
		&order.TotalPrice, &scheduledAt, &order.Status,
		&order.ProofRef, &evidenceAt, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if scheduledAt.Valid {
		order.ScheduledAt = scheduledAt.Time
	}
	if evidenceAt.Valid {
		t := evidenceAt.Time
		order.EvidenceAt = &t
	}
	return &order, nil
}

// CreateOrder inserts a new order. The total price is immutable from here on.
func (s *Service) CreateOrder(ctx context.Context, q store.DBTX, params store.CreateOrderParams) (*models.Order, error) {
	if params.TotalPrice < 0 {
		return nil, fmt.Errorf("total price cannot be negative, got %d", params.TotalPrice)
	}
	if !params.Status.Valid() {
		return nil, fmt.Errorf("invalid initial status %q", params.Status)
	}

	order, err := scanOrder(q.QueryRowContext(ctx, queryInsertOrder,
		params.OrderId, params.CustomerId, params.ProviderId, params.Category,
		params.TotalPrice, params.ScheduledAt, string(params.Status)))
	if err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	zap.L().Info("Order created",
		zap.String("order_id", order.Id),
		zap.String("customer_id", order.CustomerId),
		zap.String("provider_id", order.ProviderId),
		zap.Int64("total_price", order.TotalPrice),
		zap.String("status", string(order.Status)))

	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, q store.DBTX, orderId string) (*models.Order, error) {
	order, err := scanOrder(q.QueryRowContext(ctx, queryGetOrder, orderId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrOrderNotFound, orderId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

func (s *Service) UpdateOrderStatus(ctx context.Context, q store.DBTX, orderId string, status models.OrderStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}

	result, err := q.ExecContext(ctx, queryUpdateOrderStatus, string(status), orderId)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", store.ErrOrderNotFound, orderId)
	}
	return nil
}

// SetOrderEvidence stores the proof-of-completion reference and stamps the
// moment it was submitted, which starts the confirmation grace period.
func (s *Service) SetOrderEvidence(ctx context.Context, q store.DBTX, orderId, proofRef string, submittedAt time.Time) error {
	result, err := q.ExecContext(ctx, querySetOrderEvidence, proofRef, submittedAt, orderId)
	if err != nil {
		return fmt.Errorf("failed to set order evidence: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", store.ErrOrderNotFound, orderId)
	}
	return nil
}

func (s *Service) AppendStatusLog(ctx context.Context, q store.DBTX, orderId string, status models.OrderStatus, note string) error {
	_, err := q.ExecContext(ctx, queryInsertStatusLog, uuid.New().String(), orderId, string(status), note)
	if err != nil {
		return fmt.Errorf("failed to append status log: %w", err)
	}
	return nil
}

func (s *Service) GetStatusLog(ctx context.Context, q store.DBTX, orderId string) ([]models.StatusLogEntry, error) {
	rows, err := q.QueryContext(ctx, queryGetStatusLog, orderId)
	if err != nil {
		return nil, fmt.Errorf("failed to get status log: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var entries []models.StatusLogEntry
	for rows.Next() {
		var entry models.StatusLogEntry
		if err := rows.Scan(&entry.Id, &entry.OrderId, &entry.Status, &entry.Note, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status log entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status log rows: %w", err)
	}
	return entries, nil
}

// ListOverdueConfirmations returns orders stuck in awaiting_confirmation
// whose evidence was submitted at or before cutoff, oldest first.
func (s *Service) ListOverdueConfirmations(ctx context.Context, q store.DBTX, cutoff time.Time) ([]models.Order, error) {
	rows, err := q.QueryContext(ctx, queryListOverdueConfirmations, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue confirmations: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var orders []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order rows: %w", err)
	}
	return orders, nil
}
