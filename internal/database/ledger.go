package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"marketplace-escrow-go/internal/models"
	"marketplace-escrow-go/internal/store"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// GetBalance returns the provider's settled balance. A missing row means
// the provider has never been credited and reads as zero.
func (s *Service) GetBalance(ctx context.Context, q store.DBTX, providerId string) (int64, error) {
	var balance int64
	err := q.QueryRowContext(ctx, queryGetProviderBalance, providerId).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// CreditBalance atomically increments the provider balance, creating the
// row on first settlement. The increment happens in SQL, never as an
// application-level read-modify-write.
func (s *Service) CreditBalance(ctx context.Context, q store.DBTX, providerId string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("credit amount cannot be negative, got %d", amount)
	}

	_, err := q.ExecContext(ctx, queryCreditProviderBalance, providerId, amount)
	if err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}

	zap.L().Info("Provider balance credited",
		zap.String("provider_id", providerId),
		zap.Int64("amount", amount))
	return nil
}

// DebitBalance atomically decrements the provider balance, bounded by the
// funds available. Zero rows affected means the balance was too low (or
// the provider has never been credited).
func (s *Service) DebitBalance(ctx context.Context, q store.DBTX, providerId string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("debit amount must be positive, got %d", amount)
	}

	result, err := q.ExecContext(ctx, queryDebitProviderBalance, amount, providerId, amount)
	if err != nil {
		return fmt.Errorf("failed to debit balance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: provider %s, amount %d", store.ErrInsufficientFunds, providerId, amount)
	}

	zap.L().Info("Provider balance debited",
		zap.String("provider_id", providerId),
		zap.Int64("amount", amount))
	return nil
}

// RecordExists reports whether a settlement record already exists for the
// order. Settlement state is only ever inferred from this structural
// check, never from description text.
func (s *Service) RecordExists(ctx context.Context, q store.DBTX, orderId string) (bool, error) {
	var id string
	err := q.QueryRowContext(ctx, queryCheckRecordExists, orderId).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check settlement record: %w", err)
	}
	return true, nil
}

// InsertRecord appends the settlement audit entry. The unique index on
// order_id converts a lost race into ErrDuplicateRecord, which callers
// treat as an already-settled outcome.
func (s *Service) InsertRecord(ctx context.Context, q store.DBTX, params store.InsertRecordParams) (*models.SettlementRecord, error) {
	if params.GrossAmount != params.FeeAmount+params.NetAmount {
		return nil, fmt.Errorf("settlement amounts do not balance: gross=%d fee=%d net=%d",
			params.GrossAmount, params.FeeAmount, params.NetAmount)
	}

	var record models.SettlementRecord
	err := q.QueryRowContext(ctx, queryInsertSettlementRecord,
		params.RecordId, params.OrderId, params.ProviderId,
		params.GrossAmount, params.FeeAmount, params.NetAmount, params.Description).
		Scan(&record.Id, &record.OrderId, &record.ProviderId,
			&record.GrossAmount, &record.FeeAmount, &record.NetAmount,
			&record.Description, &record.CreatedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return nil, fmt.Errorf("%w: order %s", store.ErrDuplicateRecord, params.OrderId)
		}
		return nil, fmt.Errorf("failed to insert settlement record: %w", err)
	}

	zap.L().Info("Settlement record inserted",
		zap.String("record_id", record.Id),
		zap.String("order_id", record.OrderId),
		zap.String("provider_id", record.ProviderId),
		zap.Int64("gross", record.GrossAmount),
		zap.Int64("fee", record.FeeAmount),
		zap.Int64("net", record.NetAmount))

	return &record, nil
}

// ListSettlementRecords returns the provider's most recent settlements.
func (s *Service) ListSettlementRecords(ctx context.Context, q store.DBTX, providerId string, limit int) ([]models.SettlementRecord, error) {
	rows, err := q.QueryContext(ctx, queryListSettlementRecords, providerId, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlement records: %w", err)
	}
	defer rows.Close()

	var records []models.SettlementRecord
	for rows.Next() {
		var record models.SettlementRecord
		err := rows.Scan(&record.Id, &record.OrderId, &record.ProviderId,
			&record.GrossAmount, &record.FeeAmount, &record.NetAmount,
			&record.Description, &record.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// InsertWithdrawal appends the debit audit entry for a withdrawal.
func (s *Service) InsertWithdrawal(ctx context.Context, q store.DBTX, providerId string, amount int64, reference string) error {
	_, err := q.ExecContext(ctx, queryInsertWithdrawal, uuid.New().String(), providerId, amount, reference)
	if err != nil {
		return fmt.Errorf("failed to insert withdrawal: %w", err)
	}
	return nil
}
