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

package database

import (
	"context"
	"database/sql"
	"fmt"

	"marketplace-escrow-go/internal/models"
	"marketplace-escrow-go/internal/store"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.EscrowStore.
var _ store.EscrowStore = (*Service)(nil)

type Service struct {
	db *sql.DB
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_cache_size=1000")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db}
	if err := service.initSchema(cfg.SeedDemoAccounts); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

// Querier returns the bare connection for single-statement reads that do
// not need a surrounding transaction.
func (s *Service) Querier() store.DBTX {
	return s.db
}

// WithTx runs fn inside one database transaction. Any error triggers a
// full rollback; the ledger must never observe a partial settlement.
func (s *Service) WithTx(ctx context.Context, fn func(q store.DBTX) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Service) initSchema(seedDemoAccounts bool) error {
	schema := `
	-- Accounts: customers and providers
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL DEFAULT 'customer',
		push_token TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_email ON accounts(email);
	CREATE INDEX IF NOT EXISTS idx_accounts_role ON accounts(role);

	-- Orders: one row per customer order, status-driven lifecycle
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		provider_id TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		total_price INTEGER NOT NULL CHECK (total_price >= 0),
		scheduled_at TIMESTAMP,
		status TEXT NOT NULL,
		proof_ref TEXT NOT NULL DEFAULT '',
		evidence_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
	CREATE INDEX IF NOT EXISTS idx_orders_provider ON orders(provider_id);
	CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_id);
	-- The reaper's sweep query filters on status + evidence age
	CREATE INDEX IF NOT EXISTS idx_orders_status_evidence ON orders(status, evidence_at);

	-- Immutable status history, appended in the same transaction as the
	-- status change itself
	CREATE TABLE IF NOT EXISTS order_status_logs (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		status TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_status_logs_order ON order_status_logs(order_id);

	-- Settlement records: append-only audit trail. The unique index on
	-- order_id is the last-resort race closer for concurrent releases.
	CREATE TABLE IF NOT EXISTS settlement_records (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		provider_id TEXT NOT NULL,
		gross_amount INTEGER NOT NULL CHECK (gross_amount >= 0),
		fee_amount INTEGER NOT NULL CHECK (fee_amount >= 0),
		net_amount INTEGER NOT NULL CHECK (net_amount >= 0),
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_settlement_records_order_id ON settlement_records(order_id);
	CREATE INDEX IF NOT EXISTS idx_settlement_records_provider ON settlement_records(provider_id);

	-- Provider balances: hot data, mutated only by atomic increments
	CREATE TABLE IF NOT EXISTS provider_balances (
		provider_id TEXT PRIMARY KEY,
		balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Withdrawals: debit audit trail (payout execution is external)
	CREATE TABLE IF NOT EXISTS withdrawals (
		id TEXT PRIMARY KEY,
		provider_id TEXT NOT NULL,
		amount INTEGER NOT NULL CHECK (amount > 0),
		reference TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_withdrawals_provider ON withdrawals(provider_id);

	-- Reviews: one per order, written on customer confirmation
	CREATE TABLE IF NOT EXISTS reviews (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL UNIQUE,
		customer_id TEXT NOT NULL,
		provider_id TEXT NOT NULL,
		rating INTEGER NOT NULL,
		quality INTEGER NOT NULL DEFAULT 5,
		punctuality INTEGER NOT NULL DEFAULT 5,
		comment TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return err
	}

	// Insert demo accounts for local testing if configured to do so
	if seedDemoAccounts {
		accounts := []struct {
			id   string
			name string
			mail string
			role string
		}{
			{uuid.New().String(), "Alice Johnson", "alice.johnson@example.com", "customer"},
			{uuid.New().String(), "Bob's Cleaning Service", "bob.smith@example.com", "provider"},
			{uuid.New().String(), "Carol Williams", "carol.williams@example.com", "customer"},
		}

		for _, a := range accounts {
			_, err := s.db.Exec(queryInsertAccount, a.id, a.name, a.mail, a.role, "")
			if err != nil {
				zap.L().Error("Failed to insert demo account", zap.String("name", a.name), zap.Error(err))
			} else {
				zap.L().Info("Demo account created", zap.String("id", a.id), zap.String("name", a.name), zap.String("role", a.role))
			}
		}
	} else {
		zap.L().Info("Skipping demo account creation (SEED_DEMO_ACCOUNTS=false)")
	}

	return nil
}
