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

const (
	// Account queries
	queryInsertAccount = `
		INSERT OR IGNORE INTO accounts (id, name, email, role, push_token) VALUES (?, ?, ?, ?, ?)`

	queryGetAccountById = `
		SELECT id, name, email, role, push_token, created_at, updated_at
		FROM accounts
		WHERE id = ?`

	queryCreateAccount = `
		INSERT INTO accounts (id, name, email, role, push_token)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id, name, email, role, push_token, created_at, updated_at`

	queryListAccountsByRole = `
		SELECT id, name, email, role, push_token, created_at, updated_at
		FROM accounts
		WHERE role = ?
		ORDER BY name`

	// Order queries
	queryInsertOrder = `
		INSERT INTO orders (id, customer_id, provider_id, category, total_price, scheduled_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id, customer_id, provider_id, category, total_price, scheduled_at, status,
		          proof_ref, evidence_at, created_at, updated_at`

	queryGetOrder = `
		SELECT id, customer_id, provider_id, category, total_price, scheduled_at, status,
		       proof_ref, evidence_at, created_at, updated_at
		FROM orders
		WHERE id = ?`

	queryUpdateOrderStatus = `
		UPDATE orders
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	querySetOrderEvidence = `
		UPDATE orders
		SET proof_ref = ?, evidence_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	queryListOverdueConfirmations = `
		SELECT id, customer_id, provider_id, category, total_price, scheduled_at, status,
		       proof_ref, evidence_at, created_at, updated_at
		FROM orders
		WHERE status = 'awaiting_confirmation'
		  AND evidence_at IS NOT NULL
		  AND evidence_at <= ?
		ORDER BY evidence_at`

	// Status log queries
	queryInsertStatusLog = `
		INSERT INTO order_status_logs (id, order_id, status, note) VALUES (?, ?, ?, ?)`

	queryGetStatusLog = `
		SELECT id, order_id, status, note, created_at
		FROM order_status_logs
		WHERE order_id = ?
		ORDER BY created_at, rowid`

	// Ledger queries
	queryGetProviderBalance = `
		SELECT balance
		FROM provider_balances
		WHERE provider_id = ?`

	queryCreditProviderBalance = `
		INSERT INTO provider_balances (provider_id, balance)
		VALUES (?, ?)
		ON CONFLICT(provider_id) DO UPDATE
		SET balance = balance + excluded.balance,
		    version = version + 1,
		    updated_at = CURRENT_TIMESTAMP`

	queryDebitProviderBalance = `
		UPDATE provider_balances
		SET balance = balance - ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE provider_id = ? AND balance >= ?`

	queryCheckRecordExists = `
		SELECT id FROM settlement_records WHERE order_id = ? LIMIT 1`

	queryInsertSettlementRecord = `
		INSERT INTO settlement_records (id, order_id, provider_id, gross_amount, fee_amount, net_amount, description)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id, order_id, provider_id, gross_amount, fee_amount, net_amount, description, created_at`

	queryInsertWithdrawal = `
		INSERT INTO withdrawals (id, provider_id, amount, reference) VALUES (?, ?, ?, ?)`

	queryListSettlementRecords = `
		SELECT id, order_id, provider_id, gross_amount, fee_amount, net_amount, description, created_at
		FROM settlement_records
		WHERE provider_id = ?
		ORDER BY created_at DESC
		LIMIT ?`

	// Review queries
	queryInsertReview = `
		INSERT INTO reviews (id, order_id, customer_id, provider_id, rating, quality, punctuality, comment)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
)
