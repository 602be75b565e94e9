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
	"errors"
	"fmt"

	"marketplace-escrow-go/internal/models"
	"marketplace-escrow-go/internal/store"
)

func (s *Service) GetAccount(ctx context.Context, q store.DBTX, accountId string) (*models.Account, error) {
	var account models.Account
	err := q.QueryRowContext(ctx, queryGetAccountById, accountId).
		Scan(&account.Id, &account.Name, &account.Email, &account.Role,
			&account.PushToken, &account.CreatedAt, &account.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrAccountNotFound, accountId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

func (s *Service) CreateAccount(ctx context.Context, q store.DBTX, id, name, email, role, pushToken string) (*models.Account, error) {
	var account models.Account
	err := q.QueryRowContext(ctx, queryCreateAccount, id, name, email, role, pushToken).
		Scan(&account.Id, &account.Name, &account.Email, &account.Role,
			&account.PushToken, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return &account, nil
}

func (s *Service) ListAccounts(ctx context.Context, q store.DBTX, role string) ([]models.Account, error) {
	rows, err := q.QueryContext(ctx, queryListAccountsByRole, role)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var account models.Account
		err := rows.Scan(&account.Id, &account.Name, &account.Email, &account.Role,
			&account.PushToken, &account.CreatedAt, &account.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (s *Service) InsertReview(ctx context.Context, q store.DBTX, review models.Review) error {
	_, err := q.ExecContext(ctx, queryInsertReview,
		review.Id, review.OrderId, review.CustomerId, review.ProviderId,
		review.Rating, review.Quality, review.Punctuality, review.Comment)
	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}
