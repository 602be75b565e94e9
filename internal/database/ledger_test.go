package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"marketplace-escrow-go/internal/models"
	"marketplace-escrow-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) (*Service, func()) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// An in-memory database exists per connection; keep the pool at one.
	db.SetMaxOpenConns(1)

	service := &Service{db: db}
	if err := service.initSchema(false); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	cleanup := func() {
		db.Close()
	}

	return service, cleanup
}

func insertTestOrder(t *testing.T, service *Service, orderId string, status models.OrderStatus) *models.Order {
	t.Helper()

	order, err := service.CreateOrder(context.Background(), service.Querier(), store.CreateOrderParams{
		OrderId:     orderId,
		CustomerId:  "customer1",
		ProviderId:  "provider1",
		Category:    "cleaning",
		TotalPrice:  100000,
		ScheduledAt: time.Now().UTC(),
		Status:      status,
	})
	if err != nil {
		t.Fatalf("Failed to insert test order: %v", err)
	}
	return order
}

func TestGetBalance_NoBalance(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	balance, err := service.GetBalance(context.Background(), service.Querier(), "provider1")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance != 0 {
		t.Errorf("Expected balance 0, got %d", balance)
	}
}

func TestCreditBalance_CreatesAndIncrements(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := service.CreditBalance(ctx, service.Querier(), "provider1", 70000); err != nil {
		t.Fatalf("First credit failed: %v", err)
	}
	if err := service.CreditBalance(ctx, service.Querier(), "provider1", 30000); err != nil {
		t.Fatalf("Second credit failed: %v", err)
	}

	balance, err := service.GetBalance(ctx, service.Querier(), "provider1")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance != 100000 {
		t.Errorf("Expected balance 100000, got %d", balance)
	}
}

func TestCreditBalance_RejectsNegativeAmount(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	err := service.CreditBalance(context.Background(), service.Querier(), "provider1", -1)
	if err == nil {
		t.Fatal("Expected error for negative credit, got nil")
	}
}

func TestDebitBalance_Success(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := service.CreditBalance(ctx, service.Querier(), "provider1", 50000); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if err := service.DebitBalance(ctx, service.Querier(), "provider1", 20000); err != nil {
		t.Fatalf("Debit failed: %v", err)
	}

	balance, err := service.GetBalance(ctx, service.Querier(), "provider1")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance != 30000 {
		t.Errorf("Expected balance 30000, got %d", balance)
	}
}

func TestDebitBalance_InsufficientFunds(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := service.CreditBalance(ctx, service.Querier(), "provider1", 100); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	err := service.DebitBalance(ctx, service.Querier(), "provider1", 101)
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("Expected ErrInsufficientFunds, got %v", err)
	}

	// The failed debit must not have touched the balance.
	balance, err := service.GetBalance(ctx, service.Querier(), "provider1")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance != 100 {
		t.Errorf("Expected balance 100, got %d", balance)
	}
}

func TestDebitBalance_NeverCredited(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	err := service.DebitBalance(context.Background(), service.Querier(), "ghost", 1)
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("Expected ErrInsufficientFunds, got %v", err)
	}
}

func TestRecordExists(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	exists, err := service.RecordExists(ctx, service.Querier(), "order1")
	if err != nil {
		t.Fatalf("RecordExists failed: %v", err)
	}
	if exists {
		t.Error("Expected no record before insert")
	}

	_, err = service.InsertRecord(ctx, service.Querier(), store.InsertRecordParams{
		RecordId:    "record1",
		OrderId:     "order1",
		ProviderId:  "provider1",
		GrossAmount: 100000,
		FeeAmount:   30000,
		NetAmount:   70000,
		Description: "Earnings for order #order1",
	})
	if err != nil {
		t.Fatalf("InsertRecord failed: %v", err)
	}

	exists, err = service.RecordExists(ctx, service.Querier(), "order1")
	if err != nil {
		t.Fatalf("RecordExists failed: %v", err)
	}
	if !exists {
		t.Error("Expected record after insert")
	}
}

func TestInsertRecord_DuplicateOrderId(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	params := store.InsertRecordParams{
		RecordId:    "record1",
		OrderId:     "order1",
		ProviderId:  "provider1",
		GrossAmount: 100000,
		FeeAmount:   30000,
		NetAmount:   70000,
	}

	if _, err := service.InsertRecord(ctx, service.Querier(), params); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	params.RecordId = "record2"
	_, err := service.InsertRecord(ctx, service.Querier(), params)
	if !errors.Is(err, store.ErrDuplicateRecord) {
		t.Fatalf("Expected ErrDuplicateRecord, got %v", err)
	}
}

func TestInsertRecord_UnbalancedAmounts(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := service.InsertRecord(context.Background(), service.Querier(), store.InsertRecordParams{
		RecordId:    "record1",
		OrderId:     "order1",
		ProviderId:  "provider1",
		GrossAmount: 100000,
		FeeAmount:   30000,
		NetAmount:   60000,
	})
	if err == nil {
		t.Fatal("Expected error for unbalanced amounts, got nil")
	}
}

func TestListSettlementRecords(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	for _, orderId := range []string{"order1", "order2"} {
		_, err := service.InsertRecord(ctx, service.Querier(), store.InsertRecordParams{
			RecordId:    "record-" + orderId,
			OrderId:     orderId,
			ProviderId:  "provider1",
			GrossAmount: 1000,
			FeeAmount:   300,
			NetAmount:   700,
		})
		if err != nil {
			t.Fatalf("InsertRecord failed: %v", err)
		}
	}

	records, err := service.ListSettlementRecords(ctx, service.Querier(), "provider1", 10)
	if err != nil {
		t.Fatalf("ListSettlementRecords failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("Expected 2 records, got %d", len(records))
	}

	records, err = service.ListSettlementRecords(ctx, service.Querier(), "other", 10)
	if err != nil {
		t.Fatalf("ListSettlementRecords failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected 0 records for other provider, got %d", len(records))
	}
}

func TestInsertWithdrawal(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	err := service.InsertWithdrawal(context.Background(), service.Querier(), "provider1", 5000, "payout-42")
	if err != nil {
		t.Fatalf("InsertWithdrawal failed: %v", err)
	}
}
