package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketplace-escrow-go/internal/models"
	"marketplace-escrow-go/internal/store"
)

func TestCreateAndGetOrder(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	created := insertTestOrder(t, service, "order1", models.StatusAwaitingPayment)
	if created.Id != "order1" {
		t.Errorf("Expected order id order1, got %s", created.Id)
	}
	if created.Status != models.StatusAwaitingPayment {
		t.Errorf("Expected status awaiting_payment, got %s", created.Status)
	}
	if created.EvidenceAt != nil {
		t.Error("Expected no evidence timestamp on a new order")
	}

	fetched, err := service.GetOrder(context.Background(), service.Querier(), "order1")
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if fetched.TotalPrice != 100000 {
		t.Errorf("Expected total price 100000, got %d", fetched.TotalPrice)
	}
	if fetched.Category != "cleaning" {
		t.Errorf("Expected category cleaning, got %s", fetched.Category)
	}
}

func TestCreateOrder_RejectsNegativePrice(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := service.CreateOrder(context.Background(), service.Querier(), store.CreateOrderParams{
		OrderId:    "order1",
		CustomerId: "customer1",
		ProviderId: "provider1",
		TotalPrice: -1,
		Status:     models.StatusCreated,
	})
	if err == nil {
		t.Fatal("Expected error for negative price, got nil")
	}
}

func TestCreateOrder_RejectsUnknownStatus(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := service.CreateOrder(context.Background(), service.Querier(), store.CreateOrderParams{
		OrderId:    "order1",
		CustomerId: "customer1",
		ProviderId: "provider1",
		TotalPrice: 100,
		Status:     models.OrderStatus("paused"),
	})
	if err == nil {
		t.Fatal("Expected error for unknown status, got nil")
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := service.GetOrder(context.Background(), service.Querier(), "missing")
	if !errors.Is(err, store.ErrOrderNotFound) {
		t.Fatalf("Expected ErrOrderNotFound, got %v", err)
	}
}

func TestUpdateOrderStatus(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	insertTestOrder(t, service, "order1", models.StatusPending)

	if err := service.UpdateOrderStatus(ctx, service.Querier(), "order1", models.StatusAccepted); err != nil {
		t.Fatalf("UpdateOrderStatus failed: %v", err)
	}

	order, err := service.GetOrder(ctx, service.Querier(), "order1")
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if order.Status != models.StatusAccepted {
		t.Errorf("Expected status accepted, got %s", order.Status)
	}
}

func TestUpdateOrderStatus_NotFound(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	err := service.UpdateOrderStatus(context.Background(), service.Querier(), "missing", models.StatusAccepted)
	if !errors.Is(err, store.ErrOrderNotFound) {
		t.Fatalf("Expected ErrOrderNotFound, got %v", err)
	}
}

func TestSetOrderEvidence(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	insertTestOrder(t, service, "order1", models.StatusInProgress)

	submittedAt := time.Now().UTC().Truncate(time.Second)
	if err := service.SetOrderEvidence(ctx, service.Querier(), "order1", "photo://proof-1", submittedAt); err != nil {
		t.Fatalf("SetOrderEvidence failed: %v", err)
	}

	order, err := service.GetOrder(ctx, service.Querier(), "order1")
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if order.ProofRef != "photo://proof-1" {
		t.Errorf("Expected proof ref photo://proof-1, got %s", order.ProofRef)
	}
	if order.EvidenceAt == nil {
		t.Fatal("Expected evidence timestamp to be set")
	}
	if !order.EvidenceAt.Equal(submittedAt) {
		t.Errorf("Expected evidence at %v, got %v", submittedAt, order.EvidenceAt)
	}
}

func TestStatusLog_AppendAndGet(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	insertTestOrder(t, service, "order1", models.StatusPending)

	if err := service.AppendStatusLog(ctx, service.Querier(), "order1", models.StatusPending, "Order placed"); err != nil {
		t.Fatalf("AppendStatusLog failed: %v", err)
	}
	if err := service.AppendStatusLog(ctx, service.Querier(), "order1", models.StatusAccepted, "Status updated by provider"); err != nil {
		t.Fatalf("AppendStatusLog failed: %v", err)
	}

	entries, err := service.GetStatusLog(ctx, service.Querier(), "order1")
	if err != nil {
		t.Fatalf("GetStatusLog failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Status != models.StatusPending {
		t.Errorf("Expected first entry pending, got %s", entries[0].Status)
	}
	if entries[1].Note != "Status updated by provider" {
		t.Errorf("Unexpected second entry note: %s", entries[1].Note)
	}
}

func TestListOverdueConfirmations(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC()

	// Overdue: evidence submitted 25 hours ago.
	insertTestOrder(t, service, "overdue", models.StatusAwaitingConfirmation)
	if err := service.SetOrderEvidence(ctx, service.Querier(), "overdue", "proof", now.Add(-25*time.Hour)); err != nil {
		t.Fatalf("SetOrderEvidence failed: %v", err)
	}

	// Recent: evidence submitted one hour ago.
	insertTestOrder(t, service, "recent", models.StatusAwaitingConfirmation)
	if err := service.SetOrderEvidence(ctx, service.Querier(), "recent", "proof", now.Add(-time.Hour)); err != nil {
		t.Fatalf("SetOrderEvidence failed: %v", err)
	}

	// Wrong status: old evidence but already settled.
	insertTestOrder(t, service, "settled", models.StatusSettled)
	if err := service.SetOrderEvidence(ctx, service.Querier(), "settled", "proof", now.Add(-48*time.Hour)); err != nil {
		t.Fatalf("SetOrderEvidence failed: %v", err)
	}

	cutoff := now.Add(-24 * time.Hour)
	overdue, err := service.ListOverdueConfirmations(ctx, service.Querier(), cutoff)
	if err != nil {
		t.Fatalf("ListOverdueConfirmations failed: %v", err)
	}
	if len(overdue) != 1 {
		t.Fatalf("Expected 1 overdue order, got %d", len(overdue))
	}
	if overdue[0].Id != "overdue" {
		t.Errorf("Expected order overdue, got %s", overdue[0].Id)
	}
}

func TestAccounts_CreateGetList(t *testing.T) {
	service, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	_, err := service.CreateAccount(ctx, service.Querier(), "acc1", "Bob's Cleaning", "bob@example.com", "provider", "token-1")
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	account, err := service.GetAccount(ctx, service.Querier(), "acc1")
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if account.Role != "provider" {
		t.Errorf("Expected role provider, got %s", account.Role)
	}
	if account.PushToken != "token-1" {
		t.Errorf("Expected push token token-1, got %s", account.PushToken)
	}

	_, err = service.GetAccount(ctx, service.Querier(), "missing")
	if !errors.Is(err, store.ErrAccountNotFound) {
		t.Fatalf("Expected ErrAccountNotFound, got %v", err)
	}

	providers, err := service.ListAccounts(ctx, service.Querier(), "provider")
	if err != nil {
		t.Fatalf("ListAccounts failed: %v", err)
	}
	if len(providers) != 1 {
		t.Errorf("Expected 1 provider, got %d", len(providers))
	}

	customers, err := service.ListAccounts(ctx, service.Querier(), "customer")
	if err != nil {
		t.Fatalf("ListAccounts failed: %v", err)
	}
	if len(customers) != 0 {
		t.Errorf("Expected 0 customers, got %d", len(customers))
	}
}
