package settlement

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"marketplace-escrow-go/internal/database"
	"marketplace-escrow-go/internal/models"
	"marketplace-escrow-go/internal/store"

	"github.com/shopspring/decimal"
)

func newTestService(t *testing.T) *database.Service {
	t.Helper()

	service, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:            filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
		PingTimeout:     5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to initialize database service: %v", err)
	}
	t.Cleanup(service.Close)
	return service
}

func newTestEngine(t *testing.T, service *database.Service, rate string, schedule map[string]decimal.Decimal) *Engine {
	t.Helper()

	engine, err := NewEngine(service, service, decimal.RequireFromString(rate), schedule)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return engine
}

func insertOrder(t *testing.T, service *database.Service, orderId string, status models.OrderStatus, price int64, category string) {
	t.Helper()

	_, err := service.CreateOrder(context.Background(), service.Querier(), store.CreateOrderParams{
		OrderId:     orderId,
		CustomerId:  "customer1",
		ProviderId:  "provider1",
		Category:    category,
		TotalPrice:  price,
		ScheduledAt: time.Now().UTC(),
		Status:      status,
	})
	if err != nil {
		t.Fatalf("Failed to insert order: %v", err)
	}
}

func TestNewEngine_RejectsInvalidRate(t *testing.T) {
	service := newTestService(t)

	for _, rate := range []string{"-0.1", "1", "1.5"} {
		_, err := NewEngine(service, service, decimal.RequireFromString(rate), nil)
		if err == nil {
			t.Errorf("Expected error for rate %s, got nil", rate)
		}
	}

	badSchedule := map[string]decimal.Decimal{"plumbing": decimal.RequireFromString("2")}
	_, err := NewEngine(service, service, decimal.RequireFromString("0.30"), badSchedule)
	if err == nil {
		t.Error("Expected error for invalid schedule rate, got nil")
	}
}

func TestSplit_FlooringFavorsProvider(t *testing.T) {
	service := newTestService(t)
	engine := newTestEngine(t, service, "0.30", nil)

	tests := []struct {
		gross       int64
		expectedFee int64
		expectedNet int64
	}{
		{100000, 30000, 70000},
		{100, 30, 70},
		{101, 30, 71},
		{1, 0, 1},
		{0, 0, 0},
	}

	for _, tt := range tests {
		fee, net := engine.Split(tt.gross, "")
		if fee != tt.expectedFee || net != tt.expectedNet {
			t.Errorf("Split(%d): expected fee=%d net=%d, got fee=%d net=%d",
				tt.gross, tt.expectedFee, tt.expectedNet, fee, net)
		}
		if fee+net != tt.gross {
			t.Errorf("Split(%d): fee+net=%d does not conserve gross", tt.gross, fee+net)
		}
	}
}

func TestRate_CategoryOverride(t *testing.T) {
	service := newTestService(t)
	schedule := map[string]decimal.Decimal{"gardening": decimal.RequireFromString("0.15")}
	engine := newTestEngine(t, service, "0.30", schedule)

	if got := engine.Rate("gardening"); !got.Equal(decimal.RequireFromString("0.15")) {
		t.Errorf("Expected override rate 0.15, got %s", got.String())
	}
	if got := engine.Rate("cleaning"); !got.Equal(decimal.RequireFromString("0.30")) {
		t.Errorf("Expected default rate 0.30, got %s", got.String())
	}

	fee, net := engine.Split(10000, "gardening")
	if fee != 1500 || net != 8500 {
		t.Errorf("Expected fee=1500 net=8500, got fee=%d net=%d", fee, net)
	}
}

func TestRelease_HappyPath(t *testing.T) {
	service := newTestService(t)
	engine := newTestEngine(t, service, "0.30", nil)
	ctx := context.Background()

	insertOrder(t, service, "order1", models.StatusAwaitingConfirmation, 100000, "")

	outcome, err := engine.Release(ctx, "order1")
	if err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if outcome.AlreadySettled {
		t.Error("Expected fresh settlement, got AlreadySettled")
	}
	if outcome.FeeAmount != 30000 || outcome.NetAmount != 70000 {
		t.Errorf("Expected fee=30000 net=70000, got fee=%d net=%d", outcome.FeeAmount, outcome.NetAmount)
	}

	balance, err := service.GetBalance(ctx, service.Querier(), "provider1")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance != 70000 {
		t.Errorf("Expected balance 70000, got %d", balance)
	}

	order, err := service.GetOrder(ctx, service.Querier(), "order1")
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if order.Status != models.StatusSettled {
		t.Errorf("Expected status settled, got %s", order.Status)
	}

	exists, err := service.RecordExists(ctx, service.Querier(), "order1")
	if err != nil {
		t.Fatalf("RecordExists failed: %v", err)
	}
	if !exists {
		t.Error("Expected settlement record after release")
	}

	entries, err := service.GetStatusLog(ctx, service.Querier(), "order1")
	if err != nil {
		t.Fatalf("GetStatusLog failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Note != "Funds released to provider" {
		t.Errorf("Unexpected status log: %+v", entries)
	}
}

func TestRelease_SecondCallIsBenign(t *testing.T) {
	service := newTestService(t)
	engine := newTestEngine(t, service, "0.30", nil)
	ctx := context.Background()

	insertOrder(t, service, "order1", models.StatusAwaitingConfirmation, 100000, "")

	if _, err := engine.Release(ctx, "order1"); err != nil {
		t.Fatalf("First release failed: %v", err)
	}

	outcome, err := engine.Release(ctx, "order1")
	if err != nil {
		t.Fatalf("Second release failed: %v", err)
	}
	if !outcome.AlreadySettled {
		t.Error("Expected AlreadySettled on second release")
	}

	// The ledger must reflect exactly one credit.
	balance, err := service.GetBalance(ctx, service.Querier(), "provider1")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance != 70000 {
		t.Errorf("Expected balance 70000 after duplicate release, got %d", balance)
	}
}

func TestRelease_OrderNotFound(t *testing.T) {
	service := newTestService(t)
	engine := newTestEngine(t, service, "0.30", nil)

	_, err := engine.Release(context.Background(), "missing")
	if !errors.Is(err, store.ErrOrderNotFound) {
		t.Fatalf("Expected ErrOrderNotFound, got %v", err)
	}
}

func TestRelease_NotEligible(t *testing.T) {
	service := newTestService(t)
	engine := newTestEngine(t, service, "0.30", nil)
	ctx := context.Background()

	for _, status := range []models.OrderStatus{models.StatusPending, models.StatusInProgress, models.StatusCancelled} {
		orderId := "order-" + string(status)
		insertOrder(t, service, orderId, status, 100000, "")

		_, err := engine.Release(ctx, orderId)
		if !errors.Is(err, ErrOrderNotEligible) {
			t.Errorf("Status %s: expected ErrOrderNotEligible, got %v", status, err)
		}
	}

	balance, err := service.GetBalance(ctx, service.Querier(), "provider1")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance != 0 {
		t.Errorf("Expected no credits from ineligible releases, got balance %d", balance)
	}
}

func TestRelease_ConcurrentCallersCreditOnce(t *testing.T) {
	service := newTestService(t)
	engine := newTestEngine(t, service, "0.30", nil)
	ctx := context.Background()

	insertOrder(t, service, "order1", models.StatusAwaitingConfirmation, 100000, "")

	const callers = 4
	var wg sync.WaitGroup
	var successes int
	var mu sync.Mutex

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := engine.Release(ctx, "order1"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes == 0 {
		t.Fatal("Expected at least one release to succeed")
	}

	balance, err := service.GetBalance(ctx, service.Querier(), "provider1")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance != 70000 {
		t.Errorf("Expected exactly one credit of 70000, got balance %d", balance)
	}
}
