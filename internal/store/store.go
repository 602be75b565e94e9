package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"marketplace-escrow-go/internal/models"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrAccountNotFound   = errors.New("account not found")
	ErrDuplicateRecord   = errors.New("duplicate settlement record")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// DBTX is the ambient transaction scope every store operation runs in.
// The store never opens its own transactions; callers supply either a
// *sql.Tx (settlement, transitions) or the bare *sql.DB for reads.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CreateOrderParams contains the parameters for creating an order.
type CreateOrderParams struct {
	OrderId     string
	CustomerId  string
	ProviderId  string
	Category    string
	TotalPrice  int64
	ScheduledAt time.Time
	Status      models.OrderStatus
}

// InsertRecordParams contains the parameters for the settlement audit entry.
type InsertRecordParams struct {
	RecordId    string
	OrderId     string
	ProviderId  string
	GrossAmount int64
	FeeAmount   int64
	NetAmount   int64
	Description string
}

// EscrowStore defines the persistence contract the state machine,
// settlement engine and reaper consume.
type EscrowStore interface {
	// --- Orders ---
	CreateOrder(ctx context.Context, q DBTX, params CreateOrderParams) (*models.Order, error)
	GetOrder(ctx context.Context, q DBTX, orderId string) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, q DBTX, orderId string, status models.OrderStatus) error
	SetOrderEvidence(ctx context.Context, q DBTX, orderId, proofRef string, submittedAt time.Time) error
	AppendStatusLog(ctx context.Context, q DBTX, orderId string, status models.OrderStatus, note string) error
	GetStatusLog(ctx context.Context, q DBTX, orderId string) ([]models.StatusLogEntry, error)
	// ListOverdueConfirmations returns orders sitting in
	// awaiting_confirmation whose evidence was submitted before cutoff.
	ListOverdueConfirmations(ctx context.Context, q DBTX, cutoff time.Time) ([]models.Order, error)

	// --- Ledger ---
	GetBalance(ctx context.Context, q DBTX, providerId string) (int64, error)
	CreditBalance(ctx context.Context, q DBTX, providerId string, amount int64) error
	DebitBalance(ctx context.Context, q DBTX, providerId string, amount int64) error
	RecordExists(ctx context.Context, q DBTX, orderId string) (bool, error)
	InsertRecord(ctx context.Context, q DBTX, params InsertRecordParams) (*models.SettlementRecord, error)
	InsertWithdrawal(ctx context.Context, q DBTX, providerId string, amount int64, reference string) error

	ListSettlementRecords(ctx context.Context, q DBTX, providerId string, limit int) ([]models.SettlementRecord, error)

	// --- Accounts / reviews ---
	GetAccount(ctx context.Context, q DBTX, accountId string) (*models.Account, error)
	ListAccounts(ctx context.Context, q DBTX, role string) ([]models.Account, error)
	CreateAccount(ctx context.Context, q DBTX, id, name, email, role, pushToken string) (*models.Account, error)
	InsertReview(ctx context.Context, q DBTX, review models.Review) error
}
