package models

import "time"

// OrderStatus is the closed set of order lifecycle states. Any status
// outside this enumeration is rejected at the boundary.
type OrderStatus string

const (
	StatusCreated              OrderStatus = "created"
	StatusAwaitingPayment      OrderStatus = "awaiting_payment"
	StatusPending              OrderStatus = "pending"
	StatusAccepted             OrderStatus = "accepted"
	StatusEnRoute              OrderStatus = "en_route"
	StatusInProgress           OrderStatus = "in_progress"
	StatusAwaitingConfirmation OrderStatus = "awaiting_confirmation"
	StatusSettled              OrderStatus = "settled"
	StatusCancelled            OrderStatus = "cancelled"
)

// Terminal reports whether no further transition may leave this status.
func (s OrderStatus) Terminal() bool {
	return s == StatusSettled || s == StatusCancelled
}

// Valid reports whether s is a member of the enumeration.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusCreated, StatusAwaitingPayment, StatusPending, StatusAccepted,
		StatusEnRoute, StatusInProgress, StatusAwaitingConfirmation,
		StatusSettled, StatusCancelled:
		return true
	}
	return false
}

// Actor identifies who is requesting a status transition.
type Actor string

const (
	ActorCustomer Actor = "customer"
	ActorProvider Actor = "provider"
	ActorSystem   Actor = "system"
)

// Order represents a single customer request for a service from one provider.
// TotalPrice is in integer minor currency units and immutable after creation.
type Order struct {
	Id          string      `db:"id"`
	CustomerId  string      `db:"customer_id"`
	ProviderId  string      `db:"provider_id"`
	Category    string      `db:"category"`
	TotalPrice  int64       `db:"total_price"`
	ScheduledAt time.Time   `db:"scheduled_at"`
	Status      OrderStatus `db:"status"`
	ProofRef    string      `db:"proof_ref"`
	// EvidenceAt is set when the order enters awaiting_confirmation and
	// drives the reaper's grace-period cutoff.
	EvidenceAt *time.Time `db:"evidence_at"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"`
}

// SettlementRecord is the immutable audit entry for a fund release.
// At most one record may ever exist per order id.
type SettlementRecord struct {
	Id          string    `db:"id"`
	OrderId     string    `db:"order_id"`
	ProviderId  string    `db:"provider_id"`
	GrossAmount int64     `db:"gross_amount"`
	FeeAmount   int64     `db:"fee_amount"`
	NetAmount   int64     `db:"net_amount"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

// ProviderBalance is the settled, withdrawable balance for one provider.
type ProviderBalance struct {
	ProviderId string    `db:"provider_id"`
	Balance    int64     `db:"balance"`
	Version    int64     `db:"version"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// StatusLogEntry is one line of an order's immutable status history.
type StatusLogEntry struct {
	Id        string      `db:"id"`
	OrderId   string      `db:"order_id"`
	Status    OrderStatus `db:"status"`
	Note      string      `db:"note"`
	CreatedAt time.Time   `db:"created_at"`
}

// Account is a user of the platform (customer or provider). PushToken is
// the opaque device token the notification gateway delivers to.
type Account struct {
	Id        string    `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Role      string    `db:"role"` // "customer" or "provider"
	PushToken string    `db:"push_token"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Review is the rating payload a customer submits when confirming completion.
type Review struct {
	Id          string    `db:"id"`
	OrderId     string    `db:"order_id"`
	CustomerId  string    `db:"customer_id"`
	ProviderId  string    `db:"provider_id"`
	Rating      int       `db:"rating"`
	Quality     int       `db:"quality"`
	Punctuality int       `db:"punctuality"`
	Comment     string    `db:"comment"`
	CreatedAt   time.Time `db:"created_at"`
}

// WithdrawalRecord is the audit entry for a balance debit. Withdrawal
// execution (bank transfer, e-wallet payout) lives outside this service;
// only the debit discipline is enforced here.
type WithdrawalRecord struct {
	Id         string    `db:"id"`
	ProviderId string    `db:"provider_id"`
	Amount     int64     `db:"amount"`
	Reference  string    `db:"reference"`
	CreatedAt  time.Time `db:"created_at"`
}
