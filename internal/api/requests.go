package api

import "time"

// PlaceOrderRequest creates a new order awaiting payment.
type PlaceOrderRequest struct {
	CustomerId  string    `json:"customer_id" validate:"required"`
	ProviderId  string    `json:"provider_id" validate:"required"`
	Category    string    `json:"category"`
	TotalPrice  int64     `json:"total_price" validate:"gte=0"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// StatusUpdateRequest drives one state-machine transition.
type StatusUpdateRequest struct {
	OrderId string `json:"order_id" validate:"required"`
	Status  string `json:"status" validate:"required,oneof=created awaiting_payment pending accepted en_route in_progress awaiting_confirmation settled cancelled"`
	Actor   string `json:"actor" validate:"required,oneof=customer provider system"`
	// Evidence is the proof-of-completion reference, required when
	// moving into awaiting_confirmation.
	Evidence string `json:"evidence"`
}

// ConfirmCompletionRequest is the customer's explicit confirmation plus
// the rating payload stored alongside it.
type ConfirmCompletionRequest struct {
	OrderId     string `json:"order_id" validate:"required"`
	Rating      int    `json:"rating" validate:"required,min=1,max=5"`
	Quality     int    `json:"quality" validate:"omitempty,min=1,max=5"`
	Punctuality int    `json:"punctuality" validate:"omitempty,min=1,max=5"`
	Comment     string `json:"comment"`
}

// WithdrawRequest debits a provider balance. Payout execution is the
// responsibility of an external collaborator.
type WithdrawRequest struct {
	ProviderId string `json:"provider_id" validate:"required"`
	Amount     int64  `json:"amount" validate:"required,gt=0"`
	Reference  string `json:"reference"`
}
