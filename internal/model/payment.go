package model

import "time"

type PaymentMethod string

const (
	PaymentMethodMock   PaymentMethod = "mock"
	PaymentMethodCard   PaymentMethod = "card" // braintree nonce
	PaymentMethodPaypal PaymentMethod = "paypal"
)

// PaymentDetails is entered by the visitor for a single submission and is
// never persisted.
type PaymentDetails struct {
	Method         PaymentMethod `json:"method"`
	CardholderName string        `json:"cardholder_name,omitempty"`
	Email          string        `json:"email,omitempty"`
	Nonce          string        `json:"nonce,omitempty"`
	PaypalOrderID  string        `json:"paypal_order_id,omitempty"`
}

type PaymentResult struct {
	Success       bool      `json:"success"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Message       string    `json:"message"`
	Provider      string    `json:"provider,omitempty"`
	ProcessedAt   time.Time `json:"processed_at"`
}
