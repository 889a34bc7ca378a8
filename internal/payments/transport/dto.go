package transport

import "github.com/google/uuid"

// InitializePaymentResponse returns the client-side handle for a freshly
// created payment intent.
type InitializePaymentResponse struct {
	RequestID    uuid.UUID `json:"requestId"`
	IntentID     string    `json:"intentId"`
	ClientSecret string    `json:"clientSecret"`
	Amount       int64     `json:"amount"`
	Currency     string    `json:"currency"`
}

// ConfirmPaymentRequest asks the platform to re-check an intent with the
// gateway, for clients that confirmed synchronously.
type ConfirmPaymentRequest struct {
	IntentID string `json:"intentId" validate:"required,min=1,max=200"`
}

// PaymentStatusResponse reflects the payment columns of a request.
type PaymentStatusResponse struct {
	RequestID     uuid.UUID `json:"requestId"`
	PaymentStatus string    `json:"paymentStatus"`
	PaymentState  string    `json:"paymentState"`
	Amount        *int64    `json:"amount,omitempty"`
	TransactionID *string   `json:"transactionId,omitempty"`
	PaymentDate   *string   `json:"paymentDate,omitempty"`
}

// WebhookEvent is the gateway's callback payload.
type WebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		IntentID      string `json:"intentId"`
		TransactionID string `json:"transactionId"`
	} `json:"data"`
}
