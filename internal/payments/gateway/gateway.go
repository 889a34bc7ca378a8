// Package gateway provides the payment gateway integration: intent creation
// and retrieval against a Stripe-style card processing API.
package gateway

import "context"

// Intent statuses reported by the gateway.
const (
	IntentPending   = "pending"
	IntentSucceeded = "succeeded"
	IntentFailed    = "failed"
	IntentCanceled  = "canceled"
)

// Intent is a payment intent held by the gateway.
type Intent struct {
	ID            string
	ClientSecret  string
	Status        string
	TransactionID string
}

// CreateIntentParams describes a new payment intent. Amount is in minor
// currency units.
type CreateIntentParams struct {
	Amount   int64
	Currency string
	Metadata map[string]string
}

// Gateway is the contract the payment coordinator needs from the processor.
type Gateway interface {
	CreateIntent(ctx context.Context, params CreateIntentParams) (Intent, error)
	RetrieveIntent(ctx context.Context, id string) (Intent, error)
}
