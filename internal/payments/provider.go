package payments

import (
	"context"

	"github.com/angelmondragon/stockledger-backend/pkg/enums"
)

// Intent is the provider's view of a payment at lookup time.
type Intent struct {
	ID       string
	Status   enums.PaymentStatus
	Amount   int
	Currency string
	Raw      map[string]any
}

// Provider looks up payment intents at an external processor. Checkout only
// needs the status; charging, refunds and capture live with the processor.
type Provider interface {
	GetPaymentStatus(ctx context.Context, intentID string) (*Intent, error)
}
