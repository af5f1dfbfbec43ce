package controllers

import (
	"net/http"

	"github.com/angelmondragon/stockledger-backend/api/responses"
	"github.com/angelmondragon/stockledger-backend/api/validators"
	ordersvc "github.com/angelmondragon/stockledger-backend/internal/orders"
	"github.com/angelmondragon/stockledger-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
)

const (
	eventPaymentSucceeded = "payment.succeeded"
	eventPaymentFailed    = "payment.failed"
)

type paymentWebhookRequest struct {
	EventID   string `json:"event_id" validate:"required"`
	Type      string `json:"type" validate:"required,oneof=payment.succeeded payment.failed"`
	PaymentID string `json:"payment_id" validate:"required"`
	Amount    *int   `json:"amount_cents,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// PaymentWebhook receives provider payment events. Deliveries are at least
// once; the guard short-circuits repeats and is unmarked on handler failure
// so the provider's retry can reprocess.
func PaymentWebhook(svc *ordersvc.Service, guard *payments.IdempotencyGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload paymentWebhookRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		seen, err := guard.CheckAndMark(r.Context(), payload.EventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency check failed"))
			return
		}
		if seen {
			responses.WriteSuccess(w, map[string]any{"status": "duplicate", "event_id": payload.EventID})
			return
		}

		switch payload.Type {
		case eventPaymentSucceeded:
			err = svc.HandlePaymentSucceeded(r.Context(), payload.PaymentID, payload.Amount)
		case eventPaymentFailed:
			err = svc.HandlePaymentFailed(r.Context(), payload.PaymentID, payload.Reason)
		}
		if err != nil {
			if delErr := guard.Delete(r.Context(), payload.EventID); delErr != nil {
				logg.Error(r.Context(), "failed to unmark webhook event", delErr)
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"status": "processed", "event_id": payload.EventID})
	}
}
