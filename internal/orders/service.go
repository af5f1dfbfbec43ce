package orders

import (
	"context"
	stdErrors "errors"
	"fmt"

	"github.com/angelmondragon/stockledger-backend/internal/stock"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

// Service reacts to payment provider events. Both handlers are idempotent:
// webhooks are delivered at least once and may arrive out of order, so a
// repeat or a late event must not double-apply.
type Service struct {
	tx           stock.TxRunner
	repo         Repository
	stockManager *stock.Manager
	logg         *logger.Logger
}

// NewService wires the order lifecycle service.
func NewService(tx stock.TxRunner, repo Repository, stockManager *stock.Manager, logg *logger.Logger) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if stockManager == nil {
		return nil, fmt.Errorf("stock manager is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{tx: tx, repo: repo, stockManager: stockManager, logg: logg}, nil
}

// HandlePaymentSucceeded moves the order to processing and records the paid
// amount. An unknown payment id is logged and swallowed: the provider may
// send events for payments that never produced an order here.
func (s *Service) HandlePaymentSucceeded(ctx context.Context, paymentID string, paidAmountCents *int) error {
	if paymentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByPaymentID(ctx, paymentID)
		if err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				s.logg.Warn(s.logg.WithField(ctx, "payment_id", paymentID),
					"payment succeeded for unknown order; ignoring")
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order by payment id")
		}

		if order.PaymentStatus == enums.PaymentStatusCompleted {
			return nil
		}

		paid := order.TotalCents
		if paidAmountCents != nil {
			paid = *paidAmountCents
		}

		updates := map[string]any{
			"payment_status":    enums.PaymentStatusCompleted,
			"paid_amount_cents": paid,
		}
		if order.Status == enums.OrderStatusPending {
			updates["status"] = enums.OrderStatusProcessing
		}
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating order after payment success")
		}

		lctx := s.logg.WithFields(ctx, map[string]any{
			"order_id":   order.ID.String(),
			"payment_id": paymentID,
			"paid":       paid,
		})
		s.logg.Info(lctx, "payment succeeded; order processing")
		return nil
	})
}

// HandlePaymentFailed marks the payment failed and releases every hold the
// order consumed at checkout that is still releasable. Holds that were
// already consumed, released or swept are skipped.
func (s *Service) HandlePaymentFailed(ctx context.Context, paymentID string, reason string) error {
	if paymentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByPaymentID(ctx, paymentID)
		if err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				s.logg.Warn(s.logg.WithField(ctx, "payment_id", paymentID),
					"payment failed for unknown order; ignoring")
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order by payment id")
		}

		if order.PaymentStatus == enums.PaymentStatusFailed {
			return nil
		}

		// Order status stays as-is; a failed payment only flips the
		// payment state and frees the holds. Cancellation is a separate,
		// explicit action.
		updates := map[string]any{"payment_status": enums.PaymentStatusFailed}
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating order after payment failure")
		}

		var combined error
		for _, reservationID := range order.ReservationIDs() {
			if err := s.stockManager.ReleaseTx(ctx, tx, reservationID); err != nil {
				if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeReservationState {
					continue
				}
				combined = multierr.Append(combined, err)
			}
		}
		if combined != nil {
			return combined
		}

		lctx := s.logg.WithFields(ctx, map[string]any{
			"order_id":   order.ID.String(),
			"payment_id": paymentID,
			"reason":     reason,
		})
		s.logg.Info(lctx, "payment failed; holds released")
		return nil
	})
}
