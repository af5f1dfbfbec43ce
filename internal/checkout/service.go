package checkout

import (
	"context"
	stdErrors "errors"
	"fmt"
	"sort"
	"time"

	"github.com/angelmondragon/stockledger-backend/internal/cart"
	"github.com/angelmondragon/stockledger-backend/internal/orders"
	"github.com/angelmondragon/stockledger-backend/internal/payments"
	"github.com/angelmondragon/stockledger-backend/internal/stock"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
	"github.com/angelmondragon/stockledger-backend/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service runs the payment-first checkout: no order row, stock change or cart
// mutation happens until the payment provider confirms the intent is payable,
// and everything after that point commits or rolls back as one transaction.
type Service struct {
	tx            stock.TxRunner
	cartRepo      cart.Repository
	cartValidator *cart.Validator
	stockRepo     stock.Repository
	stockManager  *stock.Manager
	orderRepo     orders.Repository
	provider      payments.Provider
	addresses     *AddressValidator
	logg          *logger.Logger
	now           func() time.Time
}

// CreateOrderInput carries everything checkout needs for one order.
type CreateOrderInput struct {
	CartID          uuid.UUID
	SessionID       string
	UserID          *uuid.UUID
	PaymentIntentID string
	PaymentMethod   enums.PaymentMethod
	ShippingAddress *types.ShippingAddress
}

// NewService wires the checkout service.
func NewService(
	tx stock.TxRunner,
	cartRepo cart.Repository,
	cartValidator *cart.Validator,
	stockRepo stock.Repository,
	stockManager *stock.Manager,
	orderRepo orders.Repository,
	provider payments.Provider,
	addresses *AddressValidator,
	logg *logger.Logger,
) (*Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner is required")
	}
	if cartRepo == nil || cartValidator == nil {
		return nil, fmt.Errorf("cart repository and validator are required")
	}
	if stockRepo == nil || stockManager == nil {
		return nil, fmt.Errorf("stock repository and manager are required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("order repository is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("payment provider is required")
	}
	if addresses == nil {
		return nil, fmt.Errorf("address validator is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{
		tx:            tx,
		cartRepo:      cartRepo,
		cartValidator: cartValidator,
		stockRepo:     stockRepo,
		stockManager:  stockManager,
		orderRepo:     orderRepo,
		provider:      provider,
		addresses:     addresses,
		logg:          logg,
		now:           time.Now,
	}, nil
}

// CreateOrderFromCart validates payment, address and cart, then creates the
// order, consumes or decrements stock per line and finalizes the cart, all in
// one transaction. Lines are processed in ascending product id order so
// concurrent checkouts acquire product row locks in the same sequence.
func (s *Service) CreateOrderFromCart(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.PaymentIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodePaymentNotFound, "payment intent id is required")
	}
	if input.SessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	intent, err := s.provider.GetPaymentStatus(ctx, input.PaymentIntentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentNotFound, err,
			fmt.Sprintf("payment %s could not be verified", input.PaymentIntentID))
	}
	if !intent.Status.Payable() {
		return nil, pkgerrors.New(pkgerrors.CodePaymentNotFound,
			fmt.Sprintf("payment %s is not payable (status %s)", input.PaymentIntentID, intent.Status))
	}

	if fieldErrors := s.addresses.Validate(input.ShippingAddress); len(fieldErrors) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is invalid").
			WithDetails(fieldErrors)
	}

	method := input.PaymentMethod
	if method == "" {
		method = enums.PaymentMethodCard
	}
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown payment method %q", method))
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		order, txErr = s.createOrderTx(ctx, tx, input, method)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	lctx := s.logg.WithFields(ctx, map[string]any{
		"order_id":   order.ID.String(),
		"payment_id": order.PaymentID,
		"session_id": order.SessionID,
		"total":      order.TotalCents,
	})
	s.logg.Info(lctx, "order created from cart")
	return order, nil
}

func (s *Service) createOrderTx(ctx context.Context, tx *gorm.DB, input CreateOrderInput, method enums.PaymentMethod) (*models.Order, error) {
	cartRepo := s.cartRepo.WithTx(tx)
	stockRepo := s.stockRepo.WithTx(tx)
	orderRepo := s.orderRepo.WithTx(tx)

	basket, err := cartRepo.FindWithItems(ctx, input.CartID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("cart %s not found", input.CartID))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart")
	}
	if basket.Status != enums.CartStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cart %s is %s", basket.ID, basket.Status))
	}

	validation, err := s.cartValidator.WithProducts(stockRepo).ValidateForCheckout(ctx, basket)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "validating cart")
	}
	if !validation.Valid {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart failed checkout validation").
			WithDetails(validation)
	}

	lines := make([]models.CartItem, len(basket.Items))
	copy(lines, basket.Items)
	// Canonical lock order: ascending product id.
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].ProductID.String() < lines[j].ProductID.String()
	})

	orderID := uuid.New()
	items := make([]models.OrderItem, 0, len(lines))
	total := 0
	for _, line := range lines {
		product, err := stockRepo.FindProduct(ctx, line.ProductID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product for order line")
		}
		lineTotal := product.PriceCents * line.Quantity
		items = append(items, models.OrderItem{
			ID:             uuid.New(),
			OrderID:        orderID,
			ProductID:      product.ID,
			Name:           product.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: product.PriceCents,
			TotalCents:     lineTotal,
		})
		total += lineTotal
	}

	order := &models.Order{
		ID:              orderID,
		OrderNumber:     s.now().UnixNano(),
		SessionID:       input.SessionID,
		UserID:          input.UserID,
		PaymentID:       input.PaymentIntentID,
		PaymentMethod:   method,
		Status:          enums.OrderStatusPending,
		PaymentStatus:   enums.PaymentStatusPending,
		TotalCents:      total,
		Metadata:        types.JSONMap{},
		ShippingAddress: input.ShippingAddress,
		Items:           items,
	}
	if err := orderRepo.Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating order")
	}

	reservationIDs := make([]string, 0, len(lines))
	for _, line := range lines {
		reservation, err := s.stockManager.ActiveReservationTx(ctx, tx, input.SessionID, line.ProductID)
		if err != nil {
			return nil, err
		}

		if reservation != nil {
			if reservation.Quantity == line.Quantity {
				if err := s.stockManager.ConvertToSaleTx(ctx, tx, reservation.ID, orderID); err != nil {
					return nil, err
				}
				reservationIDs = append(reservationIDs, reservation.ID.String())
				continue
			}
			// The line quantity changed after the hold was placed. Drop the
			// stale hold so it stops depressing availability, then fall
			// through to a direct decrement.
			if err := s.stockManager.ReleaseTx(ctx, tx, reservation.ID); err != nil {
				return nil, err
			}
		}

		// No usable hold: decrement directly under the row lock.
		if err := s.stockManager.DecrementTx(ctx, tx, stock.AdjustInput{
			ProductID:   line.ProductID,
			Quantity:    line.Quantity,
			OrderID:     &orderID,
			Reason:      fmt.Sprintf("checkout for order %s without active reservation", orderID),
			PerformedBy: input.UserID,
		}); err != nil {
			return nil, err
		}
	}

	metadata := types.JSONMap{models.MetadataKeyReservationIDs: reservationIDs}
	if err := orderRepo.Update(ctx, orderID, map[string]any{"metadata": metadata}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "storing reservation metadata")
	}
	order.Metadata = metadata

	if err := cartRepo.MarkConverted(ctx, basket.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "finalizing cart")
	}

	return order, nil
}
