package stock

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/angelmondragon/stockledger-backend/pkg/config"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
	"github.com/angelmondragon/stockledger-backend/pkg/metrics"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TxRunner executes a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Manager is the single authority over stock counts. Every mutation happens
// under a row lock on the product and appends exactly one ledger entry.
// RESERVE and RELEASE never change products.stock; DECREMENT and INCREMENT
// always change it by exactly the logged delta.
type Manager struct {
	tx      TxRunner
	repo    Repository
	logg    *logger.Logger
	metrics *metrics.StockOpMetrics
	ttl     time.Duration
	now     func() time.Time
}

// ReserveInput describes one hold request.
type ReserveInput struct {
	ProductID uuid.UUID
	Quantity  int
	SessionID string
	UserID    *uuid.UUID
	// TTL overrides the configured reservation lifetime when positive.
	TTL time.Duration
}

// AdjustInput describes a direct stock decrement or increment.
type AdjustInput struct {
	ProductID   uuid.UUID
	Quantity    int
	OrderID     *uuid.UUID
	Reason      string
	PerformedBy *uuid.UUID
}

// Availability is the read-side view of a product's stock position.
type Availability struct {
	ProductID uuid.UUID `json:"product_id"`
	Stock     int       `json:"stock"`
	Reserved  int       `json:"reserved"`
	Available int       `json:"available"`
}

// NewManager wires the stock manager.
func NewManager(tx TxRunner, repo Repository, logg *logger.Logger, stockMetrics *metrics.StockOpMetrics, cfg config.StockConfig) (*Manager, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Manager{
		tx:      tx,
		repo:    repo,
		logg:    logg,
		metrics: stockMetrics,
		ttl:     cfg.ReservationTTL(),
		now:     time.Now,
	}, nil
}

// WithClock overrides the time source. Tests use this to move reservations
// past their expiry without sleeping.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	if now != nil {
		m.now = now
	}
	return m
}

// Reserve places a hold in its own transaction.
func (m *Manager) Reserve(ctx context.Context, input ReserveInput) (*models.StockReservation, error) {
	var reservation *models.StockReservation
	err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		reservation, txErr = m.ReserveTx(ctx, tx, input)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return reservation, nil
}

// ReserveTx places a hold inside the caller's transaction. Availability is
// computed as stock minus the sum of active holds, under a product row lock,
// so concurrent requests cannot oversell.
func (m *Manager) ReserveTx(ctx context.Context, tx *gorm.DB, input ReserveInput) (*models.StockReservation, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.SessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	repo := m.repo.WithTx(tx)
	now := m.now()

	product, err := repo.FindProductForUpdate(ctx, input.ProductID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			m.count(enums.StockOperationReserve, "not_found")
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", input.ProductID))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product")
	}

	reserved, err := repo.SumActiveReservations(ctx, product.ID, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "summing active reservations")
	}

	available := product.Stock - reserved
	if available < input.Quantity {
		m.count(enums.StockOperationReserve, "insufficient_stock")
		m.shortfall(enums.StockOperationReserve)
		return nil, pkgerrors.InsufficientStock(product.ID, available, input.Quantity)
	}

	ttl := input.TTL
	if ttl <= 0 {
		ttl = m.ttl
	}

	reservation := &models.StockReservation{
		ID:        uuid.New(),
		ProductID: product.ID,
		Quantity:  input.Quantity,
		SessionID: input.SessionID,
		UserID:    input.UserID,
		ExpiresAt: now.Add(ttl),
	}
	if err := repo.CreateReservation(ctx, reservation); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating reservation")
	}

	entry := &models.StockLog{
		ID:            uuid.New(),
		ProductID:     product.ID,
		Operation:     enums.StockOperationReserve,
		QuantityDelta: -input.Quantity,
		StockBefore:   product.Stock,
		StockAfter:    product.Stock,
		Reason:        fmt.Sprintf("reservation %s created for session %s", reservation.ID, input.SessionID),
		PerformedBy:   input.UserID,
	}
	if err := repo.CreateLog(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "writing reserve log")
	}

	m.count(enums.StockOperationReserve, "ok")
	lctx := m.logg.WithFields(ctx, map[string]any{
		"product_id":     product.ID.String(),
		"reservation_id": reservation.ID.String(),
		"quantity":       input.Quantity,
	})
	m.logg.Info(lctx, "stock reserved")
	return reservation, nil
}

// Release frees a hold in its own transaction.
func (m *Manager) Release(ctx context.Context, reservationID uuid.UUID) error {
	return m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return m.ReleaseTx(ctx, tx, reservationID)
	})
}

// ReleaseTx marks a hold released inside the caller's transaction. The row is
// kept for audit; products.stock is untouched and the ledger entry records a
// zero net change.
func (m *Manager) ReleaseTx(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID) error {
	repo := m.repo.WithTx(tx)

	reservation, err := m.usableReservation(ctx, repo, reservationID, enums.StockOperationRelease)
	if err != nil {
		return err
	}

	now := m.now()
	if err := repo.UpdateReservation(ctx, reservation.ID, map[string]any{"released_at": now}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "releasing reservation")
	}

	product, err := repo.FindProduct(ctx, reservation.ProductID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product for release log")
	}

	entry := &models.StockLog{
		ID:            uuid.New(),
		ProductID:     reservation.ProductID,
		Operation:     enums.StockOperationRelease,
		QuantityDelta: reservation.Quantity,
		StockBefore:   product.Stock,
		StockAfter:    product.Stock,
		Reason:        fmt.Sprintf("reservation %s released", reservation.ID),
		PerformedBy:   reservation.UserID,
	}
	if err := repo.CreateLog(ctx, entry); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "writing release log")
	}

	m.count(enums.StockOperationRelease, "ok")
	m.logg.Info(m.logg.WithField(ctx, "reservation_id", reservation.ID.String()), "reservation released")
	return nil
}

// ReleaseExpiredTx is the sweeper's release path. Unlike ReleaseTx it is
// idempotent: a hold that was consumed or already released between the sweep
// query and the row lock is skipped without error.
func (m *Manager) ReleaseExpiredTx(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID) (bool, error) {
	repo := m.repo.WithTx(tx)

	reservation, err := repo.FindReservationForUpdate(ctx, reservationID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading reservation")
	}
	if reservation.Consumed || reservation.ReleasedAt != nil {
		return false, nil
	}

	now := m.now()
	if err := repo.UpdateReservation(ctx, reservation.ID, map[string]any{"released_at": now}); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "releasing expired reservation")
	}

	product, err := repo.FindProduct(ctx, reservation.ProductID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product for sweep log")
	}

	entry := &models.StockLog{
		ID:            uuid.New(),
		ProductID:     reservation.ProductID,
		Operation:     enums.StockOperationRelease,
		QuantityDelta: reservation.Quantity,
		StockBefore:   product.Stock,
		StockAfter:    product.Stock,
		Reason:        fmt.Sprintf("reservation %s expired", reservation.ID),
		PerformedBy:   reservation.UserID,
	}
	if err := repo.CreateLog(ctx, entry); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "writing expiry log")
	}

	m.count(enums.StockOperationRelease, "expired")
	return true, nil
}

// ConvertToSale turns a hold into a sale in its own transaction.
func (m *Manager) ConvertToSale(ctx context.Context, reservationID, orderID uuid.UUID) error {
	return m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return m.ConvertToSaleTx(ctx, tx, reservationID, orderID)
	})
}

// ConvertToSaleTx consumes a hold and decrements physical stock inside the
// caller's transaction. Stock sufficiency is re-validated under the product
// row lock even though the hold guaranteed it earlier.
func (m *Manager) ConvertToSaleTx(ctx context.Context, tx *gorm.DB, reservationID, orderID uuid.UUID) error {
	repo := m.repo.WithTx(tx)

	reservation, err := m.usableReservation(ctx, repo, reservationID, enums.StockOperationDecrement)
	if err != nil {
		return err
	}

	product, err := repo.FindProductForUpdate(ctx, reservation.ProductID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product")
	}
	if product.Stock < reservation.Quantity {
		m.count(enums.StockOperationDecrement, "insufficient_stock")
		m.shortfall(enums.StockOperationDecrement)
		return pkgerrors.InsufficientStock(product.ID, product.Stock, reservation.Quantity)
	}

	newStock := product.Stock - reservation.Quantity
	if err := repo.UpdateProductStock(ctx, product.ID, newStock); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrementing stock")
	}
	if err := repo.UpdateReservation(ctx, reservation.ID, map[string]any{
		"consumed": true,
		"order_id": orderID,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "consuming reservation")
	}

	entry := &models.StockLog{
		ID:            uuid.New(),
		ProductID:     product.ID,
		OrderID:       &orderID,
		Operation:     enums.StockOperationDecrement,
		QuantityDelta: -reservation.Quantity,
		StockBefore:   product.Stock,
		StockAfter:    newStock,
		Reason:        fmt.Sprintf("reservation %s converted to sale for order %s", reservation.ID, orderID),
		PerformedBy:   reservation.UserID,
	}
	if err := repo.CreateLog(ctx, entry); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "writing conversion log")
	}

	m.count(enums.StockOperationDecrement, "ok")
	lctx := m.logg.WithFields(ctx, map[string]any{
		"reservation_id": reservation.ID.String(),
		"order_id":       orderID.String(),
		"quantity":       reservation.Quantity,
	})
	m.logg.Info(lctx, "reservation converted to sale")
	return nil
}

// Decrement lowers physical stock in its own transaction.
func (m *Manager) Decrement(ctx context.Context, input AdjustInput) error {
	return m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return m.DecrementTx(ctx, tx, input)
	})
}

// DecrementTx lowers physical stock inside the caller's transaction. Used for
// checkout lines with no live hold and for manual corrections.
func (m *Manager) DecrementTx(ctx context.Context, tx *gorm.DB, input AdjustInput) error {
	if err := validateAdjust(input); err != nil {
		return err
	}

	repo := m.repo.WithTx(tx)
	product, err := repo.FindProductForUpdate(ctx, input.ProductID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", input.ProductID))
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product")
	}
	if product.Stock < input.Quantity {
		m.count(enums.StockOperationDecrement, "insufficient_stock")
		m.shortfall(enums.StockOperationDecrement)
		return pkgerrors.InsufficientStock(product.ID, product.Stock, input.Quantity)
	}

	newStock := product.Stock - input.Quantity
	if err := repo.UpdateProductStock(ctx, product.ID, newStock); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrementing stock")
	}

	entry := &models.StockLog{
		ID:            uuid.New(),
		ProductID:     product.ID,
		OrderID:       input.OrderID,
		Operation:     enums.StockOperationDecrement,
		QuantityDelta: -input.Quantity,
		StockBefore:   product.Stock,
		StockAfter:    newStock,
		Reason:        input.Reason,
		PerformedBy:   input.PerformedBy,
	}
	if err := repo.CreateLog(ctx, entry); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "writing decrement log")
	}

	m.count(enums.StockOperationDecrement, "ok")
	return nil
}

// Increment raises physical stock in its own transaction.
func (m *Manager) Increment(ctx context.Context, input AdjustInput) error {
	return m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return m.IncrementTx(ctx, tx, input)
	})
}

// IncrementTx raises physical stock inside the caller's transaction. Used for
// restocks and refund returns; there is no upper bound to enforce.
func (m *Manager) IncrementTx(ctx context.Context, tx *gorm.DB, input AdjustInput) error {
	if err := validateAdjust(input); err != nil {
		return err
	}

	repo := m.repo.WithTx(tx)
	product, err := repo.FindProductForUpdate(ctx, input.ProductID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", input.ProductID))
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product")
	}

	newStock := product.Stock + input.Quantity
	if err := repo.UpdateProductStock(ctx, product.ID, newStock); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "incrementing stock")
	}

	entry := &models.StockLog{
		ID:            uuid.New(),
		ProductID:     product.ID,
		OrderID:       input.OrderID,
		Operation:     enums.StockOperationIncrement,
		QuantityDelta: input.Quantity,
		StockBefore:   product.Stock,
		StockAfter:    newStock,
		Reason:        input.Reason,
		PerformedBy:   input.PerformedBy,
	}
	if err := repo.CreateLog(ctx, entry); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "writing increment log")
	}

	m.count(enums.StockOperationIncrement, "ok")
	return nil
}

// Available computes the read-side availability of a product. It takes no
// locks; writers recompute the figure under a row lock before committing.
func (m *Manager) Available(ctx context.Context, productID uuid.UUID) (*Availability, error) {
	product, err := m.repo.FindProduct(ctx, productID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", productID))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product")
	}

	reserved, err := m.repo.SumActiveReservations(ctx, product.ID, m.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "summing active reservations")
	}

	return &Availability{
		ProductID: product.ID,
		Stock:     product.Stock,
		Reserved:  reserved,
		Available: product.Stock - reserved,
	}, nil
}

// ActiveReservationTx finds the oldest live hold for a session/product pair
// inside the caller's transaction. Returns nil when none exists.
func (m *Manager) ActiveReservationTx(ctx context.Context, tx *gorm.DB, sessionID string, productID uuid.UUID) (*models.StockReservation, error) {
	reservation, err := m.repo.WithTx(tx).FindActiveReservation(ctx, sessionID, productID, m.now())
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "finding active reservation")
	}
	return reservation, nil
}

// ExpiredReservations lists unconsumed, unreleased holds past their expiry.
func (m *Manager) ExpiredReservations(ctx context.Context, limit int) ([]models.StockReservation, error) {
	reservations, err := m.repo.FindExpiredReservations(ctx, m.now(), limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing expired reservations")
	}
	return reservations, nil
}

// usableReservation loads a hold under a row lock and rejects terminal or
// expired ones with a state error naming the specific condition.
func (m *Manager) usableReservation(ctx context.Context, repo Repository, reservationID uuid.UUID, op enums.StockOperation) (*models.StockReservation, error) {
	reservation, err := repo.FindReservationForUpdate(ctx, reservationID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			m.count(op, "not_found")
			return nil, pkgerrors.New(pkgerrors.CodeReservationState, fmt.Sprintf("reservation %s not found", reservationID))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading reservation")
	}
	if reservation.Consumed {
		m.count(op, "state_conflict")
		return nil, pkgerrors.New(pkgerrors.CodeReservationState, fmt.Sprintf("reservation %s already consumed", reservation.ID))
	}
	if reservation.ReleasedAt != nil {
		m.count(op, "state_conflict")
		return nil, pkgerrors.New(pkgerrors.CodeReservationState, fmt.Sprintf("reservation %s already released", reservation.ID))
	}
	if reservation.IsExpired(m.now()) {
		m.count(op, "state_conflict")
		return nil, pkgerrors.New(pkgerrors.CodeReservationState, fmt.Sprintf("reservation %s expired", reservation.ID))
	}
	return reservation, nil
}

func validateAdjust(input AdjustInput) error {
	if input.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.Reason == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}
	return nil
}

func (m *Manager) count(op enums.StockOperation, outcome string) {
	m.metrics.IncOperation(op.String(), outcome)
}

func (m *Manager) shortfall(op enums.StockOperation) {
	m.metrics.IncShortfall(op.String())
}
