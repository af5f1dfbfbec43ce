package stock

import (
	"context"
	"time"

	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository owns every read and write of product stock, reservations and
// ledger rows. Nothing else in the codebase touches these tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	FindProductForUpdate(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	UpdateProductStock(ctx context.Context, productID uuid.UUID, stock int) error
	SumActiveReservations(ctx context.Context, productID uuid.UUID, now time.Time) (int, error)
	CreateReservation(ctx context.Context, reservation *models.StockReservation) error
	FindReservation(ctx context.Context, reservationID uuid.UUID) (*models.StockReservation, error)
	FindReservationForUpdate(ctx context.Context, reservationID uuid.UUID) (*models.StockReservation, error)
	FindActiveReservation(ctx context.Context, sessionID string, productID uuid.UUID, now time.Time) (*models.StockReservation, error)
	UpdateReservation(ctx context.Context, reservationID uuid.UUID, updates map[string]any) error
	FindExpiredReservations(ctx context.Context, now time.Time, limit int) ([]models.StockReservation, error)
	CreateLog(ctx context.Context, entry *models.StockLog) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a stock repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// forUpdate applies SELECT ... FOR UPDATE on dialects that support it. The
// sqlite test databases serialize writes per connection instead, so the
// row-lock serialization of racing reserves is only exercised against
// postgres, not in the package tests.
func (r *repository) forUpdate(q *gorm.DB) *gorm.DB {
	if r.db.Dialector.Name() == "postgres" {
		return q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func (r *repository) FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindProductForUpdate(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.forUpdate(r.db.WithContext(ctx)).First(&product, "id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) UpdateProductStock(ctx context.Context, productID uuid.UUID, stock int) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update("stock", stock).Error
}

func (r *repository) SumActiveReservations(ctx context.Context, productID uuid.UUID, now time.Time) (int, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.StockReservation{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("product_id = ? AND consumed = ? AND released_at IS NULL AND expires_at >= ?", productID, false, now).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return int(total), nil
}

func (r *repository) CreateReservation(ctx context.Context, reservation *models.StockReservation) error {
	return r.db.WithContext(ctx).Create(reservation).Error
}

func (r *repository) FindReservation(ctx context.Context, reservationID uuid.UUID) (*models.StockReservation, error) {
	var reservation models.StockReservation
	if err := r.db.WithContext(ctx).First(&reservation, "id = ?", reservationID).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) FindReservationForUpdate(ctx context.Context, reservationID uuid.UUID) (*models.StockReservation, error) {
	var reservation models.StockReservation
	if err := r.forUpdate(r.db.WithContext(ctx)).First(&reservation, "id = ?", reservationID).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) FindActiveReservation(ctx context.Context, sessionID string, productID uuid.UUID, now time.Time) (*models.StockReservation, error) {
	var reservation models.StockReservation
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND product_id = ? AND consumed = ? AND released_at IS NULL AND expires_at >= ?",
			sessionID, productID, false, now).
		Order("created_at ASC").
		First(&reservation).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (r *repository) UpdateReservation(ctx context.Context, reservationID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.StockReservation{}).
		Where("id = ?", reservationID).
		Updates(updates).Error
}

func (r *repository) FindExpiredReservations(ctx context.Context, now time.Time, limit int) ([]models.StockReservation, error) {
	var reservations []models.StockReservation
	q := r.db.WithContext(ctx).
		Where("consumed = ? AND released_at IS NULL AND expires_at < ?", false, now).
		Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *repository) CreateLog(ctx context.Context, entry *models.StockLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}
