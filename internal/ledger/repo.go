package ledger

import (
	"context"
	"time"

	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Query filters ledger reads. Zero-value fields are ignored.
type Query struct {
	ProductID uuid.UUID
	OrderID   *uuid.UUID
	Operation enums.StockOperation
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}

// Repository reads the append-only stock ledger. Writes happen in the stock
// package, inside the same transaction as the stock change they record.
type Repository interface {
	List(ctx context.Context, q Query) ([]models.StockLog, int64, error)
	LatestForProduct(ctx context.Context, productID uuid.UUID) (*models.StockLog, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, q Query) ([]models.StockLog, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.StockLog{})
	if q.ProductID != uuid.Nil {
		base = base.Where("product_id = ?", q.ProductID)
	}
	if q.OrderID != nil {
		base = base.Where("order_id = ?", *q.OrderID)
	}
	if q.Operation != "" {
		base = base.Where("operation = ?", q.Operation)
	}
	if !q.From.IsZero() {
		base = base.Where("created_at >= ?", q.From)
	}
	if !q.To.IsZero() {
		base = base.Where("created_at < ?", q.To)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var logs []models.StockLog
	err := base.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(q.Offset).
		Find(&logs).Error
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

func (r *repository) LatestForProduct(ctx context.Context, productID uuid.UUID) (*models.StockLog, error) {
	var entry models.StockLog
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC, id DESC").
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
