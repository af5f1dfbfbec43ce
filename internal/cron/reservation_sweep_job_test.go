package cron

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/stockledger-backend/internal/stock"
	"github.com/angelmondragon/stockledger-backend/pkg/config"
	"github.com/angelmondragon/stockledger-backend/pkg/db"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, conn.AutoMigrate(
		&models.Product{},
		&models.StockReservation{},
		&models.StockLog{},
	))
	return conn
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel, Output: io.Discard})
}

func seedReservation(t *testing.T, conn *gorm.DB, productID uuid.UUID, expiresAt time.Time, consumed bool) *models.StockReservation {
	t.Helper()
	reservation := &models.StockReservation{
		ID:        uuid.New(),
		ProductID: productID,
		Quantity:  2,
		SessionID: "sess-sweep",
		ExpiresAt: expiresAt,
		Consumed:  consumed,
	}
	require.NoError(t, conn.Create(reservation).Error)
	return reservation
}

func TestReservationSweepReleasesExpiredHolds(t *testing.T) {
	t.Parallel()

	conn := openTestDB(t)
	logg := testLogger()
	client := db.FromGorm(conn)

	manager, err := stock.NewManager(client, stock.NewRepository(conn), logg, nil, config.StockConfig{ReservationTTLMinutes: 15})
	require.NoError(t, err)

	product := &models.Product{ID: uuid.New(), SKU: "SKU-1", Name: "Widget", PriceCents: 1000, Stock: 10, IsActive: true}
	require.NoError(t, conn.Create(product).Error)

	expired := seedReservation(t, conn, product.ID, time.Now().Add(-time.Hour), false)
	consumedExpired := seedReservation(t, conn, product.ID, time.Now().Add(-time.Hour), true)
	active := seedReservation(t, conn, product.ID, time.Now().Add(time.Hour), false)

	job, err := NewReservationSweepJob(ReservationSweepJobParams{
		Logger: logg,
		DB:     client,
		Stock:  manager,
	})
	require.NoError(t, err)
	require.Equal(t, "reservation-sweep", job.Name())

	require.NoError(t, job.Run(context.Background()))

	var storedExpired models.StockReservation
	require.NoError(t, conn.First(&storedExpired, "id = ?", expired.ID).Error)
	require.NotNil(t, storedExpired.ReleasedAt)

	var storedConsumed models.StockReservation
	require.NoError(t, conn.First(&storedConsumed, "id = ?", consumedExpired.ID).Error)
	require.Nil(t, storedConsumed.ReleasedAt)

	var storedActive models.StockReservation
	require.NoError(t, conn.First(&storedActive, "id = ?", active.ID).Error)
	require.Nil(t, storedActive.ReleasedAt)

	// One RELEASE ledger entry, stock untouched.
	var logs []models.StockLog
	require.NoError(t, conn.Where("product_id = ?", product.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
	require.Equal(t, enums.StockOperationRelease, logs[0].Operation)
	require.Equal(t, logs[0].StockBefore, logs[0].StockAfter)
	require.Contains(t, logs[0].Reason, "expired")

	var storedProduct models.Product
	require.NoError(t, conn.First(&storedProduct, "id = ?", product.ID).Error)
	require.Equal(t, 10, storedProduct.Stock)

	// A second sweep finds nothing.
	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, conn.Where("product_id = ?", product.ID).Find(&logs).Error)
	require.Len(t, logs, 1)
}

func TestReservationSweepHonorsBatchSize(t *testing.T) {
	t.Parallel()

	conn := openTestDB(t)
	logg := testLogger()
	client := db.FromGorm(conn)

	manager, err := stock.NewManager(client, stock.NewRepository(conn), logg, nil, config.StockConfig{ReservationTTLMinutes: 15})
	require.NoError(t, err)

	product := &models.Product{ID: uuid.New(), SKU: "SKU-2", Name: "Widget", PriceCents: 1000, Stock: 10, IsActive: true}
	require.NoError(t, conn.Create(product).Error)

	for i := 0; i < 5; i++ {
		seedReservation(t, conn, product.ID, time.Now().Add(-time.Hour), false)
	}

	job, err := NewReservationSweepJob(ReservationSweepJobParams{
		Logger:    logg,
		DB:        client,
		Stock:     manager,
		BatchSize: 2,
	})
	require.NoError(t, err)
	require.NoError(t, job.Run(context.Background()))

	var releasedCount int64
	require.NoError(t, conn.Model(&models.StockReservation{}).
		Where("released_at IS NOT NULL").
		Count(&releasedCount).Error)
	require.EqualValues(t, 2, releasedCount)
}
