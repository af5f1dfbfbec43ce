package ledger

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
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

	require.NoError(t, conn.AutoMigrate(&models.StockLog{}))
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) *Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel, Output: io.Discard})
	service, err := NewService(NewRepository(conn), logg)
	require.NoError(t, err)
	return service
}

func seedLog(t *testing.T, conn *gorm.DB, productID uuid.UUID, op enums.StockOperation, delta, before, after int, at time.Time) models.StockLog {
	t.Helper()
	entry := models.StockLog{
		ID:            uuid.New(),
		ProductID:     productID,
		Operation:     op,
		QuantityDelta: delta,
		StockBefore:   before,
		StockAfter:    after,
		Reason:        "seeded",
		CreatedAt:     at,
	}
	require.NoError(t, conn.Create(&entry).Error)
	return entry
}

func TestHistoryFiltersAndPaginates(t *testing.T) {
	t.Parallel()

	conn := openTestDB(t)
	service := newTestService(t, conn)
	ctx := context.Background()

	productA := uuid.New()
	productB := uuid.New()
	base := time.Now().Add(-time.Hour)

	seedLog(t, conn, productA, enums.StockOperationReserve, -2, 10, 10, base)
	seedLog(t, conn, productA, enums.StockOperationDecrement, -2, 10, 8, base.Add(10*time.Minute))
	seedLog(t, conn, productA, enums.StockOperationIncrement, 5, 8, 13, base.Add(20*time.Minute))
	seedLog(t, conn, productB, enums.StockOperationDecrement, -1, 4, 3, base.Add(30*time.Minute))

	page, err := service.History(ctx, Query{ProductID: productA})
	require.NoError(t, err)
	require.EqualValues(t, 3, page.Total)
	require.Len(t, page.Entries, 3)
	// Newest first.
	require.Equal(t, enums.StockOperationIncrement, page.Entries[0].Operation)

	page, err = service.History(ctx, Query{ProductID: productA, Operation: enums.StockOperationDecrement})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total)

	page, err = service.History(ctx, Query{
		ProductID: productA,
		From:      base.Add(5 * time.Minute),
		To:        base.Add(15 * time.Minute),
	})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	require.Equal(t, enums.StockOperationDecrement, page.Entries[0].Operation)

	page, err = service.History(ctx, Query{ProductID: productA, Limit: 2})
	require.NoError(t, err)
	require.EqualValues(t, 3, page.Total)
	require.Len(t, page.Entries, 2)
}

func TestHistoryRejectsBadInput(t *testing.T) {
	t.Parallel()

	conn := openTestDB(t)
	service := newTestService(t, conn)
	ctx := context.Background()

	_, err := service.History(ctx, Query{Operation: enums.StockOperation("teleport")})
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	now := time.Now()
	_, err = service.History(ctx, Query{From: now, To: now.Add(-time.Minute)})
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestVerifyDetectsDrift(t *testing.T) {
	t.Parallel()

	conn := openTestDB(t)
	service := newTestService(t, conn)
	ctx := context.Background()
	productID := uuid.New()

	// No ledger yet: nothing to verify against.
	require.NoError(t, service.Verify(ctx, productID, 42))

	seedLog(t, conn, productID, enums.StockOperationDecrement, -3, 10, 7, time.Now().Add(-time.Minute))
	require.NoError(t, service.Verify(ctx, productID, 7))

	err := service.Verify(ctx, productID, 9)
	require.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())

	// A newer reserve entry does not change the expected physical count.
	seedLog(t, conn, productID, enums.StockOperationReserve, -2, 7, 7, time.Now())
	require.NoError(t, service.Verify(ctx, productID, 7))
}
