package orders

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
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
	"github.com/angelmondragon/stockledger-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type testEnv struct {
	conn    *gorm.DB
	service *Service
}

func newTestEnv(t *testing.T) *testEnv {
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
		&models.Order{},
		&models.OrderItem{},
	))

	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel, Output: io.Discard})
	client := db.FromGorm(conn)
	manager, err := stock.NewManager(client, stock.NewRepository(conn), logg, nil, config.StockConfig{ReservationTTLMinutes: 15})
	require.NoError(t, err)

	service, err := NewService(client, NewRepository(conn), manager, logg)
	require.NoError(t, err)
	return &testEnv{conn: conn, service: service}
}

func (e *testEnv) seedOrder(t *testing.T, paymentID string, reservationIDs ...uuid.UUID) *models.Order {
	t.Helper()
	ids := make([]string, 0, len(reservationIDs))
	for _, id := range reservationIDs {
		ids = append(ids, id.String())
	}
	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   time.Now().UnixNano(),
		SessionID:     "sess-orders",
		PaymentID:     paymentID,
		PaymentMethod: enums.PaymentMethodCard,
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusPending,
		TotalCents:    5000,
		Metadata:      types.JSONMap{models.MetadataKeyReservationIDs: ids},
	}
	require.NoError(t, e.conn.Create(order).Error)
	return order
}

func (e *testEnv) fetchOrder(t *testing.T, orderID uuid.UUID) *models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, e.conn.First(&order, "id = ?", orderID).Error)
	return &order
}

func TestHandlePaymentSucceeded(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedOrder(t, "pi_success")

	require.NoError(t, env.service.HandlePaymentSucceeded(ctx, "pi_success", nil))

	stored := env.fetchOrder(t, order.ID)
	require.Equal(t, enums.PaymentStatusCompleted, stored.PaymentStatus)
	require.Equal(t, enums.OrderStatusProcessing, stored.Status)
	require.NotNil(t, stored.PaidAmountCents)
	require.Equal(t, 5000, *stored.PaidAmountCents)
}

func TestHandlePaymentSucceededIsIdempotent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	order := env.seedOrder(t, "pi_repeat")

	paid := 4200
	require.NoError(t, env.service.HandlePaymentSucceeded(ctx, "pi_repeat", &paid))
	require.NoError(t, env.service.HandlePaymentSucceeded(ctx, "pi_repeat", nil))

	stored := env.fetchOrder(t, order.ID)
	require.Equal(t, enums.PaymentStatusCompleted, stored.PaymentStatus)
	require.Equal(t, 4200, *stored.PaidAmountCents)
}

func TestHandlePaymentSucceededUnknownPayment(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	require.NoError(t, env.service.HandlePaymentSucceeded(context.Background(), "pi_nobody", nil))

	err := env.service.HandlePaymentSucceeded(context.Background(), "", nil)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestHandlePaymentFailedReleasesHolds(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	product := &models.Product{ID: uuid.New(), SKU: "SKU-1", Name: "Widget", PriceCents: 1000, Stock: 10, IsActive: true}
	require.NoError(t, env.conn.Create(product).Error)

	open := &models.StockReservation{
		ID:        uuid.New(),
		ProductID: product.ID,
		Quantity:  2,
		SessionID: "sess-orders",
		ExpiresAt: time.Now().Add(15 * time.Minute),
	}
	require.NoError(t, env.conn.Create(open).Error)

	consumed := &models.StockReservation{
		ID:        uuid.New(),
		ProductID: product.ID,
		Quantity:  1,
		SessionID: "sess-orders",
		ExpiresAt: time.Now().Add(15 * time.Minute),
		Consumed:  true,
	}
	require.NoError(t, env.conn.Create(consumed).Error)

	order := env.seedOrder(t, "pi_fail", open.ID, consumed.ID)

	require.NoError(t, env.service.HandlePaymentFailed(ctx, "pi_fail", "card_declined"))

	stored := env.fetchOrder(t, order.ID)
	require.Equal(t, enums.PaymentStatusFailed, stored.PaymentStatus)
	// A failed payment does not cancel the order itself.
	require.Equal(t, enums.OrderStatusPending, stored.Status)

	var openStored models.StockReservation
	require.NoError(t, env.conn.First(&openStored, "id = ?", open.ID).Error)
	require.NotNil(t, openStored.ReleasedAt)

	// The consumed hold is untouched; stock stays decremented.
	var consumedStored models.StockReservation
	require.NoError(t, env.conn.First(&consumedStored, "id = ?", consumed.ID).Error)
	require.True(t, consumedStored.Consumed)
	require.Nil(t, consumedStored.ReleasedAt)

	// Second delivery is a no-op.
	require.NoError(t, env.service.HandlePaymentFailed(ctx, "pi_fail", "card_declined"))

	var releaseCount int64
	require.NoError(t, env.conn.Model(&models.StockLog{}).
		Where("operation = ?", enums.StockOperationRelease).
		Count(&releaseCount).Error)
	require.EqualValues(t, 1, releaseCount)
}

func TestHandlePaymentFailedUnknownPayment(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	require.NoError(t, env.service.HandlePaymentFailed(context.Background(), "pi_nobody", "whatever"))
}
