package cart

import (
	"context"
	"testing"

	"github.com/angelmondragon/stockledger-backend/pkg/config"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubProducts struct {
	byID map[uuid.UUID]*models.Product
}

func (s *stubProducts) FindProduct(_ context.Context, productID uuid.UUID) (*models.Product, error) {
	if product, ok := s.byID[productID]; ok {
		return product, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func newTestValidator(t *testing.T, products ...*models.Product) *Validator {
	t.Helper()
	src := &stubProducts{byID: make(map[uuid.UUID]*models.Product)}
	for _, p := range products {
		src.byID[p.ID] = p
	}
	validator, err := NewValidator(src, config.CheckoutConfig{PriceDriftTolerancePercent: 5})
	require.NoError(t, err)
	return validator
}

func intPtr(v int) *int { return &v }

func cartWith(items ...models.CartItem) *models.CartRecord {
	return &models.CartRecord{ID: uuid.New(), Items: items}
}

func TestValidateEmptyCart(t *testing.T) {
	t.Parallel()

	validator := newTestValidator(t)

	result, err := validator.ValidateForCheckout(context.Background(), cartWith())
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Contains(t, result.Errors, "cart is empty")

	result, err = validator.ValidateForCheckout(context.Background(), nil)
	require.NoError(t, err)
	require.False(t, result.Valid)
}

func TestValidateHappyPath(t *testing.T) {
	t.Parallel()

	product := &models.Product{ID: uuid.New(), Name: "Widget", PriceCents: 1000, Stock: 10, IsActive: true}
	validator := newTestValidator(t, product)

	result, err := validator.ValidateForCheckout(context.Background(), cartWith(models.CartItem{
		ProductID:       product.ID,
		Quantity:        3,
		PriceAtAddCents: intPtr(1000),
	}))
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Empty(t, result.Errors)
	require.Empty(t, result.Warnings)
}

func TestValidateMissingAndInactiveProducts(t *testing.T) {
	t.Parallel()

	inactive := &models.Product{ID: uuid.New(), Name: "Gone", PriceCents: 500, Stock: 5, IsActive: false}
	validator := newTestValidator(t, inactive)
	missingID := uuid.New()

	result, err := validator.ValidateForCheckout(context.Background(), cartWith(
		models.CartItem{ProductID: missingID, Quantity: 1, PriceAtAddCents: intPtr(500)},
		models.CartItem{ProductID: inactive.ID, Quantity: 1, PriceAtAddCents: intPtr(500)},
	))
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Len(t, result.Errors, 2)
	require.Contains(t, result.Errors[0], missingID.String())
	require.Contains(t, result.Errors[1], "no longer available")
}

func TestValidateInsufficientStock(t *testing.T) {
	t.Parallel()

	product := &models.Product{ID: uuid.New(), Name: "Widget", PriceCents: 1000, Stock: 2, IsActive: true}
	validator := newTestValidator(t, product)

	result, err := validator.ValidateForCheckout(context.Background(), cartWith(models.CartItem{
		ProductID:       product.ID,
		Quantity:        3,
		PriceAtAddCents: intPtr(1000),
	}))
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0], "insufficient stock")
	require.Contains(t, result.Errors[0], "3 requested, 2 available")
}

func TestValidatePriceDriftBoundary(t *testing.T) {
	t.Parallel()

	product := &models.Product{ID: uuid.New(), Name: "Widget", PriceCents: 1050, Stock: 10, IsActive: true}
	validator := newTestValidator(t, product)

	// Exactly 5% drift (1000 -> 1050) passes with a warning.
	result, err := validator.ValidateForCheckout(context.Background(), cartWith(models.CartItem{
		ProductID:       product.ID,
		Quantity:        1,
		PriceAtAddCents: intPtr(1000),
	}))
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Len(t, result.Warnings, 1)

	// Beyond 5% fails, in either direction.
	product.PriceCents = 1051
	result, err = validator.ValidateForCheckout(context.Background(), cartWith(models.CartItem{
		ProductID:       product.ID,
		Quantity:        1,
		PriceAtAddCents: intPtr(1000),
	}))
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Contains(t, result.Errors[0], "price changed")

	product.PriceCents = 940
	result, err = validator.ValidateForCheckout(context.Background(), cartWith(models.CartItem{
		ProductID:       product.ID,
		Quantity:        1,
		PriceAtAddCents: intPtr(1000),
	}))
	require.NoError(t, err)
	require.False(t, result.Valid)
}

func TestValidateMissingCapturedPrice(t *testing.T) {
	t.Parallel()

	product := &models.Product{ID: uuid.New(), Name: "Widget", PriceCents: 1000, Stock: 10, IsActive: true}
	validator := newTestValidator(t, product)

	result, err := validator.ValidateForCheckout(context.Background(), cartWith(models.CartItem{
		ProductID: product.ID,
		Quantity:  1,
	}))
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Len(t, result.Warnings, 1)
	require.Contains(t, result.Warnings[0], "no price captured")
}

func TestValidateAggregatesAllFindings(t *testing.T) {
	t.Parallel()

	short := &models.Product{ID: uuid.New(), Name: "Short", PriceCents: 1000, Stock: 1, IsActive: true}
	drifted := &models.Product{ID: uuid.New(), Name: "Drifted", PriceCents: 2000, Stock: 10, IsActive: true}
	validator := newTestValidator(t, short, drifted)

	result, err := validator.ValidateForCheckout(context.Background(), cartWith(
		models.CartItem{ProductID: short.ID, Quantity: 5, PriceAtAddCents: intPtr(1000)},
		models.CartItem{ProductID: drifted.ID, Quantity: 1, PriceAtAddCents: intPtr(1000)},
		models.CartItem{ProductID: uuid.New(), Quantity: 1, PriceAtAddCents: intPtr(1000)},
	))
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Len(t, result.Errors, 3)
}
