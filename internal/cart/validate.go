package cart

import (
	"context"
	stdErrors "errors"
	"fmt"

	"github.com/angelmondragon/stockledger-backend/pkg/config"
	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductSource resolves cart lines to catalog rows. The stock repository
// satisfies it, so validation inside a checkout transaction sees the same
// rows the stock engine will lock.
type ProductSource interface {
	FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
}

// ValidationResult reports whether a cart can proceed to checkout. Errors
// block the order; warnings do not.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Validator checks carts against the live catalog before checkout mutates
// anything.
type Validator struct {
	products  ProductSource
	tolerance decimal.Decimal
}

// NewValidator wires a cart validator with the configured price-drift
// tolerance.
func NewValidator(products ProductSource, cfg config.CheckoutConfig) (*Validator, error) {
	if products == nil {
		return nil, fmt.Errorf("product source is required")
	}
	tolerance := cfg.PriceDriftTolerancePercent
	if tolerance <= 0 {
		tolerance = 5
	}
	return &Validator{
		products:  products,
		tolerance: decimal.NewFromInt(int64(tolerance)),
	}, nil
}

// WithProducts returns a validator reading products through src, typically a
// transaction-bound repository.
func (v *Validator) WithProducts(src ProductSource) *Validator {
	if src == nil {
		return v
	}
	return &Validator{products: src, tolerance: v.tolerance}
}

// ValidateForCheckout runs every check and aggregates the findings instead of
// stopping at the first problem, so the shopper sees the full list at once.
// Price drift at exactly the tolerance passes; only drift beyond it fails.
func (v *Validator) ValidateForCheckout(ctx context.Context, cart *models.CartRecord) (*ValidationResult, error) {
	result := &ValidationResult{Errors: []string{}, Warnings: []string{}}

	if cart == nil || len(cart.Items) == 0 {
		result.Errors = append(result.Errors, "cart is empty")
		return result, nil
	}

	for _, item := range cart.Items {
		product, err := v.products.FindProduct(ctx, item.ProductID)
		if err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				result.Errors = append(result.Errors,
					fmt.Sprintf("product %s not found", item.ProductID))
				continue
			}
			return nil, err
		}

		if !product.IsActive {
			result.Errors = append(result.Errors,
				fmt.Sprintf("product %q is no longer available", product.Name))
			continue
		}

		if item.Quantity <= 0 {
			result.Errors = append(result.Errors,
				fmt.Sprintf("product %q has invalid quantity %d", product.Name, item.Quantity))
			continue
		}

		if item.Quantity > product.Stock {
			result.Errors = append(result.Errors,
				fmt.Sprintf("product %q has insufficient stock: %d requested, %d available",
					product.Name, item.Quantity, product.Stock))
		}

		switch {
		case item.PriceAtAddCents == nil:
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("product %q had no price captured when added; current price applies", product.Name))
		case *item.PriceAtAddCents <= 0:
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("product %q had a zero price captured when added; current price applies", product.Name))
		default:
			drift := priceDriftPercent(*item.PriceAtAddCents, product.PriceCents)
			if drift.GreaterThan(v.tolerance) {
				result.Errors = append(result.Errors,
					fmt.Sprintf("product %q price changed by %s%% since it was added", product.Name, drift.StringFixed(2)))
			} else if !drift.IsZero() {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("product %q price moved %s%% since it was added", product.Name, drift.StringFixed(2)))
			}
		}
	}

	result.Valid = len(result.Errors) == 0
	return result, nil
}

// priceDriftPercent returns |current - captured| / captured * 100 with exact
// decimal arithmetic so a boundary drift never fails on float noise.
func priceDriftPercent(capturedCents, currentCents int) decimal.Decimal {
	captured := decimal.NewFromInt(int64(capturedCents))
	current := decimal.NewFromInt(int64(currentCents))
	return current.Sub(captured).Abs().
		Div(captured).
		Mul(decimal.NewFromInt(100))
}
