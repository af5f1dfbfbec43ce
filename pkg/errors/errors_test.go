package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
)

func TestAsUnwrapsWrappedError(t *testing.T) {
	t.Parallel()

	base := New(CodeReservationState, "reservation already consumed")
	wrapped := fmt.Errorf("convert reservation: %w", base)

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected typed error")
	}
	if typed.Code() != CodeReservationState {
		t.Fatalf("unexpected code: %s", typed.Code())
	}
}

func TestAsReturnsNilForForeignError(t *testing.T) {
	t.Parallel()

	if typed := As(stdErrors.New("plain")); typed != nil {
		t.Fatalf("expected nil, got %v", typed)
	}
}

func TestInsufficientStockCarriesShortfall(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	err := InsufficientStock(productID, 3, 5)

	if err.Code() != CodeInsufficientStock {
		t.Fatalf("unexpected code: %s", err.Code())
	}
	details, ok := err.Details().(InsufficientStockDetails)
	if !ok {
		t.Fatalf("unexpected details type %T", err.Details())
	}
	if details.ProductID != productID || details.Available != 3 || details.Requested != 5 {
		t.Fatalf("unexpected details: %+v", details)
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	t.Parallel()

	meta := MetadataFor(Code("NOPE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal fallback, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := stdErrors.New("db down")
	err := Wrap(CodeDependency, cause, "query stock")
	if !stdErrors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
}
