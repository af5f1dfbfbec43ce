package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/stockledger-backend/api/responses"
	"github.com/angelmondragon/stockledger-backend/api/validators"
	"github.com/angelmondragon/stockledger-backend/internal/stock"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
)

type reserveStockRequest struct {
	ProductID uuid.UUID  `json:"product_id" validate:"required"`
	Quantity  int        `json:"quantity" validate:"required,gt=0"`
	SessionID string     `json:"session_id" validate:"required"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
}

type reservationResponse struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	ProductID     uuid.UUID `json:"product_id"`
	Quantity      int       `json:"quantity"`
	SessionID     string    `json:"session_id"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// ReserveStock places a time-boxed hold against a product.
func ReserveStock(manager *stock.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload reserveStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reservation, err := manager.Reserve(r.Context(), stock.ReserveInput{
			ProductID: payload.ProductID,
			Quantity:  payload.Quantity,
			SessionID: payload.SessionID,
			UserID:    payload.UserID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, reservationResponse{
			ReservationID: reservation.ID,
			ProductID:     reservation.ProductID,
			Quantity:      reservation.Quantity,
			SessionID:     reservation.SessionID,
			ExpiresAt:     reservation.ExpiresAt,
		})
	}
}

// ReleaseReservation frees a hold before it expires.
func ReleaseReservation(manager *stock.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reservationID, err := uuid.Parse(chi.URLParam(r, "reservationID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "reservation id must be a uuid"))
			return
		}

		if err := manager.Release(r.Context(), reservationID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "released"})
	}
}

// StockAvailability reports a product's stock position.
func StockAvailability(manager *stock.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := uuid.Parse(chi.URLParam(r, "productID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "product id must be a uuid"))
			return
		}

		availability, err := manager.Available(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, availability)
	}
}

type adjustStockRequest struct {
	ProductID   uuid.UUID  `json:"product_id" validate:"required"`
	Quantity    int        `json:"quantity" validate:"required,gt=0"`
	Operation   string     `json:"operation" validate:"required,oneof=decrement increment"`
	Reason      string     `json:"reason" validate:"required"`
	PerformedBy *uuid.UUID `json:"performed_by,omitempty"`
}

// AdjustStock applies a manual decrement or increment with an audit reason.
func AdjustStock(manager *stock.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload adjustStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := stock.AdjustInput{
			ProductID:   payload.ProductID,
			Quantity:    payload.Quantity,
			Reason:      payload.Reason,
			PerformedBy: payload.PerformedBy,
		}

		var err error
		switch enums.StockOperation(payload.Operation) {
		case enums.StockOperationDecrement:
			err = manager.Decrement(r.Context(), input)
		case enums.StockOperationIncrement:
			err = manager.Increment(r.Context(), input)
		default:
			err = pkgerrors.New(pkgerrors.CodeValidation, "operation must be decrement or increment")
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		availability, err := manager.Available(r.Context(), payload.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, availability)
	}
}
