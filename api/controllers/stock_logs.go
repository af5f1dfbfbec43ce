package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockledger-backend/api/responses"
	"github.com/angelmondragon/stockledger-backend/internal/ledger"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
)

// StockLogs lists ledger entries for audit, filterable by product, order,
// operation and time range.
func StockLogs(svc *ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query, err := ledgerQueryFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.History(r.Context(), *query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func ledgerQueryFromRequest(r *http.Request) (*ledger.Query, error) {
	values := r.URL.Query()
	query := &ledger.Query{}

	if raw := values.Get("product_id"); raw != "" {
		productID, err := uuid.Parse(raw)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id must be a uuid")
		}
		query.ProductID = productID
	}
	if raw := values.Get("order_id"); raw != "" {
		orderID, err := uuid.Parse(raw)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "order_id must be a uuid")
		}
		query.OrderID = &orderID
	}
	if raw := values.Get("operation"); raw != "" {
		operation, err := enums.ParseStockOperation(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid operation filter")
		}
		query.Operation = operation
	}
	if raw := values.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "from must be RFC3339")
		}
		query.From = from
	}
	if raw := values.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "to must be RFC3339")
		}
		query.To = to
	}
	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a non-negative integer")
		}
		query.Limit = limit
	}
	if raw := values.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "offset must be a non-negative integer")
		}
		query.Offset = offset
	}

	return query, nil
}
