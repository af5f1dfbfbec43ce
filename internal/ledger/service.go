package ledger

import (
	"context"
	stdErrors "errors"
	"fmt"

	"github.com/angelmondragon/stockledger-backend/pkg/db/models"
	"github.com/angelmondragon/stockledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger-backend/pkg/errors"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service answers audit questions about stock movement.
type Service struct {
	repo Repository
	logg *logger.Logger
}

// Page is one page of ledger entries plus the unpaged total.
type Page struct {
	Entries []models.StockLog `json:"entries"`
	Total   int64             `json:"total"`
}

func NewService(repo Repository, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{repo: repo, logg: logg}, nil
}

// History returns ledger entries matching the query, newest first.
func (s *Service) History(ctx context.Context, q Query) (*Page, error) {
	if q.Operation != "" && !q.Operation.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown operation %q", q.Operation))
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "time range end precedes start")
	}

	entries, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing stock logs")
	}
	return &Page{Entries: entries, Total: total}, nil
}

// Verify recomputes a product's expected stock from its newest ledger entry
// and reports a mismatch against the stored count. Decrement/increment entries
// expect stock_after; reserve/release entries carry no physical change, so
// stock_before is used for those.
func (s *Service) Verify(ctx context.Context, productID uuid.UUID, currentStock int) error {
	latest, err := s.repo.LatestForProduct(ctx, productID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading latest ledger entry")
	}

	expected := latest.StockAfter
	if latest.Operation == enums.StockOperationReserve || latest.Operation == enums.StockOperationRelease {
		expected = latest.StockBefore
	}
	if expected != currentStock {
		lctx := s.logg.WithFields(ctx, map[string]any{
			"product_id": productID.String(),
			"expected":   expected,
			"actual":     currentStock,
		})
		s.logg.Warn(lctx, "ledger and stored stock diverge")
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("product %s stock %d does not match ledger expectation %d", productID, currentStock, expected))
	}
	return nil
}
