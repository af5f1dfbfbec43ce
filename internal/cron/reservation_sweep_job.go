package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/stockledger-backend/internal/stock"
	"github.com/angelmondragon/stockledger-backend/pkg/logger"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const defaultSweepBatchSize = 200

// txRunner executes a function inside a database transaction.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ReservationSweepJobParams configure the expired reservation sweeper.
type ReservationSweepJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Stock     *stock.Manager
	BatchSize int
}

// NewReservationSweepJob builds the job that releases lapsed holds. Each hold
// is released in its own transaction so one poisoned row cannot block the
// rest of the batch, and the terminal state is re-checked under the row lock
// because a checkout may consume the hold between the sweep query and the
// release.
func NewReservationSweepJob(params ReservationSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock manager required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}
	return &reservationSweepJob{
		logg:      params.Logger,
		db:        params.DB,
		stock:     params.Stock,
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

type reservationSweepJob struct {
	logg      *logger.Logger
	db        txRunner
	stock     *stock.Manager
	batchSize int
	now       func() time.Time
}

func (j *reservationSweepJob) Name() string { return "reservation-sweep" }

func (j *reservationSweepJob) Run(ctx context.Context) error {
	expired, err := j.stock.ExpiredReservations(ctx, j.batchSize)
	if err != nil {
		return fmt.Errorf("query expired reservations: %w", err)
	}

	released := 0
	skipped := 0
	var failures []error
	for _, reservation := range expired {
		reservationID := reservation.ID
		var ok bool
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			var txErr error
			ok, txErr = j.stock.ReleaseExpiredTx(ctx, tx, reservationID)
			return txErr
		})
		if err != nil {
			failures = append(failures, fmt.Errorf("release reservation %s: %w", reservationID, err))
			continue
		}
		if ok {
			released++
		} else {
			skipped++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(expired),
		"released":   released,
		"skipped":    skipped,
		"failed":     len(failures),
	})
	j.logg.Info(logCtx, "reservation sweep complete")

	return multierr.Combine(failures...)
}
