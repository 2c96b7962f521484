package payroll

import (
	"context"
	"fmt"
	"time"

	"github.com/bursar-dev/bursar/internal/id"
	"github.com/bursar-dev/bursar/internal/log"
	"github.com/bursar-dev/bursar/internal/model"
)

// HistoryStore is the durable, append-only home of finalized payroll.
// AppendBatch must store the whole batch or nothing.
type HistoryStore interface {
	IsFinalized(ctx context.Context, period model.Period) (bool, error)
	AppendBatch(ctx context.Context, batch model.PayrollBatch) error
	Batch(ctx context.Context, period model.Period) (model.PayrollBatch, error)
	Periods(ctx context.Context) ([]model.Period, error)
}

// Finalizer commits worksheets to a HistoryStore.
type Finalizer struct {
	store HistoryStore
	log   *log.Logger
	now   func() time.Time
}

// NewFinalizer creates a Finalizer.
func NewFinalizer(store HistoryStore, logger *log.Logger) *Finalizer {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Finalizer{
		store: store,
		log:   logger.WithComponent(log.ComponentPayroll),
		now:   time.Now,
	}
}

// Finalize appends the whole worksheet to payroll history in one call.
//
// The store is asked first whether the period is already finalized. If the
// append fails for any reason, including ctx expiring, the worksheet is left
// unchanged and editable so the call can be retried.
func (f *Finalizer) Finalize(ctx context.Context, ws *Worksheet) (model.PayrollBatch, error) {
	if ws.State() == StateFinalized {
		return model.PayrollBatch{}, ErrFinalized
	}
	if ws.Len() == 0 {
		return model.PayrollBatch{}, fmt.Errorf("%w: worksheet for %s is empty", ErrInvalidInput, ws.Period())
	}

	entries := ws.Entries()
	for _, e := range entries {
		if !e.Balanced() {
			return model.PayrollBatch{}, fmt.Errorf("%w: staff %q", ErrUnbalanced, e.StaffID)
		}
	}

	done, err := f.store.IsFinalized(ctx, ws.Period())
	if err != nil {
		return model.PayrollBatch{}, fmt.Errorf("checking payroll history: %w", err)
	}
	if done {
		return model.PayrollBatch{}, fmt.Errorf("%w: %s", ErrAlreadyFinalized, ws.Period())
	}

	batch := model.PayrollBatch{
		ID:          id.NewBatchID(ws.Period()),
		Period:      ws.Period(),
		PayDate:     ws.PayDate(),
		FinalizedAt: f.now().UTC().Truncate(time.Second),
		Entries:     entries,
	}
	if err := f.store.AppendBatch(ctx, batch); err != nil {
		f.log.Error("finalize failed, draft kept",
			log.FieldPeriod, string(ws.Period()),
			log.FieldError, err)
		return model.PayrollBatch{}, fmt.Errorf("appending payroll batch: %w", err)
	}

	ws.markFinalized()
	f.log.Info("payroll finalized",
		log.FieldPeriod, string(batch.Period),
		log.FieldBatchID, batch.ID,
		log.FieldCount, len(batch.Entries))
	return batch, nil
}
