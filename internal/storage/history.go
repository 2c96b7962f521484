// Package storage keeps finalized payroll history in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/bursar-dev/bursar/internal/log"
	"github.com/bursar-dev/bursar/internal/model"
	"github.com/bursar-dev/bursar/internal/payroll"
)

const dateFormat = "2006-01-02"

// SQLiteHistory is a payroll.HistoryStore backed by SQLite. Each batch is
// written in one SQL transaction and the period column is unique, so a
// period is finalized at most once.
type SQLiteHistory struct {
	db  *sql.DB
	log *log.Logger
}

var _ payroll.HistoryStore = (*SQLiteHistory)(nil)

// NewSQLiteHistory opens (creating if needed) the database at dbPath and
// applies migrations.
func NewSQLiteHistory(dbPath string, logger *log.Logger) (*SQLiteHistory, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteHistory{db: db, log: logger.WithComponent(log.ComponentStorage)}, nil
}

// Close closes the database.
func (h *SQLiteHistory) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}

// IsFinalized reports whether a batch exists for the period.
func (h *SQLiteHistory) IsFinalized(ctx context.Context, p model.Period) (bool, error) {
	var exists bool
	err := h.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM payroll_batches WHERE period = ?)`, string(p)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query batch for %s: %w", p, err)
	}
	return exists, nil
}

// AppendBatch inserts the batch and all of its lines in one transaction.
func (h *SQLiteHistory) AppendBatch(ctx context.Context, batch model.PayrollBatch) (err error) {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO payroll_batches (id, period, pay_date, finalized_at) VALUES (?, ?, ?, ?)`,
		batch.ID, string(batch.Period), batch.PayDate.Format(dateFormat), batch.FinalizedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", payroll.ErrAlreadyFinalized, batch.Period)
		}
		return fmt.Errorf("insert batch: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO payroll_lines (batch_id, entry_pos, staff_id, staff_name, category, line_pos, name, amount)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare line insert: %w", err)
	}
	defer stmt.Close()

	for ei, e := range batch.Entries {
		for _, group := range []struct {
			cat   model.Category
			lines []model.Line
		}{
			{model.CategoryEarning, e.Earnings},
			{model.CategoryDeduction, e.Deductions},
		} {
			for li, l := range group.lines {
				if _, err = stmt.ExecContext(ctx, batch.ID, ei, e.StaffID, e.StaffName,
					string(group.cat), li, l.Name, l.Amount.StringFixed(2)); err != nil {
					return fmt.Errorf("insert line for staff %s: %w", e.StaffID, err)
				}
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	h.log.InfoContext(ctx, "payroll batch stored",
		log.FieldBatchID, batch.ID,
		log.FieldPeriod, string(batch.Period),
		log.FieldCount, len(batch.Entries))
	return nil
}

// Batch reads a finalized period back, totals recomputed from the lines.
func (h *SQLiteHistory) Batch(ctx context.Context, p model.Period) (model.PayrollBatch, error) {
	var (
		batch                model.PayrollBatch
		payDate, finalizedAt string
	)
	err := h.db.QueryRowContext(ctx,
		`SELECT id, pay_date, finalized_at FROM payroll_batches WHERE period = ?`, string(p)).
		Scan(&batch.ID, &payDate, &finalizedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PayrollBatch{}, fmt.Errorf("%w: %s", payroll.ErrPeriodNotFound, p)
	}
	if err != nil {
		return model.PayrollBatch{}, fmt.Errorf("query batch %s: %w", p, err)
	}

	batch.Period = p
	if batch.PayDate, err = time.Parse(dateFormat, payDate); err != nil {
		return model.PayrollBatch{}, fmt.Errorf("parse pay_date %q: %w", payDate, err)
	}
	if batch.FinalizedAt, err = time.Parse(time.RFC3339, finalizedAt); err != nil {
		return model.PayrollBatch{}, fmt.Errorf("parse finalized_at %q: %w", finalizedAt, err)
	}

	rows, err := h.db.QueryContext(ctx,
		`SELECT entry_pos, staff_id, staff_name, category, name, amount
		 FROM payroll_lines WHERE batch_id = ?
		 ORDER BY entry_pos, category, line_pos`, batch.ID)
	if err != nil {
		return model.PayrollBatch{}, fmt.Errorf("query lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pos int
		var staffID, staffName, cat, name, amt string
		if err := rows.Scan(&pos, &staffID, &staffName, &cat, &name, &amt); err != nil {
			return model.PayrollBatch{}, fmt.Errorf("scan line: %w", err)
		}
		amount, err := decimal.NewFromString(amt)
		if err != nil {
			return model.PayrollBatch{}, fmt.Errorf("parse amount %q: %w", amt, err)
		}

		for len(batch.Entries) <= pos {
			batch.Entries = append(batch.Entries, model.PayrollEntry{Period: p, PayDate: batch.PayDate})
		}
		e := &batch.Entries[pos]
		e.StaffID, e.StaffName = staffID, staffName

		line := model.Line{Name: name, Amount: amount}
		if model.Category(cat) == model.CategoryEarning {
			e.Earnings = append(e.Earnings, line)
		} else {
			e.Deductions = append(e.Deductions, line)
		}
	}
	if err := rows.Err(); err != nil {
		return model.PayrollBatch{}, fmt.Errorf("iterate lines: %w", err)
	}

	for i := range batch.Entries {
		batch.Entries[i].Recompute()
	}
	return batch, nil
}

// Periods lists finalized periods in ascending order.
func (h *SQLiteHistory) Periods(ctx context.Context) ([]model.Period, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT period FROM payroll_batches ORDER BY period`)
	if err != nil {
		return nil, fmt.Errorf("query periods: %w", err)
	}
	defer rows.Close()

	var periods []model.Period
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan period: %w", err)
		}
		periods = append(periods, model.Period(p))
	}
	return periods, rows.Err()
}
