package payroll

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bursar-dev/bursar/internal/model"
)

// HistoryDir is where CSVHistory keeps one file per finalized period.
const HistoryDir = "payroll/history"

// HistoryHeader is the CSV header of a history file. Each row is one line
// item; totals are re-derived on read.
const HistoryHeader = "batch_id,period,pay_date,finalized_at,staff_id,staff_name,category,name,amount"

const (
	histNumFields  = 9
	colBatchID     = 0
	colPeriod      = 1
	colPayDate     = 2
	colFinalizedAt = 3
	colStaffID     = 4
	colStaffName   = 5
	colCategory    = 6
	colLineName    = 7
	colLineAmount  = 8
	dateFormat     = "2006-01-02"
)

// CSVHistory stores each finalized batch as payroll/history/<period>.csv.
// A batch is written to a temporary file and renamed into place, so a period
// file either holds the complete batch or does not exist.
type CSVHistory struct {
	dir string
}

// NewCSVHistory creates a CSV-backed history store under repoRoot.
func NewCSVHistory(repoRoot string) *CSVHistory {
	return &CSVHistory{dir: filepath.Join(repoRoot, filepath.FromSlash(HistoryDir))}
}

func (h *CSVHistory) path(p model.Period) string {
	return filepath.Join(h.dir, string(p)+".csv")
}

// IsFinalized reports whether a history file exists for the period.
func (h *CSVHistory) IsFinalized(ctx context.Context, p model.Period) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(h.path(p))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking history for %s: %w", p, err)
	}
	return true, nil
}

// AppendBatch writes the batch as a new period file.
func (h *CSVHistory) AppendBatch(ctx context.Context, batch model.PayrollBatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return fmt.Errorf("creating history dir: %w", err)
	}

	tmp, err := os.CreateTemp(h.dir, "."+string(batch.Period)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp history file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteBatch(tmp, batch); err != nil {
		tmp.Close()
		return fmt.Errorf("writing history: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing history: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	dst := h.path(batch.Period)
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("%w: %s", ErrAlreadyFinalized, batch.Period)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("committing history: %w", err)
	}
	return nil
}

// Batch reads back a finalized period.
func (h *CSVHistory) Batch(ctx context.Context, p model.Period) (model.PayrollBatch, error) {
	if err := ctx.Err(); err != nil {
		return model.PayrollBatch{}, err
	}
	f, err := os.Open(h.path(p))
	if errors.Is(err, fs.ErrNotExist) {
		return model.PayrollBatch{}, fmt.Errorf("%w: %s", ErrPeriodNotFound, p)
	}
	if err != nil {
		return model.PayrollBatch{}, fmt.Errorf("opening history for %s: %w", p, err)
	}
	defer f.Close()

	batch, err := ReadBatch(f)
	if err != nil {
		return model.PayrollBatch{}, fmt.Errorf("reading history for %s: %w", p, err)
	}
	return batch, nil
}

// Periods lists finalized periods in ascending order.
func (h *CSVHistory) Periods(ctx context.Context) ([]model.Period, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(h.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading history dir: %w", err)
	}

	var periods []model.Period
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".csv") {
			continue
		}
		periods = append(periods, model.Period(strings.TrimSuffix(name, ".csv")))
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i] < periods[j] })
	return periods, nil
}

// WriteBatch writes a batch as history CSV (including header).
func WriteBatch(w io.Writer, batch model.PayrollBatch) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(HistoryHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	row := make([]string, histNumFields)
	row[colBatchID] = batch.ID
	row[colPeriod] = string(batch.Period)
	row[colPayDate] = batch.PayDate.Format(dateFormat)
	row[colFinalizedAt] = batch.FinalizedAt.UTC().Format(time.RFC3339)

	write := func(e model.PayrollEntry, cat model.Category, lines []model.Line) error {
		for _, l := range lines {
			row[colStaffID] = e.StaffID
			row[colStaffName] = e.StaffName
			row[colCategory] = string(cat)
			row[colLineName] = l.Name
			row[colLineAmount] = l.Amount.StringFixed(2)
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("writing staff %s: %w", e.StaffID, err)
			}
		}
		return nil
	}
	for _, e := range batch.Entries {
		if err := write(e, model.CategoryEarning, e.Earnings); err != nil {
			return err
		}
		if err := write(e, model.CategoryDeduction, e.Deductions); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadBatch parses history CSV back into a batch. Entries come back in the
// order they were written, with totals recomputed from the lines.
func ReadBatch(r io.Reader) (model.PayrollBatch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = histNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return model.PayrollBatch{}, fmt.Errorf("reading history CSV: %w", err)
	}
	if len(records) <= 1 {
		return model.PayrollBatch{}, errors.New("history file has no rows")
	}

	var batch model.PayrollBatch
	index := make(map[string]int)
	for i, rec := range records[1:] {
		if i == 0 {
			batch.ID = rec[colBatchID]
			batch.Period = model.Period(rec[colPeriod])
			if batch.PayDate, err = time.Parse(dateFormat, rec[colPayDate]); err != nil {
				return model.PayrollBatch{}, fmt.Errorf("row %d: parsing pay_date: %w", i+2, err)
			}
			if batch.FinalizedAt, err = time.Parse(time.RFC3339, rec[colFinalizedAt]); err != nil {
				return model.PayrollBatch{}, fmt.Errorf("row %d: parsing finalized_at: %w", i+2, err)
			}
		}

		amount, err := decimal.NewFromString(rec[colLineAmount])
		if err != nil {
			return model.PayrollBatch{}, fmt.Errorf("row %d: parsing amount %q: %w", i+2, rec[colLineAmount], err)
		}

		staffID := rec[colStaffID]
		ei, ok := index[staffID]
		if !ok {
			ei = len(batch.Entries)
			index[staffID] = ei
			batch.Entries = append(batch.Entries, model.PayrollEntry{
				StaffID:   staffID,
				StaffName: rec[colStaffName],
				Period:    batch.Period,
				PayDate:   batch.PayDate,
			})
		}
		e := &batch.Entries[ei]
		line := model.Line{Name: rec[colLineName], Amount: amount}
		switch model.Category(rec[colCategory]) {
		case model.CategoryEarning:
			e.Earnings = append(e.Earnings, line)
		case model.CategoryDeduction:
			e.Deductions = append(e.Deductions, line)
		default:
			return model.PayrollBatch{}, fmt.Errorf("row %d: unknown category %q", i+2, rec[colCategory])
		}
	}

	for i := range batch.Entries {
		batch.Entries[i].Recompute()
	}
	return batch, nil
}
