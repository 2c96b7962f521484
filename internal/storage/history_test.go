package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bursar-dev/bursar/internal/model"
	"github.com/bursar-dev/bursar/internal/payroll"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newHistory(t *testing.T) *SQLiteHistory {
	t.Helper()
	h, err := NewSQLiteHistory(filepath.Join(t.TempDir(), "data", "bursar.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func entry(id, name string, basic, paye, pension string) model.PayrollEntry {
	e := model.PayrollEntry{
		StaffID:   id,
		StaffName: name,
		Period:    "2025-01",
		PayDate:   time.Date(2025, 1, 28, 0, 0, 0, 0, time.UTC),
		Earnings: []model.Line{
			{Name: "Basic Salary", Amount: dec(basic)},
			{Name: "House Allowance", Amount: dec(basic).Div(decimal.NewFromInt(10))},
		},
		Deductions: []model.Line{
			{Name: "PAYE", Amount: dec(paye)},
			{Name: "Pension", Amount: dec(pension)},
		},
	}
	e.Recompute()
	return e
}

func batch(period model.Period, id string) model.PayrollBatch {
	return model.PayrollBatch{
		ID:          id,
		Period:      period,
		PayDate:     time.Date(2025, 1, 28, 0, 0, 0, 0, time.UTC),
		FinalizedAt: time.Date(2025, 1, 27, 9, 30, 0, 0, time.UTC),
		Entries: []model.PayrollEntry{
			entry("T001", "Alice Wanjiru", "50000", "8883.33", "3300.00"),
			entry("T002", "Brian Otieno", "40000", "5000.00", "0"),
		},
	}
}

func TestSQLiteHistory_RoundTrip(t *testing.T) {
	ctx := context.Background()
	h := newHistory(t)

	done, err := h.IsFinalized(ctx, "2025-01")
	require.NoError(t, err)
	assert.False(t, done)

	want := batch("2025-01", "pay_2025-01_abcd1234")
	require.NoError(t, h.AppendBatch(ctx, want))

	done, err = h.IsFinalized(ctx, "2025-01")
	require.NoError(t, err)
	assert.True(t, done)

	got, err := h.Batch(ctx, "2025-01")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.PayDate, got.PayDate)
	assert.True(t, want.FinalizedAt.Equal(got.FinalizedAt))
	require.Len(t, got.Entries, 2)

	for i, w := range want.Entries {
		e := got.Entries[i]
		assert.Equal(t, w.StaffID, e.StaffID)
		assert.Equal(t, w.StaffName, e.StaffName)
		require.Len(t, e.Earnings, 2)
		require.Len(t, e.Deductions, 2)
		assert.Equal(t, "Basic Salary", e.Earnings[0].Name)
		assert.Equal(t, "PAYE", e.Deductions[0].Name)
		assert.True(t, w.GrossPay.Equal(e.GrossPay))
		assert.True(t, w.NetPay.Equal(e.NetPay))
		assert.True(t, e.Balanced())
	}
	assert.True(t, got.Entries[1].Deductions[1].Amount.IsZero())
}

func TestSQLiteHistory_PeriodIsUnique(t *testing.T) {
	ctx := context.Background()
	h := newHistory(t)

	require.NoError(t, h.AppendBatch(ctx, batch("2025-01", "pay_2025-01_first")))
	err := h.AppendBatch(ctx, batch("2025-01", "pay_2025-01_second"))
	require.ErrorIs(t, err, payroll.ErrAlreadyFinalized)

	got, err := h.Batch(ctx, "2025-01")
	require.NoError(t, err)
	assert.Equal(t, "pay_2025-01_first", got.ID)
}

func TestSQLiteHistory_FailedAppendLeavesNothing(t *testing.T) {
	ctx := context.Background()
	h := newHistory(t)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err := h.AppendBatch(cancelled, batch("2025-03", "pay_2025-03_abcd1234"))
	require.Error(t, err)

	done, err := h.IsFinalized(ctx, "2025-03")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestSQLiteHistory_Periods(t *testing.T) {
	ctx := context.Background()
	h := newHistory(t)

	periods, err := h.Periods(ctx)
	require.NoError(t, err)
	assert.Empty(t, periods)

	require.NoError(t, h.AppendBatch(ctx, batch("2025-02", "pay_2025-02_x")))
	require.NoError(t, h.AppendBatch(ctx, batch("2025-01", "pay_2025-01_x")))

	periods, err = h.Periods(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Period{"2025-01", "2025-02"}, periods)
}

func TestSQLiteHistory_BatchNotFound(t *testing.T) {
	_, err := newHistory(t).Batch(context.Background(), "2030-01")
	require.ErrorIs(t, err, payroll.ErrPeriodNotFound)
}

func TestSQLiteHistory_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bursar.db")

	h, err := NewSQLiteHistory(path, nil)
	require.NoError(t, err)
	require.NoError(t, h.AppendBatch(ctx, batch("2025-01", "pay_2025-01_x")))
	require.NoError(t, h.Close())

	h, err = NewSQLiteHistory(path, nil)
	require.NoError(t, err)
	defer h.Close()

	done, err := h.IsFinalized(ctx, "2025-01")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestSQLiteHistory_WithFinalizer(t *testing.T) {
	ctx := context.Background()
	h := newHistory(t)

	b := batch("2025-01", "")
	ws := payroll.NewWorksheet(b.Period, b.PayDate, b.Entries)
	got, err := payroll.NewFinalizer(h, nil).Finalize(ctx, ws)
	require.NoError(t, err)

	stored, err := h.Batch(ctx, "2025-01")
	require.NoError(t, err)
	assert.Equal(t, got.ID, stored.ID)

	_, err = payroll.NewFinalizer(h, nil).Finalize(ctx, payroll.NewWorksheet(b.Period, b.PayDate, b.Entries))
	require.ErrorIs(t, err, payroll.ErrAlreadyFinalized)
}
