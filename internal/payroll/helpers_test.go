package payroll

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bursar-dev/bursar/internal/model"
	"github.com/bursar-dev/bursar/internal/statutory"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var payDate = time.Date(2025, 1, 28, 0, 0, 0, 0, time.UTC)

func testCalculator(t *testing.T) *statutory.Calculator {
	t.Helper()
	c, err := statutory.New(statutory.Config{
		Brackets: []statutory.Bracket{
			{UpperBound: dec("288000"), Rate: dec("0.10")},
			{UpperBound: dec("388000"), Rate: dec("0.25")},
			{UpperBound: dec("6000000"), Rate: dec("0.30")},
			{UpperBound: dec("9600000"), Rate: dec("0.325")},
			{Rate: dec("0.35")},
		},
		PersonalRelief:  dec("2400"),
		PensionRate:     dec("0.06"),
		PensionCeiling:  dec("72000"),
		HealthLevyRate:  dec("0.0275"),
		HousingLevyRate: dec("0.015"),
	})
	require.NoError(t, err)
	return c
}

func allowance() model.PayrollItemTemplate {
	return model.PayrollItemTemplate{
		Name:        "House Allowance",
		Category:    model.CategoryEarning,
		Calculation: model.PercentOfBasic{Rate: dec("10")},
		Recurring:   true,
	}
}

func generate(t *testing.T, staff []model.Staff, templates ...model.PayrollItemTemplate) []model.PayrollEntry {
	t.Helper()
	entries, err := Generate(GenerateParams{
		Staff:      staff,
		Templates:  templates,
		Calculator: testCalculator(t),
		Period:     "2025-01",
		PayDate:    payDate,
	})
	require.NoError(t, err)
	return entries
}

// memoryStore is an in-memory HistoryStore with injectable failures.
type memoryStore struct {
	mu        sync.Mutex
	batches   map[model.Period]model.PayrollBatch
	appendErr error
	checkErr  error
	appends   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{batches: make(map[model.Period]model.PayrollBatch)}
}

func (m *memoryStore) IsFinalized(ctx context.Context, p model.Period) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.checkErr != nil {
		return false, m.checkErr
	}
	_, ok := m.batches[p]
	return ok, nil
}

func (m *memoryStore) AppendBatch(ctx context.Context, b model.PayrollBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appends++
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.appendErr != nil {
		return m.appendErr
	}
	m.batches[b.Period] = b
	return nil
}

func (m *memoryStore) Batch(ctx context.Context, p model.Period) (model.PayrollBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[p]
	if !ok {
		return model.PayrollBatch{}, ErrPeriodNotFound
	}
	return b, nil
}

func (m *memoryStore) Periods(ctx context.Context) ([]model.Period, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Period
	for p := range m.batches {
		out = append(out, p)
	}
	return out, nil
}

var errDiskFull = errors.New("disk full")
