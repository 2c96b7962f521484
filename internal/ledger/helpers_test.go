package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bursar-dev/bursar/internal/model"
)

// mockStudents implements StudentChecker for testing.
type mockStudents struct {
	ids map[string]bool
}

func (m *mockStudents) Exists(id string) bool {
	return m.ids[id]
}

func newMockStudents(ids ...string) *mockStudents {
	m := &mockStudents{ids: make(map[string]bool)}
	for _, id := range ids {
		m.ids[id] = true
	}
	return m
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(n int) time.Time {
	return time.Date(2025, 1, n, 0, 0, 0, 0, time.UTC)
}

func txn(kind model.TransactionKind, amount string, d int) model.Transaction {
	return model.Transaction{StudentID: "S001", Kind: kind, Amount: dec(amount), Date: day(d)}
}
