package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/bursar-dev/bursar/internal/model"
)

// StatementLine is a transaction with the running total after it is applied.
type StatementLine struct {
	Transaction model.Transaction
	Running     decimal.Decimal
}

// Chronological returns a copy of txns sorted by calendar day. Transactions
// on the same day keep their arrival order.
func Chronological(txns []model.Transaction) []model.Transaction {
	ordered := append([]model.Transaction(nil), txns...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return dayKey(ordered[i].Date) < dayKey(ordered[j].Date)
	})
	return ordered
}

func dayKey(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// Statement returns the running total after each transaction in date order.
func Statement(txns []model.Transaction) []StatementLine {
	ordered := Chronological(txns)
	lines := make([]StatementLine, len(ordered))
	total := decimal.Zero
	for i, t := range ordered {
		total = total.Add(t.Signed())
		lines[i] = StatementLine{Transaction: t, Running: total}
	}
	return lines
}

// Summarize derives a student's balance from all of their transactions.
//
// Invoices and manual debits add to the running total, payments and manual
// credits subtract. Only payments move LastPaymentDate. The result is a pure
// function of txns; input is not modified.
func Summarize(studentID string, txns []model.Transaction) model.StudentFinancialSummary {
	total := decimal.Zero
	var lastPayment time.Time
	for _, t := range Chronological(txns) {
		total = total.Add(t.Signed())
		if t.Kind == model.KindPayment {
			lastPayment = t.Date
		}
	}

	s := model.StudentFinancialSummary{
		StudentID:        studentID,
		Balance:          decimal.Zero,
		Overpayment:      decimal.Zero,
		LastPaymentDate:  lastPayment,
		TransactionCount: len(txns),
	}
	if total.IsPositive() {
		s.Balance = total
	} else if total.IsNegative() {
		s.Overpayment = total.Neg()
	}
	return s
}

// Partition groups transactions by student, keeping arrival order within
// each student.
func Partition(txns []model.Transaction) map[string][]model.Transaction {
	parts := make(map[string][]model.Transaction)
	for _, t := range txns {
		parts[t.StudentID] = append(parts[t.StudentID], t)
	}
	return parts
}

// SummarizeAll summarizes every student in txns, running up to workers
// partitions at once (workers <= 0 means unlimited). Results are sorted by
// student ID.
func SummarizeAll(ctx context.Context, txns []model.Transaction, workers int) ([]model.StudentFinancialSummary, error) {
	parts := Partition(txns)
	ids := make([]string, 0, len(parts))
	for sid := range parts {
		ids = append(ids, sid)
	}
	sort.Strings(ids)

	out := make([]model.StudentFinancialSummary, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, sid := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = Summarize(sid, parts[sid])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
