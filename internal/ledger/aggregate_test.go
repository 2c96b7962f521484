package ledger

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bursar-dev/bursar/internal/model"
)

func TestSummarize_Reconciled(t *testing.T) {
	txns := []model.Transaction{
		txn(model.KindInvoice, "10000", 1),
		txn(model.KindPayment, "4000", 2),
		txn(model.KindInvoice, "2000", 3),
		txn(model.KindPayment, "8000", 4),
	}

	lines := Statement(txns)
	require.Len(t, lines, 4)
	for i, want := range []string{"10000", "6000", "8000", "0"} {
		assert.True(t, lines[i].Running.Equal(dec(want)), "step %d: got %s want %s", i, lines[i].Running, want)
	}

	s := Summarize("S001", txns)
	assert.True(t, s.Balance.IsZero())
	assert.True(t, s.Overpayment.IsZero())
	assert.Equal(t, day(4), s.LastPaymentDate)
	assert.Equal(t, 4, s.TransactionCount)
}

func TestSummarize_Overpayment(t *testing.T) {
	s := Summarize("S001", []model.Transaction{
		txn(model.KindInvoice, "5000", 1),
		txn(model.KindPayment, "9000", 2),
	})
	assert.True(t, s.Balance.IsZero())
	assert.True(t, s.Overpayment.Equal(dec("4000")))
	assert.True(t, s.Net().Equal(dec("-4000")))
}

func TestSummarize_ManualCreditDoesNotCountAsPayment(t *testing.T) {
	s := Summarize("S001", []model.Transaction{
		txn(model.KindInvoice, "5000", 1),
		txn(model.KindPayment, "1000", 2),
		txn(model.KindManualCredit, "500", 5),
		txn(model.KindManualDebit, "250", 6),
	})
	assert.True(t, s.Balance.Equal(dec("3750")))
	assert.Equal(t, day(2), s.LastPaymentDate)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize("S001", nil)
	assert.True(t, s.Balance.IsZero())
	assert.True(t, s.Overpayment.IsZero())
	assert.False(t, s.HasPaid())
}

func TestSummarize_SortsByDateNotArrival(t *testing.T) {
	txns := []model.Transaction{
		txn(model.KindPayment, "300", 9),
		txn(model.KindInvoice, "1000", 1),
		txn(model.KindPayment, "200", 3),
	}
	s := Summarize("S001", txns)
	assert.True(t, s.Balance.Equal(dec("500")))
	assert.Equal(t, day(9), s.LastPaymentDate)
	assert.Equal(t, "300", txns[0].Amount.String(), "input must not be reordered")
}

func TestChronological_StableWithinDay(t *testing.T) {
	txns := []model.Transaction{
		{ID: "c", Date: day(2)},
		{ID: "a", Date: day(1).Add(23 * time.Hour)},
		{ID: "b", Date: day(1)},
		{ID: "d", Date: day(2)},
	}
	var got []string
	for _, tx := range Chronological(txns) {
		got = append(got, tx.ID)
	}
	// a and b fall on the same day so arrival order wins over time of day.
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
}

func randomTransactions(r *rand.Rand, n int) []model.Transaction {
	txns := make([]model.Transaction, n)
	for i := range txns {
		kind := model.TransactionKinds[r.IntN(len(model.TransactionKinds))]
		cents := r.IntN(1_000_000) + 1
		txns[i] = model.Transaction{
			ID:        fmt.Sprintf("t%d", i),
			StudentID: "S001",
			Kind:      kind,
			Amount:    decimal.New(int64(cents), -2),
			Date:      day(r.IntN(28) + 1),
		}
	}
	return txns
}

func TestSummarize_Properties(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for round := 0; round < 200; round++ {
		txns := randomTransactions(r, r.IntN(40))

		signed := decimal.Zero
		for _, tx := range txns {
			signed = signed.Add(tx.Signed())
		}

		s := Summarize("S001", txns)
		require.True(t, s.Net().Equal(signed), "round %d: net %s != signed sum %s", round, s.Net(), signed)
		require.False(t, s.Balance.IsNegative())
		require.False(t, s.Overpayment.IsNegative())
		require.False(t, s.Balance.IsPositive() && s.Overpayment.IsPositive(), "both balance and overpayment set")

		shuffled := append([]model.Transaction(nil), txns...)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		again := Summarize("S001", shuffled)
		require.True(t, again.Net().Equal(signed), "ordering changed the total")

		require.Equal(t, s, Summarize("S001", txns), "recompute must be idempotent")
	}
}

func TestSummarizeAll(t *testing.T) {
	var txns []model.Transaction
	for _, sid := range []string{"S003", "S001", "S002"} {
		txns = append(txns,
			model.Transaction{StudentID: sid, Kind: model.KindInvoice, Amount: dec("1000"), Date: day(1)},
			model.Transaction{StudentID: sid, Kind: model.KindPayment, Amount: dec("400"), Date: day(2)},
		)
	}
	txns = append(txns, model.Transaction{StudentID: "S002", Kind: model.KindPayment, Amount: dec("1000"), Date: day(3)})

	got, err := SummarizeAll(context.Background(), txns, 2)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "S001", got[0].StudentID)
	assert.Equal(t, "S002", got[1].StudentID)
	assert.Equal(t, "S003", got[2].StudentID)
	assert.True(t, got[0].Balance.Equal(dec("600")))
	assert.True(t, got[1].Overpayment.Equal(dec("400")))

	for _, s := range got {
		parts := Partition(txns)
		assert.Equal(t, Summarize(s.StudentID, parts[s.StudentID]), s)
	}
}

func TestSummarizeAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := SummarizeAll(ctx, []model.Transaction{txn(model.KindInvoice, "1", 1)}, 0)
	require.ErrorIs(t, err, context.Canceled)
}
