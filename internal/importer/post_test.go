package importer

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bursar-dev/bursar/internal/ledger"
	"github.com/bursar-dev/bursar/internal/model"
)

type enrolled map[string]bool

func (e enrolled) Exists(id string) bool { return e[id] }

func confirmation(receipt, student, amount string) model.PaymentConfirmation {
	return model.PaymentConfirmation{
		Receipt:   receipt,
		Date:      time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC),
		PaidBy:    "JANE WAMBUI",
		StudentID: student,
		Amount:    decimal.RequireFromString(amount),
		Method:    "mobile_money",
	}
}

func TestPoster_Post(t *testing.T) {
	students := enrolled{"S001": true, "S002": true}
	svc := ledger.NewService(t.TempDir(), students, nil)
	p := NewPoster(svc, students, nil)

	res, err := p.Post("paybill.csv", []model.PaymentConfirmation{
		confirmation("R1", "S001", "15000"),
		confirmation("R2", "S009", "100"),
		confirmation("R1", "S001", "15000"),
		confirmation("R3", "S002", "7500"),
	})
	require.NoError(t, err)
	require.Len(t, res.Recorded, 2)
	assert.Equal(t, []string{"R1"}, res.Duplicates)
	require.Len(t, res.Unmatched, 1)
	assert.Equal(t, "S009", res.Unmatched[0].StudentID)

	assert.Equal(t, model.KindPayment, res.Recorded[0].Kind)
	assert.Equal(t, "R1", res.Recorded[0].Reference)
	assert.Equal(t, "Payment from JANE WAMBUI", res.Recorded[0].Description)

	sum, err := svc.Summary("S001")
	require.NoError(t, err)
	assert.True(t, sum.Balance.IsZero())
	assert.Equal(t, "15000.00", sum.Overpayment.StringFixed(2))

	// Importing the same file again records nothing.
	res, err = p.Post("paybill.csv", []model.PaymentConfirmation{
		confirmation("R1", "S001", "15000"),
		confirmation("R3", "S002", "7500"),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Recorded)
	assert.Equal(t, []string{"R1", "R3"}, res.Duplicates)
}

type failingLedger struct{}

var errLedgerDown = errors.New("ledger unavailable")

func (failingLedger) PaymentReferences() (map[string]bool, error) { return nil, nil }

func (failingLedger) RecordAll([]ledger.RecordParams) ([]model.Transaction, error) {
	return nil, errLedgerDown
}

func TestPoster_RecordFailure(t *testing.T) {
	p := NewPoster(failingLedger{}, enrolled{"S001": true}, nil)
	_, err := p.Post("paybill.csv", []model.PaymentConfirmation{confirmation("R1", "S001", "10")})
	require.ErrorIs(t, err, errLedgerDown)
}

func TestPoster_NothingToRecord(t *testing.T) {
	p := NewPoster(failingLedger{}, enrolled{}, nil)
	res, err := p.Post("paybill.csv", []model.PaymentConfirmation{confirmation("R1", "S404", "10")})
	require.NoError(t, err)
	assert.Empty(t, res.Recorded)
	assert.Len(t, res.Unmatched, 1)
}

type countingLedger struct {
	refs  map[string]bool
	reads int
}

func (c *countingLedger) PaymentReferences() (map[string]bool, error) {
	c.reads++
	return c.refs, nil
}

func (c *countingLedger) RecordAll(params []ledger.RecordParams) ([]model.Transaction, error) {
	out := make([]model.Transaction, len(params))
	for i, p := range params {
		out[i] = model.Transaction{StudentID: p.StudentID, Kind: p.Kind, Reference: p.Reference}
	}
	return out, nil
}

func TestPoster_ReadsLedgerOnce(t *testing.T) {
	l := &countingLedger{refs: map[string]bool{"R2": true}}
	p := NewPoster(l, enrolled{"S001": true}, nil)

	res, err := p.Post("paybill.csv", []model.PaymentConfirmation{
		confirmation("R1", "S001", "10"),
		confirmation("R2", "S001", "20"),
		confirmation("R3", "S001", "30"),
		confirmation("R4", "S001", "40"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, l.reads)
	assert.Len(t, res.Recorded, 3)
	assert.Equal(t, []string{"R2"}, res.Duplicates)
}
