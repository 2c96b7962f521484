package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind classifies a ledger entry. The effect on a student's
// balance comes from the kind, never from the sign of the amount.
type TransactionKind string

const (
	KindInvoice      TransactionKind = "invoice"
	KindPayment      TransactionKind = "payment"
	KindManualDebit  TransactionKind = "manual_debit"
	KindManualCredit TransactionKind = "manual_credit"
)

// Direction is the side of the running balance a kind moves.
type Direction int

const (
	// Debit increases what the student owes.
	Debit Direction = 1
	// Credit decreases what the student owes.
	Credit Direction = -1
)

// TransactionKinds lists every kind in display order.
var TransactionKinds = []TransactionKind{KindInvoice, KindPayment, KindManualDebit, KindManualCredit}

// Direction reports whether the kind debits or credits the student.
// Unknown kinds return 0 and must be rejected before aggregation.
func (k TransactionKind) Direction() Direction {
	switch k {
	case KindInvoice, KindManualDebit:
		return Debit
	case KindPayment, KindManualCredit:
		return Credit
	}
	return 0
}

// Valid reports whether k is one of the known kinds.
func (k TransactionKind) Valid() bool {
	return k.Direction() != 0
}

// ParseTransactionKind accepts the canonical kind names.
func ParseTransactionKind(s string) (TransactionKind, error) {
	k := TransactionKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown transaction kind %q", s)
	}
	return k, nil
}

// Transaction is an immutable ledger entry. Amount is always positive.
type Transaction struct {
	ID          string
	StudentID   string
	Kind        TransactionKind
	Amount      decimal.Decimal
	Date        time.Time
	Description string
	Method      string // optional: cash, bank, mobile-money...
	Reference   string // optional external reference (receipt number)
}

// Signed returns the amount with the sign of its direction.
func (t Transaction) Signed() decimal.Decimal {
	if t.Kind.Direction() == Credit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// StudentFinancialSummary is derived from a student's transactions and never persisted.
// At most one of Balance and Overpayment is non-zero.
type StudentFinancialSummary struct {
	StudentID        string
	Balance          decimal.Decimal
	Overpayment      decimal.Decimal
	LastPaymentDate  time.Time // zero if the student has never paid
	TransactionCount int
}

// Net returns Balance - Overpayment, the signed ledger total.
func (s StudentFinancialSummary) Net() decimal.Decimal {
	return s.Balance.Sub(s.Overpayment)
}

// HasPaid reports whether a payment has ever been recorded.
func (s StudentFinancialSummary) HasPaid() bool {
	return !s.LastPaymentDate.IsZero()
}

// PaymentConfirmation is one confirmed receipt from a payment provider export,
// before it is posted to the ledger.
type PaymentConfirmation struct {
	Receipt   string // provider receipt number, used as the ledger reference
	Date      time.Time
	PaidBy    string
	StudentID string // the account number the payer quoted
	Amount    decimal.Decimal
	Method    string
}
