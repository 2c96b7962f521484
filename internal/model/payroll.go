package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Period identifies a pay month, formatted "YYYY-MM".
type Period string

// Category says whether a payroll item adds to pay or is withheld from it.
type Category string

const (
	CategoryEarning   Category = "earning"
	CategoryDeduction Category = "deduction"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c == CategoryEarning || c == CategoryDeduction
}

var hundred = decimal.NewFromInt(100)

// Calculation is how a payroll item's amount is derived from base salary.
// Implemented only by Fixed and PercentOfBasic.
type Calculation interface {
	Apply(basic decimal.Decimal) decimal.Decimal
	isCalculation()
}

// Fixed is a flat amount regardless of salary.
type Fixed struct {
	Amount decimal.Decimal
}

// Apply returns the fixed amount.
func (f Fixed) Apply(decimal.Decimal) decimal.Decimal { return f.Amount }

func (Fixed) isCalculation() {}

// PercentOfBasic is Rate percent of base salary. It is always applied to the
// base salary, never to gross accumulated so far.
type PercentOfBasic struct {
	Rate decimal.Decimal // 10 means 10%
}

// Apply returns rate/100 x basic rounded to cents.
func (p PercentOfBasic) Apply(basic decimal.Decimal) decimal.Decimal {
	return p.Rate.Div(hundred).Mul(basic).Round(2)
}

func (PercentOfBasic) isCalculation() {}

// PayrollItemTemplate is a configured earning or deduction.
type PayrollItemTemplate struct {
	Name        string
	Category    Category
	Calculation Calculation
	Recurring   bool
}

// Line is one named amount on a payroll entry.
type Line struct {
	Name   string
	Amount decimal.Decimal
}

// PayrollEntry is one staff member's pay for one period.
//
// GrossPay, TotalDeductions and NetPay are always derived from the line
// arrays; call Recompute after touching any line.
type PayrollEntry struct {
	StaffID         string
	StaffName       string
	Period          Period
	PayDate         time.Time
	Earnings        []Line
	Deductions      []Line
	GrossPay        decimal.Decimal
	TotalDeductions decimal.Decimal
	NetPay          decimal.Decimal
}

// Recompute re-sums every total from the full line arrays.
func (e *PayrollEntry) Recompute() {
	e.GrossPay = sumLines(e.Earnings)
	e.TotalDeductions = sumLines(e.Deductions)
	e.NetPay = e.GrossPay.Sub(e.TotalDeductions)
}

// Balanced reports whether the stored totals match the lines.
func (e PayrollEntry) Balanced() bool {
	gross := sumLines(e.Earnings)
	ded := sumLines(e.Deductions)
	return e.GrossPay.Equal(gross) &&
		e.TotalDeductions.Equal(ded) &&
		e.NetPay.Equal(gross.Sub(ded))
}

// Deduction returns the index of the named deduction line, or -1.
func (e PayrollEntry) Deduction(name string) int {
	for i, l := range e.Deductions {
		if l.Name == name {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so line slices are not shared.
func (e PayrollEntry) Clone() PayrollEntry {
	c := e
	c.Earnings = append([]Line(nil), e.Earnings...)
	c.Deductions = append([]Line(nil), e.Deductions...)
	return c
}

// PayrollBatch is a finalized pay run, stored append-only.
type PayrollBatch struct {
	ID          string
	Period      Period
	PayDate     time.Time
	FinalizedAt time.Time
	Entries     []PayrollEntry
}

func sumLines(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount)
	}
	return total
}
