package payroll

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bursar-dev/bursar/internal/model"
)

// State is the lifecycle of a worksheet: Generated, then any number of
// edits, then Finalized. Finalized is terminal.
type State string

const (
	StateGenerated State = "generated"
	StateEdited    State = "edited"
	StateFinalized State = "finalized"
)

// Worksheet is the editable, not yet committed batch of entries for one pay
// run. It is owned by a single editing session and is not safe for
// concurrent use.
type Worksheet struct {
	period  model.Period
	payDate time.Time
	entries []model.PayrollEntry
	index   map[string]int
	state   State
}

// NewWorksheet wraps generated entries in a worksheet in the Generated state.
func NewWorksheet(period model.Period, payDate time.Time, entries []model.PayrollEntry) *Worksheet {
	return restore(period, payDate, entries, StateGenerated)
}

func restore(period model.Period, payDate time.Time, entries []model.PayrollEntry, state State) *Worksheet {
	ws := &Worksheet{
		period:  period,
		payDate: payDate,
		entries: make([]model.PayrollEntry, len(entries)),
		index:   make(map[string]int, len(entries)),
		state:   state,
	}
	for i, e := range entries {
		ws.entries[i] = e.Clone()
		ws.index[e.StaffID] = i
	}
	return ws
}

// Period returns the pay period.
func (w *Worksheet) Period() model.Period { return w.period }

// PayDate returns the pay date.
func (w *Worksheet) PayDate() time.Time { return w.payDate }

// State returns the current lifecycle state.
func (w *Worksheet) State() State { return w.state }

// Len returns the number of entries.
func (w *Worksheet) Len() int { return len(w.entries) }

// Entries returns deep copies of the entries in roster order.
func (w *Worksheet) Entries() []model.PayrollEntry {
	out := make([]model.PayrollEntry, len(w.entries))
	for i, e := range w.entries {
		out[i] = e.Clone()
	}
	return out
}

// Entry returns a copy of one staff member's entry.
func (w *Worksheet) Entry(staffID string) (model.PayrollEntry, bool) {
	i, ok := w.index[staffID]
	if !ok {
		return model.PayrollEntry{}, false
	}
	return w.entries[i].Clone(), true
}

// SetDeduction replaces the amount of one named deduction line on one staff
// member's entry, then re-sums that entry's totals from its full line arrays.
// Zero is allowed; negative amounts are rejected.
func (w *Worksheet) SetDeduction(staffID, line string, amount decimal.Decimal) error {
	if w.state == StateFinalized {
		return ErrFinalized
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%w: %s has more than 2 decimal places", ErrInvalidAmount, amount)
	}
	i, ok := w.index[staffID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrStaffNotFound, staffID)
	}

	e := &w.entries[i]
	li := e.Deduction(line)
	if li < 0 {
		return fmt.Errorf("%w: %q on staff %q", ErrLineNotFound, line, staffID)
	}
	e.Deductions[li].Amount = amount
	e.Recompute()
	w.state = StateEdited
	return nil
}

// Totals is the sum of a worksheet's entries.
type Totals struct {
	Staff           int
	GrossPay        decimal.Decimal
	TotalDeductions decimal.Decimal
	NetPay          decimal.Decimal
	ByDeduction     map[string]decimal.Decimal
}

// Totals sums gross, deductions and net pay across all entries, with a
// per-line breakdown of deductions for statutory remittance.
func (w *Worksheet) Totals() Totals {
	return SumEntries(w.entries)
}

// SumEntries totals a set of payroll entries, draft or finalized.
func SumEntries(entries []model.PayrollEntry) Totals {
	t := Totals{
		Staff:           len(entries),
		GrossPay:        decimal.Zero,
		TotalDeductions: decimal.Zero,
		NetPay:          decimal.Zero,
		ByDeduction:     make(map[string]decimal.Decimal),
	}
	for _, e := range entries {
		t.GrossPay = t.GrossPay.Add(e.GrossPay)
		t.TotalDeductions = t.TotalDeductions.Add(e.TotalDeductions)
		t.NetPay = t.NetPay.Add(e.NetPay)
		for _, l := range e.Deductions {
			t.ByDeduction[l.Name] = t.ByDeduction[l.Name].Add(l.Amount)
		}
	}
	return t
}

func (w *Worksheet) markFinalized() {
	w.state = StateFinalized
}
