package payroll

import "errors"

var (
	// ErrInvalidInput is returned when generation inputs fail validation.
	ErrInvalidInput = errors.New("invalid payroll input")
	// ErrInvalidAmount is returned for a negative deduction edit.
	ErrInvalidAmount = errors.New("deduction amount must not be negative")
	// ErrStaffNotFound is returned when an edit names a staff member not on the worksheet.
	ErrStaffNotFound = errors.New("staff member not on worksheet")
	// ErrLineNotFound is returned when an edit names a deduction line the entry does not have.
	ErrLineNotFound = errors.New("deduction line not found")
	// ErrFinalized is returned when editing or re-finalizing a finalized worksheet.
	ErrFinalized = errors.New("worksheet already finalized")
	// ErrAlreadyFinalized is returned when the history store already holds the period.
	ErrAlreadyFinalized = errors.New("payroll period already finalized")
	// ErrUnbalanced is returned if an entry's totals do not match its lines.
	ErrUnbalanced = errors.New("payroll entry totals do not match lines")
	// ErrNoDraft is returned when no draft worksheet exists for a period.
	ErrNoDraft = errors.New("no draft worksheet for period")
	// ErrPeriodNotFound is returned when the history store has no batch for a period.
	ErrPeriodNotFound = errors.New("payroll period not found")
)
