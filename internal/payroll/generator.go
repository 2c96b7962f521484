// Package payroll builds, edits and finalizes monthly payroll worksheets.
package payroll

import (
	"fmt"
	"strings"
	"time"

	"github.com/bursar-dev/bursar/internal/model"
	"github.com/bursar-dev/bursar/internal/statutory"
)

// LineBasicSalary is the first earning line of every entry.
const LineBasicSalary = "Basic Salary"

// GenerateParams holds the inputs for one pay run.
type GenerateParams struct {
	Staff      []model.Staff
	Templates  []model.PayrollItemTemplate
	Calculator *statutory.Calculator
	Period     model.Period
	PayDate    time.Time
}

// Generate builds one draft entry per staff member, in roster order.
//
// Earnings are Basic Salary followed by every recurring earning template.
// Deductions are the four statutory lines computed on gross pay followed by
// every recurring deduction template. Percentage templates are always taken
// of base salary, never of the gross accumulated so far. Non-recurring
// templates are one-off additions and are skipped.
func Generate(p GenerateParams) ([]model.PayrollEntry, error) {
	if err := validateGenerate(p); err != nil {
		return nil, err
	}

	var earnings, deductions []model.PayrollItemTemplate
	for _, t := range p.Templates {
		if !t.Recurring {
			continue
		}
		switch t.Category {
		case model.CategoryEarning:
			earnings = append(earnings, t)
		case model.CategoryDeduction:
			deductions = append(deductions, t)
		}
	}

	entries := make([]model.PayrollEntry, 0, len(p.Staff))
	for _, st := range p.Staff {
		e := model.PayrollEntry{
			StaffID:   st.ID,
			StaffName: st.Name,
			Period:    p.Period,
			PayDate:   p.PayDate,
			Earnings:  []model.Line{{Name: LineBasicSalary, Amount: st.BaseSalary}},
		}
		for _, t := range earnings {
			e.Earnings = append(e.Earnings, model.Line{Name: t.Name, Amount: t.Calculation.Apply(st.BaseSalary)})
		}
		e.Recompute()

		e.Deductions = p.Calculator.Deductions(e.GrossPay)
		for _, t := range deductions {
			e.Deductions = append(e.Deductions, model.Line{Name: t.Name, Amount: t.Calculation.Apply(st.BaseSalary)})
		}
		e.Recompute()

		entries = append(entries, e)
	}
	return entries, nil
}

func validateGenerate(p GenerateParams) error {
	if p.Calculator == nil {
		return fmt.Errorf("%w: no statutory calculator", ErrInvalidInput)
	}
	if p.Period == "" {
		return fmt.Errorf("%w: period is required", ErrInvalidInput)
	}
	if len(p.Staff) == 0 {
		return fmt.Errorf("%w: staff roster is empty", ErrInvalidInput)
	}

	seen := make(map[string]bool, len(p.Staff))
	for _, st := range p.Staff {
		if strings.TrimSpace(st.ID) == "" {
			return fmt.Errorf("%w: staff member %q has no id", ErrInvalidInput, st.Name)
		}
		if seen[st.ID] {
			return fmt.Errorf("%w: duplicate staff id %q", ErrInvalidInput, st.ID)
		}
		seen[st.ID] = true
		if st.BaseSalary.IsNegative() {
			return fmt.Errorf("%w: staff %q has negative base salary %s", ErrInvalidInput, st.ID, st.BaseSalary)
		}
	}

	names := map[string]bool{LineBasicSalary: true}
	for _, n := range statutory.LineNames {
		names[n] = true
	}
	for _, t := range p.Templates {
		if !t.Recurring {
			continue
		}
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("%w: template with empty name", ErrInvalidInput)
		}
		if names[t.Name] {
			return fmt.Errorf("%w: template name %q is already used", ErrInvalidInput, t.Name)
		}
		names[t.Name] = true
		if !t.Category.Valid() {
			return fmt.Errorf("%w: template %q has unknown category %q", ErrInvalidInput, t.Name, t.Category)
		}
		if t.Calculation == nil {
			return fmt.Errorf("%w: template %q has no calculation", ErrInvalidInput, t.Name)
		}
		if err := checkCalculation(t); err != nil {
			return err
		}
	}
	return nil
}

func checkCalculation(t model.PayrollItemTemplate) error {
	switch c := t.Calculation.(type) {
	case model.Fixed:
		if c.Amount.IsNegative() {
			return fmt.Errorf("%w: template %q has negative amount", ErrInvalidInput, t.Name)
		}
	case model.PercentOfBasic:
		if c.Rate.IsNegative() {
			return fmt.Errorf("%w: template %q has negative rate", ErrInvalidInput, t.Name)
		}
	default:
		return fmt.Errorf("%w: template %q has unsupported calculation %T", ErrInvalidInput, t.Name, c)
	}
	return nil
}
