// Package statutory computes the mandatory monthly tax and levies withheld
// from gross pay. Every rate and threshold comes from Config so a change in
// the law is a configuration edit, not a code change.
package statutory

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bursar-dev/bursar/internal/model"
)

// Deduction line names, in the order Deductions emits them.
const (
	LinePAYE        = "PAYE"
	LinePension     = "Pension"
	LineHealthLevy  = "Health Levy"
	LineHousingLevy = "Housing Levy"
)

// LineNames lists the statutory lines in their fixed order.
var LineNames = []string{LinePAYE, LinePension, LineHealthLevy, LineHousingLevy}

var (
	months = decimal.NewFromInt(12)
	one    = decimal.NewFromInt(1)
)

// Bracket is one band of the annual progressive income tax table.
// A zero UpperBound marks the unbounded top bracket.
type Bracket struct {
	UpperBound decimal.Decimal
	Rate       decimal.Decimal // 0.10 means 10%
}

// Config holds the jurisdiction's current statutory parameters.
type Config struct {
	Brackets        []Bracket
	PersonalRelief  decimal.Decimal // monthly
	PensionRate     decimal.Decimal
	PensionCeiling  decimal.Decimal // monthly pensionable cap; zero means uncapped
	HealthLevyRate  decimal.Decimal
	HousingLevyRate decimal.Decimal
}

// Validate checks that the bracket table is ascending and ends in an
// unbounded bracket, and that every rate is within [0, 1].
func (c Config) Validate() error {
	if len(c.Brackets) == 0 {
		return errors.New("statutory: bracket table is empty")
	}
	prev := decimal.Zero
	for i, b := range c.Brackets {
		if err := checkRate(fmt.Sprintf("bracket %d rate", i+1), b.Rate); err != nil {
			return err
		}
		last := i == len(c.Brackets)-1
		if last {
			if !b.UpperBound.IsZero() {
				return errors.New("statutory: last bracket must be unbounded (upper bound 0)")
			}
			break
		}
		if !b.UpperBound.GreaterThan(prev) {
			return fmt.Errorf("statutory: bracket %d upper bound %s must exceed %s", i+1, b.UpperBound, prev)
		}
		prev = b.UpperBound
	}

	if c.PersonalRelief.IsNegative() {
		return errors.New("statutory: personal relief must not be negative")
	}
	if c.PensionCeiling.IsNegative() {
		return errors.New("statutory: pension ceiling must not be negative")
	}
	for name, r := range map[string]decimal.Decimal{
		"pension rate":      c.PensionRate,
		"health levy rate":  c.HealthLevyRate,
		"housing levy rate": c.HousingLevyRate,
	} {
		if err := checkRate(name, r); err != nil {
			return err
		}
	}
	return nil
}

func checkRate(name string, r decimal.Decimal) error {
	if r.IsNegative() || r.GreaterThan(one) {
		return fmt.Errorf("statutory: %s %s must be between 0 and 1", name, r)
	}
	return nil
}

// Calculator evaluates statutory deductions for one Config. It is immutable
// and safe for concurrent use.
type Calculator struct {
	cfg Config
}

// New validates cfg and returns a Calculator over a private copy of it.
func New(cfg Config) (*Calculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Brackets = append([]Bracket(nil), cfg.Brackets...)
	return &Calculator{cfg: cfg}, nil
}

// IncomeTax returns monthly PAYE on monthly taxable pay.
//
// Pay is annualized, run through the bracket table, brought back to a monthly
// figure and reduced by the monthly personal relief. This is the simplified
// month-by-month approximation, not an annual reconciliation.
func (c *Calculator) IncomeTax(monthly decimal.Decimal) decimal.Decimal {
	if !monthly.IsPositive() {
		return decimal.Zero
	}
	annual := monthly.Mul(months)

	tax := decimal.Zero
	lower := decimal.Zero
	for _, b := range c.cfg.Brackets {
		if !annual.GreaterThan(lower) {
			break
		}
		upper := annual
		if !b.UpperBound.IsZero() && b.UpperBound.LessThan(annual) {
			upper = b.UpperBound
		}
		tax = tax.Add(upper.Sub(lower).Mul(b.Rate))
		if b.UpperBound.IsZero() {
			break
		}
		lower = b.UpperBound
	}

	due := tax.Div(months).Sub(c.cfg.PersonalRelief)
	return nonNegative(due)
}

// Pension returns rate x min(gross, ceiling).
func (c *Calculator) Pension(gross decimal.Decimal) decimal.Decimal {
	pensionable := gross
	if c.cfg.PensionCeiling.IsPositive() {
		pensionable = decimal.Min(gross, c.cfg.PensionCeiling)
	}
	return nonNegative(pensionable.Mul(c.cfg.PensionRate))
}

// HealthLevy returns the flat health levy on gross pay.
func (c *Calculator) HealthLevy(gross decimal.Decimal) decimal.Decimal {
	return nonNegative(gross.Mul(c.cfg.HealthLevyRate))
}

// HousingLevy returns the flat housing levy on gross pay.
func (c *Calculator) HousingLevy(gross decimal.Decimal) decimal.Decimal {
	return nonNegative(gross.Mul(c.cfg.HousingLevyRate))
}

// Deductions returns the four statutory lines for gross pay in fixed order:
// PAYE, Pension, Health Levy, Housing Levy. Gross pay is the taxable pay.
func (c *Calculator) Deductions(gross decimal.Decimal) []model.Line {
	return []model.Line{
		{Name: LinePAYE, Amount: c.IncomeTax(gross)},
		{Name: LinePension, Amount: c.Pension(gross)},
		{Name: LineHealthLevy, Amount: c.HealthLevy(gross)},
		{Name: LineHousingLevy, Amount: c.HousingLevy(gross)},
	}
}

// nonNegative floors at zero and rounds to cents.
func nonNegative(d decimal.Decimal) decimal.Decimal {
	if !d.IsPositive() {
		return decimal.Zero
	}
	return d.Round(2)
}
