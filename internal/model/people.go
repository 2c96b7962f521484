package model

import "github.com/shopspring/decimal"

// Staff is a row in roster/staff.csv. The statutory identifiers are carried
// through to payslips and forms only; they take no part in computation.
type Staff struct {
	ID         string
	Name       string
	BaseSalary decimal.Decimal
	TaxPIN     string
	PensionNo  string
	HealthNo   string
}

// Student is a row in roster/students.csv.
type Student struct {
	ID    string
	Name  string
	Class string
}
