package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bursar-dev/bursar/internal/model"
)

// BankDepositParser parses bank deposit slip listings.
type BankDepositParser struct{}

const (
	bankDateFormat = "2006-01-02"
	bankNumFields  = 5
	bankColDate    = 0
	bankColSlip    = 1
	bankColPayer   = 2
	bankColStudent = 3
	bankColAmount  = 4
	bankMethod     = "bank"
)

// Format returns the parser name.
func (p *BankDepositParser) Format() string { return "bank-deposit" }

// Parse reads a deposit listing. Slip numbers are only unique per bank, so
// receipts are prefixed to keep them apart from other providers.
func (p *BankDepositParser) Parse(r io.Reader) ([]model.PaymentConfirmation, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = bankNumFields
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading bank deposit CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var out []model.PaymentConfirmation
	for i, rec := range records[1:] {
		date, err := time.Parse(bankDateFormat, rec[bankColDate])
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing date %q: %w", i+2, rec[bankColDate], err)
		}
		amount, err := parseAmount(rec[bankColAmount])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		slip := strings.TrimSpace(rec[bankColSlip])
		if slip == "" {
			return nil, fmt.Errorf("row %d: missing slip number", i+2)
		}
		out = append(out, model.PaymentConfirmation{
			Receipt:   "bank_" + slip,
			Date:      date,
			PaidBy:    strings.TrimSpace(rec[bankColPayer]),
			StudentID: normalizeAccount(rec[bankColStudent]),
			Amount:    amount,
			Method:    bankMethod,
		})
	}
	return out, nil
}

// parseAmount accepts thousands separators and requires a positive value
// with at most two decimal places.
func parseAmount(raw string) (decimal.Decimal, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	amount, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", raw, err)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount %q must be positive", raw)
	}
	if !amount.Equal(amount.Round(2)) {
		return decimal.Zero, fmt.Errorf("amount %q has more than 2 decimal places", raw)
	}
	return amount, nil
}

// normalizeAccount upper-cases the account reference payers type by hand.
func normalizeAccount(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
