package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bursar-dev/bursar/internal/model"
)

// MobileMoneyParser parses mobile money paybill statement exports.
type MobileMoneyParser struct{}

const (
	mmDateFormat = "2006-01-02 15:04:05"
	mmNumFields  = 5
	mmColReceipt = 0
	mmColDate    = 1
	mmColPaidBy  = 2
	mmColAmount  = 3
	mmColAccount = 4
	mmMethod     = "mobile_money"
)

// Format returns the parser name.
func (p *MobileMoneyParser) Format() string { return "mobile-money" }

// Parse reads a paybill CSV and returns one confirmation per row.
func (p *MobileMoneyParser) Parse(r io.Reader) ([]model.PaymentConfirmation, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = mmNumFields
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading mobile money CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var out []model.PaymentConfirmation
	for i, rec := range records[1:] {
		pc, err := parseMobileMoneyRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, pc)
	}
	return out, nil
}

func parseMobileMoneyRow(rec []string) (model.PaymentConfirmation, error) {
	receipt := strings.TrimSpace(rec[mmColReceipt])
	if receipt == "" {
		return model.PaymentConfirmation{}, errors.New("missing receipt")
	}

	date, err := time.Parse(mmDateFormat, rec[mmColDate])
	if err != nil {
		return model.PaymentConfirmation{}, fmt.Errorf("parsing date %q: %w", rec[mmColDate], err)
	}

	amount, err := parseAmount(rec[mmColAmount])
	if err != nil {
		return model.PaymentConfirmation{}, err
	}

	return model.PaymentConfirmation{
		Receipt:   receipt,
		Date:      date,
		PaidBy:    strings.TrimSpace(rec[mmColPaidBy]),
		StudentID: normalizeAccount(rec[mmColAccount]),
		Amount:    amount,
		Method:    mmMethod,
	}, nil
}
