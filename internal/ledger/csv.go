package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bursar-dev/bursar/internal/model"
)

// Header is the CSV header for transactions.csv.
const Header = "id,student_id,kind,amount,date,description,method,reference"

// ErrBadHeader is returned when a ledger file does not start with Header.
var ErrBadHeader = errors.New("ledger header mismatch")

const (
	numFields  = 8
	dateFormat = "2006-01-02"
	colID      = 0
	colStudent = 1
	colKind    = 2
	colAmount  = 3
	colDate    = 4
	colDesc    = 5
	colMethod  = 6
	colRef     = 7
)

// ReadTransactions reads all transactions from a transactions.csv reader in
// file order, which is arrival order.
func ReadTransactions(r io.Reader) ([]model.Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading transactions CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	if strings.Join(records[0], ",") != Header {
		return nil, fmt.Errorf("%w: got %q", ErrBadHeader, strings.Join(records[0], ","))
	}

	var txns []model.Transaction
	for i, rec := range records[1:] {
		t, err := UnmarshalTransaction(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txns = append(txns, t)
	}
	return txns, nil
}

// WriteTransactions writes transactions to a writer (including header).
func WriteTransactions(w io.Writer, txns []model.Transaction) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, t := range txns {
		if err := cw.Write(MarshalTransaction(t)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// AppendTransactions appends transactions to an existing writer (no header).
func AppendTransactions(w io.Writer, txns []model.Transaction) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	for i, t := range txns {
		if err := cw.Write(MarshalTransaction(t)); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalTransaction converts a Transaction to a CSV row.
func MarshalTransaction(t model.Transaction) []string {
	row := make([]string, numFields)
	row[colID] = t.ID
	row[colStudent] = t.StudentID
	row[colKind] = string(t.Kind)
	row[colAmount] = t.Amount.StringFixed(2)
	row[colDate] = t.Date.Format(dateFormat)
	row[colDesc] = t.Description
	row[colMethod] = t.Method
	row[colRef] = t.Reference
	return row
}

// UnmarshalTransaction converts a CSV row to a Transaction.
func UnmarshalTransaction(record []string) (model.Transaction, error) {
	if len(record) != numFields {
		return model.Transaction{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	kind, err := model.ParseTransactionKind(record[colKind])
	if err != nil {
		return model.Transaction{}, err
	}

	amount, err := decimal.NewFromString(record[colAmount])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}

	date, err := time.Parse(dateFormat, record[colDate])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}

	return model.Transaction{
		ID:          record[colID],
		StudentID:   record[colStudent],
		Kind:        kind,
		Amount:      amount,
		Date:        date,
		Description: record[colDesc],
		Method:      record[colMethod],
		Reference:   record[colRef],
	}, nil
}
