package roster

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"github.com/bursar-dev/bursar/internal/model"
)

var (
	staffHeader   = []string{"staff_id", "name", "base_salary", "tax_pin", "pension_no", "health_no"}
	studentHeader = []string{"student_id", "name", "class"}
)

const (
	staffNumFields = 6
	colStaffID     = 0
	colStaffName   = 1
	colSalary      = 2
	colTaxPIN      = 3
	colPensionNo   = 4
	colHealthNo    = 5

	studentNumFields = 3
	colStudentID     = 0
	colStudentName   = 1
	colClass         = 2
)

// ReadStaff reads staff.csv.
func ReadStaff(r io.Reader) ([]model.Staff, error) {
	records, err := readRecords(r, staffNumFields)
	if err != nil {
		return nil, fmt.Errorf("reading staff CSV: %w", err)
	}

	var staff []model.Staff
	for i, rec := range records {
		s, err := UnmarshalStaff(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		staff = append(staff, s)
	}
	return staff, nil
}

// WriteStaff writes staff.csv.
func WriteStaff(w io.Writer, staff []model.Staff) error {
	rows := make([][]string, len(staff))
	for i, s := range staff {
		rows[i] = MarshalStaff(s)
	}
	return writeRecords(w, staffHeader, rows)
}

// MarshalStaff converts a Staff to a CSV row.
func MarshalStaff(s model.Staff) []string {
	row := make([]string, staffNumFields)
	row[colStaffID] = s.ID
	row[colStaffName] = s.Name
	row[colSalary] = s.BaseSalary.StringFixed(2)
	row[colTaxPIN] = s.TaxPIN
	row[colPensionNo] = s.PensionNo
	row[colHealthNo] = s.HealthNo
	return row
}

// UnmarshalStaff converts a CSV row to a Staff.
func UnmarshalStaff(record []string) (model.Staff, error) {
	if len(record) != staffNumFields {
		return model.Staff{}, fmt.Errorf("expected %d fields, got %d", staffNumFields, len(record))
	}

	salary := decimal.Zero
	if record[colSalary] != "" {
		var err error
		salary, err = decimal.NewFromString(record[colSalary])
		if err != nil {
			return model.Staff{}, fmt.Errorf("parsing base_salary %q: %w", record[colSalary], err)
		}
	}

	return model.Staff{
		ID:         record[colStaffID],
		Name:       record[colStaffName],
		BaseSalary: salary,
		TaxPIN:     record[colTaxPIN],
		PensionNo:  record[colPensionNo],
		HealthNo:   record[colHealthNo],
	}, nil
}

// ReadStudents reads students.csv.
func ReadStudents(r io.Reader) ([]model.Student, error) {
	records, err := readRecords(r, studentNumFields)
	if err != nil {
		return nil, fmt.Errorf("reading students CSV: %w", err)
	}

	students := make([]model.Student, 0, len(records))
	for _, rec := range records {
		students = append(students, model.Student{
			ID:    rec[colStudentID],
			Name:  rec[colStudentName],
			Class: rec[colClass],
		})
	}
	return students, nil
}

// WriteStudents writes students.csv.
func WriteStudents(w io.Writer, students []model.Student) error {
	rows := make([][]string, len(students))
	for i, s := range students {
		rows[i] = []string{s.ID, s.Name, s.Class}
	}
	return writeRecords(w, studentHeader, rows)
}

// readRecords returns the data rows of a CSV, without the header.
func readRecords(r io.Reader, fields int) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = fields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[1:], nil
}

func writeRecords(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
