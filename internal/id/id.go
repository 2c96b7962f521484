package id

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bursar-dev/bursar/internal/model"
)

// FormatPeriod returns a pay period like "2025-01".
func FormatPeriod(year, month int) model.Period {
	return model.Period(fmt.Sprintf("%04d-%02d", year, month))
}

// PeriodOf returns the pay period containing t.
func PeriodOf(t time.Time) model.Period {
	return FormatPeriod(t.Year(), int(t.Month()))
}

// ParsePeriod parses "2025-01" into year and month.
func ParsePeriod(p string) (year, month int, err error) {
	parts := strings.SplitN(p, "-", 2)
	if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("invalid period format: %q (want YYYY-MM)", p)
	}

	year, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid year in period %q: %w", p, err)
	}

	month, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month in period %q: %w", p, err)
	}
	if month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("invalid month in period %q: %d", p, month)
	}

	return year, month, nil
}

// PayDate returns the given day of the period's month, clamped to the last
// day of the month (pay day 31 in February is the 28th or 29th).
func PayDate(p model.Period, day int) (time.Time, error) {
	year, month, err := ParsePeriod(string(p))
	if err != nil {
		return time.Time{}, err
	}
	last := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day < 1 {
		day = 1
	}
	if day > last {
		day = last
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}

// NewTransactionID returns a fresh ledger transaction ID like "txn_3f2a...".
func NewTransactionID() string {
	return "txn_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewBatchID returns a payroll batch ID like "pay_2025-01_3f2a9c1d".
func NewBatchID(p model.Period) string {
	return fmt.Sprintf("pay_%s_%s", p, uuid.NewString()[:8])
}
