package payroll

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/bursar-dev/bursar/internal/model"
)

// DraftDir holds worksheets between CLI invocations of one editing session.
const DraftDir = "payroll/drafts"

type draftFile struct {
	Period  string       `yaml:"period"`
	PayDate string       `yaml:"pay_date"`
	State   string       `yaml:"state"`
	Entries []draftEntry `yaml:"entries"`
}

type draftEntry struct {
	StaffID    string      `yaml:"staff_id"`
	StaffName  string      `yaml:"staff_name"`
	Earnings   []draftLine `yaml:"earnings"`
	Deductions []draftLine `yaml:"deductions"`
}

type draftLine struct {
	Name   string `yaml:"name"`
	Amount string `yaml:"amount"`
}

// DraftPath returns the draft file path for a period.
func DraftPath(repoRoot string, p model.Period) string {
	return filepath.Join(repoRoot, filepath.FromSlash(DraftDir), string(p)+".yaml")
}

// SaveDraft writes the worksheet to payroll/drafts/<period>.yaml.
func SaveDraft(repoRoot string, ws *Worksheet) error {
	if ws.State() == StateFinalized {
		return ErrFinalized
	}
	df := draftFile{
		Period:  string(ws.Period()),
		PayDate: ws.PayDate().Format(dateFormat),
		State:   string(ws.State()),
	}
	for _, e := range ws.entries {
		df.Entries = append(df.Entries, draftEntry{
			StaffID:    e.StaffID,
			StaffName:  e.StaffName,
			Earnings:   toDraftLines(e.Earnings),
			Deductions: toDraftLines(e.Deductions),
		})
	}

	data, err := yaml.Marshal(&df)
	if err != nil {
		return fmt.Errorf("marshaling draft: %w", err)
	}
	path := DraftPath(repoRoot, ws.Period())
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating drafts dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing draft: %w", err)
	}
	return nil
}

// LoadDraft reads a saved worksheet. Totals are re-derived from the lines,
// never taken from the file.
func LoadDraft(repoRoot string, p model.Period) (*Worksheet, error) {
	data, err := os.ReadFile(DraftPath(repoRoot, p))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w %s", ErrNoDraft, p)
	}
	if err != nil {
		return nil, fmt.Errorf("reading draft: %w", err)
	}

	var df draftFile
	if err := yaml.Unmarshal(data, &df); err != nil {
		return nil, fmt.Errorf("parsing draft: %w", err)
	}
	if model.Period(df.Period) != p {
		return nil, fmt.Errorf("draft file holds period %q, expected %q", df.Period, p)
	}
	payDate, err := time.Parse(dateFormat, df.PayDate)
	if err != nil {
		return nil, fmt.Errorf("parsing draft pay_date %q: %w", df.PayDate, err)
	}

	state := State(df.State)
	switch state {
	case StateGenerated, StateEdited:
	default:
		return nil, fmt.Errorf("draft has unexpected state %q", df.State)
	}

	entries := make([]model.PayrollEntry, 0, len(df.Entries))
	for _, de := range df.Entries {
		earnings, err := fromDraftLines(de.Earnings)
		if err != nil {
			return nil, fmt.Errorf("staff %s earnings: %w", de.StaffID, err)
		}
		deductions, err := fromDraftLines(de.Deductions)
		if err != nil {
			return nil, fmt.Errorf("staff %s deductions: %w", de.StaffID, err)
		}
		e := model.PayrollEntry{
			StaffID:    de.StaffID,
			StaffName:  de.StaffName,
			Period:     p,
			PayDate:    payDate,
			Earnings:   earnings,
			Deductions: deductions,
		}
		e.Recompute()
		entries = append(entries, e)
	}
	return restore(p, payDate, entries, state), nil
}

// DiscardDraft deletes a saved worksheet. Discarding a missing draft is not
// an error.
func DiscardDraft(repoRoot string, p model.Period) error {
	err := os.Remove(DraftPath(repoRoot, p))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing draft: %w", err)
	}
	return nil
}

// HasDraft reports whether a draft exists for the period.
func HasDraft(repoRoot string, p model.Period) bool {
	_, err := os.Stat(DraftPath(repoRoot, p))
	return err == nil
}

func toDraftLines(lines []model.Line) []draftLine {
	out := make([]draftLine, len(lines))
	for i, l := range lines {
		out[i] = draftLine{Name: l.Name, Amount: l.Amount.StringFixed(2)}
	}
	return out
}

func fromDraftLines(lines []draftLine) ([]model.Line, error) {
	out := make([]model.Line, len(lines))
	for i, l := range lines {
		amount, err := decimal.NewFromString(l.Amount)
		if err != nil {
			return nil, fmt.Errorf("parsing %s amount %q: %w", l.Name, l.Amount, err)
		}
		out[i] = model.Line{Name: l.Name, Amount: amount}
	}
	return out, nil
}
