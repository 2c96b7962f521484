// Package auditlog keeps an append-only record of every change made to the
// school's books.
package auditlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Action names what was done.
type Action string

const (
	ActionInit            Action = "init"
	ActionStudentAdd      Action = "student.add"
	ActionStaffAdd        Action = "staff.add"
	ActionStaffSalary     Action = "staff.salary"
	ActionTransaction     Action = "txn.record"
	ActionImport          Action = "import"
	ActionPayrollGenerate Action = "payroll.generate"
	ActionPayrollEdit     Action = "payroll.edit"
	ActionPayrollDiscard  Action = "payroll.discard"
	ActionPayrollFinalize Action = "payroll.finalize"
)

// Entry is one row in the audit log. Subject is the ID the action touched:
// a transaction, staff member, student or pay period.
type Entry struct {
	Timestamp  time.Time
	Actor      string
	Action     Action
	Details    string
	Subject    string
	CommitHash string
}

// Header is the CSV header for audit-log.csv.
const Header = "timestamp,actor,action,details,subject,commit_hash"

// File is the log path relative to the repo root.
const File = "logs/audit-log.csv"

const (
	numFields     = 6
	colTimestamp  = 0
	colActor      = 1
	colAction     = 2
	colDetails    = 3
	colSubject    = 4
	colCommitHash = 5
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colActor] = e.Actor
	row[colAction] = string(e.Action)
	row[colDetails] = e.Details
	row[colSubject] = e.Subject
	row[colCommitHash] = e.CommitHash
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	return Entry{
		Timestamp:  ts,
		Actor:      record[colActor],
		Action:     Action(record[colAction]),
		Details:    record[colDetails],
		Subject:    record[colSubject],
		CommitHash: record[colCommitHash],
	}, nil
}

// Log appends to and reads from one repo's audit log.
type Log struct {
	repoRoot string
	actor    string
	now      func() time.Time
}

// New returns a Log for repoRoot. Entries without an actor get actor.
func New(repoRoot, actor string) *Log {
	return &Log{repoRoot: repoRoot, actor: actor, now: time.Now}
}

// Record appends a single entry stamped with the current time.
func (l *Log) Record(action Action, subject, details string) error {
	return l.Append([]Entry{{
		Timestamp: l.now(),
		Actor:     l.actor,
		Action:    action,
		Details:   details,
		Subject:   subject,
	}})
}

// Append writes entries, creating the file and header if needed.
func (l *Log) Append(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	path := l.path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, e := range entries {
		if e.Actor == "" {
			e.Actor = l.actor
		}
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read returns all entries. A missing log reads as empty.
func (l *Log) Read() ([]Entry, error) {
	f, err := os.Open(l.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

// ForSubject returns the entries that touched subject, oldest first.
func (l *Log) ForSubject(subject string) ([]Entry, error) {
	all, err := l.Read()
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range all {
		if e.Subject == subject {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *Log) path() string {
	return filepath.Join(l.repoRoot, filepath.FromSlash(File))
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
