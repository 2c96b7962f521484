package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bursar-dev/bursar/internal/id"
	"github.com/bursar-dev/bursar/internal/log"
	"github.com/bursar-dev/bursar/internal/model"
)

var (
	// ErrInvalidTransaction wraps every boundary validation failure.
	ErrInvalidTransaction = errors.New("invalid transaction")
	// ErrUnknownStudent is returned when summarizing a student who is not enrolled.
	ErrUnknownStudent = errors.New("unknown student")
)

// File is the ledger path relative to the repo root.
const File = "ledger/transactions.csv"

// Service records transactions in the append-only ledger and derives
// balances from it.
type Service struct {
	repoRoot string
	students StudentChecker
	log      *log.Logger
	workers  int
}

// NewService creates a ledger Service.
func NewService(repoRoot string, students StudentChecker, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{
		repoRoot: repoRoot,
		students: students,
		log:      logger.WithComponent(log.ComponentLedger),
		workers:  4,
	}
}

// RecordParams holds parameters for a new ledger transaction.
type RecordParams struct {
	StudentID   string
	Kind        model.TransactionKind
	Amount      decimal.Decimal
	Date        time.Time
	Description string
	Method      string
	Reference   string
}

func (p RecordParams) transaction() model.Transaction {
	return model.Transaction{
		ID:          id.NewTransactionID(),
		StudentID:   strings.TrimSpace(p.StudentID),
		Kind:        p.Kind,
		Amount:      p.Amount,
		Date:        p.Date,
		Description: p.Description,
		Method:      p.Method,
		Reference:   p.Reference,
	}
}

// Record validates a transaction and appends it to the ledger.
func (s *Service) Record(params RecordParams) (model.Transaction, error) {
	t := params.transaction()
	if err := s.append([]model.Transaction{t}); err != nil {
		return model.Transaction{}, err
	}

	s.log.Info("transaction recorded",
		log.FieldTxnID, t.ID,
		log.FieldStudentID, t.StudentID,
		log.FieldKind, string(t.Kind),
		log.FieldAmount, t.Amount.StringFixed(2))
	return t, nil
}

// RecordAll validates every transaction first and appends them together in
// one write. A failed write is truncated back to the previous ledger size.
func (s *Service) RecordAll(params []RecordParams) ([]model.Transaction, error) {
	txns := make([]model.Transaction, len(params))
	for i, p := range params {
		txns[i] = p.transaction()
	}
	if err := s.append(txns); err != nil {
		return nil, err
	}
	s.log.Info("transactions recorded", log.FieldCount, len(txns))
	return txns, nil
}

func (s *Service) append(txns []model.Transaction) error {
	for _, t := range txns {
		if verrs := Validate(t, s.students); len(verrs) > 0 {
			return fmt.Errorf("%w: %s", ErrInvalidTransaction, joinErrors(verrs))
		}
	}
	if len(txns) == 0 {
		return nil
	}

	path := s.path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating ledger dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat ledger: %w", err)
	}

	var buf bytes.Buffer
	if fi.Size() == 0 {
		buf.WriteString(Header + "\n")
	}
	if err := AppendTransactions(&buf, txns); err != nil {
		_ = f.Close()
		return fmt.Errorf("encoding transactions: %w", err)
	}

	if err := writeOrTruncate(f, fi.Size(), buf.Bytes()); err != nil {
		_ = f.Close()
		return fmt.Errorf("appending transactions: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing ledger: %w", err)
	}
	return nil
}

type truncateWriter interface {
	io.Writer
	Truncate(size int64) error
}

// writeOrTruncate writes data in one call and cuts the file back to size if
// the write fails, so a torn row never reaches the ledger.
func writeOrTruncate(f truncateWriter, size int64, data []byte) error {
	if _, err := f.Write(data); err != nil {
		if terr := f.Truncate(size); terr != nil {
			return errors.Join(err, fmt.Errorf("truncating ledger: %w", terr))
		}
		return err
	}
	return nil
}

// ReadAll returns every transaction in arrival order. A missing ledger file
// is an empty ledger.
func (s *Service) ReadAll() ([]model.Transaction, error) {
	path := s.path()
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	defer f.Close()

	txns, err := ReadTransactions(f)
	if err != nil {
		return nil, fmt.Errorf("reading ledger %s: %w", path, err)
	}
	return txns, nil
}

// ForStudent returns one student's transactions in arrival order.
func (s *Service) ForStudent(studentID string) ([]model.Transaction, error) {
	all, err := s.ReadAll()
	if err != nil {
		return nil, err
	}
	var out []model.Transaction
	for _, t := range all {
		if t.StudentID == studentID {
			out = append(out, t)
		}
	}
	return out, nil
}

// Summary recomputes one student's financial summary from the ledger.
func (s *Service) Summary(studentID string) (model.StudentFinancialSummary, error) {
	if s.students != nil && !s.students.Exists(studentID) {
		return model.StudentFinancialSummary{}, fmt.Errorf("%w %q", ErrUnknownStudent, studentID)
	}
	txns, err := s.ForStudent(studentID)
	if err != nil {
		return model.StudentFinancialSummary{}, err
	}
	return Summarize(studentID, txns), nil
}

// Summaries recomputes the summary of every student with ledger activity.
func (s *Service) Summaries(ctx context.Context) ([]model.StudentFinancialSummary, error) {
	all, err := s.ReadAll()
	if err != nil {
		return nil, err
	}
	return SummarizeAll(ctx, all, s.workers)
}

// PaymentReferences returns the external reference of every payment in
// the ledger, read in one pass.
func (s *Service) PaymentReferences() (map[string]bool, error) {
	all, err := s.ReadAll()
	if err != nil {
		return nil, err
	}
	refs := make(map[string]bool)
	for _, t := range all {
		if t.Kind == model.KindPayment && t.Reference != "" {
			refs[t.Reference] = true
		}
	}
	return refs, nil
}

func (s *Service) path() string {
	return filepath.Join(s.repoRoot, filepath.FromSlash(File))
}
