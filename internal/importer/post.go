package importer

import (
	"fmt"

	"github.com/bursar-dev/bursar/internal/ledger"
	"github.com/bursar-dev/bursar/internal/log"
	"github.com/bursar-dev/bursar/internal/model"
)

// Ledger is the part of ledger.Service the importer writes through.
type Ledger interface {
	PaymentReferences() (map[string]bool, error)
	RecordAll(params []ledger.RecordParams) ([]model.Transaction, error)
}

// Result reports what happened to each confirmation in a file.
type Result struct {
	Recorded   []model.Transaction
	Duplicates []string                    // receipts already posted
	Unmatched  []model.PaymentConfirmation // account does not name an enrolled student
}

// Poster turns confirmations into ledger payments.
type Poster struct {
	ledger   Ledger
	students ledger.StudentChecker
	log      *log.Logger
}

// NewPoster creates a Poster.
func NewPoster(l Ledger, students ledger.StudentChecker, logger *log.Logger) *Poster {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Poster{ledger: l, students: students, log: logger.WithComponent(log.ComponentImporter)}
}

// Post records every new, matched confirmation as one payment. Receipts
// already in the ledger, or repeated within the batch, are skipped. The
// payments are appended together or not at all.
func (p *Poster) Post(source string, pcs []model.PaymentConfirmation) (Result, error) {
	posted, err := p.ledger.PaymentReferences()
	if err != nil {
		return Result{}, fmt.Errorf("reading posted receipts: %w", err)
	}

	var res Result
	seen := make(map[string]bool, len(pcs))
	var params []ledger.RecordParams

	for _, pc := range pcs {
		if seen[pc.Receipt] {
			res.Duplicates = append(res.Duplicates, pc.Receipt)
			continue
		}
		seen[pc.Receipt] = true

		if posted[pc.Receipt] {
			res.Duplicates = append(res.Duplicates, pc.Receipt)
			continue
		}
		if !p.students.Exists(pc.StudentID) {
			res.Unmatched = append(res.Unmatched, pc)
			continue
		}

		params = append(params, ledger.RecordParams{
			StudentID:   pc.StudentID,
			Kind:        model.KindPayment,
			Amount:      pc.Amount,
			Date:        pc.Date,
			Description: fmt.Sprintf("Payment from %s", pc.PaidBy),
			Method:      pc.Method,
			Reference:   pc.Receipt,
		})
	}

	if len(params) > 0 {
		txns, err := p.ledger.RecordAll(params)
		if err != nil {
			return Result{}, fmt.Errorf("posting %s: %w", source, err)
		}
		res.Recorded = txns
	}

	p.log.Info("import posted",
		log.FieldFile, source,
		log.FieldCount, len(res.Recorded),
		"duplicates", len(res.Duplicates),
		"unmatched", len(res.Unmatched))
	return res, nil
}
