package commands

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/bursar-dev/bursar/internal/auditlog"
	"github.com/bursar-dev/bursar/internal/config"
	"github.com/bursar-dev/bursar/internal/gitops"
	"github.com/bursar-dev/bursar/internal/ledger"
	"github.com/bursar-dev/bursar/internal/log"
	"github.com/bursar-dev/bursar/internal/payroll"
	"github.com/bursar-dev/bursar/internal/roster"
	"github.com/bursar-dev/bursar/internal/statutory"
	"github.com/bursar-dev/bursar/internal/storage"
)

const dateLayout = "2006-01-02"

// app is an opened bursar repository with its services wired up.
type app struct {
	root   string
	cfg    *config.Config
	log    *log.Logger
	out    io.Writer
	roster *roster.Service
	ledger *ledger.Service
	audit  *auditlog.Log
	git    gitops.Committer
}

func openApp(cmd *cobra.Command, opts *globalOptions) (*app, error) {
	root, err := filepath.Abs(opts.repo)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	cfg, err := config.Load(filepath.Join(root, config.FileName))
	if err != nil {
		return nil, fmt.Errorf("%s is not a bursar repository: %w", root, err)
	}
	reg, err := roster.Load(root)
	if err != nil {
		return nil, err
	}

	logger := opts.logger
	if logger == nil {
		logger = log.NewNop()
	}

	return &app{
		root:   root,
		cfg:    cfg,
		log:    logger,
		out:    cmd.OutOrStdout(),
		roster: reg,
		ledger: ledger.NewService(root, reg, logger),
		audit:  auditlog.New(root, cfg.Git.AuthorName),
		git: gitops.Committer{
			Dir:         root,
			Enabled:     cfg.Git.AutoCommit,
			AuthorName:  cfg.Git.AuthorName,
			AuthorEmail: cfg.Git.AuthorEmail,
		},
	}, nil
}

// calculator builds the statutory calculator from bursar.yaml.
func (a *app) calculator() (*statutory.Calculator, error) {
	table, err := a.cfg.StatutoryTable()
	if err != nil {
		return nil, err
	}
	return statutory.New(table)
}

// history opens the configured payroll history backend. The returned close
// func must always be called.
func (a *app) history() (payroll.HistoryStore, func() error, error) {
	switch a.cfg.Storage.Backend {
	case config.BackendSQLite:
		path := a.cfg.Storage.SQLitePath
		if !filepath.IsAbs(path) {
			path = filepath.Join(a.root, path)
		}
		h, err := storage.NewSQLiteHistory(path, a.log)
		if err != nil {
			return nil, nil, err
		}
		return h, h.Close, nil
	default:
		return payroll.NewCSVHistory(a.root), func() error { return nil }, nil
	}
}

// commit snapshots the repo after a change and records it in the audit log.
// Commit failures are reported but do not undo the change, which is already
// on disk.
func (a *app) commit(action auditlog.Action, subject, details string) {
	msg := fmt.Sprintf("%s: %s", action, details)
	hash, err := a.git.Commit(msg)
	if err != nil {
		a.log.Warn("auto-commit failed", log.FieldOperation, string(action), log.FieldError, err)
	}
	if err := a.audit.Append([]auditlog.Entry{{
		Timestamp:  time.Now(),
		Action:     action,
		Details:    details,
		Subject:    subject,
		CommitHash: hash,
	}}); err != nil {
		a.log.Warn("audit log write failed", log.FieldOperation, string(action), log.FieldError, err)
	}
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// parseMoney accepts "1,500.50" style input with at most two decimals.
func parseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	if !d.Equal(d.Round(2)) {
		return decimal.Zero, fmt.Errorf("amount %q has more than 2 decimal places", s)
	}
	return d, nil
}

// parseDate accepts YYYY-MM-DD, or today when empty.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		y, m, d := time.Now().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
