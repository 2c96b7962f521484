package commands_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bursar-dev/bursar/internal/auditlog"
	"github.com/bursar-dev/bursar/internal/commands"
	"github.com/bursar-dev/bursar/internal/config"
	"github.com/bursar-dev/bursar/internal/payroll"
)

// run executes the root command in-process against repo.
func run(t *testing.T, repo string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := commands.NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--repo", repo}, args...))
	err := root.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, repo string, args ...string) string {
	t.Helper()
	out, err := run(t, repo, args...)
	require.NoError(t, err, out)
	return out
}

// newRepo initializes a repository with a house allowance template.
func newRepo(t *testing.T, backend string) string {
	t.Helper()
	dir := t.TempDir()
	mustRun(t, dir, "init", dir, "--name", "Hillside Academy", "--storage", backend)

	path := filepath.Join(dir, config.FileName)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	cfg.Payroll.Templates = []config.TemplateConfig{
		{Name: "House Allowance", Category: "earning", Type: config.TypePercentOfBasic, Rate: "10", Recurring: true},
	}
	require.NoError(t, config.Save(path, cfg))
	return dir
}

func TestStudentLedgerFlow(t *testing.T) {
	repo := newRepo(t, config.BackendCSV)

	mustRun(t, repo, "student", "add", "--id", "S001", "--name", "Jane Wambui", "--class", "Form 2")
	out := mustRun(t, repo, "student", "list")
	assert.Contains(t, out, "Jane Wambui")

	mustRun(t, repo, "txn", "add", "--student", "S001", "--kind", "invoice", "--amount", "20,000", "--date", "2025-01-03")
	mustRun(t, repo, "txn", "add", "--student", "S001", "--kind", "payment", "--amount", "15000", "--date", "2025-01-10", "--reference", "RKT4H2J9QA")

	out = mustRun(t, repo, "balance", "S001")
	assert.Contains(t, out, "Balance:      5000.00")
	assert.Contains(t, out, "Overpayment:  0.00")
	assert.Contains(t, out, "Last payment: 2025-01-10")

	out = mustRun(t, repo, "txn", "list", "--student", "S001")
	assert.Contains(t, out, "20000.00")
	assert.Contains(t, out, "5000.00")

	out = mustRun(t, repo, "balances", "--owing")
	assert.Contains(t, out, "S001")

	_, err := run(t, repo, "txn", "add", "--student", "S404", "--kind", "invoice", "--amount", "100")
	require.Error(t, err)

	_, err = run(t, repo, "txn", "add", "--student", "S001", "--kind", "refund", "--amount", "100")
	require.Error(t, err)

	_, err = run(t, repo, "txn", "add", "--student", "S001", "--kind", "payment", "--amount", "-5")
	require.Error(t, err)

	_, err = run(t, repo, "balance", "S404")
	require.Error(t, err)

	entries, err := auditlog.New(repo, "").Read()
	require.NoError(t, err)
	var actions []auditlog.Action
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []auditlog.Action{
		auditlog.ActionInit,
		auditlog.ActionStudentAdd,
		auditlog.ActionTransaction,
		auditlog.ActionTransaction,
	}, actions)
	assert.NotEmpty(t, entries[1].CommitHash, "auto-commit hash is recorded")
}

func TestImport(t *testing.T) {
	repo := newRepo(t, config.BackendCSV)
	mustRun(t, repo, "student", "add", "--id", "S001", "--name", "Jane Wambui")

	csv := "receipt,completed_at,paid_by,amount,account\n" +
		"RKT4H2J9QA,2025-01-06 09:14:02,JANE WAMBUI,15000.00,s001\n" +
		"RKT5M8P2ZB,2025-01-06 17:40:51,PETER OTIENO,7500.00,S999\n"
	require.NoError(t, os.WriteFile(filepath.Join(repo, "import", "paybill.csv"), []byte(csv), 0o644))

	out := mustRun(t, repo, "import")
	assert.Contains(t, out, "1 recorded, 0 duplicate, 1 unmatched")
	assert.Contains(t, out, "RKT5M8P2ZB")

	_, err := os.Stat(filepath.Join(repo, "import", "processed", "paybill.csv"))
	require.NoError(t, err)

	out = mustRun(t, repo, "balance", "S001")
	assert.Contains(t, out, "Overpayment:  15000.00")

	// Dropping the same export again posts nothing new.
	require.NoError(t, os.WriteFile(filepath.Join(repo, "import", "again.csv"), []byte(csv), 0o644))
	out = mustRun(t, repo, "import")
	assert.Contains(t, out, "0 recorded, 1 duplicate, 1 unmatched")

	_, err = run(t, repo, "import", "--format", "chase")
	require.Error(t, err)
}

func TestPayrollFlow(t *testing.T) {
	for _, backend := range []string{config.BackendCSV, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			repo := newRepo(t, backend)
			mustRun(t, repo, "staff", "add", "--id", "T001", "--name", "Alice Wanjiru", "--salary", "50000")

			out := mustRun(t, repo, "payroll", "generate", "2025-01")
			assert.Contains(t, out, "pay date 2025-01-28")
			assert.Contains(t, out, "55000.00")
			assert.Contains(t, out, "8883.33")
			assert.Contains(t, out, "14520.83")
			assert.Contains(t, out, "40479.17")

			_, err := run(t, repo, "payroll", "generate", "2025-01")
			require.Error(t, err, "existing draft needs --force")

			out = mustRun(t, repo, "payroll", "edit", "2025-01", "T001", "Pension", "0")
			assert.Contains(t, out, "3300.00 -> 0.00")
			assert.Contains(t, out, "Total deductions 11220.83, net pay 43779.17")

			_, err = run(t, repo, "payroll", "edit", "--", "2025-01", "T001", "Pension", "-1")
			require.ErrorIs(t, err, payroll.ErrInvalidAmount)
			_, err = run(t, repo, "payroll", "edit", "2025-01", "T999", "Pension", "1")
			require.ErrorIs(t, err, payroll.ErrStaffNotFound)
			_, err = run(t, repo, "payroll", "edit", "2025-01", "T001", "Union Dues", "1")
			require.ErrorIs(t, err, payroll.ErrLineNotFound)

			out = mustRun(t, repo, "payroll", "show", "2025-01")
			assert.Contains(t, out, "(edited)")
			assert.Contains(t, out, "43779.17")

			out = mustRun(t, repo, "payroll", "finalize", "2025-01")
			assert.Contains(t, out, "Finalized 2025-01 as pay_2025-01_")
			assert.Contains(t, out, "net 43779.17")
			assert.False(t, payroll.HasDraft(repo, "2025-01"))

			_, err = run(t, repo, "payroll", "edit", "2025-01", "T001", "PAYE", "1")
			require.ErrorIs(t, err, payroll.ErrFinalized)
			_, err = run(t, repo, "payroll", "finalize", "2025-01")
			require.ErrorIs(t, err, payroll.ErrAlreadyFinalized)
			_, err = run(t, repo, "payroll", "generate", "2025-01", "--force")
			require.ErrorIs(t, err, payroll.ErrAlreadyFinalized)

			out = mustRun(t, repo, "payroll", "show", "2025-01")
			assert.Contains(t, out, "finalized")
			assert.Contains(t, out, "43779.17")

			out = mustRun(t, repo, "payroll", "history")
			assert.Contains(t, out, "2025-01")
			assert.Contains(t, out, "43779.17")

			entries, err := auditlog.New(repo, "").ForSubject("2025-01")
			require.NoError(t, err)
			require.Len(t, entries, 3)
			assert.Equal(t, auditlog.ActionPayrollFinalize, entries[2].Action)
		})
	}
}

func TestPayrollShow_TotalRow(t *testing.T) {
	repo := newRepo(t, config.BackendCSV)
	mustRun(t, repo, "staff", "add", "--id", "T001", "--name", "Alice Wanjiru", "--salary", "50000")
	mustRun(t, repo, "staff", "add", "--id", "T002", "--name", "Brian Otieno", "--salary", "50000")
	mustRun(t, repo, "payroll", "generate", "2025-01")

	out := mustRun(t, repo, "payroll", "show", "2025-01")
	assert.Contains(t, out, "TOTAL")
	assert.Contains(t, out, "110000.00")
	assert.Contains(t, out, "17766.66", "PAYE summed across staff")
	assert.Contains(t, out, "80958.34")
}

func TestPayrollDiscard(t *testing.T) {
	repo := newRepo(t, config.BackendCSV)
	mustRun(t, repo, "staff", "add", "--id", "T001", "--name", "Alice Wanjiru", "--salary", "50000")
	mustRun(t, repo, "payroll", "generate", "2025-02", "--pay-day", "31")
	assert.True(t, payroll.HasDraft(repo, "2025-02"))

	ws, err := payroll.LoadDraft(repo, "2025-02")
	require.NoError(t, err)
	assert.Equal(t, 28, ws.PayDate().Day(), "pay day clamps to month end")

	mustRun(t, repo, "payroll", "discard", "2025-02")
	assert.False(t, payroll.HasDraft(repo, "2025-02"))

	_, err = run(t, repo, "payroll", "discard", "2025-02")
	require.ErrorIs(t, err, payroll.ErrNoDraft)
	_, err = run(t, repo, "payroll", "finalize", "2025-02")
	require.ErrorIs(t, err, payroll.ErrNoDraft)
}

func TestPayroll_BadPeriod(t *testing.T) {
	repo := newRepo(t, config.BackendCSV)
	_, err := run(t, repo, "payroll", "generate", "2025-13")
	require.Error(t, err)
	_, err = run(t, repo, "payroll", "show", "January")
	require.Error(t, err)
}

func TestStaffSalary(t *testing.T) {
	repo := newRepo(t, config.BackendCSV)
	mustRun(t, repo, "staff", "add", "--id", "T001", "--name", "Alice Wanjiru", "--salary", "50000")
	mustRun(t, repo, "staff", "salary", "T001", "60000")

	out := mustRun(t, repo, "staff", "list")
	assert.Contains(t, out, "60000.00")

	_, err := run(t, repo, "staff", "salary", "T404", "1")
	require.Error(t, err)
	_, err = run(t, repo, "staff", "add", "--id", "T001", "--name", "Dup", "--salary", "1")
	require.Error(t, err)
}

func TestNotARepo(t *testing.T) {
	_, err := run(t, t.TempDir(), "student", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a bursar repository")
}
