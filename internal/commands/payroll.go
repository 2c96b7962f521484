package commands

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/bursar-dev/bursar/internal/auditlog"
	"github.com/bursar-dev/bursar/internal/id"
	"github.com/bursar-dev/bursar/internal/model"
	"github.com/bursar-dev/bursar/internal/payroll"
)

func newPayrollCommand(opts *globalOptions) *cobra.Command {
	payrollCmd := &cobra.Command{
		Use:   "payroll",
		Short: "Generate, edit and finalize monthly payroll",
	}
	payrollCmd.AddCommand(
		newPayrollGenerateCommand(opts),
		newPayrollShowCommand(opts),
		newPayrollEditCommand(opts),
		newPayrollFinalizeCommand(opts),
		newPayrollDiscardCommand(opts),
		newPayrollHistoryCommand(opts),
	)
	return payrollCmd
}

func parsePeriod(s string) (model.Period, error) {
	if _, _, err := id.ParsePeriod(s); err != nil {
		return "", err
	}
	return model.Period(s), nil
}

// openDraft loads the period's draft. When there is none but the period is
// already in history, errFinal is returned instead of ErrNoDraft.
func openDraft(cmd *cobra.Command, a *app, period model.Period, errFinal error) (*payroll.Worksheet, error) {
	if payroll.HasDraft(a.root, period) {
		return payroll.LoadDraft(a.root, period)
	}
	store, closeStore, err := a.history()
	if err != nil {
		return nil, err
	}
	defer closeStore()
	done, err := store.IsFinalized(cmd.Context(), period)
	if err != nil {
		return nil, err
	}
	if done {
		return nil, fmt.Errorf("%w: %s", errFinal, period)
	}
	return nil, fmt.Errorf("%w %s", payroll.ErrNoDraft, period)
}

func newPayrollGenerateCommand(opts *globalOptions) *cobra.Command {
	var payDay int
	var force bool

	cmd := &cobra.Command{
		Use:   "generate <period>",
		Short: "Generate a draft worksheet for YYYY-MM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			period, err := parsePeriod(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}

			if payroll.HasDraft(a.root, period) && !force {
				return fmt.Errorf("a draft for %s already exists; use --force to regenerate or 'payroll discard'", period)
			}

			store, closeStore, err := a.history()
			if err != nil {
				return err
			}
			defer closeStore()
			done, err := store.IsFinalized(cmd.Context(), period)
			if err != nil {
				return err
			}
			if done {
				return fmt.Errorf("%w: %s", payroll.ErrAlreadyFinalized, period)
			}

			calc, err := a.calculator()
			if err != nil {
				return err
			}
			templates, err := a.cfg.Templates()
			if err != nil {
				return err
			}
			if payDay == 0 {
				payDay = a.cfg.Payroll.PayDay
			}
			payDate, err := id.PayDate(period, payDay)
			if err != nil {
				return err
			}

			entries, err := payroll.Generate(payroll.GenerateParams{
				Staff:      a.roster.Staff(),
				Templates:  templates,
				Calculator: calc,
				Period:     period,
				PayDate:    payDate,
			})
			if err != nil {
				return err
			}
			ws := payroll.NewWorksheet(period, payDate, entries)
			if err := payroll.SaveDraft(a.root, ws); err != nil {
				return err
			}

			a.commit(auditlog.ActionPayrollGenerate, string(period),
				fmt.Sprintf("generated %s draft for %d staff", period, ws.Len()))
			a.printf("Generated payroll draft for %s, pay date %s\n\n", period, payDate.Format(dateLayout))
			return printEntries(a, ws.Entries())
		},
	}

	cmd.Flags().IntVar(&payDay, "pay-day", 0, "day of month to pay (default from bursar.yaml)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing draft")
	return cmd
}

func newPayrollShowCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <period>",
		Short: "Show the draft, or the finalized batch, for YYYY-MM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			period, err := parsePeriod(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}

			if payroll.HasDraft(a.root, period) {
				ws, err := payroll.LoadDraft(a.root, period)
				if err != nil {
					return err
				}
				a.printf("Payroll %s (%s), pay date %s\n\n", period, ws.State(), ws.PayDate().Format(dateLayout))
				return printEntries(a, ws.Entries())
			}

			store, closeStore, err := a.history()
			if err != nil {
				return err
			}
			defer closeStore()
			batch, err := store.Batch(cmd.Context(), period)
			if errors.Is(err, payroll.ErrPeriodNotFound) {
				return fmt.Errorf("no draft or finalized payroll for %s", period)
			}
			if err != nil {
				return err
			}
			printBatchHeader(a, batch)
			return printEntries(a, batch.Entries)
		},
	}
}

func newPayrollEditCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <period> <staff-id> <deduction> <amount>",
		Short: "Override one deduction line on a draft",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			period, err := parsePeriod(args[0])
			if err != nil {
				return err
			}
			staffID, line := args[1], args[2]
			amount, err := parseMoney(args[3])
			if err != nil {
				return err
			}
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}

			ws, err := openDraft(cmd, a, period, payroll.ErrFinalized)
			if err != nil {
				return err
			}
			before, _ := ws.Entry(staffID)
			old := decimal.Zero
			if i := before.Deduction(line); i >= 0 {
				old = before.Deductions[i].Amount
			}

			if err := ws.SetDeduction(staffID, line, amount); err != nil {
				return err
			}
			if err := payroll.SaveDraft(a.root, ws); err != nil {
				return err
			}

			after, _ := ws.Entry(staffID)
			a.commit(auditlog.ActionPayrollEdit, string(period),
				fmt.Sprintf("%s %s %s -> %s", staffID, line, money(old), money(amount)))
			a.printf("%s %s: %s -> %s\n", staffID, line, money(old), money(amount))
			a.printf("Total deductions %s, net pay %s\n", money(after.TotalDeductions), money(after.NetPay))
			return nil
		},
	}
}

func newPayrollFinalizeCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "finalize <period>",
		Short: "Commit the draft for YYYY-MM to payroll history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			period, err := parsePeriod(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}

			ws, err := openDraft(cmd, a, period, payroll.ErrAlreadyFinalized)
			if err != nil {
				return err
			}
			store, closeStore, err := a.history()
			if err != nil {
				return err
			}
			defer closeStore()

			batch, err := payroll.NewFinalizer(store, a.log).Finalize(cmd.Context(), ws)
			if err != nil {
				return err
			}
			if err := payroll.DiscardDraft(a.root, period); err != nil {
				return err
			}

			totals := ws.Totals()
			a.commit(auditlog.ActionPayrollFinalize, string(period),
				fmt.Sprintf("finalized %s as %s: %d staff, net %s", period, batch.ID, totals.Staff, money(totals.NetPay)))
			a.printf("Finalized %s as %s\n", period, batch.ID)
			a.printf("Staff %d, gross %s, deductions %s, net %s\n",
				totals.Staff, money(totals.GrossPay), money(totals.TotalDeductions), money(totals.NetPay))
			return nil
		},
	}
}

func newPayrollDiscardCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "discard <period>",
		Short: "Throw away the draft for YYYY-MM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			period, err := parsePeriod(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			if !payroll.HasDraft(a.root, period) {
				return fmt.Errorf("%w %s", payroll.ErrNoDraft, period)
			}
			if err := payroll.DiscardDraft(a.root, period); err != nil {
				return err
			}
			a.commit(auditlog.ActionPayrollDiscard, string(period), fmt.Sprintf("discarded %s draft", period))
			a.printf("Discarded draft for %s\n", period)
			return nil
		},
	}
}

func newPayrollHistoryCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history [period]",
		Short: "List finalized periods, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			store, closeStore, err := a.history()
			if err != nil {
				return err
			}
			defer closeStore()

			if len(args) == 1 {
				period, err := parsePeriod(args[0])
				if err != nil {
					return err
				}
				batch, err := store.Batch(cmd.Context(), period)
				if err != nil {
					return err
				}
				printBatchHeader(a, batch)
				return printEntries(a, batch.Entries)
			}

			periods, err := store.Periods(cmd.Context())
			if err != nil {
				return err
			}
			if len(periods) == 0 {
				a.printf("No finalized payroll\n")
				return nil
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PERIOD\tBATCH\tPAY DATE\tSTAFF\tNET PAY")
			for _, p := range periods {
				b, err := store.Batch(cmd.Context(), p)
				if err != nil {
					return err
				}
				net := decimal.Zero
				for _, e := range b.Entries {
					net = net.Add(e.NetPay)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", p, b.ID, b.PayDate.Format(dateLayout), len(b.Entries), money(net))
			}
			return tw.Flush()
		},
	}
}

func printBatchHeader(a *app, b model.PayrollBatch) {
	a.printf("Payroll %s (finalized %s as %s), pay date %s\n\n",
		b.Period, b.FinalizedAt.Format(dateLayout), b.ID, b.PayDate.Format(dateLayout))
}

// printEntries renders one row per staff member with a column per deduction
// line, in first-seen order, and a totals row.
func printEntries(a *app, entries []model.PayrollEntry) error {
	var names []string
	seen := make(map[string]bool)
	for _, e := range entries {
		for _, l := range e.Deductions {
			if !seen[l.Name] {
				seen[l.Name] = true
				names = append(names, l.Name)
			}
		}
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "STAFF\tNAME\tGROSS\t")
	for _, n := range names {
		fmt.Fprintf(tw, "%s\t", n)
	}
	fmt.Fprintln(tw, "DEDUCTIONS\tNET\t")

	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t", e.StaffID, e.StaffName, money(e.GrossPay))
		for _, n := range names {
			amt := decimal.Zero
			if i := e.Deduction(n); i >= 0 {
				amt = e.Deductions[i].Amount
			}
			fmt.Fprintf(tw, "%s\t", money(amt))
		}
		fmt.Fprintf(tw, "%s\t%s\t\n", money(e.TotalDeductions), money(e.NetPay))
	}

	totals := payroll.SumEntries(entries)
	fmt.Fprintf(tw, "TOTAL\t\t%s\t", money(totals.GrossPay))
	for _, n := range names {
		fmt.Fprintf(tw, "%s\t", money(totals.ByDeduction[n]))
	}
	fmt.Fprintf(tw, "%s\t%s\t\n", money(totals.TotalDeductions), money(totals.NetPay))
	return tw.Flush()
}
