package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bursar-dev/bursar/internal/auditlog"
	"github.com/bursar-dev/bursar/internal/ledger"
	"github.com/bursar-dev/bursar/internal/model"
)

func newTxnCommand(opts *globalOptions) *cobra.Command {
	txnCmd := &cobra.Command{
		Use:   "txn",
		Short: "Record and list ledger transactions",
	}
	txnCmd.AddCommand(newTxnAddCommand(opts), newTxnListCommand(opts))
	return txnCmd
}

func newTxnAddCommand(opts *globalOptions) *cobra.Command {
	var (
		params       ledger.RecordParams
		kind, amount string
		date         string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an invoice, payment or manual adjustment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			if params.Kind, err = model.ParseTransactionKind(kind); err != nil {
				return err
			}
			if params.Amount, err = parseMoney(amount); err != nil {
				return err
			}
			if params.Date, err = parseDate(date); err != nil {
				return err
			}

			t, err := a.ledger.Record(params)
			if err != nil {
				return err
			}
			a.commit(auditlog.ActionTransaction, t.ID,
				fmt.Sprintf("%s %s for %s", t.Kind, money(t.Amount), t.StudentID))
			a.printf("Recorded %s %s for %s (%s)\n", t.Kind, money(t.Amount), t.StudentID, t.ID)
			return nil
		},
	}

	kinds := make([]string, len(model.TransactionKinds))
	for i, k := range model.TransactionKinds {
		kinds[i] = string(k)
	}

	cmd.Flags().StringVar(&params.StudentID, "student", "", "student ID (required)")
	cmd.Flags().StringVar(&kind, "kind", "", "one of "+strings.Join(kinds, ", ")+" (required)")
	cmd.Flags().StringVar(&amount, "amount", "", "positive amount (required)")
	cmd.Flags().StringVar(&date, "date", "", "transaction date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&params.Description, "description", "", "description")
	cmd.Flags().StringVar(&params.Method, "method", "", "payment method")
	cmd.Flags().StringVar(&params.Reference, "reference", "", "external reference, e.g. receipt number")
	_ = cmd.MarkFlagRequired("student")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func newTxnListCommand(opts *globalOptions) *cobra.Command {
	var student string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions in date order with running balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}

			var txns []model.Transaction
			if student != "" {
				txns, err = a.ledger.ForStudent(student)
			} else {
				txns, err = a.ledger.ReadAll()
			}
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			if student != "" {
				fmt.Fprintln(tw, "DATE\tKIND\tAMOUNT\tBALANCE\tREFERENCE\tDESCRIPTION")
				for _, l := range ledger.Statement(txns) {
					t := l.Transaction
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
						t.Date.Format(dateLayout), t.Kind, money(t.Amount), money(l.Running), t.Reference, t.Description)
				}
				return tw.Flush()
			}

			fmt.Fprintln(tw, "DATE\tSTUDENT\tKIND\tAMOUNT\tREFERENCE\tDESCRIPTION")
			for _, t := range ledger.Chronological(txns) {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					t.Date.Format(dateLayout), t.StudentID, t.Kind, money(t.Amount), t.Reference, t.Description)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&student, "student", "", "show one student's statement")
	return cmd
}

func newBalanceCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <student-id>",
		Short: "Show a student's balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			s, err := a.ledger.Summary(args[0])
			if err != nil {
				return err
			}

			name := s.StudentID
			if st, ok := a.roster.Student(s.StudentID); ok {
				name = fmt.Sprintf("%s (%s)", st.Name, st.ID)
			}
			a.printf("Student:      %s\n", name)
			a.printf("Balance:      %s\n", money(s.Balance))
			a.printf("Overpayment:  %s\n", money(s.Overpayment))
			a.printf("Last payment: %s\n", lastPayment(s))
			a.printf("Transactions: %d\n", s.TransactionCount)
			return nil
		},
	}
}

func newBalancesCommand(opts *globalOptions) *cobra.Command {
	var owingOnly bool

	cmd := &cobra.Command{
		Use:   "balances",
		Short: "Show every student's balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			sums, err := a.ledger.Summaries(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STUDENT\tNAME\tBALANCE\tOVERPAYMENT\tLAST PAYMENT")
			for _, s := range sums {
				if owingOnly && !s.Balance.IsPositive() {
					continue
				}
				st, _ := a.roster.Student(s.StudentID)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					s.StudentID, st.Name, money(s.Balance), money(s.Overpayment), lastPayment(s))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&owingOnly, "owing", false, "only students with an outstanding balance")
	return cmd
}

func lastPayment(s model.StudentFinancialSummary) string {
	if !s.HasPaid() {
		return "-"
	}
	return s.LastPaymentDate.Format(dateLayout)
}
