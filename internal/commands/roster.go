package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bursar-dev/bursar/internal/auditlog"
	"github.com/bursar-dev/bursar/internal/model"
)

func newStudentCommand(opts *globalOptions) *cobra.Command {
	studentCmd := &cobra.Command{
		Use:   "student",
		Short: "Manage the student register",
	}
	studentCmd.AddCommand(newStudentAddCommand(opts), newStudentListCommand(opts))
	return studentCmd
}

func newStudentAddCommand(opts *globalOptions) *cobra.Command {
	var st model.Student

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Enroll a student",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			if err := a.roster.AddStudent(st); err != nil {
				return err
			}
			if err := a.roster.Save(a.root); err != nil {
				return err
			}
			a.commit(auditlog.ActionStudentAdd, st.ID, fmt.Sprintf("enrolled %s %s", st.ID, st.Name))
			a.printf("Enrolled %s (%s)\n", st.Name, st.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&st.ID, "id", "", "student ID / admission number (required)")
	cmd.Flags().StringVar(&st.Name, "name", "", "full name (required)")
	cmd.Flags().StringVar(&st.Class, "class", "", "class or form")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newStudentListCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List enrolled students",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCLASS")
			for _, st := range a.roster.Students() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", st.ID, st.Name, st.Class)
			}
			return tw.Flush()
		},
	}
}

func newStaffCommand(opts *globalOptions) *cobra.Command {
	staffCmd := &cobra.Command{
		Use:   "staff",
		Short: "Manage the staff roster",
	}
	staffCmd.AddCommand(
		newStaffAddCommand(opts),
		newStaffListCommand(opts),
		newStaffSalaryCommand(opts),
	)
	return staffCmd
}

func newStaffAddCommand(opts *globalOptions) *cobra.Command {
	var st model.Staff
	var salary string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a staff member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			if st.BaseSalary, err = parseMoney(salary); err != nil {
				return err
			}
			if err := a.roster.AddStaff(st); err != nil {
				return err
			}
			if err := a.roster.Save(a.root); err != nil {
				return err
			}
			a.commit(auditlog.ActionStaffAdd, st.ID, fmt.Sprintf("added %s %s at %s", st.ID, st.Name, money(st.BaseSalary)))
			a.printf("Added %s (%s), base salary %s\n", st.Name, st.ID, money(st.BaseSalary))
			return nil
		},
	}

	cmd.Flags().StringVar(&st.ID, "id", "", "staff ID (required)")
	cmd.Flags().StringVar(&st.Name, "name", "", "full name (required)")
	cmd.Flags().StringVar(&salary, "salary", "", "monthly base salary (required)")
	cmd.Flags().StringVar(&st.TaxPIN, "tax-pin", "", "tax PIN")
	cmd.Flags().StringVar(&st.PensionNo, "pension-no", "", "pension scheme number")
	cmd.Flags().StringVar(&st.HealthNo, "health-no", "", "health insurance number")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("salary")

	return cmd
}

func newStaffListCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List staff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(tw, "ID\tNAME\tBASE SALARY\tTAX PIN\t")
			for _, st := range a.roster.Staff() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", st.ID, st.Name, money(st.BaseSalary), st.TaxPIN)
			}
			return tw.Flush()
		},
	}
}

func newStaffSalaryCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "salary <staff-id> <amount>",
		Short: "Change a staff member's base salary",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			amount, err := parseMoney(args[1])
			if err != nil {
				return err
			}
			if err := a.roster.SetBaseSalary(args[0], amount); err != nil {
				return err
			}
			if err := a.roster.Save(a.root); err != nil {
				return err
			}
			a.commit(auditlog.ActionStaffSalary, args[0], fmt.Sprintf("base salary of %s set to %s", args[0], money(amount)))
			a.printf("Base salary of %s is now %s\n", args[0], money(amount))
			return nil
		},
	}
}
