package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/bursar-dev/bursar/internal/buildinfo"
	"github.com/bursar-dev/bursar/internal/log"
)

// Environment variables read at start-up, usually from .env.
const (
	EnvRepo     = "BURSAR_REPO"
	EnvLogLevel = "BURSAR_LOG_LEVEL"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	repo     string
	logLevel string
	logger   *log.Logger
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:     "bursar",
		Short:   "School fees ledger and payroll",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := log.ParseLevel(opts.logLevel)
			if err != nil {
				return err
			}
			opts.logger = log.New(log.Config{Level: level, Output: cmd.ErrOrStderr()})
			log.SetDefault(opts.logger)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.repo, "repo", envOr(EnvRepo, "."), "bursar repository directory")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", envOr(EnvLogLevel, "warn"), "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newInitCommand(),
		newStudentCommand(opts),
		newStaffCommand(opts),
		newTxnCommand(opts),
		newBalanceCommand(opts),
		newBalancesCommand(opts),
		newImportCommand(opts),
		newPayrollCommand(opts),
	)

	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
