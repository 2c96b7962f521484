package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bursar-dev/bursar/internal/auditlog"
	"github.com/bursar-dev/bursar/internal/config"
	"github.com/bursar-dev/bursar/internal/gitops"
	"github.com/bursar-dev/bursar/internal/ledger"
	"github.com/bursar-dev/bursar/internal/payroll"
	"github.com/bursar-dev/bursar/internal/roster"
)

func newInitCommand() *cobra.Command {
	var name string
	var backend string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new bursar repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd, absDir, name, backend)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "school name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&backend, "storage", config.BackendCSV, "payroll history backend (csv or sqlite)")

	return cmd
}

func runInit(cmd *cobra.Command, dir, name, backend string) error {
	if _, err := os.Stat(filepath.Join(dir, config.FileName)); err == nil {
		return fmt.Errorf("%s already exists in %s", config.FileName, dir)
	}

	// Create directory structure.
	dirs := []string{
		"ledger",
		"roster",
		filepath.FromSlash(payroll.DraftDir),
		filepath.FromSlash(payroll.HistoryDir),
		"logs",
		"import",
		filepath.Join("import", "processed"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	// Write bursar.yaml.
	cfg := config.Default(name)
	cfg.Storage.Backend = backend
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(filepath.Join(dir, config.FileName), cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Empty registers and ledger, headers only.
	if err := roster.NewService(nil, nil).Save(dir); err != nil {
		return fmt.Errorf("writing roster: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, filepath.FromSlash(ledger.File)))
	if err != nil {
		return fmt.Errorf("creating ledger: %w", err)
	}
	if err := ledger.WriteTransactions(f, nil); err != nil {
		f.Close()
		return fmt.Errorf("writing ledger: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing ledger: %w", err)
	}

	// Write .gitignore.
	gitignore := ".env\nimport/processed/\n*.db-journal\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	// Keep otherwise empty directories in git.
	for _, d := range []string{"import", filepath.FromSlash(payroll.DraftDir), filepath.FromSlash(payroll.HistoryDir)} {
		if err := os.WriteFile(filepath.Join(dir, d, ".gitkeep"), []byte{}, 0o644); err != nil {
			return fmt.Errorf("writing .gitkeep: %w", err)
		}
	}

	if err := auditlog.New(dir, cfg.Git.AuthorName).Record(auditlog.ActionInit, name, "initialized "+name); err != nil {
		return fmt.Errorf("writing audit log: %w", err)
	}

	// Initialize git and create initial commit.
	if err := gitops.Init(dir); err != nil {
		return fmt.Errorf("git init: %w", err)
	}

	hash, err := gitops.CommitAll(dir, "init: Initialize "+name, cfg.Git.AuthorName, cfg.Git.AuthorEmail)
	if err != nil {
		return fmt.Errorf("initial commit: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized bursar repository at %s (%s)\n", dir, hash)
	return nil
}
