package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bursar-dev/bursar/internal/auditlog"
	"github.com/bursar-dev/bursar/internal/importer"
)

func newImportCommand(opts *globalOptions) *cobra.Command {
	var format string
	var keep bool

	registry := importer.DefaultRegistry()

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Post payment confirmations from CSV files in import/",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parser := registry.Get(format)
			if parser == nil {
				return fmt.Errorf("unknown format %q, want one of %s", format, strings.Join(registry.Formats(), ", "))
			}

			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}

			files, err := importer.Scan(a.root)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				a.printf("No files to import in %s/import\n", a.root)
				return nil
			}

			poster := importer.NewPoster(a.ledger, a.roster, a.log)
			for _, f := range files {
				pcs, err := importer.ParseFile(parser, f.Path)
				if err != nil {
					return fmt.Errorf("%s: %w", f.Name, err)
				}
				res, err := poster.Post(f.Name, pcs)
				if err != nil {
					return err
				}

				a.printf("%s: %d recorded, %d duplicate, %d unmatched\n",
					f.Name, len(res.Recorded), len(res.Duplicates), len(res.Unmatched))
				for _, pc := range res.Unmatched {
					a.printf("  unmatched %s: account %q, %s from %s\n", pc.Receipt, pc.StudentID, money(pc.Amount), pc.PaidBy)
				}

				if !keep {
					if err := importer.MarkProcessed(a.root, f.Name); err != nil {
						return err
					}
				}
				a.commit(auditlog.ActionImport, f.Name,
					fmt.Sprintf("imported %s: %d payments", f.Name, len(res.Recorded)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "mobile-money", "export format ("+strings.Join(registry.Formats(), ", ")+")")
	cmd.Flags().BoolVar(&keep, "keep", false, "leave files in import/ instead of moving them to import/processed/")
	return cmd
}
