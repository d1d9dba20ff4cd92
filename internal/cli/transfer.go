package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <domain> <file>",
		Short: "Write every entity of a domain to a JSONL file",
		Long: `Export writes all entities of a domain, archived ones included, as one
JSON object per line. The file is replaced atomically.

Example:
  ideate export tasks tasks.jsonl`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := a.openStore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := store.Export(cmd.Context(), args[1])
			if err != nil {
				return sysError(fmt.Errorf("export %s: %w", args[0], err))
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]any{"domain": args[0], "exported": n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d %s to %s\n", n, strings.ToLower(store.Spec().LabelPlural), args[1])
			return nil
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <domain> <file>",
		Short: "Load entities of a domain from a JSONL file",
		Long: `Import reads a file written by export. Entities keep their ids and
timestamps. Malformed lines, invalid entities and ids that already exist
are skipped.

Example:
  ideate import tasks tasks.jsonl`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[1]); err != nil {
				return fmt.Errorf("import: %w", err)
			}
			store, closeFn, err := a.openStore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := store.Import(cmd.Context(), args[1])
			if err != nil {
				return sysError(fmt.Errorf("import %s: %w", args[0], err))
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"domain":   args[0],
					"imported": res.Imported,
					"skipped":  res.Skipped,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d, skipped %d\n", res.Imported, res.Skipped)
			return nil
		},
	}
}
