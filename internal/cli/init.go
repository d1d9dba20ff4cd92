package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/ideate/internal/paths"
)

// exampleDomainFile is the domain file name written by init when the
// domains directory is empty.
const exampleDomainFile = "tasks.yaml"

const exampleDomainYAML = `domain: tasks
label: Task
labelPlural: Tasks
icon: check-square
description: Track work items
features:
  archive: true
  search: true
fields:
  - key: title
    label: Title
    type: string
    required: true
    showInList: true
    placeholder: What needs doing?
  - key: description
    label: Description
    type: textarea
  - key: status
    label: Status
    type: string
    showInList: true
    default: pending
  - key: priority
    label: Priority
    type: number
    min: 1
    max: 5
    showInList: true
    default: 3
    helpText: 1 is lowest, 5 is most urgent
  - key: due
    label: Due
    type: date
    showInList: true
`

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration and storage",
		Long: `Init creates the configuration directory with a default config.yaml and,
when no domain files exist yet, an example tasks domain. It then creates the
database and a table for every configured domain. Running init again keeps
existing files and data.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			domainsDir := filepath.Join(a.configDir, paths.DomainsDirName)
			if err := os.MkdirAll(domainsDir, 0o755); err != nil {
				return sysError(fmt.Errorf("create config directory: %w", err))
			}
			wrote, err := ensureDefaultConfigFile(a.configDir)
			if err != nil {
				return sysError(fmt.Errorf("write config: %w", err))
			}
			if wrote {
				fmt.Fprintf(out, "Wrote %s\n", filepath.Join(a.configDir, configFileExt))
			}

			if len(a.flags.domains) == 0 && len(a.cfg.GetStringSlice(cfgKeyDomains)) == 0 {
				existing, err := paths.DomainFiles(a.configDir)
				if err != nil {
					return sysError(err)
				}
				if len(existing) == 0 {
					path := filepath.Join(domainsDir, exampleDomainFile)
					if err := os.WriteFile(path, []byte(exampleDomainYAML), 0o644); err != nil {
						return sysError(fmt.Errorf("write example domain: %w", err))
					}
					fmt.Fprintf(out, "Wrote %s\n", path)
				}
			}

			specs, err := a.loadDomains()
			if err != nil {
				return err
			}
			backend, err := a.attachBackend()
			if err != nil {
				return err
			}
			defer backend.Detach()

			for _, spec := range specs {
				if _, err := backend.Store(cmd.Context(), spec); err != nil {
					return sysError(fmt.Errorf("initialize %s: %w", spec.Domain, err))
				}
			}

			fmt.Fprintf(out, "Ideate initialized with %d domain(s)\n", len(specs))
			return nil
		},
	}
}
