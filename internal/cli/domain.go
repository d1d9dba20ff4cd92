package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/ideate/pkg/types"
)

func newDomainCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "domain",
		Short: "Inspect configured domains",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show [domain]",
		Short: "Show a domain configuration",
		Long: `Show prints the parsed configuration of a domain, with defaults applied.
Without an argument it lists every configured domain.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				specs, err := a.loadDomains()
				if err != nil {
					return err
				}
				if a.flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), specs)
				}
				printDomainTable(cmd.OutOrStdout(), specs)
				return nil
			}

			spec, err := a.findDomain(args[0])
			if err != nil {
				return err
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), spec)
			}
			printDomain(cmd.OutOrStdout(), spec)
			return nil
		},
	})
	return cmd
}

func printDomainTable(out io.Writer, specs []*types.DomainSpec) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DOMAIN\tLABEL\tFIELDS\tFEATURES")
	for _, s := range specs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.Domain, s.LabelPlural, len(s.Fields), featureList(s.Features))
	}
	w.Flush()
}

func featureList(f types.Features) string {
	var on []string
	for _, x := range []struct {
		name    string
		enabled bool
	}{
		{"create", f.Create}, {"update", f.Update}, {"delete", f.Delete},
		{"archive", f.Archive}, {"search", f.Search},
	} {
		if x.enabled {
			on = append(on, x.name)
		}
	}
	if len(on) == 0 {
		return "-"
	}
	return strings.Join(on, ",")
}

func printDomain(out io.Writer, spec *types.DomainSpec) {
	fmt.Fprintf(out, "Domain:    %s\n", spec.Domain)
	fmt.Fprintf(out, "Label:     %s / %s\n", spec.Label, spec.LabelPlural)
	if spec.Description != "" {
		fmt.Fprintf(out, "About:     %s\n", spec.Description)
	}
	fmt.Fprintf(out, "Features:  %s\n", featureList(spec.Features))
	fmt.Fprintln(out, "Fields:")

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  KEY\tLABEL\tTYPE\tRULES")
	for _, f := range spec.Fields {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", f.Key, f.Label, f.Type, fieldRules(f))
	}
	w.Flush()
}

func fieldRules(f types.FieldSpec) string {
	var rules []string
	if f.Required {
		rules = append(rules, "required")
	}
	if f.Hidden {
		rules = append(rules, "hidden")
	}
	if f.Min != nil {
		rules = append(rules, "min="+types.Number(*f.Min).String())
	}
	if f.Max != nil {
		rules = append(rules, "max="+types.Number(*f.Max).String())
	}
	if !f.Default.IsNull() {
		rules = append(rules, "default="+f.Default.String())
	}
	return strings.Join(rules, " ")
}

func newDomainsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "domains",
		Short: "List the domains registered in the data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.attachBackend()
			if err != nil {
				return err
			}
			defer backend.Detach()

			namespaces, err := backend.Namespaces(cmd.Context())
			if err != nil {
				return sysError(err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), namespaces)
			}
			if len(namespaces) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No domains registered.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DOMAIN\tTABLE\tCREATED")
			for _, ns := range namespaces {
				fmt.Fprintf(w, "%s\t%s\t%s\n", ns.Domain, ns.Table, ns.CreatedAt.Local().Format(timeFormat))
			}
			return w.Flush()
		},
	}
}
