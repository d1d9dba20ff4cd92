package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/ideate/pkg/types"
)

const timeFormat = "2006-01-02 15:04:05"

func newListCmd(a *app) *cobra.Command {
	var (
		includeArchived bool
		archivedOnly    bool
		query           string
	)
	cmd := &cobra.Command{
		Use:   "list <domain>",
		Short: "List the entities of a domain",
		Long: `List prints the entities of a domain, most recent first.

Archived entities are hidden unless --include-archived or --archived-only
is given. --query filters by a case-insensitive substring of the visible
text fields when the domain enables search.

Example:
  ideate list tasks
  ideate list tasks --archived-only
  ideate list tasks --query report --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := a.openStore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer closeFn()
			spec := store.Spec()

			if query != "" {
				if err := requireFeature(spec, spec.Features.Search, "search"); err != nil {
					return err
				}
			}

			entities, err := store.GetAll(cmd.Context(), includeArchived, archivedOnly)
			if err != nil {
				return storeError(err)
			}
			if query != "" {
				matched := entities[:0]
				for _, e := range entities {
					if e.Matches(spec, query) {
						matched = append(matched, e)
					}
				}
				entities = matched
			}

			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), entities)
			}
			printEntityTable(cmd.OutOrStdout(), spec, entities)
			return nil
		},
	}
	cmd.Flags().BoolVar(&includeArchived, "include-archived", false, "include archived entities")
	cmd.Flags().BoolVar(&archivedOnly, "archived-only", false, "list only archived entities")
	cmd.Flags().StringVarP(&query, "query", "q", "", "case-insensitive text search")
	return cmd
}

// printEntityTable prints entities in a human-readable table format.
func printEntityTable(out io.Writer, spec *types.DomainSpec, entities []*types.Entity) {
	plural := strings.ToLower(spec.LabelPlural)
	if len(entities) == 0 {
		fmt.Fprintf(out, "No %s found.\n", plural)
		return
	}

	columns := spec.ListFields()
	header := []string{"ID"}
	for _, f := range columns {
		header = append(header, strings.ToUpper(f.Label))
	}
	if spec.Features.Archive {
		header = append(header, "ARCHIVED")
	}
	header = append(header, "CREATED")

	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, e := range entities {
		row := []string{shortID(e.ID)}
		for _, f := range columns {
			row = append(row, truncate(e.Fields[f.Key].String(), 40))
		}
		if spec.Features.Archive {
			row = append(row, fmt.Sprint(e.Archived))
		}
		row = append(row, e.CreatedAt.Local().Format("2006-01-02"))
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()

	for _, line := range strings.Split(strings.TrimRight(sb.String(), "\n"), "\n") {
		fmt.Fprintln(out, strings.TrimRight(line, " "))
	}
	fmt.Fprintf(out, "Total: %d %s\n", len(entities), plural)
}

// printEntity prints one entity as labelled lines.
func printEntity(out io.Writer, spec *types.DomainSpec, e *types.Entity) {
	fmt.Fprintf(out, "ID:        %s\n", e.ID)
	fmt.Fprintf(out, "Archived:  %t\n", e.Archived)
	fmt.Fprintf(out, "Created:   %s\n", e.CreatedAt.Local().Format(timeFormat))
	fmt.Fprintf(out, "Updated:   %s\n", e.UpdatedAt.Local().Format(timeFormat))
	fmt.Fprintf(out, "Version:   %d\n", e.Version)

	fields := spec.DetailFields()
	if len(fields) == 0 {
		return
	}
	fmt.Fprintln(out, "Fields:")
	for _, f := range fields {
		v, ok := e.Fields[f.Key]
		if !ok {
			continue
		}
		fmt.Fprintf(out, "  %s: %s\n", f.Label, v.String())
	}
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <domain> <id>",
		Short: "Show an entity by ID",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := a.openStore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			e, err := store.Get(cmd.Context(), args[1])
			if err != nil {
				return notFound(store.Spec(), args[1], err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), e)
			}
			printEntity(cmd.OutOrStdout(), store.Spec(), e)
			return nil
		},
	}
}

// notFound rewrites lookup failures into a message naming the entity.
func notFound(spec *types.DomainSpec, id string, err error) error {
	if errors.Is(err, types.ErrNotFound) || errors.Is(err, types.ErrInvalidID) {
		return fmt.Errorf("%s %q not found: %w", strings.ToLower(spec.Label), id, types.ErrNotFound)
	}
	return storeError(err)
}

func newCreateCmd(a *app) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "create <domain>",
		Short: "Create an entity",
		Long: `Create validates the JSON object given with --data against the domain
and stores it. Keys the domain does not declare are ignored.

Example:
  ideate create tasks --data '{"title":"Write report","priority":3}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := a.openStore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer closeFn()
			spec := store.Spec()

			if err := requireFeature(spec, spec.Features.Create, "create"); err != nil {
				return err
			}
			_, fields, err := decodeData(spec, data)
			if err != nil {
				return err
			}
			e, err := store.Create(cmd.Context(), fields)
			if err != nil {
				return storeError(err)
			}

			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), e)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s: %s\n", strings.ToLower(spec.Label), e.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "entity fields as a JSON object (required)")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func newUpdateCmd(a *app) *cobra.Command {
	var (
		data      string
		archived  bool
		ifVersion int64
	)
	cmd := &cobra.Command{
		Use:   "update <domain> <id>",
		Short: "Update an entity",
		Long: `Update replaces the fields given with --data; absent or null fields keep
their stored values. --archived sets the archived flag. --if-version
rejects the update when the entity changed since that version.

Example:
  ideate update tasks 0190a1b2 --data '{"priority":5}'
  ideate update tasks 0190a1b2 --archived=true --if-version 2`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			archivedSet := cmd.Flags().Changed("archived")
			if data == "" && !archivedSet {
				return errors.New("update: at least one of --data or --archived must be provided")
			}

			store, closeFn, err := a.openStore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer closeFn()
			spec := store.Spec()

			if err := requireFeature(spec, spec.Features.Update, "update"); err != nil {
				return err
			}

			u := types.Update{ExpectedVersion: ifVersion}
			if data != "" {
				raw, fields, err := decodeData(spec, data)
				if err != nil {
					return err
				}
				if v, ok := raw["archived"].(bool); ok && !archivedSet {
					u.Archived = &v
				}
				u.Fields = fields
			}
			if archivedSet {
				u.Archived = &archived
			}
			if u.Archived != nil {
				if err := requireFeature(spec, spec.Features.Archive, "archive"); err != nil {
					return err
				}
			}

			e, err := store.Update(cmd.Context(), args[1], u)
			if err != nil {
				return notFound(spec, args[1], err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), e)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s: %s (version %d)\n", strings.ToLower(spec.Label), e.ID, e.Version)
			return nil
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "fields to replace as a JSON object")
	cmd.Flags().BoolVar(&archived, "archived", false, "set the archived flag")
	cmd.Flags().Int64Var(&ifVersion, "if-version", 0, "only update if the entity is at this version")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <domain> <id>",
		Short: "Permanently delete an entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := a.openStore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer closeFn()
			spec := store.Spec()

			if err := requireFeature(spec, spec.Features.Delete, "delete"); err != nil {
				return err
			}
			ok, err := store.Delete(cmd.Context(), args[1])
			if err != nil {
				return storeError(err)
			}
			if !ok {
				return notFound(spec, args[1], types.ErrNotFound)
			}

			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]any{"id": args[1], "deleted": true})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s: %s\n", strings.ToLower(spec.Label), args[1])
			return nil
		},
	}
}

// newArchiveCmd builds "archive" when archived is true and "restore"
// otherwise.
func newArchiveCmd(a *app, archived bool) *cobra.Command {
	use, short, verb := "restore", "Restore an archived entity", "Restored"
	if archived {
		use, short, verb = "archive", "Archive an entity", "Archived"
	}
	return &cobra.Command{
		Use:   use + " <domain> <id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := a.openStore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer closeFn()
			spec := store.Spec()

			if err := requireFeature(spec, spec.Features.Archive, "archive"); err != nil {
				return err
			}
			e, err := store.Get(cmd.Context(), args[1])
			if err != nil {
				return notFound(spec, args[1], err)
			}
			if e.Archived != archived {
				if e, err = store.Update(cmd.Context(), args[1], types.Update{Archived: &archived}); err != nil {
					return notFound(spec, args[1], err)
				}
			}

			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), e)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", verb, strings.ToLower(spec.Label), e.ID)
			return nil
		},
	}
}

func newCountCmd(a *app) *cobra.Command {
	var includeArchived bool
	cmd := &cobra.Command{
		Use:   "count <domain>",
		Short: "Count the entities of a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := a.openStore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := store.Count(cmd.Context(), includeArchived)
			if err != nil {
				return storeError(err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]any{"domain": args[0], "count": n})
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&includeArchived, "include-archived", false, "count archived entities too")
	return cmd
}
