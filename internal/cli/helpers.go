package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mesh-intelligence/ideate/internal/domainfile"
	"github.com/mesh-intelligence/ideate/internal/sqlite"
	"github.com/mesh-intelligence/ideate/pkg/types"
)

// loadDomains loads every configured domain file.
func (a *app) loadDomains() ([]*types.DomainSpec, error) {
	files, err := a.domainPaths()
	if err != nil {
		return nil, err
	}
	return domainfile.LoadAll(files)
}

// findDomain loads the configured domains and returns the one named name.
func (a *app) findDomain(name string) (*types.DomainSpec, error) {
	specs, err := a.loadDomains()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		if spec.Domain == name {
			return spec, nil
		}
		names = append(names, spec.Domain)
	}
	sort.Strings(names)
	return nil, fmt.Errorf("unknown domain %q (configured: %s)", name, strings.Join(names, ", "))
}

// attachBackend resolves the data directory, creates a SQLite backend and
// attaches it. The caller must defer backend.Detach().
func (a *app) attachBackend() (*sqlite.Backend, error) {
	cfg, err := a.storageConfig()
	if err != nil {
		return nil, err
	}
	backend := sqlite.NewBackend(sqlite.WithLogger(a.logger))
	if err := backend.Attach(cfg); err != nil {
		return nil, sysError(fmt.Errorf("attach backend: %w", err))
	}
	return backend, nil
}

// openStore attaches the backend and returns the store for the named
// domain. The returned close function detaches the backend.
func (a *app) openStore(ctx context.Context, name string) (*sqlite.Store, func(), error) {
	spec, err := a.findDomain(name)
	if err != nil {
		return nil, nil, err
	}
	backend, err := a.attachBackend()
	if err != nil {
		return nil, nil, err
	}
	store, err := backend.Store(ctx, spec)
	if err != nil {
		backend.Detach()
		return nil, nil, sysError(fmt.Errorf("open %s: %w", name, err))
	}
	return store, func() { backend.Detach() }, nil
}

// requireFeature fails when the domain disables the named feature.
func requireFeature(spec *types.DomainSpec, enabled bool, feature string) error {
	if !enabled {
		return fmt.Errorf("%s not enabled for domain %q", feature, spec.Domain)
	}
	return nil
}

// decodeData parses a --data JSON object into field values.
func decodeData(spec *types.DomainSpec, data string) (map[string]any, map[string]types.Value, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, nil, fmt.Errorf("invalid --data JSON: %w", err)
	}
	fields, err := types.DecodeFields(spec, raw)
	if err != nil {
		return nil, nil, err
	}
	return raw, fields, nil
}

// storeError marks storage failures as system errors and leaves
// validation, lookup and version errors as user errors.
func storeError(err error) error {
	if _, ok := types.AsValidationError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrInvalidID),
		errors.Is(err, types.ErrConcurrentModification):
		return err
	}
	return sysError(err)
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return sysError(fmt.Errorf("marshal JSON: %w", err))
	}
	fmt.Fprintln(w, string(out))
	return nil
}

// shortID truncates an id to its first 8 characters for table output.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncate shortens s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
