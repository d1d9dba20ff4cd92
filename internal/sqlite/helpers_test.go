package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/ideate/pkg/types"
)

// stepClock returns a clock that advances one millisecond per call.
func stepClock() func() time.Time {
	t := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Millisecond)
		return t
	}
}

func parseSpec(t *testing.T, raw map[string]any) *types.DomainSpec {
	t.Helper()
	spec, err := types.Parse(raw)
	require.NoError(t, err)
	return spec
}

func tasksSpec(t *testing.T) *types.DomainSpec {
	return parseSpec(t, map[string]any{
		"domain":      "tasks",
		"label":       "Task",
		"labelPlural": "Tasks",
		"features":    map[string]any{"archive": true},
		"fields": []any{
			map[string]any{"key": "title", "label": "Title", "type": "string", "required": true},
			map[string]any{"key": "status", "label": "Status", "type": "string", "default": "todo"},
		},
	})
}

func scoresSpec(t *testing.T) *types.DomainSpec {
	return parseSpec(t, map[string]any{
		"domain":      "scores",
		"label":       "Score",
		"labelPlural": "Scores",
		"fields": []any{
			map[string]any{"key": "name", "label": "Name", "type": "string", "required": true},
			map[string]any{"key": "score", "label": "Score", "type": "number", "min": 0, "max": 100},
		},
	})
}

// openStore attaches a backend in a temp dir and opens a store for spec.
func openStore(t *testing.T, spec *types.DomainSpec) (*Backend, *Store) {
	t.Helper()
	b := NewBackend(WithClock(stepClock()))
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { b.Detach() })

	s, err := b.Store(context.Background(), spec)
	require.NoError(t, err)
	return b, s
}

func str(s string) types.Value { return types.String(s) }
