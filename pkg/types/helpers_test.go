package types

import "testing"

// tasksSpec is the two-field domain used across the package tests.
func tasksSpec(t *testing.T) *DomainSpec {
	t.Helper()
	spec, err := Parse(map[string]any{
		"domain":      "tasks",
		"label":       "Task",
		"labelPlural": "Tasks",
		"features":    map[string]any{"archive": true, "search": true},
		"fields": []any{
			map[string]any{"key": "title", "label": "Title", "type": "string", "required": true, "showInList": true},
			map[string]any{"key": "priority", "label": "Priority", "type": "number", "min": 1, "max": 5, "default": 3},
			map[string]any{"key": "done", "label": "Done", "type": "boolean"},
			map[string]any{"key": "due", "label": "Due", "type": "date"},
			map[string]any{"key": "secret", "label": "Secret", "type": "string", "hidden": true, "required": true},
		},
	})
	if err != nil {
		t.Fatalf("parse tasks spec: %v", err)
	}
	return spec
}
