// Package seed populates empty domain stores with demonstration entities.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mesh-intelligence/ideate/pkg/types"
)

// builtInSamples holds the demonstration records for well-known domains.
var builtInSamples = map[string][]map[string]any{
	"products": {
		{"name": "Wireless Mouse", "description": "Ergonomic wireless mouse with long battery life", "price": 29.99, "stock": 150, "priority": 4},
		{"name": "USB-C Hub", "description": "Multi-port USB-C hub with HDMI and Ethernet", "price": 49.99, "stock": 75, "priority": 5},
		{"name": "Laptop Stand", "description": "Adjustable aluminum laptop stand", "price": 39.99, "stock": 200, "priority": 3},
	},
	"customers": {
		{"name": "John Doe", "email": "john@example.com", "phone": "+1-555-0123", "status": "active"},
		{"name": "Jane Smith", "email": "jane@example.com", "phone": "+1-555-0456", "status": "active"},
	},
	"tasks": {
		{"title": "Complete project proposal", "description": "Draft and submit Q1 project proposal", "status": "in_progress", "priority": 5},
		{"title": "Review team feedback", "description": "Review and respond to team survey results", "status": "pending", "priority": 3},
	},
}

// Samples returns the demonstration records for spec. Known domains get
// hand-written records; any other domain gets a single record with every
// required string field set to "Sample <Label>".
func Samples(spec *types.DomainSpec) []map[string]any {
	if samples, ok := builtInSamples[spec.Domain]; ok {
		return samples
	}
	sample := map[string]any{}
	for _, f := range spec.Fields {
		if f.Required && f.Type == types.FieldTypeString {
			sample[f.Key] = fmt.Sprintf("Sample %s", f.Label)
		}
	}
	return []map[string]any{sample}
}

// Store is the subset of the persistence store that seeding needs.
type Store interface {
	Spec() *types.DomainSpec
	IsEmpty(ctx context.Context) (bool, error)
	Create(ctx context.Context, fields map[string]types.Value) (*types.Entity, error)
}

// Run seeds store when it holds no entities and returns how many were
// created. A sample that fails to decode or validate is logged and skipped;
// only a failure to inspect the store is returned.
func Run(ctx context.Context, logger *slog.Logger, store Store) (int, error) {
	spec := store.Spec()
	empty, err := store.IsEmpty(ctx)
	if err != nil {
		return 0, fmt.Errorf("checking %s: %w", spec.Domain, err)
	}
	if !empty {
		logger.Debug("store not empty, skipping seed", "domain", spec.Domain)
		return 0, nil
	}

	created := 0
	for _, sample := range Samples(spec) {
		fields, err := types.DecodeFields(spec, sample)
		if err == nil {
			_, err = store.Create(ctx, fields)
		}
		if err != nil {
			logger.Warn("could not seed sample data", "domain", spec.Domain, "error", err)
			continue
		}
		created++
	}
	logger.Info("seeded sample data", "domain", spec.Domain, "count", created)
	return created, nil
}
