// Package domainfile loads domain configurations from YAML or JSON files.
package domainfile

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/ideate/pkg/types"
)

// Load reads and parses the domain file at path. JSON is accepted as a
// subset of YAML.
func Load(path string) (*types.DomainSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading domain file: %w", err)
	}
	spec, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}

// LoadAll loads every path in order and rejects repeated domain identifiers.
func LoadAll(paths []string) ([]*types.DomainSpec, error) {
	specs := make([]*types.DomainSpec, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, p := range paths {
		spec, err := Load(p)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[spec.Domain]; ok {
			return nil, &types.ConfigError{
				Field:  "domain",
				Reason: fmt.Sprintf("%q declared in both %s and %s", spec.Domain, prev, p),
			}
		}
		seen[spec.Domain] = p
		specs = append(specs, spec)
	}
	return specs, nil
}

// Decode parses a domain document.
func Decode(data []byte) (*types.DomainSpec, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &types.ConfigError{Reason: "empty domain document"}
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &types.ConfigError{Reason: fmt.Sprintf("decoding domain document: %v", err)}
	}
	raw, ok := normalize(doc).(map[string]any)
	if !ok {
		return nil, &types.ConfigError{Reason: "domain document must be a mapping"}
	}
	return types.Parse(raw)
}

// normalize converts the map[any]any values that YAML produces for
// non-string keys into map[string]any, recursively.
func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, val := range x {
			x[k] = normalize(val)
		}
		return x
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		for i, val := range x {
			x[i] = normalize(val)
		}
		return x
	default:
		return v
	}
}
