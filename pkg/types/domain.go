package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Field types with dedicated value kinds. Any other type string is treated
// as text.
const (
	FieldTypeString   = "string"
	FieldTypeNumber   = "number"
	FieldTypeBoolean  = "boolean"
	FieldTypeDate     = "date"
	FieldTypeDateTime = "datetime"
)

// Branding defaults.
const (
	DefaultPrimaryColor   = "#3B82F6"
	DefaultSecondaryColor = "#10B981"
)

// ReservedKeys are entity attributes that field keys may not shadow.
var ReservedKeys = []string{"id", "archived", "createdAt", "updatedAt"}

// FieldSpec describes one field of a domain.
type FieldSpec struct {
	Key          string
	Label        string
	Type         string
	Required     bool
	Hidden       bool
	ShowInList   bool
	ShowInDetail bool
	Placeholder  string
	HelpText     string
	Min          *float64
	Max          *float64
	Default      Value
}

// Kind returns the value kind that the field's type maps to.
func (f FieldSpec) Kind() Kind {
	switch f.Type {
	case FieldTypeNumber:
		return KindNumber
	case FieldTypeBoolean:
		return KindBool
	case FieldTypeDate, FieldTypeDateTime:
		return KindDate
	default:
		return KindString
	}
}

// Branding holds display colours and an optional logo.
type Branding struct {
	PrimaryColor   string
	SecondaryColor string
	Logo           string
}

// Features are the per-domain operation toggles.
type Features struct {
	Create  bool
	Update  bool
	Delete  bool
	Archive bool
	Search  bool
}

// DomainSpec is the parsed description of one entity type.
type DomainSpec struct {
	Domain      string
	Label       string
	LabelPlural string
	Fields      []FieldSpec
	Icon        string
	Description string
	Branding    Branding
	Features    Features
}

// Field returns the field with the given key.
func (d *DomainSpec) Field(key string) (FieldSpec, bool) {
	for _, f := range d.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// RequiredFields returns the required, non-hidden fields in declaration order.
func (d *DomainSpec) RequiredFields() []FieldSpec {
	return d.filter(func(f FieldSpec) bool { return f.Required })
}

// ListFields returns the non-hidden fields shown in list views.
func (d *DomainSpec) ListFields() []FieldSpec {
	return d.filter(func(f FieldSpec) bool { return f.ShowInList })
}

// DetailFields returns the non-hidden fields shown in detail views.
func (d *DomainSpec) DetailFields() []FieldSpec {
	return d.filter(func(f FieldSpec) bool { return f.ShowInDetail })
}

func (d *DomainSpec) filter(keep func(FieldSpec) bool) []FieldSpec {
	out := make([]FieldSpec, 0, len(d.Fields))
	for _, f := range d.Fields {
		if !f.Hidden && keep(f) {
			out = append(out, f)
		}
	}
	return out
}

// Parse builds a DomainSpec from an attribute-keyed mapping, such as a
// decoded JSON or YAML document. Optional attributes take their defaults.
// It returns a *ConfigError when a required attribute is missing, an
// attribute has the wrong type, or a field key is repeated or reserved.
func Parse(raw map[string]any) (*DomainSpec, error) {
	var missing []string
	for _, k := range []string{"domain", "label", "labelPlural", "fields"} {
		if _, ok := raw[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, &ConfigError{Field: strings.Join(missing, ", "), Reason: "missing required attribute"}
	}

	p := attrs{raw: raw}
	spec := &DomainSpec{
		Domain:      p.str("domain", ""),
		Label:       p.str("label", ""),
		LabelPlural: p.str("labelPlural", ""),
		Icon:        p.str("icon", ""),
		Description: p.str("description", ""),
	}
	if p.err == nil && spec.Domain == "" {
		p.fail("domain", "must not be empty")
	}

	branding := p.object("branding")
	b := attrs{raw: branding, path: "branding."}
	spec.Branding = Branding{
		PrimaryColor:   b.str("primaryColor", DefaultPrimaryColor),
		SecondaryColor: b.str("secondaryColor", DefaultSecondaryColor),
		Logo:           b.str("logo", ""),
	}

	features := p.object("features")
	ft := attrs{raw: features, path: "features."}
	spec.Features = Features{
		Create:  ft.boolean("create", true),
		Update:  ft.boolean("update", true),
		Delete:  ft.boolean("delete", true),
		Archive: ft.boolean("archive", false),
		Search:  ft.boolean("search", false),
	}

	for _, err := range []error{p.err, b.err, ft.err} {
		if err != nil {
			return nil, err
		}
	}

	list, ok := raw["fields"].([]any)
	if !ok {
		return nil, &ConfigError{Field: "fields", Reason: "must be a list"}
	}
	seen := make(map[string]bool, len(list))
	for _, k := range ReservedKeys {
		seen[k] = true
	}
	for i, entry := range list {
		path := fmt.Sprintf("fields[%d]", i)
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, &ConfigError{Field: path, Reason: "must be an object"}
		}
		f, err := parseField(m, path)
		if err != nil {
			return nil, err
		}
		if seen[f.Key] {
			return nil, &ConfigError{Field: path + ".key", Reason: fmt.Sprintf("duplicate or reserved key %q", f.Key)}
		}
		seen[f.Key] = true
		spec.Fields = append(spec.Fields, f)
	}
	return spec, nil
}

func parseField(raw map[string]any, path string) (FieldSpec, error) {
	var missing []string
	for _, k := range []string{"key", "label", "type"} {
		if _, ok := raw[k]; !ok {
			missing = append(missing, path+"."+k)
		}
	}
	if len(missing) > 0 {
		return FieldSpec{}, &ConfigError{Field: strings.Join(missing, ", "), Reason: "missing required attribute"}
	}

	p := attrs{raw: raw, path: path + "."}
	f := FieldSpec{
		Key:          p.str("key", ""),
		Label:        p.str("label", ""),
		Type:         p.str("type", ""),
		Required:     p.boolean("required", false),
		Hidden:       p.boolean("hidden", false),
		ShowInList:   p.boolean("showInList", false),
		ShowInDetail: p.boolean("showInDetail", true),
		Placeholder:  p.str("placeholder", ""),
		HelpText:     p.str("helpText", ""),
		Min:          p.number("min"),
		Max:          p.number("max"),
	}
	if p.err != nil {
		return FieldSpec{}, p.err
	}
	if f.Key == "" {
		return FieldSpec{}, &ConfigError{Field: path + ".key", Reason: "must not be empty"}
	}
	if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
		return FieldSpec{}, &ConfigError{Field: path, Reason: "min is greater than max"}
	}
	if d, ok := raw["default"]; ok {
		v, err := FromAny(d)
		if err != nil {
			return FieldSpec{}, &ConfigError{Field: path + ".default", Reason: err.Error()}
		}
		f.Default = Coerce(f.Kind(), v)
		if err := checkDefault(f); err != nil {
			return FieldSpec{}, &ConfigError{Field: path + ".default", Reason: err.Error()}
		}
	}
	return f, nil
}

// checkDefault applies the field's type and bound rules to its default.
func checkDefault(f FieldSpec) error {
	if f.Default.IsNull() {
		return nil
	}
	f.Required = false
	one := &DomainSpec{Fields: []FieldSpec{f}}
	if errs := Validate(one, &Entity{Fields: map[string]Value{f.Key: f.Default}}); len(errs) > 0 {
		return errors.New(errs[0].Message)
	}
	return nil
}

// attrs reads typed attributes from a mapping, remembering the first error.
type attrs struct {
	raw  map[string]any
	path string
	err  error
}

func (a *attrs) fail(key, reason string) {
	if a.err == nil {
		a.err = &ConfigError{Field: a.path + key, Reason: reason}
	}
}

func (a *attrs) str(key, def string) string {
	v, ok := a.raw[key]
	if !ok || v == nil {
		return def
	}
	s, ok := v.(string)
	if !ok {
		a.fail(key, "must be a string")
		return def
	}
	return s
}

func (a *attrs) boolean(key string, def bool) bool {
	v, ok := a.raw[key]
	if !ok || v == nil {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		a.fail(key, "must be a boolean")
		return def
	}
	return b
}

func (a *attrs) number(key string) *float64 {
	v, ok := a.raw[key]
	if !ok || v == nil {
		return nil
	}
	n, err := FromAny(v)
	if err != nil || n.Kind() != KindNumber {
		a.fail(key, "must be a number")
		return nil
	}
	f, _ := n.AsNumber()
	return &f
}

func (a *attrs) object(key string) map[string]any {
	v, ok := a.raw[key]
	if !ok || v == nil {
		return map[string]any{}
	}
	m, ok := v.(map[string]any)
	if !ok {
		a.fail(key, "must be an object")
		return map[string]any{}
	}
	return m
}

type fieldJSON struct {
	Key          string   `json:"key"`
	Label        string   `json:"label"`
	Type         string   `json:"type"`
	Required     bool     `json:"required"`
	Hidden       bool     `json:"hidden"`
	ShowInList   bool     `json:"showInList"`
	ShowInDetail bool     `json:"showInDetail"`
	Placeholder  *string  `json:"placeholder"`
	HelpText     *string  `json:"helpText"`
	Min          *float64 `json:"min"`
	Max          *float64 `json:"max"`
	Default      Value    `json:"default"`
}

type brandingJSON struct {
	PrimaryColor   string  `json:"primaryColor"`
	SecondaryColor string  `json:"secondaryColor"`
	Logo           *string `json:"logo"`
}

type featuresJSON struct {
	Create  bool `json:"create"`
	Update  bool `json:"update"`
	Delete  bool `json:"delete"`
	Archive bool `json:"archive"`
	Search  bool `json:"search"`
}

type domainJSON struct {
	Domain      string       `json:"domain"`
	Label       string       `json:"label"`
	LabelPlural string       `json:"labelPlural"`
	Icon        *string      `json:"icon"`
	Description *string      `json:"description"`
	Branding    brandingJSON `json:"branding"`
	Features    featuresJSON `json:"features"`
	Fields      []fieldJSON  `json:"fields"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// MarshalJSON renders the domain with camelCase attributes and nulls for
// unset optional values.
func (d *DomainSpec) MarshalJSON() ([]byte, error) {
	out := domainJSON{
		Domain:      d.Domain,
		Label:       d.Label,
		LabelPlural: d.LabelPlural,
		Icon:        optional(d.Icon),
		Description: optional(d.Description),
		Branding: brandingJSON{
			PrimaryColor:   d.Branding.PrimaryColor,
			SecondaryColor: d.Branding.SecondaryColor,
			Logo:           optional(d.Branding.Logo),
		},
		Features: featuresJSON(d.Features),
		Fields:   make([]fieldJSON, len(d.Fields)),
	}
	for i, f := range d.Fields {
		out.Fields[i] = fieldJSON{
			Key:          f.Key,
			Label:        f.Label,
			Type:         f.Type,
			Required:     f.Required,
			Hidden:       f.Hidden,
			ShowInList:   f.ShowInList,
			ShowInDetail: f.ShowInDetail,
			Placeholder:  optional(f.Placeholder),
			HelpText:     optional(f.HelpText),
			Min:          f.Min,
			Max:          f.Max,
			Default:      f.Default,
		}
	}
	return json.Marshal(out)
}
