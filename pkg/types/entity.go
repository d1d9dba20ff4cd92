package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entity is one record of a configured domain.
type Entity struct {
	ID        string
	Archived  bool
	CreatedAt time.Time
	UpdatedAt time.Time
	// Version counts persisted writes; it starts at 1.
	Version int64
	Fields  map[string]Value
}

// EntityInput carries the attributes for NewEntity. Zero values mean
// "not supplied".
type EntityInput struct {
	ID        string
	Archived  bool
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64
	Fields    map[string]Value
}

// Update describes a partial change to an entity. Null or absent field
// values leave the stored value untouched; there is no way to clear a field.
type Update struct {
	Archived *bool
	Fields   map[string]Value
	// ExpectedVersion, when positive, makes the write conditional on the
	// stored version. Zero means last write wins.
	ExpectedVersion int64
}

// NewEntity constructs an entity of spec. A UUID v7 is generated when no ID
// is supplied and missing timestamps are set to the current instant. Each
// declared field takes the supplied value, else its non-null default, else
// stays absent. Keys not declared by spec are ignored.
func NewEntity(spec *DomainSpec, in EntityInput) *Entity {
	e := &Entity{
		ID:        in.ID,
		Archived:  in.Archived,
		CreatedAt: in.CreatedAt.UTC(),
		UpdatedAt: in.UpdatedAt.UTC(),
		Version:   in.Version,
		Fields:    make(map[string]Value, len(spec.Fields)),
	}
	if e.ID == "" {
		e.ID = newID()
	}
	if in.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if in.UpdatedAt.IsZero() {
		e.UpdatedAt = e.CreatedAt
	}
	if e.Version < 1 {
		e.Version = 1
	}
	for _, f := range spec.Fields {
		if v, ok := in.Fields[f.Key]; ok && !v.IsNull() {
			e.Fields[f.Key] = v
		} else if !f.Default.IsNull() {
			e.Fields[f.Key] = f.Default
		}
	}
	return e
}

// newID generates a new UUID v7 for entity IDs.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// ApplyUpdate mutates e in place. Archived is replaced when set; every
// declared field with a non-null value in u replaces the stored value.
// UpdatedAt moves to now, or stays put if now is earlier.
func (e *Entity) ApplyUpdate(spec *DomainSpec, u Update, now time.Time) {
	if u.Archived != nil {
		e.Archived = *u.Archived
	}
	for _, f := range spec.Fields {
		if v, ok := u.Fields[f.Key]; ok && !v.IsNull() {
			e.Fields[f.Key] = v
		}
	}
	now = now.UTC()
	if now.After(e.UpdatedAt) {
		e.UpdatedAt = now
	}
}

// Validate checks e against the rules of spec and returns every violation.
// An empty result means the entity is valid. e is not modified.
func Validate(spec *DomainSpec, e *Entity) []FieldError {
	var errs []FieldError
	add := func(f FieldSpec, format string, args ...any) {
		msg := fmt.Sprintf("Field '%s' ", f.Label) + fmt.Sprintf(format, args...)
		errs = append(errs, FieldError{Field: f.Key, Message: msg})
	}

	for _, f := range spec.RequiredFields() {
		if e.Fields[f.Key].Blank() {
			add(f, "is required")
		}
	}

	for _, f := range spec.Fields {
		v, ok := e.Fields[f.Key]
		if !ok || v.IsNull() {
			continue
		}
		switch f.Kind() {
		case KindNumber:
			n, ok := v.AsNumber()
			if !ok {
				add(f, "must be a number")
				continue
			}
			if f.Min != nil && n < *f.Min {
				add(f, "must be at least %s", formatBound(*f.Min))
			}
			if f.Max != nil && n > *f.Max {
				add(f, "must be at most %s", formatBound(*f.Max))
			}
		case KindBool:
			if _, ok := v.AsBool(); !ok {
				add(f, "must be a boolean")
			}
		case KindDate:
			if _, ok := v.AsDate(); !ok {
				add(f, "must be a date")
			}
		}
	}
	return errs
}

func formatBound(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Check validates e and wraps any violations in a *ValidationError.
func Check(spec *DomainSpec, e *Entity) error {
	if errs := Validate(spec, e); len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// Matches reports whether any non-hidden string field of e contains query,
// ignoring case. An empty query matches every entity.
func (e *Entity) Matches(spec *DomainSpec, query string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return true
	}
	for _, f := range spec.Fields {
		if f.Hidden {
			continue
		}
		if s, ok := e.Fields[f.Key].Text(); ok && strings.Contains(strings.ToLower(s), query) {
			return true
		}
	}
	return false
}

// Map returns the wire representation of e: id, archived, createdAt and
// updatedAt (RFC 3339) followed by the field values.
func (e *Entity) Map() map[string]any {
	out := make(map[string]any, len(e.Fields)+4)
	for k, v := range e.Fields {
		out[k] = v.Interface()
	}
	out["id"] = e.ID
	out["archived"] = e.Archived
	out["createdAt"] = e.CreatedAt.UTC().Format(time.RFC3339Nano)
	out["updatedAt"] = e.UpdatedAt.UTC().Format(time.RFC3339Nano)
	return out
}

func (e *Entity) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Map())
}
