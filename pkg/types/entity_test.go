package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntity(t *testing.T) {
	spec := tasksSpec(t)

	t.Run("generates id and timestamps", func(t *testing.T) {
		before := time.Now().UTC()
		e := NewEntity(spec, EntityInput{Fields: map[string]Value{"title": String("A")}})

		parsed, err := uuid.Parse(e.ID)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), parsed.Version())
		assert.False(t, e.Archived)
		assert.False(t, e.CreatedAt.Before(before))
		assert.Equal(t, e.CreatedAt, e.UpdatedAt)
		assert.Equal(t, int64(1), e.Version)
	})

	t.Run("applies defaults and leaves other fields absent", func(t *testing.T) {
		e := NewEntity(spec, EntityInput{Fields: map[string]Value{"title": String("A")}})
		assert.True(t, Number(3).Equal(e.Fields["priority"]))
		assert.NotContains(t, e.Fields, "done")
		assert.NotContains(t, e.Fields, "due")
	})

	t.Run("supplied value wins over default and null means absent", func(t *testing.T) {
		e := NewEntity(spec, EntityInput{Fields: map[string]Value{
			"priority": Number(5),
			"done":     Null(),
		}})
		assert.True(t, Number(5).Equal(e.Fields["priority"]))
		assert.NotContains(t, e.Fields, "done")
	})

	t.Run("ignores undeclared keys", func(t *testing.T) {
		e := NewEntity(spec, EntityInput{Fields: map[string]Value{"color": String("red")}})
		assert.NotContains(t, e.Fields, "color")
	})

	t.Run("keeps supplied identity", func(t *testing.T) {
		created := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
		e := NewEntity(spec, EntityInput{ID: "fixed", Archived: true, CreatedAt: created, Version: 4})
		assert.Equal(t, "fixed", e.ID)
		assert.True(t, e.Archived)
		assert.Equal(t, created, e.CreatedAt)
		assert.Equal(t, created, e.UpdatedAt)
		assert.Equal(t, int64(4), e.Version)
	})
}

func TestApplyUpdate(t *testing.T) {
	spec := tasksSpec(t)
	created := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	fresh := func() *Entity {
		return NewEntity(spec, EntityInput{
			CreatedAt: created,
			Fields:    map[string]Value{"title": String("A"), "done": Bool(false)},
		})
	}

	t.Run("empty update only advances updatedAt", func(t *testing.T) {
		e := fresh()
		now := created.Add(time.Minute)
		e.ApplyUpdate(spec, Update{}, now)
		assert.True(t, String("A").Equal(e.Fields["title"]))
		assert.True(t, Bool(false).Equal(e.Fields["done"]))
		assert.False(t, e.Archived)
		assert.Equal(t, now, e.UpdatedAt)
		assert.Equal(t, created, e.CreatedAt)
	})

	t.Run("null values never clear a field", func(t *testing.T) {
		e := fresh()
		e.ApplyUpdate(spec, Update{Fields: map[string]Value{"title": Null(), "priority": Number(1)}}, created)
		assert.True(t, String("A").Equal(e.Fields["title"]))
		assert.True(t, Number(1).Equal(e.Fields["priority"]))
	})

	t.Run("archived flag set independently", func(t *testing.T) {
		e := fresh()
		archived := true
		e.ApplyUpdate(spec, Update{Archived: &archived}, created)
		assert.True(t, e.Archived)
		assert.True(t, String("A").Equal(e.Fields["title"]))
	})

	t.Run("updatedAt never moves backwards", func(t *testing.T) {
		e := fresh()
		e.ApplyUpdate(spec, Update{}, created.Add(-time.Hour))
		assert.Equal(t, created, e.UpdatedAt)
	})
}

func TestValidate(t *testing.T) {
	spec := tasksSpec(t)
	entity := func(fields map[string]Value) *Entity {
		return &Entity{ID: "x", Fields: fields}
	}

	tests := []struct {
		name   string
		fields map[string]Value
		want   []string
	}{
		{
			name:   "valid",
			fields: map[string]Value{"title": String("A"), "priority": Number(3)},
		},
		{
			name:   "missing required",
			fields: map[string]Value{"priority": Number(3)},
			want:   []string{"Field 'Title' is required"},
		},
		{
			name:   "whitespace required",
			fields: map[string]Value{"title": String("  \t")},
			want:   []string{"Field 'Title' is required"},
		},
		{
			name:   "lower bound inclusive",
			fields: map[string]Value{"title": String("A"), "priority": Number(1)},
		},
		{
			name:   "upper bound inclusive",
			fields: map[string]Value{"title": String("A"), "priority": Number(5)},
		},
		{
			name:   "below min",
			fields: map[string]Value{"title": String("A"), "priority": Number(0)},
			want:   []string{"Field 'Priority' must be at least 1"},
		},
		{
			name:   "above max",
			fields: map[string]Value{"title": String("A"), "priority": Number(6)},
			want:   []string{"Field 'Priority' must be at most 5"},
		},
		{
			name:   "numeric string accepted",
			fields: map[string]Value{"title": String("A"), "priority": String("2")},
		},
		{
			name:   "not a number",
			fields: map[string]Value{"title": String("A"), "priority": String("high")},
			want:   []string{"Field 'Priority' must be a number"},
		},
		{
			name: "errors accumulate",
			fields: map[string]Value{
				"priority": Number(9),
				"done":     String("maybe"),
				"due":      String("soon"),
			},
			want: []string{
				"Field 'Title' is required",
				"Field 'Priority' must be at most 5",
				"Field 'Done' must be a boolean",
				"Field 'Due' must be a date",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := entity(tt.fields)
			errs := Validate(spec, e)
			var got []string
			for _, fe := range errs {
				got = append(got, fe.Message)
			}
			assert.Equal(t, tt.want, got)
			assert.Len(t, e.Fields, len(tt.fields), "validate must not mutate")
		})
	}
}

func TestCheck(t *testing.T) {
	spec := tasksSpec(t)
	err := Check(spec, &Entity{Fields: map[string]Value{"priority": Number(3)}})
	ve, ok := AsValidationError(err)
	require.True(t, ok)
	assert.True(t, ve.HasField("title"))
	assert.EqualError(t, err, "validation failed: Field 'Title' is required")

	assert.NoError(t, Check(spec, &Entity{Fields: map[string]Value{"title": String("A")}}))
}

func TestMatches(t *testing.T) {
	spec := tasksSpec(t)
	e := &Entity{Fields: map[string]Value{
		"title":  String("Quarterly Report"),
		"secret": String("hunter2"),
	}}
	assert.True(t, e.Matches(spec, ""))
	assert.True(t, e.Matches(spec, "report"))
	assert.False(t, e.Matches(spec, "hunter"), "hidden fields are not searched")
	assert.False(t, e.Matches(spec, "invoice"))
}

func TestEntityJSON(t *testing.T) {
	spec := tasksSpec(t)
	created := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	e := NewEntity(spec, EntityInput{
		ID:        "abc",
		CreatedAt: created,
		Fields:    map[string]Value{"title": String("A"), "priority": Number(2)},
	})

	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "abc",
		"archived": false,
		"createdAt": "2024-03-04T05:06:07Z",
		"updatedAt": "2024-03-04T05:06:07Z",
		"title": "A",
		"priority": 2
	}`, string(data))
}
