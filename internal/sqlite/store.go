package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/mesh-intelligence/ideate/pkg/types"
)

// builder renders squirrel statements with SQLite's ? placeholders.
var builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

var entityColumns = []string{"id", "data", "archived", "created_at", "updated_at", "version"}

// Store persists the entities of one domain.
type Store struct {
	backend *Backend
	spec    *types.DomainSpec
	table   string
}

// Spec returns the domain configuration the store was opened with.
func (s *Store) Spec() *types.DomainSpec { return s.spec }

// Namespace returns the table that holds the domain's entities.
func (s *Store) Namespace() string { return s.table }

// Create builds an entity from fields, validates it and persists it.
// Returns a *types.ValidationError, and writes nothing, when the entity
// violates the domain rules.
func (s *Store) Create(ctx context.Context, fields map[string]types.Value) (*types.Entity, error) {
	return s.Insert(ctx, types.EntityInput{Fields: fields})
}

// Insert persists an entity built from in. Unset identity and timestamps
// are generated; an existing ID is rejected by the primary key.
func (s *Store) Insert(ctx context.Context, in types.EntityInput) (*types.Entity, error) {
	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()
	if !s.backend.attached {
		return nil, types.ErrDetached
	}

	if in.CreatedAt.IsZero() {
		in.CreatedAt = s.backend.now()
	}
	e := types.NewEntity(s.spec, in)
	if err := types.Check(s.spec, e); err != nil {
		return nil, err
	}

	data, err := encodeFields(e.Fields)
	if err != nil {
		return nil, err
	}
	query, args, err := builder.Insert(s.table).
		Columns(entityColumns...).
		Values(e.ID, data, boolToInt(e.Archived), formatTime(e.CreatedAt), formatTime(e.UpdatedAt), e.Version).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building insert: %w", err)
	}

	tx, err := s.backend.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("inserting entity %s: %w", e.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing entity %s: %w", e.ID, err)
	}
	return e, nil
}

// Get retrieves an entity by ID.
// Returns ErrInvalidID if id is empty, ErrNotFound if not found.
func (s *Store) Get(ctx context.Context, id string) (*types.Entity, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()
	if !s.backend.attached {
		return nil, types.ErrDetached
	}

	query, args, err := builder.Select(entityColumns...).
		From(s.table).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}
	e, err := s.hydrate(s.backend.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting entity %s: %w", id, err)
	}
	return e, nil
}

// GetAll lists entities newest first. Archived entities are excluded unless
// includeArchived is set; archivedOnly returns only archived entities and
// takes precedence.
func (s *Store) GetAll(ctx context.Context, includeArchived, archivedOnly bool) ([]*types.Entity, error) {
	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()
	if !s.backend.attached {
		return nil, types.ErrDetached
	}

	sel := builder.Select(entityColumns...).
		From(s.table).
		OrderBy("created_at DESC", "id DESC")
	switch {
	case archivedOnly:
		sel = sel.Where(sq.Eq{"archived": 1})
	case !includeArchived:
		sel = sel.Where(sq.Eq{"archived": 0})
	}
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}

	rows, err := s.backend.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.table, err)
	}
	defer rows.Close()

	entities := []*types.Entity{}
	for rows.Next() {
		e, err := s.hydrate(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", s.table, err)
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// Update applies u to the stored entity, validates the result and writes it
// back, all in one transaction. Returns ErrNotFound when the entity does
// not exist, a *types.ValidationError when the result is invalid and
// ErrConcurrentModification when u.ExpectedVersion is set and stale. On
// error the stored entity is unchanged.
func (s *Store) Update(ctx context.Context, id string, u types.Update) (*types.Entity, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()
	if !s.backend.attached {
		return nil, types.ErrDetached
	}

	tx, err := s.backend.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query, args, err := builder.Select(entityColumns...).
		From(s.table).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}
	e, err := s.hydrate(tx.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting entity %s: %w", id, err)
	}
	if u.ExpectedVersion > 0 && u.ExpectedVersion != e.Version {
		return nil, types.ErrConcurrentModification
	}

	prev := e.Version
	e.ApplyUpdate(s.spec, u, s.backend.now())
	if err := types.Check(s.spec, e); err != nil {
		return nil, err
	}
	e.Version = prev + 1

	data, err := encodeFields(e.Fields)
	if err != nil {
		return nil, err
	}
	query, args, err = builder.Update(s.table).
		Set("data", data).
		Set("archived", boolToInt(e.Archived)).
		Set("updated_at", formatTime(e.UpdatedAt)).
		Set("version", e.Version).
		Where(sq.Eq{"id": id, "version": prev}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building update: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("updating entity %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("checking update of %s: %w", id, err)
	} else if n == 0 {
		return nil, types.ErrConcurrentModification
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing entity %s: %w", id, err)
	}
	return e, nil
}

// Delete removes an entity permanently. It reports whether a row existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, types.ErrInvalidID
	}
	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()
	if !s.backend.attached {
		return false, types.ErrDetached
	}

	query, args, err := builder.Delete(s.table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return false, fmt.Errorf("building delete: %w", err)
	}

	tx, err := s.backend.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("deleting entity %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking delete of %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing delete of %s: %w", id, err)
	}
	return n > 0, nil
}

// Count returns the number of entities, excluding archived ones unless
// includeArchived is set.
func (s *Store) Count(ctx context.Context, includeArchived bool) (int, error) {
	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()
	if !s.backend.attached {
		return 0, types.ErrDetached
	}

	sel := builder.Select("COUNT(*)").From(s.table)
	if !includeArchived {
		sel = sel.Where(sq.Eq{"archived": 0})
	}
	query, args, err := sel.ToSql()
	if err != nil {
		return 0, fmt.Errorf("building count: %w", err)
	}
	var n int
	if err := s.backend.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", s.table, err)
	}
	return n, nil
}

// IsEmpty reports whether the store holds no entities at all, archived
// ones included.
func (s *Store) IsEmpty(ctx context.Context) (bool, error) {
	n, err := s.Count(ctx, true)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// hydrate converts a row into an entity. Stored data that no longer fits
// the domain is tolerated: unknown keys are dropped and undecodable values
// are skipped with a warning.
func (s *Store) hydrate(row scanner) (*types.Entity, error) {
	var (
		e                    types.Entity
		data                 string
		archived             int
		createdAt, updatedAt string
	)
	if err := row.Scan(&e.ID, &data, &archived, &createdAt, &updatedAt, &e.Version); err != nil {
		return nil, err
	}
	e.Archived = archived != 0

	var err error
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	raw := map[string]any{}
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		s.backend.logger.Warn("stored data is not a JSON object", "namespace", s.table, "id", e.ID, "error", err)
		raw = map[string]any{}
	}
	e.Fields = make(map[string]types.Value, len(s.spec.Fields))
	for _, f := range s.spec.Fields {
		r, ok := raw[f.Key]
		if !ok {
			continue
		}
		v, err := types.FromAny(r)
		if err != nil {
			s.backend.logger.Warn("skipping stored value", "namespace", s.table, "id", e.ID, "field", f.Key, "error", err)
			continue
		}
		if v.IsNull() {
			continue
		}
		e.Fields[f.Key] = types.Coerce(f.Kind(), v)
	}
	return &e, nil
}

func encodeFields(fields map[string]types.Value) (string, error) {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v.Interface()
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encoding entity data: %w", err)
	}
	return string(b), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
