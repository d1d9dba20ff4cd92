package sqlite

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mesh-intelligence/ideate/pkg/types"
)

// readJSONL reads a JSONL file and returns each non-blank line as a
// json.RawMessage. Lines are not validated; callers decode and count them.
func readJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// writeJSONL atomically writes records to a JSONL file using the temp-file,
// fsync, rename pattern.
func writeJSONL(path string, records []json.RawMessage) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(format string, err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf(format, err)
	}

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			return fail("writing record: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fail("writing newline: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fail("flushing buffer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Export writes every entity of the store, archived ones included, to path
// as one JSON object per line. It returns the number of records written.
func (s *Store) Export(ctx context.Context, path string) (int, error) {
	entities, err := s.GetAll(ctx, true, false)
	if err != nil {
		return 0, err
	}
	records := make([]json.RawMessage, 0, len(entities))
	for _, e := range entities {
		b, err := json.Marshal(e)
		if err != nil {
			return 0, fmt.Errorf("encoding entity %s: %w", e.ID, err)
		}
		records = append(records, b)
	}
	if err := writeJSONL(path, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// ImportResult summarises an Import run.
type ImportResult struct {
	Imported int
	Skipped  int
}

// Import reads entities from a JSONL file written by Export. Records keep
// their ids and timestamps. Records whose id already exists, or that fail
// validation, are skipped with a warning.
func (s *Store) Import(ctx context.Context, path string) (ImportResult, error) {
	var res ImportResult
	records, err := readJSONL(path)
	if err != nil {
		return res, err
	}
	for i, rec := range records {
		in, err := s.decodeRecord(rec)
		if err != nil {
			s.backend.logger.Warn("skipping import record", "line", i+1, "error", err)
			res.Skipped++
			continue
		}
		if in.ID != "" {
			_, err := s.Get(ctx, in.ID)
			if err == nil {
				s.backend.logger.Warn("skipping existing entity", "id", in.ID)
				res.Skipped++
				continue
			}
			if !errors.Is(err, types.ErrNotFound) {
				return res, err
			}
		}
		if _, err := s.Insert(ctx, in); err != nil {
			if _, ok := types.AsValidationError(err); ok {
				s.backend.logger.Warn("skipping invalid entity", "id", in.ID, "error", err)
				res.Skipped++
				continue
			}
			return res, err
		}
		res.Imported++
	}
	return res, nil
}

func (s *Store) decodeRecord(rec json.RawMessage) (types.EntityInput, error) {
	var raw map[string]any
	if err := json.Unmarshal(rec, &raw); err != nil {
		return types.EntityInput{}, fmt.Errorf("decoding record: %w", err)
	}
	var in types.EntityInput
	if id, ok := raw["id"].(string); ok {
		in.ID = id
	}
	if archived, ok := raw["archived"].(bool); ok {
		in.Archived = archived
	}
	for key, dst := range map[string]*time.Time{"createdAt": &in.CreatedAt, "updatedAt": &in.UpdatedAt} {
		str, ok := raw[key].(string)
		if !ok {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, str)
		if err != nil {
			return types.EntityInput{}, fmt.Errorf("parsing %s: %w", key, err)
		}
		*dst = t
	}
	fields, err := types.DecodeFields(s.spec, raw)
	if err != nil {
		return types.EntityInput{}, err
	}
	in.Fields = fields
	return in, nil
}
