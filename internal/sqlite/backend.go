// Package sqlite implements the SQLite persistence layer for ideate.
//
// A Backend owns one database file in the configured data directory. Each
// DomainSpec gets its own Store, backed by a table in a namespace derived
// from the validated domain identifier.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/ideate/internal/logging"
	"github.com/mesh-intelligence/ideate/pkg/types"
)

// DatabaseFile is the name of the database file inside the data directory.
const DatabaseFile = "ideate.db"

// Backend manages the SQLite connection and the per-domain stores.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	stores   map[string]*Store

	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger used for lifecycle and warning messages.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithClock replaces time.Now as the source of entity timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		stores: make(map[string]*Store),
		logger: logging.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach opens (or creates) the database in config.DataDir and bootstraps
// the namespace registry. Existing data is kept.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	// One connection serialises writers; SQLite allows a single writer anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createNamespaces); err != nil {
		db.Close()
		return fmt.Errorf("creating namespace registry: %w", err)
	}

	b.db = db
	b.config = config
	b.attached = true
	b.logger.Debug("backend attached", "path", dbPath)
	return nil
}

// Detach closes the database. After Detach, every store operation returns
// ErrDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	b.attached = false
	b.stores = make(map[string]*Store)
	b.logger.Info("backend detached")
	return nil
}

// Ping verifies that the database is reachable.
func (b *Backend) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return types.ErrDetached
	}
	return b.db.PingContext(ctx)
}

// Store returns the store for spec, creating its table and indexes on
// first use. The domain identifier must be a safe namespace name.
func (b *Backend) Store(ctx context.Context, spec *types.DomainSpec) (*Store, error) {
	table, err := namespaceFor(spec.Domain)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil, types.ErrDetached
	}
	if s, ok := b.stores[spec.Domain]; ok {
		if s.spec != spec {
			return nil, fmt.Errorf("domain %q already opened with a different spec", spec.Domain)
		}
		return s, nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range entityTableDDL(table) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("creating namespace %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, registerNamespace,
		spec.Domain, table, formatTime(b.now())); err != nil {
		return nil, fmt.Errorf("registering namespace %s: %w", table, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing namespace %s: %w", table, err)
	}

	s := &Store{backend: b, spec: spec, table: table}
	b.stores[spec.Domain] = s
	b.logger.Debug("store opened", "domain", spec.Domain, "namespace", table)
	return s, nil
}

// Namespace describes a registered domain table.
type Namespace struct {
	Domain    string    `json:"domain"`
	Table     string    `json:"table"`
	CreatedAt time.Time `json:"createdAt"`
}

// Namespaces lists every domain that has been opened against this database,
// ordered by domain.
func (b *Backend) Namespaces(ctx context.Context) ([]Namespace, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrDetached
	}
	rows, err := b.db.QueryContext(ctx, listNamespaces)
	if err != nil {
		return nil, fmt.Errorf("listing namespaces: %w", err)
	}
	defer rows.Close()

	var out []Namespace
	for rows.Next() {
		var ns Namespace
		var createdAt string
		if err := rows.Scan(&ns.Domain, &ns.Table, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning namespace: %w", err)
		}
		if ns.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing namespace created_at: %w", err)
		}
		out = append(out, ns)
	}
	return out, rows.Err()
}
