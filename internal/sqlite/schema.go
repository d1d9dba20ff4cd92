package sqlite

import (
	"fmt"
	"regexp"
	"time"

	"github.com/mesh-intelligence/ideate/pkg/types"
)

// domainPattern restricts domain identifiers to names that are safe to
// splice into SQL as table identifiers.
var domainPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,47}$`)

// namespacePrefix is prepended to the domain identifier to form the table name.
const namespacePrefix = "entities_"

// timeLayout is fixed width so that lexical order equals time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Registry of opened domains.
const (
	createNamespaces = `CREATE TABLE IF NOT EXISTS namespaces (
    domain TEXT PRIMARY KEY,
    table_name TEXT NOT NULL UNIQUE,
    created_at TEXT NOT NULL
);`

	registerNamespace = `INSERT OR IGNORE INTO namespaces (domain, table_name, created_at) VALUES (?, ?, ?)`

	listNamespaces = `SELECT domain, table_name, created_at FROM namespaces ORDER BY domain`
)

// Per-domain entity table. %[1]s is a validated namespace.
const (
	createEntities = `CREATE TABLE IF NOT EXISTS "%[1]s" (
    id TEXT PRIMARY KEY,
    data TEXT NOT NULL,
    archived INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    version INTEGER NOT NULL DEFAULT 1
);`

	createEntitiesArchivedIndex = `CREATE INDEX IF NOT EXISTS "idx_%[1]s_archived" ON "%[1]s"(archived);`
	createEntitiesCreatedIndex  = `CREATE INDEX IF NOT EXISTS "idx_%[1]s_created" ON "%[1]s"(created_at DESC, id DESC);`
)

// namespaceFor maps a domain identifier to its table name.
// Returns ErrInvalidNamespace when the identifier is not safe.
func namespaceFor(domain string) (string, error) {
	if !domainPattern.MatchString(domain) {
		return "", fmt.Errorf("%w: %q", types.ErrInvalidNamespace, domain)
	}
	return namespacePrefix + domain, nil
}

func entityTableDDL(table string) []string {
	return []string{
		fmt.Sprintf(createEntities, table),
		fmt.Sprintf(createEntitiesArchivedIndex, table),
		fmt.Sprintf(createEntitiesCreatedIndex, table),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
