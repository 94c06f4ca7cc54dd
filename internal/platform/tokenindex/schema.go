package tokenindex

import (
	"context"
	"fmt"

	"github.com/ehr/searchindex/internal/platform/sqlexpr"
)

// TableDDL returns the statements creating the token table of resourceType
// and its indexes. Rows are not unique: duplicates are removed at extraction.
func TableDDL(resourceType string) []string {
	table := TokenTable(resourceType)
	q := sqlexpr.Postgres.QuoteIdent
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    resource_id UUID NOT NULL,
    code        TEXT NOT NULL,
    system      TEXT,
    value       TEXT
)`, q(table)),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (code, system, value)`, q(table+"_code_system_value_idx"), q(table)),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (resource_id)`, q(table+"_resource_id_idx"), q(table)),
	}
}

// ResourceTableDDL returns the statement creating the resource table searched
// by the compiled queries. The resource store owns its contents; only the
// columns used here are declared.
func ResourceTableDDL(resourceType string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id      UUID PRIMARY KEY,
    content JSONB NOT NULL
)`, sqlexpr.Postgres.QuoteIdent(ResourceTable(resourceType)))
}

// EnsureTables creates the resource and token tables of every resource type
// that does not have them yet.
func EnsureTables(ctx context.Context, db Execer, resourceTypes []string) error {
	for _, rt := range resourceTypes {
		stmts := append([]string{ResourceTableDDL(rt)}, TableDDL(rt)...)
		for _, stmt := range stmts {
			if _, err := db.Exec(ctx, stmt); err != nil {
				return &StoreFailure{Op: "create table", ResourceType: rt, Err: err}
			}
		}
	}
	return nil
}
