package tokenindex

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/ehr/searchindex/internal/platform/searchparam"
	"github.com/ehr/searchindex/internal/platform/sqlexpr"
)

// maxRowsPerInsert keeps a single INSERT well below PostgreSQL's limit of
// 65535 bind parameters (four per row).
const maxRowsPerInsert = 1000

var tokenColumns = []string{"resource_id", "code", "system", "value"}

// Execer executes a statement. pgx.Tx, *pgx.Conn and *pgxpool.Pool satisfy it.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Store writes token rows. It never opens transactions: every write runs on
// the Execer supplied by the caller so that token rows commit or roll back
// together with the resource body.
type Store struct {
	registry  *searchparam.Registry
	extractor *Extractor
	logger    zerolog.Logger
}

// NewStore creates a Store.
func NewStore(registry *searchparam.Registry, extractor *Extractor, logger zerolog.Logger) *Store {
	return &Store{registry: registry, extractor: extractor, logger: logger}
}

// IsIndexed reports whether param is stored in the token table of
// resourceType.
func (s *Store) IsIndexed(param *searchparam.Definition, resourceType string) bool {
	return s.registry.Classify(param, resourceType) != searchparam.NotIndexed
}

// Tokens returns the tokens IndexResource would write for resource.
func (s *Store) Tokens(resourceType string, resource map[string]any) []Token {
	return s.extractor.Extract(resource, s.registry.TokenParameters(resourceType))
}

// IndexResource replaces the token rows of a resource. When isCreate is false
// the existing rows are deleted first.
func (s *Store) IndexResource(ctx context.Context, tx Execer, resourceID uuid.UUID, resourceType string, resource map[string]any, isCreate bool) error {
	if !isCreate {
		if err := s.DeleteResource(ctx, tx, resourceID, resourceType); err != nil {
			return err
		}
	}

	tokens := s.Tokens(resourceType, resource)
	table := TokenTable(resourceType)
	for start := 0; start < len(tokens); start += maxRowsPerInsert {
		end := min(start+maxRowsPerInsert, len(tokens))
		ins := &sqlexpr.Insert{Table: table, Columns: tokenColumns}
		for _, t := range tokens[start:end] {
			ins.Rows = append(ins.Rows, []any{resourceID, t.Code, t.System, t.Value})
		}
		sql, args := sqlexpr.Render(ins)
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return &StoreFailure{Op: "insert", ResourceType: resourceType, Err: err}
		}
	}

	s.logger.Debug().
		Str("resource_type", resourceType).
		Str("resource_id", resourceID.String()).
		Int("tokens", len(tokens)).
		Bool("create", isCreate).
		Msg("resource tokens indexed")
	return nil
}

// DeleteResource removes every token row of a resource.
func (s *Store) DeleteResource(ctx context.Context, tx Execer, resourceID uuid.UUID, resourceType string) error {
	sql, args := sqlexpr.Render(&sqlexpr.Delete{
		Table: TokenTable(resourceType),
		Where: sqlexpr.Eq(sqlexpr.Col("", "resource_id"), resourceID),
	})
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return &StoreFailure{Op: "delete", ResourceType: resourceType, Err: err}
	}
	return nil
}
