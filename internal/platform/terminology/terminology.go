// Package terminology stores ValueSet expansions and answers the membership
// subqueries used by the :in and :not-in token modifiers.
package terminology

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/ehr/searchindex/internal/platform/db"
	"github.com/ehr/searchindex/internal/platform/sqlexpr"
)

// ExpansionTable holds one row per ValueSet canonical URL with the
// "system|code" references of its expansion.
const ExpansionTable = "value_set_expansion"

// ErrNotFound is returned when no expansion is stored for a URL.
var ErrNotFound = errors.New("value set expansion not found")

// Coding is one member of an expansion.
type Coding struct {
	System string
	Code   string
}

// Reference returns the "system|code" form stored in the expansion.
func (c Coding) Reference() string {
	return c.System + "|" + c.Code
}

// Resolver builds membership subqueries against the expansion table. It does
// no I/O: the subquery runs as part of the search statement.
type Resolver struct{}

// NewResolver creates a Resolver.
func NewResolver() *Resolver { return &Resolver{} }

// ReferenceArrayQuery returns a subquery yielding the reference array of the
// first expansion stored for url.
func (r *Resolver) ReferenceArrayQuery(url string) *sqlexpr.Subquery {
	q := sqlexpr.NewSelect(ExpansionTable, sqlexpr.Col(ExpansionTable, "reference"))
	q.Where = sqlexpr.Eq(sqlexpr.Col(ExpansionTable, "url"), url)
	q.Limit = 1
	return &sqlexpr.Subquery{Query: q}
}

// ExpansionWriter stores and reads expansions.
type ExpansionWriter struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewExpansionWriter creates an ExpansionWriter.
func NewExpansionWriter(pool *pgxpool.Pool, logger zerolog.Logger) *ExpansionWriter {
	return &ExpansionWriter{pool: pool, logger: logger}
}

// Save stores the expansion of url, replacing a previous one.
func (r *ExpansionWriter) Save(ctx context.Context, url string, codings []Coding) error {
	if url == "" {
		return fmt.Errorf("save expansion: url is required")
	}
	refs := make([]string, 0, len(codings))
	seen := make(map[string]bool, len(codings))
	for _, c := range codings {
		ref := c.Reference()
		if c.Code == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}

	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO value_set_expansion (url, reference, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (url) DO UPDATE SET reference = EXCLUDED.reference, updated_at = NOW()`,
		url, refs)
	if err != nil {
		return fmt.Errorf("save expansion %s: %w", url, err)
	}
	r.logger.Info().Str("url", url).Int("codes", len(refs)).Msg("value set expansion saved")
	return nil
}

// Get returns the stored references of url.
func (r *ExpansionWriter) Get(ctx context.Context, url string) ([]string, error) {
	var refs []string
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT reference FROM value_set_expansion WHERE url = $1`, url).Scan(&refs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get expansion %s: %w", url, err)
	}
	return refs, nil
}

// Delete removes the expansion of url.
func (r *ExpansionWriter) Delete(ctx context.Context, url string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM value_set_expansion WHERE url = $1`, url)
	if err != nil {
		return fmt.Errorf("delete expansion %s: %w", url, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ExpansionFromValueSet collects the codings of a ValueSet resource: the
// expansion.contains tree if present, otherwise the concepts enumerated in
// compose.include. Filters and imported value sets are not evaluated.
func ExpansionFromValueSet(vs map[string]any) (url string, codings []Coding, err error) {
	if rt, _ := vs["resourceType"].(string); rt != "ValueSet" {
		return "", nil, fmt.Errorf("expected a ValueSet resource, got %q", rt)
	}
	url, _ = vs["url"].(string)
	if url == "" {
		return "", nil, fmt.Errorf("ValueSet has no url")
	}

	if exp, ok := vs["expansion"].(map[string]any); ok {
		codings = collectContains(exp["contains"], "", codings)
		return url, codings, nil
	}

	compose, _ := vs["compose"].(map[string]any)
	includes, _ := compose["include"].([]any)
	for _, inc := range includes {
		im, _ := inc.(map[string]any)
		system, _ := im["system"].(string)
		concepts, _ := im["concept"].([]any)
		for _, c := range concepts {
			cm, _ := c.(map[string]any)
			if code, _ := cm["code"].(string); code != "" {
				codings = append(codings, Coding{System: system, Code: code})
			}
		}
	}
	return url, codings, nil
}

func collectContains(v any, parentSystem string, out []Coding) []Coding {
	items, _ := v.([]any)
	for _, item := range items {
		m, _ := item.(map[string]any)
		if m == nil {
			continue
		}
		system, _ := m["system"].(string)
		if system == "" {
			system = parentSystem
		}
		abstract, _ := m["abstract"].(bool)
		if code, _ := m["code"].(string); code != "" && !abstract {
			out = append(out, Coding{System: system, Code: code})
		}
		out = collectContains(m["contains"], system, out)
	}
	return out
}
