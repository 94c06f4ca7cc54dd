package fhir

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/ehr/searchindex/internal/platform/searchparam"
	"github.com/ehr/searchindex/internal/platform/sqlexpr"
	"github.com/ehr/searchindex/internal/platform/tokenindex"
	"github.com/ehr/searchindex/pkg/pagination"
)

// Result control parameters that never name a search parameter. The ones
// without an effect on an id-only searchset are accepted and ignored.
var controlParams = map[string]bool{
	"_count":    true,
	"_offset":   true,
	"_sort":     true,
	"_format":   true,
	"_pretty":   true,
	"_summary":  true,
	"_elements": true,
	"_total":    true,
}

// UnknownResourceTypeError is returned when no search parameter is registered
// for the requested resource type.
type UnknownResourceTypeError struct {
	ResourceType string
}

func (e *UnknownResourceTypeError) Error() string {
	return fmt.Sprintf("unknown resource type %q", e.ResourceType)
}

// SearchQuery is a parsed token search over one resource type. Filters are
// combined with AND; the options inside a filter value are OR'd by the
// compiler.
type SearchQuery struct {
	ResourceType string
	Filters      []tokenindex.Filter
	Sort         []tokenindex.SortRule
	Page         pagination.Params

	// Ignored lists the parameters skipped under lenient handling.
	Ignored []string
}

// Querier runs the compiled search. *pgxpool.Pool and pgx.Tx satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Searcher parses, compiles and runs token searches.
type Searcher struct {
	registry *searchparam.Registry
	compiler *tokenindex.Compiler
	db       Querier
	logger   zerolog.Logger
}

// NewSearcher creates a Searcher. db may be nil when only Parse and Compile
// are used, as by the explain command.
func NewSearcher(registry *searchparam.Registry, compiler *tokenindex.Compiler, db Querier, logger zerolog.Logger) *Searcher {
	return &Searcher{registry: registry, compiler: compiler, db: db, logger: logger}
}

// Parse reads the query values of a search on resourceType. Under strict
// handling any parameter that cannot be searched is rejected. Otherwise
// unknown and non-token parameters are skipped, while token parameters
// without an index are kept and match nothing. Repeated parameters are AND'd.
func (s *Searcher) Parse(resourceType string, values url.Values, handling HandlingPreference) (*SearchQuery, error) {
	if len(s.registry.SearchParameters(resourceType)) == 0 {
		return nil, &UnknownResourceTypeError{ResourceType: resourceType}
	}

	page, err := pagination.FromValues(values)
	if err != nil {
		var pe *pagination.ParamError
		if errors.As(err, &pe) {
			return nil, &tokenindex.InvalidFilterValue{Code: pe.Param, Value: pe.Value, Reason: "must be a non-negative integer"}
		}
		return nil, err
	}
	q := &SearchQuery{ResourceType: resourceType, Page: page}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if controlParams[key] {
			continue
		}
		for _, value := range values[key] {
			f, err := tokenindex.ParseFilter(key, value)
			if err != nil {
				if handling == HandlingStrict {
					return nil, err
				}
				q.Ignored = append(q.Ignored, key)
				continue
			}
			if reason, known := s.unsupported(resourceType, f.Code); reason != "" {
				if handling == HandlingStrict {
					return nil, &tokenindex.InvalidFilterValue{Code: f.Code, Value: value, Reason: reason}
				}
				// A known token parameter without an index still filters:
				// the compiler turns it into a constant that matches nothing.
				if !known {
					q.Ignored = append(q.Ignored, key)
					continue
				}
			}
			q.Filters = append(q.Filters, f)
		}
	}

	for _, rule := range ParseSort(values.Get("_sort")) {
		if reason, _ := s.unsupported(resourceType, rule.Code); reason != "" {
			if handling == HandlingStrict {
				return nil, &tokenindex.InvalidFilterValue{Code: "_sort", Value: rule.Code, Reason: reason}
			}
			q.Ignored = append(q.Ignored, "_sort="+rule.Code)
			continue
		}
		q.Sort = append(q.Sort, rule)
	}

	if len(q.Ignored) > 0 {
		s.logger.Debug().Str("resource_type", resourceType).Strs("ignored", q.Ignored).Msg("search parameters ignored")
	}
	return q, nil
}

// unsupported explains why code cannot be searched on resourceType. known is
// true when code is a token parameter that is only missing its index.
func (s *Searcher) unsupported(resourceType, code string) (reason string, known bool) {
	def, ok := s.registry.SearchParameter(resourceType, code)
	switch {
	case !ok:
		return "unknown search parameter", false
	case def.Type != searchparam.TypeToken:
		return "only token search parameters are supported", false
	case s.registry.Classify(def, resourceType) == searchparam.NotIndexed:
		return "search parameter is not indexed", true
	}
	return "", false
}

// Compile builds the statement selecting the ids of matching resources. One
// row beyond the page is requested so the caller can tell whether a next page
// exists. Ties, and searches without _sort, are ordered by id.
func (s *Searcher) Compile(q *SearchQuery) (*sqlexpr.Select, error) {
	table := tokenindex.ResourceTable(q.ResourceType)
	sel := sqlexpr.NewSelect(table, sqlexpr.Col(table, "id"))

	for _, f := range q.Filters {
		def, _ := s.registry.SearchParameter(q.ResourceType, f.Code)
		cond, err := s.compiler.BuildWhere(f, def, q.ResourceType)
		if err != nil {
			return nil, err
		}
		sel.AndWhere(cond)
	}
	for _, rule := range q.Sort {
		join, order := s.compiler.AddOrderBy(rule, q.ResourceType)
		sel.Join(join).Order(order)
	}
	sel.Order(sqlexpr.OrderBy{Expr: sqlexpr.Col(table, "id")})

	sel.Limit = q.Page.Limit + 1
	sel.Offset = q.Page.Offset
	return sel, nil
}

// SearchResult is one page of matching ids.
type SearchResult struct {
	IDs     []uuid.UUID
	HasMore bool
}

// Search compiles and runs q.
func (s *Searcher) Search(ctx context.Context, q *SearchQuery) (*SearchResult, error) {
	if s.db == nil {
		return nil, fmt.Errorf("search %s: no database connection", q.ResourceType)
	}
	sel, err := s.Compile(q)
	if err != nil {
		return nil, err
	}
	sql, args := sqlexpr.Render(sel)

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", q.ResourceType, err)
	}
	defer rows.Close()

	res := &SearchResult{IDs: []uuid.UUID{}}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s id: %w", q.ResourceType, err)
		}
		res.IDs = append(res.IDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search %s: %w", q.ResourceType, err)
	}

	if len(res.IDs) > q.Page.Limit {
		res.IDs = res.IDs[:q.Page.Limit]
		res.HasMore = true
	}
	return res, nil
}
