package tokenindex

import (
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/ehr/searchindex/internal/platform/searchparam"
	"github.com/ehr/searchindex/internal/platform/sqlexpr"
)

// ValueSetResolver supplies the subquery yielding the "system|code" reference
// array of a ValueSet, limited to one matching definition.
type ValueSetResolver interface {
	ReferenceArrayQuery(url string) *sqlexpr.Subquery
}

// Compiler turns token filters and sort rules into sqlexpr trees. It performs
// no I/O and is safe for concurrent use.
type Compiler struct {
	registry        *searchparam.Registry
	valueSets       ValueSetResolver
	logger          zerolog.Logger
	legacyCaseMatch bool
}

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// WithLegacyCaseMatch controls exact matching on case-insensitive
// parameters. When enabled (the default) a value matches both its literal and
// lower-cased form, so rows written before values were lower-cased are still
// found. Disable it once every resource has been reindexed.
func WithLegacyCaseMatch(enabled bool) CompilerOption {
	return func(c *Compiler) { c.legacyCaseMatch = enabled }
}

// NewCompiler creates a Compiler. valueSets may be nil, in which case :in and
// :not-in filters are rejected.
func NewCompiler(registry *searchparam.Registry, valueSets ValueSetResolver, logger zerolog.Logger, opts ...CompilerOption) *Compiler {
	c := &Compiler{
		registry:        registry,
		valueSets:       valueSets,
		logger:          logger,
		legacyCaseMatch: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BuildWhere compiles filter into an EXISTS (or NOT EXISTS) test correlating
// the token table of resourceType with its resource table. A parameter that
// is not token-indexed compiles to constant FALSE, or TRUE when the filter
// tests absence.
func (c *Compiler) BuildWhere(filter Filter, param *searchparam.Definition, resourceType string) (sqlexpr.Expr, error) {
	negate := filter.Operator == NotEquals
	if filter.Operator == Missing || filter.Operator == Present {
		want, err := parseBool(filter)
		if err != nil {
			return nil, err
		}
		// missing=true and present=false both require absence.
		negate = want == (filter.Operator == Missing)
	}

	class := c.registry.Classify(param, resourceType)
	if class == searchparam.NotIndexed {
		if negate {
			return sqlexpr.True(), nil
		}
		return sqlexpr.False(), nil
	}

	tokenTable := TokenTable(resourceType)
	resourceTable := ResourceTable(resourceType)

	var options []sqlexpr.Expr
	if filter.Operator != Missing && filter.Operator != Present {
		for _, opt := range splitOptions(filter.Value) {
			cond, err := c.optionCondition(filter, opt, tokenTable, class)
			if err != nil {
				return nil, err
			}
			options = append(options, cond)
		}
	}

	q := sqlexpr.NewSelect(tokenTable, sqlexpr.Col(tokenTable, "resource_id")).
		AndWhere(sqlexpr.Eq(sqlexpr.Col(tokenTable, "resource_id"), sqlexpr.Col(resourceTable, "id"))).
		AndWhere(sqlexpr.Eq(sqlexpr.Col(tokenTable, "code"), filter.Code))
	if len(options) > 0 {
		q.AndWhere(sqlexpr.Or(options...))
	}

	exists := sqlexpr.Exists(q)
	if negate {
		return sqlexpr.Not(exists), nil
	}
	return exists, nil
}

func (c *Compiler) optionCondition(filter Filter, option, table string, class searchparam.Classification) (sqlexpr.Expr, error) {
	switch filter.Operator {
	case In, NotIn:
		return c.membership(filter, unescape(option), table)
	case Text:
		return c.textMatch(filter, unescape(option), table), nil
	}

	system, value, hasSystem := splitSystem(option)
	if !hasSystem {
		return c.valueCondition(filter, value, table, class), nil
	}

	systemCond := sqlexpr.Expr(sqlexpr.Eq(sqlexpr.Col(table, "system"), system))
	if system == "" {
		systemCond = sqlexpr.IsNull(sqlexpr.Col(table, "system"))
	}
	if value == "" {
		return systemCond, nil
	}
	return sqlexpr.And(systemCond, c.valueCondition(filter, value, table, class)), nil
}

func (c *Compiler) valueCondition(filter Filter, value, table string, class searchparam.Classification) sqlexpr.Expr {
	col := sqlexpr.Col(table, "value")

	if filter.Operator == Contains {
		c.warnExpensive(filter)
		like := func(v string) sqlexpr.Expr {
			return &sqlexpr.Condition{Left: col, Op: sqlexpr.OpLike, Right: escapeLike(v) + "%"}
		}
		if class != searchparam.CaseInsensitive {
			return like(value)
		}
		// Rows written before values were lower-cased keep their original
		// case, so the prefix is matched as given too while those remain.
		lowered := lower(value)
		if !c.legacyCaseMatch || lowered == value {
			return like(lowered)
		}
		return sqlexpr.Or(like(value), like(lowered))
	}

	if class != searchparam.CaseInsensitive {
		return sqlexpr.Eq(col, value)
	}
	lowered := lower(value)
	if !c.legacyCaseMatch || lowered == value {
		return sqlexpr.Eq(col, lowered)
	}
	return sqlexpr.In(col, value, lowered)
}

func (c *Compiler) membership(filter Filter, url, table string) (sqlexpr.Expr, error) {
	if c.valueSets == nil {
		return nil, &InvalidFilterValue{Code: filter.Code, Value: filter.Value, Reason: "value set membership is not available"}
	}
	if url == "" {
		return nil, &InvalidFilterValue{Code: filter.Code, Value: filter.Value, Reason: "value set URL is required"}
	}
	// Text rows hold display strings, never codes, and must not take part in
	// either direction of the membership test. A canonical without a stored
	// expansion behaves as an empty set.
	notText := &sqlexpr.Condition{Left: sqlexpr.Col(table, "system"), Op: sqlexpr.OpNotEquals, Right: TextSystem}
	var cond sqlexpr.Expr = &sqlexpr.Condition{
		Left: sqlexpr.Concat(sqlexpr.Col(table, "system"), "|", sqlexpr.Col(table, "value")),
		Op:   sqlexpr.OpArrayContains,
		Right: &sqlexpr.FunctionCall{
			Name: "COALESCE",
			Args: []any{c.valueSets.ReferenceArrayQuery(url), []string{}},
		},
	}
	if filter.Operator == NotIn {
		cond = sqlexpr.Not(cond)
	}
	return sqlexpr.And(notText, cond), nil
}

func (c *Compiler) textMatch(filter Filter, text, table string) sqlexpr.Expr {
	c.warnExpensive(filter)
	query := textQuery(text)
	if query == "" {
		return sqlexpr.False()
	}
	return sqlexpr.And(
		sqlexpr.Eq(sqlexpr.Col(table, "system"), TextSystem),
		&sqlexpr.Condition{Left: sqlexpr.Col(table, "value"), Op: sqlexpr.OpTextMatch, Right: query},
	)
}

func (c *Compiler) warnExpensive(filter Filter) {
	c.logger.Warn().
		Str("code", filter.Code).
		Str("value", filter.Value).
		Str("operator", string(filter.Operator)).
		Msg("expensive token query")
}

// textQuery builds a prefix tsquery from the words of text, e.g.
// "Blood press" becomes "blood:* & press:*". Only letters and digits survive,
// so the result cannot carry tsquery syntax.
func textQuery(text string) string {
	words := strings.FieldsFunc(lower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, w := range words {
		words[i] = w + ":*"
	}
	return strings.Join(words, " & ")
}

func parseBool(filter Filter) (bool, error) {
	v := unescape(filter.Value)
	switch {
	case strings.EqualFold(v, "true"):
		return true, nil
	case strings.EqualFold(v, "false"):
		return false, nil
	}
	reason := "expected true or false"
	if len(splitOptions(filter.Value)) > 1 {
		reason = "multiple values are not allowed"
	}
	return false, &InvalidFilterValue{Code: filter.Code, Value: filter.Value, Reason: reason}
}
