package tokenindex

import "github.com/ehr/searchindex/internal/platform/sqlexpr"

// AddOrderBy compiles a sort rule into a LEFT JOIN against the token table,
// collapsed to one row per resource (its lowest value for the code), and the
// ORDER BY term over the joined value. Resources without a token for the code
// sort last in both directions. The join alias is derived from the code, so a
// query must not sort twice on the same code.
func (c *Compiler) AddOrderBy(rule SortRule, resourceType string) (sqlexpr.Join, sqlexpr.OrderBy) {
	tokenTable := TokenTable(resourceType)
	alias := "sort_" + rule.Code

	sub := &sqlexpr.Select{
		Table:      tokenTable,
		Columns:    []sqlexpr.Expr{sqlexpr.Col(tokenTable, "resource_id"), sqlexpr.Col(tokenTable, "value")},
		DistinctOn: []sqlexpr.Expr{sqlexpr.Col(tokenTable, "resource_id")},
		Where:      sqlexpr.Eq(sqlexpr.Col(tokenTable, "code"), rule.Code),
		OrderBy: []sqlexpr.OrderBy{
			{Expr: sqlexpr.Col(tokenTable, "resource_id")},
			{Expr: sqlexpr.Col(tokenTable, "value")},
		},
	}

	join := sqlexpr.Join{
		Type:  sqlexpr.LeftJoin,
		Query: sub,
		Alias: alias,
		On:    sqlexpr.Eq(sqlexpr.Col(alias, "resource_id"), sqlexpr.Col(ResourceTable(resourceType), "id")),
	}
	order := sqlexpr.OrderBy{
		Expr:       sqlexpr.Col(alias, "value"),
		Descending: rule.Descending,
		NullsLast:  rule.Descending,
	}
	return join, order
}
