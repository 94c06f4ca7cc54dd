package sqlexpr

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect isolates the SQL-dialect concerns of rendering.
type Dialect interface {
	// Placeholder returns the text for the n-th (1-based) positional argument.
	Placeholder(n int) string
	// QuoteIdent quotes a table, alias or column name.
	QuoteIdent(name string) string
	// TextMatch renders a text search of column against the placeholder.
	TextMatch(column, placeholder string) string
}

type postgres struct{}

// Postgres renders for PostgreSQL with $n placeholders.
var Postgres Dialect = postgres{}

func (postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (postgres) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (postgres) TextMatch(column, placeholder string) string {
	return fmt.Sprintf("to_tsvector('simple', %s) @@ to_tsquery('simple', %s)", column, placeholder)
}

// Builder accumulates rendered SQL and its positional arguments. Arguments
// are numbered in the order they are written, so fragments compose without
// any index bookkeeping by the caller.
type Builder struct {
	dialect Dialect
	sb      strings.Builder
	args    []any
}

// NewBuilder returns a Builder for the given dialect.
func NewBuilder(d Dialect) *Builder {
	return &Builder{dialect: d}
}

// String returns the SQL rendered so far.
func (b *Builder) String() string { return b.sb.String() }

// Args returns the positional arguments rendered so far.
func (b *Builder) Args() []any { return b.args }

// Render renders a statement with the PostgreSQL dialect.
func Render(stmt Statement) (string, []any) {
	return RenderWith(Postgres, stmt)
}

// RenderWith renders a statement with the given dialect.
func RenderWith(d Dialect, stmt Statement) (string, []any) {
	b := NewBuilder(d)
	stmt.writeStatement(b)
	return b.String(), b.Args()
}

// RenderExpr renders a bare expression with the PostgreSQL dialect. It is
// mainly useful for diagnostics and tests.
func RenderExpr(e Expr) (string, []any) {
	b := NewBuilder(Postgres)
	b.Expr(e)
	return b.String(), b.Args()
}

func (b *Builder) write(s string) { b.sb.WriteString(s) }

func (b *Builder) param(v any) {
	b.args = append(b.args, v)
	b.write(b.dialect.Placeholder(len(b.args)))
}

func (b *Builder) ident(name string) { b.write(b.dialect.QuoteIdent(name)) }

// Expr writes e.
func (b *Builder) Expr(e Expr) {
	switch n := e.(type) {
	case Column:
		if n.Table != "" {
			b.ident(n.Table)
			b.write(".")
		}
		b.ident(n.Name)
	case *Condition:
		b.writeCondition(n)
	case Conjunction:
		b.writeJunction([]Expr(n), " AND ", "TRUE")
	case Disjunction:
		b.writeJunction([]Expr(n), " OR ", "FALSE")
	case *Negation:
		b.write("NOT (")
		b.Expr(n.Expr)
		b.write(")")
	case *FunctionCall:
		b.writeFunction(n)
	case *Subquery:
		b.write("(")
		b.writeSelect(n.Query)
		b.write(")")
	default:
		panic(fmt.Sprintf("sqlexpr: unsupported expression %T", e))
	}
}

func (b *Builder) writeJunction(children []Expr, sep, empty string) {
	switch len(children) {
	case 0:
		b.write(empty)
	case 1:
		b.Expr(children[0])
	default:
		b.write("(")
		for i, c := range children {
			if i > 0 {
				b.write(sep)
			}
			b.Expr(c)
		}
		b.write(")")
	}
}

func (b *Builder) writeCondition(c *Condition) {
	switch c.Op {
	case OpIsNull:
		b.Expr(c.Left)
		b.write(" IS NULL")
	case OpIn:
		b.Expr(c.Left)
		b.write(" IN (")
		for i, v := range inValues(c.Right) {
			if i > 0 {
				b.write(", ")
			}
			b.operand(v)
		}
		b.write(")")
	case OpTextMatch:
		// Left is expected to be a column reference and binds nothing.
		col := NewBuilder(b.dialect)
		col.Expr(c.Left)
		b.args = append(b.args, c.Right)
		b.write(b.dialect.TextMatch(col.String(), b.dialect.Placeholder(len(b.args))))
	case OpArrayContains:
		b.Expr(c.Left)
		b.write(" = ANY(")
		b.operand(c.Right)
		b.write(")")
	default:
		b.Expr(c.Left)
		b.write(" " + string(c.Op) + " ")
		b.operand(c.Right)
	}
}

func (b *Builder) operand(v any) {
	if e, ok := v.(Expr); ok {
		b.Expr(e)
		return
	}
	b.param(v)
}

func inValues(v any) []any {
	switch vals := v.(type) {
	case []any:
		return vals
	case []string:
		out := make([]any, len(vals))
		for i, s := range vals {
			out[i] = s
		}
		return out
	default:
		return []any{v}
	}
}

func (b *Builder) writeFunction(f *FunctionCall) {
	b.write(f.Name)
	if len(f.Args) == 1 {
		if sq, ok := f.Args[0].(*Subquery); ok {
			b.write(" ")
			b.Expr(sq)
			return
		}
	}
	b.write("(")
	for i, a := range f.Args {
		if i > 0 {
			b.write(", ")
		}
		b.operand(a)
	}
	b.write(")")
}

func (b *Builder) writeSelect(s *Select) {
	b.write("SELECT ")
	if len(s.DistinctOn) > 0 {
		b.write("DISTINCT ON (")
		b.exprList(s.DistinctOn)
		b.write(") ")
	}
	if len(s.Columns) == 0 {
		b.write("*")
	} else {
		b.exprList(s.Columns)
	}
	b.write(" FROM ")
	b.ident(s.Table)
	if s.Alias != "" {
		b.write(" AS ")
		b.ident(s.Alias)
	}
	for _, j := range s.Joins {
		b.write(" " + string(j.Type) + " ")
		if j.Query != nil {
			b.write("(")
			b.writeSelect(j.Query)
			b.write(")")
		} else {
			b.ident(j.Table)
		}
		if j.Alias != "" {
			b.write(" AS ")
			b.ident(j.Alias)
		}
		b.write(" ON ")
		b.Expr(j.On)
	}
	if s.Where != nil {
		b.write(" WHERE ")
		b.Expr(s.Where)
	}
	if len(s.OrderBy) > 0 {
		b.write(" ORDER BY ")
		for i, o := range s.OrderBy {
			if i > 0 {
				b.write(", ")
			}
			b.Expr(o.Expr)
			if o.Descending {
				b.write(" DESC")
			} else {
				b.write(" ASC")
			}
			if o.NullsLast {
				b.write(" NULLS LAST")
			}
		}
	}
	if s.Limit > 0 {
		b.write(" LIMIT ")
		b.param(s.Limit)
	}
	if s.Offset > 0 {
		b.write(" OFFSET ")
		b.param(s.Offset)
	}
}

func (b *Builder) exprList(exprs []Expr) {
	for i, e := range exprs {
		if i > 0 {
			b.write(", ")
		}
		b.Expr(e)
	}
}

func (b *Builder) writeInsert(ins *Insert) {
	b.write("INSERT INTO ")
	b.ident(ins.Table)
	b.write(" (")
	for i, c := range ins.Columns {
		if i > 0 {
			b.write(", ")
		}
		b.ident(c)
	}
	b.write(") VALUES ")
	for r, row := range ins.Rows {
		if r > 0 {
			b.write(", ")
		}
		b.write("(")
		for i, v := range row {
			if i > 0 {
				b.write(", ")
			}
			b.param(v)
		}
		b.write(")")
	}
}

func (b *Builder) writeDelete(d *Delete) {
	b.write("DELETE FROM ")
	b.ident(d.Table)
	if d.Where != nil {
		b.write(" WHERE ")
		b.Expr(d.Where)
	}
}
