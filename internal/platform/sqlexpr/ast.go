// Package sqlexpr is a small, backend-agnostic algebra of query nodes shared by
// every search indexer. Trees are built per compile call, rendered once into a
// statement plus positional arguments, and discarded.
package sqlexpr

// Expr is a node of a query expression tree. The set of implementations is
// closed: Column, *Condition, Conjunction, Disjunction, *Negation,
// *FunctionCall and *Subquery.
type Expr interface {
	exprNode()
}

// Operator is a binary (or unary postfix) condition operator.
type Operator string

const (
	OpEquals    Operator = "="
	OpNotEquals Operator = "!="
	OpGreater   Operator = ">"
	OpLike      Operator = "LIKE"
	OpIn        Operator = "IN"
	OpIsNull    Operator = "IS NULL"
	OpConcat    Operator = "||"

	// OpTextMatch is a stemmed prefix text search. Right holds a prepared
	// query string whose syntax belongs to the dialect.
	OpTextMatch Operator = "TEXT MATCH"

	// OpArrayContains tests Left against an array produced by Right, which
	// must be a *Subquery returning a single array value.
	OpArrayContains Operator = "= ANY"
)

// Column references a column, optionally qualified by a table or alias.
type Column struct {
	Table string
	Name  string
}

// Condition compares Left with Right. Right is either an Expr, a slice of
// values (for OpIn), or a plain value bound as a parameter. OpIsNull ignores
// Right.
type Condition struct {
	Left  Expr
	Op    Operator
	Right any
}

// Conjunction is the logical AND of its children. An empty conjunction is TRUE.
type Conjunction []Expr

// Disjunction is the logical OR of its children. An empty disjunction is FALSE.
type Disjunction []Expr

// Negation is the logical NOT of its child.
type Negation struct {
	Expr Expr
}

// FunctionCall invokes a SQL function. Args that implement Expr are rendered
// in place; anything else is bound as a parameter.
type FunctionCall struct {
	Name string
	Args []any
}

// Subquery embeds a SELECT inside an expression.
type Subquery struct {
	Query *Select
}

func (Column) exprNode()        {}
func (*Condition) exprNode()    {}
func (Conjunction) exprNode()   {}
func (Disjunction) exprNode()   {}
func (*Negation) exprNode()     {}
func (*FunctionCall) exprNode() {}
func (*Subquery) exprNode()     {}

// Col is shorthand for a qualified column reference.
func Col(table, name string) Column {
	return Column{Table: table, Name: name}
}

// Eq builds left = value.
func Eq(left Expr, value any) *Condition {
	return &Condition{Left: left, Op: OpEquals, Right: value}
}

// IsNull builds left IS NULL.
func IsNull(left Expr) *Condition {
	return &Condition{Left: left, Op: OpIsNull}
}

// In builds left IN (values...).
func In(left Expr, values ...any) *Condition {
	return &Condition{Left: left, Op: OpIn, Right: values}
}

// Concat builds first || rest[0] || rest[1] ... Plain values in rest are
// bound as parameters, which PostgreSQL types as text from the operator.
func Concat(first Expr, rest ...any) Expr {
	e := first
	for _, p := range rest {
		e = &Condition{Left: e, Op: OpConcat, Right: p}
	}
	return e
}

// And combines expressions with AND, dropping nils and flattening nested
// conjunctions. A single remaining child is returned unwrapped.
func And(exprs ...Expr) Expr {
	var out Conjunction
	for _, e := range exprs {
		switch v := e.(type) {
		case nil:
		case Conjunction:
			out = append(out, v...)
		default:
			out = append(out, v)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

// Or combines expressions with OR, dropping nils and flattening nested
// disjunctions. A single remaining child is returned unwrapped.
func Or(exprs ...Expr) Expr {
	var out Disjunction
	for _, e := range exprs {
		switch v := e.(type) {
		case nil:
		case Disjunction:
			out = append(out, v...)
		default:
			out = append(out, v)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

// Not negates e, collapsing a double negation.
func Not(e Expr) Expr {
	if n, ok := e.(*Negation); ok {
		return n.Expr
	}
	return &Negation{Expr: e}
}

// Exists builds EXISTS (query).
func Exists(q *Select) *FunctionCall {
	return &FunctionCall{Name: "EXISTS", Args: []any{&Subquery{Query: q}}}
}

// True and False are the degenerate constant expressions.
func True() Expr  { return Conjunction{} }
func False() Expr { return Disjunction{} }
