package sqlexpr

// Statement is a renderable top-level SQL statement.
type Statement interface {
	writeStatement(b *Builder)
}

// JoinType selects the join flavour.
type JoinType string

const (
	InnerJoin JoinType = "INNER JOIN"
	LeftJoin  JoinType = "LEFT JOIN"
)

// Join joins either a table or a subquery under Alias.
type Join struct {
	Type  JoinType
	Table string
	Query *Select
	Alias string
	On    Expr
}

// OrderBy is a single ORDER BY term.
type OrderBy struct {
	Expr       Expr
	Descending bool
	NullsLast  bool
}

// Select is a SELECT statement. Zero Limit means no LIMIT; zero Offset means
// no OFFSET.
type Select struct {
	Table      string
	Alias      string
	Columns    []Expr
	DistinctOn []Expr
	Joins      []Join
	Where      Expr
	OrderBy    []OrderBy
	Limit      int
	Offset     int
}

// NewSelect starts a SELECT over table.
func NewSelect(table string, columns ...Expr) *Select {
	return &Select{Table: table, Columns: columns}
}

// AndWhere adds e to the WHERE clause with AND.
func (s *Select) AndWhere(e Expr) *Select {
	s.Where = And(s.Where, e)
	return s
}

// Join appends a join.
func (s *Select) Join(j Join) *Select {
	s.Joins = append(s.Joins, j)
	return s
}

// Order appends an ORDER BY term.
func (s *Select) Order(o OrderBy) *Select {
	s.OrderBy = append(s.OrderBy, o)
	return s
}

// Ref returns the name other expressions should use to qualify this
// statement's columns: the alias if set, otherwise the table.
func (s *Select) Ref() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.Table
}

// Insert is a multi-row INSERT.
type Insert struct {
	Table   string
	Columns []string
	Rows    [][]any
}

// Delete is a DELETE with an optional WHERE.
type Delete struct {
	Table string
	Where Expr
}

func (s *Select) writeStatement(b *Builder) { b.writeSelect(s) }
func (i *Insert) writeStatement(b *Builder) { b.writeInsert(i) }
func (d *Delete) writeStatement(b *Builder) { b.writeDelete(d) }
