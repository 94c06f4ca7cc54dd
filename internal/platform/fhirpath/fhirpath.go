// Package fhirpath evaluates the subset of FHIRPath used by search parameter
// expressions against FHIR resources decoded as map[string]any.
//
// Unlike a general FHIRPath engine, every result carries a type tag whenever
// the expression itself reveals the type (choice-type suffixes, as/ofType,
// resolve()). Callers that need the shape of a value fall back to their own
// metadata when the tag is empty.
package fhirpath

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"
)

// TypedValue is one item of an evaluation result.
type TypedValue struct {
	// Type is a FHIR type code ("Identifier", "CodeableConcept", "string",
	// "Patient", ...) or empty when the expression does not determine it.
	Type  string
	Value any
}

// Engine evaluates expressions. Parsed expressions are cached per engine;
// the cache only grows with the fixed set of registered search parameters.
type Engine struct {
	mu     sync.RWMutex
	parsed map[string]*astNode
}

// NewEngine creates an evaluation engine.
func NewEngine() *Engine {
	return &Engine{parsed: make(map[string]*astNode)}
}

// Evaluate evaluates expression against resource. An empty result is returned
// when the path resolves to nothing.
func (e *Engine) Evaluate(resource map[string]any, expression string) ([]TypedValue, error) {
	if resource == nil {
		return nil, nil
	}
	ast, err := e.parse(expression)
	if err != nil {
		return nil, err
	}
	rt, _ := resource["resourceType"].(string)
	ctx := &evalContext{root: TypedValue{Type: rt, Value: resource}}
	out, err := ctx.eval(ast, []TypedValue{ctx.root})
	if err != nil {
		return nil, fmt.Errorf("fhirpath: eval %q: %w", expression, err)
	}
	return out, nil
}

func (e *Engine) parse(expression string) (*astNode, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, fmt.Errorf("fhirpath: empty expression")
	}

	e.mu.RLock()
	ast, ok := e.parsed[expression]
	e.mu.RUnlock()
	if ok {
		return ast, nil
	}

	tokens, err := tokenize(expression)
	if err != nil {
		return nil, fmt.Errorf("fhirpath: tokenize %q: %w", expression, err)
	}
	p := &parser{tokens: tokens}
	ast, err = p.parseExpression(0)
	if err != nil {
		return nil, fmt.Errorf("fhirpath: parse %q: %w", expression, err)
	}
	if tok := p.peek(); tok.kind != tkEOF {
		return nil, fmt.Errorf("fhirpath: unexpected token %q at position %d", tok.value, tok.pos)
	}

	e.mu.Lock()
	e.parsed[expression] = ast
	e.mu.Unlock()
	return ast, nil
}

// ---------------------------------------------------------------------------
// Lexer
// ---------------------------------------------------------------------------

type tokenKind int

const (
	tkIdent tokenKind = iota
	tkNumber
	tkString
	tkDot
	tkLParen
	tkRParen
	tkComma
	tkEq
	tkNe
	tkPipe
	tkEOF
)

type token struct {
	kind  tokenKind
	value string
	pos   int
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	i, n := 0, len(input)

	for i < n {
		ch := input[i]
		start := i

		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case ch == '.':
			tokens = append(tokens, token{tkDot, ".", start})
			i++
		case ch == '(':
			tokens = append(tokens, token{tkLParen, "(", start})
			i++
		case ch == ')':
			tokens = append(tokens, token{tkRParen, ")", start})
			i++
		case ch == ',':
			tokens = append(tokens, token{tkComma, ",", start})
			i++
		case ch == '|':
			tokens = append(tokens, token{tkPipe, "|", start})
			i++
		case ch == '=':
			tokens = append(tokens, token{tkEq, "=", start})
			i++
		case ch == '!':
			if i+1 < n && input[i+1] == '=' {
				tokens = append(tokens, token{tkNe, "!=", start})
				i += 2
				continue
			}
			return nil, fmt.Errorf("unexpected '!' at position %d", start)
		case ch == '\'':
			i++
			var sb strings.Builder
			for i < n && input[i] != '\'' {
				if input[i] == '\\' && i+1 < n {
					i++
				}
				sb.WriteByte(input[i])
				i++
			}
			if i >= n {
				return nil, fmt.Errorf("unterminated string at position %d", start)
			}
			i++
			tokens = append(tokens, token{tkString, sb.String(), start})
		case ch >= '0' && ch <= '9':
			j := i
			for j < n && (input[j] >= '0' && input[j] <= '9' || input[j] == '.' && j+1 < n && input[j+1] >= '0' && input[j+1] <= '9') {
				j++
			}
			tokens = append(tokens, token{tkNumber, input[i:j], start})
			i = j
		case ch == '_' || unicode.IsLetter(rune(ch)):
			j := i
			for j < n && (input[j] == '_' || unicode.IsLetter(rune(input[j])) || unicode.IsDigit(rune(input[j]))) {
				j++
			}
			tokens = append(tokens, token{tkIdent, input[i:j], start})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", string(ch), start)
		}
	}

	return append(tokens, token{tkEOF, "", n}), nil
}

// ---------------------------------------------------------------------------
// Parser
// ---------------------------------------------------------------------------

type nodeKind int

const (
	ndLiteral  nodeKind = iota
	ndPath              // identifier
	ndDot               // a.b
	ndFunction          // a.fn(args...) or fn(args...)
	ndCompare           // a = b, a != b
	ndAnd
	ndOr
	ndUnion
	ndTypeOp // a is T, a as T
)

type astNode struct {
	kind     nodeKind
	value    any
	children []*astNode
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) advance() token {
	t := p.tokens[p.pos]
	if t.kind != tkEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind tokenKind) (token, error) {
	t := p.advance()
	if t.kind != kind {
		return t, fmt.Errorf("unexpected %q at position %d", t.value, t.pos)
	}
	return t, nil
}

// Precedence, loosest first: or, and, = !=, |, is/as.
func infixInfo(tok token) (int, nodeKind) {
	switch {
	case tok.kind == tkIdent && tok.value == "or":
		return 1, ndOr
	case tok.kind == tkIdent && tok.value == "and":
		return 2, ndAnd
	case tok.kind == tkEq || tok.kind == tkNe:
		return 3, ndCompare
	case tok.kind == tkPipe:
		return 4, ndUnion
	case tok.kind == tkIdent && (tok.value == "is" || tok.value == "as"):
		return 5, ndTypeOp
	}
	return -1, 0
}

func (p *parser) parseExpression(minPrec int) (*astNode, error) {
	left, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		prec, kind := infixInfo(tok)
		if prec < minPrec || prec < 0 {
			return left, nil
		}
		p.advance()

		if kind == ndTypeOp {
			typeTok, err := p.expect(tkIdent)
			if err != nil {
				return nil, err
			}
			left = &astNode{kind: ndTypeOp, value: tok.value, children: []*astNode{left, {kind: ndPath, value: typeTok.value}}}
			continue
		}

		right, err := p.parseExpression(prec + 1)
		if err != nil {
			return nil, err
		}
		node := &astNode{kind: kind, children: []*astNode{left, right}}
		if kind == ndCompare {
			node.value = tok.value
		}
		left = node
	}
}

func (p *parser) parsePostfix() (*astNode, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tkDot {
		p.advance()
		ident, err := p.expect(tkIdent)
		if err != nil {
			return nil, err
		}
		if p.peek().kind == tkLParen {
			args, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			node = &astNode{kind: ndFunction, value: ident.value, children: append([]*astNode{node}, args...)}
			continue
		}
		node = &astNode{kind: ndDot, children: []*astNode{node, {kind: ndPath, value: ident.value}}}
	}
	return node, nil
}

func (p *parser) parsePrimary() (*astNode, error) {
	tok := p.advance()
	switch tok.kind {
	case tkLParen:
		inner, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tkRParen); err != nil {
			return nil, err
		}
		return inner, nil
	case tkString:
		return &astNode{kind: ndLiteral, value: tok.value}, nil
	case tkNumber:
		f, err := strconv.ParseFloat(tok.value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at position %d", tok.value, tok.pos)
		}
		return &astNode{kind: ndLiteral, value: f}, nil
	case tkIdent:
		switch tok.value {
		case "true":
			return &astNode{kind: ndLiteral, value: true}, nil
		case "false":
			return &astNode{kind: ndLiteral, value: false}, nil
		}
		if p.peek().kind == tkLParen {
			// Receiver-less call such as resolve(); the implicit receiver is $this.
			args, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			return &astNode{kind: ndFunction, value: tok.value, children: append([]*astNode{nil}, args...)}, nil
		}
		return &astNode{kind: ndPath, value: tok.value}, nil
	case tkEOF:
		return nil, fmt.Errorf("unexpected end of expression")
	default:
		return nil, fmt.Errorf("unexpected token %q at position %d", tok.value, tok.pos)
	}
}

func (p *parser) parseCallArgs() ([]*astNode, error) {
	if _, err := p.expect(tkLParen); err != nil {
		return nil, err
	}
	var args []*astNode
	if p.peek().kind == tkRParen {
		p.advance()
		return args, nil
	}
	for {
		arg, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.peek().kind != tkComma {
			break
		}
		p.advance()
	}
	if _, err := p.expect(tkRParen); err != nil {
		return nil, err
	}
	return args, nil
}

// ---------------------------------------------------------------------------
// Evaluator
// ---------------------------------------------------------------------------

type evalContext struct {
	root TypedValue
}

func (ctx *evalContext) eval(node *astNode, input []TypedValue) ([]TypedValue, error) {
	if node == nil {
		return input, nil
	}
	switch node.kind {
	case ndLiteral:
		return []TypedValue{{Type: literalType(node.value), Value: node.value}}, nil
	case ndPath:
		return ctx.evalPath(node.value.(string), input), nil
	case ndDot:
		left, err := ctx.eval(node.children[0], input)
		if err != nil {
			return nil, err
		}
		return ctx.eval(node.children[1], left)
	case ndFunction:
		return ctx.evalFunction(node, input)
	case ndTypeOp:
		coll, err := ctx.eval(node.children[0], input)
		if err != nil {
			return nil, err
		}
		typeName := node.children[1].value.(string)
		if node.value == "is" {
			return []TypedValue{boolValue(len(coll) == 1 && matchesType(coll[0], typeName))}, nil
		}
		return filterType(coll, typeName), nil
	case ndCompare:
		l, err := ctx.eval(node.children[0], input)
		if err != nil {
			return nil, err
		}
		r, err := ctx.eval(node.children[1], input)
		if err != nil {
			return nil, err
		}
		if len(l) == 0 || len(r) == 0 {
			return nil, nil
		}
		eq := len(l) == len(r)
		for i := 0; eq && i < len(l); i++ {
			eq = Stringify(l[i].Value) == Stringify(r[i].Value)
		}
		if node.value == "!=" {
			eq = !eq
		}
		return []TypedValue{boolValue(eq)}, nil
	case ndAnd, ndOr:
		l, err := ctx.eval(node.children[0], input)
		if err != nil {
			return nil, err
		}
		r, err := ctx.eval(node.children[1], input)
		if err != nil {
			return nil, err
		}
		if node.kind == ndAnd {
			return []TypedValue{boolValue(truthy(l) && truthy(r))}, nil
		}
		return []TypedValue{boolValue(truthy(l) || truthy(r))}, nil
	case ndUnion:
		l, err := ctx.eval(node.children[0], input)
		if err != nil {
			return nil, err
		}
		r, err := ctx.eval(node.children[1], input)
		if err != nil {
			return nil, err
		}
		return append(l, r...), nil
	}
	return nil, fmt.Errorf("unknown node kind %d", node.kind)
}

func (ctx *evalContext) evalPath(name string, input []TypedValue) []TypedValue {
	if isTypeName(name) {
		switch {
		case name == "Resource" || name == "DomainResource":
			return []TypedValue{ctx.root}
		case name == ctx.root.Type:
			return []TypedValue{ctx.root}
		}
		// A path rooted at another resource type selects nothing.
		return nil
	}

	var out []TypedValue
	for _, item := range input {
		out = append(out, navigate(item, name)...)
	}
	return out
}

// navigate reads field name from a map value. A missing field falls back to
// choice-type expansion: "value" matches "valueQuantity" and tags the result
// with type "Quantity".
func navigate(item TypedValue, name string) []TypedValue {
	m, ok := item.Value.(map[string]any)
	if !ok {
		return nil
	}
	if v, ok := m[name]; ok {
		return expand(v, "")
	}
	// A well-formed resource carries one variant per choice element. A
	// malformed one with several resolves to the first in key order.
	var keys []string
	for key := range m {
		if len(key) > len(name) && strings.HasPrefix(key, name) && unicode.IsUpper(rune(key[len(name)])) {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)
	return expand(m[keys[0]], choiceType(keys[0][len(name):]))
}

func expand(v any, typ string) []TypedValue {
	if arr, ok := v.([]any); ok {
		out := make([]TypedValue, 0, len(arr))
		for _, el := range arr {
			out = append(out, tag(el, typ))
		}
		return out
	}
	return []TypedValue{tag(v, typ)}
}

func tag(v any, typ string) TypedValue {
	if typ == "" {
		if m, ok := v.(map[string]any); ok {
			typ, _ = m["resourceType"].(string)
		}
	}
	return TypedValue{Type: typ, Value: v}
}

// choiceType converts a choice-type suffix to a FHIR type code. Primitive
// type codes start with a lower-case letter.
func choiceType(suffix string) string {
	switch suffix {
	case "String", "Boolean", "Integer", "Decimal", "Code", "Date", "DateTime",
		"Instant", "Time", "Uri", "Url", "Canonical", "Id", "Oid", "Uuid",
		"Markdown", "Base64Binary", "PositiveInt", "UnsignedInt":
		return strings.ToLower(suffix[:1]) + suffix[1:]
	}
	return suffix
}

func (ctx *evalContext) evalFunction(node *astNode, input []TypedValue) ([]TypedValue, error) {
	name := node.value.(string)
	receiver, err := ctx.eval(node.children[0], input)
	if err != nil {
		return nil, err
	}
	args := node.children[1:]

	switch name {
	case "where":
		if len(args) != 1 {
			return nil, fmt.Errorf("where() takes one argument")
		}
		var out []TypedValue
		for _, item := range receiver {
			res, err := ctx.eval(args[0], []TypedValue{item})
			if err != nil {
				return nil, err
			}
			if truthy(res) {
				out = append(out, item)
			}
		}
		return out, nil
	case "exists":
		return []TypedValue{boolValue(len(receiver) > 0)}, nil
	case "empty":
		return []TypedValue{boolValue(len(receiver) == 0)}, nil
	case "not":
		return []TypedValue{boolValue(!truthy(receiver))}, nil
	case "first":
		if len(receiver) == 0 {
			return nil, nil
		}
		return receiver[:1], nil
	case "ofType", "as":
		if len(args) != 1 || args[0].kind != ndPath {
			return nil, fmt.Errorf("%s() takes a type name", name)
		}
		return filterType(receiver, args[0].value.(string)), nil
	case "is":
		if len(args) != 1 || args[0].kind != ndPath {
			return nil, fmt.Errorf("is() takes a type name")
		}
		return []TypedValue{boolValue(len(receiver) == 1 && matchesType(receiver[0], args[0].value.(string)))}, nil
	case "resolve":
		return resolve(receiver), nil
	case "extension":
		if len(args) != 1 {
			return nil, fmt.Errorf("extension() takes one argument")
		}
		urls, err := ctx.eval(args[0], input)
		if err != nil {
			return nil, err
		}
		if len(urls) != 1 {
			return nil, nil
		}
		url := Stringify(urls[0].Value)
		var out []TypedValue
		for _, item := range receiver {
			for _, ext := range navigate(item, "extension") {
				if m, ok := ext.Value.(map[string]any); ok && m["url"] == url {
					out = append(out, TypedValue{Type: "Extension", Value: m})
				}
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported function %q", name)
}

// resolve cannot load the target, so it yields the reference itself typed
// with the target resource type parsed from the literal reference.
func resolve(coll []TypedValue) []TypedValue {
	var out []TypedValue
	for _, item := range coll {
		m, ok := item.Value.(map[string]any)
		if !ok {
			continue
		}
		ref, _ := m["reference"].(string)
		typ, _ := m["type"].(string)
		if parts := strings.Split(ref, "/"); len(parts) >= 2 {
			typ = parts[len(parts)-2]
		}
		out = append(out, TypedValue{Type: typ, Value: m})
	}
	return out
}

func filterType(coll []TypedValue, typeName string) []TypedValue {
	var out []TypedValue
	for _, item := range coll {
		if matchesType(item, typeName) {
			item.Type = typeName
			out = append(out, item)
		}
	}
	return out
}

func matchesType(v TypedValue, typeName string) bool {
	typeName = strings.TrimPrefix(typeName, "FHIR.")
	if v.Type != "" {
		return strings.EqualFold(v.Type, typeName)
	}
	switch typeName {
	case "string", "code", "uri", "id", "markdown":
		_, ok := v.Value.(string)
		return ok
	case "boolean":
		_, ok := v.Value.(bool)
		return ok
	case "decimal", "integer":
		switch v.Value.(type) {
		case float64, json.Number:
			return true
		}
		return false
	}
	return false
}

func literalType(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64:
		return "decimal"
	}
	return ""
}

func boolValue(b bool) TypedValue { return TypedValue{Type: "boolean", Value: b} }

// truthy applies FHIRPath singleton evaluation of collections to booleans.
func truthy(coll []TypedValue) bool {
	if len(coll) == 0 {
		return false
	}
	if len(coll) == 1 {
		if b, ok := coll[0].Value.(bool); ok {
			return b
		}
		return coll[0].Value != nil
	}
	return true
}

func isTypeName(name string) bool {
	return name != "" && unicode.IsUpper(rune(name[0]))
}

// Stringify renders a primitive JSON value the way it is indexed: numbers
// without exponent or trailing zeros, booleans as true/false.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	}
	return fmt.Sprintf("%v", v)
}
