package selection

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/bisegni/visdata/pkg/database"
)

// AST for the textual selection language, e.g.
//
//	antenna=2 AND cross AND uvmax<=1000
//	(scan=3 OR scan=4) AND NOT feed=1

type astExpression struct {
	Or []*astAnd `parser:"@@ ('OR' @@)*"`
}

type astAnd struct {
	And []*astUnary `parser:"@@ ('AND' @@)*"`
}

type astUnary struct {
	Not     *astUnary   `parser:"  'NOT' @@"`
	Primary *astPrimary `parser:"| @@"`
}

type astPrimary struct {
	Grouped *astExpression `parser:"  '(' @@ ')'"`
	Flag    *string        `parser:"| @('AUTO'|'CROSS'|'TRUE'|'FALSE')"`
	Compare *astComparison `parser:"| @@"`
}

type astComparison struct {
	Field string  `parser:"@Ident"`
	Op    string  `parser:"@('='|'!='|'>='|'<='|'>'|'<')"`
	Value float64 `parser:"@Number"`
}

var (
	selectionLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Keyword", Pattern: `(?i)\b(AND|OR|NOT|AUTO|CROSS|TRUE|FALSE)\b`},
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
		{Name: "Number", Pattern: `[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?`},
		{Name: "Operator", Pattern: `>=|<=|!=|[=<>]`},
		{Name: "Punct", Pattern: `[()]`},
		{Name: "Whitespace", Pattern: `\s+`},
	})

	selectionParser = participle.MustBuild[astExpression](
		participle.Lexer(selectionLexer),
		participle.CaseInsensitive("Keyword"),
		participle.Elide("Whitespace"),
		participle.UseLookahead(2),
	)
)

// Parse compiles a textual selection into an expression. Recognised
// fields: antenna, antenna1, antenna2, feed, feed1, feed2, ddid, field,
// scan, time, uv, uvmin, uvmax, uvnonzero and any upper-case main table
// column name.
func Parse(input string) (Expression, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty selection")
	}
	ast, err := selectionParser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return ast.toExpression()
}

func (e *astExpression) toExpression() (Expression, error) {
	var out Expression
	for _, a := range e.Or {
		x, err := a.toExpression()
		if err != nil {
			return nil, err
		}
		out = Or(out, x)
	}
	return out, nil
}

func (a *astAnd) toExpression() (Expression, error) {
	var out Expression
	for _, u := range a.And {
		x, err := u.toExpression()
		if err != nil {
			return nil, err
		}
		out = And(out, x)
	}
	return out, nil
}

func (u *astUnary) toExpression() (Expression, error) {
	if u.Not != nil {
		x, err := u.Not.toExpression()
		if err != nil {
			return nil, err
		}
		return &NotExpression{Inner: x}, nil
	}
	return u.Primary.toExpression()
}

func (p *astPrimary) toExpression() (Expression, error) {
	switch {
	case p.Grouped != nil:
		return p.Grouped.toExpression()
	case p.Flag != nil:
		switch strings.ToUpper(*p.Flag) {
		case "AUTO":
			return autoCorrelations(), nil
		case "CROSS":
			return crossCorrelations(), nil
		case "TRUE":
			return Constant(true), nil
		}
		return Constant(false), nil
	case p.Compare != nil:
		return p.Compare.toExpression()
	}
	return nil, fmt.Errorf("empty term")
}

var fieldColumns = map[string]string{
	"antenna1": database.ColAntenna1,
	"antenna2": database.ColAntenna2,
	"feed1":    database.ColFeed1,
	"feed2":    database.ColFeed2,
	"ddid":     database.ColDataDescID,
	"field":    database.ColFieldID,
	"scan":     database.ColScanNumber,
	"time":     database.ColTime,
}

func (c *astComparison) toExpression() (Expression, error) {
	name := strings.ToLower(c.Field)
	switch name {
	case "antenna", "feed":
		col1, col2 := database.ColAntenna1, database.ColAntenna2
		if name == "feed" {
			col1, col2 = database.ColFeed1, database.ColFeed2
		}
		switch c.Op {
		case "=":
			if name == "feed" {
				return And(cond(col1, "=", c.Value), cond(col2, "=", c.Value)), nil
			}
			return Or(cond(col1, "=", c.Value), cond(col2, "=", c.Value)), nil
		case "!=":
			if name == "feed" {
				return &NotExpression{Inner: And(cond(col1, "=", c.Value), cond(col2, "=", c.Value))}, nil
			}
			return And(cond(col1, "!=", c.Value), cond(col2, "!=", c.Value)), nil
		}
		return nil, fmt.Errorf("%s only supports = and !=", name)
	case "uv":
		return &UVDistance{Op: c.Op, Value: c.Value}, nil
	case "uvmin", "uvnonzero":
		if c.Op != "=" && c.Op != ">=" {
			return nil, fmt.Errorf("%s only supports = and >=", name)
		}
		return &UVDistance{Op: ">=", Value: c.Value, KeepZero: name == "uvnonzero"}, nil
	case "uvmax":
		if c.Op != "=" && c.Op != "<=" {
			return nil, fmt.Errorf("uvmax only supports = and <=")
		}
		return &UVDistance{Op: "<=", Value: c.Value}, nil
	}
	if col, ok := fieldColumns[name]; ok {
		return cond(col, c.Op, c.Value), nil
	}
	if c.Field == strings.ToUpper(c.Field) {
		return cond(c.Field, c.Op, c.Value), nil
	}
	return nil, fmt.Errorf("unknown selection field %q", c.Field)
}
