package selection

import (
	"fmt"
	"math"
	"strings"

	"github.com/bisegni/visdata/pkg/database"
)

// Expression is a boolean predicate over main table rows.
type Expression interface {
	Evaluate(r *database.Row) bool
	// SQL renders the predicate as a WHERE clause over the SQLite main
	// table. ok is false when part of the predicate cannot be pushed down.
	SQL() (clause string, args []interface{}, ok bool)
	String() string
}

// Condition compares a scalar column with a constant.
type Condition struct {
	Column string
	Op     string // "=", "!=", "<", "<=", ">", ">="
	Value  float64
}

func (c *Condition) Evaluate(r *database.Row) bool {
	v, err := r.Get(c.Column)
	if err != nil {
		return false
	}
	var x float64
	switch n := v.(type) {
	case int:
		x = float64(n)
	case float64:
		x = n
	case bool:
		if n {
			x = 1
		}
	default:
		return false
	}
	return compare(x, c.Op, c.Value)
}

func compare(x float64, op string, v float64) bool {
	switch op {
	case "=":
		return x == v
	case "!=":
		return x != v
	case "<":
		return x < v
	case "<=":
		return x <= v
	case ">":
		return x > v
	case ">=":
		return x >= v
	}
	return false
}

func sqlOp(op string) string {
	if op == "!=" {
		return "<>"
	}
	return op
}

// sqlColumns are the scalar columns of the SQLite main table.
var sqlColumns = map[string]bool{
	database.ColTime: true, database.ColInterval: true,
	database.ColAntenna1: true, database.ColAntenna2: true,
	database.ColFeed1: true, database.ColFeed2: true,
	database.ColDataDescID: true, database.ColFieldID: true,
	database.ColScanNumber: true, database.ColFlagRow: true,
}

func (c *Condition) SQL() (string, []interface{}, bool) {
	if !sqlColumns[c.Column] {
		return "", nil, false
	}
	return fmt.Sprintf(`%q %s ?`, c.Column, sqlOp(c.Op)), []interface{}{c.Value}, true
}

func (c *Condition) String() string {
	return fmt.Sprintf("%s%s%v", c.Column, c.Op, c.Value)
}

// ColumnsEqual compares two scalar columns of the same row.
type ColumnsEqual struct {
	Left, Right string
}

func (c *ColumnsEqual) Evaluate(r *database.Row) bool {
	a, err1 := r.IntColumn(c.Left)
	b, err2 := r.IntColumn(c.Right)
	return err1 == nil && err2 == nil && a == b
}

func (c *ColumnsEqual) SQL() (string, []interface{}, bool) {
	if !sqlColumns[c.Left] || !sqlColumns[c.Right] {
		return "", nil, false
	}
	return fmt.Sprintf(`%q = %q`, c.Left, c.Right), nil, true
}

func (c *ColumnsEqual) String() string {
	return c.Left + "==" + c.Right
}

// UVDistance compares the projected baseline length sqrt(u^2+v^2) in
// metres with a threshold. With KeepZero rows whose uvw is exactly zero
// always match.
type UVDistance struct {
	Op       string
	Value    float64
	KeepZero bool
}

func (u *UVDistance) Evaluate(r *database.Row) bool {
	if u.KeepZero && r.UVW == [3]float64{} {
		return true
	}
	return compare(math.Hypot(r.UVW[0], r.UVW[1]), u.Op, u.Value)
}

func (u *UVDistance) SQL() (string, []interface{}, bool) {
	// compare squared lengths, SQLite has no sqrt by default
	clause := fmt.Sprintf(`("U"*"U"+"V"*"V") %s ?`, sqlOp(u.Op))
	args := []interface{}{u.Value * u.Value}
	if u.Value < 0 {
		// a negative threshold is below every length
		clause = `1`
		if u.Op == "<" || u.Op == "<=" || u.Op == "=" {
			clause = `0`
		}
		args = nil
	}
	if u.KeepZero {
		clause = `(` + clause + ` OR ("U" = 0 AND "V" = 0 AND "W" = 0))`
	}
	return clause, args, true
}

func (u *UVDistance) String() string {
	name := "uv"
	if u.KeepZero {
		name = "uvnonzero"
	}
	return fmt.Sprintf("%s%s%v", name, u.Op, u.Value)
}

// AndExpression represents Logical AND
type AndExpression struct {
	Left  Expression
	Right Expression
}

func (a *AndExpression) Evaluate(r *database.Row) bool {
	return a.Left.Evaluate(r) && a.Right.Evaluate(r)
}

func (a *AndExpression) SQL() (string, []interface{}, bool) {
	return joinSQL(a.Left, a.Right, "AND")
}

func (a *AndExpression) String() string {
	return "(" + a.Left.String() + " AND " + a.Right.String() + ")"
}

// OrExpression represents Logical OR
type OrExpression struct {
	Left  Expression
	Right Expression
}

func (o *OrExpression) Evaluate(r *database.Row) bool {
	return o.Left.Evaluate(r) || o.Right.Evaluate(r)
}

func (o *OrExpression) SQL() (string, []interface{}, bool) {
	return joinSQL(o.Left, o.Right, "OR")
}

func (o *OrExpression) String() string {
	return "(" + o.Left.String() + " OR " + o.Right.String() + ")"
}

func joinSQL(left, right Expression, op string) (string, []interface{}, bool) {
	l, largs, lok := left.SQL()
	r, rargs, rok := right.SQL()
	if !lok || !rok {
		return "", nil, false
	}
	return "(" + l + " " + op + " " + r + ")", append(largs, rargs...), true
}

// NotExpression negates its operand.
type NotExpression struct {
	Inner Expression
}

func (n *NotExpression) Evaluate(r *database.Row) bool {
	return !n.Inner.Evaluate(r)
}

func (n *NotExpression) SQL() (string, []interface{}, bool) {
	c, args, ok := n.Inner.SQL()
	if !ok {
		return "", nil, false
	}
	return "NOT (" + c + ")", args, true
}

func (n *NotExpression) String() string {
	return "NOT " + n.Inner.String()
}

// Constant matches every row (true) or none (false).
type Constant bool

func (c Constant) Evaluate(*database.Row) bool {
	return bool(c)
}

func (c Constant) SQL() (string, []interface{}, bool) {
	if c {
		return "1", nil, true
	}
	return "0", nil, true
}

func (c Constant) String() string {
	if c {
		return "TRUE"
	}
	return "FALSE"
}

// And combines expressions, dropping nil operands. It returns nil when
// nothing is left.
func And(exprs ...Expression) Expression {
	var out Expression
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if out == nil {
			out = e
			continue
		}
		out = &AndExpression{Left: out, Right: e}
	}
	return out
}

// Or combines expressions, dropping nil operands.
func Or(exprs ...Expression) Expression {
	var out Expression
	for _, e := range exprs {
		if e == nil {
			continue
		}
		if out == nil {
			out = e
			continue
		}
		out = &OrExpression{Left: out, Right: e}
	}
	return out
}

// Describe renders an expression for display; nil selects everything.
func Describe(e Expression) string {
	if e == nil {
		return "TRUE"
	}
	return strings.TrimSpace(e.String())
}
