package od

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Formulas are restricted to the expressions found in object names and
// default values: integers, strings, idx/sub/base, + - * %, comparisons,
// tuples and a boolean keyed dict used as a ternary,
// e.g. {True:"$NODEID+0x%X00"%(base+2),False:0x80000000}[base<4]

var formulaLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "String", Pattern: `"(\\.|[^"\\])*"|'(\\.|[^'\\])*'`},
	{Name: "Hex", Pattern: `0[xX][0-9a-fA-F]+`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Operator", Pattern: `<=|>=|==|!=|[-+*%<>]`},
	{Name: "Punct", Pattern: `[(){}\[\]:,]`},
})

type formulaExpr struct {
	Left  *formulaSum `parser:"@@"`
	Op    string      `parser:"( @( '<=' | '>=' | '==' | '!=' | '<' | '>' )"`
	Right *formulaSum `parser:"  @@ )?"`
}

type formulaSum struct {
	Left *formulaProduct `parser:"@@"`
	Rest []*formulaSumOp `parser:"@@*"`
}

type formulaSumOp struct {
	Op    string          `parser:"@( '+' | '-' )"`
	Right *formulaProduct `parser:"@@"`
}

type formulaProduct struct {
	Left *formulaUnary       `parser:"@@"`
	Rest []*formulaProductOp `parser:"@@*"`
}

type formulaProductOp struct {
	Op    string        `parser:"@( '*' | '%' )"`
	Right *formulaUnary `parser:"@@"`
}

type formulaUnary struct {
	Neg     *formulaUnary   `parser:"  '-' @@"`
	Postfix *formulaPostfix `parser:"| @@"`
}

type formulaPostfix struct {
	Primary *formulaPrimary `parser:"@@"`
	Index   *formulaExpr    `parser:"( '[' @@ ']' )?"`
}

type formulaPrimary struct {
	Hex    *string        `parser:"  @Hex"`
	Int    *string        `parser:"| @Int"`
	String *string        `parser:"| @String"`
	Bool   *string        `parser:"| @( 'True' | 'False' )"`
	Ident  *string        `parser:"| @Ident"`
	Dict   []*formulaItem `parser:"| '{' @@ ( ',' @@ )* '}'"`
	Group  []*formulaExpr `parser:"| '(' @@ ( ',' @@ )* ')'"`
}

type formulaItem struct {
	Key   *formulaExpr `parser:"@@ ':'"`
	Value *formulaExpr `parser:"@@"`
}

var formulaParser = participle.MustBuild[formulaExpr](
	participle.Lexer(formulaLexer),
	participle.Elide("Whitespace"),
	participle.Unquote("String"),
)

// tuple is the result of a parenthesized list, used as format arguments
type tuple []any

type dictEntry struct {
	key   any
	value any
}

// EvaluateFormula evaluates expr with the given variables.
// The result is an int64, bool, string or a tuple of those.
func EvaluateFormula(expr string, vars map[string]int64) (any, error) {
	ast, err := formulaParser.ParseString("", expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrFormula, expr, err)
	}
	value, err := ast.eval(vars)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrFormula, expr, err)
	}
	return value, nil
}

func (e *formulaExpr) eval(vars map[string]int64) (any, error) {
	left, err := e.Left.eval(vars)
	if err != nil || e.Op == "" {
		return left, err
	}
	right, err := e.Right.eval(vars)
	if err != nil {
		return nil, err
	}
	return compare(e.Op, left, right)
}

func (s *formulaSum) eval(vars map[string]int64) (any, error) {
	result, err := s.Left.eval(vars)
	if err != nil {
		return nil, err
	}
	for _, op := range s.Rest {
		right, err := op.Right.eval(vars)
		if err != nil {
			return nil, err
		}
		result, err = arithmetic(op.Op, result, right)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (p *formulaProduct) eval(vars map[string]int64) (any, error) {
	result, err := p.Left.eval(vars)
	if err != nil {
		return nil, err
	}
	for _, op := range p.Rest {
		right, err := op.Right.eval(vars)
		if err != nil {
			return nil, err
		}
		if format, ok := result.(string); ok && op.Op == "%" {
			args := []any{right}
			if t, ok := right.(tuple); ok {
				args = t
			}
			result, err = percentFormat(format, args)
		} else {
			result, err = arithmetic(op.Op, result, right)
		}
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (u *formulaUnary) eval(vars map[string]int64) (any, error) {
	if u.Neg != nil {
		v, err := u.Neg.eval(vars)
		if err != nil {
			return nil, err
		}
		i, ok := asInt(v)
		if !ok {
			return nil, fmt.Errorf("bad operand type for unary -: %T", v)
		}
		return -i, nil
	}
	return u.Postfix.eval(vars)
}

func (p *formulaPostfix) eval(vars map[string]int64) (any, error) {
	value, err := p.Primary.eval(vars)
	if err != nil || p.Index == nil {
		return value, err
	}
	key, err := p.Index.eval(vars)
	if err != nil {
		return nil, err
	}
	switch v := value.(type) {
	case []dictEntry:
		for _, item := range v {
			if equal(item.key, key) {
				return item.value, nil
			}
		}
		return nil, fmt.Errorf("key %v not found", key)
	case tuple:
		i, ok := asInt(key)
		if !ok || i < 0 || int(i) >= len(v) {
			return nil, fmt.Errorf("tuple index %v out of range", key)
		}
		return v[i], nil
	}
	return nil, fmt.Errorf("%T is not subscriptable", value)
}

func (p *formulaPrimary) eval(vars map[string]int64) (any, error) {
	switch {
	case p.Hex != nil:
		return strconv.ParseInt((*p.Hex)[2:], 16, 64)
	case p.Int != nil:
		return strconv.ParseInt(*p.Int, 10, 64)
	case p.String != nil:
		return *p.String, nil
	case p.Bool != nil:
		return *p.Bool == "True", nil
	case p.Ident != nil:
		v, ok := vars[*p.Ident]
		if !ok {
			return nil, fmt.Errorf("name %q is not defined", *p.Ident)
		}
		return v, nil
	case p.Dict != nil:
		dict := make([]dictEntry, 0, len(p.Dict))
		for _, item := range p.Dict {
			key, err := item.Key.eval(vars)
			if err != nil {
				return nil, err
			}
			value, err := item.Value.eval(vars)
			if err != nil {
				return nil, err
			}
			dict = append(dict, dictEntry{key, value})
		}
		return dict, nil
	case len(p.Group) == 1:
		return p.Group[0].eval(vars)
	case p.Group != nil:
		t := make(tuple, 0, len(p.Group))
		for _, expr := range p.Group {
			v, err := expr.eval(vars)
			if err != nil {
				return nil, err
			}
			t = append(t, v)
		}
		return t, nil
	}
	return nil, fmt.Errorf("empty expression")
}

// asInt converts integers and booleans, booleans counting as 0 and 1
func asInt(v any) (int64, bool) {
	switch i := v.(type) {
	case int64:
		return i, true
	case bool:
		if i {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func equal(a any, b any) bool {
	ia, oka := asInt(a)
	ib, okb := asInt(b)
	if oka && okb {
		return ia == ib
	}
	sa, oka := a.(string)
	sb, okb := b.(string)
	return oka && okb && sa == sb
}

func arithmetic(op string, left any, right any) (any, error) {
	if op == "+" {
		if l, ok := left.(string); ok {
			if r, ok := right.(string); ok {
				return l + r, nil
			}
		}
	}
	l, okl := asInt(left)
	r, okr := asInt(right)
	if !okl || !okr {
		return nil, fmt.Errorf("unsupported operand types for %s: %T and %T", op, left, right)
	}
	switch op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "%":
		if r == 0 {
			return nil, fmt.Errorf("modulo by zero")
		}
		m := l % r
		if m != 0 && (m < 0) != (r < 0) {
			m += r
		}
		return m, nil
	}
	return nil, fmt.Errorf("unknown operator %s", op)
}

func compare(op string, left any, right any) (any, error) {
	if op == "==" {
		return equal(left, right), nil
	}
	if op == "!=" {
		return !equal(left, right), nil
	}
	var c int
	l, okl := asInt(left)
	r, okr := asInt(right)
	switch {
	case okl && okr:
		c = compareInt(l, r)
	default:
		ls, okl := left.(string)
		rs, okr := right.(string)
		if !okl || !okr {
			return nil, fmt.Errorf("'%s' not supported between %T and %T", op, left, right)
		}
		c = strings.Compare(ls, rs)
	}
	switch op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return nil, fmt.Errorf("unknown operator %s", op)
}

func compareInt(a int64, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// percentFormat applies %-style formatting: %[flags][width][.precision]verb
func percentFormat(format string, args []any) (string, error) {
	var out strings.Builder
	used := 0
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			out.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(format) && strings.IndexByte("-+ #0", format[j]) >= 0 {
			j++
		}
		for j < len(format) && (format[j] >= '0' && format[j] <= '9' || format[j] == '.') {
			j++
		}
		if j >= len(format) {
			return "", fmt.Errorf("incomplete format in %q", format)
		}
		verb := format[j]
		spec := format[i:j]
		i = j
		if verb == '%' {
			out.WriteByte('%')
			continue
		}
		if used >= len(args) {
			return "", fmt.Errorf("not enough arguments for format %q", format)
		}
		arg := args[used]
		used++
		switch verb {
		case 'd', 'i', 'u', 'x', 'X', 'o':
			n, ok := asInt(arg)
			if !ok {
				return "", fmt.Errorf("%%%c format: a number is required, not %T", verb, arg)
			}
			goVerb := verb
			if verb == 'i' || verb == 'u' {
				goVerb = 'd'
			}
			out.WriteString(fmt.Sprintf(spec+string(goVerb), n))
		case 's':
			out.WriteString(fmt.Sprintf(spec+"s", formulaString(arg)))
		default:
			return "", fmt.Errorf("unsupported format character %q", verb)
		}
	}
	if used != len(args) {
		return "", fmt.Errorf("not all arguments converted during formatting of %q", format)
	}
	return out.String(), nil
}

func formulaString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case bool:
		if s {
			return "True"
		}
		return "False"
	}
	return fmt.Sprint(v)
}

var templateRegExp = regexp.MustCompile(`^(.*)\[(.*)\]`)

// FormatName expands a templated name such as "Receive PDO %d Parameter[(idx)]".
// Names without a bracketed expression are returned unchanged.
func FormatName(template string, idx int, sub int) (string, error) {
	match := templateRegExp.FindStringSubmatch(template)
	if match == nil {
		return template, nil
	}
	value, err := EvaluateFormula(match[2], map[string]int64{"idx": int64(idx), "sub": int64(sub)})
	if err != nil {
		return "", err
	}
	args := []any{value}
	if t, ok := value.(tuple); ok {
		args = t
	}
	name, err := percentFormat(match[1], args)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrFormula, template, err)
	}
	return name, nil
}

// CompileValue resolves a $NODEID formula value.
// The first phase evaluates the stored expression with base, the position of
// the index in its family. It usually yields a formula string such as
// "$NODEID+0x200". When compute is set, the node id is substituted and the
// arithmetic is evaluated. Values without $NODEID are returned unchanged.
func CompileValue(value Value, base int, nodeID uint8, compute bool) (Value, error) {
	s, ok := value.(string)
	if !ok || !IsFormula(s) {
		return value, nil
	}
	raw, err := EvaluateFormula(s, map[string]int64{"base": int64(base)})
	if err != nil {
		return nil, err
	}
	partial, ok := raw.(string)
	if !ok {
		return formulaResult(s, raw)
	}
	if !compute {
		return partial, nil
	}
	expr := strings.ReplaceAll(strings.ToUpper(partial), "$NODEID", strconv.Itoa(int(nodeID)))
	computed, err := EvaluateFormula(expr, nil)
	if err != nil {
		return nil, err
	}
	return formulaResult(s, computed)
}

func formulaResult(expr string, v any) (Value, error) {
	switch r := v.(type) {
	case int64, string, bool:
		return r, nil
	}
	return nil, fmt.Errorf("%w: %q evaluates to %T", ErrFormula, expr, v)
}
