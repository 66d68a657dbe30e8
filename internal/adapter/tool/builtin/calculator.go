// Package builtin provides the framework's bundled demo tools.
package builtin

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"vero/internal/adapter/tool"
	"vero/internal/domain"
)

// NewCalculator returns the math_evaluate tool: a sandboxed arithmetic
// expression evaluator. Evaluation failures are reported as observation text
// so a reasoning loop can recover.
func NewCalculator() *tool.Func {
	return tool.New(
		"math_evaluate",
		"Safely evaluate a mathematical expression and return the result. "+
			"Supports numbers, the operators + - * / % ^, parentheses, and "+
			"math functions and constants (sqrt, sin, cos, pi, e, ...).",
		[]domain.Param{
			{Name: "expr", Type: domain.TypeString, Required: true},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			expr, _ := args["expr"].(string)
			v, err := Evaluate(expr)
			if err != nil {
				return fmt.Sprintf("Evaluation error: %v", err), nil
			}
			return strconv.FormatFloat(v, 'g', -1, 64), nil
		},
	)
}

// Evaluate parses and evaluates an arithmetic expression over a fixed
// namespace of math functions and constants. Identifiers outside that
// namespace are rejected, never evaluated.
func Evaluate(expr string) (float64, error) {
	p := &parser{input: expr}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("unexpected %q at position %d", p.input[p.pos], p.pos)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("math domain error")
	}
	return v, nil
}

var constants = map[string]float64{
	"pi":  math.Pi,
	"e":   math.E,
	"tau": 2 * math.Pi,
}

var functions = map[string]func(float64) float64{
	"sqrt":  math.Sqrt,
	"abs":   math.Abs,
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
	"asin":  math.Asin,
	"acos":  math.Acos,
	"atan":  math.Atan,
	"log":   math.Log,
	"log2":  math.Log2,
	"log10": math.Log10,
	"exp":   math.Exp,
	"floor": math.Floor,
	"ceil":  math.Ceil,
	"round": math.Round,
}

var functions2 = map[string]func(float64, float64) float64{
	"pow": math.Pow,
	"min": math.Min,
	"max": math.Max,
}

// parser is a recursive-descent evaluator with precedence
// (+ -) < (* / %) < unary minus < (^).
type parser struct {
	input string
	pos   int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *parser) parseTerm() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '*':
			// Distinguish ** (power alias) from multiplication.
			if p.pos+1 < len(p.input) && p.input[p.pos+1] == '*' {
				return left, nil
			}
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			left *= right
		case '/':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		case '%':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("modulo by zero")
			}
			left = math.Mod(left, right)
		default:
			return left, nil
		}
	}
}

func (p *parser) parseUnary() (float64, error) {
	switch p.peek() {
	case '-':
		p.pos++
		v, err := p.parseUnary()
		return -v, err
	case '+':
		p.pos++
		return p.parseUnary()
	}
	return p.parsePower()
}

func (p *parser) parsePower() (float64, error) {
	base, err := p.parseAtom()
	if err != nil {
		return 0, err
	}
	c := p.peek()
	if c == '^' {
		p.pos++
	} else if c == '*' && p.pos+1 < len(p.input) && p.input[p.pos+1] == '*' {
		p.pos += 2
	} else {
		return base, nil
	}
	// Right-associative; unary minus in the exponent binds to the exponent.
	exp, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	return math.Pow(base, exp), nil
}

func (p *parser) parseAtom() (float64, error) {
	c := p.peek()
	switch {
	case c == '(':
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	case c >= '0' && c <= '9' || c == '.':
		return p.parseNumber()
	case isIdentStart(c):
		return p.parseIdent()
	case c == 0:
		return 0, fmt.Errorf("unexpected end of expression")
	default:
		return 0, fmt.Errorf("unexpected %q at position %d", c, p.pos)
	}
}

func (p *parser) parseNumber() (float64, error) {
	start := p.pos
	seenExp := false
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c >= '0' && c <= '9' || c == '.' {
			p.pos++
			continue
		}
		if (c == 'e' || c == 'E') && !seenExp && p.pos > start {
			// Exponent only when followed by a digit or sign+digit.
			next := p.pos + 1
			if next < len(p.input) && (p.input[next] == '+' || p.input[next] == '-') {
				next++
			}
			if next < len(p.input) && p.input[next] >= '0' && p.input[next] <= '9' {
				seenExp = true
				p.pos = next + 1
				continue
			}
		}
		break
	}
	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.input[start:p.pos])
	}
	return v, nil
}

func (p *parser) parseIdent() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) && isIdentPart(p.input[p.pos]) {
		p.pos++
	}
	name := strings.ToLower(p.input[start:p.pos])

	if v, ok := constants[name]; ok {
		return v, nil
	}

	if p.peek() != '(' {
		if _, ok := functions[name]; ok {
			return 0, fmt.Errorf("function %q requires arguments", name)
		}
		if _, ok := functions2[name]; ok {
			return 0, fmt.Errorf("function %q requires arguments", name)
		}
		return 0, fmt.Errorf("use of %q is not allowed", name)
	}
	p.pos++

	first, err := p.parseExpr()
	if err != nil {
		return 0, err
	}

	if fn, ok := functions[name]; ok {
		if p.peek() != ')' {
			return 0, fmt.Errorf("function %q takes one argument", name)
		}
		p.pos++
		return fn(first), nil
	}

	if fn, ok := functions2[name]; ok {
		if p.peek() != ',' {
			return 0, fmt.Errorf("function %q takes two arguments", name)
		}
		p.pos++
		second, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("function %q takes two arguments", name)
		}
		p.pos++
		return fn(first, second), nil
	}

	return 0, fmt.Errorf("use of %q is not allowed", name)
}

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}
