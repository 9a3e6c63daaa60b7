package tools

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Calculator evaluates constrained arithmetic expressions. The evaluator is
// a small recursive-descent parser over numbers, + - * /, parentheses and a
// fixed whitelist of functions and constants. Nothing else resolves: no
// attribute access, no assignment, no arbitrary names. That restriction is a
// security boundary, not a convenience.
type Calculator struct{}

// NewCalculator creates the calculator tool.
func NewCalculator() *Calculator { return &Calculator{} }

func (c *Calculator) Name() string       { return "calculator" }
func (c *Calculator) Category() Category { return CategoryCalculation }

func (c *Calculator) Description() string {
	return "Evaluate mathematical expressions (e.g., '2 + 2', '15% of 250')"
}

func (c *Calculator) Parameters() []Parameter {
	return []Parameter{
		{Name: "expression", Type: "string", Description: "Mathematical expression to evaluate", Required: true},
	}
}

// Execute implements Tool.
func (c *Calculator) Execute(_ context.Context, args map[string]any) Result {
	expr, ok := args["expression"].(string)
	if !ok || expr == "" {
		return Failure("calculator: missing expression")
	}

	value, err := Evaluate(expr)
	if err != nil {
		return Failure("calculation error: %v", err)
	}
	return Success(value)
}

// Evaluate parses and evaluates one arithmetic expression. Two textual
// rewrites run first: "%" becomes "/100" and "A of B" becomes "(A) * (B)",
// so "15% of 250" evaluates to 37.5.
func Evaluate(expr string) (float64, error) {
	expr = strings.ReplaceAll(expr, "%", "/100")
	if before, after, found := strings.Cut(expr, " of "); found {
		expr = "(" + before + ") * (" + after + ")"
	}

	p := &exprParser{input: expr}
	value, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("unexpected %q at position %d", p.input[p.pos], p.pos)
	}
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return 0, fmt.Errorf("result is not a finite number")
	}
	return value, nil
}

// constants and functions the evaluator resolves. Anything absent here is an
// error, never a lookup elsewhere.
var (
	calcConstants = map[string]float64{
		"pi": math.Pi,
		"e":  math.E,
	}

	calcFunctions = map[string]func(args []float64) (float64, error){
		"abs":   unaryFn(math.Abs),
		"sqrt":  unaryFn(math.Sqrt),
		"round": unaryFn(math.Round),
		"pow": func(args []float64) (float64, error) {
			if len(args) != 2 {
				return 0, fmt.Errorf("pow expects 2 arguments, got %d", len(args))
			}
			return math.Pow(args[0], args[1]), nil
		},
		"min": variadicFn("min", math.Min),
		"max": variadicFn("max", math.Max),
		"sum": func(args []float64) (float64, error) {
			var total float64
			for _, a := range args {
				total += a
			}
			return total, nil
		},
	}
)

func unaryFn(fn func(float64) float64) func([]float64) (float64, error) {
	return func(args []float64) (float64, error) {
		if len(args) != 1 {
			return 0, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		return fn(args[0]), nil
	}
}

func variadicFn(name string, fold func(float64, float64) float64) func([]float64) (float64, error) {
	return func(args []float64) (float64, error) {
		if len(args) == 0 {
			return 0, fmt.Errorf("%s expects at least 1 argument", name)
		}
		acc := args[0]
		for _, a := range args[1:] {
			acc = fold(acc, a)
		}
		return acc, nil
	}
}

type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) skipSpaces() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *exprParser) peek() byte {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

// parseExpr handles addition and subtraction.
func (p *exprParser) parseExpr() (float64, error) {
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

// parseTerm handles multiplication and division.
func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '*':
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
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseUnary() (float64, error) {
	switch p.peek() {
	case '-':
		p.pos++
		v, err := p.parseUnary()
		return -v, err
	case '+':
		p.pos++
		return p.parseUnary()
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (float64, error) {
	ch := p.peek()
	switch {
	case ch == '(':
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

	case ch >= '0' && ch <= '9' || ch == '.':
		return p.parseNumber()

	case isIdentStart(ch):
		return p.parseIdent()

	case ch == 0:
		return 0, fmt.Errorf("unexpected end of expression")

	default:
		return 0, fmt.Errorf("unexpected %q at position %d", ch, p.pos)
	}
}

func (p *exprParser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) {
		ch := p.input[p.pos]
		if (ch >= '0' && ch <= '9') || ch == '.' {
			p.pos++
			continue
		}
		break
	}
	value, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", p.input[start:p.pos])
	}
	return value, nil
}

func (p *exprParser) parseIdent() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) && isIdentPart(p.input[p.pos]) {
		p.pos++
	}
	name := p.input[start:p.pos]

	if p.peek() == '(' {
		fn, ok := calcFunctions[name]
		if !ok {
			return 0, fmt.Errorf("unknown function %q", name)
		}
		p.pos++ // consume '('
		var args []float64
		if p.peek() != ')' {
			for {
				v, err := p.parseExpr()
				if err != nil {
					return 0, err
				}
				args = append(args, v)
				if p.peek() != ',' {
					break
				}
				p.pos++
			}
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("missing closing parenthesis in call to %s", name)
		}
		p.pos++
		return fn(args)
	}

	if v, ok := calcConstants[name]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("unknown name %q", name)
}

func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9')
}
