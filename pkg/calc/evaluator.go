package calc

import (
	"errors"
	"io"
	"math"

	"github.com/antibyte/retrocalc/pkg/logger"
)

// Evaluator parses and computes statements in one pass.
//
// Precedence, low to high:
//
//	statement   := ("let"|"const") NAME "=" expression | expression
//	expression  := term (("+"|"-") term)*
//	term        := primary (("*"|"/"|"%") primary)*
//	primary     := NUMBER | NAME ["=" expression] | ("+"|"-") primary
//	             | "(" expression ")" | "{" expression "}"
//
// Side effects happen left to right as the input is read: an assignment
// that precedes a failure in the same statement stays committed.
type Evaluator struct {
	ts   *TokenStream
	vars *SymbolTable
}

// NewEvaluator wires an evaluator to its token stream and symbol table.
func NewEvaluator(ts *TokenStream, vars *SymbolTable) *Evaluator {
	return &Evaluator{ts: ts, vars: vars}
}

// Tokens returns the underlying token stream.
func (ev *Evaluator) Tokens() *TokenStream { return ev.ts }

// Symbols returns the symbol table the evaluator mutates.
func (ev *Evaluator) Symbols() *SymbolTable { return ev.vars }

// Statement evaluates one declaration or expression.
func (ev *Evaluator) Statement() (float64, error) {
	t, err := ev.ts.Get()
	if err != nil {
		return 0, err
	}
	switch t.Kind {
	case KindLet, KindConst:
		return ev.declaration(t)
	}
	if err := ev.ts.Putback(t); err != nil {
		return 0, err
	}
	return ev.Expression()
}

// declaration handles "let NAME = expression" and "const NAME = expression".
// Any keyword other than let declares a constant.
func (ev *Evaluator) declaration(kw Token) (float64, error) {
	t, err := ev.ts.Get()
	if err != nil {
		return 0, err
	}
	if t.Kind != KindName {
		return 0, newError(ErrNameExpected, t.String())
	}
	eq, err := ev.ts.Get()
	if err != nil {
		return 0, err
	}
	if !eq.Is('=') {
		return 0, newError(ErrAssignExpected, eq.String())
	}
	val, err := ev.Expression()
	if err != nil {
		return 0, err
	}
	isConst := kw.Kind != KindLet
	logger.Debug(logger.AreaCalculator, "declare %s = %v (const=%t)", t.Name, val, isConst)
	return ev.vars.Declare(t.Name, val, isConst)
}

// Expression evaluates the additive level.
func (ev *Evaluator) Expression() (float64, error) {
	left, err := ev.term()
	if err != nil {
		return 0, err
	}
	for {
		t, err := ev.ts.Get()
		if errors.Is(err, io.EOF) {
			return left, nil
		}
		if err != nil {
			return 0, err
		}
		switch {
		case t.Is('+'):
			right, err := ev.term()
			if err != nil {
				return 0, err
			}
			left += right
		case t.Is('-'):
			right, err := ev.term()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, ev.ts.Putback(t)
		}
	}
}

// term evaluates the multiplicative level.
func (ev *Evaluator) term() (float64, error) {
	left, err := ev.primary()
	if err != nil {
		return 0, err
	}
	for {
		t, err := ev.ts.Get()
		if errors.Is(err, io.EOF) {
			return left, nil
		}
		if err != nil {
			return 0, err
		}
		switch {
		case t.Is('*'):
			right, err := ev.primary()
			if err != nil {
				return 0, err
			}
			left *= right
		case t.Is('/'):
			den, err := ev.divisor()
			if err != nil {
				return 0, err
			}
			left /= den
		case t.Is('%'):
			den, err := ev.divisor()
			if err != nil {
				return 0, err
			}
			left = math.Mod(left, den)
		default:
			return left, ev.ts.Putback(t)
		}
	}
}

// divisor evaluates the right operand of / and %, rejecting exact zero.
func (ev *Evaluator) divisor() (float64, error) {
	den, err := ev.primary()
	if err != nil {
		return 0, err
	}
	if den == 0 {
		return 0, newError(ErrDivideByZero, "")
	}
	return den, nil
}

// primary evaluates literals, names, bracketed expressions and unary signs.
func (ev *Evaluator) primary() (float64, error) {
	t, err := ev.ts.Get()
	if err != nil {
		return 0, err
	}

	switch t.Kind {
	case KindNumber:
		return t.Value, nil
	case KindName:
		return ev.name(t.Name)
	case KindPunct:
		switch t.Punct {
		case '(':
			return ev.bracketed(')')
		case '{':
			return ev.bracketed('}')
		case '+':
			return ev.primary()
		case '-':
			v, err := ev.primary()
			if err != nil {
				return 0, err
			}
			return -v, nil
		}
	}
	return 0, newError(ErrPrimaryExpected, t.String())
}

// bracketed evaluates an expression that must be followed by closer.
func (ev *Evaluator) bracketed(closer rune) (float64, error) {
	v, err := ev.Expression()
	if err != nil {
		return 0, err
	}
	t, err := ev.ts.Get()
	if err != nil {
		return 0, err
	}
	if !t.Is(closer) {
		return 0, newError(ErrUnmatchedBracket, string(closer))
	}
	return v, nil
}

// name reads a variable or, when followed by "=", assigns to it.
func (ev *Evaluator) name(name string) (float64, error) {
	next, err := ev.ts.Get()
	if errors.Is(err, io.EOF) {
		return ev.vars.Get(name)
	}
	if err != nil {
		return 0, err
	}
	if next.Is('=') {
		val, err := ev.Expression()
		if err != nil {
			return 0, err
		}
		if err := ev.vars.Set(name, val); err != nil {
			return 0, err
		}
		logger.Debug(logger.AreaCalculator, "assign %s = %v", name, val)
		return val, nil
	}
	if err := ev.ts.Putback(next); err != nil {
		return 0, err
	}
	return ev.vars.Get(name)
}
