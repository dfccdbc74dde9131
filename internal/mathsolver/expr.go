package mathsolver

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/Knetic/govaluate"

	appErr "github.com/xxxsen/finwise/internal/pkg/errors"
)

var (
	fillerWords  = regexp.MustCompile(`\b(solve|simplify|evaluate|calculate|compute|what is|what's|find|the value of|value of|for [a-z])\b`)
	implicitMul  = regexp.MustCompile(`(\d|\))\s*([a-z(])`)
	closeThenNum = regexp.MustCompile(`\)\s*(\d)`)
	squareRoot   = regexp.MustCompile(`square root of\s*(\d+(?:\.\d+)?)`)
)

var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

func unary(fn func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		v, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("argument is not a number")
		}
		return fn(v), nil
	}
}

var functions = map[string]govaluate.ExpressionFunction{
	"sqrt": unary(math.Sqrt),
	"abs":  unary(math.Abs),
	"sin":  unary(math.Sin),
	"cos":  unary(math.Cos),
	"tan":  unary(math.Tan),
	"log":  unary(math.Log10),
	"ln":   unary(math.Log),
	"exp":  unary(math.Exp),
}

// normalize rewrites a free-form query into govaluate syntax.
func normalize(query string) string {
	q := strings.ToLower(strings.TrimSpace(query))
	q = squareRoot.ReplaceAllString(q, "sqrt($1)")
	q = fillerWords.ReplaceAllString(q, " ")
	q = strings.NewReplacer("×", "*", "÷", "/", "−", "-", "^", "**", "?", "").Replace(q)
	q = implicitMul.ReplaceAllString(q, "$1*$2")
	q = closeThenNum.ReplaceAllString(q, ")*$1")
	q = strings.TrimRight(q, ". ")
	return strings.Join(strings.Fields(q), " ")
}

// display renders a normalized expression with the power operator the
// user wrote.
func display(expr, query string) string {
	if strings.Contains(query, "^") {
		return strings.ReplaceAll(expr, "**", "^")
	}
	return expr
}

func compile(expr string) (*govaluate.EvaluableExpression, []string, error) {
	e, err := govaluate.NewEvaluableExpressionWithFunctions(expr, functions)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: parse %q: %v", appErr.ErrInvalid, expr, err)
	}
	seen := map[string]bool{}
	var vars []string
	for _, tok := range e.Tokens() {
		if tok.Kind != govaluate.VARIABLE {
			continue
		}
		name, _ := tok.Value.(string)
		if _, ok := constants[name]; ok || seen[name] {
			continue
		}
		seen[name] = true
		vars = append(vars, name)
	}
	sort.Strings(vars)
	return e, vars, nil
}

func evaluate(e *govaluate.EvaluableExpression, vars map[string]float64) (float64, error) {
	params := make(map[string]interface{}, len(constants)+len(vars))
	for k, v := range constants {
		params[k] = v
	}
	for k, v := range vars {
		params[k] = v
	}
	out, err := e.Evaluate(params)
	if err != nil {
		return 0, fmt.Errorf("%w: evaluate: %v", appErr.ErrInvalid, err)
	}
	v, ok := out.(float64)
	if !ok {
		return 0, fmt.Errorf("%w: expression is not numeric", appErr.ErrInvalid)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: result is undefined", appErr.ErrInvalid)
	}
	return v, nil
}

func solveArithmetic(query string) (*Result, error) {
	expr := normalize(query)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty expression", appErr.ErrInvalid)
	}
	e, vars, err := compile(expr)
	if err != nil {
		return nil, err
	}
	if len(vars) > 0 {
		return nil, fmt.Errorf("%w: unknowns %v without an equation", appErr.ErrInvalid, vars)
	}
	v, err := evaluate(e, nil)
	if err != nil {
		return nil, err
	}
	return &Result{
		Kind:       KindArithmetic,
		Expression: strings.TrimSpace(query),
		Simplified: display(expr, query),
		Value:      v,
	}, nil
}

// solveEquation handles polynomial equations up to degree two in a
// single unknown by sampling lhs-rhs and fitting coefficients.
func solveEquation(query string) (*Result, error) {
	expr := normalize(query)
	lhs, rhs, ok := strings.Cut(expr, "=")
	if !ok || strings.TrimSpace(lhs) == "" || strings.TrimSpace(rhs) == "" {
		return nil, fmt.Errorf("%w: not an equation", appErr.ErrInvalid)
	}
	e, vars, err := compile(fmt.Sprintf("(%s) - (%s)", lhs, rhs))
	if err != nil {
		return nil, err
	}
	if len(vars) != 1 {
		return nil, fmt.Errorf("%w: equation needs exactly one unknown, got %d", appErr.ErrInvalid, len(vars))
	}
	name := vars[0]
	f := func(x float64) (float64, error) {
		return evaluate(e, map[string]float64{name: x})
	}
	samples := map[float64]float64{}
	for _, x := range []float64{-1, 0, 1, 2, 3} {
		v, err := f(x)
		if err != nil {
			return nil, err
		}
		samples[x] = v
	}
	c := samples[0]
	b := (samples[1] - samples[-1]) / 2
	a := (samples[1]+samples[-1])/2 - c
	for _, x := range []float64{2, 3} {
		if !almostEqual(a*x*x+b*x+c, samples[x]) {
			return nil, fmt.Errorf("%w: only linear and quadratic equations are supported", appErr.ErrUnsupported)
		}
	}
	sols, err := polyRoots(a, b, c)
	if err != nil {
		return nil, err
	}
	return &Result{
		Kind:       KindEquation,
		Expression: display(strings.Join(strings.Fields(strings.Replace(expr, "=", " = ", 1)), " "), query),
		Simplified: display(expr, query),
		Variable:   name,
		Solutions:  sols,
	}, nil
}

func polyRoots(a, b, c float64) ([]float64, error) {
	if almostZero(a) {
		if almostZero(b) {
			if almostZero(c) {
				return nil, fmt.Errorf("%w: every value is a solution", appErr.ErrInvalid)
			}
			return nil, fmt.Errorf("%w: no solution", appErr.ErrInvalid)
		}
		return []float64{roundTo(-c/b, 10)}, nil
	}
	disc := b*b - 4*a*c
	if disc < 0 && !almostZero(disc) {
		return nil, fmt.Errorf("%w: no real solution", appErr.ErrInvalid)
	}
	if almostZero(disc) {
		return []float64{roundTo(-b/(2*a), 10)}, nil
	}
	sq := math.Sqrt(disc)
	r1 := roundTo((-b-sq)/(2*a), 10)
	r2 := roundTo((-b+sq)/(2*a), 10)
	if r1 > r2 {
		r1, r2 = r2, r1
	}
	return []float64{r1, r2}, nil
}

func almostZero(v float64) bool {
	return math.Abs(v) < 1e-9
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}
