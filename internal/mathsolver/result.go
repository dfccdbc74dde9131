package mathsolver

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type Kind string

const (
	KindArithmetic Kind = "arithmetic"
	KindEquation   Kind = "equation"
	KindFormula    Kind = "formula"
)

type Input struct {
	Name  string
	Value float64
}

type Result struct {
	Kind       Kind
	Expression string
	// Simplified is the normalized expression that was evaluated.
	Simplified string
	Value      float64
	Variable   string
	Solutions  []float64
	Formula    string
	Inputs     []Input
}

func (r *Result) Title() string {
	switch r.Kind {
	case KindEquation:
		return "Math Solution"
	case KindFormula:
		return "Word Problem"
	default:
		return "Math Result"
	}
}

func (r *Result) Text() string {
	var sb strings.Builder
	switch r.Kind {
	case KindEquation:
		fmt.Fprintf(&sb, "Equation: %s\n", r.Expression)
		sols := make([]string, 0, len(r.Solutions))
		for _, s := range r.Solutions {
			sols = append(sols, fmt.Sprintf("%s = %s", r.Variable, formatNumber(s)))
		}
		fmt.Fprintf(&sb, "Solution: %s", strings.Join(sols, ", "))
	case KindFormula:
		fmt.Fprintf(&sb, "Formula: %s\n", r.Formula)
		ins := make([]string, 0, len(r.Inputs))
		for _, in := range r.Inputs {
			ins = append(ins, fmt.Sprintf("%s = %s", in.Name, formatNumber(in.Value)))
		}
		fmt.Fprintf(&sb, "Inputs: %s\n", strings.Join(ins, ", "))
		fmt.Fprintf(&sb, "Result: %s", formatNumber(r.Value))
	default:
		fmt.Fprintf(&sb, "Original: %s\n", r.Expression)
		fmt.Fprintf(&sb, "Simplified: %s\n", r.Simplified)
		fmt.Fprintf(&sb, "Numeric evaluation: %s", formatNumber(r.Value))
	}
	return sb.String()
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func formatNumber(v float64) string {
	v = roundTo(v, 6)
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
