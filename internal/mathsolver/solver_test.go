package mathsolver

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/finwise/internal/model"
	appErr "github.com/xxxsen/finwise/internal/pkg/errors"
)

func TestArithmetic(t *testing.T) {
	tests := []struct {
		query string
		want  float64
	}{
		{"2+2", 4},
		{"(3 + 4) * 2", 14},
		{"what is 15*3?", 45},
		{"2^10", 1024},
		{"2(3+4)", 14},
		{"sqrt(16) + 2**3", 12},
		{"square root of 81", 9},
		{"2 * pi", 2 * math.Pi},
	}
	s := New()
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			res, err := s.Solve(context.Background(), tt.query, model.CategoryMath)
			require.NoError(t, err)
			require.Equal(t, KindArithmetic, res.Kind)
			require.InDelta(t, tt.want, res.Value, 1e-9)
		})
	}
}

func TestEquation(t *testing.T) {
	s := New()
	res, err := s.Solve(context.Background(), "2x + 3 = 7", model.CategoryMath)
	require.NoError(t, err)
	require.Equal(t, KindEquation, res.Kind)
	require.Equal(t, "x", res.Variable)
	require.Equal(t, []float64{2}, res.Solutions)
	require.Contains(t, res.Text(), "x = 2")

	res, err = s.Solve(context.Background(), "solve x^2 - 4 = 0 for x", model.CategoryMath)
	require.NoError(t, err)
	require.Equal(t, []float64{-2, 2}, res.Solutions)

	res, err = s.Solve(context.Background(), "y^2 = 0", model.CategoryMath)
	require.NoError(t, err)
	require.Equal(t, []float64{0}, res.Solutions)
}

func TestEquationFailures(t *testing.T) {
	s := New()
	_, err := s.Solve(context.Background(), "x^2 + 1 = 0", model.CategoryMath)
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = s.Solve(context.Background(), "x + y = 3", model.CategoryMath)
	require.ErrorIs(t, err, appErr.ErrInvalid)

	_, err = s.Solve(context.Background(), "x^3 = 8", model.CategoryMath)
	require.ErrorIs(t, err, appErr.ErrUnsupported)
}

func TestArithmeticFailures(t *testing.T) {
	s := New()
	for _, q := range []string{"10/0", "2+", "hello world"} {
		_, err := s.Solve(context.Background(), q, model.CategoryMath)
		require.Error(t, err, q)
	}
}

func TestWordProblems(t *testing.T) {
	tests := []struct {
		query   string
		want    float64
		formula string
	}{
		{"area of a circle with radius 5", 25 * math.Pi, "A = πr²"},
		{"circumference of a circle with diameter 10", 10 * math.Pi, "C = 2πr"},
		{"simple interest on 1000 at 5% for 2 years", 100, "SI = P × R × T / 100"},
		{"P = $2,000, r = 10, t = 3 simple interest", 600, "SI = P × R × T / 100"},
		{"compound interest on 1000 at 5% for 2 years", 102.5, "CI = P × (1 + R/(100n))^(nT) - P"},
		{"area of a rectangle 4 by 6", 24, "A = l × w"},
		{"perimeter of a square with side 3", 12, "P = 4s"},
		{"area of a triangle with base 10 and height 4", 20, "A = ½ × b × h"},
		{"a car travels 120 km in 2 hours, what is its speed", 60, "speed = distance / time"},
		{"how far does a train go at 80 km/h in 90 minutes", 120, "distance = speed × time"},
		{"how long to cover 150 km at 50 km/h", 3, "time = distance / speed"},
	}
	s := New()
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			res, err := s.Solve(context.Background(), tt.query, model.CategoryWordProblem)
			require.NoError(t, err)
			require.Equal(t, KindFormula, res.Kind)
			require.Equal(t, tt.formula, res.Formula)
			require.InDelta(t, tt.want, res.Value, 1e-6)
		})
	}
}

func TestMathCategoryFallsBackToFormula(t *testing.T) {
	res, err := New().Solve(context.Background(), "solve the area of a square with side 4", model.CategoryMath)
	require.NoError(t, err)
	require.Equal(t, KindFormula, res.Kind)
	require.InDelta(t, 16, res.Value, 1e-9)
}

func TestResultText(t *testing.T) {
	res, err := New().Solve(context.Background(), "1/3", model.CategoryMath)
	require.NoError(t, err)
	require.Equal(t, "Math Result", res.Title())
	require.Equal(t, "Original: 1/3\nSimplified: 1/3\nNumeric evaluation: 0.333333", res.Text())
}

func TestResultKeepsCaretPower(t *testing.T) {
	res, err := New().Solve(context.Background(), "2^10", model.CategoryMath)
	require.NoError(t, err)
	require.Equal(t, "2^10", res.Simplified)
	require.InDelta(t, 1024, res.Value, 1e-9)
	require.NotContains(t, res.Text(), "**")

	res, err = New().Solve(context.Background(), "x^2 = 9", model.CategoryMath)
	require.NoError(t, err)
	require.Equal(t, "x^2 = 9", res.Expression)
	require.Equal(t, []float64{-3, 3}, res.Solutions)

	res, err = New().Solve(context.Background(), "2**3", model.CategoryMath)
	require.NoError(t, err)
	require.Equal(t, "2**3", res.Simplified)
}
