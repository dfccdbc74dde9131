// Package mathsolver evaluates arithmetic, solves single-unknown
// equations and answers formula based word problems. It needs no
// external services.
package mathsolver

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/finwise/internal/model"
)

type Solver struct{}

func New() *Solver {
	return &Solver{}
}

// Solve tries the strategies that fit the category first and falls
// back to the others. The returned error is the one from the preferred
// strategy.
func (s *Solver) Solve(ctx context.Context, query string, category model.Category) (*Result, error) {
	var attempts []func(string) (*Result, error)
	expression := solveArithmetic
	if strings.Contains(query, "=") {
		expression = solveEquation
	}
	if category == model.CategoryWordProblem {
		attempts = []func(string) (*Result, error){solveWordProblem, expression}
	} else {
		attempts = []func(string) (*Result, error){expression, solveWordProblem}
	}
	var firstErr error
	for _, attempt := range attempts {
		res, err := attempt(query)
		if err == nil {
			logutil.GetLogger(ctx).Debug("math query solved",
				zap.String("kind", string(res.Kind)), zap.String("expr", res.Simplified))
			return res, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	logutil.GetLogger(ctx).Info("math query unsolved", zap.String("query", query), zap.Error(firstErr))
	return nil, firstErr
}
