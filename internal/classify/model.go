package classify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/finwise/internal/ai"
	"github.com/xxxsen/finwise/internal/model"
)

var labels = []model.Category{
	model.CategoryMath,
	model.CategoryWordProblem,
	model.CategoryPrice,
	model.CategoryAdvisor,
	model.CategoryGeneral,
}

// ModelClassifier asks a generator for the label and falls back to
// another classifier when the call fails or the reply is not a label.
type ModelClassifier struct {
	generator ai.IGenerator
	fallback  Classifier
	timeout   time.Duration
}

func NewModelClassifier(generator ai.IGenerator, fallback Classifier, timeout time.Duration) *ModelClassifier {
	if fallback == nil {
		fallback = NewKeywordClassifier()
	}
	return &ModelClassifier{generator: generator, fallback: fallback, timeout: timeout}
}

func (c *ModelClassifier) Classify(ctx context.Context, query string) model.Category {
	// arithmetic never needs a model round trip
	if IsMath(query) {
		return model.CategoryMath
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	resp, err := c.generator.Generate(ctx, buildPrompt(query))
	if err != nil {
		logutil.GetLogger(ctx).Warn("model classify failed, use fallback", zap.Error(err))
		return c.fallback.Classify(ctx, query)
	}
	if cat, ok := parseLabel(resp); ok {
		return cat
	}
	logutil.GetLogger(ctx).Warn("model classify returned unknown label", zap.String("reply", resp))
	return c.fallback.Classify(ctx, query)
}

func buildPrompt(query string) string {
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, string(l))
	}
	return fmt.Sprintf(`Classify the user query into exactly one label: %s.
math: arithmetic or symbolic math. word_problem: interest, geometry or motion calculations.
price: live stock or asset price. advisor: personal financial advice. general: anything else.
Reply with the label only.

QUERY: %s`, strings.Join(names, ", "), query)
}

func parseLabel(resp string) (model.Category, bool) {
	resp = strings.ToLower(strings.TrimSpace(resp))
	resp = strings.Trim(resp, "`'\". \n")
	for _, l := range labels {
		if resp == string(l) {
			return l, true
		}
	}
	// word_problem before math so the longer label is not shadowed
	for _, l := range []model.Category{model.CategoryWordProblem, model.CategoryMath, model.CategoryPrice, model.CategoryAdvisor, model.CategoryGeneral} {
		if strings.Contains(resp, string(l)) {
			return l, true
		}
	}
	return "", false
}
