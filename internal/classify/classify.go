// Package classify maps a raw user query to a routing category.
package classify

import (
	"context"
	"regexp"
	"strings"

	"github.com/xxxsen/finwise/internal/model"
)

type Classifier interface {
	Classify(ctx context.Context, query string) model.Category
}

var (
	arithmeticOnly  = regexp.MustCompile(`^[0-9\s+\-*/^.()x=%]+$`)
	questionPrefix  = regexp.MustCompile(`^(what is|what's|calculate|compute|evaluate)\s+`)
	hasDigit        = regexp.MustCompile(`[0-9]`)
	mathKeywords    = regexp.MustCompile(`\b(solve|simplif\w*|integra\w*|differentia\w*|derivative|limit of|factori[sz]e|expand)\b`)
	currencyContext = regexp.MustCompile(`[$₹€£]|\b(rs\.?|inr|usd|eur|gbp|rupees?|dollars?)\b`)

	wordProblemKeywords = regexp.MustCompile(`\b(simple interest|compound interest|interest on|area|perimeter|circle|radius|diameter|rectangle|triangle|square|speed|distance|velocity|km/h|mph|how far|how long)\b`)
	assignment          = regexp.MustCompile(`\b[a-z]\s*=\s*-?\d`)
	currencyNumber      = regexp.MustCompile(`([$₹€£]|\brs\.?|\binr)\s*\d`)

	priceKeywords   = regexp.MustCompile(`\b(price|prices|ticker|quote|share price|trading at)\b|\$`)
	advisorKeywords = regexp.MustCompile(`\b(should i|invest\w*|advice|advise|plan|planning|portfolio|retire\w*)\b`)
)

// KeywordClassifier is the heuristic classifier. Rules are checked in a
// fixed order and the first match wins, so math always shadows word
// problems.
type KeywordClassifier struct{}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

func (KeywordClassifier) Classify(_ context.Context, query string) model.Category {
	return Classify(query)
}

func Classify(query string) model.Category {
	q := strings.ToLower(strings.TrimSpace(query))
	switch {
	case q == "":
		return model.CategoryGeneral
	case IsMath(q):
		return model.CategoryMath
	case IsWordProblem(q):
		return model.CategoryWordProblem
	case priceKeywords.MatchString(q):
		return model.CategoryPrice
	case advisorKeywords.MatchString(q):
		return model.CategoryAdvisor
	default:
		return model.CategoryGeneral
	}
}

func IsMath(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return false
	}
	expr := questionPrefix.ReplaceAllString(q, "")
	expr = strings.TrimRight(expr, "? ")
	if expr = strings.ReplaceAll(expr, "**", "^"); arithmeticOnly.MatchString(expr) && hasDigit.MatchString(expr) {
		return true
	}
	if mathKeywords.MatchString(q) {
		return true
	}
	return strings.Contains(q, "=") && !currencyContext.MatchString(q)
}

func IsWordProblem(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	return wordProblemKeywords.MatchString(q) || assignment.MatchString(q) || currencyNumber.MatchString(q)
}
