package model

type Category string

const (
	CategoryMath        Category = "math"
	CategoryWordProblem Category = "word_problem"
	CategoryPrice       Category = "price"
	CategoryAdvisor     Category = "advisor"
	CategoryGeneral     Category = "general"
)

func (c Category) IsMath() bool {
	return c == CategoryMath || c == CategoryWordProblem
}
