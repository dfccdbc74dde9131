package consent

import "github.com/xxxsen/finwise/internal/model"

// Event is an input to Step: either something the user did or the
// outcome of an effect the caller executed.
type Event interface {
	event()
}

type Input struct {
	Query string
}

type Consent struct {
	Allow bool
}

type Cancel struct{}

type Classified struct {
	Category model.Category
}

type MathSolved struct {
	OK     bool
	Title  string
	Answer string
}

type Quoted struct {
	Found  bool
	Answer string
}

// Retrieved carries the document search outcome. Found is false for
// the not-found sentinel; Err is set only when the backends failed.
type Retrieved struct {
	Found  bool
	Answer string
	Err    error
}

type WebAnswered struct {
	Answer   string
	Sources  []string
	Titles   []string
	Degraded bool
}

type Advised struct {
	OK       bool
	Answer   string
	Fallback model.Message
}

func (Input) event() {}
func (Consent) event() {}
func (Cancel) event() {}
func (Classified) event() {}
func (MathSolved) event() {}
func (Quoted) event() {}
func (Retrieved) event() {}
func (WebAnswered) event() {}
func (Advised) event() {}

// Effect is work Step asks the caller to perform. Every effect except
// Show and AskConsent must be answered with its matching event.
type Effect interface {
	effect()
}

type Classify struct {
	Query string
}

type SolveMath struct {
	Query    string
	Category model.Category
}

type Quote struct {
	Query string
}

type Retrieve struct {
	Query string
}

type WebSearch struct {
	Query string
}

// Advise rewrites Facts as advisor guidance; Fallback is shown when
// that fails.
type Advise struct {
	Query    string
	Facts    string
	Fallback model.Message
}

type AskConsent struct {
	Prompt string
}

type Show struct {
	Message model.Message
}

func (Classify) effect() {}
func (SolveMath) effect() {}
func (Quote) effect() {}
func (Retrieve) effect() {}
func (WebSearch) effect() {}
func (Advise) effect() {}
func (AskConsent) effect() {}
func (Show) effect() {}
