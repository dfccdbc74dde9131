// Package consent is the routing state machine. Step is pure: all state
// lives in model.Session and all side effects are returned to the
// caller, so a turn can suspend while waiting for the user's consent
// and resume on a later invocation.
package consent

import (
	"errors"
	"strings"

	"github.com/xxxsen/finwise/internal/model"
	appErr "github.com/xxxsen/finwise/internal/pkg/errors"
)

const (
	ConsentPrompt      = "Would you like to search the web for an answer?"
	NotFoundInDocs     = "Answer not found in documents."
	SearchCancelled    = "Search cancelled. Answer stays 'Not Found' in local documents."
	AlreadyHandled     = "This query was already handled. Change the question to ask again."
	NothingPending     = "There is no question waiting for permission."
	TurnCancelled      = "Cancelled."
	RetrievalTimeout   = "Searching the documents timed out. Please try again."
	RetrievalUnavail   = "Document search is unavailable right now. Please try again."
	mathFailurePrefix  = "Could not solve the math query: "
	documentTitle      = "Document Answer"
	webTitle           = "Web Answer"
	adviceTitle        = "Advisor"
	priceTitle         = "Live Price"
	defaultMathTitle   = "Math Result"
	defaultMathFailure = "unsupported expression"
)

func Step(s model.Session, ev Event) (model.Session, []Effect) {
	switch e := ev.(type) {
	case Input:
		return onInput(s, e)
	case Consent:
		return onConsent(s, e)
	case Cancel:
		s = clearTurn(s, model.StateCancelled)
		return s, []Effect{show(model.MessageInfo, "", TurnCancelled)}
	}
	if s.PendingQuery == "" {
		// an outcome arriving for a turn that already ended
		return s, nil
	}
	switch e := ev.(type) {
	case Classified:
		s.Category = e.Category
		return dispatch(s)
	case MathSolved:
		return onMath(s, e)
	case Quoted:
		return onQuote(s, e)
	case Retrieved:
		return onRetrieved(s, e)
	case WebAnswered:
		return onWeb(s, e)
	case Advised:
		msg := e.Fallback
		if e.OK && strings.TrimSpace(e.Answer) != "" {
			msg = model.Message{Kind: model.MessageAdvice, Title: adviceTitle, Text: e.Answer, Sources: e.Fallback.Sources, SourceTitles: e.Fallback.SourceTitles}
		}
		return clearTurn(s, model.StateAnswered), []Effect{Show{Message: msg}}
	}
	return s, nil
}

func onInput(s model.Session, e Input) (model.Session, []Effect) {
	q := strings.TrimSpace(e.Query)
	forced := s.ForceWeb && s.WebPermission == model.PermissionGranted
	if q != "" && q != s.LastSeenQuery && !forced {
		s.PendingQuery = q
		s.WebPermission = model.PermissionUnset
		s.ForceWeb = false
		s.LastSeenQuery = q
		s.Category = ""
		s.State = model.StatePendingClassify
	} else if q != "" && q == s.LastSeenQuery && s.PendingQuery == "" {
		return s, []Effect{show(model.MessageInfo, "", AlreadyHandled)}
	}
	return resume(s)
}

func onConsent(s model.Session, e Consent) (model.Session, []Effect) {
	if s.PendingQuery == "" || s.State != model.StateAwaitingConsent {
		return s, []Effect{show(model.MessageInfo, "", NothingPending)}
	}
	if e.Allow {
		s.WebPermission = model.PermissionGranted
		s.ForceWeb = true
	} else {
		s.WebPermission = model.PermissionDenied
		s.ForceWeb = false
	}
	return resume(s)
}

func resume(s model.Session) (model.Session, []Effect) {
	if s.PendingQuery == "" {
		return s, nil
	}
	if s.Category == "" {
		s.State = model.StatePendingClassify
		return s, []Effect{Classify{Query: s.PendingQuery}}
	}
	if s.State == model.StateAwaitingConsent && s.WebPermission == model.PermissionUnset {
		// still waiting; ask again without repeating the document search
		return s, []Effect{
			show(model.MessageWarning, "", NotFoundInDocs),
			AskConsent{Prompt: ConsentPrompt},
		}
	}
	return dispatch(s)
}

func dispatch(s model.Session) (model.Session, []Effect) {
	q := s.PendingQuery
	switch {
	case s.Category.IsMath():
		return s, []Effect{SolveMath{Query: q, Category: s.Category}}
	case s.Category == model.CategoryPrice:
		return s, []Effect{Quote{Query: q}}
	}
	if s.ForceWeb && s.WebPermission == model.PermissionGranted {
		s.State = model.StateForcedWeb
		return s, []Effect{WebSearch{Query: q}}
	}
	switch s.WebPermission {
	case model.PermissionGranted:
		return s, []Effect{WebSearch{Query: q}}
	case model.PermissionDenied:
		s.WebPermission = model.PermissionUnset
		s.PendingQuery = ""
		s.ForceWeb = false
		s.Category = ""
		s.State = model.StateCancelled
		return s, []Effect{show(model.MessageWarning, "", SearchCancelled)}
	default:
		return s, []Effect{Retrieve{Query: q}}
	}
}

func onMath(s model.Session, e MathSolved) (model.Session, []Effect) {
	var msg model.Message
	if e.OK {
		title := e.Title
		if title == "" {
			title = defaultMathTitle
		}
		msg = model.Message{Kind: model.MessageMathResult, Title: title, Text: e.Answer}
	} else {
		reason := e.Answer
		if reason == "" {
			reason = defaultMathFailure
		}
		msg = model.Message{Kind: model.MessageError, Text: mathFailurePrefix + reason}
	}
	// math never falls through to document search
	return clearTurn(s, model.StateAnswered), []Effect{Show{Message: msg}}
}

func onQuote(s model.Session, e Quoted) (model.Session, []Effect) {
	if e.Found && strings.TrimSpace(e.Answer) != "" {
		msg := model.Message{Kind: model.MessagePriceQuote, Title: priceTitle, Text: e.Answer}
		return clearTurn(s, model.StateAnswered), []Effect{Show{Message: msg}}
	}
	// live prices are never in the local documents, so no consent gate
	return s, []Effect{WebSearch{Query: s.PendingQuery}}
}

func onRetrieved(s model.Session, e Retrieved) (model.Session, []Effect) {
	if e.Err != nil {
		text := RetrievalUnavail
		if errors.Is(e.Err, appErr.ErrTimeout) {
			text = RetrievalTimeout
		}
		s = clearTurn(s, model.StateIdle)
		// allow the same query to be submitted again
		s.LastSeenQuery = ""
		return s, []Effect{Show{Message: model.Message{Kind: model.MessageError, Text: text, Retryable: true}}}
	}
	if e.Found {
		msg := model.Message{Kind: model.MessageDocumentAnswer, Title: documentTitle, Text: e.Answer}
		if s.Category == model.CategoryAdvisor {
			return s, []Effect{Advise{Query: s.PendingQuery, Facts: e.Answer, Fallback: msg}}
		}
		return clearTurn(s, model.StateAnswered), []Effect{Show{Message: msg}}
	}
	s.State = model.StateAwaitingConsent
	return s, []Effect{
		show(model.MessageWarning, "", NotFoundInDocs),
		AskConsent{Prompt: ConsentPrompt},
	}
}

func onWeb(s model.Session, e WebAnswered) (model.Session, []Effect) {
	msg := model.Message{
		Kind:         model.MessageWebAnswer,
		Title:        webTitle,
		Text:         e.Answer,
		Sources:      e.Sources,
		SourceTitles: e.Titles,
		Retryable:    e.Degraded,
	}
	if s.Category == model.CategoryAdvisor && !e.Degraded {
		return s, []Effect{Advise{Query: s.PendingQuery, Facts: e.Answer, Fallback: msg}}
	}
	return clearTurn(s, model.StateAnswered), []Effect{Show{Message: msg}}
}

// clearTurn ends the current turn. LastSeenQuery is kept so the same
// input is not re-triggered.
func clearTurn(s model.Session, state model.RouteState) model.Session {
	s.PendingQuery = ""
	s.WebPermission = model.PermissionUnset
	s.ForceWeb = false
	s.Category = ""
	s.State = state
	return s
}

func show(kind model.MessageKind, title, text string) Effect {
	return Show{Message: model.Message{Kind: kind, Title: title, Text: text}}
}
