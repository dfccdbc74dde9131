package consent

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/finwise/internal/model"
	appErr "github.com/xxxsen/finwise/internal/pkg/errors"
)

func newSession() model.Session {
	return *model.NewSession("s1", 1)
}

func requireInvariant(t *testing.T, s model.Session) {
	t.Helper()
	if s.ForceWeb {
		require.Equal(t, model.PermissionGranted, s.WebPermission)
		require.NotEmpty(t, s.PendingQuery)
	}
}

func TestNewQueryIsClassified(t *testing.T) {
	s, effects := Step(newSession(), Input{Query: " capital of France "})
	require.Equal(t, "capital of France", s.PendingQuery)
	require.Equal(t, "capital of France", s.LastSeenQuery)
	require.Equal(t, model.StatePendingClassify, s.State)
	require.Equal(t, []Effect{Classify{Query: "capital of France"}}, effects)
}

func TestConsentGrantedFlow(t *testing.T) {
	s, _ := Step(newSession(), Input{Query: "capital of France"})
	s, effects := Step(s, Classified{Category: model.CategoryGeneral})
	require.Equal(t, []Effect{Retrieve{Query: "capital of France"}}, effects)

	s, effects = Step(s, Retrieved{Found: false})
	require.Equal(t, model.StateAwaitingConsent, s.State)
	require.Equal(t, "capital of France", s.PendingQuery)
	require.Equal(t, model.PermissionUnset, s.WebPermission)
	require.Len(t, effects, 2)
	require.Equal(t, AskConsent{Prompt: ConsentPrompt}, effects[1])

	s, effects = Step(s, Consent{Allow: true})
	requireInvariant(t, s)
	require.Equal(t, model.StateForcedWeb, s.State)
	require.Equal(t, []Effect{WebSearch{Query: "capital of France"}}, effects)

	s, effects = Step(s, WebAnswered{Answer: "Paris.", Sources: []string{"https://a"}, Titles: []string{"France"}})
	require.Equal(t, model.StateAnswered, s.State)
	require.Empty(t, s.PendingQuery)
	require.Equal(t, model.PermissionUnset, s.WebPermission)
	require.False(t, s.ForceWeb)
	require.Equal(t, "capital of France", s.LastSeenQuery)
	require.Equal(t, []Effect{Show{Message: model.Message{
		Kind: model.MessageWebAnswer, Title: "Web Answer", Text: "Paris.", Sources: []string{"https://a"},
		SourceTitles: []string{"France"},
	}}}, effects)
}

func TestConsentDeclinedFlow(t *testing.T) {
	s, _ := Step(newSession(), Input{Query: "capital of France"})
	s, _ = Step(s, Classified{Category: model.CategoryGeneral})
	s, _ = Step(s, Retrieved{Found: false})

	s, effects := Step(s, Consent{Allow: false})
	require.Equal(t, model.StateCancelled, s.State)
	require.Empty(t, s.PendingQuery)
	require.Equal(t, model.PermissionUnset, s.WebPermission)
	require.Equal(t, "capital of France", s.LastSeenQuery)
	require.Len(t, effects, 1)
	for _, e := range effects {
		_, isWeb := e.(WebSearch)
		require.False(t, isWeb)
	}

	// the same text is not re-triggered
	s, effects = Step(s, Input{Query: "capital of France"})
	require.Empty(t, s.PendingQuery)
	require.Equal(t, []Effect{Show{Message: model.Message{Kind: model.MessageInfo, Text: AlreadyHandled}}}, effects)
}

func TestDocumentAnswerSkipsConsent(t *testing.T) {
	s, _ := Step(newSession(), Input{Query: "what is our rent budget"})
	s, _ = Step(s, Classified{Category: model.CategoryGeneral})
	s, effects := Step(s, Retrieved{Found: true, Answer: "1200 per month"})
	require.Equal(t, model.StateAnswered, s.State)
	require.Empty(t, s.PendingQuery)
	require.Equal(t, model.MessageDocumentAnswer, effects[0].(Show).Message.Kind)
}

func TestMathAlwaysEndsTurn(t *testing.T) {
	s, _ := Step(newSession(), Input{Query: "x^3 = 8"})
	s, effects := Step(s, Classified{Category: model.CategoryMath})
	require.Equal(t, []Effect{SolveMath{Query: "x^3 = 8", Category: model.CategoryMath}}, effects)

	s, effects = Step(s, MathSolved{OK: false, Answer: "only linear and quadratic equations are supported"})
	require.Equal(t, model.StateAnswered, s.State)
	require.Empty(t, s.PendingQuery)
	require.Len(t, effects, 1)
	msg := effects[0].(Show).Message
	require.Equal(t, model.MessageError, msg.Kind)
	require.Contains(t, msg.Text, "Could not solve")
}

func TestPriceFallsBackToWebWithoutConsent(t *testing.T) {
	s, _ := Step(newSession(), Input{Query: "price of ZZZZ"})
	s, effects := Step(s, Classified{Category: model.CategoryPrice})
	require.Equal(t, []Effect{Quote{Query: "price of ZZZZ"}}, effects)

	s, effects = Step(s, Quoted{Found: false})
	require.Equal(t, []Effect{WebSearch{Query: "price of ZZZZ"}}, effects)
	require.NotEqual(t, model.StateAwaitingConsent, s.State)

	s, _ = Step(s, WebAnswered{Answer: "No data."})
	require.Equal(t, model.StateAnswered, s.State)
}

func TestPriceFound(t *testing.T) {
	s, _ := Step(newSession(), Input{Query: "price of INFY"})
	s, _ = Step(s, Classified{Category: model.CategoryPrice})
	s, effects := Step(s, Quoted{Found: true, Answer: "INFY 110"})
	require.Equal(t, model.StateAnswered, s.State)
	require.Equal(t, model.MessagePriceQuote, effects[0].(Show).Message.Kind)
}

func TestAdvisorAnswersAreRewritten(t *testing.T) {
	s, _ := Step(newSession(), Input{Query: "should I invest in gold"})
	s, _ = Step(s, Classified{Category: model.CategoryAdvisor})
	s, effects := Step(s, Retrieved{Found: true, Answer: "gold returned 8%"})
	require.Len(t, effects, 1)
	adv := effects[0].(Advise)
	require.Equal(t, "gold returned 8%", adv.Facts)
	require.NotEmpty(t, s.PendingQuery)

	s, effects = Step(s, Advised{OK: true, Answer: "Analysis...", Fallback: adv.Fallback})
	require.Equal(t, model.StateAnswered, s.State)
	require.Equal(t, model.MessageAdvice, effects[0].(Show).Message.Kind)
}

func TestAdvisorFallbackOnFailure(t *testing.T) {
	s, _ := Step(newSession(), Input{Query: "should I invest in gold"})
	s, _ = Step(s, Classified{Category: model.CategoryAdvisor})
	s, effects := Step(s, Retrieved{Found: true, Answer: "gold returned 8%"})
	adv := effects[0].(Advise)
	_, effects = Step(s, Advised{OK: false, Fallback: adv.Fallback})
	require.Equal(t, adv.Fallback, effects[0].(Show).Message)
}

func TestForcedWebBlocksNewQuery(t *testing.T) {
	s, _ := Step(newSession(), Input{Query: "capital of France"})
	s, _ = Step(s, Classified{Category: model.CategoryGeneral})
	s, _ = Step(s, Retrieved{Found: false})
	s, _ = Step(s, Consent{Allow: true})

	// a new query arriving while the forced search is in flight resumes
	// the search instead of replacing it
	s, effects := Step(s, Input{Query: "something else"})
	require.Equal(t, "capital of France", s.PendingQuery)
	require.Equal(t, "capital of France", s.LastSeenQuery)
	require.Equal(t, []Effect{WebSearch{Query: "capital of France"}}, effects)

	s, _ = Step(s, WebAnswered{Answer: "Paris."})
	s, effects = Step(s, Input{Query: "something else"})
	require.Equal(t, "something else", s.PendingQuery)
	require.Equal(t, []Effect{Classify{Query: "something else"}}, effects)
}

func TestRetrievalFailureIsRetryable(t *testing.T) {
	s, _ := Step(newSession(), Input{Query: "rent budget"})
	s, _ = Step(s, Classified{Category: model.CategoryGeneral})
	s, effects := Step(s, Retrieved{Err: fmt.Errorf("embed: %w", appErr.ErrTimeout)})
	require.Equal(t, model.StateIdle, s.State)
	require.Empty(t, s.PendingQuery)
	msg := effects[0].(Show).Message
	require.True(t, msg.Retryable)
	require.Equal(t, RetrievalTimeout, msg.Text)

	s, effects = Step(s, Input{Query: "rent budget"})
	require.Equal(t, "rent budget", s.PendingQuery)
	require.Equal(t, []Effect{Classify{Query: "rent budget"}}, effects)

	s, _ = Step(s, Classified{Category: model.CategoryGeneral})
	_, effects = Step(s, Retrieved{Err: errors.New("boom")})
	require.Equal(t, RetrievalUnavail, effects[0].(Show).Message.Text)
}

func TestConsentWithoutPendingQuery(t *testing.T) {
	s, effects := Step(newSession(), Consent{Allow: true})
	require.Equal(t, model.PermissionUnset, s.WebPermission)
	require.False(t, s.ForceWeb)
	require.Equal(t, NothingPending, effects[0].(Show).Message.Text)
}

func TestRepeatedInputWhileAwaitingConsent(t *testing.T) {
	s, _ := Step(newSession(), Input{Query: "capital of France"})
	s, _ = Step(s, Classified{Category: model.CategoryGeneral})
	s, _ = Step(s, Retrieved{Found: false})

	s, effects := Step(s, Input{Query: "capital of France"})
	require.Equal(t, model.StateAwaitingConsent, s.State)
	require.Len(t, effects, 2)
	require.IsType(t, AskConsent{}, effects[1])
}

func TestCancel(t *testing.T) {
	s, _ := Step(newSession(), Input{Query: "capital of France"})
	s, _ = Step(s, Classified{Category: model.CategoryGeneral})
	s, _ = Step(s, Retrieved{Found: false})
	s, _ = Step(s, Cancel{})
	require.Equal(t, model.StateCancelled, s.State)
	require.Empty(t, s.PendingQuery)

	// late outcomes for the cancelled turn are ignored
	s2, effects := Step(s, WebAnswered{Answer: "late"})
	require.Equal(t, s, s2)
	require.Nil(t, effects)
}
