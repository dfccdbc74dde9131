package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xxxsen/finwise/internal/ai"
	"github.com/xxxsen/finwise/internal/classify"
	"github.com/xxxsen/finwise/internal/consent"
	"github.com/xxxsen/finwise/internal/mathsolver"
	"github.com/xxxsen/finwise/internal/model"
	appErr "github.com/xxxsen/finwise/internal/pkg/errors"
	"github.com/xxxsen/finwise/internal/quote"
	"github.com/xxxsen/finwise/internal/websearch"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mapSessions avoids the expiring LRU store, whose janitor goroutine
// outlives the test.
type mapSessions struct {
	mu    sync.Mutex
	items map[string]model.Session
}

func newMapSessions() *mapSessions {
	return &mapSessions{items: map[string]model.Session{}}
}

func (m *mapSessions) Get(ctx context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.items[id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &s, nil
}

func (m *mapSessions) Save(ctx context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[s.ID] = *s
	return nil
}

func (m *mapSessions) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

type stubRetriever struct {
	calls  atomic.Int32
	answer string
	err    error
}

func (r *stubRetriever) Retrieve(ctx context.Context, query string) (string, error) {
	r.calls.Add(1)
	return r.answer, r.err
}

type stubPrices struct {
	quote *quote.Quote
}

func (p *stubPrices) Lookup(ctx context.Context, query string) (*quote.Quote, bool) {
	return p.quote, p.quote != nil
}

type stubWeb struct {
	calls atomic.Int32
}

func (w *stubWeb) Answer(ctx context.Context, query string) *websearch.Answer {
	w.calls.Add(1)
	return &websearch.Answer{Text: "web says: " + query, Sources: []string{"https://example.com/a"}, Titles: []string{"Remote Work Policy"}}
}

type stubAdvisor struct {
	err error
}

func (a *stubAdvisor) Advise(ctx context.Context, question string, facts string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	return "advice based on " + facts, nil
}

type routerFixture struct {
	svc       *RouterService
	retriever *stubRetriever
	prices    *stubPrices
	web       *stubWeb
	advisor   *stubAdvisor
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	f := &routerFixture{
		retriever: &stubRetriever{answer: ai.NotFoundSentinel},
		prices:    &stubPrices{},
		web:       &stubWeb{},
		advisor:   &stubAdvisor{},
	}
	svc, err := NewRouterService(RouterDeps{
		Sessions:        newMapSessions(),
		Classifier:      classify.NewKeywordClassifier(),
		Retriever:       f.retriever,
		Math:            mathsolver.New(),
		Prices:          f.prices,
		Web:             f.web,
		Advisor:         f.advisor,
		RetrieveTimeout: time.Second,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestNewRouterServiceRequiresDeps(t *testing.T) {
	_, err := NewRouterService(RouterDeps{})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestRouterConsentGranted(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture(t)
	sess, err := f.svc.NewSession(ctx)
	require.NoError(t, err)

	reply, err := f.svc.Ask(ctx, sess.ID, "What is the remote work policy?")
	require.NoError(t, err)
	assert.True(t, reply.AwaitingConsent)
	assert.Equal(t, consent.ConsentPrompt, reply.ConsentPrompt)
	assert.Equal(t, model.StateAwaitingConsent, reply.State)
	require.Len(t, reply.Messages, 1)
	assert.Equal(t, consent.NotFoundInDocs, reply.Messages[0].Text)

	reply, err = f.svc.Consent(ctx, sess.ID, true)
	require.NoError(t, err)
	assert.False(t, reply.AwaitingConsent)
	assert.Equal(t, model.StateAnswered, reply.State)
	require.Len(t, reply.Messages, 1)
	assert.Equal(t, model.MessageWebAnswer, reply.Messages[0].Kind)
	assert.Equal(t, []string{"https://example.com/a"}, reply.Messages[0].Sources)
	assert.Equal(t, []string{"Remote Work Policy"}, reply.Messages[0].SourceTitles)
	assert.Equal(t, int32(1), f.retriever.calls.Load())

	stored, err := f.svc.Session(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.PendingQuery)
	assert.Equal(t, "What is the remote work policy?", stored.LastSeenQuery)
}

func TestRouterConsentDeclined(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture(t)

	_, err := f.svc.Ask(ctx, "s1", "What is the remote work policy?")
	require.NoError(t, err)
	reply, err := f.svc.Consent(ctx, "s1", false)
	require.NoError(t, err)
	assert.Equal(t, model.StateCancelled, reply.State)
	require.Len(t, reply.Messages, 1)
	assert.Equal(t, consent.SearchCancelled, reply.Messages[0].Text)
	assert.Equal(t, int32(0), f.web.calls.Load())
}

func TestRouterMath(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture(t)

	reply, err := f.svc.Ask(ctx, "s1", "2+3*4")
	require.NoError(t, err)
	require.Len(t, reply.Messages, 1)
	assert.Equal(t, model.MessageMathResult, reply.Messages[0].Kind)
	assert.Contains(t, reply.Messages[0].Text, "14")
	assert.Equal(t, int32(0), f.retriever.calls.Load())
}

func TestRouterPrice(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture(t)

	reply, err := f.svc.Ask(ctx, "s1", "What is the price of Apple stock?")
	require.NoError(t, err)
	require.Len(t, reply.Messages, 1)
	assert.Equal(t, model.MessageWebAnswer, reply.Messages[0].Kind)
	assert.False(t, reply.AwaitingConsent)

	f.prices.quote = &quote.Quote{Symbol: "MSFT", Currency: "USD", Price: 410.5}
	reply, err = f.svc.Ask(ctx, "s1", "What is the price of Microsoft stock?")
	require.NoError(t, err)
	require.Len(t, reply.Messages, 1)
	assert.Equal(t, model.MessagePriceQuote, reply.Messages[0].Kind)
	assert.Contains(t, reply.Messages[0].Text, "410.50")
	assert.Equal(t, int32(1), f.web.calls.Load())
}

func TestRouterAdvisor(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture(t)
	f.retriever.answer = "index funds have low fees"

	reply, err := f.svc.Ask(ctx, "s1", "Should I invest in index funds?")
	require.NoError(t, err)
	require.Len(t, reply.Messages, 1)
	assert.Equal(t, model.MessageAdvice, reply.Messages[0].Kind)
	assert.Equal(t, "advice based on index funds have low fees", reply.Messages[0].Text)

	f.advisor.err = errors.New("model down")
	reply, err = f.svc.Ask(ctx, "s1", "Should I invest in bonds?")
	require.NoError(t, err)
	require.Len(t, reply.Messages, 1)
	assert.Equal(t, model.MessageDocumentAnswer, reply.Messages[0].Kind)
	assert.Equal(t, "index funds have low fees", reply.Messages[0].Text)
}

func TestRouterRetryableFailure(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture(t)
	f.retriever.err = context.DeadlineExceeded

	reply, err := f.svc.Ask(ctx, "s1", "What is the remote work policy?")
	require.NoError(t, err)
	require.Len(t, reply.Messages, 1)
	assert.True(t, reply.Messages[0].Retryable)
	assert.Equal(t, consent.RetrievalTimeout, reply.Messages[0].Text)
	assert.Equal(t, model.StateIdle, reply.State)

	f.retriever.err = nil
	f.retriever.answer = "three days a week"
	reply, err = f.svc.Ask(ctx, "s1", "What is the remote work policy?")
	require.NoError(t, err)
	require.Len(t, reply.Messages, 1)
	assert.Equal(t, model.MessageDocumentAnswer, reply.Messages[0].Kind)
	assert.Equal(t, int32(2), f.retriever.calls.Load())
}

func TestRouterConsentWithoutPending(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture(t)

	reply, err := f.svc.Consent(ctx, "s1", true)
	require.NoError(t, err)
	require.Len(t, reply.Messages, 1)
	assert.Equal(t, consent.NothingPending, reply.Messages[0].Text)
	assert.Equal(t, int32(0), f.web.calls.Load())
}

func TestRouterCancelAndDelete(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture(t)

	_, err := f.svc.Ask(ctx, "s1", "What is the remote work policy?")
	require.NoError(t, err)
	reply, err := f.svc.Cancel(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.StateCancelled, reply.State)
	assert.Empty(t, reply.PendingQuery)

	require.NoError(t, f.svc.DeleteSession(ctx, "s1"))
	_, err = f.svc.Session(ctx, "s1")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	_, err = f.svc.Ask(ctx, " ", "hello")
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestRouterConcurrentSessions(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture(t)
	f.retriever.answer = "from the documents"

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("session-%d", i%5)
			_, err := f.svc.Ask(ctx, id, fmt.Sprintf("What does section %d say?", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(20), f.retriever.calls.Load())
}
