package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/finwise/internal/classify"
	"github.com/xxxsen/finwise/internal/consent"
	"github.com/xxxsen/finwise/internal/mathsolver"
	"github.com/xxxsen/finwise/internal/model"
	appErr "github.com/xxxsen/finwise/internal/pkg/errors"
	"github.com/xxxsen/finwise/internal/quote"
	"github.com/xxxsen/finwise/internal/websearch"
)

const (
	sessionStripes = 64
	maxRouteSteps  = 16
)

type SessionStore interface {
	Get(ctx context.Context, id string) (*model.Session, error)
	Save(ctx context.Context, s *model.Session) error
	Delete(ctx context.Context, id string) error
}

type Retriever interface {
	Retrieve(ctx context.Context, query string) (string, error)
}

type MathSolver interface {
	Solve(ctx context.Context, query string, category model.Category) (*mathsolver.Result, error)
}

type PriceLookup interface {
	Lookup(ctx context.Context, query string) (*quote.Quote, bool)
}

type WebAnswerer interface {
	Answer(ctx context.Context, query string) *websearch.Answer
}

type Advisor interface {
	Advise(ctx context.Context, question string, facts string) (string, error)
}

type RouterDeps struct {
	Sessions   SessionStore
	Classifier classify.Classifier
	Retriever  Retriever
	Math       MathSolver
	Prices     PriceLookup
	Web        WebAnswerer
	Advisor    Advisor
	// RetrieveTimeout bounds one document search, zero means no bound.
	RetrieveTimeout time.Duration
}

// RouterService drives consent.Step for one session at a time and
// executes the effects it asks for.
type RouterService struct {
	deps  RouterDeps
	locks [sessionStripes]sync.Mutex
	now   func() time.Time
}

func NewRouterService(deps RouterDeps) (*RouterService, error) {
	if deps.Sessions == nil || deps.Classifier == nil || deps.Retriever == nil ||
		deps.Math == nil || deps.Prices == nil || deps.Web == nil || deps.Advisor == nil {
		return nil, fmt.Errorf("router dependency missing: %w", appErr.ErrInvalid)
	}
	return &RouterService{deps: deps, now: time.Now}, nil
}

func (s *RouterService) NewSession(ctx context.Context) (*model.Session, error) {
	sess := model.NewSession(uuid.NewString(), s.now().UnixMilli())
	if err := s.deps.Sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("session created", zap.String("session_id", sess.ID))
	return sess, nil
}

func (s *RouterService) Session(ctx context.Context, id string) (*model.Session, error) {
	return s.deps.Sessions.Get(ctx, id)
}

func (s *RouterService) DeleteSession(ctx context.Context, id string) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()
	return s.deps.Sessions.Delete(ctx, id)
}

func (s *RouterService) Classify(ctx context.Context, query string) model.Category {
	return s.deps.Classifier.Classify(ctx, query)
}

// Ask submits a query. An empty query resumes the pending turn, if any.
func (s *RouterService) Ask(ctx context.Context, sessionID, query string) (*model.Reply, error) {
	return s.run(ctx, sessionID, consent.Input{Query: query})
}

// Consent answers the web search question of the pending turn.
func (s *RouterService) Consent(ctx context.Context, sessionID string, allow bool) (*model.Reply, error) {
	return s.run(ctx, sessionID, consent.Consent{Allow: allow})
}

func (s *RouterService) Cancel(ctx context.Context, sessionID string) (*model.Reply, error) {
	return s.run(ctx, sessionID, consent.Cancel{})
}

func (s *RouterService) run(ctx context.Context, sessionID string, first consent.Event) (*model.Reply, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("session id required: %w", appErr.ErrInvalid)
	}
	lock := s.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	logger := logutil.GetLogger(ctx).With(zap.String("session_id", sessionID))
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	reply := &model.Reply{SessionID: sessionID, Messages: []model.Message{}}
	queue := []consent.Event{first}
	for step := 0; len(queue) > 0; step++ {
		if step >= maxRouteSteps {
			return nil, fmt.Errorf("routing did not settle after %d steps: %w", step, appErr.ErrInternal)
		}
		ev := queue[0]
		queue = queue[1:]
		prev := sess.State
		next, effects := consent.Step(*sess, ev)
		next.Mtime = s.now().UnixMilli()
		*sess = next
		// persist before running effects so a crash mid-search keeps the turn
		if err := s.deps.Sessions.Save(ctx, sess); err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}
		logger.Debug("route step",
			zap.String("event", fmt.Sprintf("%T", ev)),
			zap.String("from", string(prev)),
			zap.String("to", string(sess.State)),
			zap.Int("effects", len(effects)))
		for _, eff := range effects {
			if follow := s.execute(ctx, eff, reply); follow != nil {
				queue = append(queue, follow)
			}
		}
	}
	reply.State = sess.State
	reply.Category = sess.Category
	reply.PendingQuery = sess.PendingQuery
	if !reply.AwaitingConsent {
		reply.ConsentPrompt = ""
	}
	return reply, nil
}

func (s *RouterService) execute(ctx context.Context, eff consent.Effect, reply *model.Reply) consent.Event {
	logger := logutil.GetLogger(ctx)
	switch e := eff.(type) {
	case consent.Show:
		reply.Messages = append(reply.Messages, e.Message)
	case consent.AskConsent:
		reply.AwaitingConsent = true
		reply.ConsentPrompt = e.Prompt
	case consent.Classify:
		cat := s.deps.Classifier.Classify(ctx, e.Query)
		logger.Info("query classified", zap.String("category", string(cat)))
		return consent.Classified{Category: cat}
	case consent.SolveMath:
		res, err := s.deps.Math.Solve(ctx, e.Query, e.Category)
		if err != nil {
			logger.Info("math query not solved", zap.Error(err))
			return consent.MathSolved{OK: false, Answer: mathFailureReason(err)}
		}
		return consent.MathSolved{OK: true, Title: res.Title(), Answer: res.Text()}
	case consent.Quote:
		q, ok := s.deps.Prices.Lookup(ctx, e.Query)
		if !ok {
			return consent.Quoted{}
		}
		return consent.Quoted{Found: true, Answer: q.Text()}
	case consent.Retrieve:
		rctx := ctx
		if s.deps.RetrieveTimeout > 0 {
			var cancel context.CancelFunc
			rctx, cancel = context.WithTimeout(ctx, s.deps.RetrieveTimeout)
			defer cancel()
		}
		answer, err := s.deps.Retriever.Retrieve(rctx, e.Query)
		if err != nil {
			logger.Error("document search failed", zap.Error(err))
			return consent.Retrieved{Err: appErr.FromBackend(err)}
		}
		return consent.Retrieved{Found: !IsNotFound(answer), Answer: answer}
	case consent.WebSearch:
		ans := s.deps.Web.Answer(ctx, e.Query)
		return consent.WebAnswered{Answer: ans.Text, Sources: ans.Sources, Titles: ans.Titles, Degraded: ans.Degraded}
	case consent.Advise:
		text, err := s.deps.Advisor.Advise(ctx, e.Query, e.Facts)
		if err != nil {
			logger.Warn("advisor rewrite failed, showing facts", zap.Error(err))
			return consent.Advised{Fallback: e.Fallback}
		}
		return consent.Advised{OK: true, Answer: text, Fallback: e.Fallback}
	default:
		logger.Error("unknown route effect", zap.String("effect", fmt.Sprintf("%T", eff)))
	}
	return nil
}

func (s *RouterService) load(ctx context.Context, id string) (*model.Session, error) {
	sess, err := s.deps.Sessions.Get(ctx, id)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, appErr.ErrNotFound) {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return model.NewSession(id, s.now().UnixMilli()), nil
}

func (s *RouterService) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &s.locks[h.Sum32()%sessionStripes]
}

func mathFailureReason(err error) string {
	msg := err.Error()
	for _, prefix := range []string{appErr.ErrInvalid.Error() + ": ", appErr.ErrUnsupported.Error() + ": "} {
		msg = strings.TrimPrefix(msg, prefix)
	}
	return msg
}
