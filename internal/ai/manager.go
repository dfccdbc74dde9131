package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	appErr "github.com/xxxsen/finwise/internal/pkg/errors"
)

// NotFoundSentinel is what a grounded answer must be when the supplied
// context does not contain the answer.
const NotFoundSentinel = "NOT_FOUND"

type ManagerConfig struct {
	Timeout       int
	MaxInputChars int
}

type Manager struct {
	generator IGenerator
	embedder  IEmbedder
	cfg       ManagerConfig
	now       func() time.Time
}

func NewManager(generator IGenerator, embedder IEmbedder, cfg ManagerConfig) *Manager {
	return &Manager{
		generator: generator,
		embedder:  embedder,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (m *Manager) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("embedder not configured: %w", ErrUnavailable)
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	vec, err := m.embedder.Embed(ctx, text, taskType)
	if err != nil {
		return nil, appErr.FromBackend(err)
	}
	return vec, nil
}

func (m *Manager) EmbeddingModelName() string {
	if m.embedder == nil {
		return ""
	}
	return m.embedder.ModelName()
}

func (m *Manager) GroundedAnswer(ctx context.Context, question string, contexts []string) (string, error) {
	prompt := fmt.Sprintf(`Answer strictly using the context below.
If the context does not contain the answer, reply with exactly %s and nothing else.

CONTEXT:
%s

QUESTION: %s`, NotFoundSentinel, m.clip(strings.Join(contexts, "\n\n")), question)
	return m.generateText(ctx, prompt)
}

func (m *Manager) SummarizeWeb(ctx context.Context, question string, results string) (string, error) {
	prompt := fmt.Sprintf(`Based on the following search results, provide a direct, concise answer to the question.
Be brief and to the point. Only include the most relevant information.
Do NOT mention source names or URLs in your answer; sources are displayed separately.

SEARCH RESULTS:
%s

QUESTION: %s

Provide a concise, direct answer (1-2 sentences max):`, m.clip(results), question)
	return m.generateText(ctx, prompt)
}

func (m *Manager) Advise(ctx context.Context, question string, facts string) (string, error) {
	prompt := fmt.Sprintf(`You are a certified senior financial advisor. Provide balanced, risk-aware guidance.

Current date: %s
User query: %s
Known facts: %s

Guidelines:
1. Tone: professional and objective.
2. Always state "Investing involves risk" when discussing markets.
3. Give clear strategic steps based on the facts.

Structure: Analysis -> Strategic Advice -> Risk Considerations.`, m.now().Format("January 2, 2006"), question, m.clip(facts))
	return m.generateText(ctx, prompt)
}

func (m *Manager) generateText(ctx context.Context, prompt string) (string, error) {
	if m.generator == nil {
		return "", fmt.Errorf("generator not configured: %w", ErrUnavailable)
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	resp, err := m.generator.Generate(ctx, prompt)
	if err != nil {
		return "", appErr.FromBackend(err)
	}
	return strings.TrimSpace(resp), nil
}

func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
	}
	return context.WithCancel(ctx)
}

func (m *Manager) clip(text string) string {
	max := m.cfg.MaxInputChars
	if max <= 0 || len(text) <= max {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
