package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 1024

type anthropicConfig struct {
	APIKey    string `json:"api_key"`
	MaxTokens int    `json:"max_tokens"`
}

// anthropicProvider only generates; anthropic has no embedding endpoint.
type anthropicProvider struct {
	apiKey    string
	maxTokens int

	once   sync.Once
	client anthropic.Client
}

func (p *anthropicProvider) Name() string {
	return "anthropic"
}

func (p *anthropicProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	if p.apiKey == "" {
		return "", ErrUnavailable
	}
	p.once.Do(func() {
		p.client = anthropic.NewClient(option.WithAPIKey(p.apiKey))
	})
	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(p.maxTokens),
		Temperature: anthropic.Float(0),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("anthropic response has no text")
	}
	return strings.TrimSpace(sb.String()), nil
}

func createAnthropicFactory(args interface{}) (IAIProvider, error) {
	cfg := &anthropicConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultAnthropicMaxTokens
	}
	return &anthropicProvider{apiKey: strings.TrimSpace(cfg.APIKey), maxTokens: cfg.MaxTokens}, nil
}

func init() {
	Register("anthropic", createAnthropicFactory)
}
