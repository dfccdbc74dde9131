package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"
)

type geminiConfig struct {
	APIKey string `json:"api_key"`
}

// geminiClient lazily builds one genai client and reuses it for every call.
type geminiClient struct {
	apiKey string
	mu     sync.Mutex
	client *genai.Client
}

func (g *geminiClient) get(ctx context.Context) (*genai.Client, error) {
	if g.apiKey == "" {
		return nil, ErrUnavailable
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	g.client = client
	return client, nil
}

// Reset drops the cached client so the next call builds a new one.
func (g *geminiClient) Reset() {
	g.mu.Lock()
	g.client = nil
	g.mu.Unlock()
}

type geminiProvider struct {
	*geminiClient
}

func (p *geminiProvider) Name() string {
	return "gemini"
}

func (p *geminiProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	client, err := p.get(ctx)
	if err != nil {
		return "", err
	}
	temperature := float32(0)
	resp, err := client.Models.GenerateContent(
		ctx,
		model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{Temperature: &temperature},
	)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text()), nil
}

type geminiEmbedProvider struct {
	*geminiClient
}

func (p *geminiEmbedProvider) Name() string {
	return "gemini"
}

func (p *geminiEmbedProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	client, err := p.get(ctx)
	if err != nil {
		return nil, err
	}
	var config *genai.EmbedContentConfig
	if taskType != "" {
		config = &genai.EmbedContentConfig{
			TaskType: taskType,
		}
	}
	resp, err := client.Models.EmbedContent(
		ctx,
		model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: text}}}},
		config,
	)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("no embedding values returned")
	}
	return resp.Embeddings[0].Values, nil
}

func newGeminiClient(args interface{}) (*geminiClient, error) {
	cfg := &geminiConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	return &geminiClient{apiKey: strings.TrimSpace(cfg.APIKey)}, nil
}

func createGeminiFactory(args interface{}) (IAIProvider, error) {
	client, err := newGeminiClient(args)
	if err != nil {
		return nil, err
	}
	return &geminiProvider{geminiClient: client}, nil
}

func createGeminiEmbedFactory(args interface{}) (IEmbedProvider, error) {
	client, err := newGeminiClient(args)
	if err != nil {
		return nil, err
	}
	return &geminiEmbedProvider{geminiClient: client}, nil
}

func init() {
	Register("gemini", createGeminiFactory)
	RegisterEmbed("gemini", createGeminiEmbedFactory)
}
