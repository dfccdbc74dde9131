package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultOpenAIBaseURL     = "https://api.openai.com/v1"
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultOllamaBaseURL     = "http://localhost:11434/v1"
)

type openAIConfig struct {
	APIKey      string `json:"api_key"`
	BaseURL     string `json:"base_url"`
	HTTPReferer string `json:"http_referer"`
	XTitle      string `json:"x_title"`
}

// openAICompatible talks to any /chat/completions + /embeddings endpoint:
// openai itself, openrouter and a local ollama.
type openAICompatible struct {
	name        string
	apiKey      string
	baseURL     string
	httpReferer string
	xTitle      string
	keyRequired bool
	client      *http.Client
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIChatMsg `json:"messages"`
	Stream      bool            `json:"stream"`
	Temperature float64         `json:"temperature"`
}

type openAIChatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type openAIEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (p *openAICompatible) Name() string {
	return p.name
}

func (p *openAICompatible) Generate(ctx context.Context, model string, prompt string) (string, error) {
	reqBody := openAIChatRequest{
		Model:    model,
		Messages: []openAIChatMsg{{Role: "user", Content: prompt}},
		Stream:   false,
	}
	var out openAIChatResponse
	if err := p.post(ctx, "/chat/completions", reqBody, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%s response has no choices", p.name)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func (p *openAICompatible) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	_ = taskType
	var out openAIEmbedResponse
	if err := p.post(ctx, "/embeddings", openAIEmbedRequest{Model: model, Input: text}, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("%s response has no embeddings", p.name)
	}
	return out.Data[0].Embedding, nil
}

func (p *openAICompatible) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	if p.keyRequired && p.apiKey == "" {
		return ErrUnavailable
	}
	endpoint := strings.TrimRight(p.baseURL, "/") + path
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.httpReferer != "" {
		req.Header.Set("HTTP-Referer", p.httpReferer)
	}
	if p.xTitle != "" {
		req.Header.Set("X-Title", p.xTitle)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s request failed: %s: %s", p.name, resp.Status, strings.TrimSpace(string(raw)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func newOpenAICompatible(name, defaultBaseURL string, keyRequired bool, args interface{}) (*openAICompatible, error) {
	cfg := &openAIConfig{}
	if args != nil {
		if err := decodeConfig(args, cfg); err != nil {
			return nil, err
		}
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &openAICompatible{
		name:        name,
		apiKey:      strings.TrimSpace(cfg.APIKey),
		baseURL:     baseURL,
		httpReferer: cfg.HTTPReferer,
		xTitle:      cfg.XTitle,
		keyRequired: keyRequired,
		client:      &http.Client{},
	}, nil
}

func init() {
	for _, item := range []struct {
		name        string
		baseURL     string
		keyRequired bool
	}{
		{"openai", defaultOpenAIBaseURL, true},
		{"openrouter", defaultOpenRouterBaseURL, true},
		{"ollama", defaultOllamaBaseURL, false},
	} {
		item := item
		Register(item.name, func(args interface{}) (IAIProvider, error) {
			return newOpenAICompatible(item.name, item.baseURL, item.keyRequired, args)
		})
		RegisterEmbed(item.name, func(args interface{}) (IEmbedProvider, error) {
			return newOpenAICompatible(item.name, item.baseURL, item.keyRequired, args)
		})
	}
}
