package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	appErr "github.com/xxxsen/finwise/internal/pkg/errors"
)

// ErrUnavailable is returned by providers that are not configured.
var ErrUnavailable = appErr.ErrUnavailable

type IAIProvider interface {
	Name() string
	Generate(ctx context.Context, model string, prompt string) (string, error)
}

type IEmbedProvider interface {
	Name() string
	Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error)
}

type IGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type IEmbedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
	ModelName() string
}

const (
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
)

type generator struct {
	provider IAIProvider
	model    string
}

func NewGenerator(p IAIProvider, model string) IGenerator {
	return &generator{provider: p, model: model}
}

func (g *generator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.provider.Generate(ctx, g.model, prompt)
}

type embedder struct {
	provider IEmbedProvider
	model    string
}

func NewEmbedder(p IEmbedProvider, model string) IEmbedder {
	return &embedder{provider: p, model: model}
}

func (e *embedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return e.provider.Embed(ctx, e.model, text, taskType)
}

func (e *embedder) ModelName() string {
	return e.model
}

type ProviderFactory func(args interface{}) (IAIProvider, error)
type EmbedProviderFactory func(args interface{}) (IEmbedProvider, error)

var (
	registryMu    sync.RWMutex
	registry      = map[string]ProviderFactory{}
	embedRegistry = map[string]EmbedProviderFactory{}
)

func Register(name string, factory ProviderFactory) {
	key := normalizeName(name)
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func RegisterEmbed(name string, factory EmbedProviderFactory) {
	key := normalizeName(name)
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	embedRegistry[key] = factory
	registryMu.Unlock()
}

func NewProvider(name string, args interface{}) (IAIProvider, error) {
	key := normalizeName(name)
	if key == "" {
		return nil, fmt.Errorf("ai provider name is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai provider: %s", name)
	}
	return factory(args)
}

func NewEmbedProvider(name string, args interface{}) (IEmbedProvider, error) {
	key := normalizeName(name)
	if key == "" {
		return nil, fmt.Errorf("embed provider name is required")
	}
	registryMu.RLock()
	factory := embedRegistry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported embed provider: %s", name)
	}
	return factory(args)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("ai provider config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode ai provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode ai provider config: %w", err)
	}
	return nil
}
