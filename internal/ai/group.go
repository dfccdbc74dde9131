package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/finwise/internal/config"
)

type GeneratorEntry struct {
	Name      string
	Generator IGenerator
}

type EmbedderEntry struct {
	Name     string
	Embedder IEmbedder
}

type groupGenerator struct {
	items []GeneratorEntry
}

// NewGroupGenerator tries each generator in order until one succeeds.
func NewGroupGenerator(items []GeneratorEntry) IGenerator {
	if len(items) == 0 {
		return nil
	}
	return &groupGenerator{items: items}
}

func (g *groupGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for i, item := range g.items {
		if item.Generator == nil {
			continue
		}
		res, err := item.Generator.Generate(ctx, prompt)
		if err == nil {
			return res, nil
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn("generator failed", zap.Int("index", i), zap.String("name", item.Name), zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		return "", fmt.Errorf("generator not configured")
	}
	return "", lastErr
}

type groupEmbedder struct {
	items []EmbedderEntry
}

// NewGroupEmbedder fails over between embedders. All entries must produce
// vectors of the same model, otherwise stored and query vectors will not
// be comparable.
func NewGroupEmbedder(items []EmbedderEntry) IEmbedder {
	if len(items) == 0 {
		return nil
	}
	return &groupEmbedder{items: items}
}

func (g *groupEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	var lastErr error
	for i, item := range g.items {
		if item.Embedder == nil {
			continue
		}
		res, err := item.Embedder.Embed(ctx, text, taskType)
		if err == nil {
			return res, nil
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn("embedder failed", zap.Int("index", i), zap.String("name", item.Name), zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	return nil, lastErr
}

func (g *groupEmbedder) ModelName() string {
	for _, item := range g.items {
		if item.Embedder != nil {
			return item.Embedder.ModelName()
		}
	}
	return ""
}

func entryName(p config.ProviderConfig) string {
	if strings.TrimSpace(p.Name) != "" {
		return p.Name
	}
	return p.Provider + ":" + p.Model
}

// BuildGenerator turns the configured generator list into one fail-over
// generator.
func BuildGenerator(items []config.ProviderConfig) (IGenerator, error) {
	entries := make([]GeneratorEntry, 0, len(items))
	for _, item := range items {
		p, err := NewProvider(item.Provider, item.Data)
		if err != nil {
			return nil, fmt.Errorf("init generator %s: %w", entryName(item), err)
		}
		entries = append(entries, GeneratorEntry{Name: entryName(item), Generator: NewGenerator(p, item.Model)})
	}
	gen := NewGroupGenerator(entries)
	if gen == nil {
		return nil, fmt.Errorf("no generator configured")
	}
	return gen, nil
}

func BuildEmbedder(items []config.ProviderConfig) (IEmbedder, error) {
	entries := make([]EmbedderEntry, 0, len(items))
	for _, item := range items {
		p, err := NewEmbedProvider(item.Provider, item.Data)
		if err != nil {
			return nil, fmt.Errorf("init embedder %s: %w", entryName(item), err)
		}
		entries = append(entries, EmbedderEntry{Name: entryName(item), Embedder: NewEmbedder(p, item.Model)})
	}
	emb := NewGroupEmbedder(entries)
	if emb == nil {
		return nil, fmt.Errorf("no embedder configured")
	}
	return emb, nil
}
