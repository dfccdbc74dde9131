package service

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"
)

const fakeDims = 256

// wordEmbedder hashes words into a fixed size bag-of-words vector.
type wordEmbedder struct {
	calls     atomic.Int32
	failAfter int32
}

func (e *wordEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	n := e.calls.Add(1)
	if e.failAfter > 0 && n > e.failAfter {
		return nil, errors.New("embedding backend down")
	}
	vec := make([]float32, fakeDims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%fakeDims]++
	}
	vec[0] += 0.01
	return vec, nil
}

type firstContextAnswerer struct {
	reply string
	err   error
}

func (a *firstContextAnswerer) GroundedAnswer(ctx context.Context, question string, contexts []string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	if a.reply != "" {
		return a.reply, nil
	}
	return contexts[0], nil
}

// gatedEmbedder blocks its first call until release is closed.
type gatedEmbedder struct {
	wordEmbedder
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedEmbedder() *gatedEmbedder {
	return &gatedEmbedder{entered: make(chan struct{}), release: make(chan struct{})}
}

func (e *gatedEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	first := false
	e.once.Do(func() { first = true })
	if first {
		close(e.entered)
		<-e.release
	}
	return e.wordEmbedder.Embed(ctx, text, taskType)
}
