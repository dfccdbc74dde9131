// Package splitter cuts document text into overlapping chunks sized for the
// embedding backend.
package splitter

import (
	"fmt"
	"strings"
	"unicode"
)

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

type Splitter struct {
	size       int
	overlap    int
	separators []string
}

// New validates size and overlap. overlap must be smaller than size or the
// window would never advance.
func New(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Splitter{size: size, overlap: overlap, separators: defaultSeparators}, nil
}

func (s *Splitter) Size() int    { return s.size }
func (s *Splitter) Overlap() int { return s.overlap }

// Split is deterministic: the same text always yields the same chunks in the
// same order. Lengths are measured in runes.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	pieces := s.splitRecursive(text, s.separators)
	return s.merge(pieces)
}

// splitRecursive breaks text on the coarsest separator that keeps pieces
// under the size limit, descending to finer separators only for pieces that
// are still too long.
func (s *Splitter) splitRecursive(text string, separators []string) []string {
	if runeLen(text) <= s.size {
		return []string{text}
	}
	sep := separators[0]
	rest := separators[1:]
	if sep == "" {
		return hardSplit(text, s.size)
	}
	if !strings.Contains(text, sep) {
		return s.splitRecursive(text, rest)
	}
	parts := strings.SplitAfter(text, sep)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		if runeLen(part) > s.size {
			out = append(out, s.splitRecursive(part, rest)...)
			continue
		}
		out = append(out, part)
	}
	return out
}

// merge packs pieces into windows of at most size runes and seeds every new
// window with the trailing pieces of the previous one, up to overlap runes.
func (s *Splitter) merge(pieces []string) []string {
	var (
		chunks  []string
		window  []string
		winSize int
	)
	flush := func() {
		chunk := strings.TrimSpace(strings.Join(window, ""))
		if chunk != "" && (len(chunks) == 0 || chunks[len(chunks)-1] != chunk) {
			chunks = append(chunks, chunk)
		}
	}
	for _, piece := range pieces {
		n := runeLen(piece)
		if winSize+n > s.size && len(window) > 0 {
			flush()
			for winSize > s.overlap || (winSize+n > s.size && winSize > 0) {
				winSize -= runeLen(window[0])
				window = window[1:]
			}
		}
		window = append(window, piece)
		winSize += n
	}
	if len(window) > 0 {
		flush()
	}
	return chunks
}

func hardSplit(text string, size int) []string {
	runes := []rune(text)
	out := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}

// Normalize collapses runs of blank lines and trailing spaces, so cosmetic
// whitespace differences do not change chunk boundaries.
func Normalize(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.TrimRightFunc(line, unicode.IsSpace)
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
