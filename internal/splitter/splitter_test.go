package splitter

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func TestNewValidatesOverlap(t *testing.T) {
	_, err := New(100, 100)
	require.Error(t, err)
	_, err = New(100, 150)
	require.Error(t, err)
	_, err = New(0, 0)
	require.Error(t, err)
	_, err = New(100, -1)
	require.Error(t, err)
	s, err := New(1000, 150)
	require.NoError(t, err)
	require.Equal(t, 1000, s.Size())
	require.Equal(t, 150, s.Overlap())
}

func TestSplitRespectsSizeAndOverlap(t *testing.T) {
	s, err := New(50, 10)
	require.NoError(t, err)
	text := words(300)
	chunks := s.Split(text)
	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		require.LessOrEqual(t, len([]rune(c)), 50, "chunk %d too long", i)
		if i == 0 {
			continue
		}
		first := strings.Fields(c)[0]
		require.Contains(t, strings.Fields(chunks[i-1]), first, "chunk %d does not overlap previous", i)
	}
	for _, w := range strings.Fields(text) {
		found := false
		for _, c := range chunks {
			if strings.Contains(" "+c+" ", " "+w+" ") {
				found = true
				break
			}
		}
		require.True(t, found, "word %s lost", w)
	}
}

func TestSplitIsDeterministic(t *testing.T) {
	s, _ := New(40, 5)
	text := "alpha beta\n\ngamma delta epsilon\nzeta eta theta iota kappa lambda mu nu xi omicron"
	require.Equal(t, s.Split(text), s.Split(text))
}

func TestSplitPrefersParagraphs(t *testing.T) {
	s, _ := New(30, 0)
	chunks := s.Split("first paragraph here\n\nsecond paragraph here")
	require.Equal(t, []string{"first paragraph here", "second paragraph here"}, chunks)
}

func TestShortAndEmptyText(t *testing.T) {
	s, _ := New(100, 10)
	require.Nil(t, s.Split("   \n "))
	require.Equal(t, []string{"tiny"}, s.Split(" tiny "))
}

func TestHardSplitWithoutSeparators(t *testing.T) {
	s, _ := New(10, 2)
	chunks := s.Split(strings.Repeat("a", 25))
	require.Len(t, chunks, 3)
	require.Equal(t, 25, len(strings.Join(chunks, "")))
	for _, c := range chunks {
		require.LessOrEqual(t, len(c), 10)
	}
}

func TestNormalize(t *testing.T) {
	require.Equal(t, "a\n\nb", Normalize("a  \r\n\r\n\r\n\nb  \n"))
}
