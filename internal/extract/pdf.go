package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pdfText dumps every page content stream with pdfcpu and decodes the text
// showing operators found in them.
func pdfText(_ context.Context, data []byte) (string, error) {
	outDir, err := os.MkdirTemp("", "finwise-pdf-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContent(bytes.NewReader(data), outDir, "doc", nil, conf); err != nil {
		return "", fmt.Errorf("pdf content: %w", err)
	}
	files, err := filepath.Glob(filepath.Join(outDir, "*"))
	if err != nil {
		return "", err
	}
	sort.Slice(files, func(i, j int) bool { return pageNumber(files[i]) < pageNumber(files[j]) })

	pages := make([]string, 0, len(files))
	for _, file := range files {
		raw, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		if page := strings.TrimSpace(decodeContentStream(raw)); page != "" {
			pages = append(pages, page)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

func pageNumber(path string) int {
	base := filepath.Base(path)
	idx := strings.LastIndex(base, "_")
	if idx < 0 {
		return 0
	}
	var n int
	_, _ = fmt.Sscanf(base[idx+1:], "%d", &n)
	return n
}

// decodeContentStream pulls literal strings out of Tj/TJ/'/" operators and
// turns line-moving operators into newlines. Hex strings and font encodings
// other than the standard ones are not decoded.
func decodeContentStream(stream []byte) string {
	var (
		sb      strings.Builder
		pending strings.Builder
		inText  bool
	)
	flushLine := func() {
		if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteString("\n")
		}
	}
	i := 0
	for i < len(stream) {
		c := stream[i]
		switch {
		case c == '(':
			str, next := readLiteral(stream, i)
			pending.WriteString(str)
			i = next
			continue
		case c == '%':
			for i < len(stream) && stream[i] != '\n' && stream[i] != '\r' {
				i++
			}
			continue
		case isDelimiter(c):
			i++
			continue
		}
		start := i
		for i < len(stream) && !isDelimiter(stream[i]) && stream[i] != '(' {
			i++
		}
		switch string(stream[start:i]) {
		case "BT":
			inText = true
		case "ET":
			inText = false
			flushLine()
		case "Tj", "TJ":
			if inText {
				sb.WriteString(pending.String())
			}
			pending.Reset()
		case "'", "\"":
			flushLine()
			if inText {
				sb.WriteString(pending.String())
			}
			pending.Reset()
		case "T*", "Td", "TD":
			flushLine()
		default:
			// operands of other operators
		}
	}
	return sb.String()
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\n', '\r', '\t', '\f', 0, '[', ']', '<', '>', '/', ')':
		return true
	}
	return false
}

func readLiteral(stream []byte, start int) (string, int) {
	var sb strings.Builder
	depth := 0
	i := start
	for i < len(stream) {
		c := stream[i]
		switch c {
		case '\\':
			if i+1 < len(stream) {
				i++
				switch e := stream[i]; e {
				case 'n':
					sb.WriteByte('\n')
				case 'r', 't':
					sb.WriteByte(' ')
				case '(', ')', '\\':
					sb.WriteByte(e)
				default:
					if e >= '0' && e <= '7' {
						val := 0
						j := 0
						for j < 3 && i < len(stream) && stream[i] >= '0' && stream[i] <= '7' {
							val = val*8 + int(stream[i]-'0')
							i++
							j++
						}
						sb.WriteByte(byte(val))
						continue
					}
				}
			}
		case '(':
			if depth > 0 {
				sb.WriteByte(c)
			}
			depth++
		case ')':
			depth--
			if depth == 0 {
				return sb.String(), i + 1
			}
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
		i++
	}
	return sb.String(), i
}
