package extract

import (
	"context"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// markdownText strips markdown syntax and keeps one line per block so the
// splitter still sees paragraph boundaries.
func markdownText(_ context.Context, data []byte) (string, error) {
	reader := text.NewReader(data)
	doc := goldmark.New().Parser().Parse(reader)
	source := reader.Source()

	var sb strings.Builder
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		block := blockText(node, source)
		if block == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(block)
	}
	return sb.String(), nil
}

func blockText(n ast.Node, source []byte) string {
	switch b := n.(type) {
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		var sb strings.Builder
		lines := b.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			sb.Write(line.Value(source))
		}
		return strings.TrimSpace(sb.String())
	}
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if node.Type() == ast.TypeBlock && node != n && sb.Len() > 0 {
				sb.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}
		switch t := node.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteString(" ")
			}
		case *ast.String:
			sb.Write(t.Value)
		case *ast.CodeSpan:
			for c := t.FirstChild(); c != nil; c = c.NextSibling() {
				if txt, ok := c.(*ast.Text); ok {
					sb.Write(txt.Segment.Value(source))
				}
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

// htmlText converts html to markdown first, then reuses the markdown path.
func htmlText(ctx context.Context, data []byte) (string, error) {
	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(string(data))
	if err != nil {
		return "", err
	}
	return markdownText(ctx, []byte(markdown))
}
