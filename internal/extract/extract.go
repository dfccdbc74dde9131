// Package extract turns uploaded files into plain text for ingestion.
package extract

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/finwise/internal/pkg/errors"
)

type Func func(ctx context.Context, data []byte) (string, error)

var byExt = map[string]Func{
	".txt":      plainText,
	".text":     plainText,
	".md":       markdownText,
	".markdown": markdownText,
	".html":     htmlText,
	".htm":      htmlText,
	".pdf":      pdfText,
}

// Supported reports whether name has an extension we can read.
func Supported(name string) bool {
	_, ok := byExt[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Text extracts the textual content of an upload. The extension decides the
// format; when it is missing the content is sniffed.
func Text(ctx context.Context, name string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", appErr.ErrEmptyUpload
	}
	ext := strings.ToLower(filepath.Ext(name))
	fn, ok := byExt[ext]
	if !ok {
		fn, ok = sniff(data)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", appErr.ErrUnsupported, name)
	}
	text, err := fn(ctx, data)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", name, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: %s has no text", appErr.ErrEmptyUpload, name)
	}
	logutil.GetLogger(ctx).Debug("text extracted", zap.String("file", name), zap.Int("chars", len(text)))
	return text, nil
}

func sniff(data []byte) (Func, bool) {
	ct := http.DetectContentType(data)
	switch {
	case strings.HasPrefix(ct, "application/pdf"):
		return pdfText, true
	case strings.HasPrefix(ct, "text/html"):
		return htmlText, true
	case strings.HasPrefix(ct, "text/plain"):
		return plainText, true
	}
	return nil, false
}

func plainText(_ context.Context, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("text is not valid utf-8")
	}
	return string(data), nil
}
