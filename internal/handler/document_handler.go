package handler

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/finwise/internal/extract"
	"github.com/xxxsen/finwise/internal/model"
	"github.com/xxxsen/finwise/internal/pkg/errcode"
	appErr "github.com/xxxsen/finwise/internal/pkg/errors"
	"github.com/xxxsen/finwise/internal/pkg/response"
	"github.com/xxxsen/finwise/internal/service"
)

type DocStore interface {
	Ingest(ctx context.Context, inputs []model.IngestInput, progress service.IngestProgress) (*model.IngestResult, error)
	StoredDocuments(ctx context.Context) ([]service.StoredDocument, error)
	Count(ctx context.Context) (int, error)
	DeleteByName(ctx context.Context, fileName string) (bool, error)
	DeleteAll(ctx context.Context) (bool, error)
	OpenArchive(ctx context.Context, hash string) (io.ReadCloser, error)
}

type DocumentHandler struct {
	docs     DocStore
	maxBytes int64
}

func NewDocumentHandler(docs DocStore, maxUploadMB int) *DocumentHandler {
	return &DocumentHandler{docs: docs, maxBytes: int64(maxUploadMB) * 1024 * 1024}
}

type uploadResponse struct {
	*model.IngestResult
	Error     string `json:"error,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

type listResponse struct {
	Documents    []service.StoredDocument `json:"documents"`
	TotalEntries int                      `json:"total_entries"`
}

// Upload extracts every file of the "files" form field and ingests the
// readable ones. Files that cannot be read are reported as failed next
// to the ingest outcome instead of failing the request.
func (h *DocumentHandler) Upload(c *gin.Context) {
	ctx := c.Request.Context()
	form, err := c.MultipartForm()
	if err != nil || len(form.File["files"]) == 0 {
		response.Error(c, errcode.ErrInvalidFile, "files are required")
		return
	}
	var (
		inputs   []model.IngestInput
		rejected []model.IngestFailure
	)
	for _, fh := range form.File["files"] {
		in, err := h.readUpload(ctx, fh)
		if err != nil {
			rejected = append(rejected, model.IngestFailure{FileName: fh.Filename, Reason: err.Error()})
			continue
		}
		inputs = append(inputs, *in)
	}
	progress := func(name string, done, total int) {
		logutil.GetLogger(ctx).Debug("ingest progress", zap.String("file", name), zap.Int("done", done), zap.Int("total", total))
	}
	res, err := h.docs.Ingest(ctx, inputs, progress)
	if res == nil {
		handleError(c, err)
		return
	}
	failed := make([]model.IngestFailure, 0, len(rejected)+len(res.Failed))
	res.Failed = append(append(failed, rejected...), res.Failed...)
	out := uploadResponse{IngestResult: res}
	if err != nil {
		logutil.GetLogger(ctx).Error("ingest aborted", zap.Error(err))
		_, out.Error = response.Classify(err)
		out.Retryable = appErr.IsRetryable(err)
	}
	response.Success(c, out)
}

func (h *DocumentHandler) readUpload(ctx context.Context, fh *multipart.FileHeader) (*model.IngestInput, error) {
	if h.maxBytes > 0 && fh.Size > h.maxBytes {
		return nil, fmt.Errorf("%w: file larger than %s", appErr.ErrInvalid, formatUploadLimit(h.maxBytes))
	}
	file, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()
	var reader io.Reader = file
	if h.maxBytes > 0 {
		reader = io.LimitReader(file, h.maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if h.maxBytes > 0 && int64(len(data)) > h.maxBytes {
		return nil, fmt.Errorf("%w: file larger than %s", appErr.ErrInvalid, formatUploadLimit(h.maxBytes))
	}
	text, err := extract.Text(ctx, fh.Filename, data)
	if err != nil {
		return nil, err
	}
	return &model.IngestInput{FileName: fh.Filename, Text: text, Raw: data}, nil
}

func (h *DocumentHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	docs, err := h.docs.StoredDocuments(ctx)
	if err != nil {
		handleError(c, err)
		return
	}
	total, err := h.docs.Count(ctx)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, listResponse{Documents: docs, TotalEntries: total})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		response.Error(c, errcode.ErrInvalid, "name is required")
		return
	}
	deleted, err := h.docs.DeleteByName(c.Request.Context(), name)
	if err != nil {
		handleError(c, err)
		return
	}
	if !deleted {
		response.Error(c, errcode.ErrNotFound, "no document named "+name)
		return
	}
	response.Success(c, gin.H{"deleted": true, "file_name": name})
}

func (h *DocumentHandler) DeleteAll(c *gin.Context) {
	deleted, err := h.docs.DeleteAll(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": deleted})
}

// Raw streams an archived upload by content hash.
func (h *DocumentHandler) Raw(c *gin.Context) {
	hash := c.Param("hash")
	if hash == "" || strings.ContainsAny(hash, `/\.`) {
		c.Status(http.StatusBadRequest)
		return
	}
	file, err := h.docs.OpenArchive(c.Request.Context(), hash)
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	defer file.Close()
	c.Header("Content-Type", "application/octet-stream")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}
