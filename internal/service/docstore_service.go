package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/finwise/internal/ai"
	"github.com/xxxsen/finwise/internal/filestore"
	"github.com/xxxsen/finwise/internal/model"
	appErr "github.com/xxxsen/finwise/internal/pkg/errors"
	"github.com/xxxsen/finwise/internal/splitter"
)

// VectorIndex is the persisted chunk index. DocStoreService is its only
// writer.
type VectorIndex interface {
	Upsert(ctx context.Context, entries []model.IndexEntry) error
	Query(ctx context.Context, embedding []float32, k int) ([]model.IndexEntry, error)
	ListAll(ctx context.Context) ([]model.IndexEntry, error)
	Delete(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
}

type Answerer interface {
	GroundedAnswer(ctx context.Context, question string, contexts []string) (string, error)
}

type DocStoreConfig struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
	TopK         int
}

// IngestProgress is called after every stored batch.
type IngestProgress func(fileName string, done, total int)

type StoredDocument struct {
	FileName    string `json:"file_name"`
	ContentHash string `json:"content_hash"`
	Chunks      int    `json:"chunks"`
}

// DocStoreService is the single writer of the index. writeMu serializes
// ingest, re-embed and deletes.
type DocStoreService struct {
	writeMu   sync.Mutex
	index     VectorIndex
	embedder  Embedder
	answerer  Answerer
	archive   filestore.Store
	splitter  *splitter.Splitter
	batchSize int
	topK      int
	now       func() time.Time
}

func NewDocStoreService(index VectorIndex, embedder Embedder, answerer Answerer, archive filestore.Store, cfg DocStoreConfig) (*DocStoreService, error) {
	sp, err := splitter.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	return &DocStoreService{
		index:     index,
		embedder:  embedder,
		answerer:  answerer,
		archive:   archive,
		splitter:  sp,
		batchSize: cfg.BatchSize,
		topK:      cfg.TopK,
		now:       time.Now,
	}, nil
}

// Ingest indexes every input whose content is not stored yet. Each
// document is indexed completely or not at all: when a backend fails
// mid-document the chunks already written for it are removed, the
// remaining inputs are reported as failed and the error is returned
// together with the partial result.
func (s *DocStoreService) Ingest(ctx context.Context, inputs []model.IngestInput, progress IngestProgress) (*model.IngestResult, error) {
	logger := logutil.GetLogger(ctx)
	res := &model.IngestResult{
		Duplicates: []model.Duplicate{},
		Accepted:   []string{},
		Failed:     []model.IngestFailure{},
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	// the index is the source of truth for duplicates, read it fresh
	stored, err := s.storedNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stored documents: %w", appErr.FromBackend(err))
	}
	for i, in := range inputs {
		text := splitter.Normalize(in.Text)
		if strings.TrimSpace(text) == "" {
			res.Failed = append(res.Failed, model.IngestFailure{FileName: in.FileName, Reason: appErr.ErrEmptyUpload.Error()})
			continue
		}
		hash := ContentHash(text)
		if name, ok := stored[hash]; ok {
			logger.Info("skip duplicate document", zap.String("file", in.FileName), zap.String("stored_as", name))
			res.Duplicates = append(res.Duplicates, model.Duplicate{FileName: in.FileName, StoredName: name, ContentHash: hash})
			continue
		}
		chunks := s.splitter.Split(text)
		if len(chunks) == 0 {
			res.Failed = append(res.Failed, model.IngestFailure{FileName: in.FileName, Reason: appErr.ErrEmptyUpload.Error()})
			continue
		}
		if err := s.indexDocument(ctx, hash, in.FileName, chunks, progress); err != nil {
			err = appErr.FromBackend(err)
			logger.Error("ingest document failed", zap.String("file", in.FileName), zap.Error(err))
			res.Failed = append(res.Failed, model.IngestFailure{FileName: in.FileName, Reason: err.Error()})
			for _, rest := range inputs[i+1:] {
				res.Failed = append(res.Failed, model.IngestFailure{FileName: rest.FileName, Reason: "aborted"})
			}
			total, cerr := s.index.Count(ctx)
			if cerr != nil {
				logger.Warn("count index entries failed", zap.Error(cerr))
			}
			res.TotalEntries = total
			return res, fmt.Errorf("ingest %s: %w", in.FileName, err)
		}
		stored[hash] = in.FileName
		res.Added += len(chunks)
		res.Accepted = append(res.Accepted, in.FileName)
		s.archiveRaw(ctx, hash, in)
		logger.Info("document ingested", zap.String("file", in.FileName), zap.String("hash", hash), zap.Int("chunks", len(chunks)))
	}
	total, err := s.index.Count(ctx)
	if err != nil {
		logger.Warn("count index entries failed", zap.Error(err))
	}
	res.TotalEntries = total
	return res, nil
}

func (s *DocStoreService) indexDocument(ctx context.Context, hash, fileName string, chunks []string, progress IngestProgress) error {
	written := make([]string, 0, len(chunks))
	rollback := func() {
		if len(written) == 0 {
			return
		}
		// detached context: the request one may be the reason we failed
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := s.index.Delete(rctx, written); err != nil {
			logutil.GetLogger(ctx).Error("rollback partial document failed",
				zap.String("hash", hash), zap.Int("entries", len(written)), zap.Error(err))
		}
	}
	now := s.now().UnixMilli()
	for start := 0; start < len(chunks); start += s.batchSize {
		end := start + s.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := make([]model.IndexEntry, 0, end-start)
		for ord := start; ord < end; ord++ {
			vec, err := s.embedder.Embed(ctx, chunks[ord], ai.TaskRetrievalDocument)
			if err != nil {
				rollback()
				return fmt.Errorf("embed chunk %d: %w", ord, err)
			}
			batch = append(batch, model.IndexEntry{
				ID:        model.ChunkID(hash, ord),
				Embedding: vec,
				Text:      chunks[ord],
				Ordinal:   ord,
				Ctime:     now,
				Metadata:  model.IndexMetadata{ContentHash: hash, FileName: fileName},
			})
		}
		// count the ids before the write so a half-applied batch is rolled back too
		for _, e := range batch {
			written = append(written, e.ID)
		}
		if err := s.index.Upsert(ctx, batch); err != nil {
			rollback()
			return fmt.Errorf("upsert batch at %d: %w", start, err)
		}
		if progress != nil {
			progress(fileName, end, len(chunks))
		}
	}
	return nil
}

// Reembed recomputes every stored vector with the current embedder,
// keeping chunk ids, text and metadata. Run it after switching
// embedding models; it returns the number of entries rewritten.
func (s *DocStoreService) Reembed(ctx context.Context, progress IngestProgress) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	entries, err := s.index.ListAll(ctx)
	if err != nil {
		return 0, appErr.FromBackend(err)
	}
	for start := 0; start < len(entries); start += s.batchSize {
		end := start + s.batchSize
		if end > len(entries) {
			end = len(entries)
		}
		batch := make([]model.IndexEntry, 0, end-start)
		for _, e := range entries[start:end] {
			vec, err := s.embedder.Embed(ctx, e.Text, ai.TaskRetrievalDocument)
			if err != nil {
				return start, fmt.Errorf("embed %s: %w", e.ID, appErr.FromBackend(err))
			}
			e.Embedding = vec
			e.Score = 0
			batch = append(batch, e)
		}
		if err := s.index.Upsert(ctx, batch); err != nil {
			return start, fmt.Errorf("upsert batch at %d: %w", start, appErr.FromBackend(err))
		}
		if progress != nil {
			progress("", end, len(entries))
		}
	}
	logutil.GetLogger(ctx).Info("index re-embedded", zap.Int("entries", len(entries)))
	return len(entries), nil
}

func (s *DocStoreService) archiveRaw(ctx context.Context, hash string, in model.IngestInput) {
	if s.archive == nil || len(in.Raw) == 0 {
		return
	}
	if err := s.archive.Save(ctx, hash, filestore.FromBytes(in.Raw), int64(len(in.Raw))); err != nil {
		logutil.GetLogger(ctx).Warn("archive upload failed", zap.String("file", in.FileName), zap.Error(err))
	}
}

// Retrieve answers query from the top matching chunks. A missing
// answer is ai.NotFoundSentinel, never an error; errors mean a backend
// failed.
func (s *DocStoreService) Retrieve(ctx context.Context, query string) (string, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("query", query))
	if strings.TrimSpace(query) == "" {
		return ai.NotFoundSentinel, nil
	}
	vec, err := s.embedder.Embed(ctx, query, ai.TaskRetrievalQuery)
	if err != nil {
		return "", appErr.FromBackend(err)
	}
	hits, err := s.index.Query(ctx, vec, s.topK)
	if err != nil {
		return "", appErr.FromBackend(err)
	}
	if len(hits) == 0 {
		logger.Info("no document matched")
		return ai.NotFoundSentinel, nil
	}
	contexts := make([]string, 0, len(hits))
	for _, h := range hits {
		contexts = append(contexts, h.Text)
	}
	answer, err := s.answerer.GroundedAnswer(ctx, query, contexts)
	if err != nil {
		return "", appErr.FromBackend(err)
	}
	answer = NormalizeAnswer(answer)
	logger.Info("document search finished", zap.Int("hits", len(hits)), zap.Bool("found", answer != ai.NotFoundSentinel))
	return answer, nil
}

// NormalizeAnswer maps refusals phrased as prose onto the sentinel.
func NormalizeAnswer(answer string) string {
	answer = strings.TrimSpace(answer)
	lower := strings.ToLower(answer)
	switch {
	case lower == "",
		strings.HasPrefix(lower, "not found"),
		strings.HasPrefix(lower, "i cannot"),
		strings.Contains(lower, "cannot find"),
		strings.Contains(lower, strings.ToLower(ai.NotFoundSentinel)):
		return ai.NotFoundSentinel
	}
	return answer
}

func IsNotFound(answer string) bool {
	return answer == ai.NotFoundSentinel
}

// storedNames maps every stored content hash to its file name.
func (s *DocStoreService) storedNames(ctx context.Context) (map[string]string, error) {
	entries, err := s.index.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for _, e := range entries {
		if _, ok := out[e.Metadata.ContentHash]; !ok {
			out[e.Metadata.ContentHash] = e.Metadata.FileName
		}
	}
	return out, nil
}

func (s *DocStoreService) StoredDocuments(ctx context.Context) ([]StoredDocument, error) {
	entries, err := s.index.ListAll(ctx)
	if err != nil {
		return nil, appErr.FromBackend(err)
	}
	byHash := map[string]*StoredDocument{}
	for _, e := range entries {
		doc, ok := byHash[e.Metadata.ContentHash]
		if !ok {
			doc = &StoredDocument{FileName: e.Metadata.FileName, ContentHash: e.Metadata.ContentHash}
			byHash[e.Metadata.ContentHash] = doc
		}
		doc.Chunks++
	}
	out := make([]StoredDocument, 0, len(byHash))
	for _, doc := range byHash {
		out = append(out, *doc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FileName != out[j].FileName {
			return out[i].FileName < out[j].FileName
		}
		return out[i].ContentHash < out[j].ContentHash
	})
	return out, nil
}

// StoredFiles returns the distinct stored file names, sorted.
func (s *DocStoreService) StoredFiles(ctx context.Context) ([]string, error) {
	docs, err := s.StoredDocuments(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(docs))
	for _, d := range docs {
		if len(names) > 0 && names[len(names)-1] == d.FileName {
			continue
		}
		names = append(names, d.FileName)
	}
	return names, nil
}

func (s *DocStoreService) Count(ctx context.Context) (int, error) {
	n, err := s.index.Count(ctx)
	if err != nil {
		return 0, appErr.FromBackend(err)
	}
	return n, nil
}

// DeleteByName removes every entry stored under fileName. The index is
// re-read afterwards and any deleted id still present is an
// ErrInconsistent failure.
func (s *DocStoreService) DeleteByName(ctx context.Context, fileName string) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	entries, err := s.index.ListAll(ctx)
	if err != nil {
		return false, appErr.FromBackend(err)
	}
	var ids []string
	hashes := map[string]struct{}{}
	for _, e := range entries {
		if e.Metadata.FileName == fileName {
			ids = append(ids, e.ID)
			hashes[e.Metadata.ContentHash] = struct{}{}
		}
	}
	if len(ids) == 0 {
		return false, nil
	}
	if err := s.index.Delete(ctx, ids); err != nil {
		return false, appErr.FromBackend(err)
	}
	after, err := s.index.ListAll(ctx)
	if err != nil {
		return false, appErr.FromBackend(err)
	}
	deleted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		deleted[id] = struct{}{}
	}
	for _, e := range after {
		if _, ok := deleted[e.ID]; ok || e.Metadata.FileName == fileName {
			return false, fmt.Errorf("%s still has entries after delete: %w", fileName, appErr.ErrInconsistent)
		}
	}
	for hash := range hashes {
		s.deleteArchive(ctx, hash)
	}
	logutil.GetLogger(ctx).Info("document deleted", zap.String("file", fileName), zap.Int("entries", len(ids)))
	return true, nil
}

// DeleteAll clears the index and verifies it is empty afterwards.
func (s *DocStoreService) DeleteAll(ctx context.Context) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	entries, err := s.index.ListAll(ctx)
	if err != nil {
		return false, appErr.FromBackend(err)
	}
	ids := make([]string, 0, len(entries))
	hashes := map[string]struct{}{}
	for _, e := range entries {
		ids = append(ids, e.ID)
		hashes[e.Metadata.ContentHash] = struct{}{}
	}
	if len(ids) > 0 {
		if err := s.index.Delete(ctx, ids); err != nil {
			return false, appErr.FromBackend(err)
		}
	}
	n, err := s.index.Count(ctx)
	if err != nil {
		return false, appErr.FromBackend(err)
	}
	if n != 0 {
		return false, fmt.Errorf("%d entries left after delete all: %w", n, appErr.ErrInconsistent)
	}
	for hash := range hashes {
		s.deleteArchive(ctx, hash)
	}
	logutil.GetLogger(ctx).Info("index cleared", zap.Int("entries", len(ids)))
	return true, nil
}

func (s *DocStoreService) deleteArchive(ctx context.Context, hash string) {
	if s.archive == nil {
		return
	}
	if err := s.archive.Delete(ctx, hash); err != nil {
		logutil.GetLogger(ctx).Warn("delete archived upload failed", zap.String("hash", hash), zap.Error(err))
	}
}

// OpenArchive returns the raw upload stored for hash.
func (s *DocStoreService) OpenArchive(ctx context.Context, hash string) (io.ReadCloser, error) {
	if s.archive == nil {
		return nil, appErr.ErrNotFound
	}
	return s.archive.Open(ctx, hash)
}
