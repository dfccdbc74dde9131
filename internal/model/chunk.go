package model

import "fmt"

// Document is one ingested source text. ContentHash is its identity;
// FileName is for display only.
type Document struct {
	ContentHash string `json:"content_hash"`
	FileName    string `json:"file_name"`
	Content     string `json:"-"`
}

type Chunk struct {
	ID          string `json:"id"`
	ContentHash string `json:"content_hash"`
	FileName    string `json:"file_name"`
	Ordinal     int    `json:"ordinal"`
	Text        string `json:"text"`
}

// ChunkID builds the stable identifier "{content_hash}_{ordinal}".
func ChunkID(contentHash string, ordinal int) string {
	return fmt.Sprintf("%s_%d", contentHash, ordinal)
}

type IndexMetadata struct {
	ContentHash string `json:"content_hash"`
	FileName    string `json:"file_name"`
}

// IndexEntry is a chunk as persisted in the vector index.
type IndexEntry struct {
	ID        string        `json:"id"`
	Embedding []float32     `json:"-"`
	Text      string        `json:"text"`
	Metadata  IndexMetadata `json:"metadata"`
	Ordinal   int           `json:"ordinal"`
	Ctime     int64         `json:"ctime"`
	// Score is only populated on query results.
	Score float32 `json:"score,omitempty"`
}

// EmbeddingCache is one cached vector, keyed by embedding model, task
// type and the hash of the embedded text.
type EmbeddingCache struct {
	ModelName   string    `json:"model_name"`
	TaskType    string    `json:"task_type"`
	ContentHash string    `json:"content_hash"`
	Embedding   []float32 `json:"-"`
	Ctime       int64     `json:"ctime"`
}
