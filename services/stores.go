package services

import (
	"context"

	"wiki-knowledge-platform/models"
)

// Store interfaces are defined here, by the consumer; internal/store provides
// the Mongo-backed implementations and tests provide in-memory fakes.

type WikiStore interface {
	// GetWiki returns a NotFound error for unknown ids.
	GetWiki(ctx context.Context, id string) (*models.Wiki, error)
	CreateWiki(ctx context.Context, wiki *models.Wiki) error
	SetWikiLock(ctx context.Context, id string, locked bool) error
}

type DocumentStore interface {
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	CreateDocument(ctx context.Context, doc *models.Document) error
	ListDocuments(ctx context.Context, wikiID string) ([]models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	CountDocuments(ctx context.Context, wikiID string) (int64, error)
}

type TaskStore interface {
	// CreateTask inserts a task in the wait state. It returns a Conflict
	// error when the document already has a task in wait or processing;
	// the backing store must make this decision atomically.
	CreateTask(ctx context.Context, task *models.EmbeddingTask) error

	GetTask(ctx context.Context, id string) (*models.EmbeddingTask, error)
	LatestTaskForDocument(ctx context.Context, documentID string) (*models.EmbeddingTask, error)
	UpdateTaskState(ctx context.Context, id, state, message string) error

	// HasActiveTasks reports whether the wiki still has tasks in wait or
	// processing.
	HasActiveTasks(ctx context.Context, wikiID string) (bool, error)

	SoftDeleteTasksByDocument(ctx context.Context, documentID string) error
	SoftDeleteTasksByWiki(ctx context.Context, wikiID string) error

	// StaleActiveTasks returns tasks stuck in wait or processing whose
	// last update is older than the cutoff; the sweeper fails them.
	StaleActiveTasks(ctx context.Context, olderThanMinutes int) ([]models.EmbeddingTask, error)
}

type ChunkStore interface {
	InsertChunks(ctx context.Context, chunks []models.ChunkEmbedding) error
	GetChunksByIDs(ctx context.Context, ids []string) (map[string]models.ChunkEmbedding, error)
	DeleteChunksByDocument(ctx context.Context, documentID string) error
	DeleteChunksByWiki(ctx context.Context, wikiID string) error
}

// TaskPublisher enqueues the background embedding job. Publishing is
// at-least-once and fire-and-forget: the submitter never waits for the
// worker.
type TaskPublisher interface {
	PublishEmbedTask(ctx context.Context, task *models.EmbeddingTask) error
}

// FileStore removes a document's backing file from storage.
type FileStore interface {
	DeleteFile(ctx context.Context, path string) error
}
