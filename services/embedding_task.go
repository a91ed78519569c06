package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"wiki-knowledge-platform/internal/apperr"
	"wiki-knowledge-platform/internal/logger"
	"wiki-knowledge-platform/internal/vector"
	"wiki-knowledge-platform/models"
)

// ChunkingParams carry the per-submission chunking settings. Zero values
// fall back to the manager defaults.
type ChunkingParams struct {
	MaxTokensPerChunk int
	OverlapTokens     int
	TokenizerSpec     string
}

// TaskManager owns the embedding task lifecycle: creation with the
// duplicate-pending guard, cooperative cancellation, and embedding cleanup.
type TaskManager struct {
	wikis     WikiStore
	documents DocumentStore
	tasks     TaskStore
	chunks    ChunkStore
	vectors   vector.Store
	publisher TaskPublisher
	files     FileStore
	defaults  ChunkingParams
}

func NewTaskManager(
	wikis WikiStore,
	documents DocumentStore,
	tasks TaskStore,
	chunks ChunkStore,
	vectors vector.Store,
	publisher TaskPublisher,
	files FileStore,
	defaults ChunkingParams,
) *TaskManager {
	return &TaskManager{
		wikis:     wikis,
		documents: documents,
		tasks:     tasks,
		chunks:    chunks,
		vectors:   vectors,
		publisher: publisher,
		files:     files,
		defaults:  defaults,
	}
}

// Submit creates a wait-state task for the document and enqueues the
// background embedding job. The task store enforces the one-active-task-
// per-document invariant atomically; a duplicate submission surfaces as
// Conflict, not a second task.
func (m *TaskManager) Submit(ctx context.Context, wikiID, documentID string, params ChunkingParams) (*models.EmbeddingTask, error) {
	wiki, err := m.wikis.GetWiki(ctx, wikiID)
	if err != nil {
		return nil, err
	}
	if _, ok := wiki.EmbeddingModel(); !ok {
		return nil, apperr.Newf(apperr.KindConflict, "wiki %s has no model with the Embedding capability", wikiID)
	}

	doc, err := m.documents.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.WikiID != wikiID {
		return nil, apperr.Newf(apperr.KindNotFound, "document %s not found in wiki %s", documentID, wikiID)
	}
	if doc.FilePath == "" {
		return nil, apperr.Newf(apperr.KindNotFound, "document %s has no file reference", documentID)
	}

	if params.MaxTokensPerChunk <= 0 {
		params.MaxTokensPerChunk = m.defaults.MaxTokensPerChunk
	}
	if params.OverlapTokens <= 0 {
		params.OverlapTokens = m.defaults.OverlapTokens
	}
	if params.TokenizerSpec == "" {
		params.TokenizerSpec = m.defaults.TokenizerSpec
	}

	now := time.Now()
	task := &models.EmbeddingTask{
		ID:                uuid.NewString(),
		DocumentID:        documentID,
		WikiID:            wikiID,
		TaskTag:           uuid.NewString(),
		State:             models.TaskStateWait,
		MaxTokensPerChunk: params.MaxTokensPerChunk,
		OverlapTokens:     params.OverlapTokens,
		TokenizerSpec:     params.TokenizerSpec,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := m.tasks.CreateTask(ctx, task); err != nil {
		return nil, err
	}

	if err := m.wikis.SetWikiLock(ctx, wikiID, true); err != nil {
		// Same compensation as a publish failure: the wait row would
		// otherwise block every later submission for this document.
		_ = m.tasks.UpdateTaskState(ctx, task.ID, models.TaskStateFailed, "failed to lock wiki")
		return nil, apperr.Wrap(apperr.KindUpstream, "failed to lock wiki for embedding", err)
	}

	if err := m.publisher.PublishEmbedTask(ctx, task); err != nil {
		// The task row exists but nothing will process it; fail it so a
		// later submission is not blocked by the pending guard.
		_ = m.tasks.UpdateTaskState(ctx, task.ID, models.TaskStateFailed, "failed to enqueue embedding job")
		m.reconcileLock(ctx, wikiID)
		return nil, apperr.Wrap(apperr.KindUpstream, "failed to publish embedding task", err)
	}

	logger.Info("embedding task submitted", "task_id", task.ID, "wiki_id", wikiID, "document_id", documentID)
	return task, nil
}

// Cancel requests cancellation. It is a no-op when the task is unknown or
// already terminal; the worker observes the cancelled state cooperatively,
// nothing is interrupted.
func (m *TaskManager) Cancel(ctx context.Context, documentID, taskID string) error {
	task, err := m.tasks.GetTask(ctx, taskID)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return nil
		}
		return err
	}
	if task.DocumentID != documentID || task.IsTerminal() {
		return nil
	}

	if err := m.tasks.UpdateTaskState(ctx, taskID, models.TaskStateCancelled, "task cancelled"); err != nil {
		return err
	}
	m.reconcileLock(ctx, task.WikiID)

	logger.Info("embedding task cancelled", "task_id", taskID, "document_id", documentID)
	return nil
}

// ClearEmbedding removes embeddings for one document, or the whole wiki
// index when documentID is empty. Vector-store deletes run first and are
// never rolled back by later metadata failures: the vector engine commits
// independently of the relational store.
func (m *TaskManager) ClearEmbedding(ctx context.Context, wikiID, documentID string) error {
	if _, err := m.wikis.GetWiki(ctx, wikiID); err != nil {
		return err
	}

	if documentID != "" {
		if err := m.vectors.DeleteDocument(ctx, wikiID, documentID); err != nil {
			if !apperr.IsKind(err, apperr.KindNotFound) {
				return err
			}
			// No index yet means nothing to delete.
		}
		if err := m.chunks.DeleteChunksByDocument(ctx, documentID); err != nil {
			return err
		}
		return m.tasks.SoftDeleteTasksByDocument(ctx, documentID)
	}

	if err := m.vectors.DeleteIndex(ctx, wikiID); err != nil {
		if !apperr.IsKind(err, apperr.KindNotFound) {
			return err
		}
	}
	if err := m.chunks.DeleteChunksByWiki(ctx, wikiID); err != nil {
		return err
	}
	if err := m.tasks.SoftDeleteTasksByWiki(ctx, wikiID); err != nil {
		return err
	}
	return m.wikis.SetWikiLock(ctx, wikiID, false)
}

// DeleteDocument removes the document row, its embeddings and its backing
// file. The wiki lock is released when no documents remain.
func (m *TaskManager) DeleteDocument(ctx context.Context, wikiID, documentID string) error {
	doc, err := m.documents.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.WikiID != wikiID {
		return apperr.Newf(apperr.KindNotFound, "document %s not found in wiki %s", documentID, wikiID)
	}

	if err := m.ClearEmbedding(ctx, wikiID, documentID); err != nil {
		return err
	}
	if err := m.documents.DeleteDocument(ctx, documentID); err != nil {
		return err
	}

	if doc.FilePath != "" {
		if err := m.files.DeleteFile(ctx, doc.FilePath); err != nil {
			// The row is gone; a stray file is an operational nuisance,
			// not a failed delete.
			logger.Warn("failed to delete backing file", "path", doc.FilePath, "error", err)
		}
	}

	count, err := m.documents.CountDocuments(ctx, wikiID)
	if err != nil {
		return err
	}
	if count == 0 {
		return m.wikis.SetWikiLock(ctx, wikiID, false)
	}
	return nil
}

// TaskStatus returns the document's most recent task.
func (m *TaskManager) TaskStatus(ctx context.Context, documentID string) (*models.EmbeddingTask, error) {
	return m.tasks.LatestTaskForDocument(ctx, documentID)
}

// reconcileLock clears the wiki lock when no active tasks remain.
func (m *TaskManager) reconcileLock(ctx context.Context, wikiID string) {
	active, err := m.tasks.HasActiveTasks(ctx, wikiID)
	if err != nil {
		logger.Warn("failed to check active tasks", "wiki_id", wikiID, "error", err)
		return
	}
	if !active {
		if err := m.wikis.SetWikiLock(ctx, wikiID, false); err != nil {
			logger.Warn("failed to release wiki lock", "wiki_id", wikiID, "error", err)
		}
	}
}
