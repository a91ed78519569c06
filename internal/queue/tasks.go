package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"wiki-knowledge-platform/internal/apperr"
	"wiki-knowledge-platform/internal/logger"
	"wiki-knowledge-platform/internal/vector"
	"wiki-knowledge-platform/models"
	"wiki-knowledge-platform/services"
)

const TaskEmbedProcess = "embedding:process"

type EmbedProcessPayload struct {
	TaskID     string `json:"task_id"`
	WikiID     string `json:"wiki_id"`
	DocumentID string `json:"document_id"`
	TaskTag    string `json:"task_tag"`
}

func NewEmbedProcessTask(task *models.EmbeddingTask) (*asynq.Task, error) {
	payload, err := json.Marshal(EmbedProcessPayload{
		TaskID:     task.ID,
		WikiID:     task.WikiID,
		DocumentID: task.DocumentID,
		TaskTag:    task.TaskTag,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskEmbedProcess,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Minute),
		asynq.Queue("default"),
	), nil
}

// Publisher enqueues embedding jobs on the asynq broker.
type Publisher struct {
	client *asynq.Client
}

func NewPublisher(client *asynq.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) PublishEmbedTask(ctx context.Context, task *models.EmbeddingTask) error {
	job, err := NewEmbedProcessTask(task)
	if err != nil {
		return apperr.Wrap(apperr.KindUnknown, "failed to build embedding job", err)
	}
	info, err := p.client.EnqueueContext(ctx, job)
	if err != nil {
		return apperr.Wrap(apperr.KindUpstream, "failed to enqueue embedding job", err)
	}
	logger.Info("embedding job enqueued", "task_id", task.ID, "queue", info.Queue, "job_id", info.ID)
	return nil
}

// EmbedProcessor runs the embedding pipeline for one task: chunk the
// document, embed each chunk, run the wiki's preprocess strategies over it
// and store the derived chunks alongside.
type EmbedProcessor struct {
	wikis        services.WikiStore
	documents    services.DocumentStore
	tasks        services.TaskStore
	chunks       services.ChunkStore
	vectors      vector.Store
	ai           services.AIClient
	orchestrator *services.PreprocessOrchestrator
}

func NewEmbedProcessor(
	wikis services.WikiStore,
	documents services.DocumentStore,
	tasks services.TaskStore,
	chunks services.ChunkStore,
	vectors vector.Store,
	aiClient services.AIClient,
	orchestrator *services.PreprocessOrchestrator,
) *EmbedProcessor {
	return &EmbedProcessor{
		wikis:        wikis,
		documents:    documents,
		tasks:        tasks,
		chunks:       chunks,
		vectors:      vectors,
		ai:           aiClient,
		orchestrator: orchestrator,
	}
}

// ProcessEmbedTask is the asynq handler for TaskEmbedProcess.
func (p *EmbedProcessor) ProcessEmbedTask(ctx context.Context, t *asynq.Task) error {
	var payload EmbedProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	task, err := p.tasks.GetTask(ctx, payload.TaskID)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			// Task row cleared since enqueue, nothing to process.
			return nil
		}
		return err
	}

	// Wait is the normal entry; processing means a retry after a transient
	// failure. Terminal states (including a cancel that raced the dequeue)
	// skip the job entirely.
	if task.State != models.TaskStateWait && task.State != models.TaskStateProcessing {
		logger.Info("skipping embedding job in terminal state", "task_id", task.ID, "state", task.State)
		return nil
	}

	if err := p.tasks.UpdateTaskState(ctx, task.ID, models.TaskStateProcessing, ""); err != nil {
		return err
	}

	if err := p.run(ctx, task); err != nil {
		return p.fail(ctx, task, err)
	}

	if cancelled, err := p.isCancelled(ctx, task.ID); err != nil {
		return err
	} else if cancelled {
		return nil
	}

	if err := p.tasks.UpdateTaskState(ctx, task.ID, models.TaskStateSuccess, ""); err != nil {
		return err
	}
	p.reconcileLock(ctx, task.WikiID)
	logger.Info("embedding task completed", "task_id", task.ID, "document_id", task.DocumentID)
	return nil
}

func (p *EmbedProcessor) run(ctx context.Context, task *models.EmbeddingTask) error {
	wiki, err := p.wikis.GetWiki(ctx, task.WikiID)
	if err != nil {
		return err
	}
	embModel, ok := wiki.EmbeddingModel()
	if !ok {
		return apperr.Newf(apperr.KindConflict, "wiki %s has no model with the Embedding capability", wiki.ID)
	}

	doc, err := p.documents.GetDocument(ctx, task.DocumentID)
	if err != nil {
		return err
	}

	chunker := services.NewChunker(task.MaxTokensPerChunk, task.OverlapTokens, task.TokenizerSpec)
	parts := chunker.Split(doc.Content)
	if len(parts) == 0 {
		return apperr.Newf(apperr.KindInvalidArgument, "document %s has no content to embed", doc.ID)
	}

	dims := embModel.Dimensions
	if dims <= 0 {
		dims = 768
	}
	if err := p.vectors.CreateIndex(ctx, wiki.ID, dims); err != nil {
		return err
	}

	for i, part := range parts {
		// Cancellation is cooperative: re-read the task between chunks
		// and stop without touching the already-written ones.
		if cancelled, err := p.isCancelled(ctx, task.ID); err != nil {
			return err
		} else if cancelled {
			logger.Info("embedding task cancelled mid-run", "task_id", task.ID, "chunks_done", i)
			return nil
		}

		if err := p.embedChunk(ctx, wiki, task, part); err != nil {
			return err
		}
	}
	return nil
}

// embedChunk stores the source chunk and every non-empty preprocess
// derivation of it. Vector upserts run before the relational insert: a
// crash in between leaves an index entry the retrieval side silently
// skips, never a chunk row without a vector.
func (p *EmbedProcessor) embedChunk(ctx context.Context, wiki *models.Wiki, task *models.EmbeddingTask, text string) error {
	sourceVec, err := p.ai.Embed(ctx, text)
	if err != nil {
		return err
	}

	now := time.Now()
	source := models.ChunkEmbedding{
		ID:              uuid.NewString(),
		WikiID:          wiki.ID,
		DocumentID:      task.DocumentID,
		MetadataContent: text,
		CreatedAt:       now,
	}
	records := []vector.Record{{ID: source.ID, DocumentID: task.DocumentID, Vector: sourceVec}}
	rows := []models.ChunkEmbedding{source}

	if len(wiki.PreprocessKinds) > 0 {
		kinds := make([]services.StrategyKind, len(wiki.PreprocessKinds))
		for i, k := range wiki.PreprocessKinds {
			kinds[i] = services.StrategyKind(k)
		}
		results, err := p.orchestrator.RunMany(ctx, text, kinds)
		if err != nil {
			return err
		}
		for _, result := range results {
			if result.ProcessedText == "" {
				continue
			}
			vec, err := p.ai.Embed(ctx, result.ProcessedText)
			if err != nil {
				return err
			}
			derived := models.ChunkEmbedding{
				ID:              uuid.NewString(),
				WikiID:          wiki.ID,
				DocumentID:      task.DocumentID,
				ChunkID:         source.ID,
				MetadataContent: result.ProcessedText,
				CreatedAt:       now,
			}
			records = append(records, vector.Record{ID: derived.ID, DocumentID: task.DocumentID, Vector: vec})
			rows = append(rows, derived)
		}
	}

	if err := p.vectors.Upsert(ctx, wiki.ID, records); err != nil {
		return err
	}
	return p.chunks.InsertChunks(ctx, rows)
}

// fail marks the task failed unless retries remain for a transient error,
// in which case the job is left in processing for asynq to retry.
func (p *EmbedProcessor) fail(ctx context.Context, task *models.EmbeddingTask, cause error) error {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)

	if apperr.IsKind(cause, apperr.KindUpstream) && retried < maxRetry {
		logger.Warn("embedding job failed, will retry", "task_id", task.ID, "attempt", retried, "error", cause)
		return cause
	}

	if err := p.tasks.UpdateTaskState(ctx, task.ID, models.TaskStateFailed, cause.Error()); err != nil {
		logger.Error("failed to mark task failed", "task_id", task.ID, "error", err)
	}
	p.reconcileLock(ctx, task.WikiID)
	logger.Error("embedding task failed", "task_id", task.ID, "error", cause)
	return fmt.Errorf("%v: %w", cause, asynq.SkipRetry)
}

func (p *EmbedProcessor) isCancelled(ctx context.Context, taskID string) (bool, error) {
	current, err := p.tasks.GetTask(ctx, taskID)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			// Cleared mid-run by an embedding clear; treat as cancelled.
			return true, nil
		}
		return false, err
	}
	return current.State == models.TaskStateCancelled, nil
}

func (p *EmbedProcessor) reconcileLock(ctx context.Context, wikiID string) {
	active, err := p.tasks.HasActiveTasks(ctx, wikiID)
	if err != nil {
		logger.Warn("failed to check active tasks", "wiki_id", wikiID, "error", err)
		return
	}
	if !active {
		if err := p.wikis.SetWikiLock(ctx, wikiID, false); err != nil {
			logger.Warn("failed to release wiki lock", "wiki_id", wikiID, "error", err)
		}
	}
}
