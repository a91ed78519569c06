package services

import (
	"context"
	"errors"
	"testing"

	"wiki-knowledge-platform/internal/apperr"
	"wiki-knowledge-platform/internal/vector"
	"wiki-knowledge-platform/models"
)

type taskFixture struct {
	wikis     *memWikiStore
	documents *memDocumentStore
	tasks     *memTaskStore
	chunks    *memChunkStore
	vectors   *memVectorStore
	publisher *memPublisher
	files     *memFileStore
	manager   *TaskManager
}

func newTaskFixture(t *testing.T) *taskFixture {
	t.Helper()
	f := &taskFixture{
		wikis:     newMemWikiStore(),
		documents: newMemDocumentStore(),
		tasks:     newMemTaskStore(),
		chunks:    newMemChunkStore(),
		vectors:   newMemVectorStore(),
		publisher: &memPublisher{},
		files:     &memFileStore{},
	}
	f.manager = NewTaskManager(
		f.wikis, f.documents, f.tasks, f.chunks, f.vectors, f.publisher, f.files,
		ChunkingParams{MaxTokensPerChunk: 512, OverlapTokens: 50, TokenizerSpec: TokenizerChars},
	)

	ctx := context.Background()
	f.wikis.CreateWiki(ctx, &models.Wiki{
		ID:   "wiki-1",
		Name: "product docs",
		Models: []models.ModelConfig{
			{ID: "embed-1", Provider: "gemini", Name: "text-embedding-004", Capability: models.CapabilityEmbedding, Dimensions: 4},
			{ID: "chat-1", Provider: "gemini", Name: "gemini-2.0-flash", Capability: models.CapabilityChat},
		},
	})
	f.documents.CreateDocument(ctx, &models.Document{
		ID:       "doc-1",
		WikiID:   "wiki-1",
		FileName: "guide.md",
		FileType: "md",
		FilePath: "/data/guide.md",
		Content:  "第一段。第二段。",
	})
	return f
}

func TestSubmitCreatesWaitTaskAndLocksWiki(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()

	task, err := f.manager.Submit(ctx, "wiki-1", "doc-1", ChunkingParams{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if task.State != models.TaskStateWait {
		t.Errorf("state = %q, want %q", task.State, models.TaskStateWait)
	}
	if task.MaxTokensPerChunk != 512 || task.OverlapTokens != 50 || task.TokenizerSpec != TokenizerChars {
		t.Errorf("defaults not applied: %+v", task)
	}
	if len(f.publisher.published) != 1 || f.publisher.published[0] != task.ID {
		t.Errorf("published = %v, want [%s]", f.publisher.published, task.ID)
	}
	if !f.wikis.locked("wiki-1") {
		t.Error("wiki should be locked after submit")
	}
}

func TestSubmitDuplicatePendingIsConflict(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()

	if _, err := f.manager.Submit(ctx, "wiki-1", "doc-1", ChunkingParams{}); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	_, err := f.manager.Submit(ctx, "wiki-1", "doc-1", ChunkingParams{})
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("second Submit error = %v, want Conflict", err)
	}
	if len(f.publisher.published) != 1 {
		t.Errorf("published %d jobs, want 1", len(f.publisher.published))
	}
}

func TestSubmitAllowedAfterTerminalTask(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()

	first, err := f.manager.Submit(ctx, "wiki-1", "doc-1", ChunkingParams{})
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	f.tasks.UpdateTaskState(ctx, first.ID, models.TaskStateSuccess, "")

	second, err := f.manager.Submit(ctx, "wiki-1", "doc-1", ChunkingParams{})
	if err != nil {
		t.Fatalf("resubmit after success: %v", err)
	}
	if second.ID == first.ID {
		t.Error("resubmit should create a new task")
	}
}

func TestSubmitValidation(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()

	f.wikis.CreateWiki(ctx, &models.Wiki{
		ID:     "wiki-chat-only",
		Models: []models.ModelConfig{{ID: "chat-1", Capability: models.CapabilityChat}},
	})
	f.documents.CreateDocument(ctx, &models.Document{ID: "doc-nofile", WikiID: "wiki-1", FileName: "x"})

	tests := []struct {
		name       string
		wikiID     string
		documentID string
		wantKind   apperr.Kind
	}{
		{"unknown wiki", "missing", "doc-1", apperr.KindNotFound},
		{"no embedding model", "wiki-chat-only", "doc-1", apperr.KindConflict},
		{"unknown document", "wiki-1", "missing", apperr.KindNotFound},
		{"document without file", "wiki-1", "doc-nofile", apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.manager.Submit(ctx, tt.wikiID, tt.documentID, ChunkingParams{})
			if !apperr.IsKind(err, tt.wantKind) {
				t.Errorf("Submit error = %v, want kind %v", err, tt.wantKind)
			}
		})
	}
}

func TestSubmitPublishFailureFailsTaskAndUnlocks(t *testing.T) {
	f := newTaskFixture(t)
	f.publisher.failWith = errors.New("broker down")
	ctx := context.Background()

	_, err := f.manager.Submit(ctx, "wiki-1", "doc-1", ChunkingParams{})
	if !apperr.IsKind(err, apperr.KindUpstream) {
		t.Fatalf("Submit error = %v, want Upstream", err)
	}

	latest, err := f.tasks.LatestTaskForDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("LatestTaskForDocument: %v", err)
	}
	if latest.State != models.TaskStateFailed {
		t.Errorf("task state = %q, want failed", latest.State)
	}
	if f.wikis.locked("wiki-1") {
		t.Error("wiki should be unlocked after the only task failed")
	}

	// The failed task no longer blocks resubmission.
	f.publisher.failWith = nil
	if _, err := f.manager.Submit(ctx, "wiki-1", "doc-1", ChunkingParams{}); err != nil {
		t.Fatalf("resubmit after publish failure: %v", err)
	}
}

// lockFailWikiStore fails the next SetWikiLock calls, then behaves normally.
type lockFailWikiStore struct {
	*memWikiStore
	failures int
}

func (s *lockFailWikiStore) SetWikiLock(ctx context.Context, id string, locked bool) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("lock write failed")
	}
	return s.memWikiStore.SetWikiLock(ctx, id, locked)
}

func TestSubmitLockFailureFailsTaskAndAllowsResubmit(t *testing.T) {
	f := newTaskFixture(t)
	wikis := &lockFailWikiStore{memWikiStore: f.wikis, failures: 1}
	manager := NewTaskManager(
		wikis, f.documents, f.tasks, f.chunks, f.vectors, f.publisher, f.files,
		ChunkingParams{MaxTokensPerChunk: 512, OverlapTokens: 50, TokenizerSpec: TokenizerChars},
	)
	ctx := context.Background()

	_, err := manager.Submit(ctx, "wiki-1", "doc-1", ChunkingParams{})
	if !apperr.IsKind(err, apperr.KindUpstream) {
		t.Fatalf("Submit error = %v, want Upstream", err)
	}

	latest, err := f.tasks.LatestTaskForDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("LatestTaskForDocument: %v", err)
	}
	if latest.State != models.TaskStateFailed {
		t.Errorf("task state = %q, want failed", latest.State)
	}
	if f.wikis.locked("wiki-1") {
		t.Error("wiki should not end up locked when the lock write failed")
	}

	// The failed row must not trip the duplicate-pending guard.
	task, err := manager.Submit(ctx, "wiki-1", "doc-1", ChunkingParams{})
	if err != nil {
		t.Fatalf("resubmit after lock failure: %v", err)
	}
	if task.State != models.TaskStateWait {
		t.Errorf("resubmitted task state = %q, want wait", task.State)
	}
	if !f.wikis.locked("wiki-1") {
		t.Error("wiki should be locked after the successful resubmit")
	}
}

func TestCancelIsNoopForUnknownAndTerminal(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()

	if err := f.manager.Cancel(ctx, "doc-1", "no-such-task"); err != nil {
		t.Errorf("Cancel unknown task: %v", err)
	}

	task, _ := f.manager.Submit(ctx, "wiki-1", "doc-1", ChunkingParams{})
	f.tasks.UpdateTaskState(ctx, task.ID, models.TaskStateSuccess, "")

	if err := f.manager.Cancel(ctx, "doc-1", task.ID); err != nil {
		t.Errorf("Cancel terminal task: %v", err)
	}
	if got := f.tasks.state(task.ID); got != models.TaskStateSuccess {
		t.Errorf("terminal state changed to %q", got)
	}

	// Mismatched document id is also a no-op.
	task2, _ := f.manager.Submit(ctx, "wiki-1", "doc-1", ChunkingParams{})
	if err := f.manager.Cancel(ctx, "other-doc", task2.ID); err != nil {
		t.Errorf("Cancel with wrong document: %v", err)
	}
	if got := f.tasks.state(task2.ID); got != models.TaskStateWait {
		t.Errorf("state changed to %q on mismatched cancel", got)
	}
}

func TestCancelReleasesLockWhenLastActiveTask(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()

	task, err := f.manager.Submit(ctx, "wiki-1", "doc-1", ChunkingParams{})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := f.manager.Cancel(ctx, "doc-1", task.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got := f.tasks.state(task.ID); got != models.TaskStateCancelled {
		t.Errorf("state = %q, want cancelled", got)
	}
	if f.wikis.locked("wiki-1") {
		t.Error("wiki should unlock once no active tasks remain")
	}
}

func TestClearEmbeddingDocumentScopeKeepsLock(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()

	f.documents.CreateDocument(ctx, &models.Document{ID: "doc-2", WikiID: "wiki-1", FileName: "b.md", FilePath: "/data/b.md"})
	f.vectors.CreateIndex(ctx, "wiki-1", 4)
	f.vectors.Upsert(ctx, "wiki-1", []vector.Record{
		{ID: "c1", DocumentID: "doc-1", Vector: []float32{1, 0, 0, 0}},
		{ID: "c2", DocumentID: "doc-2", Vector: []float32{0, 1, 0, 0}},
	})
	f.chunks.InsertChunks(ctx, []models.ChunkEmbedding{
		{ID: "c1", WikiID: "wiki-1", DocumentID: "doc-1", MetadataContent: "a"},
		{ID: "c2", WikiID: "wiki-1", DocumentID: "doc-2", MetadataContent: "b"},
	})
	f.wikis.SetWikiLock(ctx, "wiki-1", true)

	if err := f.manager.ClearEmbedding(ctx, "wiki-1", "doc-1"); err != nil {
		t.Fatalf("ClearEmbedding: %v", err)
	}

	if f.vectors.count("wiki-1") != 1 {
		t.Errorf("vector records = %d, want 1", f.vectors.count("wiki-1"))
	}
	rows, _ := f.chunks.GetChunksByIDs(ctx, []string{"c1", "c2"})
	if _, gone := rows["c1"]; gone {
		t.Error("doc-1 chunk should be deleted")
	}
	if _, kept := rows["c2"]; !kept {
		t.Error("doc-2 chunk should survive")
	}
	if !f.wikis.locked("wiki-1") {
		t.Error("document-scoped clear must not change the wiki lock")
	}
}

func TestClearEmbeddingWikiScopeUnlocks(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()

	f.vectors.CreateIndex(ctx, "wiki-1", 4)
	f.vectors.Upsert(ctx, "wiki-1", []vector.Record{
		{ID: "c1", DocumentID: "doc-1", Vector: []float32{1, 0, 0, 0}},
	})
	f.chunks.InsertChunks(ctx, []models.ChunkEmbedding{
		{ID: "c1", WikiID: "wiki-1", DocumentID: "doc-1", MetadataContent: "a"},
	})
	f.wikis.SetWikiLock(ctx, "wiki-1", true)

	if err := f.manager.ClearEmbedding(ctx, "wiki-1", ""); err != nil {
		t.Fatalf("ClearEmbedding: %v", err)
	}

	names, _ := f.vectors.ListIndexes(ctx)
	if len(names) != 0 {
		t.Errorf("indexes = %v, want none", names)
	}
	if f.wikis.locked("wiki-1") {
		t.Error("wiki-scoped clear should release the lock")
	}
}

func TestClearEmbeddingWithoutIndexSucceeds(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()

	if err := f.manager.ClearEmbedding(ctx, "wiki-1", "doc-1"); err != nil {
		t.Fatalf("ClearEmbedding with no index: %v", err)
	}
	if err := f.manager.ClearEmbedding(ctx, "wiki-1", ""); err != nil {
		t.Fatalf("wiki-scoped ClearEmbedding with no index: %v", err)
	}
}

func TestDeleteDocumentReleasesLockWhenLastDocument(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()

	f.wikis.SetWikiLock(ctx, "wiki-1", true)
	if err := f.manager.DeleteDocument(ctx, "wiki-1", "doc-1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}

	if _, err := f.documents.GetDocument(ctx, "doc-1"); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("document still present: %v", err)
	}
	if len(f.files.deleted) != 1 || f.files.deleted[0] != "/data/guide.md" {
		t.Errorf("deleted files = %v", f.files.deleted)
	}
	if f.wikis.locked("wiki-1") {
		t.Error("deleting the last document should unlock the wiki")
	}
}

func TestDeleteDocumentKeepsLockWhileOthersRemain(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()

	f.documents.CreateDocument(ctx, &models.Document{ID: "doc-2", WikiID: "wiki-1", FileName: "b.md", FilePath: "/data/b.md"})
	f.wikis.SetWikiLock(ctx, "wiki-1", true)

	if err := f.manager.DeleteDocument(ctx, "wiki-1", "doc-1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if !f.wikis.locked("wiki-1") {
		t.Error("wiki should stay locked while documents remain")
	}
}

func TestTaskStatusReturnsLatest(t *testing.T) {
	f := newTaskFixture(t)
	ctx := context.Background()

	first, _ := f.manager.Submit(ctx, "wiki-1", "doc-1", ChunkingParams{})
	f.tasks.UpdateTaskState(ctx, first.ID, models.TaskStateFailed, "boom")
	second, _ := f.manager.Submit(ctx, "wiki-1", "doc-1", ChunkingParams{})

	latest, err := f.manager.TaskStatus(ctx, "doc-1")
	if err != nil {
		t.Fatalf("TaskStatus: %v", err)
	}
	if latest.ID != second.ID {
		t.Errorf("latest = %s, want %s", latest.ID, second.ID)
	}
}
