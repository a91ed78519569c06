package services

import (
	"context"
	"testing"
	"time"

	"wiki-knowledge-platform/models"
)

func TestSweepFailsStaleProcessingTasks(t *testing.T) {
	wikis := newMemWikiStore()
	tasks := newMemTaskStore()
	ctx := context.Background()

	wikis.CreateWiki(ctx, &models.Wiki{ID: "wiki-1", IsLock: true})

	stale := &models.EmbeddingTask{
		ID: "t-stale", WikiID: "wiki-1", DocumentID: "doc-1",
		State:     models.TaskStateProcessing,
		CreatedAt: time.Now().Add(-2 * time.Hour),
		UpdatedAt: time.Now().Add(-2 * time.Hour),
	}
	fresh := &models.EmbeddingTask{
		ID: "t-fresh", WikiID: "wiki-1", DocumentID: "doc-2",
		State:     models.TaskStateProcessing,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	tasks.CreateTask(ctx, stale)
	tasks.CreateTask(ctx, fresh)

	sweeper := NewTaskSweeper(tasks, wikis, 30, time.Minute)
	sweeper.SweepOnce(ctx)

	if got := tasks.state("t-stale"); got != models.TaskStateFailed {
		t.Errorf("stale task state = %q, want failed", got)
	}
	if got := tasks.state("t-fresh"); got != models.TaskStateProcessing {
		t.Errorf("fresh task state = %q, want processing", got)
	}
	if !wikis.locked("wiki-1") {
		t.Error("wiki must stay locked while an active task remains")
	}
}

func TestSweepFailsStrandedWaitTasks(t *testing.T) {
	wikis := newMemWikiStore()
	tasks := newMemTaskStore()
	ctx := context.Background()

	wikis.CreateWiki(ctx, &models.Wiki{ID: "wiki-1", IsLock: true})

	// A wait row whose queue message was lost never reaches processing;
	// the sweeper must still clear it so the document is not blocked.
	tasks.CreateTask(ctx, &models.EmbeddingTask{
		ID: "t-wait", WikiID: "wiki-1", DocumentID: "doc-1",
		State:     models.TaskStateWait,
		CreatedAt: time.Now().Add(-24 * time.Hour),
		UpdatedAt: time.Now().Add(-24 * time.Hour),
	})

	sweeper := NewTaskSweeper(tasks, wikis, 30, time.Minute)
	sweeper.SweepOnce(ctx)

	if got := tasks.state("t-wait"); got != models.TaskStateFailed {
		t.Fatalf("stranded wait task state = %q, want failed", got)
	}
	if wikis.locked("wiki-1") {
		t.Error("wiki should unlock after the stranded task was failed")
	}
	if err := tasks.CreateTask(ctx, &models.EmbeddingTask{
		ID: "t-next", WikiID: "wiki-1", DocumentID: "doc-1",
		State: models.TaskStateWait, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("new task after sweep: %v", err)
	}
}

func TestSweepReleasesLockWhenNothingActiveRemains(t *testing.T) {
	wikis := newMemWikiStore()
	tasks := newMemTaskStore()
	ctx := context.Background()

	wikis.CreateWiki(ctx, &models.Wiki{ID: "wiki-1", IsLock: true})
	tasks.CreateTask(ctx, &models.EmbeddingTask{
		ID: "t-1", WikiID: "wiki-1", DocumentID: "doc-1",
		State:     models.TaskStateProcessing,
		CreatedAt: time.Now().Add(-time.Hour),
		UpdatedAt: time.Now().Add(-time.Hour),
	})

	sweeper := NewTaskSweeper(tasks, wikis, 30, time.Minute)
	sweeper.SweepOnce(ctx)

	if wikis.locked("wiki-1") {
		t.Error("wiki should unlock after its only task was failed")
	}
}
