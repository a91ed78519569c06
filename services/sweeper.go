package services

import (
	"context"
	"time"

	"wiki-knowledge-platform/internal/logger"
	"wiki-knowledge-platform/models"
)

// TaskSweeper fails active tasks whose last update is older than the
// timeout. A worker crash leaves a task row in processing forever, and a
// lost queue message leaves one in wait; without the sweeper the
// duplicate-pending guard would block the document permanently.
type TaskSweeper struct {
	tasks          TaskStore
	wikis          WikiStore
	timeoutMinutes int
	interval       time.Duration
}

func NewTaskSweeper(tasks TaskStore, wikis WikiStore, timeoutMinutes int, interval time.Duration) *TaskSweeper {
	if timeoutMinutes <= 0 {
		timeoutMinutes = 30
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &TaskSweeper{
		tasks:          tasks,
		wikis:          wikis,
		timeoutMinutes: timeoutMinutes,
		interval:       interval,
	}
}

// Start runs the sweep loop until the context is cancelled.
func (s *TaskSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Info("task sweeper started", "interval", s.interval.String(), "timeout_minutes", s.timeoutMinutes)
	for {
		select {
		case <-ctx.Done():
			logger.Info("task sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce fails every stale active task and releases wiki locks that no
// longer have active tasks behind them.
func (s *TaskSweeper) SweepOnce(ctx context.Context) {
	stale, err := s.tasks.StaleActiveTasks(ctx, s.timeoutMinutes)
	if err != nil {
		logger.Error("sweep query failed", "error", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	wikiIDs := make(map[string]bool)
	for _, task := range stale {
		reason := "processing timed out"
		if task.State == models.TaskStateWait {
			reason = "task was never picked up"
		}
		if err := s.tasks.UpdateTaskState(ctx, task.ID, models.TaskStateFailed, reason); err != nil {
			logger.Error("failed to fail stale task", "task_id", task.ID, "error", err)
			continue
		}
		wikiIDs[task.WikiID] = true
		logger.Warn("stale task failed by sweeper", "task_id", task.ID, "document_id", task.DocumentID)
	}

	for wikiID := range wikiIDs {
		active, err := s.tasks.HasActiveTasks(ctx, wikiID)
		if err != nil {
			logger.Warn("failed to check active tasks after sweep", "wiki_id", wikiID, "error", err)
			continue
		}
		if !active {
			if err := s.wikis.SetWikiLock(ctx, wikiID, false); err != nil {
				logger.Warn("failed to release wiki lock after sweep", "wiki_id", wikiID, "error", err)
			}
		}
	}
}
