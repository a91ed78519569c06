package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"wiki-knowledge-platform/internal/apperr"
	"wiki-knowledge-platform/models"
)

type TaskRepo struct {
	collection *mongo.Collection
}

func NewTaskRepo(db *mongo.Database) *TaskRepo {
	return &TaskRepo{collection: db.Collection("embedding_tasks")}
}

// CreateTask inserts the task. The collection carries a partial unique
// index on document_id covering non-deleted wait/processing rows, so a
// concurrent duplicate submission loses the insert race and surfaces here
// as a duplicate key error.
func (r *TaskRepo) CreateTask(ctx context.Context, task *models.EmbeddingTask) error {
	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, task); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Newf(apperr.KindConflict, "document %s already has a pending embedding task", task.DocumentID)
		}
		return apperr.Wrap(apperr.KindUnknown, "failed to create task", err)
	}
	return nil
}

func (r *TaskRepo) GetTask(ctx context.Context, id string) (*models.EmbeddingTask, error) {
	var task models.EmbeddingTask
	err := r.collection.FindOne(ctx, bson.M{"_id": id, "deleted": false}).Decode(&task)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.Newf(apperr.KindNotFound, "task %s not found", id)
		}
		return nil, apperr.Wrap(apperr.KindUnknown, "failed to load task", err)
	}
	return &task, nil
}

func (r *TaskRepo) LatestTaskForDocument(ctx context.Context, documentID string) (*models.EmbeddingTask, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var task models.EmbeddingTask
	err := r.collection.FindOne(ctx, bson.M{"document_id": documentID, "deleted": false}, opts).Decode(&task)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.Newf(apperr.KindNotFound, "no task for document %s", documentID)
		}
		return nil, apperr.Wrap(apperr.KindUnknown, "failed to load latest task", err)
	}
	return &task, nil
}

func (r *TaskRepo) UpdateTaskState(ctx context.Context, id, state, message string) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"state": state, "message": message, "updated_at": time.Now()}},
	)
	if err != nil {
		return apperr.Wrap(apperr.KindUnknown, "failed to update task state", err)
	}
	if result.MatchedCount == 0 {
		return apperr.Newf(apperr.KindNotFound, "task %s not found", id)
	}
	return nil
}

func (r *TaskRepo) HasActiveTasks(ctx context.Context, wikiID string) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{
		"wiki_id": wikiID,
		"deleted": false,
		"state":   bson.M{"$in": models.ActiveTaskStates},
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, apperr.Wrap(apperr.KindUnknown, "failed to count active tasks", err)
	}
	return count > 0, nil
}

func (r *TaskRepo) SoftDeleteTasksByDocument(ctx context.Context, documentID string) error {
	return r.softDelete(ctx, bson.M{"document_id": documentID})
}

func (r *TaskRepo) SoftDeleteTasksByWiki(ctx context.Context, wikiID string) error {
	return r.softDelete(ctx, bson.M{"wiki_id": wikiID})
}

func (r *TaskRepo) softDelete(ctx context.Context, filter bson.M) error {
	_, err := r.collection.UpdateMany(ctx, filter,
		bson.M{"$set": bson.M{"deleted": true, "updated_at": time.Now()}},
	)
	if err != nil {
		return apperr.Wrap(apperr.KindUnknown, "failed to soft-delete tasks", err)
	}
	return nil
}

func (r *TaskRepo) StaleActiveTasks(ctx context.Context, olderThanMinutes int) ([]models.EmbeddingTask, error) {
	cutoff := time.Now().Add(-time.Duration(olderThanMinutes) * time.Minute)
	cursor, err := r.collection.Find(ctx, bson.M{
		"state":      bson.M{"$in": models.ActiveTaskStates},
		"deleted":    false,
		"updated_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnknown, "failed to query stale tasks", err)
	}
	defer cursor.Close(ctx)

	var tasks []models.EmbeddingTask
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, apperr.Wrap(apperr.KindUnknown, "failed to decode stale tasks", err)
	}
	return tasks, nil
}
