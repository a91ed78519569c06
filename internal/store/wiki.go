// Package store holds the Mongo-backed persistence layer. Each repository
// wraps one collection; error contracts (NotFound, Conflict) are part of the
// service-layer store interfaces.
package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"wiki-knowledge-platform/internal/apperr"
	"wiki-knowledge-platform/models"
)

type WikiRepo struct {
	collection *mongo.Collection
}

func NewWikiRepo(db *mongo.Database) *WikiRepo {
	return &WikiRepo{collection: db.Collection("wikis")}
}

func (r *WikiRepo) GetWiki(ctx context.Context, id string) (*models.Wiki, error) {
	var wiki models.Wiki
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&wiki)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.Newf(apperr.KindNotFound, "wiki %s not found", id)
		}
		return nil, apperr.Wrap(apperr.KindUnknown, "failed to load wiki", err)
	}
	return &wiki, nil
}

func (r *WikiRepo) CreateWiki(ctx context.Context, wiki *models.Wiki) error {
	now := time.Now()
	if wiki.CreatedAt.IsZero() {
		wiki.CreatedAt = now
	}
	wiki.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, wiki); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Newf(apperr.KindConflict, "wiki %s already exists", wiki.ID)
		}
		return apperr.Wrap(apperr.KindUnknown, "failed to create wiki", err)
	}
	return nil
}

func (r *WikiRepo) ListWikis(ctx context.Context) ([]models.Wiki, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnknown, "failed to list wikis", err)
	}
	defer cursor.Close(ctx)

	var wikis []models.Wiki
	if err := cursor.All(ctx, &wikis); err != nil {
		return nil, apperr.Wrap(apperr.KindUnknown, "failed to decode wikis", err)
	}
	return wikis, nil
}

func (r *WikiRepo) SetWikiLock(ctx context.Context, id string, locked bool) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"is_lock": locked, "updated_at": time.Now()}},
	)
	if err != nil {
		return apperr.Wrap(apperr.KindUnknown, "failed to update wiki lock", err)
	}
	if result.MatchedCount == 0 {
		return apperr.Newf(apperr.KindNotFound, "wiki %s not found", id)
	}
	return nil
}
