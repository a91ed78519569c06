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

type DocumentRepo struct {
	collection *mongo.Collection
}

func NewDocumentRepo(db *mongo.Database) *DocumentRepo {
	return &DocumentRepo{collection: db.Collection("documents")}
}

func (r *DocumentRepo) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.Newf(apperr.KindNotFound, "document %s not found", id)
		}
		return nil, apperr.Wrap(apperr.KindUnknown, "failed to load document", err)
	}
	return &doc, nil
}

func (r *DocumentRepo) CreateDocument(ctx context.Context, doc *models.Document) error {
	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Newf(apperr.KindConflict, "document %s already exists in wiki %s", doc.FileName, doc.WikiID)
		}
		return apperr.Wrap(apperr.KindUnknown, "failed to create document", err)
	}
	return nil
}

func (r *DocumentRepo) ListDocuments(ctx context.Context, wikiID string) ([]models.Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"wiki_id": wikiID}, opts)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnknown, "failed to list documents", err)
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, apperr.Wrap(apperr.KindUnknown, "failed to decode documents", err)
	}
	return docs, nil
}

func (r *DocumentRepo) DeleteDocument(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return apperr.Wrap(apperr.KindUnknown, "failed to delete document", err)
	}
	if result.DeletedCount == 0 {
		return apperr.Newf(apperr.KindNotFound, "document %s not found", id)
	}
	return nil
}

func (r *DocumentRepo) CountDocuments(ctx context.Context, wikiID string) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"wiki_id": wikiID})
	if err != nil {
		return 0, apperr.Wrap(apperr.KindUnknown, "failed to count documents", err)
	}
	return count, nil
}
