package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"wiki-knowledge-platform/internal/apperr"
	"wiki-knowledge-platform/models"
)

type ChunkRepo struct {
	collection *mongo.Collection
}

func NewChunkRepo(db *mongo.Database) *ChunkRepo {
	return &ChunkRepo{collection: db.Collection("chunk_embeddings")}
}

func (r *ChunkRepo) InsertChunks(ctx context.Context, chunks []models.ChunkEmbedding) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]interface{}, len(chunks))
	for i, c := range chunks {
		docs[i] = c
	}
	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return apperr.Wrap(apperr.KindUnknown, "failed to insert chunk embeddings", err)
	}
	return nil
}

func (r *ChunkRepo) GetChunksByIDs(ctx context.Context, ids []string) (map[string]models.ChunkEmbedding, error) {
	out := make(map[string]models.ChunkEmbedding, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnknown, "failed to load chunk embeddings", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var chunk models.ChunkEmbedding
		if err := cursor.Decode(&chunk); err != nil {
			return nil, apperr.Wrap(apperr.KindUnknown, "failed to decode chunk embedding", err)
		}
		out[chunk.ID] = chunk
	}
	if err := cursor.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindUnknown, "chunk embedding cursor failed", err)
	}
	return out, nil
}

func (r *ChunkRepo) DeleteChunksByDocument(ctx context.Context, documentID string) error {
	return r.deleteWhere(ctx, bson.M{"document_id": documentID})
}

func (r *ChunkRepo) DeleteChunksByWiki(ctx context.Context, wikiID string) error {
	return r.deleteWhere(ctx, bson.M{"wiki_id": wikiID})
}

func (r *ChunkRepo) deleteWhere(ctx context.Context, filter bson.M) error {
	if _, err := r.collection.DeleteMany(ctx, filter); err != nil {
		return apperr.Wrap(apperr.KindUnknown, "failed to delete chunk embeddings", err)
	}
	return nil
}
