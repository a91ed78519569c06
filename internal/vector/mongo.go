package vector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"wiki-knowledge-platform/internal/ai"
	"wiki-knowledge-platform/internal/apperr"
	"wiki-knowledge-platform/internal/logger"
)

const (
	metaCollection   = "vector_indexes"
	collectionPrefix = "vec_"
)

type indexMeta struct {
	Name       string    `bson:"name"`
	Dimensions int       `bson:"dimensions"`
	CreatedAt  time.Time `bson:"created_at"`
}

// MongoStore keeps each index in its own collection with a meta row carrying
// the dimensionality. Search is a filtered scan with in-application cosine
// scoring, which is adequate at wiki scale and needs no Atlas-only features.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) ListIndexes(ctx context.Context) ([]string, error) {
	cursor, err := s.db.Collection(metaCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "failed to list vector indexes", err)
	}
	defer cursor.Close(ctx)

	var names []string
	for cursor.Next(ctx) {
		var meta indexMeta
		if err := cursor.Decode(&meta); err != nil {
			continue
		}
		names = append(names, meta.Name)
	}
	return names, cursor.Err()
}

func (s *MongoStore) CreateIndex(ctx context.Context, name string, dimensions int) error {
	if name == "" || dimensions <= 0 {
		return apperr.New(apperr.KindInvalidArgument, "index name and positive dimensions required")
	}

	var existing indexMeta
	err := s.db.Collection(metaCollection).FindOne(ctx, bson.M{"name": name}).Decode(&existing)
	if err == nil {
		if existing.Dimensions != dimensions {
			return apperr.Newf(apperr.KindConflict,
				"index %q exists with %d dimensions, requested %d", name, existing.Dimensions, dimensions)
		}
		return nil
	}
	if err != mongo.ErrNoDocuments {
		return apperr.Wrap(apperr.KindUpstream, "failed to read index metadata", err)
	}

	_, err = s.db.Collection(metaCollection).UpdateOne(ctx,
		bson.M{"name": name},
		bson.M{"$setOnInsert": indexMeta{Name: name, Dimensions: dimensions, CreatedAt: time.Now()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return apperr.Wrap(apperr.KindUpstream, "failed to create vector index", err)
	}

	col := s.collection(name)
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "document_id", Value: 1}}},
	}
	if _, err := col.Indexes().CreateMany(ctx, indexes); err != nil {
		return apperr.Wrap(apperr.KindUpstream, "failed to index vector collection", err)
	}

	logger.Info("vector index created", "index", name, "dimensions", dimensions)
	return nil
}

func (s *MongoStore) DeleteIndex(ctx context.Context, name string) error {
	if err := s.collection(name).Drop(ctx); err != nil {
		return apperr.Wrap(apperr.KindUpstream, "failed to drop vector collection", err)
	}
	if _, err := s.db.Collection(metaCollection).DeleteOne(ctx, bson.M{"name": name}); err != nil {
		return apperr.Wrap(apperr.KindUpstream, "failed to delete index metadata", err)
	}
	return nil
}

func (s *MongoStore) DeleteDocument(ctx context.Context, indexName, documentID string) error {
	_, err := s.collection(indexName).DeleteMany(ctx, bson.M{"document_id": documentID})
	if err != nil {
		return apperr.Wrap(apperr.KindUpstream, "failed to delete document vectors", err)
	}
	return nil
}

func (s *MongoStore) Upsert(ctx context.Context, indexName string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	dims, err := s.dimensions(ctx, indexName)
	if err != nil {
		return err
	}

	batch := make([]mongo.WriteModel, 0, len(records))
	for _, rec := range records {
		if len(rec.Vector) != dims {
			return apperr.Newf(apperr.KindConflict,
				"record %s has %d dimensions, index %q expects %d", rec.ID, len(rec.Vector), indexName, dims)
		}
		batch = append(batch, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": rec.ID}).
			SetUpdate(bson.M{"$set": rec}).
			SetUpsert(true))
	}

	_, err = s.collection(indexName).BulkWrite(ctx, batch, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return apperr.Wrap(apperr.KindUpstream, "failed to upsert vectors", err)
	}
	return nil
}

func (s *MongoStore) SimilaritySearch(ctx context.Context, indexName string, query []float32, filters []Filter, minRelevance float64, limit int) ([]Match, error) {
	dims, err := s.dimensions(ctx, indexName)
	if err != nil {
		return nil, err
	}
	if len(query) != dims {
		return nil, apperr.Newf(apperr.KindConflict,
			"query has %d dimensions, index %q expects %d", len(query), indexName, dims)
	}

	filter := bson.M{}
	for _, f := range filters {
		filter[f.Key] = f.Value
	}

	cursor, err := s.collection(indexName).Find(ctx, filter)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "vector search failed", err)
	}
	defer cursor.Close(ctx)

	var matches []Match
	for cursor.Next(ctx) {
		var rec Record
		if err := cursor.Decode(&rec); err != nil {
			continue
		}
		score, simErr := ai.CosineSimilarity(query, rec.Vector)
		if simErr != nil {
			// Corrupt record, skip rather than fail the search.
			logger.Warn("skipping vector record with bad dimensions", "index", indexName, "id", rec.ID)
			continue
		}
		if score >= minRelevance {
			matches = append(matches, Match{ID: rec.ID, Score: score})
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "vector search failed", err)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *MongoStore) dimensions(ctx context.Context, indexName string) (int, error) {
	var meta indexMeta
	err := s.db.Collection(metaCollection).FindOne(ctx, bson.M{"name": indexName}).Decode(&meta)
	if err == mongo.ErrNoDocuments {
		return 0, apperr.Newf(apperr.KindNotFound, "vector index %q not found", indexName)
	}
	if err != nil {
		return 0, apperr.Wrap(apperr.KindUpstream, "failed to read index metadata", err)
	}
	return meta.Dimensions, nil
}

func (s *MongoStore) collection(name string) *mongo.Collection {
	return s.db.Collection(fmt.Sprintf("%s%s", collectionPrefix, name))
}
