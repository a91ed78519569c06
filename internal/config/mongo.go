package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	// Create indexes
	if err := createIndexes(client, cfg.DBName); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

func createIndexes(client *mongo.Client, dbName string) error {
	db := client.Database(dbName)

	// Documents collection indexes
	documentsCollection := db.Collection("documents")
	documentIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "wiki_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "wiki_id", Value: 1}, {Key: "file_name", Value: 1}},
		},
	}
	_, err := documentsCollection.Indexes().CreateMany(context.Background(), documentIndexes)
	if err != nil {
		return err
	}

	// Embedding tasks collection indexes. The partial unique index on
	// document_id is the duplicate-submission guard: two racing submits
	// for one document cannot both insert an active task.
	tasksCollection := db.Collection("embedding_tasks")
	taskIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "document_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{
					"state":   bson.M{"$in": []string{"wait", "processing"}},
					"deleted": false,
				}),
		},
		{
			Keys: bson.D{{Key: "wiki_id", Value: 1}, {Key: "state", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "updated_at", Value: -1}},
		},
	}
	_, err = tasksCollection.Indexes().CreateMany(context.Background(), taskIndexes)
	if err != nil {
		return err
	}

	// Chunk embeddings collection indexes for hierarchy resolution
	chunksCollection := db.Collection("chunk_embeddings")
	chunkIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "wiki_id", Value: 1}}},
		{Keys: bson.D{{Key: "document_id", Value: 1}}},
		{Keys: bson.D{{Key: "chunk_id", Value: 1}}},
	}
	_, err = chunksCollection.Indexes().CreateMany(context.Background(), chunkIndexes)
	if err != nil {
		return err
	}

	// Vector index metadata collection
	vectorIndexesCollection := db.Collection("vector_indexes")
	vectorIndexIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err = vectorIndexesCollection.Indexes().CreateMany(context.Background(), vectorIndexIndexes)
	if err != nil {
		return err
	}

	return nil
}
